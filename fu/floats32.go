package fu

/*
Round32 rounds value to the nearest float32
*/
func Round32(a float64) float64 {
	return float64(float32(a))
}

/*
Round32s rounds all values in place to the nearest float32
*/
func Round32s(a []float64) {
	for i, x := range a {
		a[i] = float64(float32(x))
	}
}
