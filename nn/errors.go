package nn

import (
	"fmt"
	"strings"
)

/*
UnknownLossError is returned when a loss name is not registered
*/
type UnknownLossError struct {
	Name string
}

func (e *UnknownLossError) Error() string {
	return fmt.Sprintf("unknown loss %q, registered: %s", e.Name, strings.Join(Losses(), ", "))
}

/*
UnknownOptimizerError is returned when an optimizer name is not registered
*/
type UnknownOptimizerError struct {
	Name string
}

func (e *UnknownOptimizerError) Error() string {
	return fmt.Sprintf("unknown optimizer %q, registered: %s", e.Name, strings.Join(Optimizers(), ", "))
}

/*
UnknownActivationError is returned when an activation name is not registered
*/
type UnknownActivationError struct {
	Name string
}

func (e *UnknownActivationError) Error() string {
	return fmt.Sprintf("unknown activation %q, registered: %s", e.Name, strings.Join(Activations(), ", "))
}
