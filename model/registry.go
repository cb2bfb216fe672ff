package model

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

/*
Factory builds a model from its hyper-parameters,
seed drives weight initialization and dropout
*/
type Factory func(h Hyper, seed int64) (Model, error)

var registry = struct {
	sync.RWMutex
	m map[string]Factory
}{m: map[string]Factory{}}

/*
Register makes a model class available by name
*/
func Register(name string, f Factory) {
	registry.Lock()
	defer registry.Unlock()
	if _, ok := registry.m[name]; ok {
		panic(fmt.Sprintf("model %q is already registered", name))
	}
	registry.m[name] = f
}

/*
Registered returns sorted names of registered model classes
*/
func Registered() []string {
	registry.RLock()
	defer registry.RUnlock()
	r := make([]string, 0, len(registry.m))
	for k := range registry.m {
		r = append(r, k)
	}
	sort.Strings(r)
	return r
}

/*
ClassName returns the registry key of a class path,
the last segment of a dotted path
*/
func ClassName(classPath string) string {
	if i := strings.LastIndexByte(classPath, '.'); i >= 0 {
		return classPath[i+1:]
	}
	return classPath
}

/*
UnknownModelError is returned when a class path names no registered model
*/
type UnknownModelError struct {
	ClassPath string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model %q, registered: %s", e.ClassPath, strings.Join(Registered(), ", "))
}

/*
New builds a registered model with defaults filled in
*/
func New(classPath string, h Hyper, seed int64) (Model, error) {
	registry.RLock()
	f, ok := registry.m[ClassName(classPath)]
	registry.RUnlock()
	if !ok {
		return nil, &UnknownModelError{ClassPath: classPath}
	}
	return f(h.WithDefaults(), seed)
}
