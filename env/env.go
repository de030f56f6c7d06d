package env

import (
	"os"
	"strings"
)

// Env represents the process environment as a set of key/value pairs
type Env struct {
	env map[string]string
}

// NewFromOs builds and returns an Env using os.Environ
func NewFromOs() *Env {
	return NewFromKVList(os.Environ())
}

// NewFromKVList builds and returns an Env using a provided list of
// string in the form "key=value"
func NewFromKVList(kv []string) *Env {
	e := &Env{
		env: make(map[string]string, len(kv)),
	}
	for _, pair := range kv {
		data := strings.SplitN(pair, "=", 2)
		if len(data) != 2 {
			continue
		}
		e.env[data[0]] = data[1]
	}
	return e
}

// Has returns whether the given key has a value set.
// Has is case-sensitive.
func (e *Env) Has(key string) bool {
	_, ok := e.env[key]
	return ok
}

// Get returns the value of the given key, or an empty string if the key
// has no values set.
// Get is case-sensitive.
func (e *Env) Get(key string) string {
	return e.env[key]
}
