// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe configuration store with typed keys, validation and reload propagation.

package control

import (
	"fmt"
	"maps"
	"reflect"
	"sync"

	"github.com/momentics/hioload-sfu/api"
)

// Validator checks a candidate value for one key.
type Validator func(v any) error

// ConfigStore is a dynamic key/value map with atomic snapshot and listener support.
// Only declared keys are accepted.
type ConfigStore struct {
	mu         sync.RWMutex
	config     map[string]any
	validators map[string]Validator
	listeners  []func()
	watchers   map[string][]func(v any)
}

// NewConfigStore initializes a new config store with no keys.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		config:     make(map[string]any),
		validators: make(map[string]Validator),
		watchers:   make(map[string][]func(v any)),
	}
}

// Declare adds key with its initial value. A nil validator accepts anything.
func (cs *ConfigStore) Declare(key string, initial any, validate Validator) error {
	if validate == nil {
		validate = func(any) error { return nil }
	}
	if err := validate(initial); err != nil {
		return fmt.Errorf("control: initial value of %s: %w", key, err)
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if _, ok := cs.validators[key]; ok {
		return fmt.Errorf("control: key %s: %w", key, api.ErrAlreadyExists)
	}
	cs.validators[key] = validate
	cs.config[key] = initial
	return nil
}

// GetSnapshot returns a copy of all config values.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return maps.Clone(cs.config)
}

// Get returns the value of key.
func (cs *ConfigStore) Get(key string) (any, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	v, ok := cs.config[key]
	return v, ok
}

// SetConfig validates every entry, merges them and notifies listeners. It
// reports whether anything changed.
func (cs *ConfigStore) SetConfig(newCfg map[string]any) (bool, error) {
	cs.mu.Lock()
	for k, v := range newCfg {
		validate, ok := cs.validators[k]
		if !ok {
			cs.mu.Unlock()
			return false, fmt.Errorf("control: unknown key %s: %w", k, api.ErrNotFound)
		}
		if err := validate(v); err != nil {
			cs.mu.Unlock()
			return false, fmt.Errorf("control: key %s: %w", k, err)
		}
	}
	type change struct {
		key string
		v   any
	}
	var changes []change
	for k, v := range newCfg {
		if !reflect.DeepEqual(cs.config[k], v) {
			cs.config[k] = v
			changes = append(changes, change{k, v})
		}
	}
	listeners := append([]func(){}, cs.listeners...)
	watchers := make(map[string][]func(any), len(changes))
	for _, c := range changes {
		watchers[c.key] = append([]func(any){}, cs.watchers[c.key]...)
	}
	cs.mu.Unlock()

	if len(changes) == 0 {
		return false, nil
	}
	for _, c := range changes {
		for _, fn := range watchers[c.key] {
			fn(c.v)
		}
	}
	for _, fn := range listeners {
		fn()
	}
	return true, nil
}

// OnChange registers fn for key. It runs synchronously with the new value only
// when an update changes that key's stored value, before OnReload listeners.
func (cs *ConfigStore) OnChange(key string, fn func(v any)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.watchers[key] = append(cs.watchers[key], fn)
}

// OnReload registers a listener called synchronously after each change.
func (cs *ConfigStore) OnReload(fn func()) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}

// Bool accepts bool values only.
func Bool(v any) error {
	if _, ok := v.(bool); !ok {
		return fmt.Errorf("expected bool, got %T: %w", v, api.ErrInvalidArgument)
	}
	return nil
}

// IntAtLeast accepts integers (JSON numbers included) not below lower.
func IntAtLeast(lower int) Validator {
	return func(v any) error {
		n, ok := asInt(v)
		if !ok {
			return fmt.Errorf("expected integer, got %T: %w", v, api.ErrInvalidArgument)
		}
		if n < lower {
			return fmt.Errorf("%d is below %d: %w", n, lower, api.ErrInvalidArgument)
		}
		return nil
	}
}

// asInt normalizes the numeric types produced by code and by JSON decoding.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}
