package actuator

import (
	"fmt"
	"sort"
	"sync"
)

// aliases maps short device names to full device names.
var aliases = map[string]string{
	"touch":  "led_touch",
	"board":  "led_board",
	"matrix": "led_matrix",
}

// ResolveAlias expands a short device alias to its full name. Names that
// are not aliases pass through unchanged.
func ResolveAlias(name string) string {
	if full, ok := aliases[name]; ok {
		return full
	}
	return name
}

// Registry holds the registered devices by full name.
//
// Registration happens once at startup; lookups happen on every actuator
// action, so reads take the cheap path.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]Device
}

// NewRegistry creates an empty device registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]Device),
	}
}

// Register adds a device under its full name, replacing any previous
// registration.
func (r *Registry) Register(name string, device Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[name] = device
}

// Get returns the device for a name or short alias.
func (r *Registry) Get(name string) (Device, error) {
	full := ResolveAlias(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	device, ok := r.devices[full]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, full)
	}
	return device, nil
}

// GetMatrix returns the device for a name if it supports matrix operations.
func (r *Registry) GetMatrix(name string) (MatrixDevice, error) {
	device, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	matrix, ok := device.(MatrixDevice)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a matrix device", ErrNotSupported, ResolveAlias(name))
	}
	return matrix, nil
}

// Names returns the full names of all registered devices, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.devices))
	for name := range r.devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
