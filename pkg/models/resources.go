package models

import (
	"fmt"
	"strings"
)

// ResourceKind identifies a schedulable resource dimension
type ResourceKind string

const (
	ResourceCPU ResourceKind = "cpu"
	ResourceGPU ResourceKind = "gpu"
	ResourceRAM ResourceKind = "ram"
)

// ResourceKinds lists every kind in display order
var ResourceKinds = []ResourceKind{ResourceCPU, ResourceGPU, ResourceRAM}

// Resources maps a resource kind to an integer quantity
type Resources map[ResourceKind]int

// NewResources builds a Resources value from the three known kinds
func NewResources(cpu, gpu, ram int) Resources {
	return Resources{
		ResourceCPU: cpu,
		ResourceGPU: gpu,
		ResourceRAM: ram,
	}
}

// Clone returns an independent copy
func (r Resources) Clone() Resources {
	out := make(Resources, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Get returns the quantity for a kind, zero when absent
func (r Resources) Get(kind ResourceKind) int {
	return r[kind]
}

// Half returns the requirements divided by two per kind (integer floor)
func (r Resources) Half() Resources {
	out := make(Resources, len(r))
	for k, v := range r {
		out[k] = v / 2
	}
	return out
}

// Fits reports whether every quantity in need is covered by r
func (r Resources) Fits(need Resources) bool {
	for k, v := range need {
		if r[k] < v {
			return false
		}
	}
	return true
}

// Equal compares two resource maps over the known kinds
func (r Resources) Equal(other Resources) bool {
	for _, k := range ResourceKinds {
		if r[k] != other[k] {
			return false
		}
	}
	return true
}

func (r Resources) String() string {
	parts := make([]string, 0, len(ResourceKinds))
	for _, k := range ResourceKinds {
		parts = append(parts, fmt.Sprintf("%s=%d", k, r[k]))
	}
	return strings.Join(parts, " ")
}
