// Package cpu implements the CPU backend for the detection operators.
package cpu

import (
	"github.com/born-ml/detops/internal/parallel"
	"github.com/born-ml/detops/internal/tensor"
)

// CPUBackend implements the corner pooling and rotated RoI align operators
// in pure Go. It holds no per-call state and is safe for concurrent use.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// Compile-time check that CPUBackend implements tensor.Backend.
var _ tensor.Backend = (*CPUBackend)(nil)

// New creates a new CPU backend using parallel.DefaultConfig.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend that fans work out according to cfg.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Parallel returns the parallel execution settings of the backend.
func (cpu *CPUBackend) Parallel() parallel.Config {
	return cpu.par
}
