// Package memory wraps physical-memory introspection behind a small
// interface. The conversion engine only uses it for an advisory guard, so
// the interface is deliberately minimal and easily substituted in tests.
package memory

import (
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/mem"
)

// Introspector reports physical memory figures in bytes.
type Introspector interface {
	// Total returns the machine's physical memory.
	Total() (uint64, error)

	// Available returns an estimate of memory available for allocation
	// without swapping.
	Available() (uint64, error)
}

// System reads figures from the operating system via gopsutil.
type System struct{}

// Total implements Introspector.
func (System) Total() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, errors.Wrap(err, "reading physical memory")
	}
	return vm.Total, nil
}

// Available implements Introspector.
func (System) Available() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, errors.Wrap(err, "reading physical memory")
	}
	return vm.Available, nil
}

// Fixed is an Introspector reporting constant figures, for tests and for
// callers that want to cap conversion memory explicitly.
type Fixed struct {
	TotalBytes     uint64
	AvailableBytes uint64
}

// Total implements Introspector.
func (f Fixed) Total() (uint64, error) { return f.TotalBytes, nil }

// Available implements Introspector.
func (f Fixed) Available() (uint64, error) { return f.AvailableBytes, nil }
