package models

import "errors"

var (
	// ErrBusy means the VM is mid-operation or otherwise in the wrong phase.
	ErrBusy = errors.New("vm is busy")
	// ErrInvalidVM means the name is not in the registry.
	ErrInvalidVM = errors.New("unknown vm")
	// ErrInvalidSnapshot means the hypervisor does not list the snapshot.
	ErrInvalidSnapshot = errors.New("unknown snapshot")
	// ErrNotFound is returned by registry lookups.
	ErrNotFound = errors.New("vm not found")
	// ErrConflict means the phase changed between observation and apply.
	ErrConflict = errors.New("phase changed concurrently")
	// ErrInvalidTransition means the requested edge is not in the state machine.
	ErrInvalidTransition = errors.New("invalid phase transition")
)
