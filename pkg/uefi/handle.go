package uefi

import "fmt"

// Handle is an opaque EFI_HANDLE. It has the layout of a single machine word
// and can only be compared; firmware is the only source of valid handles.
type Handle struct {
	h uintptr
}

// handleFromRaw is reserved for the code paths receiving handles from
// firmware.
func handleFromRaw(raw uintptr) Handle {
	return Handle{h: raw}
}

// Raw returns the firmware word backing the handle, to be passed back to
// firmware unchanged.
func (h Handle) Raw() uintptr {
	return h.h
}

// IsNil reports whether h is the NULL handle.
func (h Handle) IsNil() bool {
	return h.h == 0
}

func (h Handle) String() string {
	return fmt.Sprintf("handle(%#x)", h.h)
}

// Event is an opaque EFI_EVENT.
type Event struct {
	e uintptr
}

// Raw returns the firmware word backing the event.
func (e Event) Raw() uintptr {
	return e.e
}

// IsNil reports whether e is the NULL event.
func (e Event) IsNil() bool {
	return e.e == 0
}
