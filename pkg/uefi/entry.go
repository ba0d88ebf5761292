package uefi

import (
	"fmt"
	"unsafe"
)

// EntryPoint is the typed form of an EFI_IMAGE_ENTRY_POINT. The returned
// Status is passed back to firmware unchanged.
type EntryPoint func(image Handle, st *SystemTable) Status

// Open converts the two words firmware passes to the image entry point into
// typed references, validating the system table header.
func Open(imageHandle uintptr, systemTable uintptr) (Handle, *SystemTable, error) {
	if systemTable == 0 {
		return Handle{}, nil, fmt.Errorf("%w: NULL system table", ErrInvalidParameter)
	}

	st := (*SystemTable)(unsafe.Pointer(systemTable))

	if st.Hdr.Signature != SystemTableSignature {
		return Handle{}, nil, fmt.Errorf("%w: system table signature %#016x", ErrLoadError, st.Hdr.Signature)
	}

	return handleFromRaw(imageHandle), st, nil
}

// Run calls entry with the typed entry point arguments and returns its
// Status. A NULL system table is rejected with EFI_INVALID_PARAMETER, a
// table with a foreign signature with EFI_LOAD_ERROR.
func Run(imageHandle uintptr, systemTable uintptr, entry EntryPoint) Status {
	image, st, err := Open(imageHandle, systemTable)

	if err != nil {
		return StatusOf(err, EFI_LOAD_ERROR)
	}

	return entry(image, st)
}
