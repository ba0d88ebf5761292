// Package uefi maps the UEFI application binary interface onto Go types.
//
// The structures in this package mirror the layouts published in the UEFI
// 2.10 specification for 64-bit targets. Firmware allocates and fills them;
// this package only reads them and calls the function pointers they carry,
// through the wrappers in this package, using the firmware calling
// convention.
//
// Firmware owned memory is only valid for the lifecycle phase in which it was
// obtained: anything reachable from boot services becomes unusable after a
// successful ExitBootServices call.
package uefi

import (
	"github.com/linuxboot/fiano/pkg/guid"
)

type UINTN uintptr
type CHAR16 uint16
type PhysicalAddress uint64
type VirtualAddress uint64

// GUID is the mixed-endian EFI_GUID, as laid out in firmware memory.
type GUID = guid.GUID

// MustParseGUID parses the canonical textual form of a GUID.
func MustParseGUID(s string) GUID {
	return *guid.MustParse(s)
}

const (
	uintnSize = 32 << (^uintptr(0) >> 63) // 32 or 64
)

// convertBool widens a Go bool to the BOOLEAN argument width.
func convertBool(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
