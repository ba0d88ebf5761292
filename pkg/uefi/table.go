package uefi

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"unsafe"

	"github.com/hashicorp/go-multierror"
)

// Table signatures, §4.2-§4.5
const (
	SystemTableSignature     uint64 = 0x5453595320494249 // "IBI SYST"
	BootServicesSignature    uint64 = 0x56524553544f4f42 // "BOOTSERV"
	RuntimeServicesSignature uint64 = 0x56524553544e5552 // "RUNTSERV"
)

// crcOffset is the offset of TableHeader.CRC32 within every table.
const crcOffset = 16

// TableHeader is the EFI_TABLE_HEADER preceding every standard table. §4.2
type TableHeader struct {
	Signature  uint64
	Revision   uint32
	HeaderSize uint32
	CRC32      uint32
	Reserved   uint32
}

// RevisionString formats the revision as major.minor[.patch], the minor
// number packs the patch level as tens and units.
func (h *TableHeader) RevisionString() string {
	major := h.Revision >> 16
	minor := h.Revision & 0xffff

	if minor%10 != 0 {
		return fmt.Sprintf("%d.%d.%d", major, minor/10, minor%10)
	}

	return fmt.Sprintf("%d.%d", major, minor/10)
}

// Validate checks the header of the table it is embedded in against the
// expected signature and minimum table size, and verifies the CRC32 computed
// over HeaderSize bytes with the CRC field zeroed. All failures are reported
// together.
//
// The header must be the first field of a firmware table of at least
// minSize bytes.
func (h *TableHeader) Validate(signature uint64, minSize uintptr) error {
	var result *multierror.Error

	if h == nil {
		return ErrUnavailable
	}

	if h.Signature != signature {
		result = multierror.Append(result, fmt.Errorf("table signature %#016x, expected %#016x", h.Signature, signature))
	}

	if uintptr(h.HeaderSize) < minSize {
		result = multierror.Append(result, fmt.Errorf("table size %d smaller than %d", h.HeaderSize, minSize))
		return result.ErrorOrNil()
	}

	if crc := h.checksum(); crc != h.CRC32 {
		result = multierror.Append(result, fmt.Errorf("table CRC32 %#08x, computed %#08x", h.CRC32, crc))
	}

	return result.ErrorOrNil()
}

// checksum computes the table CRC32 as firmware does, with the CRC32 field
// taken as zero.
func (h *TableHeader) checksum() uint32 {
	buf := make([]byte, h.HeaderSize)
	copy(buf, unsafe.Slice((*byte)(unsafe.Pointer(h)), h.HeaderSize))
	binary.LittleEndian.PutUint32(buf[crcOffset:], 0)

	return crc32.ChecksumIEEE(buf)
}
