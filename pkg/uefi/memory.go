package uefi

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// PageSize is the EFI page size used by AllocatePages and memory
// descriptors.
const PageSize = 4096

// AllocateType is EFI_ALLOCATE_TYPE.
type AllocateType uint32

const (
	AllocateAnyPages AllocateType = iota
	AllocateMaxAddress
	AllocateAddress
)

// MemoryType is EFI_MEMORY_TYPE.
type MemoryType uint32

const (
	ReservedMemoryType MemoryType = iota
	LoaderCode
	LoaderData
	BootServicesCode
	BootServicesData
	RuntimeServicesCode
	RuntimeServicesData
	ConventionalMemory
	UnusableMemory
	ACPIReclaimMemory
	ACPIMemoryNVS
	MemoryMappedIO
	MemoryMappedIOPortSpace
	PalCode
	PersistentMemory
	UnacceptedMemory
	MaxMemoryType
)

var memoryTypeNames = [...]string{
	"Reserved", "LoaderCode", "LoaderData", "BootServicesCode",
	"BootServicesData", "RuntimeServicesCode", "RuntimeServicesData",
	"Conventional", "Unusable", "ACPIReclaim", "ACPINVS", "MMIO",
	"MMIOPortSpace", "PalCode", "Persistent", "Unaccepted",
}

func (t MemoryType) String() string {
	if int(t) < len(memoryTypeNames) {
		return memoryTypeNames[t]
	}
	return fmt.Sprintf("MemoryType(%#x)", uint32(t))
}

// Memory attribute bits, §7.2 GetMemoryMap()
const (
	EFI_MEMORY_UC            uint64 = 0x0000000000000001
	EFI_MEMORY_WC            uint64 = 0x0000000000000002
	EFI_MEMORY_WT            uint64 = 0x0000000000000004
	EFI_MEMORY_WB            uint64 = 0x0000000000000008
	EFI_MEMORY_UCE           uint64 = 0x0000000000000010
	EFI_MEMORY_WP            uint64 = 0x0000000000001000
	EFI_MEMORY_RP            uint64 = 0x0000000000002000
	EFI_MEMORY_XP            uint64 = 0x0000000000004000
	EFI_MEMORY_NV            uint64 = 0x0000000000008000
	EFI_MEMORY_MORE_RELIABLE uint64 = 0x0000000000010000
	EFI_MEMORY_RO            uint64 = 0x0000000000020000
	EFI_MEMORY_SP            uint64 = 0x0000000000040000
	EFI_MEMORY_CPU_CRYPTO    uint64 = 0x0000000000080000
	EFI_MEMORY_RUNTIME       uint64 = 0x8000000000000000
)

// MemoryDescriptor is EFI_MEMORY_DESCRIPTOR version 1.
type MemoryDescriptor struct {
	Type          MemoryType
	_             uint32
	PhysicalStart PhysicalAddress
	VirtualStart  VirtualAddress
	NumberOfPages uint64
	Attribute     uint64
}

// Size returns the region length in bytes.
func (d *MemoryDescriptor) Size() uint64 {
	return d.NumberOfPages * PageSize
}

// End returns the first physical address after the region.
func (d *MemoryDescriptor) End() PhysicalAddress {
	return d.PhysicalStart + PhysicalAddress(d.Size())
}

// descriptor field offsets
const (
	mdType          = 0
	mdPhysicalStart = 8
	mdVirtualStart  = 16
	mdNumberOfPages = 24
	mdAttribute     = 32
)

// MemoryMap holds a snapshot of the firmware memory map. Firmware may report
// descriptors larger than MemoryDescriptor, entries are located with the
// reported DescriptorSize stride.
type MemoryMap struct {
	buf []byte

	// Size is the number of valid bytes in the buffer.
	Size              UINTN
	Key               UINTN
	DescriptorSize    UINTN
	DescriptorVersion uint32
}

// NewMemoryMap returns a map with a buffer of size bytes, to be filled by
// ReadMemoryMap.
func NewMemoryMap(size int) *MemoryMap {
	return &MemoryMap{
		buf: make([]byte, size),
	}
}

// Capacity returns the buffer size.
func (m *MemoryMap) Capacity() int {
	return len(m.buf)
}

// Len returns the number of descriptors.
func (m *MemoryMap) Len() int {
	if m.DescriptorSize == 0 {
		return 0
	}

	return int(m.Size / m.DescriptorSize)
}

func (m *MemoryMap) entry(i int) []byte {
	off := i * int(m.DescriptorSize)
	return m.buf[off : off+int(unsafe.Sizeof(MemoryDescriptor{}))]
}

// Descriptor decodes the i-th entry.
func (m *MemoryMap) Descriptor(i int) MemoryDescriptor {
	b := m.entry(i)

	return MemoryDescriptor{
		Type:          MemoryType(binary.LittleEndian.Uint32(b[mdType:])),
		PhysicalStart: PhysicalAddress(binary.LittleEndian.Uint64(b[mdPhysicalStart:])),
		VirtualStart:  VirtualAddress(binary.LittleEndian.Uint64(b[mdVirtualStart:])),
		NumberOfPages: binary.LittleEndian.Uint64(b[mdNumberOfPages:]),
		Attribute:     binary.LittleEndian.Uint64(b[mdAttribute:]),
	}
}

// Descriptors decodes all entries.
func (m *MemoryMap) Descriptors() []MemoryDescriptor {
	d := make([]MemoryDescriptor, m.Len())

	for i := range d {
		d[i] = m.Descriptor(i)
	}

	return d
}

// SetType rewrites the type of the i-th entry in place.
func (m *MemoryMap) SetType(i int, t MemoryType) {
	binary.LittleEndian.PutUint32(m.entry(i)[mdType:], uint32(t))
}

// PutDescriptor encodes d as the i-th entry, which must fit the buffer, and
// grows Size to cover it. Emulated firmware uses it to build maps.
func (m *MemoryMap) PutDescriptor(i int, d MemoryDescriptor) {
	b := m.entry(i)

	binary.LittleEndian.PutUint32(b[mdType:], uint32(d.Type))
	binary.LittleEndian.PutUint64(b[mdPhysicalStart:], uint64(d.PhysicalStart))
	binary.LittleEndian.PutUint64(b[mdVirtualStart:], uint64(d.VirtualStart))
	binary.LittleEndian.PutUint64(b[mdNumberOfPages:], d.NumberOfPages)
	binary.LittleEndian.PutUint64(b[mdAttribute:], d.Attribute)

	if end := UINTN(i+1) * m.DescriptorSize; end > m.Size {
		m.Size = end
	}
}

func (m *MemoryMap) pointer() unsafe.Pointer {
	if len(m.buf) == 0 {
		return nil
	}

	return unsafe.Pointer(&m.buf[0])
}
