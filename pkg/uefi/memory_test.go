package uefi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMapStride(t *testing.T) {
	descriptors := []MemoryDescriptor{
		{Type: LoaderCode, PhysicalStart: 0x100000, NumberOfPages: 16, Attribute: EFI_MEMORY_WB},
		{Type: ConventionalMemory, PhysicalStart: 0x200000, VirtualStart: 0x1000, NumberOfPages: 256},
		{Type: RuntimeServicesData, PhysicalStart: 0x8000000, NumberOfPages: 1, Attribute: EFI_MEMORY_RUNTIME},
	}

	for _, stride := range []UINTN{40, 48, 64} {
		m := NewMemoryMap(PageSize)
		m.DescriptorSize = stride

		for i, d := range descriptors {
			m.PutDescriptor(i, d)
		}

		assert.Equal(t, UINTN(len(descriptors))*stride, m.Size)
		require.Equal(t, len(descriptors), m.Len())
		assert.Equal(t, descriptors, m.Descriptors(), "stride %d", stride)
	}
}

func TestMemoryMapSetType(t *testing.T) {
	m := NewMemoryMap(PageSize)
	m.DescriptorSize = 48
	m.PutDescriptor(0, MemoryDescriptor{Type: BootServicesData, PhysicalStart: 0x1000, NumberOfPages: 4})
	m.PutDescriptor(1, MemoryDescriptor{Type: BootServicesCode, PhysicalStart: 0x5000, NumberOfPages: 2})

	m.SetType(1, ConventionalMemory)

	assert.Equal(t, BootServicesData, m.Descriptor(0).Type)
	assert.Equal(t, ConventionalMemory, m.Descriptor(1).Type)
	assert.Equal(t, PhysicalAddress(0x5000), m.Descriptor(1).PhysicalStart)
}

func TestMemoryMapEmpty(t *testing.T) {
	m := NewMemoryMap(0)
	assert.Zero(t, m.Len())
	assert.Empty(t, m.Descriptors())
	assert.True(t, m.pointer() == nil)
	assert.Zero(t, m.Capacity())
}

func TestMemoryDescriptor(t *testing.T) {
	d := MemoryDescriptor{PhysicalStart: 0x100000, NumberOfPages: 3}
	assert.Equal(t, uint64(3*PageSize), d.Size())
	assert.Equal(t, PhysicalAddress(0x103000), d.End())
}

func TestMemoryTypeString(t *testing.T) {
	assert.Equal(t, "Conventional", ConventionalMemory.String())
	assert.Equal(t, "Unaccepted", UnacceptedMemory.String())
	assert.Equal(t, "MemoryType(0x80000000)", MemoryType(0x80000000).String())
	assert.Len(t, memoryTypeNames, int(MaxMemoryType))
}
