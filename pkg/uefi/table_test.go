package uefi

import (
	"hash/crc32"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sealTable(h *TableHeader, signature uint64, size uintptr) {
	h.Signature = signature
	h.HeaderSize = uint32(size)
	h.CRC32 = 0
	h.CRC32 = crc32.ChecksumIEEE(unsafe.Slice((*byte)(unsafe.Pointer(h)), size))
}

func TestTableHeaderValidate(t *testing.T) {
	st := new(SystemTable)
	st.Hdr.Revision = 2<<16 | 70
	sealTable(&st.Hdr, SystemTableSignature, unsafe.Sizeof(*st))

	require.NoError(t, st.Validate())

	// CRC32 covers the whole table
	st.FirmwareRevision = 1
	err := st.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table CRC32")
}

func TestTableHeaderValidateReportsAll(t *testing.T) {
	bs := new(BootServices)
	sealTable(&bs.Hdr, BootServicesSignature, unsafe.Sizeof(*bs))
	bs.Hdr.Signature = RuntimeServicesSignature

	err := bs.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table signature")
	assert.Contains(t, err.Error(), "table CRC32")
}

func TestTableHeaderValidateSize(t *testing.T) {
	rs := new(RuntimeServices)
	sealTable(&rs.Hdr, RuntimeServicesSignature, unsafe.Sizeof(TableHeader{}))

	err := rs.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smaller than 136")
	assert.NotContains(t, err.Error(), "CRC32")
}

func TestTableHeaderNil(t *testing.T) {
	var h *TableHeader
	assert.ErrorIs(t, h.Validate(SystemTableSignature, 24), ErrUnavailable)

	var st *SystemTable
	assert.ErrorIs(t, st.Validate(), ErrUnavailable)
}

func TestRevisionString(t *testing.T) {
	tests := []struct {
		revision uint32
		want     string
	}{
		{2<<16 | 100, "2.10"},
		{2<<16 | 70, "2.7"},
		{2<<16 | 31, "2.3.1"},
		{1<<16 | 10, "1.1"},
	}

	for _, tc := range tests {
		h := TableHeader{Revision: tc.revision}
		assert.Equal(t, tc.want, h.RevisionString())
	}
}

func TestSignatures(t *testing.T) {
	tests := map[uint64]string{
		SystemTableSignature:     "IBI SYST",
		BootServicesSignature:    "BOOTSERV",
		RuntimeServicesSignature: "RUNTSERV",
	}

	for sig, want := range tests {
		b := unsafe.Slice((*byte)(unsafe.Pointer(&sig)), 8)
		assert.Equal(t, want, string(b))
	}
}

func TestConfigurationTables(t *testing.T) {
	var acpi, smbios byte

	entries := []ConfigurationTable{
		{VendorGUID: ACPI20TableGUID, VendorTable: unsafe.Pointer(&acpi)},
		{VendorGUID: SMBIOS3TableGUID, VendorTable: unsafe.Pointer(&smbios)},
	}

	st := &SystemTable{
		ConfigurationTable:   &entries[0],
		NumberOfTableEntries: UINTN(len(entries)),
	}

	got := st.ConfigurationTables()
	require.Len(t, got, 2)

	// returned entries are a copy
	got[0].VendorTable = nil
	assert.True(t, entries[0].VendorTable != nil)

	p, err := st.LocateConfiguration(SMBIOS3TableGUID)
	require.NoError(t, err)
	assert.Equal(t, unsafe.Pointer(&smbios), p)

	_, err = st.LocateConfiguration(DeviceTreeGUID)
	assert.ErrorIs(t, err, ErrNotFound)

	var empty *SystemTable
	assert.Empty(t, empty.ConfigurationTables())
}
