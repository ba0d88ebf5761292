package uefi

import (
	"unsafe"
)

// SystemTable is the EFI_SYSTEM_TABLE handed to the image entry point. §4.3
type SystemTable struct {
	Hdr                  TableHeader
	FirmwareVendor       *CHAR16
	FirmwareRevision     uint32
	_                    uint32
	ConsoleInHandle      Handle
	ConIn                *SimpleTextInputProtocol
	ConsoleOutHandle     Handle
	ConOut               *SimpleTextOutputProtocol
	StandardErrorHandle  Handle
	StdErr               *SimpleTextOutputProtocol
	RuntimeServices      *RuntimeServices
	BootServices         *BootServices
	NumberOfTableEntries UINTN
	ConfigurationTable   *ConfigurationTable
}

// ConfigurationTable is one EFI_CONFIGURATION_TABLE entry. §4.6
type ConfigurationTable struct {
	VendorGUID  GUID
	VendorTable unsafe.Pointer
}

// Well known configuration table GUIDs, §4.6.1
var (
	ACPI20TableGUID      = MustParseGUID("8868E871-E4F1-11D3-BC22-0080C73C8881")
	ACPITableGUID        = MustParseGUID("EB9D2D30-2D88-11D3-9A16-0090273FC14D")
	SMBIOSTableGUID      = MustParseGUID("EB9D2D31-2D88-11D3-9A16-0090273FC14D")
	SMBIOS3TableGUID     = MustParseGUID("F2FD1544-9794-4A2C-992E-E5BBCF20E394")
	DeviceTreeGUID       = MustParseGUID("B1B621D5-F19C-41A5-830B-D9152C69AAE0")
	MemoryAttributesGUID = MustParseGUID("DCFA911D-26EB-469F-A220-38B7DC461220")
)

// Vendor returns the firmware vendor string.
func (t *SystemTable) Vendor() (string, error) {
	if t == nil {
		return "", ErrUnavailable
	}

	return readString(t.FirmwareVendor)
}

// Validate checks the system table header.
func (t *SystemTable) Validate() error {
	if t == nil {
		return ErrUnavailable
	}

	return t.Hdr.Validate(SystemTableSignature, unsafe.Sizeof(*t))
}

// ConfigurationTables returns a copy of the configuration table entries.
func (t *SystemTable) ConfigurationTables() []ConfigurationTable {
	if t == nil || t.ConfigurationTable == nil || t.NumberOfTableEntries == 0 {
		return nil
	}

	entries := unsafe.Slice(t.ConfigurationTable, int(t.NumberOfTableEntries))

	return append([]ConfigurationTable(nil), entries...)
}

// LocateConfiguration returns the vendor table registered under g, or
// ErrNotFound.
func (t *SystemTable) LocateConfiguration(g GUID) (unsafe.Pointer, error) {
	for _, entry := range t.ConfigurationTables() {
		if entry.VendorGUID == g {
			return entry.VendorTable, nil
		}
	}

	return nil, ErrNotFound
}
