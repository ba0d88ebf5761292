package uefi

import (
	"fmt"
	"unsafe"

	"github.com/hashicorp/go-multierror"
)

// Field is the published offset of a structure field next to the offset
// the Go declaration produces.
type Field struct {
	Name     string
	Offset   uintptr
	Expected uintptr
}

// Layout describes one firmware structure on 64-bit targets.
type Layout struct {
	Name     string
	Size     uintptr
	Expected uintptr
	Align    uintptr
	Fields   []Field
}

// Valid reports whether the Go declaration matches the published layout.
func (l Layout) Valid() bool {
	return l.Verify() == nil
}

// Verify returns every mismatch of the layout.
func (l Layout) Verify() error {
	var result *multierror.Error

	if l.Size != l.Expected {
		result = multierror.Append(result, fmt.Errorf("%s: size %d, expected %d", l.Name, l.Size, l.Expected))
	}

	for _, f := range l.Fields {
		if f.Offset != f.Expected {
			result = multierror.Append(result, fmt.Errorf("%s.%s: offset %#x, expected %#x", l.Name, f.Name, f.Offset, f.Expected))
		}
	}

	return result.ErrorOrNil()
}

func field(name string, offset, expected uintptr) Field {
	return Field{Name: name, Offset: offset, Expected: expected}
}

// zero values the layout table is computed from
var (
	lSt   SystemTable
	lCt   ConfigurationTable
	lBs   BootServices
	lRs   RuntimeServices
	lOut  SimpleTextOutputProtocol
	lMode SimpleTextOutputMode
	lIn   SimpleTextInputProtocol
	lKey  InputKey
	lMd   MemoryDescriptor
	lTm   Time
	lTc   TimeCapabilities
	lLi   LoadedImageProtocol
	lGop  GraphicsOutputProtocol
	lGm   GraphicsOutputProtocolMode
	lGi   GraphicsOutputModeInformation
	lSio  SerialIOProtocol
	lSm   SerialIOMode
	lSfs  SimpleFileSystemProtocol
	lFp   FileProtocol
	lFi   FileInfo
	lHdr  TableHeader
	lBio  BlockIOProtocol
	lBm   BlockIOMedia
	lDio  DiskIOProtocol
	lSnp  SimpleNetworkProtocol
	lSnm  SimpleNetworkMode
)

// Layouts lists the structures mapped by this package with their 64-bit
// offsets from UEFI 2.10.
var Layouts = []Layout{
	{"TableHeader", unsafe.Sizeof(lHdr), 24, unsafe.Alignof(lHdr), []Field{
		field("Signature", unsafe.Offsetof(lHdr.Signature), 0),
		field("Revision", unsafe.Offsetof(lHdr.Revision), 8),
		field("HeaderSize", unsafe.Offsetof(lHdr.HeaderSize), 12),
		field("CRC32", unsafe.Offsetof(lHdr.CRC32), crcOffset),
		field("Reserved", unsafe.Offsetof(lHdr.Reserved), 20),
	}},
	{"SystemTable", unsafe.Sizeof(lSt), 120, unsafe.Alignof(lSt), []Field{
		field("FirmwareVendor", unsafe.Offsetof(lSt.FirmwareVendor), 0x18),
		field("FirmwareRevision", unsafe.Offsetof(lSt.FirmwareRevision), 0x20),
		field("ConsoleInHandle", unsafe.Offsetof(lSt.ConsoleInHandle), 0x28),
		field("ConIn", unsafe.Offsetof(lSt.ConIn), 0x30),
		field("ConsoleOutHandle", unsafe.Offsetof(lSt.ConsoleOutHandle), 0x38),
		field("ConOut", unsafe.Offsetof(lSt.ConOut), 0x40),
		field("StandardErrorHandle", unsafe.Offsetof(lSt.StandardErrorHandle), 0x48),
		field("StdErr", unsafe.Offsetof(lSt.StdErr), 0x50),
		field("RuntimeServices", unsafe.Offsetof(lSt.RuntimeServices), 0x58),
		field("BootServices", unsafe.Offsetof(lSt.BootServices), 0x60),
		field("NumberOfTableEntries", unsafe.Offsetof(lSt.NumberOfTableEntries), 0x68),
		field("ConfigurationTable", unsafe.Offsetof(lSt.ConfigurationTable), 0x70),
	}},
	{"ConfigurationTable", unsafe.Sizeof(lCt), 24, unsafe.Alignof(lCt), []Field{
		field("VendorGUID", unsafe.Offsetof(lCt.VendorGUID), 0),
		field("VendorTable", unsafe.Offsetof(lCt.VendorTable), 16),
	}},
	{"BootServices", unsafe.Sizeof(lBs), 376, unsafe.Alignof(lBs), []Field{
		field("RaiseTPL", unsafe.Offsetof(lBs.raiseTPL), 0x18),
		field("RestoreTPL", unsafe.Offsetof(lBs.restoreTPL), 0x20),
		field("AllocatePages", unsafe.Offsetof(lBs.allocatePages), 0x28),
		field("FreePages", unsafe.Offsetof(lBs.freePages), 0x30),
		field("GetMemoryMap", unsafe.Offsetof(lBs.getMemoryMap), 0x38),
		field("AllocatePool", unsafe.Offsetof(lBs.allocatePool), 0x40),
		field("FreePool", unsafe.Offsetof(lBs.freePool), 0x48),
		field("CreateEvent", unsafe.Offsetof(lBs.createEvent), 0x50),
		field("SetTimer", unsafe.Offsetof(lBs.setTimer), 0x58),
		field("WaitForEvent", unsafe.Offsetof(lBs.waitForEvent), 0x60),
		field("SignalEvent", unsafe.Offsetof(lBs.signalEvent), 0x68),
		field("CloseEvent", unsafe.Offsetof(lBs.closeEvent), 0x70),
		field("CheckEvent", unsafe.Offsetof(lBs.checkEvent), 0x78),
		field("InstallProtocolInterface", unsafe.Offsetof(lBs.installProtocolInterface), 0x80),
		field("ReinstallProtocolInterface", unsafe.Offsetof(lBs.reinstallProtocolInterface), 0x88),
		field("UninstallProtocolInterface", unsafe.Offsetof(lBs.uninstallProtocolInterface), 0x90),
		field("HandleProtocol", unsafe.Offsetof(lBs.handleProtocol), 0x98),
		field("Reserved", unsafe.Offsetof(lBs.reserved), 0xa0),
		field("RegisterProtocolNotify", unsafe.Offsetof(lBs.registerProtocolNotify), 0xa8),
		field("LocateHandle", unsafe.Offsetof(lBs.locateHandle), 0xb0),
		field("LocateDevicePath", unsafe.Offsetof(lBs.locateDevicePath), 0xb8),
		field("InstallConfigurationTable", unsafe.Offsetof(lBs.installConfigurationTable), 0xc0),
		field("LoadImage", unsafe.Offsetof(lBs.loadImage), 0xc8),
		field("StartImage", unsafe.Offsetof(lBs.startImage), 0xd0),
		field("Exit", unsafe.Offsetof(lBs.exit), 0xd8),
		field("UnloadImage", unsafe.Offsetof(lBs.unloadImage), 0xe0),
		field("ExitBootServices", unsafe.Offsetof(lBs.exitBootServices), 0xe8),
		field("GetNextMonotonicCount", unsafe.Offsetof(lBs.getNextMonotonicCount), 0xf0),
		field("Stall", unsafe.Offsetof(lBs.stall), 0xf8),
		field("SetWatchdogTimer", unsafe.Offsetof(lBs.setWatchdogTimer), 0x100),
		field("ConnectController", unsafe.Offsetof(lBs.connectController), 0x108),
		field("DisconnectController", unsafe.Offsetof(lBs.disconnectController), 0x110),
		field("OpenProtocol", unsafe.Offsetof(lBs.openProtocol), 0x118),
		field("CloseProtocol", unsafe.Offsetof(lBs.closeProtocol), 0x120),
		field("OpenProtocolInformation", unsafe.Offsetof(lBs.openProtocolInformation), 0x128),
		field("ProtocolsPerHandle", unsafe.Offsetof(lBs.protocolsPerHandle), 0x130),
		field("LocateHandleBuffer", unsafe.Offsetof(lBs.locateHandleBuffer), 0x138),
		field("LocateProtocol", unsafe.Offsetof(lBs.locateProtocol), 0x140),
		field("InstallMultipleProtocolInterfaces", unsafe.Offsetof(lBs.installMultipleProtocolInterfaces), 0x148),
		field("UninstallMultipleProtocolInterfaces", unsafe.Offsetof(lBs.uninstallMultipleProtocolInterfaces), 0x150),
		field("CalculateCrc32", unsafe.Offsetof(lBs.calculateCrc32), 0x158),
		field("CopyMem", unsafe.Offsetof(lBs.copyMem), 0x160),
		field("SetMem", unsafe.Offsetof(lBs.setMem), 0x168),
		field("CreateEventEx", unsafe.Offsetof(lBs.createEventEx), 0x170),
	}},
	{"RuntimeServices", unsafe.Sizeof(lRs), 136, unsafe.Alignof(lRs), []Field{
		field("GetTime", unsafe.Offsetof(lRs.getTime), 0x18),
		field("SetTime", unsafe.Offsetof(lRs.setTime), 0x20),
		field("GetWakeupTime", unsafe.Offsetof(lRs.getWakeupTime), 0x28),
		field("SetWakeupTime", unsafe.Offsetof(lRs.setWakeupTime), 0x30),
		field("SetVirtualAddressMap", unsafe.Offsetof(lRs.setVirtualAddressMap), 0x38),
		field("ConvertPointer", unsafe.Offsetof(lRs.convertPointer), 0x40),
		field("GetVariable", unsafe.Offsetof(lRs.getVariable), 0x48),
		field("GetNextVariableName", unsafe.Offsetof(lRs.getNextVariableName), 0x50),
		field("SetVariable", unsafe.Offsetof(lRs.setVariable), 0x58),
		field("GetNextHighMonotonicCount", unsafe.Offsetof(lRs.getNextHighMonotonicCount), 0x60),
		field("ResetSystem", unsafe.Offsetof(lRs.resetSystem), 0x68),
		field("UpdateCapsule", unsafe.Offsetof(lRs.updateCapsule), 0x70),
		field("QueryCapsuleCapabilities", unsafe.Offsetof(lRs.queryCapsuleCapabilities), 0x78),
		field("QueryVariableInfo", unsafe.Offsetof(lRs.queryVariableInfo), 0x80),
	}},
	{"SimpleTextOutputProtocol", unsafe.Sizeof(lOut), 80, unsafe.Alignof(lOut), []Field{
		field("Reset", unsafe.Offsetof(lOut.reset), 0x00),
		field("OutputString", unsafe.Offsetof(lOut.outputString), 0x08),
		field("TestString", unsafe.Offsetof(lOut.testString), 0x10),
		field("QueryMode", unsafe.Offsetof(lOut.queryMode), 0x18),
		field("SetMode", unsafe.Offsetof(lOut.setMode), 0x20),
		field("SetAttribute", unsafe.Offsetof(lOut.setAttribute), 0x28),
		field("ClearScreen", unsafe.Offsetof(lOut.clearScreen), 0x30),
		field("SetCursorPosition", unsafe.Offsetof(lOut.setCursorPosition), 0x38),
		field("EnableCursor", unsafe.Offsetof(lOut.enableCursor), 0x40),
		field("Mode", unsafe.Offsetof(lOut.Mode), 0x48),
	}},
	{"SimpleTextOutputMode", unsafe.Sizeof(lMode), 24, unsafe.Alignof(lMode), []Field{
		field("MaxMode", unsafe.Offsetof(lMode.MaxMode), 0),
		field("Mode", unsafe.Offsetof(lMode.Mode), 4),
		field("Attribute", unsafe.Offsetof(lMode.Attribute), 8),
		field("CursorColumn", unsafe.Offsetof(lMode.CursorColumn), 12),
		field("CursorRow", unsafe.Offsetof(lMode.CursorRow), 16),
		field("CursorVisible", unsafe.Offsetof(lMode.CursorVisible), 20),
	}},
	{"SimpleTextInputProtocol", unsafe.Sizeof(lIn), 24, unsafe.Alignof(lIn), []Field{
		field("Reset", unsafe.Offsetof(lIn.reset), 0),
		field("ReadKeyStroke", unsafe.Offsetof(lIn.readKeyStroke), 8),
		field("WaitForKey", unsafe.Offsetof(lIn.WaitForKey), 16),
	}},
	{"InputKey", unsafe.Sizeof(lKey), 4, unsafe.Alignof(lKey), []Field{
		field("ScanCode", unsafe.Offsetof(lKey.ScanCode), 0),
		field("UnicodeChar", unsafe.Offsetof(lKey.UnicodeChar), 2),
	}},
	{"MemoryDescriptor", unsafe.Sizeof(lMd), 40, unsafe.Alignof(lMd), []Field{
		field("Type", unsafe.Offsetof(lMd.Type), mdType),
		field("PhysicalStart", unsafe.Offsetof(lMd.PhysicalStart), mdPhysicalStart),
		field("VirtualStart", unsafe.Offsetof(lMd.VirtualStart), mdVirtualStart),
		field("NumberOfPages", unsafe.Offsetof(lMd.NumberOfPages), mdNumberOfPages),
		field("Attribute", unsafe.Offsetof(lMd.Attribute), mdAttribute),
	}},
	{"Time", unsafe.Sizeof(lTm), 16, unsafe.Alignof(lTm), []Field{
		field("Year", unsafe.Offsetof(lTm.Year), 0),
		field("Second", unsafe.Offsetof(lTm.Second), 6),
		field("Nanosecond", unsafe.Offsetof(lTm.Nanosecond), 8),
		field("TimeZone", unsafe.Offsetof(lTm.TimeZone), 12),
		field("Daylight", unsafe.Offsetof(lTm.Daylight), 14),
	}},
	{"TimeCapabilities", unsafe.Sizeof(lTc), 12, unsafe.Alignof(lTc), []Field{
		field("Resolution", unsafe.Offsetof(lTc.Resolution), 0),
		field("Accuracy", unsafe.Offsetof(lTc.Accuracy), 4),
		field("SetsToZero", unsafe.Offsetof(lTc.SetsToZero), 8),
	}},
	{"LoadedImageProtocol", unsafe.Sizeof(lLi), 96, unsafe.Alignof(lLi), []Field{
		field("ParentHandle", unsafe.Offsetof(lLi.ParentHandle), 8),
		field("SystemTable", unsafe.Offsetof(lLi.SystemTable), 16),
		field("DeviceHandle", unsafe.Offsetof(lLi.DeviceHandle), 24),
		field("FilePath", unsafe.Offsetof(lLi.FilePath), 32),
		field("LoadOptionsSize", unsafe.Offsetof(lLi.LoadOptionsSize), 48),
		field("LoadOptions", unsafe.Offsetof(lLi.LoadOptions), 56),
		field("ImageBase", unsafe.Offsetof(lLi.ImageBase), 64),
		field("ImageSize", unsafe.Offsetof(lLi.ImageSize), 72),
		field("ImageCodeType", unsafe.Offsetof(lLi.ImageCodeType), 80),
		field("ImageDataType", unsafe.Offsetof(lLi.ImageDataType), 84),
		field("Unload", unsafe.Offsetof(lLi.unload), 88),
	}},
	{"GraphicsOutputProtocol", unsafe.Sizeof(lGop), 32, unsafe.Alignof(lGop), []Field{
		field("QueryMode", unsafe.Offsetof(lGop.queryMode), 0),
		field("SetMode", unsafe.Offsetof(lGop.setMode), 8),
		field("Blt", unsafe.Offsetof(lGop.blt), 16),
		field("Mode", unsafe.Offsetof(lGop.Mode), 24),
	}},
	{"GraphicsOutputProtocolMode", unsafe.Sizeof(lGm), 40, unsafe.Alignof(lGm), []Field{
		field("Info", unsafe.Offsetof(lGm.Info), 8),
		field("SizeOfInfo", unsafe.Offsetof(lGm.SizeOfInfo), 16),
		field("FrameBufferBase", unsafe.Offsetof(lGm.FrameBufferBase), 24),
		field("FrameBufferSize", unsafe.Offsetof(lGm.FrameBufferSize), 32),
	}},
	{"GraphicsOutputModeInformation", unsafe.Sizeof(lGi), 36, unsafe.Alignof(lGi), []Field{
		field("PixelFormat", unsafe.Offsetof(lGi.PixelFormat), 12),
		field("PixelInformation", unsafe.Offsetof(lGi.PixelInformation), 16),
		field("PixelsPerScanLine", unsafe.Offsetof(lGi.PixelsPerScanLine), 32),
	}},
	{"SerialIOProtocol", unsafe.Sizeof(lSio), 72, unsafe.Alignof(lSio), []Field{
		field("Revision", unsafe.Offsetof(lSio.Revision), 0),
		field("Reset", unsafe.Offsetof(lSio.reset), 8),
		field("SetAttributes", unsafe.Offsetof(lSio.setAttributes), 16),
		field("SetControl", unsafe.Offsetof(lSio.setControl), 24),
		field("GetControl", unsafe.Offsetof(lSio.getControl), 32),
		field("Write", unsafe.Offsetof(lSio.write), 40),
		field("Read", unsafe.Offsetof(lSio.read), 48),
		field("Mode", unsafe.Offsetof(lSio.Mode), 56),
		field("DeviceTypeGUID", unsafe.Offsetof(lSio.DeviceTypeGUID), 64),
	}},
	{"SerialIOMode", unsafe.Sizeof(lSm), 32, unsafe.Alignof(lSm), []Field{
		field("BaudRate", unsafe.Offsetof(lSm.BaudRate), 8),
		field("ReceiveFifoDepth", unsafe.Offsetof(lSm.ReceiveFifoDepth), 16),
		field("StopBits", unsafe.Offsetof(lSm.StopBits), 28),
	}},
	{"SimpleFileSystemProtocol", unsafe.Sizeof(lSfs), 16, unsafe.Alignof(lSfs), []Field{
		field("Revision", unsafe.Offsetof(lSfs.Revision), 0),
		field("OpenVolume", unsafe.Offsetof(lSfs.openVolume), 8),
	}},
	{"FileProtocol", unsafe.Sizeof(lFp), 88, unsafe.Alignof(lFp), []Field{
		field("Open", unsafe.Offsetof(lFp.open), 8),
		field("Close", unsafe.Offsetof(lFp.close), 16),
		field("Delete", unsafe.Offsetof(lFp.delete), 24),
		field("Read", unsafe.Offsetof(lFp.read), 32),
		field("Write", unsafe.Offsetof(lFp.write), 40),
		field("GetPosition", unsafe.Offsetof(lFp.getPosition), 48),
		field("SetPosition", unsafe.Offsetof(lFp.setPosition), 56),
		field("GetInfo", unsafe.Offsetof(lFp.getInfo), 64),
		field("SetInfo", unsafe.Offsetof(lFp.setInfo), 72),
		field("Flush", unsafe.Offsetof(lFp.flush), 80),
	}},
	{"FileInfo", unsafe.Sizeof(lFi), 80, unsafe.Alignof(lFi), []Field{
		field("FileSize", unsafe.Offsetof(lFi.FileSize), 8),
		field("CreateTime", unsafe.Offsetof(lFi.CreateTime), 24),
		field("ModificationTime", unsafe.Offsetof(lFi.ModificationTime), 56),
		field("Attribute", unsafe.Offsetof(lFi.Attribute), 72),
	}},
	{"BlockIOProtocol", unsafe.Sizeof(lBio), 48, unsafe.Alignof(lBio), []Field{
		field("Media", unsafe.Offsetof(lBio.Media), 8),
		field("Reset", unsafe.Offsetof(lBio.reset), 16),
		field("ReadBlocks", unsafe.Offsetof(lBio.readBlocks), 24),
		field("WriteBlocks", unsafe.Offsetof(lBio.writeBlocks), 32),
		field("FlushBlocks", unsafe.Offsetof(lBio.flushBlocks), 40),
	}},
	{"BlockIOMedia", unsafe.Sizeof(lBm), 48, unsafe.Alignof(lBm), []Field{
		field("MediaId", unsafe.Offsetof(lBm.MediaID), 0),
		field("RemovableMedia", unsafe.Offsetof(lBm.RemovableMedia), 4),
		field("ReadOnly", unsafe.Offsetof(lBm.ReadOnly), 7),
		field("BlockSize", unsafe.Offsetof(lBm.BlockSize), 12),
		field("IoAlign", unsafe.Offsetof(lBm.IoAlign), 16),
		field("LastBlock", unsafe.Offsetof(lBm.LastBlock), 24),
		field("LowestAlignedLba", unsafe.Offsetof(lBm.LowestAlignedLba), 32),
		field("OptimalTransferLengthGranularity", unsafe.Offsetof(lBm.OptimalTransferLengthGranularity), 44),
	}},
	{"DiskIOProtocol", unsafe.Sizeof(lDio), 24, unsafe.Alignof(lDio), []Field{
		field("ReadDisk", unsafe.Offsetof(lDio.readDisk), 8),
		field("WriteDisk", unsafe.Offsetof(lDio.writeDisk), 16),
	}},
	{"SimpleNetworkProtocol", unsafe.Sizeof(lSnp), 128, unsafe.Alignof(lSnp), []Field{
		field("Start", unsafe.Offsetof(lSnp.start), 8),
		field("Stop", unsafe.Offsetof(lSnp.stop), 16),
		field("Initialize", unsafe.Offsetof(lSnp.initialize), 24),
		field("Reset", unsafe.Offsetof(lSnp.reset), 32),
		field("Shutdown", unsafe.Offsetof(lSnp.shutdown), 40),
		field("ReceiveFilters", unsafe.Offsetof(lSnp.receiveFilters), 48),
		field("StationAddress", unsafe.Offsetof(lSnp.stationAddress), 56),
		field("Statistics", unsafe.Offsetof(lSnp.statistics), 64),
		field("MCastIpToMac", unsafe.Offsetof(lSnp.mCastIPToMAC), 72),
		field("NvData", unsafe.Offsetof(lSnp.nvData), 80),
		field("GetStatus", unsafe.Offsetof(lSnp.getStatus), 88),
		field("Transmit", unsafe.Offsetof(lSnp.transmit), 96),
		field("Receive", unsafe.Offsetof(lSnp.receive), 104),
		field("WaitForPacket", unsafe.Offsetof(lSnp.WaitForPacket), 112),
		field("Mode", unsafe.Offsetof(lSnp.Mode), 120),
	}},
	{"SimpleNetworkMode", unsafe.Sizeof(lSnm), 656, unsafe.Alignof(lSnm), []Field{
		field("MaxPacketSize", unsafe.Offsetof(lSnm.MaxPacketSize), 12),
		field("MCastFilter", unsafe.Offsetof(lSnm.MCastFilter), 40),
		field("CurrentAddress", unsafe.Offsetof(lSnm.CurrentAddress), 552),
		field("PermanentAddress", unsafe.Offsetof(lSnm.PermanentAddress), 616),
		field("IfType", unsafe.Offsetof(lSnm.IfType), 648),
		field("MediaPresent", unsafe.Offsetof(lSnm.MediaPresent), 652),
	}},
}

// VerifyLayouts checks every entry of Layouts and reports all mismatches.
func VerifyLayouts() error {
	var result *multierror.Error

	for _, l := range Layouts {
		if err := l.Verify(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

// LookupLayout returns the layout of the named structure.
func LookupLayout(name string) (Layout, bool) {
	for _, l := range Layouts {
		if l.Name == name {
			return l, true
		}
	}

	return Layout{}, false
}

// PublishedOffset returns the published offset of field within structure
// name.
func PublishedOffset(name string, field string) (uintptr, bool) {
	l, ok := LookupLayout(name)

	if !ok {
		return 0, false
	}

	for _, f := range l.Fields {
		if f.Name == field {
			return f.Expected, true
		}
	}

	return 0, false
}
