//go:build amd64 || arm64 || riscv64 || loong64

package uefi

import "unsafe"

// Compile time size checks, a mismatch fails the build with a constant
// overflow or a type mismatch.
var (
	_ [0]byte = [unsafe.Sizeof(TableHeader{}) - 24]byte{}
	_ [0]byte = [unsafe.Sizeof(SystemTable{}) - 120]byte{}
	_ [0]byte = [unsafe.Sizeof(ConfigurationTable{}) - 24]byte{}
	_ [0]byte = [unsafe.Sizeof(BootServices{}) - 376]byte{}
	_ [0]byte = [unsafe.Sizeof(RuntimeServices{}) - 136]byte{}
	_ [0]byte = [unsafe.Sizeof(SimpleTextOutputProtocol{}) - 80]byte{}
	_ [0]byte = [unsafe.Sizeof(SimpleTextOutputMode{}) - 24]byte{}
	_ [0]byte = [unsafe.Sizeof(SimpleTextInputProtocol{}) - 24]byte{}
	_ [0]byte = [unsafe.Sizeof(InputKey{}) - 4]byte{}
	_ [0]byte = [unsafe.Sizeof(MemoryDescriptor{}) - 40]byte{}
	_ [0]byte = [unsafe.Sizeof(Time{}) - 16]byte{}
	_ [0]byte = [unsafe.Sizeof(TimeCapabilities{}) - 12]byte{}
	_ [0]byte = [unsafe.Sizeof(LoadedImageProtocol{}) - 96]byte{}
	_ [0]byte = [unsafe.Sizeof(GraphicsOutputProtocol{}) - 32]byte{}
	_ [0]byte = [unsafe.Sizeof(GraphicsOutputProtocolMode{}) - 40]byte{}
	_ [0]byte = [unsafe.Sizeof(GraphicsOutputModeInformation{}) - 36]byte{}
	_ [0]byte = [unsafe.Sizeof(SerialIOProtocol{}) - 72]byte{}
	_ [0]byte = [unsafe.Sizeof(SerialIOMode{}) - 32]byte{}
	_ [0]byte = [unsafe.Sizeof(SimpleFileSystemProtocol{}) - 16]byte{}
	_ [0]byte = [unsafe.Sizeof(FileProtocol{}) - 88]byte{}
	_ [0]byte = [unsafe.Sizeof(FileInfo{}) - 80]byte{}
	_ [0]byte = [unsafe.Sizeof(BlockIOProtocol{}) - 48]byte{}
	_ [0]byte = [unsafe.Sizeof(BlockIOMedia{}) - 48]byte{}
	_ [0]byte = [unsafe.Sizeof(DiskIOProtocol{}) - 24]byte{}
	_ [0]byte = [unsafe.Sizeof(SimpleNetworkProtocol{}) - 128]byte{}
	_ [0]byte = [unsafe.Sizeof(SimpleNetworkMode{}) - 656]byte{}
	_ [0]byte = [unsafe.Sizeof(Handle{}) - 8]byte{}
	_ [0]byte = [unsafe.Sizeof(Event{}) - 8]byte{}
	_ [0]byte = [unsafe.Sizeof(Status(0)) - 8]byte{}
)
