package uefi

import (
	"errors"
	"fmt"
	"io"
	"unsafe"
)

//---------------------------------------------------------------------------
//  GUIDs (§13.5 File Protocol and related info GUIDs)
//---------------------------------------------------------------------------

var (
	SimpleFileSystemProtocolGUID = MustParseGUID("964E5B22-6459-11D2-8E39-00A0C969723B")
	FileInfoGUID                 = MustParseGUID("09576E92-6D3F-11D2-8E39-00A0C969723B")
	FileSystemInfoGUID           = MustParseGUID("09576E93-6D3F-11D2-8E39-00A0C969723B")
	FileSystemVolumeLabelGUID    = MustParseGUID("DB47D7D3-FE81-11D3-9A35-0090273FC14D")
)

//---------------------------------------------------------------------------
//  Constants (§13.5.1)
//---------------------------------------------------------------------------

// Open modes are 64-bit flags
const (
	EFI_FILE_MODE_READ   uint64 = 0x0000000000000001
	EFI_FILE_MODE_WRITE  uint64 = 0x0000000000000002
	EFI_FILE_MODE_CREATE uint64 = 0x8000000000000000
)

// Attribute flags (also 64-bit)
const (
	EFI_FILE_READ_ONLY uint64 = 0x0000000000000001
	EFI_FILE_HIDDEN    uint64 = 0x0000000000000002
	EFI_FILE_SYSTEM    uint64 = 0x0000000000000004
	EFI_FILE_RESERVED  uint64 = 0x0000000000000008
	EFI_FILE_DIRECTORY uint64 = 0x0000000000000010
	EFI_FILE_ARCHIVE   uint64 = 0x0000000000000020
)

// EndOfFile is the SetPosition argument seeking to the end of a file.
const EndOfFile uint64 = 0xffffffffffffffff

// fileInfoSize is the initial GetInfo buffer, enough for the head and a
// short name.
const fileInfoSize = 512

//---------------------------------------------------------------------------
//  Protocols (§13.4 Simple File System, §13.5 File Protocol)
//---------------------------------------------------------------------------

// SimpleFileSystemProtocol is EFI_SIMPLE_FILE_SYSTEM_PROTOCOL (§13.4.2)
type SimpleFileSystemProtocol struct {
	Revision   uint64
	openVolume uintptr // (this, **EFI_FILE_PROTOCOL)
}

// OpenVolume returns the root directory of the volume.
func (p *SimpleFileSystemProtocol) OpenVolume() (root *FileProtocol, err error) {
	if p == nil {
		return nil, ErrUnavailable
	}

	err = bootService(p.openVolume, unsafe.Pointer(p), unsafe.Pointer(&root))

	return
}

// FileProtocol is the revision 1 EFI_FILE_PROTOCOL (§13.5.2).
type FileProtocol struct {
	Revision    uint64
	open        uintptr // (this, **newHandle, *FileName, OpenMode, Attributes)
	close       uintptr // (this)
	delete      uintptr // (this)
	read        uintptr // (this, *BufferSize, Buffer)
	write       uintptr // (this, *BufferSize, Buffer)
	getPosition uintptr // (this, *Position)
	setPosition uintptr // (this, Position)
	getInfo     uintptr // (this, *InfoType, *BufferSize, Buffer)
	setInfo     uintptr // (this, *InfoType, BufferSize, Buffer)
	flush       uintptr // (this)
}

// Open opens a file or directory relative to p (which may be a root or
// directory handle). The name uses '\' separators. (§13.5.3)
func (p *FileProtocol) Open(name string, mode uint64, attributes uint64) (f *FileProtocol, err error) {
	if p == nil {
		return nil, ErrUnavailable
	}

	str, err := encodePointer(name)

	if err != nil {
		return nil, err
	}

	err = bootService(p.open, unsafe.Pointer(p), unsafe.Pointer(&f), str, mode, attributes)

	return
}

// Close closes the file handle. (§13.5.4)
func (p *FileProtocol) Close() error {
	if p == nil {
		return ErrUnavailable
	}

	return bootService(p.close, unsafe.Pointer(p))
}

// Delete closes and deletes the file, failure to delete is reported by
// firmware with EFI_WARN_DELETE_FAILURE and returned as that Status.
func (p *FileProtocol) Delete() (Status, error) {
	if p == nil {
		return EFI_SUCCESS, ErrUnavailable
	}

	return callService(bootScope, p.delete, unsafe.Pointer(p))
}

// Read reads from the current position into buf. Zero bytes read means end
// of file. (§13.5.6)
func (p *FileProtocol) Read(buf []byte) (int, error) {
	if p == nil {
		return 0, ErrUnavailable
	}

	if len(buf) == 0 {
		return 0, nil
	}

	size := UINTN(len(buf))
	err := bootService(p.read, unsafe.Pointer(p), unsafe.Pointer(&size), unsafe.Pointer(&buf[0]))

	return int(size), err
}

// Write writes buf at the current position. (§13.5.7)
func (p *FileProtocol) Write(buf []byte) (int, error) {
	if p == nil {
		return 0, ErrUnavailable
	}

	if len(buf) == 0 {
		return 0, nil
	}

	size := UINTN(len(buf))
	err := bootService(p.write, unsafe.Pointer(p), unsafe.Pointer(&size), unsafe.Pointer(&buf[0]))

	return int(size), err
}

// GetPosition returns the current file position in bytes. (§13.5.8)
func (p *FileProtocol) GetPosition() (pos uint64, err error) {
	if p == nil {
		return 0, ErrUnavailable
	}

	err = bootService(p.getPosition, unsafe.Pointer(p), unsafe.Pointer(&pos))

	return
}

// SetPosition sets the current file position, EndOfFile seeks to the end.
// (§13.5.9)
func (p *FileProtocol) SetPosition(pos uint64) error {
	if p == nil {
		return ErrUnavailable
	}

	return bootService(p.setPosition, unsafe.Pointer(p), pos)
}

// GetInfo returns the information block identified by infoType, growing
// the buffer as requested by firmware. (§13.5.10)
func (p *FileProtocol) GetInfo(infoType GUID) ([]byte, error) {
	if p == nil {
		return nil, ErrUnavailable
	}

	buf := make([]byte, fileInfoSize)

	for {
		size := UINTN(len(buf))
		err := bootService(p.getInfo, unsafe.Pointer(p), unsafe.Pointer(&infoType), unsafe.Pointer(&size), unsafe.Pointer(&buf[0]))

		switch {
		case errors.Is(err, ErrBufferTooSmall) && int(size) > len(buf):
			buf = make([]byte, size)
		case err != nil:
			return nil, err
		default:
			return buf[:min(int(size), len(buf))], nil
		}
	}
}

// Info returns the EFI_FILE_INFO head and the file name.
func (p *FileProtocol) Info() (info FileInfo, name string, err error) {
	buf, err := p.GetInfo(FileInfoGUID)

	if err != nil {
		return
	}

	return ParseFileInfo(buf)
}

// ReadDirEntry reads the next entry of a directory handle, io.EOF marks the
// end of the directory. (§13.5.6)
func (p *FileProtocol) ReadDirEntry() (info FileInfo, name string, err error) {
	if p == nil {
		return info, "", ErrUnavailable
	}

	buf := make([]byte, fileInfoSize)

	for {
		size := UINTN(len(buf))
		err = bootService(p.read, unsafe.Pointer(p), unsafe.Pointer(&size), unsafe.Pointer(&buf[0]))

		switch {
		case errors.Is(err, ErrBufferTooSmall) && int(size) > len(buf):
			buf = make([]byte, size)
			continue
		case err != nil:
			return
		case size == 0:
			return info, "", io.EOF
		}

		return ParseFileInfo(buf[:min(int(size), len(buf))])
	}
}

// ParseFileInfo decodes an EFI_FILE_INFO buffer as returned by GetInfo or a
// directory read.
func ParseFileInfo(buf []byte) (info FileInfo, name string, err error) {
	head := int(unsafe.Sizeof(info))

	if len(buf) < head {
		return info, "", fmt.Errorf("%w: file info of %d bytes", ErrInvalidResult, len(buf))
	}

	info = *(*FileInfo)(unsafe.Pointer(&buf[0]))
	name, err = DecodeString(buf[head : len(buf)&^1])

	return
}

// Flush flushes file data and metadata to the device. (§13.5.12)
func (p *FileProtocol) Flush() error {
	if p == nil {
		return ErrUnavailable
	}

	return bootService(p.flush, unsafe.Pointer(p))
}

//---------------------------------------------------------------------------
//  Info structures (§13.5.13, §13.5.15)
//---------------------------------------------------------------------------

// FileInfo is the EFI_FILE_INFO head, the CHAR16 FileName[] follows it in
// the GetInfo buffer.
type FileInfo struct {
	Size             uint64
	FileSize         uint64
	PhysicalSize     uint64
	CreateTime       Time
	LastAccessTime   Time
	ModificationTime Time
	Attribute        uint64
}

// IsDir reports whether the entry is a directory.
func (i *FileInfo) IsDir() bool {
	return i.Attribute&EFI_FILE_DIRECTORY != 0
}
