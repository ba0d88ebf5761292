package uefitest

import (
	"io/fs"
	"path"
	"strings"
	"unsafe"

	"github.com/costinm/efiabi/pkg/uefi"
)

// FileSystem is an emulated read-only volume backed by an fs.FS.
type FileSystem struct {
	Handle   uintptr
	Protocol *uefi.SimpleFileSystemProtocol

	fsys     fs.FS
	template uefi.FileProtocol
	open     map[uintptr]*openFile
}

type openFile struct {
	proto *uefi.FileProtocol
	name  string
	info  fs.FileInfo
	data  []byte
	pos   uint64
	// entries holds the remaining directory entries
	entries []fs.DirEntry
}

// AddFileSystem installs a simple file system protocol serving fsys, on
// the device handle of the running image.
func (fw *Firmware) AddFileSystem(fsys fs.FS) *FileSystem {
	v := &FileSystem{
		Handle:   fw.NewHandle(),
		Protocol: &uefi.SimpleFileSystemProtocol{Revision: 0x00010000},
		fsys:     fsys,
		open:     make(map[uintptr]*openFile),
	}

	fw.keep = append(fw.keep, v)

	fw.bind(unsafe.Pointer(v.Protocol), "SimpleFileSystemProtocol", "SFS", "OpenVolume", func(args []uint64) uefi.Status {
		f, status := v.newFile(".")

		if status.IsError() {
			return status
		}

		setPointer(args[1], unsafe.Pointer(f.proto))

		return uefi.EFI_SUCCESS
	})

	v.bindFile(fw)

	fw.Install(v.Handle, uefi.SimpleFileSystemProtocolGUID, unsafe.Pointer(v.Protocol))
	setWord(unsafe.Pointer(&fw.Image.DeviceHandle), v.Handle)

	return v
}

// OpenFiles returns the number of open file handles.
func (v *FileSystem) OpenFiles() int {
	return len(v.open)
}

func (v *FileSystem) newFile(name string) (*openFile, uefi.Status) {
	info, err := fs.Stat(v.fsys, name)

	if err != nil {
		return nil, uefi.EFI_NOT_FOUND
	}

	f := &openFile{
		proto: new(uefi.FileProtocol),
		name:  name,
		info:  info,
	}

	// every handle shares the service addresses bound on the template
	*f.proto = v.template

	if info.IsDir() {
		if f.entries, err = fs.ReadDir(v.fsys, name); err != nil {
			return nil, uefi.EFI_DEVICE_ERROR
		}
	} else if f.data, err = fs.ReadFile(v.fsys, name); err != nil {
		return nil, uefi.EFI_DEVICE_ERROR
	}

	v.open[uintptr(unsafe.Pointer(f.proto))] = f

	return f, uefi.EFI_SUCCESS
}

func (v *FileSystem) file(this uint64) *openFile {
	return v.open[uintptr(this)]
}

// resolve joins an EFI path to the directory dir, '\' separated and
// absolute when it starts with a separator.
func resolve(dir string, name string) string {
	name = strings.ReplaceAll(name, `\`, "/")

	if strings.HasPrefix(name, "/") {
		dir = "."
	}

	p := path.Join(dir, strings.TrimPrefix(name, "/"))

	if p == "" || p == "/" {
		return "."
	}

	return p
}

func (v *FileSystem) bindFile(fw *Firmware) {
	t := unsafe.Pointer(&v.template)
	const l = "FileProtocol"

	bind := func(field string, fn func(f *openFile, args []uint64) uefi.Status) {
		fw.bind(t, l, "File", field, func(args []uint64) uefi.Status {
			f := v.file(args[0])

			if f == nil {
				return uefi.EFI_INVALID_PARAMETER
			}

			return fn(f, args)
		})
	}

	bind("Open", func(f *openFile, args []uint64) uefi.Status {
		if args[3]&(uefi.EFI_FILE_MODE_WRITE|uefi.EFI_FILE_MODE_CREATE) != 0 {
			return uefi.EFI_WRITE_PROTECTED
		}

		if !f.info.IsDir() {
			return uefi.EFI_INVALID_PARAMETER
		}

		n, status := v.newFile(resolve(f.name, readString(args[2])))

		if status.IsError() {
			return status
		}

		setPointer(args[1], unsafe.Pointer(n.proto))

		return uefi.EFI_SUCCESS
	})

	bind("Close", func(f *openFile, args []uint64) uefi.Status {
		delete(v.open, uintptr(args[0]))
		return uefi.EFI_SUCCESS
	})

	bind("Delete", func(f *openFile, args []uint64) uefi.Status {
		delete(v.open, uintptr(args[0]))
		return uefi.EFI_WARN_DELETE_FAILURE
	})

	bind("Read", func(f *openFile, args []uint64) uefi.Status {
		if f.info.IsDir() {
			return f.readDir(args[1], args[2])
		}

		size := getUINTN(args[1])

		if f.pos >= uint64(len(f.data)) {
			setUINTN(args[1], 0)
			return uefi.EFI_SUCCESS
		}

		n := copy(buffer(args[2], size), f.data[f.pos:])
		f.pos += uint64(n)
		setUINTN(args[1], uint64(n))

		return uefi.EFI_SUCCESS
	})

	bind("Write", func(f *openFile, args []uint64) uefi.Status {
		setUINTN(args[1], 0)
		return uefi.EFI_WRITE_PROTECTED
	})

	bind("GetPosition", func(f *openFile, args []uint64) uefi.Status {
		if f.info.IsDir() {
			return uefi.EFI_UNSUPPORTED
		}

		*(*uint64)(ptr(args[1])) = f.pos

		return uefi.EFI_SUCCESS
	})

	bind("SetPosition", func(f *openFile, args []uint64) uefi.Status {
		pos := args[1]

		if f.info.IsDir() {
			if pos != 0 {
				return uefi.EFI_UNSUPPORTED
			}

			f.entries, _ = fs.ReadDir(v.fsys, f.name)

			return uefi.EFI_SUCCESS
		}

		if pos == uefi.EndOfFile {
			pos = uint64(len(f.data))
		}

		f.pos = pos

		return uefi.EFI_SUCCESS
	})

	bind("GetInfo", func(f *openFile, args []uint64) uefi.Status {
		if readGUID(args[1]) != uefi.FileInfoGUID {
			return uefi.EFI_UNSUPPORTED
		}

		name := path.Base(f.name)

		if f.name == "." {
			name = ""
		}

		return putFileInfo(f.info, name, args[2], args[3])
	})

	bind("SetInfo", func(f *openFile, args []uint64) uefi.Status {
		return uefi.EFI_WRITE_PROTECTED
	})

	bind("Flush", func(f *openFile, args []uint64) uefi.Status {
		return uefi.EFI_SUCCESS
	})
}

// readDir returns the next directory entry as an EFI_FILE_INFO, a zero
// size marks the end of the directory.
func (f *openFile) readDir(sizeArg uint64, buf uint64) uefi.Status {
	if len(f.entries) == 0 {
		setUINTN(sizeArg, 0)
		return uefi.EFI_SUCCESS
	}

	info, err := f.entries[0].Info()

	if err != nil {
		return uefi.EFI_DEVICE_ERROR
	}

	status := putFileInfo(info, f.entries[0].Name(), sizeArg, buf)

	if status == uefi.EFI_SUCCESS {
		f.entries = f.entries[1:]
	}

	return status
}

// putFileInfo writes an EFI_FILE_INFO for info to buf, sizeArg points to
// the buffer size and receives the required size.
func putFileInfo(info fs.FileInfo, name string, sizeArg uint64, buf uint64) uefi.Status {
	encoded, err := uefi.EncodeString(name)

	if err != nil {
		return uefi.EFI_DEVICE_ERROR
	}

	head := uint64(unsafe.Sizeof(uefi.FileInfo{}))
	need := head + uint64(len(encoded))
	size := getUINTN(sizeArg)

	setUINTN(sizeArg, need)

	if size < need || buf == 0 {
		return uefi.EFI_BUFFER_TOO_SMALL
	}

	modified := uefi.TimeOf(info.ModTime())
	fi := uefi.FileInfo{
		Size:             need,
		FileSize:         uint64(info.Size()),
		PhysicalSize:     (uint64(info.Size()) + 511) &^ 511,
		CreateTime:       modified,
		LastAccessTime:   modified,
		ModificationTime: modified,
		Attribute:        uefi.EFI_FILE_READ_ONLY,
	}

	if info.IsDir() {
		fi.FileSize = 0
		fi.PhysicalSize = 0
		fi.Attribute |= uefi.EFI_FILE_DIRECTORY
	}

	out := buffer(buf, need)
	*(*uefi.FileInfo)(unsafe.Pointer(&out[0])) = fi
	copy(out[head:], encoded)

	return uefi.EFI_SUCCESS
}
