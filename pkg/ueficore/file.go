package ueficore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/costinm/efiabi/pkg/uefi"
)

// Volume is a read-only fs.FS over a simple file system volume. Names use
// '/' separators as io/fs requires and are translated to EFI paths.
type Volume struct {
	root *uefi.FileProtocol
}

// OpenVolume opens the volume image was loaded from.
func OpenVolume(bs *uefi.BootServices, image uefi.Handle) (*Volume, error) {
	li, err := bs.LoadedImage(image)

	if err != nil {
		return nil, err
	}

	iface, err := bs.HandleProtocol(li.DeviceHandle, uefi.SimpleFileSystemProtocolGUID)

	if err != nil {
		return nil, fmt.Errorf("boot device: %w", err)
	}

	root, err := (*uefi.SimpleFileSystemProtocol)(iface).OpenVolume()

	if err != nil {
		return nil, err
	}

	return &Volume{root: root}, nil
}

// Close closes the volume root.
func (v *Volume) Close() error {
	return v.root.Close()
}

func efiPath(name string) string {
	if name == "." {
		return `\`
	}

	return `\` + strings.ReplaceAll(name, "/", `\`)
}

// Open implements fs.FS.
func (v *Volume) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	f, err := v.root.Open(efiPath(name), uefi.EFI_FILE_MODE_READ, 0)

	if err != nil {
		if errors.Is(err, uefi.ErrNotFound) {
			err = fmt.Errorf("%w: %w", fs.ErrNotExist, err)
		}

		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}

	return &File{proto: f, name: name}, nil
}

// File is an open file or directory of a Volume.
type File struct {
	proto *uefi.FileProtocol
	name  string
}

// Stat implements fs.File.
func (f *File) Stat() (fs.FileInfo, error) {
	info, name, err := f.proto.Info()

	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: f.name, Err: err}
	}

	return &FileInfo{info: info, name: name}, nil
}

// Read implements fs.File.
func (f *File) Read(p []byte) (int, error) {
	n, err := f.proto.Read(p)

	if err != nil {
		return n, &fs.PathError{Op: "read", Path: f.name, Err: err}
	}

	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}

	return n, nil
}

// ReadDir implements fs.ReadDirFile.
func (f *File) ReadDir(n int) ([]fs.DirEntry, error) {
	var entries []fs.DirEntry

	for n <= 0 || len(entries) < n {
		info, name, err := f.proto.ReadDirEntry()

		if err == io.EOF {
			break
		}

		if err != nil {
			return entries, &fs.PathError{Op: "readdir", Path: f.name, Err: err}
		}

		if name == "." || name == ".." {
			continue
		}

		entries = append(entries, fs.FileInfoToDirEntry(&FileInfo{info: info, name: name}))
	}

	if n > 0 && len(entries) == 0 {
		return nil, io.EOF
	}

	return entries, nil
}

// Close implements fs.File.
func (f *File) Close() error {
	return f.proto.Close()
}

// FileInfo is the fs.FileInfo view of an EFI_FILE_INFO.
type FileInfo struct {
	info uefi.FileInfo
	name string
}

func (i *FileInfo) Name() string       { return i.name }
func (i *FileInfo) Size() int64        { return int64(i.info.FileSize) }
func (i *FileInfo) ModTime() time.Time { return i.info.ModificationTime.GoTime() }
func (i *FileInfo) IsDir() bool        { return i.info.IsDir() }
func (i *FileInfo) Sys() any           { return &i.info }

func (i *FileInfo) Mode() fs.FileMode {
	mode := fs.FileMode(0o444)

	if i.info.Attribute&uefi.EFI_FILE_READ_ONLY == 0 {
		mode |= 0o222
	}

	if i.IsDir() {
		mode |= fs.ModeDir | 0o111
	}

	return mode
}

// ReadFile reads a whole file from the volume image was loaded from. Both
// EFI ('\') and slash separated paths are accepted.
func ReadFile(bs *uefi.BootServices, image uefi.Handle, path string) ([]byte, error) {
	vol, err := OpenVolume(bs, image)

	if err != nil {
		return nil, err
	}

	defer vol.Close()

	name := strings.Trim(strings.ReplaceAll(path, `\`, "/"), "/")

	if name == "" {
		name = "."
	}

	return fs.ReadFile(vol, name)
}
