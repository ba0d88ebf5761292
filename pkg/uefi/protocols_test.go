package uefi_test

import (
	"io"
	"strings"
	"testing"
	"testing/fstest"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costinm/efiabi/pkg/uefi"
	"github.com/costinm/efiabi/pkg/uefi/uefitest"
)

var testModes = []uefi.GraphicsOutputModeInformation{
	{HorizontalResolution: 800, VerticalResolution: 600, PixelFormat: uefi.PixelBlueGreenRedReserved8BitPerColor, PixelsPerScanLine: 800},
	{HorizontalResolution: 1920, VerticalResolution: 1080, PixelFormat: uefi.PixelBlueGreenRedReserved8BitPerColor, PixelsPerScanLine: 1920},
}

func TestGraphicsOutput(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()
	bs := st.BootServices

	_, err := bs.LocateGraphicsOutput()
	assert.ErrorIs(t, err, uefi.ErrNotFound)

	fake := fw.AddGraphicsOutput(testModes...)

	gop, err := bs.LocateGraphicsOutput()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), gop.Mode.MaxMode)

	info, err := gop.QueryMode(bs, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1920), info.HorizontalResolution)
	assert.Equal(t, uint32(1920*1080), info.Pixels())

	// the information buffer is returned to the pool
	assert.Zero(t, fw.Pools())

	_, err = gop.QueryMode(bs, 2)
	assert.ErrorIs(t, err, uefi.ErrInvalidParameter)

	require.NoError(t, gop.SetMode(1))
	assert.Equal(t, uint32(1), gop.Mode.Mode)

	current, err := gop.Info()
	require.NoError(t, err)
	assert.Equal(t, testModes[1], current)

	fill := []uefi.BltPixel{{Blue: 0xff}}
	require.NoError(t, gop.Blt(fill, uefi.BltVideoFill, 0, 0, 0, 0, 1920, 1080, 0))
	require.NoError(t, gop.Blt(nil, uefi.BltVideoToVideo, 0, 0, 0, 16, 1920, 1064, 0))
	assert.ErrorIs(t, gop.Blt(nil, uefi.BltBufferToVideo, 0, 0, 0, 0, 1, 1, 0), uefi.ErrInvalidParameter)
	assert.Equal(t, []uefi.BltOperation{uefi.BltVideoFill, uefi.BltVideoToVideo}, fake.Blts)
}

func TestSerialIO(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()

	fake := fw.AddSerialPort()

	iface, err := st.BootServices.LocateProtocol(uefi.SerialIOProtocolGUID)
	require.NoError(t, err)
	port := (*uefi.SerialIOProtocol)(iface)

	require.NoError(t, port.SetAttributes(9600, 0, 0, uefi.ParityEven, 7, uefi.StopBits2))
	assert.Equal(t, uint64(9600), port.Mode.BaudRate)
	assert.Equal(t, uint32(7), port.Mode.DataBits)
	assert.Equal(t, uefi.ParityEven, port.Mode.Parity)
	assert.Equal(t, uint32(1), port.Mode.ReceiveFifoDepth)

	assert.ErrorIs(t, port.SetAttributes(0, 0, 0, uefi.Parity(9), 8, uefi.StopBits1), uefi.ErrInvalidParameter)

	n, err := port.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("hello"), fake.TX)

	control, err := port.GetControl()
	require.NoError(t, err)
	assert.NotZero(t, control&uefi.EFI_SERIAL_INPUT_BUFFER_EMPTY)

	fake.RX = []byte("ok")

	control, err = port.GetControl()
	require.NoError(t, err)
	assert.Zero(t, control&uefi.EFI_SERIAL_INPUT_BUFFER_EMPTY)

	buf := make([]byte, 4)
	n, err = port.Read(buf)
	assert.ErrorIs(t, err, uefi.ErrTimeout)
	assert.Equal(t, 2, n)
	assert.Equal(t, "ok", string(buf[:n]))

	require.NoError(t, port.SetControl(uefi.EFI_SERIAL_HARDWARE_LOOPBACK_ENABLE))
	require.NoError(t, port.Reset())

	n, err = port.Read(nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testFS() fstest.MapFS {
	mtime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	return fstest.MapFS{
		"EFI/BOOT/BOOTX64.EFI": {Data: []byte("MZboot"), ModTime: mtime},
		"EFI/Linux/vmlinuz":    {Data: []byte("MZkernel image"), ModTime: mtime},
		"loader.conf":          {Data: []byte("timeout 3\n"), ModTime: mtime},
	}
}

func openRoot(t *testing.T, fw *uefitest.Firmware) (*uefi.FileProtocol, *uefitest.FileSystem) {
	t.Helper()

	fake := fw.AddFileSystem(testFS())
	_, st := fw.Open()

	iface, err := st.BootServices.HandleProtocol(fw.Image.DeviceHandle, uefi.SimpleFileSystemProtocolGUID)
	require.NoError(t, err)

	root, err := (*uefi.SimpleFileSystemProtocol)(iface).OpenVolume()
	require.NoError(t, err)

	return root, fake
}

func TestFileRead(t *testing.T) {
	fw := uefitest.New(t)
	root, fake := openRoot(t, fw)

	f, err := root.Open(`\EFI\Linux\vmlinuz`, uefi.EFI_FILE_MODE_READ, 0)
	require.NoError(t, err)

	buf := make([]byte, 8)
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "MZkernel", string(buf[:n]))

	pos, err := f.GetPosition()
	require.NoError(t, err)
	assert.Equal(t, uint64(8), pos)

	n, err = f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, " image", string(buf[:n]))

	n, err = f.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, f.SetPosition(2))
	n, err = f.Read(buf[:6])
	require.NoError(t, err)
	assert.Equal(t, "kernel", string(buf[:n]))

	require.NoError(t, f.SetPosition(uefi.EndOfFile))
	pos, err = f.GetPosition()
	require.NoError(t, err)
	assert.Equal(t, uint64(14), pos)

	require.NoError(t, f.Flush())
	require.NoError(t, f.Close())
	require.NoError(t, root.Close())
	assert.Zero(t, fake.OpenFiles())
}

func TestFileInfo(t *testing.T) {
	fw := uefitest.New(t)
	root, _ := openRoot(t, fw)

	f, err := root.Open(`loader.conf`, uefi.EFI_FILE_MODE_READ, 0)
	require.NoError(t, err)

	info, name, err := f.Info()
	require.NoError(t, err)
	assert.Equal(t, "loader.conf", name)
	assert.Equal(t, uint64(10), info.FileSize)
	assert.False(t, info.IsDir())
	assert.NotZero(t, info.Attribute&uefi.EFI_FILE_READ_ONLY)
	assert.Equal(t, uint16(2024), info.ModificationTime.Year)
	assert.Equal(t, uint64(unsafe.Sizeof(info))+uint64(2*len("loader.conf\x00")), info.Size)

	dir, err := root.Open(`EFI\BOOT`, uefi.EFI_FILE_MODE_READ, 0)
	require.NoError(t, err)

	info, name, err = dir.Info()
	require.NoError(t, err)
	assert.Equal(t, "BOOT", name)
	assert.True(t, info.IsDir())

	_, err = f.GetInfo(uefi.FileSystemInfoGUID)
	assert.ErrorIs(t, err, uefi.ErrUnsupported)
}

func TestReadDirEntry(t *testing.T) {
	fw := uefitest.New(t)
	root, _ := openRoot(t, fw)

	var names []string

	for {
		info, name, err := root.ReadDirEntry()

		if err == io.EOF {
			break
		}

		require.NoError(t, err)
		names = append(names, name)

		if name == "EFI" {
			assert.True(t, info.IsDir())
		}
	}

	assert.Equal(t, []string{"EFI", "loader.conf"}, names)

	// rewinding restarts the listing
	require.NoError(t, root.SetPosition(0))
	_, name, err := root.ReadDirEntry()
	require.NoError(t, err)
	assert.Equal(t, "EFI", name)

	_, _, err = uefi.ParseFileInfo(make([]byte, 10))
	assert.ErrorIs(t, err, uefi.ErrInvalidResult)
}

func TestFileInfoGrowsBuffer(t *testing.T) {
	fw := uefitest.New(t)

	long := "long-" + strings.Repeat("x", 300)

	fw.AddFileSystem(fstest.MapFS{long: {Data: []byte("x")}})
	_, st := fw.Open()

	iface, err := st.BootServices.LocateProtocol(uefi.SimpleFileSystemProtocolGUID)
	require.NoError(t, err)

	root, err := (*uefi.SimpleFileSystemProtocol)(iface).OpenVolume()
	require.NoError(t, err)

	f, err := root.Open(long, uefi.EFI_FILE_MODE_READ, 0)
	require.NoError(t, err)

	_, name, err := f.Info()
	require.NoError(t, err)
	assert.Equal(t, long, name)
	assert.Equal(t, 2, fw.Count("File.GetInfo"))
}

func TestFileReadOnlyVolume(t *testing.T) {
	fw := uefitest.New(t)
	root, fake := openRoot(t, fw)

	_, err := root.Open("new.txt", uefi.EFI_FILE_MODE_READ|uefi.EFI_FILE_MODE_WRITE|uefi.EFI_FILE_MODE_CREATE, 0)
	assert.ErrorIs(t, err, uefi.ErrWriteProtected)

	_, err = root.Open("missing.txt", uefi.EFI_FILE_MODE_READ, 0)
	assert.ErrorIs(t, err, uefi.ErrNotFound)

	f, err := root.Open("loader.conf", uefi.EFI_FILE_MODE_READ, 0)
	require.NoError(t, err)

	n, err := f.Write([]byte("x"))
	assert.ErrorIs(t, err, uefi.ErrWriteProtected)
	assert.Zero(t, n)

	// Delete always closes the handle
	status, err := f.Delete()
	require.NoError(t, err)
	assert.Equal(t, uefi.EFI_WARN_DELETE_FAILURE, status)
	assert.Equal(t, 1, fake.OpenFiles())
}

func TestLoadOptions(t *testing.T) {
	fw := uefitest.New(t)
	fw.SetLoadOptions("--kernel vmlinuz --timeout 3")

	image, st := fw.Open()

	li, err := st.BootServices.LoadedImage(image)
	require.NoError(t, err)

	opts, err := li.Options()
	require.NoError(t, err)
	assert.Equal(t, "--kernel vmlinuz --timeout 3", opts)
	assert.Len(t, li.RawOptions(), 2*len(opts)+2)
}

func TestConfigurationTable(t *testing.T) {
	fw := uefitest.New(t)

	rsdp := []byte("RSD PTR ")
	fw.AddConfigurationTable(uefi.ACPI20TableGUID, unsafe.Pointer(&rsdp[0]))

	_, st := fw.Open()
	require.NoError(t, st.Validate())

	p, err := st.LocateConfiguration(uefi.ACPI20TableGUID)
	require.NoError(t, err)
	assert.Equal(t, "RSD PTR ", string(unsafe.Slice((*byte)(p), 8)))

	_, err = st.LocateConfiguration(uefi.SMBIOS3TableGUID)
	assert.ErrorIs(t, err, uefi.ErrNotFound)
}

func TestBlockIO(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()

	fake := fw.AddDisk(make([]byte, 4*512+100), 512)
	assert.Equal(t, uint64(3), fake.Media.LastBlock)
	assert.Equal(t, uint64(2048), fake.Media.Size())

	iface, err := st.BootServices.HandleProtocol(uefi.Handle{}, uefi.BlockIOProtocolGUID)
	assert.ErrorIs(t, err, uefi.ErrUnsupported)
	assert.True(t, iface == nil)

	iface, err = st.BootServices.LocateProtocol(uefi.BlockIOProtocolGUID)
	require.NoError(t, err)
	bio := (*uefi.BlockIOProtocol)(iface)

	require.NoError(t, bio.Reset(false))
	require.NoError(t, bio.WriteBlocks(1, []byte(strings.Repeat("b", 512))))
	assert.Equal(t, byte('b'), fake.Data[1023])

	buf := make([]byte, 1024)
	require.NoError(t, bio.ReadBlocks(0, buf))
	assert.Equal(t, byte(0), buf[511])
	assert.Equal(t, byte('b'), buf[512])

	assert.ErrorIs(t, bio.ReadBlocks(0, buf[:100]), uefi.ErrBadBufferSize)
	assert.ErrorIs(t, bio.ReadBlocks(3, buf), uefi.ErrInvalidParameter)
	require.NoError(t, bio.ReadBlocks(3, nil))
	require.NoError(t, bio.FlushBlocks())

	fake.Media.ReadOnly = true
	assert.ErrorIs(t, bio.WriteBlocks(0, buf[:512]), uefi.ErrWriteProtected)

	var missing *uefi.BlockIOProtocol
	assert.ErrorIs(t, missing.ReadBlocks(0, buf), uefi.ErrUnavailable)

	var noDisk *uefi.DiskIOProtocol
	assert.ErrorIs(t, noDisk.ReadDisk(1, 0, buf), uefi.ErrUnavailable)
}
