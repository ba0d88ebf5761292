package uefi_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costinm/efiabi/pkg/uefi"
	"github.com/costinm/efiabi/pkg/uefi/uefitest"
)

func TestOpen(t *testing.T) {
	fw := uefitest.New(t)

	image, st, err := uefi.Open(fw.ImageHandle(), fw.SystemTable())
	require.NoError(t, err)
	assert.Equal(t, fw.ImageHandle(), image.Raw())
	assert.Equal(t, fw.ST, st)
	require.NoError(t, st.Validate())
	require.NoError(t, st.BootServices.Validate())
	require.NoError(t, st.RuntimeServices.Validate())

	vendor, err := st.Vendor()
	require.NoError(t, err)
	assert.Equal(t, uefitest.Vendor, vendor)
	assert.Equal(t, "2.10", st.Hdr.RevisionString())
}

func TestOpenRejects(t *testing.T) {
	_, _, err := uefi.Open(1, 0)
	assert.ErrorIs(t, err, uefi.ErrInvalidParameter)

	var bogus uefi.SystemTable
	_, _, err = uefi.Open(1, uintptr(unsafe.Pointer(&bogus)))
	assert.ErrorIs(t, err, uefi.ErrLoadError)
}

func TestRun(t *testing.T) {
	fw := uefitest.New(t)

	var got uefi.Handle

	status := uefi.Run(fw.ImageHandle(), fw.SystemTable(), func(image uefi.Handle, st *uefi.SystemTable) uefi.Status {
		got = image
		return uefi.EFI_WARN_RESET_REQUIRED
	})

	assert.Equal(t, uefi.EFI_WARN_RESET_REQUIRED, status)
	assert.Equal(t, fw.ImageHandle(), got.Raw())

	called := false
	entry := func(uefi.Handle, *uefi.SystemTable) uefi.Status {
		called = true
		return uefi.EFI_SUCCESS
	}

	assert.Equal(t, uefi.EFI_INVALID_PARAMETER, uefi.Run(1, 0, entry))

	var bogus uefi.SystemTable
	assert.Equal(t, uefi.EFI_LOAD_ERROR, uefi.Run(1, uintptr(unsafe.Pointer(&bogus)), entry))
	assert.False(t, called)
}

func TestOutputString(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()

	status, err := st.ConOut.OutputString("Hello\r\n")
	require.NoError(t, err)
	assert.Equal(t, uefi.EFI_SUCCESS, status)

	assert.Equal(t, "Hello\r\n", fw.Output())
	assert.Equal(t, []byte{'H', 0, 'e', 0, 'l', 0, 'l', 0, 'o', 0, '\r', 0, '\n', 0}, fw.RawOutput())
	assert.Equal(t, []string{"ConOut.OutputString"}, fw.CallNames())

	mode, err := st.ConOut.CurrentMode()
	require.NoError(t, err)
	assert.Equal(t, int32(0), mode.CursorColumn)
	assert.Equal(t, int32(1), mode.CursorRow)
}

func TestOutputStringWarning(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()

	status, err := st.ConOut.OutputString("logo \ue000")
	require.NoError(t, err)
	assert.Equal(t, uefi.EFI_WARN_UNKNOWN_GLYPH, status)
	assert.True(t, status.IsWarning())
}

func TestOutputStringEncodingError(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()

	_, err := st.ConOut.OutputString("emoji 😀")
	assert.ErrorIs(t, err, uefi.ErrEncoding)
	assert.Zero(t, fw.Count("ConOut.OutputString"))
}

func TestTextOutput(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()
	out := st.ConOut

	cols, rows, err := out.QueryMode(1)
	require.NoError(t, err)
	assert.Equal(t, uefi.UINTN(80), cols)
	assert.Equal(t, uefi.UINTN(50), rows)

	_, _, err = out.QueryMode(7)
	assert.ErrorIs(t, err, uefi.ErrUnsupported)

	require.NoError(t, out.SetMode(2))
	require.NoError(t, out.SetCursorPosition(99, 30))
	assert.ErrorIs(t, out.SetCursorPosition(100, 0), uefi.ErrUnsupported)

	attr, err := uefi.NewAttribute(uefi.Yellow, uefi.Blue)
	require.NoError(t, err)
	require.NoError(t, out.SetAttribute(attr))
	require.NoError(t, out.EnableCursor(false))

	mode, err := out.CurrentMode()
	require.NoError(t, err)
	assert.Equal(t, int32(2), mode.Mode)
	assert.Equal(t, attr, mode.CurrentAttribute())
	assert.False(t, mode.CursorVisible)
	assert.Equal(t, int32(99), mode.CursorColumn)

	require.NoError(t, out.ClearScreen())
	require.NoError(t, out.TestString("test"))
	require.NoError(t, out.Reset(false))

	mode, err = out.CurrentMode()
	require.NoError(t, err)
	assert.Zero(t, mode.CursorColumn)
	assert.Zero(t, mode.CursorRow)

	calls := fw.Calls()
	require.NotEmpty(t, calls)

	// the attribute reaches firmware as the packed EFI_TEXT_ATTR word
	for _, c := range calls {
		if c.Name == "ConOut.SetAttribute" {
			assert.Equal(t, uint64(0x1e), c.Args[1])
		}
	}
}

func TestTextInput(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()

	_, err := st.ConIn.ReadKeyStroke()
	assert.ErrorIs(t, err, uefi.ErrNotReady)

	fw.PushString("y")
	fw.PushKey(uefi.InputKey{ScanCode: uefi.ScanEsc})

	key, err := st.ConIn.ReadKey(st.BootServices)
	require.NoError(t, err)
	assert.Equal(t, 'y', key.Rune())
	assert.Equal(t, `'y'`, key.String())

	key, err = st.ConIn.ReadKeyStroke()
	require.NoError(t, err)
	assert.Equal(t, uefi.ScanEsc, key.ScanCode)
	assert.Equal(t, "scan(0x17)", key.String())

	fw.PushString("abc")
	require.NoError(t, st.ConIn.Reset(true))

	_, err = st.ConIn.ReadKeyStroke()
	assert.ErrorIs(t, err, uefi.ErrNotReady)
	assert.Equal(t, []string{"ConIn.ReadKeyStroke", "BS.WaitForEvent", "ConIn.ReadKeyStroke",
		"ConIn.ReadKeyStroke", "ConIn.Reset", "ConIn.ReadKeyStroke"}, fw.CallNames())
}

func TestNilProtocols(t *testing.T) {
	fw := uefitest.New(t)

	var out *uefi.SimpleTextOutputProtocol
	var in *uefi.SimpleTextInputProtocol
	var bs *uefi.BootServices
	var rs *uefi.RuntimeServices
	var gop *uefi.GraphicsOutputProtocol
	var serial *uefi.SerialIOProtocol
	var sfs *uefi.SimpleFileSystemProtocol
	var file *uefi.FileProtocol
	var image *uefi.LoadedImageProtocol

	_, err := out.OutputString("x")
	assert.ErrorIs(t, err, uefi.ErrUnavailable)
	assert.ErrorIs(t, out.ClearScreen(), uefi.ErrUnavailable)
	_, err = out.CurrentMode()
	assert.ErrorIs(t, err, uefi.ErrUnavailable)

	_, err = in.ReadKeyStroke()
	assert.ErrorIs(t, err, uefi.ErrUnavailable)

	_, err = bs.AllocatePool(uefi.LoaderData, 8)
	assert.ErrorIs(t, err, uefi.ErrUnavailable)
	_, err = bs.GetMemoryMap()
	assert.ErrorIs(t, err, uefi.ErrUnavailable)
	assert.ErrorIs(t, bs.Stall(1), uefi.ErrUnavailable)

	_, _, err = rs.GetTime()
	assert.ErrorIs(t, err, uefi.ErrUnavailable)
	_, _, err = rs.GetVariable("x", uefi.GlobalVariableGUID)
	assert.ErrorIs(t, err, uefi.ErrUnavailable)

	assert.ErrorIs(t, gop.SetMode(0), uefi.ErrUnavailable)
	_, err = serial.Write([]byte("x"))
	assert.ErrorIs(t, err, uefi.ErrUnavailable)
	_, err = sfs.OpenVolume()
	assert.ErrorIs(t, err, uefi.ErrUnavailable)
	assert.ErrorIs(t, file.Close(), uefi.ErrUnavailable)
	_, err = image.Options()
	assert.ErrorIs(t, err, uefi.ErrUnavailable)

	assert.Empty(t, fw.Calls())
}

func TestNullFunctionPointer(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()

	fw.Unbind(unsafe.Pointer(fw.ConOut), "SimpleTextOutputProtocol", "ClearScreen")

	assert.ErrorIs(t, st.ConOut.ClearScreen(), uefi.ErrUnavailable)

	_, err := st.ConOut.OutputString("still works")
	require.NoError(t, err)
	assert.Equal(t, []string{"ConOut.OutputString"}, fw.CallNames())
}

func TestNoInvoker(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()

	previous := uefi.SetInvoker(nil)
	defer uefi.SetInvoker(previous)

	_, err := st.ConOut.OutputString("x")
	assert.ErrorIs(t, err, uefi.ErrUnavailable)
}
