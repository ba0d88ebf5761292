package ueficore_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costinm/efiabi/pkg/uefi"
	"github.com/costinm/efiabi/pkg/uefi/uefitest"
	"github.com/costinm/efiabi/pkg/ueficore"
)

var _ io.ReadWriter = (*ueficore.Console)(nil)

func TestConsoleWrite(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()

	c := ueficore.NewConsole(st)
	c.ReplaceTabs = 4

	n, err := c.Write([]byte("a\tb\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "a    b\r\n", fw.Output())
}

func TestConsoleWriteSplitRune(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()

	c := ueficore.NewConsole(st)
	b := []byte("é!")

	n, err := c.Write(b[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, fw.Count("ConOut.OutputString"))

	n, err = c.Write(b[1:])
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "é!", fw.Output())
	assert.Equal(t, 1, fw.Count("ConOut.OutputString"))
}

func TestConsoleWriteUnrepresentable(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()

	c := ueficore.NewConsole(st)

	_, err := c.Write([]byte("smile 😀"))
	assert.ErrorIs(t, err, uefi.ErrEncoding)

	_, err = c.Write([]byte{'a', 0xff})
	assert.ErrorIs(t, err, uefi.ErrEncoding)
	assert.Zero(t, fw.Count("ConOut.OutputString"))

	c.Replacement = '?'

	_, err = c.Write([]byte("smile 😀 \xff\x00"))
	require.NoError(t, err)
	assert.Equal(t, "smile ? ??", fw.Output())
}

func TestConsoleRead(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()

	c := ueficore.NewConsole(st)
	fw.PushString("ls\r")

	buf := make([]byte, 16)
	n, err := c.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ls\n", string(buf[:n]))

	c.ForceLine = false
	fw.PushString("\r")

	n, err = c.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "\r", string(buf[:n]))
}

func TestConsoleReadShortBuffer(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()

	c := ueficore.NewConsole(st)
	fw.PushString("héllo")

	buf := make([]byte, 4)

	n, err := c.Read(buf[:1])
	require.NoError(t, err)
	assert.Equal(t, "h", string(buf[:n]))

	n, err = c.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "éll", string(buf[:n]))

	n, err = c.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "o", string(buf[:n]))

	n, err = c.Read(nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConsoleReadScanCodes(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()

	c := ueficore.NewConsole(st)
	fw.PushKey(
		uefi.InputKey{ScanCode: uefi.ScanUp},
		uefi.InputKey{ScanCode: uefi.ScanF1},
		uefi.InputKey{ScanCode: uefi.ScanEsc},
	)

	buf := make([]byte, 16)
	n, err := c.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "\x1b[A\x1b", string(buf[:n]))
}

func TestConsoleReadFails(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()

	// no key pending, the emulated WaitForEvent has nothing to wait for
	c := ueficore.NewConsole(st)

	_, err := c.Read(make([]byte, 1))
	assert.ErrorIs(t, err, uefi.ErrUnsupported)
}
