package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costinm/efiabi/pkg/uefi"
)

func TestCName(t *testing.T) {
	for name, want := range map[string]string{
		"SystemTable":                   "EFI_SYSTEM_TABLE",
		"SerialIOProtocol":              "EFI_SERIAL_IO_PROTOCOL",
		"GraphicsOutputModeInformation": "EFI_GRAPHICS_OUTPUT_MODE_INFORMATION",
		"SimpleTextOutputMode":          "SIMPLE_TEXT_OUTPUT_MODE",
	} {
		assert.Equal(t, want, cName(name), name)
	}
}

func TestSelectLayouts(t *testing.T) {
	all, err := selectLayouts(nil)
	require.NoError(t, err)
	assert.Len(t, all, len(uefi.Layouts))

	selected, err := selectLayouts([]string{"BootServices", "efi_file_protocol"})
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, "BootServices", selected[0].Name)
	assert.Equal(t, "FileProtocol", selected[1].Name)

	_, err = selectLayouts([]string{"NoSuchProtocol"})
	assert.ErrorContains(t, err, "NoSuchProtocol")
}

func TestRun(t *testing.T) {
	var out bytes.Buffer

	require.NoError(t, run(&out, []string{"InputKey"}, false))
	assert.Contains(t, out.String(), "EFI_INPUT_KEY")
	assert.Contains(t, out.String(), "UnicodeChar")
	assert.NotContains(t, out.String(), "MISMATCH")

	out.Reset()
	require.NoError(t, run(&out, nil, true))
	assert.Empty(t, out.String())
}
