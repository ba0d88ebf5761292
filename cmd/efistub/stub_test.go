package main

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/costinm/efiabi/pkg/uefi"
	"github.com/costinm/efiabi/pkg/uefi/uefitest"
	"github.com/costinm/efiabi/pkg/ueficore"
)

func TestParseOptions(t *testing.T) {
	cfg, err := parseOptions(`\EFI\BOOT\EFISTUB.EFI --kernel \EFI\Linux\vmlinuz -t 3s --serial --no-watchdog -- root=/dev/sda2 quiet`)
	require.NoError(t, err)

	assert.Equal(t, &config{
		Kernel:     `\EFI\Linux\vmlinuz`,
		Cmdline:    "root=/dev/sda2 quiet",
		Timeout:    3 * time.Second,
		Serial:     true,
		NoWatchdog: true,
	}, cfg)

	cfg, err = parseOptions("")
	require.NoError(t, err)
	assert.Equal(t, &config{}, cfg)

	cfg, err = parseOptions("-d --cmdline console=ttyS0 quiet")
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "console=ttyS0 quiet", cfg.Cmdline)

	_, err = parseOptions("--bogus")
	assert.ErrorContains(t, err, "unknown flag")

	_, err = parseOptions("--timeout soon")
	assert.Error(t, err)
}

func newFirmware(t *testing.T, opts string) *uefitest.Firmware {
	t.Cleanup(func() { ueficore.SetLogger(zap.NewNop()) })

	fw := uefitest.New(t)
	fw.SetLoadOptions(opts)

	return fw
}

func TestRunReportsFirmware(t *testing.T) {
	fw := newFirmware(t, "")
	image, st := fw.Open()

	assert.Equal(t, uefi.EFI_SUCCESS, run(image, st))

	out := fw.Output()
	assert.Contains(t, out, "efistub")
	assert.Contains(t, out, uefitest.Vendor)
	assert.Contains(t, out, "UEFI 2.10")
	assert.Contains(t, out, "Conventional")
	assert.Contains(t, out, "8 regions")
	assert.Zero(t, fw.Count("BS.LoadImage"))
	assert.Equal(t, uint64(300), fw.Watchdog())
}

func TestRunChainloads(t *testing.T) {
	fw := newFirmware(t, `--kernel \EFI\Linux\vmlinuz --no-watchdog -d -- quiet`)
	fw.AddFileSystem(fstest.MapFS{
		"EFI/Linux/vmlinuz": {Data: []byte("MZkernel")},
	})
	fw.AddGraphicsOutput(uefi.GraphicsOutputModeInformation{HorizontalResolution: 1280, VerticalResolution: 800})
	fw.AddDisk(make([]byte, 1<<20), 512)
	fw.AddNetwork([]byte{0x52, 0x54, 0x00, 0xab, 0xcd, 0xef})

	image, st := fw.Open()

	assert.Equal(t, uefi.EFI_SUCCESS, run(image, st))
	assert.Zero(t, fw.Watchdog())

	images := fw.Images()
	require.Len(t, images, 1)
	assert.Equal(t, "quiet", images[0].Options)

	out := fw.Output()
	assert.Contains(t, out, "chainloading")
	assert.Contains(t, out, "1280")
	assert.Contains(t, out, "1.0 MiB, 512 byte blocks")
	assert.Contains(t, out, "52:54:00:ab:cd:ef")
	assert.Contains(t, out, "starting image")
}

func TestRunMissingKernel(t *testing.T) {
	fw := newFirmware(t, `--kernel \EFI\Linux\missing`)
	fw.AddFileSystem(fstest.MapFS{})

	image, st := fw.Open()

	assert.Equal(t, uefi.EFI_NOT_FOUND, run(image, st))
	assert.Contains(t, fw.Output(), "reading kernel")
}

func TestRunCancelled(t *testing.T) {
	fw := newFirmware(t, `--kernel \EFI\Linux\vmlinuz --timeout 1m`)
	fw.PushString("x")

	image, st := fw.Open()

	assert.Equal(t, uefi.EFI_ABORTED, run(image, st))
	assert.Contains(t, fw.Output(), "cancelled by 'x'")
	assert.Zero(t, fw.Count("BS.LoadImage"))
}

func TestRunInvalidOptions(t *testing.T) {
	fw := newFirmware(t, "--bogus")
	image, st := fw.Open()

	assert.Equal(t, uefi.EFI_INVALID_PARAMETER, run(image, st))
	assert.Contains(t, fw.Output(), "unknown flag")
	assert.Contains(t, fw.Output(), "--kernel")
}

func TestRunSerial(t *testing.T) {
	fw := newFirmware(t, "--serial")
	port := fw.AddSerialPort()

	image, st := fw.Open()

	assert.Equal(t, uefi.EFI_SUCCESS, run(image, st))
	assert.Equal(t, uint64(serialBaud), port.Protocol.Mode.BaudRate)
	assert.Contains(t, string(port.TX), "efistub")
	assert.Contains(t, fw.Output(), "efistub")
}

func TestRunSerialMissing(t *testing.T) {
	fw := newFirmware(t, "--serial")
	image, st := fw.Open()

	assert.Equal(t, uefi.EFI_SUCCESS, run(image, st))
	assert.Contains(t, fw.Output(), "no serial port")
}

func TestVerify(t *testing.T) {
	image := []byte("MZkernel")
	sum := sha256.Sum256(image)
	digest := hex.EncodeToString(sum[:])

	require.NoError(t, verify(image, ""))
	require.NoError(t, verify(image, digest))
	assert.ErrorContains(t, verify([]byte("MZother"), digest), "digest mismatch")
	assert.ErrorContains(t, verify(image, "abcd"), "invalid digest")
	assert.ErrorContains(t, verify(image, "not hex"), "invalid digest")
}

func TestRunRejectsDigest(t *testing.T) {
	sum := sha256.Sum256([]byte("MZexpected"))

	fw := newFirmware(t, `--kernel vmlinuz --sha256 `+hex.EncodeToString(sum[:]))
	fw.AddFileSystem(fstest.MapFS{
		"vmlinuz": {Data: []byte("MZtampered")},
	})

	image, st := fw.Open()

	assert.Equal(t, uefi.EFI_SECURITY_VIOLATION, run(image, st))
	assert.Contains(t, fw.Output(), "kernel rejected")
	assert.Zero(t, fw.Count("BS.LoadImage"))
}
