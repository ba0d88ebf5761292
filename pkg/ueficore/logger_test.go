package ueficore_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/costinm/efiabi/pkg/uefi/uefitest"
	"github.com/costinm/efiabi/pkg/ueficore"
)

const zapInfo = zapcore.InfoLevel

func TestLoggerDefault(t *testing.T) {
	require.NotNil(t, ueficore.Logger())
}

func TestSetLoggerNil(t *testing.T) {
	t.Cleanup(func() { ueficore.SetLogger(nil) })

	ueficore.Logger()
	ueficore.SetLogger(nil)

	require.NotNil(t, ueficore.Logger())
	assert.NotPanics(t, func() { ueficore.Logger().Debug("after reset") })
}

func TestNewConsoleLogger(t *testing.T) {
	var buf bytes.Buffer

	log := ueficore.NewConsoleLogger(&buf, zapInfo)
	log.Info("booting", zap.String("kernel", "vmlinuz"))
	log.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "booting")
	assert.Contains(t, out, `"kernel": "vmlinuz"`)
	assert.NotContains(t, out, "hidden")
}

func TestConsoleLoggerOnConOut(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()

	log := ueficore.NewConsoleLogger(ueficore.NewConsole(st), zapcore.DebugLevel)
	log.Debug("memory map", zap.Int("regions", 8))

	out := fw.Output()
	assert.Contains(t, out, "DEBUG")
	assert.Contains(t, out, "memory map")
	assert.Contains(t, out, "\r\n")
}
