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

var _ io.ReadWriter = (*ueficore.SerialPort)(nil)

func TestEnumerateSerialPorts(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()

	_, err := ueficore.EnumerateSerialPorts(st.BootServices)
	assert.ErrorIs(t, err, uefi.ErrNotFound)

	com1 := fw.AddSerialPort()
	com2 := fw.AddSerialPort()

	ports, err := ueficore.EnumerateSerialPorts(st.BootServices)
	require.NoError(t, err)
	require.Len(t, ports, 2)
	assert.Equal(t, com1.Handle, ports[0].Handle.Raw())
	assert.Equal(t, com1.Protocol, ports[0].Protocol)
	assert.Equal(t, com2.Handle, ports[1].Handle.Raw())
}

func TestSerialPort(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()

	fake := fw.AddSerialPort()

	ports, err := ueficore.EnumerateSerialPorts(st.BootServices)
	require.NoError(t, err)
	port := ports[0]

	require.NoError(t, port.Configure(9600))
	assert.Equal(t, uint64(9600), port.Protocol.Mode.BaudRate)
	assert.Equal(t, uint32(8), port.Protocol.Mode.DataBits)
	assert.Equal(t, uefi.ParityNone, port.Protocol.Mode.Parity)
	assert.Equal(t, uefi.StopBits1, port.Protocol.Mode.StopBits)

	n, err := io.WriteString(port, "boot\r\n")
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "boot\r\n", string(fake.TX))

	fake.RX = []byte("ok")

	buf := make([]byte, 8)
	n, err = port.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(buf[:n]))

	_, err = port.Read(buf)
	assert.ErrorIs(t, err, uefi.ErrTimeout)
}

func TestSerialLogger(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()

	fake := fw.AddSerialPort()

	ports, err := ueficore.EnumerateSerialPorts(st.BootServices)
	require.NoError(t, err)

	log := ueficore.NewConsoleLogger(ports[0], zapInfo)
	log.Info("serial console ready")

	assert.Contains(t, string(fake.TX), "serial console ready")
}
