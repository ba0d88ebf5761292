package ueficore

import (
	"errors"
	"fmt"

	"github.com/costinm/efiabi/pkg/uefi"
)

// SerialPort is an io.ReadWriter over a serial I/O protocol instance.
type SerialPort struct {
	Handle   uefi.Handle
	Protocol *uefi.SerialIOProtocol
}

// EnumerateSerialPorts returns every serial I/O protocol instance, in
// handle order.
func EnumerateSerialPorts(bs *uefi.BootServices) ([]*SerialPort, error) {
	handles, err := bs.LocateHandleBuffer(uefi.ByProtocol, &uefi.SerialIOProtocolGUID)

	if err != nil {
		return nil, err
	}

	ports := make([]*SerialPort, 0, len(handles))

	for _, h := range handles {
		iface, err := bs.HandleProtocol(h, uefi.SerialIOProtocolGUID)

		if err != nil {
			return nil, fmt.Errorf("serial port %v: %w", h, err)
		}

		ports = append(ports, &SerialPort{Handle: h, Protocol: (*uefi.SerialIOProtocol)(iface)})
	}

	return ports, nil
}

// Configure sets the port to baud, 8 data bits, no parity and one stop bit,
// the other settings keep their firmware default.
func (p *SerialPort) Configure(baud uint64) error {
	return p.Protocol.SetAttributes(baud, 0, 0, uefi.ParityNone, 8, uefi.StopBits1)
}

// Write writes all of buf, repeating the firmware call while bytes are
// accepted.
func (p *SerialPort) Write(buf []byte) (n int, err error) {
	for n < len(buf) {
		m, err := p.Protocol.Write(buf[n:])
		n += m

		if err != nil {
			return n, err
		}

		if m == 0 {
			return n, uefi.ErrTimeout
		}
	}

	return n, nil
}

// Read returns the bytes received before the port timeout. It fails with
// uefi.ErrTimeout only when nothing was received.
func (p *SerialPort) Read(buf []byte) (int, error) {
	n, err := p.Protocol.Read(buf)

	if errors.Is(err, uefi.ErrTimeout) && n > 0 {
		err = nil
	}

	return n, err
}
