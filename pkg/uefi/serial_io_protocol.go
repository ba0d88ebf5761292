// Serial I/O Protocol (SIOP) – §12.8 UEFI 2.10
package uefi

import (
	"unsafe"
)

// {BB25CF6F-F1D4-11D2-9A0C-0090273FC1FD}
var SerialIOProtocolGUID = MustParseGUID("BB25CF6F-F1D4-11D2-9A0C-0090273FC1FD")

// Parity is EFI_PARITY_TYPE, §12.8 Table 12-3
type Parity uint32

const (
	ParityDefault Parity = iota
	ParityNone
	ParityEven
	ParityOdd
	ParityMark
	ParitySpace
)

// StopBits is EFI_STOP_BITS_TYPE.
type StopBits uint32

const (
	StopBitsDefault StopBits = iota
	StopBits1
	StopBits1_5
	StopBits2
)

// Control-bit masks – §12.8.2
const (
	EFI_SERIAL_DATA_TERMINAL_READY          uint32 = 0x0001
	EFI_SERIAL_REQUEST_TO_SEND              uint32 = 0x0002
	EFI_SERIAL_CLEAR_TO_SEND                uint32 = 0x0010
	EFI_SERIAL_DATA_SET_READY               uint32 = 0x0020
	EFI_SERIAL_RING_INDICATE                uint32 = 0x0040
	EFI_SERIAL_CARRIER_DETECT               uint32 = 0x0080
	EFI_SERIAL_INPUT_BUFFER_EMPTY           uint32 = 0x0100
	EFI_SERIAL_OUTPUT_BUFFER_EMPTY          uint32 = 0x0200
	EFI_SERIAL_HARDWARE_LOOPBACK_ENABLE     uint32 = 0x1000
	EFI_SERIAL_SOFTWARE_LOOPBACK_ENABLE     uint32 = 0x2000
	EFI_SERIAL_HARDWARE_FLOW_CONTROL_ENABLE uint32 = 0x4000
)

// SerialIOMode is SERIAL_IO_MODE, the read-only port settings. §12.8.1
type SerialIOMode struct {
	ControlMask      uint32
	Timeout          uint32
	BaudRate         uint64
	ReceiveFifoDepth uint32
	DataBits         uint32
	Parity           Parity
	StopBits         StopBits
}

// SerialIOProtocol is EFI_SERIAL_IO_PROTOCOL, function table order matches
// §12.8.1
type SerialIOProtocol struct {
	Revision       uint32
	_              uint32
	reset          uintptr // (*this)
	setAttributes  uintptr // (*this, baud, depth, timeout, parity, databits, stopbits)
	setControl     uintptr // (*this, control)
	getControl     uintptr // (*this, *control)
	write          uintptr // (*this, *bufSize, buf)
	read           uintptr // (*this, *bufSize, buf)
	Mode           *SerialIOMode
	DeviceTypeGUID *GUID // revision 1.1 and later
}

// Reset resets the device.
func (p *SerialIOProtocol) Reset() error {
	if p == nil {
		return ErrUnavailable
	}

	return bootService(p.reset, unsafe.Pointer(p))
}

// SetAttributes configures baud rate and frame format. Zero baudRate,
// receiveFifoDepth or timeout select the driver defaults.
func (p *SerialIOProtocol) SetAttributes(baudRate uint64, receiveFifoDepth uint32, timeout uint32, parity Parity, dataBits uint8, stopBits StopBits) error {
	if p == nil {
		return ErrUnavailable
	}

	return bootService(p.setAttributes, unsafe.Pointer(p), baudRate, receiveFifoDepth, timeout, uint32(parity), dataBits, uint32(stopBits))
}

// SetControl sets the control bits.
func (p *SerialIOProtocol) SetControl(control uint32) error {
	if p == nil {
		return ErrUnavailable
	}

	return bootService(p.setControl, unsafe.Pointer(p), control)
}

// GetControl queries the control bits.
func (p *SerialIOProtocol) GetControl() (control uint32, err error) {
	if p == nil {
		return 0, ErrUnavailable
	}

	err = bootService(p.getControl, unsafe.Pointer(p), unsafe.Pointer(&control))

	return
}

// Write writes buf to the port and returns the number of bytes written,
// which is valid on timeout too.
func (p *SerialIOProtocol) Write(buf []byte) (int, error) {
	if p == nil {
		return 0, ErrUnavailable
	}

	if len(buf) == 0 {
		return 0, nil
	}

	size := UINTN(len(buf))
	err := bootService(p.write, unsafe.Pointer(p), unsafe.Pointer(&size), unsafe.Pointer(&buf[0]))

	return int(size), err
}

// Read reads up to len(buf) bytes, firmware returns ErrTimeout when fewer
// bytes arrived within the configured timeout.
func (p *SerialIOProtocol) Read(buf []byte) (int, error) {
	if p == nil {
		return 0, ErrUnavailable
	}

	if len(buf) == 0 {
		return 0, nil
	}

	size := UINTN(len(buf))
	err := bootService(p.read, unsafe.Pointer(p), unsafe.Pointer(&size), unsafe.Pointer(&buf[0]))

	return int(size), err
}
