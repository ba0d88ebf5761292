// Simple Network Protocol §24.1
package uefi

import (
	"net"
	"unsafe"
)

// {A19832B9-AC25-11D3-9A2D-0090273FC14D}
var SimpleNetworkProtocolGUID = MustParseGUID("A19832B9-AC25-11D3-9A2D-0090273FC14D")

// NetworkState is EFI_SIMPLE_NETWORK_STATE.
type NetworkState uint32

const (
	NetworkStopped NetworkState = iota
	NetworkStarted
	NetworkInitialized
)

// Receive filter bits.
const (
	EFI_SIMPLE_NETWORK_RECEIVE_UNICAST               uint32 = 0x01
	EFI_SIMPLE_NETWORK_RECEIVE_MULTICAST             uint32 = 0x02
	EFI_SIMPLE_NETWORK_RECEIVE_BROADCAST             uint32 = 0x04
	EFI_SIMPLE_NETWORK_RECEIVE_PROMISCUOUS           uint32 = 0x08
	EFI_SIMPLE_NETWORK_RECEIVE_PROMISCUOUS_MULTICAST uint32 = 0x10
)

// Interrupt status bits returned by GetStatus.
const (
	EFI_SIMPLE_NETWORK_RECEIVE_INTERRUPT  uint32 = 0x01
	EFI_SIMPLE_NETWORK_TRANSMIT_INTERRUPT uint32 = 0x02
	EFI_SIMPLE_NETWORK_COMMAND_INTERRUPT  uint32 = 0x04
	EFI_SIMPLE_NETWORK_SOFTWARE_INTERRUPT uint32 = 0x08
)

// MACAddress is EFI_MAC_ADDRESS, padded to 32 bytes. Only the first
// HwAddressSize bytes are valid.
type MACAddress [32]byte

// SimpleNetworkMode is EFI_SIMPLE_NETWORK_MODE.
type SimpleNetworkMode struct {
	State                 NetworkState
	HwAddressSize         uint32
	MediaHeaderSize       uint32
	MaxPacketSize         uint32
	NvRamSize             uint32
	NvRamAccessSize       uint32
	ReceiveFilterMask     uint32
	ReceiveFilterSetting  uint32
	MaxMCastFilterCount   uint32
	MCastFilterCount      uint32
	MCastFilter           [16]MACAddress
	CurrentAddress        MACAddress
	BroadcastAddress      MACAddress
	PermanentAddress      MACAddress
	IfType                uint8
	MacAddressChangeable  bool
	MultipleTxSupported   bool
	MediaPresentSupported bool
	MediaPresent          bool
}

// HardwareAddr returns the valid bytes of a.
func (m *SimpleNetworkMode) HardwareAddr(a MACAddress) net.HardwareAddr {
	n := min(int(m.HwAddressSize), len(a))
	return net.HardwareAddr(append([]byte(nil), a[:n]...))
}

// SimpleNetworkProtocol is EFI_SIMPLE_NETWORK_PROTOCOL.
type SimpleNetworkProtocol struct {
	Revision       uint64
	start          uintptr // (*this)
	stop           uintptr // (*this)
	initialize     uintptr // (*this, extraRxBufferSize, extraTxBufferSize)
	reset          uintptr // (*this, extendedVerification)
	shutdown       uintptr // (*this)
	receiveFilters uintptr // (*this, enable, disable, resetMCastFilter, mCastFilterCnt, mCastFilter)
	stationAddress uintptr // (*this, reset, *new)
	statistics     uintptr // (*this, reset, *size, *table)
	mCastIPToMAC   uintptr // (*this, ipv6, *ip, *mac)
	nvData         uintptr // (*this, readWrite, offset, size, buffer)
	getStatus      uintptr // (*this, *interruptStatus, **txBuf)
	transmit       uintptr // (*this, headerSize, bufferSize, buffer, *src, *dest, *protocol)
	receive        uintptr // (*this, *headerSize, *bufferSize, buffer, *src, *dest, *protocol)
	WaitForPacket  Event
	Mode           *SimpleNetworkMode
}

// Start moves the interface from the stopped to the started state.
func (p *SimpleNetworkProtocol) Start() error {
	if p == nil {
		return ErrUnavailable
	}

	return bootService(p.start, unsafe.Pointer(p))
}

// Stop moves the interface to the stopped state.
func (p *SimpleNetworkProtocol) Stop() error {
	if p == nil {
		return ErrUnavailable
	}

	return bootService(p.stop, unsafe.Pointer(p))
}

// Initialize allocates transmit and receive buffers, the interface must be
// started.
func (p *SimpleNetworkProtocol) Initialize() error {
	if p == nil {
		return ErrUnavailable
	}

	return bootService(p.initialize, unsafe.Pointer(p), UINTN(0), UINTN(0))
}

// Shutdown releases the buffers allocated by Initialize.
func (p *SimpleNetworkProtocol) Shutdown() error {
	if p == nil {
		return ErrUnavailable
	}

	return bootService(p.shutdown, unsafe.Pointer(p))
}

// ReceiveFilters enables and disables receive filter bits.
func (p *SimpleNetworkProtocol) ReceiveFilters(enable, disable uint32) error {
	if p == nil {
		return ErrUnavailable
	}

	return bootService(p.receiveFilters, unsafe.Pointer(p), enable, disable, false, UINTN(0), nil)
}

// GetStatus returns the pending interrupt bits and the address of a
// recycled transmit buffer, zero when none completed.
func (p *SimpleNetworkProtocol) GetStatus() (interrupts uint32, txBuf uintptr, err error) {
	if p == nil {
		return 0, 0, ErrUnavailable
	}

	err = bootService(p.getStatus, unsafe.Pointer(p), unsafe.Pointer(&interrupts), unsafe.Pointer(&txBuf))

	return
}

// Transmit queues frame, which must include the media header. The buffer
// is owned by the driver until GetStatus returns it.
func (p *SimpleNetworkProtocol) Transmit(frame []byte) error {
	if p == nil {
		return ErrUnavailable
	}

	if len(frame) == 0 {
		return ErrInvalidParameter
	}

	return bootService(p.transmit, unsafe.Pointer(p), UINTN(0), UINTN(len(frame)), unsafe.Pointer(&frame[0]), nil, nil, nil)
}

// Receive copies a pending frame, with its media header, into buf.
// ErrNotReady is returned when no frame is queued and ErrBufferTooSmall
// when buf cannot hold it, n then reports the required size.
func (p *SimpleNetworkProtocol) Receive(buf []byte) (n int, err error) {
	if p == nil {
		return 0, ErrUnavailable
	}

	if len(buf) == 0 {
		return 0, ErrBufferTooSmall
	}

	size := UINTN(len(buf))
	err = bootService(p.receive, unsafe.Pointer(p), nil, unsafe.Pointer(&size), unsafe.Pointer(&buf[0]), nil, nil, nil)

	return int(size), err
}
