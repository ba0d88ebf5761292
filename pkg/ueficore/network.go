package ueficore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/costinm/efiabi/pkg/uefi"
)

// Ethernet frame header size.
const etherHeader = 14

// NetworkInterface sends and receives raw Ethernet frames through a simple
// network protocol instance.
type NetworkInterface struct {
	Handle   uefi.Handle
	Protocol *uefi.SimpleNetworkProtocol

	mu sync.Mutex
	// frames handed to the driver, keyed by buffer address, until GetStatus
	// recycles them
	inflight map[uintptr][]byte
}

// EnumerateNetworks returns every simple network protocol instance, in
// handle order.
func EnumerateNetworks(bs *uefi.BootServices) ([]*NetworkInterface, error) {
	handles, err := bs.LocateHandleBuffer(uefi.ByProtocol, &uefi.SimpleNetworkProtocolGUID)

	if err != nil {
		return nil, err
	}

	nics := make([]*NetworkInterface, 0, len(handles))

	for _, h := range handles {
		iface, err := bs.HandleProtocol(h, uefi.SimpleNetworkProtocolGUID)

		if err != nil {
			return nil, fmt.Errorf("network %v: %w", h, err)
		}

		nics = append(nics, &NetworkInterface{Handle: h, Protocol: (*uefi.SimpleNetworkProtocol)(iface)})
	}

	return nics, nil
}

// HardwareAddr returns the current station address.
func (n *NetworkInterface) HardwareAddr() net.HardwareAddr {
	m := n.Protocol.Mode
	return m.HardwareAddr(m.CurrentAddress)
}

// Up starts and initializes the interface and accepts unicast and broadcast
// frames. An interface already up is left as is.
func (n *NetworkInterface) Up() error {
	switch n.Protocol.Mode.State {
	case uefi.NetworkStopped:
		if err := n.Protocol.Start(); err != nil && !errors.Is(err, uefi.ErrAlreadyStarted) {
			return err
		}

		fallthrough
	case uefi.NetworkStarted:
		if err := n.Protocol.Initialize(); err != nil {
			return err
		}
	}

	filters := (uefi.EFI_SIMPLE_NETWORK_RECEIVE_UNICAST | uefi.EFI_SIMPLE_NETWORK_RECEIVE_BROADCAST) & n.Protocol.Mode.ReceiveFilterMask

	return n.Protocol.ReceiveFilters(filters, 0)
}

// Down shuts the interface down and stops it.
func (n *NetworkInterface) Down() error {
	if n.Protocol.Mode.State == uefi.NetworkInitialized {
		if err := n.Protocol.Shutdown(); err != nil {
			return err
		}
	}

	n.mu.Lock()
	n.inflight = nil
	n.mu.Unlock()

	if n.Protocol.Mode.State == uefi.NetworkStopped {
		return nil
	}

	return n.Protocol.Stop()
}

// Send transmits payload to dst with the given EtherType, the source is the
// current station address.
func (n *NetworkInterface) Send(dst net.HardwareAddr, etherType uint16, payload []byte) error {
	if len(dst) != 6 {
		return fmt.Errorf("%w: hardware address %v", uefi.ErrInvalidParameter, dst)
	}

	if limit := int(n.Protocol.Mode.MaxPacketSize); len(payload) > limit {
		return fmt.Errorf("%w: payload of %d bytes exceeds %d", uefi.ErrBufferTooSmall, len(payload), limit)
	}

	frame := make([]byte, etherHeader+len(payload))
	copy(frame, dst)
	copy(frame[6:], n.HardwareAddr())
	binary.BigEndian.PutUint16(frame[12:], etherType)
	copy(frame[etherHeader:], payload)

	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.Protocol.Transmit(frame); err != nil {
		return err
	}

	if n.inflight == nil {
		n.inflight = make(map[uintptr][]byte)
	}

	n.inflight[uintptr(unsafe.Pointer(&frame[0]))] = frame

	return n.reclaim()
}

// reclaim releases transmit buffers the driver is done with.
func (n *NetworkInterface) reclaim() error {
	for len(n.inflight) > 0 {
		_, buf, err := n.Protocol.GetStatus()

		if err != nil {
			return err
		}

		if buf == 0 {
			break
		}

		if _, ok := n.inflight[buf]; !ok {
			Logger().Debug("unknown transmit buffer recycled", zap.Uintptr("addr", buf))
		}

		delete(n.inflight, buf)
	}

	return nil
}

// Pending returns the number of transmitted frames not yet recycled.
func (n *NetworkInterface) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.inflight)
}

// Frame is a received Ethernet frame.
type Frame struct {
	Dst       net.HardwareAddr
	Src       net.HardwareAddr
	EtherType uint16
	Payload   []byte
}

// Receive returns the next queued frame or uefi.ErrNotReady when none is
// pending.
func (n *NetworkInterface) Receive() (*Frame, error) {
	buf := make([]byte, etherHeader+int(n.Protocol.Mode.MaxPacketSize))

	size, err := n.Protocol.Receive(buf)

	if errors.Is(err, uefi.ErrBufferTooSmall) {
		buf = make([]byte, size)
		size, err = n.Protocol.Receive(buf)
	}

	if err != nil {
		return nil, err
	}

	if size < etherHeader {
		return nil, fmt.Errorf("%w: frame of %d bytes", uefi.ErrInvalidResult, size)
	}

	buf = buf[:size]

	return &Frame{
		Dst:       net.HardwareAddr(buf[0:6]),
		Src:       net.HardwareAddr(buf[6:12]),
		EtherType: binary.BigEndian.Uint16(buf[12:]),
		Payload:   buf[etherHeader:],
	}, nil
}
