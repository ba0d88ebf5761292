package uefitest

import (
	"unsafe"

	"github.com/costinm/efiabi/pkg/uefi"
)

// GraphicsOutput is an emulated graphics adapter.
type GraphicsOutput struct {
	Handle   uintptr
	Protocol *uefi.GraphicsOutputProtocol
	Modes    []uefi.GraphicsOutputModeInformation
	// Blts records the operations passed to Blt.
	Blts []uefi.BltOperation

	mode uefi.GraphicsOutputProtocolMode
	info uefi.GraphicsOutputModeInformation
}

// AddGraphicsOutput installs a graphics output protocol supporting modes,
// mode 0 is active.
func (fw *Firmware) AddGraphicsOutput(modes ...uefi.GraphicsOutputModeInformation) *GraphicsOutput {
	g := &GraphicsOutput{
		Handle:   fw.NewHandle(),
		Protocol: new(uefi.GraphicsOutputProtocol),
		Modes:    modes,
	}

	fw.keep = append(fw.keep, g)

	g.mode.MaxMode = uint32(len(modes))
	g.mode.Info = &g.info
	g.mode.SizeOfInfo = uefi.UINTN(unsafe.Sizeof(g.info))
	g.setMode(0)
	g.Protocol.Mode = &g.mode

	p := unsafe.Pointer(g.Protocol)
	const l = "GraphicsOutputProtocol"

	fw.bind(p, l, "GOP", "QueryMode", func(args []uint64) uefi.Status {
		if args[1] >= uint64(len(g.Modes)) {
			return uefi.EFI_INVALID_PARAMETER
		}

		info := fw.allocatePool(uint64(unsafe.Sizeof(g.info)))
		*(*uefi.GraphicsOutputModeInformation)(info) = g.Modes[args[1]]

		setUINTN(args[2], uint64(unsafe.Sizeof(g.info)))
		setPointer(args[3], info)

		return uefi.EFI_SUCCESS
	})

	fw.bind(p, l, "GOP", "SetMode", func(args []uint64) uefi.Status {
		if args[1] >= uint64(len(g.Modes)) {
			return uefi.EFI_UNSUPPORTED
		}

		g.setMode(uint32(args[1]))

		return uefi.EFI_SUCCESS
	})

	fw.bind(p, l, "GOP", "Blt", func(args []uint64) uefi.Status {
		op := uefi.BltOperation(args[2])

		if op >= uefi.BltOperationMax {
			return uefi.EFI_INVALID_PARAMETER
		}

		if op != uefi.BltVideoToVideo && args[1] == 0 {
			return uefi.EFI_INVALID_PARAMETER
		}

		if args[7] == 0 || args[8] == 0 {
			return uefi.EFI_INVALID_PARAMETER
		}

		g.Blts = append(g.Blts, op)

		return uefi.EFI_SUCCESS
	})

	fw.Install(g.Handle, uefi.GraphicsOutputProtocolGUID, p)

	return g
}

func (g *GraphicsOutput) setMode(mode uint32) {
	if int(mode) >= len(g.Modes) {
		return
	}

	g.mode.Mode = mode
	g.info = g.Modes[mode]
	g.mode.FrameBufferBase = 0x80000000
	g.mode.FrameBufferSize = uefi.UINTN(g.info.PixelsPerScanLine * g.info.VerticalResolution * 4)
}

// SerialPort is an emulated UART, bytes written are appended to TX and
// reads consume RX.
type SerialPort struct {
	Handle   uintptr
	Protocol *uefi.SerialIOProtocol
	TX       []byte
	RX       []byte

	mode    uefi.SerialIOMode
	control uint32
}

// AddSerialPort installs a serial I/O protocol.
func (fw *Firmware) AddSerialPort() *SerialPort {
	s := &SerialPort{
		Handle:   fw.NewHandle(),
		Protocol: new(uefi.SerialIOProtocol),
	}

	fw.keep = append(fw.keep, s)

	s.mode = uefi.SerialIOMode{
		ControlMask:      uefi.EFI_SERIAL_CLEAR_TO_SEND | uefi.EFI_SERIAL_REQUEST_TO_SEND | uefi.EFI_SERIAL_DATA_TERMINAL_READY,
		Timeout:          1000000,
		BaudRate:         115200,
		ReceiveFifoDepth: 1,
		DataBits:         8,
		Parity:           uefi.ParityNone,
		StopBits:         uefi.StopBits1,
	}
	s.control = uefi.EFI_SERIAL_CLEAR_TO_SEND | uefi.EFI_SERIAL_OUTPUT_BUFFER_EMPTY

	s.Protocol.Revision = 0x00010001
	s.Protocol.Mode = &s.mode

	p := unsafe.Pointer(s.Protocol)
	const l = "SerialIOProtocol"

	fw.bind(p, l, "Serial", "Reset", func(args []uint64) uefi.Status {
		s.RX = nil
		return uefi.EFI_SUCCESS
	})

	fw.bind(p, l, "Serial", "SetAttributes", func(args []uint64) uefi.Status {
		if uefi.Parity(args[4]) > uefi.ParitySpace || uefi.StopBits(args[6]) > uefi.StopBits2 {
			return uefi.EFI_INVALID_PARAMETER
		}

		if args[1] != 0 {
			s.mode.BaudRate = args[1]
		}

		if args[2] != 0 {
			s.mode.ReceiveFifoDepth = uint32(args[2])
		}

		if args[3] != 0 {
			s.mode.Timeout = uint32(args[3])
		}

		if args[5] != 0 {
			s.mode.DataBits = uint32(args[5])
		}

		s.mode.Parity = uefi.Parity(args[4])
		s.mode.StopBits = uefi.StopBits(args[6])

		return uefi.EFI_SUCCESS
	})

	fw.bind(p, l, "Serial", "SetControl", func(args []uint64) uefi.Status {
		s.control = uint32(args[1])
		return uefi.EFI_SUCCESS
	})

	fw.bind(p, l, "Serial", "GetControl", func(args []uint64) uefi.Status {
		control := s.control

		if len(s.RX) == 0 {
			control |= uefi.EFI_SERIAL_INPUT_BUFFER_EMPTY
		}

		*(*uint32)(ptr(args[1])) = control

		return uefi.EFI_SUCCESS
	})

	fw.bind(p, l, "Serial", "Write", func(args []uint64) uefi.Status {
		s.TX = append(s.TX, buffer(args[2], getUINTN(args[1]))...)
		return uefi.EFI_SUCCESS
	})

	fw.bind(p, l, "Serial", "Read", func(args []uint64) uefi.Status {
		buf := buffer(args[2], getUINTN(args[1]))
		n := copy(buf, s.RX)
		s.RX = s.RX[n:]

		setUINTN(args[1], uint64(n))

		if n < len(buf) {
			return uefi.EFI_TIMEOUT
		}

		return uefi.EFI_SUCCESS
	})

	fw.Install(s.Handle, uefi.SerialIOProtocolGUID, p)

	return s
}

// Disk is an emulated block device backed by Data, installed with both the
// block I/O and disk I/O protocols.
type Disk struct {
	Handle  uintptr
	BlockIO *uefi.BlockIOProtocol
	DiskIO  *uefi.DiskIOProtocol
	Media   uefi.BlockIOMedia
	Data    []byte
	// Flushes counts FlushBlocks calls.
	Flushes int
}

// AddDisk installs a disk of len(data)/blockSize blocks, trailing bytes
// past the last full block are not addressable.
func (fw *Firmware) AddDisk(data []byte, blockSize uint32) *Disk {
	d := &Disk{
		Handle:  fw.NewHandle(),
		BlockIO: new(uefi.BlockIOProtocol),
		DiskIO:  new(uefi.DiskIOProtocol),
		Data:    data[:len(data)/int(blockSize)*int(blockSize)],
	}

	fw.keep = append(fw.keep, d)

	d.Media = uefi.BlockIOMedia{
		MediaID:      1,
		MediaPresent: true,
		BlockSize:    blockSize,
		IoAlign:      1,
		LastBlock:    uint64(len(d.Data))/uint64(blockSize) - 1,
	}

	d.BlockIO.Revision = 0x00020031
	d.BlockIO.Media = &d.Media
	d.DiskIO.Revision = 0x00010000

	bio := unsafe.Pointer(d.BlockIO)
	const bl = "BlockIOProtocol"

	fw.bind(bio, bl, "BlockIO", "Reset", func(args []uint64) uefi.Status {
		return uefi.EFI_SUCCESS
	})

	fw.bind(bio, bl, "BlockIO", "ReadBlocks", func(args []uint64) uefi.Status {
		if status := d.checkBlocks(args); status != uefi.EFI_SUCCESS {
			return status
		}

		copy(buffer(args[4], args[3]), d.Data[args[2]*uint64(d.Media.BlockSize):])

		return uefi.EFI_SUCCESS
	})

	fw.bind(bio, bl, "BlockIO", "WriteBlocks", func(args []uint64) uefi.Status {
		if d.Media.ReadOnly {
			return uefi.EFI_WRITE_PROTECTED
		}

		if status := d.checkBlocks(args); status != uefi.EFI_SUCCESS {
			return status
		}

		copy(d.Data[args[2]*uint64(d.Media.BlockSize):], buffer(args[4], args[3]))

		return uefi.EFI_SUCCESS
	})

	fw.bind(bio, bl, "BlockIO", "FlushBlocks", func(args []uint64) uefi.Status {
		d.Flushes++
		return uefi.EFI_SUCCESS
	})

	dio := unsafe.Pointer(d.DiskIO)
	const dl = "DiskIOProtocol"

	fw.bind(dio, dl, "DiskIO", "ReadDisk", func(args []uint64) uefi.Status {
		if status := d.checkBytes(args); status != uefi.EFI_SUCCESS {
			return status
		}

		copy(buffer(args[4], args[3]), d.Data[args[2]:])

		return uefi.EFI_SUCCESS
	})

	fw.bind(dio, dl, "DiskIO", "WriteDisk", func(args []uint64) uefi.Status {
		if d.Media.ReadOnly {
			return uefi.EFI_WRITE_PROTECTED
		}

		if status := d.checkBytes(args); status != uefi.EFI_SUCCESS {
			return status
		}

		copy(d.Data[args[2]:], buffer(args[4], args[3]))

		return uefi.EFI_SUCCESS
	})

	fw.Install(d.Handle, uefi.BlockIOProtocolGUID, bio)
	fw.Install(d.Handle, uefi.DiskIOProtocolGUID, dio)

	return d
}

// checkMedia validates the media id argument shared by all transfers.
func (d *Disk) checkMedia(id uint64) uefi.Status {
	switch {
	case !d.Media.MediaPresent:
		return uefi.EFI_NO_MEDIA
	case uint32(id) != d.Media.MediaID:
		return uefi.EFI_MEDIA_CHANGED
	}

	return uefi.EFI_SUCCESS
}

func (d *Disk) checkBlocks(args []uint64) uefi.Status {
	if status := d.checkMedia(args[1]); status != uefi.EFI_SUCCESS {
		return status
	}

	lba, size, bs := args[2], args[3], uint64(d.Media.BlockSize)

	switch {
	case size%bs != 0:
		return uefi.EFI_BAD_BUFFER_SIZE
	case lba > d.Media.LastBlock || lba+size/bs > d.Media.LastBlock+1:
		return uefi.EFI_INVALID_PARAMETER
	}

	return uefi.EFI_SUCCESS
}

func (d *Disk) checkBytes(args []uint64) uefi.Status {
	if status := d.checkMedia(args[1]); status != uefi.EFI_SUCCESS {
		return status
	}

	if off, size := args[2], args[3]; off+size > uint64(len(d.Data)) {
		return uefi.EFI_INVALID_PARAMETER
	}

	return uefi.EFI_SUCCESS
}

// Network is an emulated Ethernet interface. Transmitted frames are
// appended to TX, Receive consumes RX.
type Network struct {
	Handle   uintptr
	Protocol *uefi.SimpleNetworkProtocol
	Mode     uefi.SimpleNetworkMode
	TX       [][]byte
	RX       [][]byte

	// last transmit buffer not yet returned by GetStatus
	recycle uintptr
}

// AddNetwork installs a stopped simple network protocol with address mac.
func (fw *Firmware) AddNetwork(mac []byte) *Network {
	n := &Network{
		Handle:   fw.NewHandle(),
		Protocol: new(uefi.SimpleNetworkProtocol),
	}

	fw.keep = append(fw.keep, n)

	n.Mode = uefi.SimpleNetworkMode{
		HwAddressSize:         uint32(len(mac)),
		MediaHeaderSize:       14,
		MaxPacketSize:         1500,
		ReceiveFilterMask:     0x1f,
		MaxMCastFilterCount:   16,
		IfType:                1,
		MediaPresentSupported: true,
		MediaPresent:          true,
	}

	copy(n.Mode.CurrentAddress[:], mac)
	copy(n.Mode.PermanentAddress[:], mac)
	copy(n.Mode.BroadcastAddress[:], []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff})

	n.Protocol.Revision = 0x00010000
	n.Protocol.Mode = &n.Mode

	p := unsafe.Pointer(n.Protocol)
	const l = "SimpleNetworkProtocol"

	fw.bind(p, l, "SNP", "Start", func(args []uint64) uefi.Status {
		if n.Mode.State != uefi.NetworkStopped {
			return uefi.EFI_ALREADY_STARTED
		}

		n.Mode.State = uefi.NetworkStarted

		return uefi.EFI_SUCCESS
	})

	fw.bind(p, l, "SNP", "Stop", func(args []uint64) uefi.Status {
		if n.Mode.State == uefi.NetworkStopped {
			return uefi.EFI_NOT_STARTED
		}

		n.Mode.State = uefi.NetworkStopped

		return uefi.EFI_SUCCESS
	})

	fw.bind(p, l, "SNP", "Initialize", func(args []uint64) uefi.Status {
		if n.Mode.State == uefi.NetworkStopped {
			return uefi.EFI_NOT_STARTED
		}

		n.Mode.State = uefi.NetworkInitialized

		return uefi.EFI_SUCCESS
	})

	fw.bind(p, l, "SNP", "Shutdown", func(args []uint64) uefi.Status {
		if status := n.initialized(); status != uefi.EFI_SUCCESS {
			return status
		}

		n.Mode.State = uefi.NetworkStarted
		n.Mode.ReceiveFilterSetting = 0

		return uefi.EFI_SUCCESS
	})

	fw.bind(p, l, "SNP", "ReceiveFilters", func(args []uint64) uefi.Status {
		if status := n.initialized(); status != uefi.EFI_SUCCESS {
			return status
		}

		enable, disable := uint32(args[1]), uint32(args[2])

		if (enable|disable)&^n.Mode.ReceiveFilterMask != 0 {
			return uefi.EFI_INVALID_PARAMETER
		}

		n.Mode.ReceiveFilterSetting = (n.Mode.ReceiveFilterSetting | enable) &^ disable

		return uefi.EFI_SUCCESS
	})

	fw.bind(p, l, "SNP", "GetStatus", func(args []uint64) uefi.Status {
		if status := n.initialized(); status != uefi.EFI_SUCCESS {
			return status
		}

		if args[1] != 0 {
			var interrupts uint32

			if len(n.RX) > 0 {
				interrupts |= uefi.EFI_SIMPLE_NETWORK_RECEIVE_INTERRUPT
			}

			if n.recycle != 0 {
				interrupts |= uefi.EFI_SIMPLE_NETWORK_TRANSMIT_INTERRUPT
			}

			*(*uint32)(ptr(args[1])) = interrupts
		}

		if args[2] != 0 {
			setWord(ptr(args[2]), n.recycle)
			n.recycle = 0
		}

		return uefi.EFI_SUCCESS
	})

	fw.bind(p, l, "SNP", "Transmit", func(args []uint64) uefi.Status {
		if status := n.initialized(); status != uefi.EFI_SUCCESS {
			return status
		}

		size := args[2]

		if size < uint64(n.Mode.MediaHeaderSize) || size > uint64(n.Mode.MediaHeaderSize+n.Mode.MaxPacketSize) {
			return uefi.EFI_BUFFER_TOO_SMALL
		}

		n.TX = append(n.TX, append([]byte(nil), buffer(args[3], size)...))
		n.recycle = uintptr(args[3])

		return uefi.EFI_SUCCESS
	})

	fw.bind(p, l, "SNP", "Receive", func(args []uint64) uefi.Status {
		if status := n.initialized(); status != uefi.EFI_SUCCESS {
			return status
		}

		if len(n.RX) == 0 {
			return uefi.EFI_NOT_READY
		}

		frame, size := n.RX[0], getUINTN(args[2])
		setUINTN(args[2], uint64(len(frame)))

		if uint64(len(frame)) > size {
			return uefi.EFI_BUFFER_TOO_SMALL
		}

		copy(buffer(args[3], size), frame)
		n.RX = n.RX[1:]

		return uefi.EFI_SUCCESS
	})

	fw.Install(n.Handle, uefi.SimpleNetworkProtocolGUID, p)

	return n
}

func (n *Network) initialized() uefi.Status {
	switch n.Mode.State {
	case uefi.NetworkStopped:
		return uefi.EFI_NOT_STARTED
	case uefi.NetworkStarted:
		return uefi.EFI_DEVICE_ERROR
	}

	return uefi.EFI_SUCCESS
}
