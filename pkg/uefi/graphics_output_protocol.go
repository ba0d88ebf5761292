// Graphics Output Protocol (GOP) – §12.9 UEFI 2.10
package uefi

import (
	"unsafe"
)

// {9042A9DE-23DC-4A38-96FB-7ADED080516A}
var GraphicsOutputProtocolGUID = MustParseGUID("9042A9DE-23DC-4A38-96FB-7ADED080516A")

// PixelFormat is EFI_GRAPHICS_PIXEL_FORMAT.
type PixelFormat uint32

const (
	PixelRedGreenBlueReserved8BitPerColor PixelFormat = iota
	PixelBlueGreenRedReserved8BitPerColor
	PixelBitMask
	PixelBltOnly
	PixelFormatMax
)

// BltOperation is EFI_GRAPHICS_OUTPUT_BLT_OPERATION.
type BltOperation uint32

const (
	BltVideoFill BltOperation = iota
	BltVideoToBltBuffer
	BltBufferToVideo
	BltVideoToVideo
	BltOperationMax
)

// PixelBitmask is EFI_PIXEL_BITMASK, §12.9.4
type PixelBitmask struct {
	RedMask, GreenMask, BlueMask, ReservedMask uint32
}

// GraphicsOutputModeInformation is EFI_GRAPHICS_OUTPUT_MODE_INFORMATION,
// §12.9.3
type GraphicsOutputModeInformation struct {
	Version              uint32
	HorizontalResolution uint32
	VerticalResolution   uint32
	PixelFormat          PixelFormat
	PixelInformation     PixelBitmask // only valid when PixelFormat==PixelBitMask
	PixelsPerScanLine    uint32
}

// Pixels returns the number of visible pixels.
func (i *GraphicsOutputModeInformation) Pixels() uint32 {
	return i.HorizontalResolution * i.VerticalResolution
}

// BltPixel is EFI_GRAPHICS_OUTPUT_BLT_PIXEL, §12.9.5
type BltPixel struct {
	Blue, Green, Red, Reserved uint8
}

// GraphicsOutputProtocolMode is EFI_GRAPHICS_OUTPUT_PROTOCOL_MODE, §12.9.2
type GraphicsOutputProtocolMode struct {
	MaxMode         uint32
	Mode            uint32
	Info            *GraphicsOutputModeInformation
	SizeOfInfo      UINTN
	FrameBufferBase PhysicalAddress
	FrameBufferSize UINTN
}

// GraphicsOutputProtocol is EFI_GRAPHICS_OUTPUT_PROTOCOL.
type GraphicsOutputProtocol struct {
	queryMode uintptr
	setMode   uintptr
	blt       uintptr
	Mode      *GraphicsOutputProtocolMode
}

// LocateGraphicsOutput returns the first graphics output protocol.
func (bs *BootServices) LocateGraphicsOutput() (*GraphicsOutputProtocol, error) {
	iface, err := bs.LocateProtocol(GraphicsOutputProtocolGUID)

	if err != nil {
		return nil, err
	}

	return (*GraphicsOutputProtocol)(iface), nil
}

// QueryMode returns a copy of the information of mode, firmware allocates
// the information buffer from pool memory and it is released here.
func (p *GraphicsOutputProtocol) QueryMode(bs *BootServices, mode uint32) (info GraphicsOutputModeInformation, err error) {
	var size UINTN
	var buf *GraphicsOutputModeInformation

	if p == nil {
		return info, ErrUnavailable
	}

	if err = bootService(p.queryMode, unsafe.Pointer(p), mode, unsafe.Pointer(&size), unsafe.Pointer(&buf)); err != nil {
		return
	}

	if buf == nil {
		return info, ErrInvalidResult
	}

	info = *buf
	err = bs.FreePool(unsafe.Pointer(buf))

	return
}

// SetMode switches to mode, clearing the screen to black.
func (p *GraphicsOutputProtocol) SetMode(mode uint32) error {
	if p == nil {
		return ErrUnavailable
	}

	return bootService(p.setMode, unsafe.Pointer(p), mode)
}

// Blt transfers a rectangle between the frame buffer and buf.
//
//   - buf may be nil when the operation is BltVideoToVideo.
//   - delta is bytes per scan line in buf (0 ⇒ tightly packed).
func (p *GraphicsOutputProtocol) Blt(buf []BltPixel, op BltOperation, srcX, srcY, dstX, dstY, width, height, delta UINTN) error {
	var ptr unsafe.Pointer

	if p == nil {
		return ErrUnavailable
	}

	if len(buf) > 0 {
		ptr = unsafe.Pointer(&buf[0])
	}

	return bootService(p.blt, unsafe.Pointer(p), ptr, uint32(op), srcX, srcY, dstX, dstY, width, height, delta)
}

// Info returns a copy of the current mode information.
func (p *GraphicsOutputProtocol) Info() (GraphicsOutputModeInformation, error) {
	if p == nil || p.Mode == nil || p.Mode.Info == nil {
		return GraphicsOutputModeInformation{}, ErrUnavailable
	}

	if BootServicesExited() {
		return GraphicsOutputModeInformation{}, ErrBootServicesExited
	}

	return *p.Mode.Info, nil
}
