package uefi

import "unsafe"

// LoadedImageProtocolGUID is EFI_LOADED_IMAGE_PROTOCOL_GUID.
var LoadedImageProtocolGUID = MustParseGUID("5B1B31A1-9562-11D2-8E3F-00A0C969723B")

// LoadedImageProtocol is EFI_LOADED_IMAGE_PROTOCOL, installed on every
// image handle. §9.1
type LoadedImageProtocol struct {
	Revision        uint32
	_               uint32
	ParentHandle    Handle
	SystemTable     *SystemTable
	DeviceHandle    Handle
	FilePath        unsafe.Pointer
	Reserved        unsafe.Pointer
	LoadOptionsSize uint32
	_               uint32
	LoadOptions     unsafe.Pointer
	ImageBase       unsafe.Pointer
	ImageSize       uint64
	ImageCodeType   MemoryType
	ImageDataType   MemoryType
	unload          uintptr
}

// LoadedImage returns the loaded image protocol of image.
func (bs *BootServices) LoadedImage(image Handle) (*LoadedImageProtocol, error) {
	iface, err := bs.HandleProtocol(image, LoadedImageProtocolGUID)

	if err != nil {
		return nil, err
	}

	if iface == nil {
		return nil, ErrUnavailable
	}

	return (*LoadedImageProtocol)(iface), nil
}

// Options decodes the load options as a CHAR16 string, the form used by
// boot manager entries and shells.
func (p *LoadedImageProtocol) Options() (string, error) {
	if p == nil {
		return "", ErrUnavailable
	}

	if p.LoadOptions == nil || p.LoadOptionsSize == 0 {
		return "", nil
	}

	return DecodeString(p.RawOptions())
}

// RawOptions returns a copy of the load options bytes.
func (p *LoadedImageProtocol) RawOptions() []byte {
	if p == nil || p.LoadOptions == nil {
		return nil
	}

	return append([]byte(nil), unsafe.Slice((*byte)(p.LoadOptions), p.LoadOptionsSize&^1)...)
}

// SetOptions encodes s into pool memory and sets it as the load options,
// for an image loaded but not yet started.
func (p *LoadedImageProtocol) SetOptions(bs *BootServices, s string) error {
	if p == nil {
		return ErrUnavailable
	}

	opts, err := EncodeString(s)

	if err != nil {
		return err
	}

	buf, err := bs.AllocatePool(LoaderData, UINTN(len(opts)))

	if err != nil {
		return err
	}

	copy(unsafe.Slice((*byte)(buf), len(opts)), opts)

	p.LoadOptions = buf
	p.LoadOptionsSize = uint32(len(opts))

	return nil
}

// Unload calls the image unload function of image.
func (p *LoadedImageProtocol) Unload(image Handle) error {
	if p == nil {
		return ErrUnavailable
	}

	return bootService(p.unload, image)
}
