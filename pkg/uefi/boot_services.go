package uefi

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/hashicorp/go-multierror"
)

// LocateSearchType is EFI_LOCATE_SEARCH_TYPE.
type LocateSearchType uint32

const (
	AllHandles LocateSearchType = iota
	ByRegisterNotify
	ByProtocol
)

// BootServices is EFI_BOOT_SERVICES, valid until ExitBootServices. §4.4
type BootServices struct {
	Hdr                                 TableHeader
	raiseTPL                            uintptr
	restoreTPL                          uintptr
	allocatePages                       uintptr
	freePages                           uintptr
	getMemoryMap                        uintptr
	allocatePool                        uintptr
	freePool                            uintptr
	createEvent                         uintptr
	setTimer                            uintptr
	waitForEvent                        uintptr
	signalEvent                         uintptr
	closeEvent                          uintptr
	checkEvent                          uintptr
	installProtocolInterface            uintptr
	reinstallProtocolInterface          uintptr
	uninstallProtocolInterface          uintptr
	handleProtocol                      uintptr
	reserved                            uintptr
	registerProtocolNotify              uintptr
	locateHandle                        uintptr
	locateDevicePath                    uintptr
	installConfigurationTable           uintptr
	loadImage                           uintptr
	startImage                          uintptr
	exit                                uintptr
	unloadImage                         uintptr
	exitBootServices                    uintptr
	getNextMonotonicCount               uintptr
	stall                               uintptr
	setWatchdogTimer                    uintptr
	connectController                   uintptr
	disconnectController                uintptr
	openProtocol                        uintptr
	closeProtocol                       uintptr
	openProtocolInformation             uintptr
	protocolsPerHandle                  uintptr
	locateHandleBuffer                  uintptr
	locateProtocol                      uintptr
	installMultipleProtocolInterfaces   uintptr
	uninstallMultipleProtocolInterfaces uintptr
	calculateCrc32                      uintptr
	copyMem                             uintptr
	setMem                              uintptr
	createEventEx                       uintptr
}

// Validate checks the boot services table header.
func (bs *BootServices) Validate() error {
	if bs == nil {
		return ErrUnavailable
	}

	return bs.Hdr.Validate(BootServicesSignature, unsafe.Sizeof(*bs))
}

// AllocatePages allocates pages of type mt. The address argument is the
// requested address or upper bound for AllocateAddress and
// AllocateMaxAddress, and is ignored otherwise.
func (bs *BootServices) AllocatePages(t AllocateType, mt MemoryType, pages UINTN, addr PhysicalAddress) (PhysicalAddress, error) {
	if bs == nil {
		return 0, ErrUnavailable
	}

	err := bootService(bs.allocatePages, uint32(t), uint32(mt), pages, unsafe.Pointer(&addr))

	return addr, err
}

// FreePages releases pages obtained with AllocatePages.
func (bs *BootServices) FreePages(addr PhysicalAddress, pages UINTN) error {
	if bs == nil {
		return ErrUnavailable
	}

	return bootService(bs.freePages, addr, pages)
}

// ReadMemoryMap fills m with the current memory map, without allocating.
// When the buffer is too small ErrBufferTooSmall is returned and m.Size
// holds the required size.
func (bs *BootServices) ReadMemoryMap(m *MemoryMap) error {
	if bs == nil {
		return ErrUnavailable
	}

	m.Size = UINTN(len(m.buf))

	err := bootService(bs.getMemoryMap,
		unsafe.Pointer(&m.Size),
		m.pointer(),
		unsafe.Pointer(&m.Key),
		unsafe.Pointer(&m.DescriptorSize),
		unsafe.Pointer(&m.DescriptorVersion))

	if err != nil {
		return err
	}

	if m.DescriptorSize < UINTN(unsafe.Sizeof(MemoryDescriptor{})) {
		return fmt.Errorf("%w: descriptor size %d", ErrInvalidResult, m.DescriptorSize)
	}

	return nil
}

// GetMemoryMap returns the current memory map, growing the buffer until the
// whole map fits.
func (bs *BootServices) GetMemoryMap() (*MemoryMap, error) {
	m := NewMemoryMap(PageSize)

	for {
		err := bs.ReadMemoryMap(m)

		if !errors.Is(err, ErrBufferTooSmall) {
			return m, err
		}

		// room for the descriptors a new allocation may add
		m.buf = make([]byte, int(m.Size)+PageSize)
	}
}

// AllocatePool allocates size bytes of pool memory of type mt.
func (bs *BootServices) AllocatePool(mt MemoryType, size UINTN) (buf unsafe.Pointer, err error) {
	if bs == nil {
		return nil, ErrUnavailable
	}

	err = bootService(bs.allocatePool, uint32(mt), size, unsafe.Pointer(&buf))

	return
}

// FreePool releases memory obtained with AllocatePool.
func (bs *BootServices) FreePool(buf unsafe.Pointer) error {
	if bs == nil {
		return ErrUnavailable
	}

	return bootService(bs.freePool, buf)
}

// WaitForEvent stops execution until one of the events is signaled and
// returns its index.
func (bs *BootServices) WaitForEvent(events ...Event) (int, error) {
	var index UINTN

	if bs == nil {
		return 0, ErrUnavailable
	}

	if len(events) == 0 {
		return 0, ErrInvalidParameter
	}

	if err := bootService(bs.waitForEvent, UINTN(len(events)), unsafe.Pointer(&events[0]), unsafe.Pointer(&index)); err != nil {
		return 0, err
	}

	if index >= UINTN(len(events)) {
		return 0, fmt.Errorf("%w: event index %d of %d", ErrInvalidResult, index, len(events))
	}

	return int(index), nil
}

// CheckEvent returns nil when e is signaled and ErrNotReady otherwise.
func (bs *BootServices) CheckEvent(e Event) error {
	if bs == nil {
		return ErrUnavailable
	}

	return bootService(bs.checkEvent, e)
}

// HandleProtocol returns the interface of protocol g installed on h.
func (bs *BootServices) HandleProtocol(h Handle, g GUID) (iface unsafe.Pointer, err error) {
	if bs == nil {
		return nil, ErrUnavailable
	}

	err = bootService(bs.handleProtocol, h, unsafe.Pointer(&g), unsafe.Pointer(&iface))

	return
}

// LocateProtocol returns the first interface of protocol g.
func (bs *BootServices) LocateProtocol(g GUID) (iface unsafe.Pointer, err error) {
	if bs == nil {
		return nil, ErrUnavailable
	}

	err = bootService(bs.locateProtocol, unsafe.Pointer(&g), nil, unsafe.Pointer(&iface))

	return
}

// LocateHandleBuffer returns the handles supporting protocol g, or all
// handles with AllHandles. The firmware buffer is copied and released.
func (bs *BootServices) LocateHandleBuffer(t LocateSearchType, g *GUID) ([]Handle, error) {
	var count UINTN
	var buf unsafe.Pointer

	if bs == nil {
		return nil, ErrUnavailable
	}

	var protocol unsafe.Pointer

	if g != nil {
		guid := *g
		protocol = unsafe.Pointer(&guid)
	}

	if err := bootService(bs.locateHandleBuffer, uint32(t), protocol, nil, unsafe.Pointer(&count), unsafe.Pointer(&buf)); err != nil {
		return nil, err
	}

	if buf == nil || count == 0 {
		return nil, nil
	}

	raw := unsafe.Slice((*uintptr)(buf), int(count))
	handles := make([]Handle, len(raw))

	for i, h := range raw {
		handles[i] = handleFromRaw(h)
	}

	return handles, bs.FreePool(buf)
}

// LoadImage loads a PE/COFF image from memory, or from devicePath when
// source is empty, and returns the handle of the new image.
func (bs *BootServices) LoadImage(bootPolicy bool, parent Handle, devicePath unsafe.Pointer, source []byte) (image Handle, err error) {
	var h uintptr
	var src unsafe.Pointer

	if bs == nil {
		return image, ErrUnavailable
	}

	if len(source) > 0 {
		src = unsafe.Pointer(&source[0])
	}

	err = bootService(bs.loadImage, bootPolicy, parent, devicePath, src, UINTN(len(source)), unsafe.Pointer(&h))

	return handleFromRaw(h), err
}

// StartImage transfers control to a loaded image. The exit data string the
// image passed to Exit, if any, is returned along with the image Status.
// Failures decoding or freeing the exit data are appended to that error.
func (bs *BootServices) StartImage(image Handle) (exitData string, err error) {
	var size UINTN
	var data *CHAR16

	if bs == nil {
		return "", ErrUnavailable
	}

	err = bootService(bs.startImage, image, unsafe.Pointer(&size), unsafe.Pointer(&data))

	if data != nil {
		var derr error

		if exitData, derr = readString(data); derr != nil {
			err = multierror.Append(err, fmt.Errorf("exit data: %w", derr))
		}

		if ferr := bs.FreePool(unsafe.Pointer(data)); ferr != nil {
			err = multierror.Append(err, fmt.Errorf("freeing exit data: %w", ferr))
		}
	}

	return
}

// UnloadImage unloads an image that was not started or that supports
// unloading.
func (bs *BootServices) UnloadImage(image Handle) error {
	if bs == nil {
		return ErrUnavailable
	}

	return bootService(bs.unloadImage, image)
}

// Exit terminates image with status, returning control to its parent. It
// only returns on failure.
func (bs *BootServices) Exit(image Handle, status Status) error {
	if bs == nil {
		return ErrUnavailable
	}

	return bootService(bs.exit, image, status, UINTN(0), nil)
}

// ExitBootServices terminates all boot services. Once it succeeded every
// boot services scoped call fails with ErrBootServicesExited.
func (bs *BootServices) ExitBootServices(image Handle, mapKey UINTN) error {
	if bs == nil {
		return ErrUnavailable
	}

	if err := bootService(bs.exitBootServices, image, mapKey); err != nil {
		return err
	}

	markExited()

	return nil
}

// Stall busy waits for at least the given number of microseconds.
func (bs *BootServices) Stall(microseconds UINTN) error {
	if bs == nil {
		return ErrUnavailable
	}

	return bootService(bs.stall, microseconds)
}

// SetWatchdogTimer sets the watchdog to timeout seconds, 0 disables it.
// Firmware arms a five minute watchdog before starting a boot option.
func (bs *BootServices) SetWatchdogTimer(timeout UINTN, code uint64) error {
	if bs == nil {
		return ErrUnavailable
	}

	return bootService(bs.setWatchdogTimer, timeout, code, UINTN(0), nil)
}
