package uefitest

import (
	"bytes"
	"unsafe"

	"github.com/costinm/efiabi/pkg/uefi"
)

// DescriptorSize is the memory descriptor stride reported by GetMemoryMap,
// larger than uefi.MemoryDescriptor as real firmware often does.
const DescriptorSize = 48

// DefaultMemoryMap is the initial emulated memory map.
var DefaultMemoryMap = []uefi.MemoryDescriptor{
	{Type: uefi.BootServicesCode, PhysicalStart: 0x0, NumberOfPages: 1, Attribute: uefi.EFI_MEMORY_WB},
	{Type: uefi.ConventionalMemory, PhysicalStart: 0x1000, NumberOfPages: 0x9f, Attribute: uefi.EFI_MEMORY_WB},
	{Type: uefi.LoaderCode, PhysicalStart: 0x100000, NumberOfPages: 0x100, Attribute: uefi.EFI_MEMORY_WB},
	{Type: uefi.LoaderData, PhysicalStart: 0x200000, NumberOfPages: 0x200, Attribute: uefi.EFI_MEMORY_WB},
	{Type: uefi.BootServicesData, PhysicalStart: 0x400000, NumberOfPages: 0x400, Attribute: uefi.EFI_MEMORY_WB},
	{Type: uefi.ConventionalMemory, PhysicalStart: 0x800000, NumberOfPages: 0x7800, Attribute: uefi.EFI_MEMORY_WB},
	{Type: uefi.RuntimeServicesData, PhysicalStart: 0x8000000, NumberOfPages: 0x10, Attribute: uefi.EFI_MEMORY_WB | uefi.EFI_MEMORY_RUNTIME},
	{Type: uefi.MemoryMappedIO, PhysicalStart: 0xfe000000, NumberOfPages: 0x1000, Attribute: uefi.EFI_MEMORY_UC | uefi.EFI_MEMORY_RUNTIME},
}

type protocolEntry struct {
	handle uintptr
	guid   uefi.GUID
	iface  unsafe.Pointer
}

// Image is an image loaded through LoadImage.
type Image struct {
	Handle  uintptr
	Parent  uintptr
	Source  []byte
	Loaded  *uefi.LoadedImageProtocol
	Started bool
	// Options holds the load options decoded when the image was started.
	Options string
	// ExitStatus is returned by StartImage.
	ExitStatus uefi.Status
	// ExitData is returned by StartImage with ExitStatus.
	ExitData string
}

type boot struct {
	protocols []protocolEntry
	pools     map[uintptr][]byte
	pages     map[uintptr][]byte
	memoryMap []uefi.MemoryDescriptor
	mapKey    uint64
	// staleKeys fails that many ExitBootServices with a changed map
	staleKeys int
	images    map[uintptr]*Image
	stalledUS uint64
	watchdog  uint64
	exitCode  *uefi.Status
}

func (fw *Firmware) initBoot() {
	fw.pools = make(map[uintptr][]byte)
	fw.pages = make(map[uintptr][]byte)
	fw.images = make(map[uintptr]*Image)
	fw.memoryMap = append([]uefi.MemoryDescriptor(nil), DefaultMemoryMap...)
	fw.mapKey = 1
	fw.watchdog = 300

	bs := unsafe.Pointer(fw.BS)
	const b = "BootServices"

	fw.bind(bs, b, "BS", "AllocatePages", func(args []uint64) uefi.Status {
		if uefi.AllocateType(args[0]) == uefi.AllocateAddress {
			return uefi.EFI_NOT_FOUND
		}

		if uefi.MemoryType(args[1]) >= uefi.MaxMemoryType {
			return uefi.EFI_INVALID_PARAMETER
		}

		// over allocate for page alignment
		buf := make([]byte, (args[2]+1)*uefi.PageSize)
		addr := (uintptr(unsafe.Pointer(&buf[0])) + uefi.PageSize - 1) &^ (uefi.PageSize - 1)

		fw.Lock()
		fw.pages[addr] = buf
		fw.mapKey++
		fw.Unlock()

		*(*uefi.PhysicalAddress)(ptr(args[3])) = uefi.PhysicalAddress(addr)

		return uefi.EFI_SUCCESS
	})

	fw.bind(bs, b, "BS", "FreePages", func(args []uint64) uefi.Status {
		fw.Lock()
		defer fw.Unlock()

		if _, ok := fw.pages[uintptr(args[0])]; !ok {
			return uefi.EFI_NOT_FOUND
		}

		delete(fw.pages, uintptr(args[0]))
		fw.mapKey++

		return uefi.EFI_SUCCESS
	})

	fw.bind(bs, b, "BS", "GetMemoryMap", fw.getMemoryMap)

	fw.bind(bs, b, "BS", "AllocatePool", func(args []uint64) uefi.Status {
		if uefi.MemoryType(args[0]) >= uefi.MaxMemoryType {
			return uefi.EFI_INVALID_PARAMETER
		}

		p := fw.allocatePool(args[1])
		setPointer(args[2], p)

		return uefi.EFI_SUCCESS
	})

	fw.bind(bs, b, "BS", "FreePool", func(args []uint64) uefi.Status {
		fw.Lock()
		defer fw.Unlock()

		if _, ok := fw.pools[uintptr(args[0])]; !ok {
			return uefi.EFI_INVALID_PARAMETER
		}

		delete(fw.pools, uintptr(args[0]))
		fw.mapKey++

		return uefi.EFI_SUCCESS
	})

	fw.bind(bs, b, "BS", "WaitForEvent", func(args []uint64) uefi.Status {
		n := args[0]

		if n == 0 {
			return uefi.EFI_INVALID_PARAMETER
		}

		events := unsafe.Slice((*uintptr)(ptr(args[1])), n)

		for i, e := range events {
			if e == keyEvent && fw.keyPending() {
				setUINTN(args[2], uint64(i))
				return uefi.EFI_SUCCESS
			}
		}

		// nothing would ever signal
		return uefi.EFI_UNSUPPORTED
	})

	fw.bind(bs, b, "BS", "CheckEvent", func(args []uint64) uefi.Status {
		if uintptr(args[0]) == keyEvent && fw.keyPending() {
			return uefi.EFI_SUCCESS
		}

		return uefi.EFI_NOT_READY
	})

	fw.bind(bs, b, "BS", "HandleProtocol", func(args []uint64) uefi.Status {
		g := readGUID(args[1])

		for _, p := range fw.installed() {
			if p.handle == uintptr(args[0]) && p.guid == g {
				setPointer(args[2], p.iface)
				return uefi.EFI_SUCCESS
			}
		}

		return uefi.EFI_UNSUPPORTED
	})

	fw.bind(bs, b, "BS", "LocateProtocol", func(args []uint64) uefi.Status {
		g := readGUID(args[0])

		for _, p := range fw.installed() {
			if p.guid == g {
				setPointer(args[2], p.iface)
				return uefi.EFI_SUCCESS
			}
		}

		return uefi.EFI_NOT_FOUND
	})

	fw.bind(bs, b, "BS", "LocateHandleBuffer", fw.locateHandleBuffer)

	fw.bind(bs, b, "BS", "LoadImage", fw.loadImage)

	fw.bind(bs, b, "BS", "StartImage", fw.startImage)

	fw.bind(bs, b, "BS", "UnloadImage", func(args []uint64) uefi.Status {
		fw.Lock()
		defer fw.Unlock()

		if _, ok := fw.images[uintptr(args[0])]; !ok {
			return uefi.EFI_INVALID_PARAMETER
		}

		delete(fw.images, uintptr(args[0]))

		return uefi.EFI_SUCCESS
	})

	fw.bind(bs, b, "BS", "Exit", func(args []uint64) uefi.Status {
		if uintptr(args[0]) != imageHandle {
			return uefi.EFI_INVALID_PARAMETER
		}

		status := uefi.Status(args[1])

		fw.Lock()
		fw.exitCode = &status
		fw.Unlock()

		return uefi.EFI_SUCCESS
	})

	fw.bind(bs, b, "BS", "ExitBootServices", func(args []uint64) uefi.Status {
		fw.Lock()
		defer fw.Unlock()

		if uintptr(args[0]) != imageHandle {
			return uefi.EFI_INVALID_PARAMETER
		}

		if fw.staleKeys > 0 {
			fw.staleKeys--
			fw.mapKey++
		}

		if args[1] != fw.mapKey {
			return uefi.EFI_INVALID_PARAMETER
		}

		return uefi.EFI_SUCCESS
	})

	fw.bind(bs, b, "BS", "Stall", func(args []uint64) uefi.Status {
		fw.Lock()
		defer fw.Unlock()

		fw.stalledUS += args[0]
		fw.releaseDelayedKeys()

		return uefi.EFI_SUCCESS
	})

	fw.bind(bs, b, "BS", "SetWatchdogTimer", func(args []uint64) uefi.Status {
		fw.Lock()
		defer fw.Unlock()

		fw.watchdog = args[0]

		return uefi.EFI_SUCCESS
	})
}

func (fw *Firmware) getMemoryMap(args []uint64) uefi.Status {
	fw.Lock()
	defer fw.Unlock()

	need := uint64(len(fw.memoryMap)) * DescriptorSize

	setUINTN(args[3], DescriptorSize)
	*(*uint32)(ptr(args[4])) = 1

	if getUINTN(args[0]) < need || args[1] == 0 {
		setUINTN(args[0], need)
		return uefi.EFI_BUFFER_TOO_SMALL
	}

	buf := buffer(args[1], need)
	clear(buf)

	for i, d := range fw.memoryMap {
		*(*uefi.MemoryDescriptor)(unsafe.Pointer(&buf[i*DescriptorSize])) = d
	}

	setUINTN(args[0], need)
	setUINTN(args[2], fw.mapKey)

	return uefi.EFI_SUCCESS
}

func (fw *Firmware) allocatePool(size uint64) unsafe.Pointer {
	buf := make([]byte, max(size, 8))
	p := unsafe.Pointer(&buf[0])

	fw.Lock()
	fw.pools[uintptr(p)] = buf
	fw.mapKey++
	fw.Unlock()

	return p
}

func (fw *Firmware) locateHandleBuffer(args []uint64) uefi.Status {
	var handles []uintptr

	seen := make(map[uintptr]bool)

	for _, p := range fw.installed() {
		switch uefi.LocateSearchType(args[0]) {
		case uefi.AllHandles:
		case uefi.ByProtocol:
			if args[1] == 0 || p.guid != readGUID(args[1]) {
				continue
			}
		default:
			return uefi.EFI_INVALID_PARAMETER
		}

		if !seen[p.handle] {
			seen[p.handle] = true
			handles = append(handles, p.handle)
		}
	}

	if len(handles) == 0 {
		return uefi.EFI_NOT_FOUND
	}

	p := fw.allocatePool(uint64(len(handles)) * 8)
	copy(unsafe.Slice((*uintptr)(p), len(handles)), handles)

	setUINTN(args[3], uint64(len(handles)))
	setPointer(args[4], p)

	return uefi.EFI_SUCCESS
}

func (fw *Firmware) loadImage(args []uint64) uefi.Status {
	src := buffer(args[3], args[4])

	if len(src) == 0 {
		// loading from a device path needs a device
		return uefi.EFI_NOT_FOUND
	}

	if !bytes.HasPrefix(src, []byte("MZ")) {
		return uefi.EFI_LOAD_ERROR
	}

	h := fw.NewHandle()
	img := &Image{
		Handle: h,
		Parent: uintptr(args[1]),
		Source: append([]byte(nil), src...),
		Loaded: &uefi.LoadedImageProtocol{
			Revision:      0x1000,
			SystemTable:   fw.ST,
			ImageCodeType: uefi.LoaderCode,
			ImageDataType: uefi.LoaderData,
			ImageSize:     args[4],
		},
	}

	setWord(unsafe.Pointer(&img.Loaded.ParentHandle), img.Parent)
	img.Loaded.ImageBase = unsafe.Pointer(&img.Source[0])

	fw.Lock()
	fw.images[h] = img
	fw.Unlock()

	fw.Install(h, uefi.LoadedImageProtocolGUID, unsafe.Pointer(img.Loaded))

	setWord(ptr(args[5]), h)

	return uefi.EFI_SUCCESS
}

func (fw *Firmware) startImage(args []uint64) uefi.Status {
	fw.Lock()
	img, ok := fw.images[uintptr(args[0])]
	fw.Unlock()

	if !ok || img.Started {
		return uefi.EFI_INVALID_PARAMETER
	}

	img.Started = true

	if l := img.Loaded; l.LoadOptions != nil && l.LoadOptionsSize > 0 {
		img.Options, _ = uefi.DecodeString(buffer(uint64(uintptr(l.LoadOptions)), uint64(l.LoadOptionsSize)))
	}

	if img.ExitData != "" && args[1] != 0 && args[2] != 0 {
		data, _ := uefi.EncodeString(img.ExitData)
		p := fw.allocatePool(uint64(len(data)))
		copy(unsafe.Slice((*byte)(p), len(data)), data)

		setUINTN(args[1], uint64(len(data)))
		setPointer(args[2], p)
	}

	return img.ExitStatus
}

// Install registers iface as protocol g on handle.
func (fw *Firmware) Install(handle uintptr, g uefi.GUID, iface unsafe.Pointer) {
	fw.Lock()
	defer fw.Unlock()

	fw.protocols = append(fw.protocols, protocolEntry{handle: handle, guid: g, iface: iface})
}

func (fw *Firmware) installed() []protocolEntry {
	fw.Lock()
	defer fw.Unlock()

	return append([]protocolEntry(nil), fw.protocols...)
}

// Images returns the images loaded with LoadImage.
func (fw *Firmware) Images() (images []*Image) {
	fw.Lock()
	defer fw.Unlock()

	for _, img := range fw.images {
		images = append(images, img)
	}

	return
}

// SetMemoryMap replaces the emulated memory map.
func (fw *Firmware) SetMemoryMap(m []uefi.MemoryDescriptor) {
	fw.Lock()
	defer fw.Unlock()

	fw.memoryMap = append([]uefi.MemoryDescriptor(nil), m...)
	fw.mapKey++
}

// StaleMapKeys makes the next n ExitBootServices calls fail as if the memory
// map changed after it was read.
func (fw *Firmware) StaleMapKeys(n int) {
	fw.Lock()
	defer fw.Unlock()

	fw.staleKeys = n
}

// Pools returns the number of outstanding pool allocations.
func (fw *Firmware) Pools() int {
	fw.Lock()
	defer fw.Unlock()

	return len(fw.pools)
}

// Watchdog returns the current watchdog timeout in seconds.
func (fw *Firmware) Watchdog() uint64 {
	fw.Lock()
	defer fw.Unlock()

	return fw.watchdog
}

// Stalled returns the total microseconds spent in Stall.
func (fw *Firmware) Stalled() uint64 {
	fw.Lock()
	defer fw.Unlock()

	return fw.stalledUS
}

// ExitStatus returns the status passed to Exit, if it was called.
func (fw *Firmware) ExitStatus() (uefi.Status, bool) {
	fw.Lock()
	defer fw.Unlock()

	if fw.exitCode == nil {
		return 0, false
	}

	return *fw.exitCode, true
}

// SetLoadOptions sets the load options of the running image.
func (fw *Firmware) SetLoadOptions(s string) {
	opts, err := uefi.EncodeString(s)

	if err != nil {
		fw.tb.Fatal(err)
	}

	fw.keep = append(fw.keep, opts)
	fw.Image.LoadOptions = unsafe.Pointer(&opts[0])
	fw.Image.LoadOptionsSize = uint32(len(opts))
}
