// Package uefitest provides emulated firmware for testing code built on
// package uefi without a UEFI environment.
//
// New builds a system table with console, boot and runtime services in Go
// memory, binds fake services at the published structure offsets and
// installs itself as the firmware invoker. Every call is recorded.
//
// Services run while package uefi holds its call lock: they must not call
// back into package uefi wrappers.
package uefitest

import (
	"fmt"
	"hash/crc32"
	"sync"
	"testing"
	"unsafe"

	"github.com/costinm/efiabi/pkg/uefi"
)

// Service emulates one firmware function, args holds the raw argument
// words as passed by the calling convention.
type Service func(args []uint64) uefi.Status

// Call is a recorded invocation.
type Call struct {
	Name   string
	Args   []uint64
	Status uefi.Status
}

type binding struct {
	name string
	fn   Service
}

// Firmware is an emulated UEFI environment.
type Firmware struct {
	sync.Mutex

	tb testing.TB

	ST     *uefi.SystemTable
	BS     *uefi.BootServices
	RS     *uefi.RuntimeServices
	ConIn  *uefi.SimpleTextInputProtocol
	ConOut *uefi.SimpleTextOutputProtocol
	Image  *uefi.LoadedImageProtocol

	// Now is returned by GetTime.
	Now uefi.Time

	services  map[uintptr]binding
	nextFn    uintptr
	nextH     uintptr
	calls     []Call
	overrides map[string]uefi.Status

	// keep Go allocations handed to firmware structures alive and fixed
	keep []any

	console
	boot
	runtime
}

const (
	fnBase     = 0x10000
	fnStride   = 0x10
	handleBase = 0x1000

	imageHandle   = handleBase
	consoleHandle = handleBase + 1
	keyEvent      = 0xe0e0

	// FirmwareRevision reported in the system table.
	FirmwareRevision = 0x00010000
	// Revision is UEFI 2.10.
	Revision = 2<<16 | 100
	// Vendor is the firmware vendor string.
	Vendor = "efiabi emulator"
)

// New returns emulated firmware installed as the invoker of package uefi,
// the previous invoker is restored when the test ends.
func New(tb testing.TB) *Firmware {
	tb.Helper()

	fw := &Firmware{
		tb:        tb,
		services:  make(map[uintptr]binding),
		nextFn:    fnBase,
		nextH:     handleBase + 0x100,
		overrides: make(map[string]uefi.Status),
		Now: uefi.Time{
			Year:     2024,
			Month:    1,
			Day:      2,
			Hour:     3,
			Minute:   4,
			Second:   5,
			TimeZone: uefi.UnspecifiedTimezone,
		},
	}

	fw.ST = new(uefi.SystemTable)
	fw.BS = new(uefi.BootServices)
	fw.RS = new(uefi.RuntimeServices)
	fw.ConIn = new(uefi.SimpleTextInputProtocol)
	fw.ConOut = new(uefi.SimpleTextOutputProtocol)
	fw.Image = new(uefi.LoadedImageProtocol)

	fw.initConsole()
	fw.initBoot()
	fw.initRuntime()
	fw.initSystemTable()

	previous := uefi.SetInvoker(fw)
	tb.Cleanup(func() { uefi.SetInvoker(previous) })

	return fw
}

func (fw *Firmware) initSystemTable() {
	vendor, err := uefi.EncodeString(Vendor)

	if err != nil {
		fw.tb.Fatal(err)
	}

	fw.keep = append(fw.keep, vendor)

	st := fw.ST
	st.FirmwareVendor = (*uefi.CHAR16)(unsafe.Pointer(&vendor[0]))
	st.FirmwareRevision = FirmwareRevision
	setWord(unsafe.Pointer(&st.ConsoleInHandle), consoleHandle)
	setWord(unsafe.Pointer(&st.ConsoleOutHandle), consoleHandle)
	setWord(unsafe.Pointer(&st.StandardErrorHandle), consoleHandle)
	st.ConIn = fw.ConIn
	st.ConOut = fw.ConOut
	st.StdErr = fw.ConOut
	st.BootServices = fw.BS
	st.RuntimeServices = fw.RS

	fw.Image.Revision = 0x1000
	fw.Image.SystemTable = st
	fw.Install(imageHandle, uefi.LoadedImageProtocolGUID, unsafe.Pointer(fw.Image))

	fw.Seal()
}

// Seal sets the signature, size and CRC32 of the table headers, to be
// called again after modifying a table.
func (fw *Firmware) Seal() {
	seal(&fw.ST.Hdr, uefi.SystemTableSignature, unsafe.Sizeof(*fw.ST))
	seal(&fw.BS.Hdr, uefi.BootServicesSignature, unsafe.Sizeof(*fw.BS))
	seal(&fw.RS.Hdr, uefi.RuntimeServicesSignature, unsafe.Sizeof(*fw.RS))
}

func seal(h *uefi.TableHeader, signature uint64, size uintptr) {
	h.Signature = signature
	h.Revision = Revision
	h.HeaderSize = uint32(size)
	h.CRC32 = 0
	h.CRC32 = crc32.ChecksumIEEE(unsafe.Slice((*byte)(unsafe.Pointer(h)), size))
}

// AddConfigurationTable appends a configuration table entry and reseals the
// system table.
func (fw *Firmware) AddConfigurationTable(g uefi.GUID, table unsafe.Pointer) {
	var entries []uefi.ConfigurationTable

	if n := int(fw.ST.NumberOfTableEntries); n > 0 {
		entries = append(entries, unsafe.Slice(fw.ST.ConfigurationTable, n)...)
	}

	entries = append(entries, uefi.ConfigurationTable{VendorGUID: g, VendorTable: table})
	fw.keep = append(fw.keep, entries)

	fw.ST.ConfigurationTable = &entries[0]
	fw.ST.NumberOfTableEntries = uefi.UINTN(len(entries))

	fw.Seal()
}

// ImageHandle returns the raw handle of the running image.
func (fw *Firmware) ImageHandle() uintptr {
	return imageHandle
}

// SystemTable returns the raw system table pointer as passed to the entry
// point.
func (fw *Firmware) SystemTable() uintptr {
	return uintptr(unsafe.Pointer(fw.ST))
}

// Open returns the typed entry point arguments.
func (fw *Firmware) Open() (uefi.Handle, *uefi.SystemTable) {
	fw.tb.Helper()

	image, st, err := uefi.Open(fw.ImageHandle(), fw.SystemTable())

	if err != nil {
		fw.tb.Fatal(err)
	}

	return image, st
}

// NewHandle allocates a handle value.
func (fw *Firmware) NewHandle() uintptr {
	fw.Lock()
	defer fw.Unlock()

	fw.nextH++

	return fw.nextH
}

// Bind attaches fn to the function pointer at offset within table,
// replacing any previous service.
func (fw *Firmware) Bind(table unsafe.Pointer, offset uintptr, name string, fn Service) {
	fw.Lock()
	defer fw.Unlock()

	addr := fw.nextFn
	fw.nextFn += fnStride
	fw.services[addr] = binding{name: name, fn: fn}

	setWord(unsafe.Add(table, offset), addr)
}

// bind attaches fn at the published offset of field within structure
// layout, recording calls as label.field.
func (fw *Firmware) bind(table unsafe.Pointer, layout string, label string, field string, fn Service) {
	fw.Bind(table, Offset(layout, field), label+"."+field, fn)
}

// Unbind clears the function pointer at the published offset of field
// within structure layout, emulating a firmware that left it NULL.
func (fw *Firmware) Unbind(table unsafe.Pointer, layout string, field string) {
	setWord(unsafe.Add(table, Offset(layout, field)), 0)
}

// Override forces service name to return status without running it.
func (fw *Firmware) Override(name string, status uefi.Status) {
	fw.Lock()
	defer fw.Unlock()

	fw.overrides[name] = status
}

// Restore removes an Override.
func (fw *Firmware) Restore(name string) {
	fw.Lock()
	defer fw.Unlock()

	delete(fw.overrides, name)
}

// Invoke implements uefi.Invoker.
func (fw *Firmware) Invoke(fn uintptr, args []uint64) uint64 {
	fw.Lock()
	b, ok := fw.services[fn]
	status, overridden := fw.overrides[b.name]
	fw.Unlock()

	if !ok {
		fw.tb.Errorf("call to unbound firmware address %#x", fn)
		return uint64(uefi.EFI_UNSUPPORTED)
	}

	if !overridden {
		status = b.fn(args)
	}

	fw.Lock()
	fw.calls = append(fw.calls, Call{
		Name:   b.name,
		Args:   append([]uint64(nil), args...),
		Status: status,
	})
	fw.Unlock()

	return uint64(status)
}

// Calls returns the recorded calls.
func (fw *Firmware) Calls() []Call {
	fw.Lock()
	defer fw.Unlock()

	return append([]Call(nil), fw.calls...)
}

// CallNames returns the names of the recorded calls in order.
func (fw *Firmware) CallNames() (names []string) {
	for _, c := range fw.Calls() {
		names = append(names, c.Name)
	}

	return
}

// Count returns how many times service name was called.
func (fw *Firmware) Count(name string) (n int) {
	for _, c := range fw.Calls() {
		if c.Name == name {
			n++
		}
	}

	return
}

// Reset clears the call record.
func (fw *Firmware) Reset() {
	fw.Lock()
	defer fw.Unlock()

	fw.calls = nil
}

// Offset returns the published offset of a structure field, as listed in
// uefi.Layouts.
func Offset(layout string, field string) uintptr {
	off, ok := uefi.PublishedOffset(layout, field)

	if !ok {
		panic(fmt.Sprintf("uefitest: no published offset for %s.%s", layout, field))
	}

	return off
}

func ptr(arg uint64) unsafe.Pointer {
	return unsafe.Pointer(uintptr(arg))
}

func setWord(p unsafe.Pointer, v uintptr) {
	*(*uintptr)(p) = v
}

// setPointer stores a Go pointer into a pointer sized output argument.
func setPointer(out uint64, p unsafe.Pointer) {
	*(*unsafe.Pointer)(ptr(out)) = p
}

func setUINTN(out uint64, v uint64) {
	*(*uefi.UINTN)(ptr(out)) = uefi.UINTN(v)
}

func getUINTN(in uint64) uint64 {
	return uint64(*(*uefi.UINTN)(ptr(in)))
}

// readString decodes the NUL terminated CHAR16 string at p.
func readString(p uint64) string {
	if p == 0 {
		return ""
	}

	n := 0
	for *(*uint16)(unsafe.Add(ptr(p), n*2)) != 0 {
		n++
	}

	s, _ := uefi.DecodeString(unsafe.Slice((*byte)(ptr(p)), n*2))

	return s
}

// buffer returns the n bytes at p.
func buffer(p uint64, n uint64) []byte {
	if p == 0 || n == 0 {
		return nil
	}

	return unsafe.Slice((*byte)(ptr(p)), n)
}

func readGUID(p uint64) uefi.GUID {
	return *(*uefi.GUID)(ptr(p))
}
