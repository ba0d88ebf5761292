package uefi

import (
	"sync"
	"unsafe"
)

// Invoker transfers control to a firmware function pointer using the
// firmware calling convention and returns the raw EFI_STATUS.
//
// This is the single unchecked trust boundary of the package: the firmware
// may do anything with the arguments it is given, and its return value is
// taken as authoritative.
type Invoker interface {
	Invoke(fn uintptr, args []uint64) uint64
}

// InvokerFunc adapts a plain function to the Invoker interface.
type InvokerFunc func(fn uintptr, args []uint64) uint64

// Invoke calls f(fn, args).
func (f InvokerFunc) Invoke(fn uintptr, args []uint64) uint64 {
	return f(fn, args)
}

// scope tells which lifecycle phase a function pointer belongs to.
type scope int

const (
	bootScope scope = iota
	runtimeScope
)

// registerArgs is the number of arguments passed in registers, the
// trampoline always loads all of them.
const registerArgs = 4

var (
	// mux serializes firmware calls, protocol instances are not reentrant.
	mux sync.Mutex

	invoker = platformInvoker()

	// exited is set once ExitBootServices succeeded.
	exited bool

	// pinned holds the arguments of the in-flight call. Storing them in a
	// package variable moves pointed-to values to the heap, where they
	// neither move nor get collected while firmware uses them.
	pinned []any
)

// SetInvoker installs the function used to enter firmware and returns the
// previous one. Installing an invoker starts a fresh boot services phase.
//
// Firmware builds install the platform trampoline automatically; emulated
// firmware (see package uefitest) replaces it.
func SetInvoker(i Invoker) (previous Invoker) {
	mux.Lock()
	defer mux.Unlock()

	previous, invoker = invoker, i
	exited = false

	return
}

// BootServicesExited reports whether ExitBootServices completed.
func BootServicesExited() bool {
	mux.Lock()
	defer mux.Unlock()

	return exited
}

func markExited() {
	mux.Lock()
	defer mux.Unlock()

	exited = true
}

// callService invokes fn, a function pointer read from a firmware table, and
// decodes the returned status. Arguments must be integers, bools, handles,
// events or unsafe.Pointer values.
func callService(s scope, fn uintptr, args ...any) (Status, error) {
	mux.Lock()
	defer mux.Unlock()

	if s == bootScope && exited {
		return EFI_SUCCESS, ErrBootServicesExited
	}

	if fn == 0 || invoker == nil {
		return EFI_SUCCESS, ErrUnavailable
	}

	pinned = args
	defer func() { pinned = nil }()

	n := len(args)
	if n < registerArgs {
		n = registerArgs
	}

	words := make([]uint64, n)

	for i, arg := range args {
		words[i] = word(arg)
	}

	return Status(invoker.Invoke(fn, words)).Result()
}

// bootService calls a boot services scoped function pointer.
func bootService(fn uintptr, args ...any) error {
	_, err := callService(bootScope, fn, args...)
	return err
}

// runtimeService calls a runtime services scoped function pointer.
func runtimeService(fn uintptr, args ...any) error {
	_, err := callService(runtimeScope, fn, args...)
	return err
}

func word(arg any) uint64 {
	switch v := arg.(type) {
	case nil:
		return 0
	case unsafe.Pointer:
		return uint64(uintptr(v))
	case uint64:
		return v
	case uint32:
		return uint64(v)
	case uint16:
		return uint64(v)
	case uint8:
		return uint64(v)
	case uintptr:
		return uint64(v)
	case UINTN:
		return uint64(v)
	case int:
		return uint64(v)
	case int32:
		return uint64(v)
	case bool:
		return convertBool(v)
	case Status:
		return uint64(v)
	case PhysicalAddress:
		return uint64(v)
	case Handle:
		return uint64(v.h)
	case Event:
		return uint64(v.e)
	default:
		panic("internal error, invalid firmware argument")
	}
}
