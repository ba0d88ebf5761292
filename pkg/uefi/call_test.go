package uefi

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	fn     uintptr
	args   []uint64
	status Status
	calls  int
}

func (r *recorder) Invoke(fn uintptr, args []uint64) uint64 {
	r.fn = fn
	r.args = append([]uint64(nil), args...)
	r.calls++
	return uint64(r.status)
}

func install(t *testing.T, i Invoker) {
	previous := SetInvoker(i)
	t.Cleanup(func() { SetInvoker(previous) })
}

func TestCallServiceArguments(t *testing.T) {
	r := &recorder{}
	install(t, r)

	var x uint64
	p := unsafe.Pointer(&x)

	_, err := callService(bootScope, 0x1234, p, true, uint32(7), Handle{h: 0x99}, nil, UINTN(5), Event{e: 0x42})
	require.NoError(t, err)

	assert.Equal(t, uintptr(0x1234), r.fn)
	assert.Equal(t, []uint64{uint64(uintptr(p)), 1, 7, 0x99, 0, 5, 0x42}, r.args)
}

func TestCallServicePadsRegisters(t *testing.T) {
	r := &recorder{}
	install(t, r)

	require.NoError(t, bootService(0x10, uint8(1)))
	assert.Equal(t, []uint64{1, 0, 0, 0}, r.args)

	require.NoError(t, bootService(0x10))
	assert.Len(t, r.args, registerArgs)
}

func TestCallServiceStatus(t *testing.T) {
	r := &recorder{status: EFI_WARN_UNKNOWN_GLYPH}
	install(t, r)

	s, err := callService(bootScope, 0x10)
	require.NoError(t, err)
	assert.Equal(t, EFI_WARN_UNKNOWN_GLYPH, s)

	r.status = EFI_ACCESS_DENIED
	s, err = callService(bootScope, 0x10)
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, EFI_SUCCESS, s)
}

func TestCallServiceNullFunction(t *testing.T) {
	r := &recorder{}
	install(t, r)

	assert.ErrorIs(t, bootService(0), ErrUnavailable)
	assert.ErrorIs(t, runtimeService(0), ErrUnavailable)
	assert.Zero(t, r.calls)
}

func TestCallServiceNoInvoker(t *testing.T) {
	install(t, nil)

	assert.ErrorIs(t, bootService(0x10), ErrUnavailable)
}

func TestCallServiceExited(t *testing.T) {
	r := &recorder{}
	install(t, r)

	markExited()
	require.True(t, BootServicesExited())

	err := bootService(0x10)
	assert.ErrorIs(t, err, ErrBootServicesExited)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Zero(t, r.calls)

	assert.NoError(t, runtimeService(0x20))
	assert.Equal(t, 1, r.calls)

	// a new invoker starts a fresh phase
	SetInvoker(r)
	assert.False(t, BootServicesExited())
}

func TestCallServicePinsArguments(t *testing.T) {
	var seen int

	install(t, InvokerFunc(func(fn uintptr, args []uint64) uint64 {
		seen = len(pinned)
		return 0
	}))

	require.NoError(t, bootService(0x10, uint64(1), uint64(2)))
	assert.Equal(t, 2, seen)
	assert.Nil(t, pinned)
}

func TestWordRejectsUnknownTypes(t *testing.T) {
	assert.Panics(t, func() { word("string") })
	assert.Panics(t, func() { word(new(int)) })
}

func TestHandle(t *testing.T) {
	var h Handle
	assert.True(t, h.IsNil())

	h = handleFromRaw(0xabc)
	assert.False(t, h.IsNil())
	assert.Equal(t, uintptr(0xabc), h.Raw())
	assert.Equal(t, "handle(0xabc)", h.String())
	assert.Equal(t, handleFromRaw(0xabc), h)

	var e Event
	assert.True(t, e.IsNil())
	assert.Equal(t, uintptr(0), e.Raw())
}
