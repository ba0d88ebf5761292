package ueficore_test

import (
	"context"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costinm/efiabi/pkg/uefi"
	"github.com/costinm/efiabi/pkg/uefi/uefitest"
	"github.com/costinm/efiabi/pkg/ueficore"
)

func TestPollKey(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()

	fw.PushKeyAfter(3, uefi.InputKey{UnicodeChar: 'q'})

	key, err := ueficore.PollKey(context.Background(), st.ConIn, st.BootServices, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 'q', key.Rune())
	assert.Equal(t, uint64(3000), fw.Stalled())
	assert.Equal(t, 4, fw.Count("BS.CheckEvent"))
	assert.Zero(t, fw.Count("BS.WaitForEvent"))
}

func TestPollKeyDefaultInterval(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()

	fw.PushKeyAfter(1, uefi.InputKey{ScanCode: uefi.ScanDown})

	key, err := ueficore.PollKey(context.Background(), st.ConIn, st.BootServices, 0)
	require.NoError(t, err)
	assert.Equal(t, uefi.ScanDown, key.ScanCode)
	assert.Equal(t, uint64(ueficore.DefaultPollInterval.Microseconds()), fw.Stalled())
}

func TestPollKeyCancelled(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ueficore.PollKey(ctx, st.ConIn, st.BootServices, time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fw.Calls())
}

func TestPollKeyCancelledWhileStalled(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stalls := 0

	fw.Bind(unsafe.Pointer(fw.BS), uefitest.Offset("BootServices", "Stall"), "BS.Stall", func(args []uint64) uefi.Status {
		if stalls++; stalls == 5 {
			cancel()
		}

		return uefi.EFI_SUCCESS
	})

	_, err := ueficore.PollKey(ctx, st.ConIn, st.BootServices, time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, stalls)
	assert.Equal(t, 5, fw.Count("BS.CheckEvent"))
}

func TestPollKeyErrors(t *testing.T) {
	fw := uefitest.New(t)
	_, st := fw.Open()

	_, err := ueficore.PollKey(context.Background(), nil, st.BootServices, 0)
	assert.ErrorIs(t, err, uefi.ErrUnavailable)

	fw.Override("BS.CheckEvent", uefi.EFI_INVALID_PARAMETER)

	_, err = ueficore.PollKey(context.Background(), st.ConIn, st.BootServices, 0)
	assert.ErrorIs(t, err, uefi.ErrInvalidParameter)
	assert.Zero(t, fw.Stalled())
}
