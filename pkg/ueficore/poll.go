package ueficore

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/costinm/efiabi/pkg/uefi"
)

// DefaultPollInterval is used by PollKey when no interval is given.
const DefaultPollInterval = 10 * time.Millisecond

// PollKey waits for a key press until ctx is done. Unlike
// SimpleTextInputProtocol.ReadKey it never blocks in firmware for longer
// than interval: the key event is checked and the CPU stalled in turns,
// with ctx examined between firmware calls.
func PollKey(ctx context.Context, in *uefi.SimpleTextInputProtocol, bs *uefi.BootServices, interval time.Duration) (uefi.InputKey, error) {
	if in == nil {
		return uefi.InputKey{}, uefi.ErrUnavailable
	}

	if interval <= 0 {
		interval = DefaultPollInterval
	}

	stall := uefi.UINTN(max(interval.Microseconds(), 1))

	for polls := 0; ; polls++ {
		if err := ctx.Err(); err != nil {
			Logger().Debug("key poll cancelled", zap.Int("polls", polls), zap.Error(err))
			return uefi.InputKey{}, err
		}

		err := bs.CheckEvent(in.WaitForKey)

		switch {
		case err == nil:
			key, err := in.ReadKeyStroke()

			if !errors.Is(err, uefi.ErrNotReady) {
				return key, err
			}
		case !errors.Is(err, uefi.ErrNotReady):
			return uefi.InputKey{}, err
		}

		if err := bs.Stall(stall); err != nil {
			return uefi.InputKey{}, err
		}
	}
}
