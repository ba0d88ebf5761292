package ueficore

import (
	"go.uber.org/zap"

	"github.com/costinm/efiabi/pkg/uefi"
)

// BestMode returns the graphics mode with the most pixels. Modes firmware
// fails to describe are skipped.
func BestMode(bs *uefi.BootServices, gop *uefi.GraphicsOutputProtocol) (mode uint32, info uefi.GraphicsOutputModeInformation, err error) {
	if gop == nil || gop.Mode == nil {
		return 0, info, uefi.ErrUnavailable
	}

	found := false

	for i := uint32(0); i < gop.Mode.MaxMode; i++ {
		m, err := gop.QueryMode(bs, i)

		if err != nil {
			Logger().Debug("skipping graphics mode", zap.Uint32("mode", i), zap.Error(err))
			continue
		}

		if !found || m.Pixels() > info.Pixels() {
			mode, info, found = i, m, true
		}
	}

	if !found {
		return 0, info, uefi.ErrNotFound
	}

	return mode, info, nil
}

// SetBestMode switches to the mode returned by BestMode, unless it is
// already current.
func SetBestMode(bs *uefi.BootServices, gop *uefi.GraphicsOutputProtocol) (uefi.GraphicsOutputModeInformation, error) {
	mode, info, err := BestMode(bs, gop)

	if err != nil {
		return info, err
	}

	if gop.Mode.Mode == mode {
		return info, nil
	}

	return info, gop.SetMode(mode)
}
