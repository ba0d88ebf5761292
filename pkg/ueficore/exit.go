package ueficore

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/costinm/efiabi/pkg/uefi"
)

// ExitBootServices terminates boot services and returns the final memory
// map.
//
// Firmware rejects the map key with EFI_INVALID_PARAMETER when the map
// changed after it was read. The map is then read again into the same
// buffer, as no allocation is allowed once ExitBootServices was called, up
// to attempts times.
//
// Boot services memory is free for the caller afterwards, those regions are
// reported as ConventionalMemory in the returned map.
func ExitBootServices(bs *uefi.BootServices, image uefi.Handle, attempts int) (*uefi.MemoryMap, error) {
	m, err := bs.GetMemoryMap()

	if err != nil {
		return nil, err
	}

	attempts = max(attempts, 1)

	for i := 0; ; i++ {
		err = bs.ExitBootServices(image, m.Key)

		if err == nil {
			break
		}

		if !errors.Is(err, uefi.ErrInvalidParameter) {
			return nil, err
		}

		if i+1 == attempts {
			return nil, fmt.Errorf("%w: memory map changed %d times", uefi.ErrAborted, attempts)
		}

		Logger().Debug("memory map key is stale, retrying", zap.Int("attempt", i+1), zap.Uint64("key", uint64(m.Key)))

		if err = bs.ReadMemoryMap(m); err != nil {
			return nil, fmt.Errorf("%w: reading memory map: %w", uefi.ErrAborted, err)
		}
	}

	for i := 0; i < m.Len(); i++ {
		switch m.Descriptor(i).Type {
		case uefi.BootServicesCode, uefi.BootServicesData:
			m.SetType(i, uefi.ConventionalMemory)
		}
	}

	return m, nil
}

// Exit returns control to the image parent with status. When Exit fails the
// system is shut down with ResetSystem, errors from both calls are reported
// together.
func Exit(bs *uefi.BootServices, rt *uefi.RuntimeServices, image uefi.Handle, status uefi.Status) error {
	err := bs.Exit(image, status)

	if err == nil {
		return nil
	}

	Logger().Debug("exit failed, shutting down", zap.Error(err))

	if rerr := rt.ResetSystem(uefi.ResetShutdown, status); rerr != nil {
		return multierror.Append(err, rerr)
	}

	return err
}
