package ueficore

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/costinm/efiabi/pkg/uefi"
)

// Chainload loads an EFI image from memory as a child of parent, passes it
// options as its load options and starts it. It returns once the image
// exits, with the exit data it reported.
func Chainload(bs *uefi.BootServices, parent uefi.Handle, image []byte, options string) (exitData string, err error) {
	h, err := bs.LoadImage(false, parent, nil, image)

	if err != nil {
		return "", fmt.Errorf("loading image: %w", err)
	}

	li, err := bs.LoadedImage(h)

	if err != nil {
		_ = bs.UnloadImage(h)
		return "", err
	}

	if options != "" {
		if err = li.SetOptions(bs, options); err != nil {
			_ = bs.UnloadImage(h)
			return "", fmt.Errorf("setting load options: %w", err)
		}
	}

	// an application is unloaded when it exits, li is not valid afterwards
	opts := li.LoadOptions

	Logger().Debug("starting image",
		zap.Stringer("handle", h),
		zap.Uint64("size", li.ImageSize),
		zap.String("options", options))

	exitData, err = bs.StartImage(h)

	if options != "" {
		if ferr := bs.FreePool(opts); ferr != nil {
			Logger().Debug("freeing load options", zap.Error(ferr))
		}
	}

	if err != nil {
		return exitData, fmt.Errorf("starting image: %w", err)
	}

	return exitData, nil
}

// ChainloadFile reads path from the boot volume of image and chainloads it.
func ChainloadFile(bs *uefi.BootServices, image uefi.Handle, path string, options string) (string, error) {
	buf, err := ReadFile(bs, image, path)

	if err != nil {
		return "", err
	}

	return Chainload(bs, image, buf, options)
}
