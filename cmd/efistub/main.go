//go:build tamago

// efistub is a UEFI application: it reports the firmware and memory layout
// on the console and optionally chainloads an EFI kernel from the boot
// volume. Options are read from the image load options, for example:
//
//	efistub.efi --kernel \EFI\Linux\vmlinuz.efi --timeout 3s -- root=/dev/sda2 quiet
package main

import (
	"github.com/usbarmory/go-boot/uefi/x64"
	"go.uber.org/zap"

	"github.com/costinm/efiabi/pkg/uefi"
	"github.com/costinm/efiabi/pkg/ueficore"
)

func main() {
	imageHandle, systemTable := x64.UEFI.Handles()

	uefi.Run(uintptr(imageHandle), uintptr(systemTable), func(image uefi.Handle, st *uefi.SystemTable) uefi.Status {
		status := run(image, st)

		if err := ueficore.Exit(st.BootServices, st.RuntimeServices, image, status); err != nil {
			ueficore.Logger().Error("exit", zap.Error(err))
		}

		return status
	})
}
