// Package ueficore provides application level helpers on top of package
// uefi: an io.ReadWriter console, cancellable key polling, the
// ExitBootServices retry sequence, image chainloading, an fs.FS over the
// boot volume, and io adapters for serial ports, disks and network
// interfaces.
//
// Unlike package uefi, helpers here may retry and log. Logging goes through
// Logger, silent by default.
package ueficore
