//go:build !(tamago && amd64)

package uefi

// Hosted builds have no firmware to enter until an emulated one is installed
// with SetInvoker.
func platformInvoker() Invoker {
	return nil
}
