//go:build tamago && amd64

package uefi

// defined in call_amd64.s
func callFn(fn uint64, n int, args []uint64) (status uint64)

func platformInvoker() Invoker {
	return InvokerFunc(func(fn uintptr, args []uint64) uint64 {
		return callFn(uint64(fn), len(args), args)
	})
}
