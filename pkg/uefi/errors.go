package uefi

import (
	"errors"
	"fmt"
)

// Errors detected locally, before anything is handed to firmware.
var (
	// ErrUnavailable is returned when a protocol or service reference is
	// NULL, when a function pointer inside a table is NULL, or when no
	// firmware invoker is installed.
	ErrUnavailable = errors.New("EFI protocol unavailable")

	// ErrBootServicesExited is returned by boot services scoped calls after
	// a successful ExitBootServices.
	ErrBootServicesExited = fmt.Errorf("%w: boot services exited", ErrUnavailable)

	// ErrInvalidResult is returned when firmware reports success with an
	// output that cannot be right, such as an out of range event index.
	ErrInvalidResult = errors.New("invalid firmware result")

	// ErrEncoding is returned when text cannot be represented as a
	// NUL terminated UCS-2 string.
	ErrEncoding = errors.New("text not representable in UCS-2")

	// ErrInvalidColor is returned for colors outside the text attribute
	// enumeration.
	ErrInvalidColor = errors.New("invalid text color")
)
