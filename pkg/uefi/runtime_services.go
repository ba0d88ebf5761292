package uefi

import (
	"fmt"
	"time"
	"unsafe"
)

// RuntimeServices is EFI_RUNTIME_SERVICES, usable before and after
// ExitBootServices. §4.5
type RuntimeServices struct {
	Hdr                       TableHeader
	getTime                   uintptr
	setTime                   uintptr
	getWakeupTime             uintptr
	setWakeupTime             uintptr
	setVirtualAddressMap      uintptr
	convertPointer            uintptr
	getVariable               uintptr
	getNextVariableName       uintptr
	setVariable               uintptr
	getNextHighMonotonicCount uintptr
	resetSystem               uintptr
	updateCapsule             uintptr
	queryCapsuleCapabilities  uintptr
	queryVariableInfo         uintptr
}

// ResetType is EFI_RESET_TYPE.
type ResetType uint32

const (
	ResetCold ResetType = iota
	ResetWarm
	ResetShutdown
	ResetPlatformSpecific
)

// Time is EFI_TIME.
type Time struct {
	Year       uint16
	Month      uint8
	Day        uint8
	Hour       uint8
	Minute     uint8
	Second     uint8
	_          uint8
	Nanosecond uint32
	TimeZone   int16
	Daylight   uint8
	_          uint8
}

// UnspecifiedTimezone marks a Time as local time with unknown offset.
const UnspecifiedTimezone = 0x07ff

// Daylight flags
const (
	AdjustDaylight = 0x01
	InDaylight     = 0x02
)

// TimeCapabilities is EFI_TIME_CAPABILITIES.
type TimeCapabilities struct {
	Resolution uint32
	Accuracy   uint32
	SetsToZero bool
	_          [3]byte
}

// GoTime converts t, taking TimeZone as the local offset from UTC in
// minutes. Times with an unspecified time zone are returned as UTC.
func (t Time) GoTime() time.Time {
	loc := time.UTC

	if t.TimeZone != UnspecifiedTimezone {
		loc = time.FixedZone("", int(t.TimeZone)*60)
	}

	return time.Date(int(t.Year), time.Month(t.Month), int(t.Day),
		int(t.Hour), int(t.Minute), int(t.Second), int(t.Nanosecond), loc)
}

// TimeOf converts a Go time to an EFI_TIME keeping its zone offset.
func TimeOf(gt time.Time) Time {
	_, offset := gt.Zone()

	return Time{
		Year:       uint16(gt.Year()),
		Month:      uint8(gt.Month()),
		Day:        uint8(gt.Day()),
		Hour:       uint8(gt.Hour()),
		Minute:     uint8(gt.Minute()),
		Second:     uint8(gt.Second()),
		Nanosecond: uint32(gt.Nanosecond()),
		TimeZone:   int16(offset / 60),
	}
}

func (t Time) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second)
}

// Validate checks the runtime services table header.
func (rs *RuntimeServices) Validate() error {
	if rs == nil {
		return ErrUnavailable
	}

	return rs.Hdr.Validate(RuntimeServicesSignature, unsafe.Sizeof(*rs))
}

// GetTime returns the current time and the clock capabilities.
func (rs *RuntimeServices) GetTime() (t Time, caps TimeCapabilities, err error) {
	if rs == nil {
		return t, caps, ErrUnavailable
	}

	err = runtimeService(rs.getTime, unsafe.Pointer(&t), unsafe.Pointer(&caps))

	return
}

// SetTime sets the current time.
func (rs *RuntimeServices) SetTime(t Time) error {
	if rs == nil {
		return ErrUnavailable
	}

	return runtimeService(rs.setTime, unsafe.Pointer(&t))
}

// ResetSystem resets the platform. It only returns on failure.
func (rs *RuntimeServices) ResetSystem(t ResetType, status Status) error {
	if rs == nil {
		return ErrUnavailable
	}

	return runtimeService(rs.resetSystem, uint32(t), status, UINTN(0), nil)
}
