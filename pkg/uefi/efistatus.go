package uefi

import (
	"errors"
	"fmt"
)

// Status is an EFI_STATUS: a machine word whose top bit marks an error.
// Non-zero values with the top bit clear are warnings.
type Status UINTN

const errorMask = 1 << uintptr(uintnSize-1)

const (
	EFI_SUCCESS              Status = 0
	EFI_LOAD_ERROR           Status = errorMask | 1
	EFI_INVALID_PARAMETER    Status = errorMask | 2
	EFI_UNSUPPORTED          Status = errorMask | 3
	EFI_BAD_BUFFER_SIZE      Status = errorMask | 4
	EFI_BUFFER_TOO_SMALL     Status = errorMask | 5
	EFI_NOT_READY            Status = errorMask | 6
	EFI_DEVICE_ERROR         Status = errorMask | 7
	EFI_WRITE_PROTECTED      Status = errorMask | 8
	EFI_OUT_OF_RESOURCES     Status = errorMask | 9
	EFI_VOLUME_CORRUPTED     Status = errorMask | 10
	EFI_VOLUME_FULL          Status = errorMask | 11
	EFI_NO_MEDIA             Status = errorMask | 12
	EFI_MEDIA_CHANGED        Status = errorMask | 13
	EFI_NOT_FOUND            Status = errorMask | 14
	EFI_ACCESS_DENIED        Status = errorMask | 15
	EFI_NO_RESPONSE          Status = errorMask | 16
	EFI_NO_MAPPING           Status = errorMask | 17
	EFI_TIMEOUT              Status = errorMask | 18
	EFI_NOT_STARTED          Status = errorMask | 19
	EFI_ALREADY_STARTED      Status = errorMask | 20
	EFI_ABORTED              Status = errorMask | 21
	EFI_ICMP_ERROR           Status = errorMask | 22
	EFI_TFTP_ERROR           Status = errorMask | 23
	EFI_PROTOCOL_ERROR       Status = errorMask | 24
	EFI_INCOMPATIBLE_VERSION Status = errorMask | 25
	EFI_SECURITY_VIOLATION   Status = errorMask | 26
	EFI_CRC_ERROR            Status = errorMask | 27
	EFI_END_OF_MEDIA         Status = errorMask | 28
	EFI_END_OF_FILE          Status = errorMask | 31
	EFI_INVALID_LANGUAGE     Status = errorMask | 32
	EFI_COMPROMISED_DATA     Status = errorMask | 33
	EFI_IP_ADDRESS_CONFLICT  Status = errorMask | 34
	EFI_HTTP_ERROR           Status = errorMask | 35
)

const (
	EFI_WARN_UNKNOWN_GLYPH    Status = 1
	EFI_WARN_DELETE_FAILURE   Status = 2
	EFI_WARN_WRITE_FAILURE    Status = 3
	EFI_WARN_BUFFER_TOO_SMALL Status = 4
	EFI_WARN_STALE_DATA       Status = 5
	EFI_WARN_FILE_SYSTEM      Status = 6
	EFI_WARN_RESET_REQUIRED   Status = 7
)

var statusNames = map[Status]string{
	EFI_SUCCESS:               "EFI_SUCCESS",
	EFI_LOAD_ERROR:            "EFI_LOAD_ERROR",
	EFI_INVALID_PARAMETER:     "EFI_INVALID_PARAMETER",
	EFI_UNSUPPORTED:           "EFI_UNSUPPORTED",
	EFI_BAD_BUFFER_SIZE:       "EFI_BAD_BUFFER_SIZE",
	EFI_BUFFER_TOO_SMALL:      "EFI_BUFFER_TOO_SMALL",
	EFI_NOT_READY:             "EFI_NOT_READY",
	EFI_DEVICE_ERROR:          "EFI_DEVICE_ERROR",
	EFI_WRITE_PROTECTED:       "EFI_WRITE_PROTECTED",
	EFI_OUT_OF_RESOURCES:      "EFI_OUT_OF_RESOURCES",
	EFI_VOLUME_CORRUPTED:      "EFI_VOLUME_CORRUPTED",
	EFI_VOLUME_FULL:           "EFI_VOLUME_FULL",
	EFI_NO_MEDIA:              "EFI_NO_MEDIA",
	EFI_MEDIA_CHANGED:         "EFI_MEDIA_CHANGED",
	EFI_NOT_FOUND:             "EFI_NOT_FOUND",
	EFI_ACCESS_DENIED:         "EFI_ACCESS_DENIED",
	EFI_NO_RESPONSE:           "EFI_NO_RESPONSE",
	EFI_NO_MAPPING:            "EFI_NO_MAPPING",
	EFI_TIMEOUT:               "EFI_TIMEOUT",
	EFI_NOT_STARTED:           "EFI_NOT_STARTED",
	EFI_ALREADY_STARTED:       "EFI_ALREADY_STARTED",
	EFI_ABORTED:               "EFI_ABORTED",
	EFI_ICMP_ERROR:            "EFI_ICMP_ERROR",
	EFI_TFTP_ERROR:            "EFI_TFTP_ERROR",
	EFI_PROTOCOL_ERROR:        "EFI_PROTOCOL_ERROR",
	EFI_INCOMPATIBLE_VERSION:  "EFI_INCOMPATIBLE_VERSION",
	EFI_SECURITY_VIOLATION:    "EFI_SECURITY_VIOLATION",
	EFI_CRC_ERROR:             "EFI_CRC_ERROR",
	EFI_END_OF_MEDIA:          "EFI_END_OF_MEDIA",
	EFI_END_OF_FILE:           "EFI_END_OF_FILE",
	EFI_INVALID_LANGUAGE:      "EFI_INVALID_LANGUAGE",
	EFI_COMPROMISED_DATA:      "EFI_COMPROMISED_DATA",
	EFI_IP_ADDRESS_CONFLICT:   "EFI_IP_ADDRESS_CONFLICT",
	EFI_HTTP_ERROR:            "EFI_HTTP_ERROR",
	EFI_WARN_UNKNOWN_GLYPH:    "EFI_WARN_UNKNOWN_GLYPH",
	EFI_WARN_DELETE_FAILURE:   "EFI_WARN_DELETE_FAILURE",
	EFI_WARN_WRITE_FAILURE:    "EFI_WARN_WRITE_FAILURE",
	EFI_WARN_BUFFER_TOO_SMALL: "EFI_WARN_BUFFER_TOO_SMALL",
	EFI_WARN_STALE_DATA:       "EFI_WARN_STALE_DATA",
	EFI_WARN_FILE_SYSTEM:      "EFI_WARN_FILE_SYSTEM",
	EFI_WARN_RESET_REQUIRED:   "EFI_WARN_RESET_REQUIRED",
}

// Raw returns the firmware integer for s.
func (s Status) Raw() uintptr {
	return uintptr(s)
}

// Code returns s without the error bit.
func (s Status) Code() uintptr {
	return uintptr(s) &^ errorMask
}

// IsSuccess reports whether s is EFI_SUCCESS.
func (s Status) IsSuccess() bool {
	return s == EFI_SUCCESS
}

// IsWarning reports whether s is a non-zero status without the error bit.
func (s Status) IsWarning() bool {
	return s != EFI_SUCCESS && uintptr(s)&errorMask == 0
}

// IsError reports whether the error bit of s is set.
func (s Status) IsError() bool {
	return uintptr(s)&errorMask != 0
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}

	if s.IsError() {
		return fmt.Sprintf("EFI_STATUS error %#x", s.Code())
	}

	return fmt.Sprintf("EFI_STATUS warning %#x", s.Code())
}

// Err returns nil for success and warnings, and the *Error carrying s
// otherwise.
func (s Status) Err() error {
	if !s.IsError() {
		return nil
	}

	return StatusError(s)
}

// Result splits s into the non-error status, which may be a warning the
// caller wants to act on, and an error. Exactly one of the two is
// meaningful: with a nil error the returned Status is s.
func (s Status) Result() (Status, error) {
	if err := s.Err(); err != nil {
		return EFI_SUCCESS, err
	}

	return s, nil
}

var errMap = make(map[Status]*Error)

var (
	ErrLoadError           = newError(EFI_LOAD_ERROR, "image failed to load")
	ErrInvalidParameter    = newError(EFI_INVALID_PARAMETER, "a parameter was incorrect")
	ErrUnsupported         = newError(EFI_UNSUPPORTED, "operation not supported")
	ErrBadBufferSize       = newError(EFI_BAD_BUFFER_SIZE, "buffer size incorrect for request")
	ErrBufferTooSmall      = newError(EFI_BUFFER_TOO_SMALL, "buffer too small; size returned in parameter")
	ErrNotReady            = newError(EFI_NOT_READY, "no data pending")
	ErrDeviceError         = newError(EFI_DEVICE_ERROR, "physical device reported an error")
	ErrWriteProtected      = newError(EFI_WRITE_PROTECTED, "device is write-protected")
	ErrOutOfResources      = newError(EFI_OUT_OF_RESOURCES, "out of resources")
	ErrVolumeCorrupted     = newError(EFI_VOLUME_CORRUPTED, "filesystem inconsistency detected")
	ErrVolumeFull          = newError(EFI_VOLUME_FULL, "no more space on filesystem")
	ErrNoMedia             = newError(EFI_NO_MEDIA, "device contains no medium")
	ErrMediaChanged        = newError(EFI_MEDIA_CHANGED, "medium changed since last access")
	ErrNotFound            = newError(EFI_NOT_FOUND, "item not found")
	ErrAccessDenied        = newError(EFI_ACCESS_DENIED, "access denied")
	ErrNoResponse          = newError(EFI_NO_RESPONSE, "server not found or no response")
	ErrNoMapping           = newError(EFI_NO_MAPPING, "no device mapping exists")
	ErrTimeout             = newError(EFI_TIMEOUT, "timeout expired")
	ErrNotStarted          = newError(EFI_NOT_STARTED, "protocol not started")
	ErrAlreadyStarted      = newError(EFI_ALREADY_STARTED, "protocol already started")
	ErrAborted             = newError(EFI_ABORTED, "operation aborted")
	ErrICMPError           = newError(EFI_ICMP_ERROR, "ICMP error during network operation")
	ErrTFTPError           = newError(EFI_TFTP_ERROR, "TFTP error during network operation")
	ErrProtocolError       = newError(EFI_PROTOCOL_ERROR, "protocol error during network operation")
	ErrIncompatibleVersion = newError(EFI_INCOMPATIBLE_VERSION, "requested version incompatible")
	ErrSecurityViolation   = newError(EFI_SECURITY_VIOLATION, "security violation")
	ErrCRCError            = newError(EFI_CRC_ERROR, "CRC error detected")
	ErrEndOfMedia          = newError(EFI_END_OF_MEDIA, "beginning or end of media reached")
	ErrEndOfFile           = newError(EFI_END_OF_FILE, "end of file reached")
	ErrInvalidLanguage     = newError(EFI_INVALID_LANGUAGE, "invalid language specified")
	ErrCompromisedData     = newError(EFI_COMPROMISED_DATA, "data security status unknown or compromised")
	ErrIPAddressConflict   = newError(EFI_IP_ADDRESS_CONFLICT, "IP address conflict detected")
	ErrHTTPError           = newError(EFI_HTTP_ERROR, "HTTP error during network operation")
)

// Error is a firmware reported error status.
type Error struct {
	code Status
	msg  string
}

func newError(code Status, msg string) *Error {
	err := &Error{
		code: code,
		msg:  msg,
	}
	errMap[code] = err
	return err
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%v)", e.msg, e.code)
}

// Status returns the raw status the firmware returned.
func (e *Error) Status() Status {
	return e.code
}

// Is matches any *Error carrying the same status, so errors built for codes
// outside the registry still compare with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.code == e.code
}

// StatusError returns the error object given by status. These
// can be checked/managed with errors.Is() and the like.
func StatusError(status Status) *Error {
	if !status.IsError() {
		return nil
	}
	if err, ok := errMap[status]; ok {
		return err
	}
	return &Error{code: status, msg: "unknown EFI error"}
}

// StatusOf returns the status carried by err, EFI_SUCCESS for a nil error and
// fallback for errors not produced by firmware.
func StatusOf(err error, fallback Status) Status {
	var e *Error

	switch {
	case err == nil:
		return EFI_SUCCESS
	case errors.As(err, &e):
		return e.code
	default:
		return fallback
	}
}
