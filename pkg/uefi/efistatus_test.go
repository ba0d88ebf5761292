package uefi

import (
	"errors"
	"fmt"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status  Status
		success bool
		warning bool
		error   bool
	}{
		{EFI_SUCCESS, true, false, false},
		{EFI_WARN_UNKNOWN_GLYPH, false, true, false},
		{EFI_WARN_RESET_REQUIRED, false, true, false},
		{EFI_LOAD_ERROR, false, false, true},
		{EFI_NOT_FOUND, false, false, true},
		{EFI_HTTP_ERROR, false, false, true},
		{Status(errorMask | 0x1234), false, false, true},
		{Status(0x1234), false, true, false},
	}

	for _, tc := range tests {
		t.Run(tc.status.String(), func(t *testing.T) {
			assert.Equal(t, tc.success, tc.status.IsSuccess())
			assert.Equal(t, tc.warning, tc.status.IsWarning())
			assert.Equal(t, tc.error, tc.status.IsError())
		})
	}
}

func TestStatusErrorBit(t *testing.T) {
	assert.Equal(t, uintptr(1)<<63, uintptr(errorMask))
	assert.Equal(t, uintptr(0x8000000000000001), EFI_LOAD_ERROR.Raw())
	assert.Equal(t, uintptr(14), EFI_NOT_FOUND.Code())
	assert.Equal(t, uintptr(31), EFI_END_OF_FILE.Code())
}

func TestStatusRawRoundTrip(t *testing.T) {
	f := func(raw uint64) bool {
		s := Status(raw)
		return Status(s.Raw()) == s && s.IsError() == (raw>>63 == 1)
	}

	require.NoError(t, quick.Check(f, nil))
}

func TestStatusExactlyOneClass(t *testing.T) {
	f := func(raw uint64) bool {
		s := Status(raw)

		n := 0
		for _, b := range []bool{s.IsSuccess(), s.IsWarning(), s.IsError()} {
			if b {
				n++
			}
		}

		return n == 1
	}

	require.NoError(t, quick.Check(f, nil))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "EFI_SUCCESS", EFI_SUCCESS.String())
	assert.Equal(t, "EFI_BUFFER_TOO_SMALL", EFI_BUFFER_TOO_SMALL.String())
	assert.Equal(t, "EFI_WARN_DELETE_FAILURE", EFI_WARN_DELETE_FAILURE.String())
	assert.Equal(t, "EFI_STATUS error 0x64", Status(errorMask|100).String())
	assert.Equal(t, "EFI_STATUS warning 0x64", Status(100).String())
}

func TestStatusErr(t *testing.T) {
	assert.NoError(t, EFI_SUCCESS.Err())
	assert.NoError(t, EFI_WARN_STALE_DATA.Err())

	err := EFI_NOT_FOUND.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrNotReady)

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, EFI_NOT_FOUND, e.Status())
	assert.Contains(t, err.Error(), "EFI_NOT_FOUND")
}

func TestStatusErrUnknownCode(t *testing.T) {
	s := Status(errorMask | 0x7000)
	err := s.Err()

	require.Error(t, err)
	assert.ErrorIs(t, err, StatusError(s))
	assert.Contains(t, err.Error(), "unknown EFI error")
	assert.Nil(t, StatusError(EFI_SUCCESS))
}

func TestStatusResult(t *testing.T) {
	s, err := EFI_SUCCESS.Result()
	assert.Equal(t, EFI_SUCCESS, s)
	assert.NoError(t, err)

	s, err = EFI_WARN_UNKNOWN_GLYPH.Result()
	assert.Equal(t, EFI_WARN_UNKNOWN_GLYPH, s)
	assert.NoError(t, err)

	s, err = EFI_DEVICE_ERROR.Result()
	assert.Equal(t, EFI_SUCCESS, s)
	assert.ErrorIs(t, err, ErrDeviceError)
}

func TestEveryErrorRegistered(t *testing.T) {
	for code := Status(errorMask | 1); code <= EFI_HTTP_ERROR; code++ {
		if code == errorMask|29 || code == errorMask|30 {
			continue
		}

		err, ok := errMap[code]
		require.True(t, ok, "%#x", code.Code())
		assert.Equal(t, code, err.Status())
		assert.Contains(t, statusNames, code)
	}
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, EFI_SUCCESS, StatusOf(nil, EFI_ABORTED))
	assert.Equal(t, EFI_NOT_FOUND, StatusOf(ErrNotFound, EFI_ABORTED))
	assert.Equal(t, EFI_NOT_FOUND, StatusOf(fmt.Errorf("open: %w", ErrNotFound), EFI_ABORTED))
	assert.Equal(t, EFI_ABORTED, StatusOf(errors.New("local"), EFI_ABORTED))
	assert.Equal(t, EFI_LOAD_ERROR, StatusOf(ErrEncoding, EFI_LOAD_ERROR))
}
