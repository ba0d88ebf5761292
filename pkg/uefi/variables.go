package uefi

import (
	"errors"
	"unsafe"
)

// GlobalVariableGUID is EFI_GLOBAL_VARIABLE, the vendor of architectural
// variables such as BootOrder.
var GlobalVariableGUID = MustParseGUID("8BE4DF61-93CA-11D2-AA0D-00E098032B8C")

// Variable attributes, §8.2
const (
	EFI_VARIABLE_NON_VOLATILE                          uint32 = 0x00000001
	EFI_VARIABLE_BOOTSERVICE_ACCESS                    uint32 = 0x00000002
	EFI_VARIABLE_RUNTIME_ACCESS                        uint32 = 0x00000004
	EFI_VARIABLE_HARDWARE_ERROR_RECORD                 uint32 = 0x00000008
	EFI_VARIABLE_TIME_BASED_AUTHENTICATED_WRITE_ACCESS uint32 = 0x00000020
	EFI_VARIABLE_APPEND_WRITE                          uint32 = 0x00000040
)

// variableNameSize is the initial GetNextVariableName buffer size in bytes.
const variableNameSize = 512

// GetVariable returns the value and attributes of variable name.
func (rs *RuntimeServices) GetVariable(name string, vendor GUID) (data []byte, attr uint32, err error) {
	if rs == nil {
		return nil, 0, ErrUnavailable
	}

	str, err := encodePointer(name)

	if err != nil {
		return nil, 0, err
	}

	var size UINTN

	// probe for the size
	err = runtimeService(rs.getVariable, str, unsafe.Pointer(&vendor), unsafe.Pointer(&attr), unsafe.Pointer(&size), nil)

	if err == nil || !errors.Is(err, ErrBufferTooSmall) || size == 0 {
		return nil, attr, err
	}

	data = make([]byte, size)

	err = runtimeService(rs.getVariable, str, unsafe.Pointer(&vendor), unsafe.Pointer(&attr), unsafe.Pointer(&size), unsafe.Pointer(&data[0]))

	if err != nil {
		return nil, 0, err
	}

	return data[:size], attr, nil
}

// SetVariable sets, or deletes when data is empty, variable name.
func (rs *RuntimeServices) SetVariable(name string, vendor GUID, attr uint32, data []byte) error {
	if rs == nil {
		return ErrUnavailable
	}

	str, err := encodePointer(name)

	if err != nil {
		return err
	}

	var buf unsafe.Pointer

	if len(data) > 0 {
		buf = unsafe.Pointer(&data[0])
	}

	return runtimeService(rs.setVariable, str, unsafe.Pointer(&vendor), attr, UINTN(len(data)), buf)
}

// GetNextVariableName returns the variable following (name, vendor) in
// firmware enumeration order, start with an empty name. The end of the
// enumeration is reported with ErrNotFound.
func (rs *RuntimeServices) GetNextVariableName(name string, vendor GUID) (string, GUID, error) {
	if rs == nil {
		return "", vendor, ErrUnavailable
	}

	prev, err := EncodeString(name)

	if err != nil {
		return "", vendor, err
	}

	buf := make([]byte, max(variableNameSize, len(prev)))

	for {
		copy(buf, prev)
		size := UINTN(len(buf))

		err = runtimeService(rs.getNextVariableName, unsafe.Pointer(&size), unsafe.Pointer(&buf[0]), unsafe.Pointer(&vendor))

		switch {
		case errors.Is(err, ErrBufferTooSmall) && int(size) > len(buf):
			buf = make([]byte, size)
			continue
		case err != nil:
			return "", vendor, err
		}

		next, err := DecodeString(buf[:min(int(size), len(buf))&^1])

		return next, vendor, err
	}
}

// QueryVariableInfo returns the storage available for variables with the
// given attributes.
func (rs *RuntimeServices) QueryVariableInfo(attr uint32) (maxStorage, remaining, maxSize uint64, err error) {
	if rs == nil {
		return 0, 0, 0, ErrUnavailable
	}

	err = runtimeService(rs.queryVariableInfo, attr, unsafe.Pointer(&maxStorage), unsafe.Pointer(&remaining), unsafe.Pointer(&maxSize))

	return
}
