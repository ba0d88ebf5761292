package uefitest

import (
	"sort"
	"unsafe"

	"github.com/costinm/efiabi/pkg/uefi"
)

// Variable is an emulated firmware variable.
type Variable struct {
	Name       string
	Vendor     uefi.GUID
	Attributes uint32
	Data       []byte
}

type variableKey struct {
	name   string
	vendor uefi.GUID
}

type runtime struct {
	variables map[variableKey]*Variable
	resets    []uefi.ResetType
}

// variable storage reported by QueryVariableInfo
const (
	variableStorage = 64 * 1024
	maxVariableSize = 8 * 1024
)

func (fw *Firmware) initRuntime() {
	fw.variables = make(map[variableKey]*Variable)

	rs := unsafe.Pointer(fw.RS)
	const r = "RuntimeServices"

	fw.bind(rs, r, "RS", "GetTime", func(args []uint64) uefi.Status {
		if args[0] == 0 {
			return uefi.EFI_INVALID_PARAMETER
		}

		fw.Lock()
		*(*uefi.Time)(ptr(args[0])) = fw.Now
		fw.Unlock()

		if args[1] != 0 {
			*(*uefi.TimeCapabilities)(ptr(args[1])) = uefi.TimeCapabilities{
				Resolution: 1,
				Accuracy:   50000000,
			}
		}

		return uefi.EFI_SUCCESS
	})

	fw.bind(rs, r, "RS", "SetTime", func(args []uint64) uefi.Status {
		t := *(*uefi.Time)(ptr(args[0]))

		if t.Month < 1 || t.Month > 12 || t.Day < 1 || t.Day > 31 {
			return uefi.EFI_INVALID_PARAMETER
		}

		fw.Lock()
		fw.Now = t
		fw.Unlock()

		return uefi.EFI_SUCCESS
	})

	fw.bind(rs, r, "RS", "GetVariable", func(args []uint64) uefi.Status {
		key := variableKey{readString(args[0]), readGUID(args[1])}

		fw.Lock()
		v, ok := fw.variables[key]
		fw.Unlock()

		if !ok {
			return uefi.EFI_NOT_FOUND
		}

		if args[2] != 0 {
			*(*uint32)(ptr(args[2])) = v.Attributes
		}

		size := getUINTN(args[3])
		setUINTN(args[3], uint64(len(v.Data)))

		if size < uint64(len(v.Data)) {
			return uefi.EFI_BUFFER_TOO_SMALL
		}

		copy(buffer(args[4], size), v.Data)

		return uefi.EFI_SUCCESS
	})

	fw.bind(rs, r, "RS", "SetVariable", func(args []uint64) uefi.Status {
		key := variableKey{readString(args[0]), readGUID(args[1])}

		if key.name == "" {
			return uefi.EFI_INVALID_PARAMETER
		}

		attr := uint32(args[2])
		data := buffer(args[4], args[3])

		fw.Lock()
		defer fw.Unlock()

		if len(data) == 0 {
			if _, ok := fw.variables[key]; !ok {
				return uefi.EFI_NOT_FOUND
			}

			delete(fw.variables, key)

			return uefi.EFI_SUCCESS
		}

		fw.variables[key] = &Variable{
			Name:       key.name,
			Vendor:     key.vendor,
			Attributes: attr,
			Data:       append([]byte(nil), data...),
		}

		return uefi.EFI_SUCCESS
	})

	fw.bind(rs, r, "RS", "GetNextVariableName", fw.getNextVariableName)

	fw.bind(rs, r, "RS", "ResetSystem", func(args []uint64) uefi.Status {
		fw.Lock()
		defer fw.Unlock()

		fw.resets = append(fw.resets, uefi.ResetType(args[0]))

		return uefi.EFI_SUCCESS
	})

	fw.bind(rs, r, "RS", "QueryVariableInfo", func(args []uint64) uefi.Status {
		fw.Lock()
		used := 0
		for _, v := range fw.variables {
			used += len(v.Name)*2 + len(v.Data)
		}
		fw.Unlock()

		*(*uint64)(ptr(args[1])) = variableStorage
		*(*uint64)(ptr(args[2])) = uint64(max(variableStorage-used, 0))
		*(*uint64)(ptr(args[3])) = maxVariableSize

		return uefi.EFI_SUCCESS
	})
}

// sortedVariables returns the variables in enumeration order, fw must be
// locked.
func (fw *Firmware) sortedVariables() []*Variable {
	vars := make([]*Variable, 0, len(fw.variables))

	for _, v := range fw.variables {
		vars = append(vars, v)
	}

	sort.Slice(vars, func(i, j int) bool {
		if vars[i].Vendor != vars[j].Vendor {
			return vars[i].Vendor.String() < vars[j].Vendor.String()
		}
		return vars[i].Name < vars[j].Name
	})

	return vars
}

func (fw *Firmware) getNextVariableName(args []uint64) uefi.Status {
	name := readString(args[1])
	vendor := readGUID(args[2])

	fw.Lock()
	vars := fw.sortedVariables()
	fw.Unlock()

	next := 0

	if name != "" {
		next = -1

		for i, v := range vars {
			if v.Name == name && v.Vendor == vendor {
				next = i + 1
				break
			}
		}

		if next < 0 {
			return uefi.EFI_INVALID_PARAMETER
		}
	}

	if next >= len(vars) {
		return uefi.EFI_NOT_FOUND
	}

	v := vars[next]
	encoded, _ := uefi.EncodeString(v.Name)
	size := getUINTN(args[0])
	setUINTN(args[0], uint64(len(encoded)))

	if size < uint64(len(encoded)) {
		return uefi.EFI_BUFFER_TOO_SMALL
	}

	copy(buffer(args[1], size), encoded)
	*(*uefi.GUID)(ptr(args[2])) = v.Vendor

	return uefi.EFI_SUCCESS
}

// SetVariable stores a variable directly in the emulated store.
func (fw *Firmware) SetVariable(v Variable) {
	fw.Lock()
	defer fw.Unlock()

	v.Data = append([]byte(nil), v.Data...)
	fw.variables[variableKey{v.Name, v.Vendor}] = &v
}

// Variable returns a variable from the emulated store.
func (fw *Firmware) Variable(name string, vendor uefi.GUID) (Variable, bool) {
	fw.Lock()
	defer fw.Unlock()

	v, ok := fw.variables[variableKey{name, vendor}]

	if !ok {
		return Variable{}, false
	}

	return *v, true
}

// Resets returns the reset types requested through ResetSystem.
func (fw *Firmware) Resets() []uefi.ResetType {
	fw.Lock()
	defer fw.Unlock()

	return append([]uefi.ResetType(nil), fw.resets...)
}
