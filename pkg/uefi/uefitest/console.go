package uefitest

import (
	"unsafe"

	"github.com/costinm/efiabi/pkg/uefi"
)

// text modes reported by QueryMode, mode 0 is mandatory 80x25
var textModes = [][2]uint64{
	{80, 25},
	{80, 50},
	{100, 31},
}

type delayedKey struct {
	stalls int
	key    uefi.InputKey
}

type console struct {
	mode    uefi.SimpleTextOutputMode
	raw     []byte
	keys    []uefi.InputKey
	delayed []delayedKey
}

func (fw *Firmware) initConsole() {
	fw.mode = uefi.SimpleTextOutputMode{
		MaxMode:       int32(len(textModes)),
		Attribute:     0x07,
		CursorVisible: true,
	}
	fw.ConOut.Mode = &fw.mode

	out := unsafe.Pointer(fw.ConOut)
	const o = "SimpleTextOutputProtocol"

	fw.bind(out, o, "ConOut", "Reset", func(args []uint64) uefi.Status {
		fw.mode.CursorColumn, fw.mode.CursorRow = 0, 0
		return uefi.EFI_SUCCESS
	})

	fw.bind(out, o, "ConOut", "OutputString", fw.outputString)

	fw.bind(out, o, "ConOut", "TestString", func(args []uint64) uefi.Status {
		return uefi.EFI_SUCCESS
	})

	fw.bind(out, o, "ConOut", "QueryMode", func(args []uint64) uefi.Status {
		mode := args[1]

		if mode >= uint64(len(textModes)) {
			return uefi.EFI_UNSUPPORTED
		}

		setUINTN(args[2], textModes[mode][0])
		setUINTN(args[3], textModes[mode][1])

		return uefi.EFI_SUCCESS
	})

	fw.bind(out, o, "ConOut", "SetMode", func(args []uint64) uefi.Status {
		if args[1] >= uint64(len(textModes)) {
			return uefi.EFI_UNSUPPORTED
		}

		fw.mode.Mode = int32(args[1])
		fw.mode.CursorColumn, fw.mode.CursorRow = 0, 0

		return uefi.EFI_SUCCESS
	})

	fw.bind(out, o, "ConOut", "SetAttribute", func(args []uint64) uefi.Status {
		if args[1]&^0x7f != 0 {
			return uefi.EFI_UNSUPPORTED
		}

		fw.mode.Attribute = int32(args[1])

		return uefi.EFI_SUCCESS
	})

	fw.bind(out, o, "ConOut", "ClearScreen", func(args []uint64) uefi.Status {
		fw.mode.CursorColumn, fw.mode.CursorRow = 0, 0
		return uefi.EFI_SUCCESS
	})

	fw.bind(out, o, "ConOut", "SetCursorPosition", func(args []uint64) uefi.Status {
		geometry := textModes[fw.mode.Mode]

		if args[1] >= geometry[0] || args[2] >= geometry[1] {
			return uefi.EFI_UNSUPPORTED
		}

		fw.mode.CursorColumn, fw.mode.CursorRow = int32(args[1]), int32(args[2])

		return uefi.EFI_SUCCESS
	})

	fw.bind(out, o, "ConOut", "EnableCursor", func(args []uint64) uefi.Status {
		fw.mode.CursorVisible = args[1] != 0
		return uefi.EFI_SUCCESS
	})

	in := unsafe.Pointer(fw.ConIn)
	const i = "SimpleTextInputProtocol"

	setWord(unsafe.Pointer(&fw.ConIn.WaitForKey), keyEvent)

	fw.bind(in, i, "ConIn", "Reset", func(args []uint64) uefi.Status {
		fw.Lock()
		defer fw.Unlock()

		fw.keys = nil
		fw.delayed = nil

		return uefi.EFI_SUCCESS
	})

	fw.bind(in, i, "ConIn", "ReadKeyStroke", func(args []uint64) uefi.Status {
		fw.Lock()
		defer fw.Unlock()

		if len(fw.keys) == 0 {
			return uefi.EFI_NOT_READY
		}

		*(*uefi.InputKey)(ptr(args[1])) = fw.keys[0]
		fw.keys = fw.keys[1:]

		return uefi.EFI_SUCCESS
	})
}

func (fw *Firmware) outputString(args []uint64) uefi.Status {
	n := 0
	for *(*uint16)(unsafe.Add(ptr(args[1]), n*2)) != 0 {
		n++
	}

	raw := buffer(args[1], uint64(n*2))

	fw.Lock()
	fw.raw = append(fw.raw, raw...)
	fw.Unlock()

	status := uefi.EFI_SUCCESS

	for j := 0; j < len(raw); j += 2 {
		c := uint16(raw[j]) | uint16(raw[j+1])<<8

		switch {
		case c == '\n':
			fw.mode.CursorRow++
		case c == '\r':
			fw.mode.CursorColumn = 0
		case c >= 0xe000 && c <= 0xf8ff:
			// private use area has no glyphs
			status = uefi.EFI_WARN_UNKNOWN_GLYPH
		default:
			fw.mode.CursorColumn++
		}
	}

	return status
}

// RawOutput returns the CHAR16 bytes passed to OutputString, without
// terminators.
func (fw *Firmware) RawOutput() []byte {
	fw.Lock()
	defer fw.Unlock()

	return append([]byte(nil), fw.raw...)
}

// Output returns the decoded console output.
func (fw *Firmware) Output() string {
	s, err := uefi.DecodeString(fw.RawOutput())

	if err != nil {
		fw.tb.Fatal(err)
	}

	return s
}

// PushKey queues key presses for ConIn.
func (fw *Firmware) PushKey(keys ...uefi.InputKey) {
	fw.Lock()
	defer fw.Unlock()

	fw.keys = append(fw.keys, keys...)
}

// PushString queues the characters of s as key presses.
func (fw *Firmware) PushString(s string) {
	for _, r := range s {
		fw.PushKey(uefi.InputKey{UnicodeChar: uefi.CHAR16(r)})
	}
}

// PushKeyAfter queues a key press that becomes available after the given
// number of Stall calls.
func (fw *Firmware) PushKeyAfter(stalls int, key uefi.InputKey) {
	fw.Lock()
	defer fw.Unlock()

	fw.delayed = append(fw.delayed, delayedKey{stalls: stalls, key: key})
}

// releaseDelayedKeys advances delayed keys by one Stall, fw must be
// locked.
func (fw *Firmware) releaseDelayedKeys() {
	pending := fw.delayed[:0]

	for _, d := range fw.delayed {
		if d.stalls--; d.stalls <= 0 {
			fw.keys = append(fw.keys, d.key)
			continue
		}

		pending = append(pending, d)
	}

	fw.delayed = pending
}

func (fw *Firmware) keyPending() bool {
	fw.Lock()
	defer fw.Unlock()

	return len(fw.keys) > 0
}
