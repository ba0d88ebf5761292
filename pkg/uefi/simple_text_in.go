package uefi

import (
	"fmt"
	"unsafe"
)

// Scan codes reported in InputKey.ScanCode for keys without a Unicode
// character, §12.3 Table 12-1.
const (
	ScanNull     uint16 = 0x00
	ScanUp       uint16 = 0x01
	ScanDown     uint16 = 0x02
	ScanRight    uint16 = 0x03
	ScanLeft     uint16 = 0x04
	ScanHome     uint16 = 0x05
	ScanEnd      uint16 = 0x06
	ScanInsert   uint16 = 0x07
	ScanDelete   uint16 = 0x08
	ScanPageUp   uint16 = 0x09
	ScanPageDown uint16 = 0x0a
	ScanF1       uint16 = 0x0b
	ScanF10      uint16 = 0x14
	ScanEsc      uint16 = 0x17
)

// InputKey is EFI_INPUT_KEY, the keystroke information for a key press.
type InputKey struct {
	ScanCode    uint16
	UnicodeChar CHAR16
}

// Rune returns the character of the key, or 0 for keys only identified by
// a scan code.
func (k InputKey) Rune() rune {
	return rune(k.UnicodeChar)
}

func (k InputKey) String() string {
	if k.UnicodeChar != 0 {
		return fmt.Sprintf("%q", rune(k.UnicodeChar))
	}

	return fmt.Sprintf("scan(%#x)", k.ScanCode)
}

// SimpleTextInputProtocol is EFI_SIMPLE_TEXT_INPUT_PROTOCOL, the minimum
// protocol required of the ConsoleIn device. §12.3
type SimpleTextInputProtocol struct {
	reset         uintptr
	readKeyStroke uintptr
	WaitForKey    Event
}

// Reset resets the input device and optionally runs diagnostics.
func (p *SimpleTextInputProtocol) Reset(extendedVerification bool) error {
	if p == nil {
		return ErrUnavailable
	}

	return bootService(p.reset, unsafe.Pointer(p), extendedVerification)
}

// ReadKeyStroke reads the next keystroke without blocking. With no
// keystroke pending it fails with ErrNotReady.
func (p *SimpleTextInputProtocol) ReadKeyStroke() (key InputKey, err error) {
	if p == nil {
		return key, ErrUnavailable
	}

	err = bootService(p.readKeyStroke, unsafe.Pointer(p), unsafe.Pointer(&key))

	return
}

// ReadKey blocks on the WaitForKey event and then reads the keystroke.
// The CPU is halted in firmware for the duration of the wait, see package
// ueficore for a cancellable alternative.
func (p *SimpleTextInputProtocol) ReadKey(bs *BootServices) (InputKey, error) {
	if p == nil {
		return InputKey{}, ErrUnavailable
	}

	if _, err := bs.WaitForEvent(p.WaitForKey); err != nil {
		return InputKey{}, err
	}

	return p.ReadKeyStroke()
}
