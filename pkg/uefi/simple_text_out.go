package uefi

import (
	"unsafe"
)

// SimpleTextOutputProtocol is EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL, the
// ConsoleOut device interface. §12.4
type SimpleTextOutputProtocol struct {
	reset             uintptr
	outputString      uintptr
	testString        uintptr
	queryMode         uintptr
	setMode           uintptr
	setAttribute      uintptr
	clearScreen       uintptr
	setCursorPosition uintptr
	enableCursor      uintptr
	Mode              *SimpleTextOutputMode
}

// SimpleTextOutputMode is SIMPLE_TEXT_OUTPUT_MODE, owned and updated by
// firmware.
type SimpleTextOutputMode struct {
	MaxMode       int32
	Mode          int32
	Attribute     int32
	CursorColumn  int32
	CursorRow     int32
	CursorVisible bool
	_             [3]byte
}

// Reset resets the output device and optionally runs diagnostics.
func (p *SimpleTextOutputProtocol) Reset(extendedVerification bool) error {
	if p == nil {
		return ErrUnavailable
	}

	return bootService(p.reset, unsafe.Pointer(p), extendedVerification)
}

// OutputString writes s at the current cursor position. The returned Status
// is EFI_SUCCESS or a warning such as EFI_WARN_UNKNOWN_GLYPH when some
// characters could not be rendered.
func (p *SimpleTextOutputProtocol) OutputString(s string) (Status, error) {
	if p == nil {
		return EFI_SUCCESS, ErrUnavailable
	}

	str, err := encodePointer(s)

	if err != nil {
		return EFI_SUCCESS, err
	}

	return callService(bootScope, p.outputString, unsafe.Pointer(p), str)
}

// TestString verifies that all characters of s can be rendered, failing
// with ErrUnsupported otherwise.
func (p *SimpleTextOutputProtocol) TestString(s string) error {
	if p == nil {
		return ErrUnavailable
	}

	str, err := encodePointer(s)

	if err != nil {
		return err
	}

	return bootService(p.testString, unsafe.Pointer(p), str)
}

// QueryMode returns the geometry of text mode mode.
func (p *SimpleTextOutputProtocol) QueryMode(mode UINTN) (columns UINTN, rows UINTN, err error) {
	if p == nil {
		return 0, 0, ErrUnavailable
	}

	err = bootService(p.queryMode, unsafe.Pointer(p), mode, unsafe.Pointer(&columns), unsafe.Pointer(&rows))

	return
}

// SetMode selects the text mode, clearing the screen.
func (p *SimpleTextOutputProtocol) SetMode(mode UINTN) error {
	if p == nil {
		return ErrUnavailable
	}

	return bootService(p.setMode, unsafe.Pointer(p), mode)
}

// SetAttribute sets the colors of subsequent output.
func (p *SimpleTextOutputProtocol) SetAttribute(attr Attribute) error {
	if p == nil {
		return ErrUnavailable
	}

	return bootService(p.setAttribute, unsafe.Pointer(p), UINTN(attr))
}

// ClearScreen clears the display with the current background color and
// moves the cursor to (0, 0).
func (p *SimpleTextOutputProtocol) ClearScreen() error {
	if p == nil {
		return ErrUnavailable
	}

	return bootService(p.clearScreen, unsafe.Pointer(p))
}

// SetCursorPosition moves the cursor, positions are zero based.
func (p *SimpleTextOutputProtocol) SetCursorPosition(column UINTN, row UINTN) error {
	if p == nil {
		return ErrUnavailable
	}

	return bootService(p.setCursorPosition, unsafe.Pointer(p), column, row)
}

// EnableCursor makes the cursor visible or invisible.
func (p *SimpleTextOutputProtocol) EnableCursor(visible bool) error {
	if p == nil {
		return ErrUnavailable
	}

	return bootService(p.enableCursor, unsafe.Pointer(p), visible)
}

// CurrentMode returns a copy of the mode data firmware currently reports.
func (p *SimpleTextOutputProtocol) CurrentMode() (SimpleTextOutputMode, error) {
	if p == nil || p.Mode == nil {
		return SimpleTextOutputMode{}, ErrUnavailable
	}

	mux.Lock()
	defer mux.Unlock()

	if exited {
		return SimpleTextOutputMode{}, ErrBootServicesExited
	}

	return *p.Mode, nil
}

// CurrentAttribute decodes the attribute of the current mode.
func (m SimpleTextOutputMode) CurrentAttribute() Attribute {
	return AttributeFromMode(m.Attribute)
}
