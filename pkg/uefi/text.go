package uefi

import (
	"errors"
	"fmt"
	"unicode/utf8"
	"unsafe"

	"golang.org/x/text/encoding/unicode"
)

// Color is an EFI text color, §12.4.7 SetAttribute().
type Color uint8

const (
	Black Color = iota
	Blue
	Green
	Cyan
	Red
	Magenta
	Brown
	LightGray
	DarkGray
	LightBlue
	LightGreen
	LightCyan
	LightRed
	LightMagenta
	Yellow
	White
)

const (
	maxForeground = White
	maxBackground = LightGray

	foregroundMask = 0x0f
	backgroundMask = 0x70
	backgroundBit  = 4
)

var colorNames = [...]string{
	"Black", "Blue", "Green", "Cyan", "Red", "Magenta", "Brown", "LightGray",
	"DarkGray", "LightBlue", "LightGreen", "LightCyan", "LightRed",
	"LightMagenta", "Yellow", "White",
}

func (c Color) String() string {
	if int(c) < len(colorNames) {
		return colorNames[c]
	}
	return fmt.Sprintf("Color(%d)", uint8(c))
}

// Attribute is a packed EFI_TEXT_ATTR: foreground in bits 0-3, background
// in bits 4-6. Bit 7 and above are reserved and always zero.
type Attribute uint8

// NewAttribute packs a foreground and background color. Only the first
// eight colors can be used as background.
func NewAttribute(fg, bg Color) (Attribute, error) {
	if fg > maxForeground {
		return 0, fmt.Errorf("%w: foreground %v", ErrInvalidColor, fg)
	}

	if bg > maxBackground {
		return 0, fmt.Errorf("%w: background %v", ErrInvalidColor, bg)
	}

	return Attribute(fg) | Attribute(bg)<<backgroundBit, nil
}

// AttributeFromMode decodes the attribute reported in
// SIMPLE_TEXT_OUTPUT_MODE, dropping reserved bits.
func AttributeFromMode(attr int32) Attribute {
	return Attribute(attr & (foregroundMask | backgroundMask))
}

// Foreground returns the foreground color.
func (a Attribute) Foreground() Color {
	return Color(a & foregroundMask)
}

// Background returns the background color.
func (a Attribute) Background() Color {
	return Color(a&backgroundMask) >> backgroundBit
}

func (a Attribute) String() string {
	return fmt.Sprintf("%v on %v", a.Foreground(), a.Background())
}

// ucs2 is little endian UTF-16 without byte order mark.
var ucs2 = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// EncodeString transcodes s to a NUL terminated UCS-2 little endian byte
// sequence, the CHAR16 string format of UEFI.
//
// Text that cannot be represented exactly fails with ErrEncoding: invalid
// UTF-8, runes outside the Basic Multilingual Plane and embedded NUL
// characters, which firmware would take as the end of the string.
func EncodeString(s string) ([]byte, error) {
	for i, r := range s {
		switch {
		case r == utf8.RuneError:
			if _, size := utf8.DecodeRuneInString(s[i:]); size <= 1 {
				return nil, fmt.Errorf("%w: invalid UTF-8 at byte %d", ErrEncoding, i)
			}
		case r == 0:
			return nil, fmt.Errorf("%w: NUL at byte %d", ErrEncoding, i)
		case r > 0xffff:
			return nil, fmt.Errorf("%w: %U at byte %d outside the BMP", ErrEncoding, r, i)
		}
	}

	buf, err := ucs2.NewEncoder().Bytes([]byte(s))

	if err != nil {
		return nil, errors.Join(ErrEncoding, err)
	}

	return append(buf, 0, 0), nil
}

// DecodeString transcodes a UCS-2 little endian byte sequence, stopping at
// the first NUL character if any.
func DecodeString(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", fmt.Errorf("%w: odd length %d", ErrEncoding, len(b))
	}

	for i := 0; i+1 < len(b); i += 2 {
		if b[i] == 0 && b[i+1] == 0 {
			b = b[:i]
			break
		}
	}

	s, err := ucs2.NewDecoder().Bytes(b)

	if err != nil {
		return "", errors.Join(ErrEncoding, err)
	}

	return string(s), nil
}

// maxStringLength bounds reads of firmware owned CHAR16 strings.
const maxStringLength = 4096

// readString decodes the NUL terminated CHAR16 string firmware placed at p.
func readString(p *CHAR16) (string, error) {
	if p == nil {
		return "", nil
	}

	n := 0
	for ; n < maxStringLength; n++ {
		if *(*CHAR16)(unsafe.Add(unsafe.Pointer(p), n*2)) == 0 {
			break
		}
	}

	return DecodeString(unsafe.Slice((*byte)(unsafe.Pointer(p)), n*2))
}

// encodePointer encodes s and returns the pointer to pass as CHAR16*.
func encodePointer(s string) (unsafe.Pointer, error) {
	buf, err := EncodeString(s)

	if err != nil {
		return nil, err
	}

	return unsafe.Pointer(&buf[0]), nil
}
