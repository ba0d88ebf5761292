package ueficore

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/costinm/efiabi/pkg/uefi"
)

// Console is an io.ReadWriter over the UEFI console protocols.
type Console struct {
	// ForceLine emits a carriage return after each line feed and reads the
	// Enter key as a line feed.
	ForceLine bool
	// ReplaceTabs expands each tab to that many spaces when non-zero.
	ReplaceTabs int
	// Replacement substitutes characters the console cannot represent when
	// non-zero. Otherwise Write fails with uefi.ErrEncoding.
	Replacement rune

	In   *uefi.SimpleTextInputProtocol
	Out  *uefi.SimpleTextOutputProtocol
	Boot *uefi.BootServices

	mu sync.Mutex
	// incomplete UTF-8 sequence held back until the next Write
	partial []byte
	// key bytes read but not yet returned
	pending []byte
}

// NewConsole returns a line oriented console on the system table ConIn and
// ConOut devices.
func NewConsole(st *uefi.SystemTable) *Console {
	return &Console{
		ForceLine: true,
		In:        st.ConIn,
		Out:       st.ConOut,
		Boot:      st.BootServices,
	}
}

// Write outputs p as UTF-8 text. A multi-byte sequence split across calls
// is written once complete.
func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf := append(c.partial, p...)
	c.partial = nil

	var sb strings.Builder

	for len(buf) > 0 {
		r, size := utf8.DecodeRune(buf)

		if r == utf8.RuneError && size <= 1 {
			if !utf8.FullRune(buf) {
				c.partial = append([]byte(nil), buf...)
				break
			}

			if c.Replacement == 0 {
				return 0, fmt.Errorf("%w: invalid UTF-8 byte %#x", uefi.ErrEncoding, buf[0])
			}

			r = c.Replacement
		}

		buf = buf[size:]
		c.translate(&sb, r)
	}

	if sb.Len() == 0 {
		return len(p), nil
	}

	status, err := c.Out.OutputString(sb.String())

	if err != nil {
		return 0, err
	}

	if status.IsWarning() {
		Logger().Debug("console output", zap.Stringer("status", status))
	}

	return len(p), nil
}

func (c *Console) translate(sb *strings.Builder, r rune) {
	switch {
	case r == '\n' && c.ForceLine:
		sb.WriteString("\r\n")
	case r == '\t' && c.ReplaceTabs > 0:
		sb.WriteString(strings.Repeat(" ", c.ReplaceTabs))
	case (r == 0 || r > 0xffff) && c.Replacement != 0:
		sb.WriteRune(c.Replacement)
	default:
		sb.WriteRune(r)
	}
}

// escape sequences for keys reported only by scan code
var scanSequences = map[uint16]string{
	uefi.ScanUp:     "\x1b[A",
	uefi.ScanDown:   "\x1b[B",
	uefi.ScanRight:  "\x1b[C",
	uefi.ScanLeft:   "\x1b[D",
	uefi.ScanHome:   "\x1b[H",
	uefi.ScanEnd:    "\x1b[F",
	uefi.ScanDelete: "\x1b[3~",
	uefi.ScanEsc:    "\x1b",
}

func (c *Console) appendKey(b []byte, key uefi.InputKey) []byte {
	if r := key.Rune(); r != 0 {
		if r == '\r' && c.ForceLine {
			r = '\n'
		}

		return utf8.AppendRune(b, r)
	}

	return append(b, scanSequences[key.ScanCode]...)
}

// Read blocks until a key is pressed, then returns it along with any other
// keys already pending, as UTF-8 text.
func (c *Console) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.pending) == 0 {
		key, err := c.In.ReadKey(c.Boot)

		if err != nil {
			return 0, err
		}

		c.pending = c.appendKey(c.pending, key)
	}

	for len(c.pending) < len(p) {
		key, err := c.In.ReadKeyStroke()

		if errors.Is(err, uefi.ErrNotReady) {
			break
		}

		if err != nil {
			return 0, err
		}

		c.pending = c.appendKey(c.pending, key)
	}

	n := copy(p, c.pending)
	c.pending = c.pending[n:]

	return n, nil
}
