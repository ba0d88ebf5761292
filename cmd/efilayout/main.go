// efilayout prints the 64-bit layout of every structure mapped by package
// uefi next to the offsets published by the UEFI specification.
//
// Synopsis:
//
//	efilayout [--type NAME]... [--check]
//
// With --check nothing is printed unless a layout differs, and the exit
// status is non-zero in that case.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/camelcase"
	"github.com/jedib0t/go-pretty/v6/table"
	flag "github.com/spf13/pflag"

	"github.com/costinm/efiabi/pkg/uefi"
)

var (
	check = flag.BoolP("check", "c", false, "only verify layouts, report mismatches")
	types = flag.StringSliceP("type", "t", nil, "structures to print, by Go or EFI name")
)

// C names which do not follow the EFI_ prefix rule
var cNames = map[string]string{
	"SimpleTextOutputMode": "SIMPLE_TEXT_OUTPUT_MODE",
	"SerialIOMode":         "SERIAL_IO_MODE",
}

// cName returns the C type name of a Go structure name, SerialIOProtocol
// becomes EFI_SERIAL_IO_PROTOCOL.
func cName(name string) string {
	if c, ok := cNames[name]; ok {
		return c
	}

	return "EFI_" + strings.ToUpper(strings.Join(camelcase.Split(name), "_"))
}

func selectLayouts(names []string) ([]uefi.Layout, error) {
	if len(names) == 0 {
		return uefi.Layouts, nil
	}

	var selected []uefi.Layout

	for _, name := range names {
		found := false

		for _, l := range uefi.Layouts {
			if strings.EqualFold(name, l.Name) || strings.EqualFold(name, cName(l.Name)) {
				selected = append(selected, l)
				found = true
			}
		}

		if !found {
			return nil, fmt.Errorf("unknown structure %q", name)
		}
	}

	return selected, nil
}

func status(ok bool) string {
	if ok {
		return "ok"
	}

	return "MISMATCH"
}

func render(w io.Writer, l uefi.Layout) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("%s (%s, %s, align %d)", cName(l.Name), l.Name, humanize.Bytes(uint64(l.Size)), l.Align)
	t.AppendHeader(table.Row{"Field", "Offset", "Published", ""})

	for _, f := range l.Fields {
		t.AppendRow(table.Row{f.Name, fmt.Sprintf("%#04x", f.Offset), fmt.Sprintf("%#04x", f.Expected), status(f.Offset == f.Expected)})
	}

	t.AppendFooter(table.Row{"size", l.Size, l.Expected, status(l.Size == l.Expected)})
	t.Render()
}

func run(w io.Writer, names []string, checkOnly bool) error {
	layouts, err := selectLayouts(names)

	if err != nil {
		return err
	}

	failed := 0

	for _, l := range layouts {
		err := l.Verify()

		if err != nil {
			failed++
			fmt.Fprintln(w, err)
		}

		if !checkOnly {
			render(w, l)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d structures do not match", failed, len(layouts))
	}

	return nil
}

func main() {
	flag.Parse()

	if err := run(os.Stdout, *types, *check); err != nil {
		log.Fatal(err)
	}
}
