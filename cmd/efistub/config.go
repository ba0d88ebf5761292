package main

import (
	"io"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
)

type config struct {
	Kernel     string
	Cmdline    string
	Timeout    time.Duration
	Serial     bool
	Debug      bool
	NoWatchdog bool
	// SHA256 is the expected hex digest of the kernel image.
	SHA256 string
}

// parseOptions parses the image load options. Shells and some boot managers
// pass the image path as the first word, it is skipped. Words after the
// flags extend the kernel command line.
func parseOptions(opts string) (*config, error) {
	cfg := &config{}
	fs := newFlagSet(cfg)

	args := strings.Fields(opts)

	if len(args) > 0 && strings.HasSuffix(strings.ToLower(args[0]), ".efi") {
		args = args[1:]
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if extra := fs.Args(); len(extra) > 0 {
		cfg.Cmdline = strings.TrimSpace(cfg.Cmdline + " " + strings.Join(extra, " "))
	}

	return cfg, nil
}

func newFlagSet(cfg *config) *flag.FlagSet {
	fs := flag.NewFlagSet("efistub", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVarP(&cfg.Kernel, "kernel", "k", "", "EFI image to chainload, path on the boot volume")
	fs.StringVarP(&cfg.Cmdline, "cmdline", "c", "", "load options passed to the kernel")
	fs.DurationVarP(&cfg.Timeout, "timeout", "t", 0, "wait for a key press before booting, any key cancels")
	fs.BoolVar(&cfg.Serial, "serial", false, "mirror the console to the first serial port")
	fs.BoolVarP(&cfg.Debug, "debug", "d", false, "debug logging")
	fs.BoolVar(&cfg.NoWatchdog, "no-watchdog", false, "disable the firmware watchdog")
	fs.StringVar(&cfg.SHA256, "sha256", "", "refuse to boot a kernel without this hex SHA-256 digest")

	return fs
}
