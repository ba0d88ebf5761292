package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/costinm/efiabi/pkg/uefi"
	"github.com/costinm/efiabi/pkg/ueficore"
)

const serialBaud = 115200

// output returns the console writer, mirrored to the first serial port when
// requested and available.
func output(st *uefi.SystemTable, cfg *config) io.Writer {
	con := ueficore.NewConsole(st)
	con.ReplaceTabs = 4
	con.Replacement = '?'

	if !cfg.Serial {
		return con
	}

	ports, err := ueficore.EnumerateSerialPorts(st.BootServices)

	if err != nil {
		fmt.Fprintf(con, "no serial port: %v\n", err)
		return con
	}

	if err := ports[0].Configure(serialBaud); err != nil {
		fmt.Fprintf(con, "serial port %v: %v\n", ports[0].Handle, err)
		return con
	}

	return io.MultiWriter(con, ports[0])
}

func firmwareInfo(w io.Writer, log *zap.Logger, st *uefi.SystemTable) {
	vendor, err := st.Vendor()

	if err != nil {
		log.Warn("firmware vendor", zap.Error(err))
	}

	fmt.Fprintf(w, "efistub • %s/%s (%s) • UEFI %s • %s rev %#x\n",
		runtime.GOOS, runtime.GOARCH, runtime.Version(),
		st.Hdr.RevisionString(), vendor, st.FirmwareRevision)

	if err := st.Validate(); err != nil {
		log.Warn("system table", zap.Error(err))
	}

	log.Debug("configuration tables", zap.Int("count", len(st.ConfigurationTables())))

	if gop, err := st.BootServices.LocateGraphicsOutput(); err == nil {
		if info, err := gop.Info(); err == nil {
			log.Info("graphics", zap.Uint32("width", info.HorizontalResolution), zap.Uint32("height", info.VerticalResolution))
		}
	}

	disks, _ := ueficore.EnumerateDisks(st.BootServices)

	for _, d := range disks {
		log.Debug("block device", zap.Stringer("disk", d))
	}

	nics, _ := ueficore.EnumerateNetworks(st.BootServices)

	for _, n := range nics {
		log.Debug("network interface", zap.Stringer("mac", n.HardwareAddr()))
	}
}

func memorySummary(w io.Writer, log *zap.Logger, bs *uefi.BootServices) {
	m, err := bs.GetMemoryMap()

	if err != nil {
		log.Warn("memory map", zap.Error(err))
		return
	}

	totals := ueficore.MemoryTotals(m)

	for _, t := range totals {
		fmt.Fprintln(w, t)
	}

	fmt.Fprintf(w, "%d regions, %s usable\n", m.Len(), humanize.IBytes(ueficore.Usable(totals)))
}

// countdown waits cfg.Timeout for a key press, it reports whether the boot
// should go ahead.
func countdown(w io.Writer, st *uefi.SystemTable, cfg *config) (bool, error) {
	if cfg.Timeout <= 0 {
		return true, nil
	}

	fmt.Fprintf(w, "booting %s in %v, press any key to cancel\n", cfg.Kernel, cfg.Timeout)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	key, err := ueficore.PollKey(ctx, st.ConIn, st.BootServices, ueficore.DefaultPollInterval)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return true, nil
	case err != nil:
		return false, err
	}

	fmt.Fprintf(w, "cancelled by %v\n", key)

	return false, nil
}

// verify checks image against the hex SHA-256 digest want, an empty digest
// accepts any image.
func verify(image []byte, want string) error {
	if want == "" {
		return nil
	}

	digest, err := hex.DecodeString(want)

	if err != nil || len(digest) != sha256.Size {
		return fmt.Errorf("invalid digest %q", want)
	}

	if sum := sha256.Sum256(image); !bytes.Equal(sum[:], digest) {
		return fmt.Errorf("digest mismatch, image is %x", sum)
	}

	return nil
}

// run is the application body, the returned status is passed to Exit.
func run(image uefi.Handle, st *uefi.SystemTable) uefi.Status {
	bs := st.BootServices

	li, err := bs.LoadedImage(image)

	if err != nil {
		return uefi.StatusOf(err, uefi.EFI_LOAD_ERROR)
	}

	opts, err := li.Options()

	if err != nil {
		return uefi.EFI_INVALID_PARAMETER
	}

	cfg, err := parseOptions(opts)

	if err != nil {
		con := ueficore.NewConsole(st)
		fmt.Fprintf(con, "invalid options %q: %v\n%s", opts, err, newFlagSet(&config{}).FlagUsages())
		return uefi.EFI_INVALID_PARAMETER
	}

	w := output(st, cfg)

	level := zapcore.InfoLevel

	if cfg.Debug {
		level = zapcore.DebugLevel
	}

	log := ueficore.NewConsoleLogger(w, level)
	ueficore.SetLogger(log)

	if cfg.NoWatchdog {
		if err := bs.SetWatchdogTimer(0, 0); err != nil {
			log.Warn("watchdog", zap.Error(err))
		}
	}

	firmwareInfo(w, log, st)
	memorySummary(w, log, bs)

	if cfg.Kernel == "" {
		return uefi.EFI_SUCCESS
	}

	boot, err := countdown(w, st, cfg)

	if err != nil {
		log.Error("waiting for key", zap.Error(err))
	}

	if !boot {
		return uefi.EFI_ABORTED
	}

	log.Info("chainloading", zap.String("kernel", cfg.Kernel), zap.String("cmdline", cfg.Cmdline))

	kernel, err := ueficore.ReadFile(bs, image, cfg.Kernel)

	if err != nil {
		log.Error("reading kernel", zap.Error(err))
		return uefi.StatusOf(err, uefi.EFI_LOAD_ERROR)
	}

	if err := verify(kernel, cfg.SHA256); err != nil {
		log.Error("kernel rejected", zap.Error(err))
		return uefi.EFI_SECURITY_VIOLATION
	}

	exitData, err := ueficore.Chainload(bs, image, kernel, cfg.Cmdline)

	if err != nil {
		log.Error("kernel returned", zap.Error(err), zap.String("exit data", exitData))
		return uefi.StatusOf(err, uefi.EFI_LOAD_ERROR)
	}

	return uefi.EFI_SUCCESS
}
