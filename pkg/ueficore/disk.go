package ueficore

import (
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/costinm/efiabi/pkg/uefi"
)

// Disk is an io.ReaderAt and io.WriterAt over a block device. Transfers use
// the disk I/O protocol when the handle carries one, otherwise whole blocks
// are moved through a bounce buffer.
type Disk struct {
	Handle uefi.Handle
	Block  *uefi.BlockIOProtocol
	IO     *uefi.DiskIOProtocol
}

// EnumerateDisks returns every block device with media present, in handle
// order. Partitions are reported as separate disks.
func EnumerateDisks(bs *uefi.BootServices) ([]*Disk, error) {
	handles, err := bs.LocateHandleBuffer(uefi.ByProtocol, &uefi.BlockIOProtocolGUID)

	if err != nil {
		return nil, err
	}

	var disks []*Disk

	for _, h := range handles {
		iface, err := bs.HandleProtocol(h, uefi.BlockIOProtocolGUID)

		if err != nil {
			return nil, fmt.Errorf("disk %v: %w", h, err)
		}

		d := &Disk{Handle: h, Block: (*uefi.BlockIOProtocol)(iface)}

		if !d.Block.Media.MediaPresent {
			continue
		}

		if iface, err := bs.HandleProtocol(h, uefi.DiskIOProtocolGUID); err == nil {
			d.IO = (*uefi.DiskIOProtocol)(iface)
		} else if !errors.Is(err, uefi.ErrUnsupported) {
			return nil, fmt.Errorf("disk %v: %w", h, err)
		}

		disks = append(disks, d)
	}

	return disks, nil
}

// Size returns the media size in bytes.
func (d *Disk) Size() int64 {
	return int64(d.Block.Media.Size())
}

// SectorSize returns the block size in bytes.
func (d *Disk) SectorSize() int {
	return int(d.Block.Media.BlockSize)
}

func (d *Disk) String() string {
	m := d.Block.Media
	return fmt.Sprintf("disk %d: %s, %d byte blocks", m.MediaID, humanize.IBytes(m.Size()), m.BlockSize)
}

// span clips a transfer of n bytes at off to the media size.
func (d *Disk) span(off int64, n int) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: negative offset %d", uefi.ErrInvalidParameter, off)
	}

	if size := d.Size(); off+int64(n) > size {
		return int(max(size-off, 0)), io.EOF
	}

	return n, nil
}

// ReadAt implements io.ReaderAt.
func (d *Disk) ReadAt(p []byte, off int64) (int, error) {
	n, eof := d.span(off, len(p))

	if n == 0 {
		return 0, eof
	}

	var err error

	if d.IO != nil {
		err = d.IO.ReadDisk(d.Block.Media.MediaID, uint64(off), p[:n])
	} else {
		err = d.readBlocks(p[:n], off)
	}

	if err != nil {
		return 0, err
	}

	return n, eof
}

// WriteAt implements io.WriterAt, writes past the end of the media are
// truncated and fail with io.ErrShortWrite.
func (d *Disk) WriteAt(p []byte, off int64) (int, error) {
	if d.Block.Media.ReadOnly {
		return 0, uefi.ErrWriteProtected
	}

	n, eof := d.span(off, len(p))

	if eof != nil {
		eof = io.ErrShortWrite
	}

	if n == 0 {
		return 0, eof
	}

	var err error

	if d.IO != nil {
		err = d.IO.WriteDisk(d.Block.Media.MediaID, uint64(off), p[:n])
	} else {
		err = d.writeBlocks(p[:n], off)
	}

	if err != nil {
		return 0, err
	}

	return n, eof
}

// Flush writes device caches back to the media.
func (d *Disk) Flush() error {
	return d.Block.FlushBlocks()
}

// blocks returns the first block and a buffer covering n bytes at off.
func (d *Disk) blocks(off int64, n int) (uint64, []byte) {
	bs := int64(d.SectorSize())
	first := off / bs
	last := (off + int64(n) + bs - 1) / bs

	return uint64(first), make([]byte, (last-first)*bs)
}

func (d *Disk) readBlocks(p []byte, off int64) error {
	lba, buf := d.blocks(off, len(p))

	if err := d.Block.ReadBlocks(lba, buf); err != nil {
		return err
	}

	copy(p, buf[off-int64(lba)*int64(d.SectorSize()):])

	return nil
}

// writeBlocks merges p into the blocks it covers, partial blocks are read
// first.
func (d *Disk) writeBlocks(p []byte, off int64) error {
	lba, buf := d.blocks(off, len(p))
	start := off - int64(lba)*int64(d.SectorSize())

	if start != 0 || len(p) != len(buf) {
		if err := d.Block.ReadBlocks(lba, buf); err != nil {
			return err
		}
	}

	copy(buf[start:], p)

	return d.Block.WriteBlocks(lba, buf)
}
