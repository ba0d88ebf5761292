// Block I/O Protocol §13.9 and Disk I/O Protocol §13.7
package uefi

import (
	"unsafe"
)

// {964E5B21-6459-11D2-8E39-00A0C969723B}
var BlockIOProtocolGUID = MustParseGUID("964E5B21-6459-11D2-8E39-00A0C969723B")

// {CE345171-BA0B-11D2-8E4F-00A0C969723B}
var DiskIOProtocolGUID = MustParseGUID("CE345171-BA0B-11D2-8E4F-00A0C969723B")

// BlockIOMedia is EFI_BLOCK_IO_MEDIA. The fields after LastBlock are valid
// from protocol revision 2 and 3 respectively.
type BlockIOMedia struct {
	MediaID          uint32
	RemovableMedia   bool
	MediaPresent     bool
	LogicalPartition bool
	ReadOnly         bool
	WriteCaching     bool
	_                [3]byte
	BlockSize        uint32
	IoAlign          uint32
	LastBlock        uint64

	LowestAlignedLba                 uint64
	LogicalBlocksPerPhysicalBlock    uint32
	OptimalTransferLengthGranularity uint32
}

// Size returns the media size in bytes.
func (m *BlockIOMedia) Size() uint64 {
	return (m.LastBlock + 1) * uint64(m.BlockSize)
}

// BlockIOProtocol is EFI_BLOCK_IO_PROTOCOL.
type BlockIOProtocol struct {
	Revision    uint64
	Media       *BlockIOMedia
	reset       uintptr // (*this, extendedVerification)
	readBlocks  uintptr // (*this, mediaId, lba, bufferSize, buffer)
	writeBlocks uintptr // (*this, mediaId, lba, bufferSize, buffer)
	flushBlocks uintptr // (*this)
}

// Reset resets the device.
func (p *BlockIOProtocol) Reset(extendedVerification bool) error {
	if p == nil {
		return ErrUnavailable
	}

	return bootService(p.reset, unsafe.Pointer(p), extendedVerification)
}

// ReadBlocks reads len(buf) bytes starting at block lba of the current
// media, len(buf) must be a multiple of the block size.
func (p *BlockIOProtocol) ReadBlocks(lba uint64, buf []byte) error {
	if p == nil {
		return ErrUnavailable
	}

	if len(buf) == 0 {
		return nil
	}

	return bootService(p.readBlocks, unsafe.Pointer(p), p.Media.MediaID, lba, UINTN(len(buf)), unsafe.Pointer(&buf[0]))
}

// WriteBlocks writes buf starting at block lba of the current media.
func (p *BlockIOProtocol) WriteBlocks(lba uint64, buf []byte) error {
	if p == nil {
		return ErrUnavailable
	}

	if len(buf) == 0 {
		return nil
	}

	return bootService(p.writeBlocks, unsafe.Pointer(p), p.Media.MediaID, lba, UINTN(len(buf)), unsafe.Pointer(&buf[0]))
}

// FlushBlocks writes cached data to the device.
func (p *BlockIOProtocol) FlushBlocks() error {
	if p == nil {
		return ErrUnavailable
	}

	return bootService(p.flushBlocks, unsafe.Pointer(p))
}

// DiskIOProtocol is EFI_DISK_IO_PROTOCOL, byte addressed access layered on
// a block device.
type DiskIOProtocol struct {
	Revision  uint64
	readDisk  uintptr // (*this, mediaId, offset, bufferSize, buffer)
	writeDisk uintptr // (*this, mediaId, offset, bufferSize, buffer)
}

// ReadDisk reads len(buf) bytes at byte offset of media mediaID.
func (p *DiskIOProtocol) ReadDisk(mediaID uint32, offset uint64, buf []byte) error {
	if p == nil {
		return ErrUnavailable
	}

	if len(buf) == 0 {
		return nil
	}

	return bootService(p.readDisk, unsafe.Pointer(p), mediaID, offset, UINTN(len(buf)), unsafe.Pointer(&buf[0]))
}

// WriteDisk writes buf at byte offset of media mediaID.
func (p *DiskIOProtocol) WriteDisk(mediaID uint32, offset uint64, buf []byte) error {
	if p == nil {
		return ErrUnavailable
	}

	if len(buf) == 0 {
		return nil
	}

	return bootService(p.writeDisk, unsafe.Pointer(p), mediaID, offset, UINTN(len(buf)), unsafe.Pointer(&buf[0]))
}
