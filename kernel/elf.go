package kernel

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// ELFHeaderSize is the size of the ELF64 file header. Parsing never
// looks past it.
const ELFHeaderSize = 64

var elfMagic = []byte{0x7F, 'E', 'L', 'F'}

// ELF64 header fields the parser cares about.
//
//	0x04 u8  class     2 = 64-bit
//	0x05 u8  encoding  1 = little endian
//	0x06 u8  version   1
//	0x10 u16 type      2 = executable
//	0x12 u16 machine   0x3e = x86-64
//	0x18 u64 entry     virtual entry point
const (
	elfOffClass    = 0x04
	elfOffEncoding = 0x05
	elfOffVersion  = 0x06
	elfOffType     = 0x10
	elfOffMachine  = 0x12
	elfOffEntry    = 0x18

	elfClass64      = 2
	elfEncodingLSB  = 1
	elfVersion1     = 1
	elfTypeExec     = 2
	elfMachineX8664 = 0x3E
)

var (
	ErrELFTooSmall    = errors.New("kernel: image smaller than an elf header")
	ErrELFBadMagic    = errors.New("kernel: bad elf magic")
	ErrELFBadClass    = errors.New("kernel: elf class is not 64-bit")
	ErrELFBadEncoding = errors.New("kernel: elf encoding is not little endian")
	ErrELFBadVersion  = errors.New("kernel: unsupported elf version")
	ErrELFBadType     = errors.New("kernel: elf type is not executable")
	ErrELFBadMachine  = errors.New("kernel: elf machine is not x86-64")
)

// ELFInfo is what header parsing yields: the entry point named by
// the header and the total image size.
type ELFInfo struct {
	Entry uint64
	Size  uint64
}

// ParseELF validates the fixed 64-byte ELF64 header of image and
// extracts the entry point. The checks run in a fixed order and the
// first failure wins, so a truncated file always reports
// ErrELFTooSmall even if its magic is also wrong. Program and
// section headers are never consulted.
func ParseELF(image []byte) (ELFInfo, error) {
	if len(image) < ELFHeaderSize {
		return ELFInfo{}, ErrELFTooSmall
	}
	if !bytes.Equal(image[:4], elfMagic) {
		return ELFInfo{}, ErrELFBadMagic
	}
	if image[elfOffClass] != elfClass64 {
		return ELFInfo{}, ErrELFBadClass
	}
	if image[elfOffEncoding] != elfEncodingLSB {
		return ELFInfo{}, ErrELFBadEncoding
	}
	if image[elfOffVersion] != elfVersion1 {
		return ELFInfo{}, ErrELFBadVersion
	}
	if binary.LittleEndian.Uint16(image[elfOffType:]) != elfTypeExec {
		return ELFInfo{}, ErrELFBadType
	}
	if binary.LittleEndian.Uint16(image[elfOffMachine:]) != elfMachineX8664 {
		return ELFInfo{}, ErrELFBadMachine
	}
	return ELFInfo{
		Entry: binary.LittleEndian.Uint64(image[elfOffEntry:]),
		Size:  uint64(len(image)),
	}, nil
}

// ValidELF reports whether image parses as a loadable header.
func ValidELF(image []byte) bool {
	_, err := ParseELF(image)
	return err == nil
}
