// (c) Copyright 2024 MediaForge Technologies LP

package signature

import (
	"bytes"
	"encoding/binary"
	"io"
)

// FsNameUnrecognized is returned when no known superblock magic matches
const FsNameUnrecognized = "(Unrecognized)"

type fsMagic struct {
	name  string
	magic []byte
}

// OEM-name magics for the Windows family of file systems.  The 8 bytes after the jump
// instruction are not technically guaranteed to hold the file system name, but they do
// in every formatter that matters for exFAT/NTFS/ReFS.
var winFsTypes = []fsMagic{
	{"exFAT", []byte("EXFAT   ")},
	{"NTFS", []byte("NTFS    ")},
	{"ReFS", []byte{'R', 'e', 'F', 'S', 0, 0, 0, 0}},
}

// FAT magics probed inside the FAT12/16 and FAT32 Extended BIOS Parameter Blocks
var fatFsTypes = []fsMagic{
	{"FAT", []byte("FAT     ")},
	{"FAT12", []byte("FAT12   ")},
	{"FAT16", []byte("FAT16   ")},
	{"FAT32", []byte("FAT32   ")},
}

// ext feature masks, indexed [compat, ro_compat, incompat][ext2, ext3, ext4]
var extFeatures = [3][3]uint32{
	// feature_compat
	{0x0000017b, 0x00000004, 0x00000e00},
	// feature_ro_compat
	{0x00000003, 0x00000000, 0x00008ff8},
	// feature_incompat
	{0x00000013, 0x0000004c, 0x0003f780},
}

var extNames = []string{"ext", "ext2", "ext3", "ext4"}

// FsName classifies the file system found at the given partition offset by inspecting
// its superblock(s).  The probe order mirrors how ambiguous the magics are: ISO9660 and
// the OEM-name family first, then FAT through the EBPB, then Apple, ext* and UDF.
// Unrecognized content reports FsNameUnrecognized; only read failures are errors.
func FsName(r io.ReaderAt, partitionOffset int64) (string, error) {
	buf := make([]byte, 512)

	// 1. ISO9660/FAT/exFAT/NTFS/ReFS through the 512-byte superblock at offset 0
	if _, err := r.ReadAt(buf, partitionOffset); err != nil {
		return "", err
	}
	if bytes.Equal(buf[0x01:0x06], []byte("CD001")) {
		return "ISO9660", nil
	}
	for _, fs := range winFsTypes {
		if bytes.Equal(buf[0x03:0x03+len(fs.magic)], fs.magic) {
			return fs.name, nil
		}
	}

	// The FAT OEM name may be anything, so poke the FAT12/16 EBPB at 0x36 and the FAT32
	// EBPB at 0x52 instead.
	for offset := 0x36; offset <= 0x52; offset += 0x1c {
		for _, fs := range fatFsTypes {
			if bytes.Equal(buf[offset:offset+len(fs.magic)], fs.magic) {
				return fs.name, nil
			}
		}
	}

	// 2. Apple file systems: "NXSB" at 0x20 of sector 0 is APFS, "HX"/"H+" at offset
	// 1024 is HFS/HFS+
	if bytes.Equal(buf[0x20:0x24], []byte("NXSB")) {
		return "APFS", nil
	}
	if _, err := r.ReadAt(buf, partitionOffset+0x400); err != nil {
		return "", err
	}
	if buf[0] == 'H' && (buf[1] == 'X' || buf[1] == '+') {
		return "HFS/HFS+", nil
	}

	// 3. ext2/ext3/ext4 through the superblock at offset 1024: magic 0xef53 at +0x38,
	// revision judged from the three feature bitmaps at +0x5c
	if buf[0x38] == 0x53 && buf[0x39] == 0xef {
		rev := 0
		for i := 0; i < 3; i++ {
			feature := binary.LittleEndian.Uint32(buf[0x5c+4*i : 0x60+4*i])
			for j := 0; j < 3; j++ {
				if feature&extFeatures[i][j] != 0 && rev <= j {
					rev = j + 1
				}
			}
		}
		return extNames[rev], nil
	}

	// 4. UDF through the "BEA01" beginning extended area descriptor at offset 0x8001.
	// Not thorough UDF detection, but good enough for classification.
	if _, err := r.ReadAt(buf, partitionOffset+0x8000); err != nil {
		return "", err
	}
	if bytes.Equal(buf[1:6], []byte("BEA01")) {
		return "UDF", nil
	}

	return FsNameUnrecognized, nil
}
