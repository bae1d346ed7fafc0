// (c) Copyright 2024 MediaForge Technologies LP

package signature

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fsProbeImageSize = 0x8000 + 512

func probeFs(t *testing.T, build func(img sectorBuf)) string {
	t.Helper()
	img := newImage(fsProbeImageSize)
	build(img)
	name, err := FsName(img, 0)
	require.NoError(t, err)
	return name
}

func TestFsNameWindowsFamily(t *testing.T) {
	assert.Equal(t, "NTFS", probeFs(t, func(img sectorBuf) {
		copy(img[0x03:], "NTFS    ")
	}))
	assert.Equal(t, "exFAT", probeFs(t, func(img sectorBuf) {
		copy(img[0x03:], "EXFAT   ")
	}))
	assert.Equal(t, "ReFS", probeFs(t, func(img sectorBuf) {
		copy(img[0x03:], []byte{'R', 'e', 'F', 'S', 0, 0, 0, 0})
	}))
}

func TestFsNameFatThroughEbpb(t *testing.T) {
	// The OEM name is deliberately not a FAT magic; detection must go through the EBPB
	assert.Equal(t, "FAT16", probeFs(t, func(img sectorBuf) {
		copy(img[0x03:], "mkfs.fat")
		copy(img[0x36:], "FAT16   ")
	}))
	assert.Equal(t, "FAT32", probeFs(t, func(img sectorBuf) {
		copy(img[0x03:], "mkfs.fat")
		copy(img[0x52:], "FAT32   ")
	}))
	assert.Equal(t, "FAT12", probeFs(t, func(img sectorBuf) {
		copy(img[0x36:], "FAT12   ")
	}))
	assert.Equal(t, "FAT", probeFs(t, func(img sectorBuf) {
		copy(img[0x36:], "FAT     ")
	}))
}

func TestFsNameIso9660(t *testing.T) {
	assert.Equal(t, "ISO9660", probeFs(t, func(img sectorBuf) {
		copy(img[0x01:], "CD001")
	}))
}

func TestFsNameApple(t *testing.T) {
	assert.Equal(t, "APFS", probeFs(t, func(img sectorBuf) {
		copy(img[0x20:], "NXSB")
	}))
	assert.Equal(t, "HFS/HFS+", probeFs(t, func(img sectorBuf) {
		img[0x400] = 'H'
		img[0x401] = '+'
	}))
	assert.Equal(t, "HFS/HFS+", probeFs(t, func(img sectorBuf) {
		img[0x400] = 'H'
		img[0x401] = 'X'
	}))
}

func TestFsNameExtFamily(t *testing.T) {
	writeExtSuper := func(img sectorBuf, compat, roCompat, incompat uint32) {
		img[0x400+0x38] = 0x53
		img[0x400+0x39] = 0xef
		binary.LittleEndian.PutUint32(img[0x400+0x5c:], compat)
		binary.LittleEndian.PutUint32(img[0x400+0x60:], roCompat)
		binary.LittleEndian.PutUint32(img[0x400+0x64:], incompat)
	}

	// Plain sparse-super/filetype features: ext2
	assert.Equal(t, "ext2", probeFs(t, func(img sectorBuf) {
		writeExtSuper(img, 0x00000038, 0x00000002, 0x00000002)
	}))
	// has_journal: ext3
	assert.Equal(t, "ext3", probeFs(t, func(img sectorBuf) {
		writeExtSuper(img, 0x0000003c, 0x00000002, 0x00000002)
	}))
	// flex_bg (alongside extents): ext4
	assert.Equal(t, "ext4", probeFs(t, func(img sectorBuf) {
		writeExtSuper(img, 0x0000003c, 0x00000002, 0x00000242)
	}))
	// No recognized feature bits at all: bare ext
	assert.Equal(t, "ext", probeFs(t, func(img sectorBuf) {
		writeExtSuper(img, 0, 0, 0)
	}))
}

func TestFsNameUdf(t *testing.T) {
	assert.Equal(t, "UDF", probeFs(t, func(img sectorBuf) {
		copy(img[0x8001:], "BEA01")
	}))
}

func TestFsNameUnrecognized(t *testing.T) {
	assert.Equal(t, FsNameUnrecognized, probeFs(t, func(img sectorBuf) {}))
}

func TestFsNameAtPartitionOffset(t *testing.T) {
	// The probe must honor the partition's starting offset
	img := newImage(0x10000 + fsProbeImageSize)
	const offset = 0x10000
	copy(img[offset+0x03:], "NTFS    ")
	name, err := FsName(img, offset)
	require.NoError(t, err)
	assert.Equal(t, "NTFS", name)
}
