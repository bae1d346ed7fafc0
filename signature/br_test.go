// (c) Copyright 2024 MediaForge Technologies LP

package signature

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sectorBuf is an in-memory device image implementing io.ReaderAt / io.WriterAt
type sectorBuf []byte

func (b sectorBuf) ReadAt(p []byte, off int64) (int, error) {
	return copy(p, b[off:]), nil
}

func (b sectorBuf) WriteAt(p []byte, off int64) (int, error) {
	return copy(b[off:], p), nil
}

func newImage(size int) sectorBuf {
	return make(sectorBuf, size)
}

var allMbrFlavors = []MbrFlavor{
	MbrDos, MbrDosF2, Mbr95B, Mbr2000, MbrVista, MbrWin7, MbrRufus,
	MbrSyslinux, MbrReactOS, MbrKolibriOS, MbrGrub4Dos, MbrGrub2,
	MbrSyslinuxGpt, MbrZeroed,
}

func TestWriteMbrProducesBootRecord(t *testing.T) {
	for _, flavor := range allMbrFlavors {
		img := newImage(4096)
		require.NoError(t, WriteMBR(img, 512, flavor), flavor.String())
		assert.True(t, IsBootRecord(img, 512), "flavor %v must produce a boot marker", flavor)
	}
}

func TestIdentifyMbrRoundTrip(t *testing.T) {
	for _, flavor := range allMbrFlavors {
		img := newImage(4096)
		require.NoError(t, WriteMBR(img, 512, flavor))
		assert.Equal(t, flavor, IdentifyMBR(img, 512), "flavor %v must identify as itself", flavor)
	}
}

func TestBootMarkerReplication(t *testing.T) {
	for _, sectorSize := range []uint32{512, 1024, 2048, 4096} {
		img := newImage(8192)
		require.NoError(t, WriteMBR(img, sectorSize, MbrWin7))

		// Marker must be present at 0x1fe of every 512-byte unit through the sector size
		for pos := 0x1fe; pos < int(sectorSize); pos += 0x200 {
			assert.Equal(t, []byte{0x55, 0xaa}, []byte(img[pos:pos+2]),
				"sector size %d: marker missing at 0x%x", sectorSize, pos)
		}
		// ... and nowhere past it
		next := int(sectorSize) + 0x1fe
		assert.NotEqual(t, []byte{0x55, 0xaa}, []byte(img[next:next+2]),
			"sector size %d: marker must not extend past the sector", sectorSize)

		assert.True(t, IsBootRecord(img, sectorSize))
	}
}

func TestIdentifyMbrUnknown(t *testing.T) {
	// Garbage with a boot marker identifies as unknown, not as an error
	img := newImage(512)
	for i := 0; i < 0x1b8; i++ {
		img[i] = byte(i*7 + 1)
	}
	img[0x1fe] = 0x55
	img[0x1ff] = 0xaa
	assert.Equal(t, MbrUnknown, IdentifyMBR(img, 512))

	// No boot marker at all: everything but the zeroed flavor is ruled out
	blank := newImage(512)
	blank[0] = 0x01
	assert.Equal(t, MbrUnknown, IdentifyMBR(blank, 512))
}

func TestZeroedMbrIgnoresDiskSignature(t *testing.T) {
	// A zeroed boot area with a disk signature still reports as zeroed
	img := newImage(512)
	require.NoError(t, WriteDiskSignature(img, 0xdeadbeef))
	assert.Equal(t, MbrZeroed, IdentifyMBR(img, 512))
}

func TestDiskSignatureRoundTrip(t *testing.T) {
	img := newImage(512)
	require.NoError(t, WriteDiskSignature(img, 0x17283545))
	sig, err := ReadDiskSignature(img)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x17283545), sig)

	// The boot code templates must leave the signature alone
	require.NoError(t, WriteMBR(img, 512, MbrSyslinux))
	sig, err = ReadDiskSignature(img)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x17283545), sig)
}

func TestCopyProtectBytes(t *testing.T) {
	img := newImage(512)
	img[0x1bc] = 0x5a
	img[0x1bd] = 0x5a
	cp, err := ReadCopyProtectBytes(img)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x5a5a), cp)
}

func TestWriteMbrPreservesPartitionEntries(t *testing.T) {
	img := newImage(512)
	// Simulate an existing partition table
	entry := []byte{0x80, 0x01, 0x01, 0x00, 0x0c, 0xfe, 0xff, 0xff, 0x00, 0x08, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00}
	copy(img[0x1be:], entry)

	require.NoError(t, WriteMBR(img, 512, MbrWin7))
	assert.True(t, bytes.Equal([]byte(img[0x1be:0x1ce]), entry), "partition entry must survive a boot code rewrite")
}
