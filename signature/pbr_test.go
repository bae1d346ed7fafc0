// (c) Copyright 2024 MediaForge Technologies LP

package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allPbrFlavors = []PbrFlavor{
	PbrFat16Dos, PbrFat16FreeDos, PbrFat16ReactOS,
	PbrFat32Dos, PbrFat32Nt, PbrFat32FreeDos, PbrFat32ReactOS, PbrFat32KolibriOS,
	PbrNtfs,
}

func TestIdentifyPbrRoundTrip(t *testing.T) {
	for _, flavor := range allPbrFlavors {
		img := newImage(4096)
		require.NoError(t, WritePBR(img, 512, flavor, false))
		assert.Equal(t, flavor, IdentifyPBR(img), "flavor %v must identify as itself", flavor)
	}
}

func TestWritePbrLabelHandling(t *testing.T) {
	const label = "TESTDRIVE  "

	// keepLabel=true leaves an existing label alone
	img := newImage(4096)
	copy(img[fat16LabelOffset:], label)
	require.NoError(t, WritePBR(img, 512, PbrFat16Dos, true))
	got, err := ReadLabel(img, PbrFat16Dos)
	require.NoError(t, err)
	assert.Equal(t, label, got)

	// keepLabel=false writes the default label
	require.NoError(t, WritePBR(img, 512, PbrFat16Dos, false))
	got, err = ReadLabel(img, PbrFat16Dos)
	require.NoError(t, err)
	assert.Equal(t, string(defaultLabel), got)

	// FAT32 uses the 0x47 label window
	img = newImage(4096)
	copy(img[fat32LabelOffset:], label)
	require.NoError(t, WritePBR(img, 512, PbrFat32Nt, true))
	got, err = ReadLabel(img, PbrFat32Nt)
	require.NoError(t, err)
	assert.Equal(t, label, got)
}

func TestWritePbrIdempotentWithKeepLabel(t *testing.T) {
	for _, flavor := range allPbrFlavors {
		img := newImage(4096)
		copy(img[fat16LabelOffset:], "KEEPME HERE")
		copy(img[fat32LabelOffset:], "KEEPME HERE")
		require.NoError(t, WritePBR(img, 512, flavor, true))

		snapshot := make([]byte, len(img))
		copy(snapshot, img)

		require.NoError(t, WritePBR(img, 512, flavor, true))
		assert.Equal(t, snapshot, []byte(img), "flavor %v: double write must be byte identical", flavor)
	}
}

func TestWritePbrLeavesBpbAlone(t *testing.T) {
	img := newImage(4096)
	// Fill the FAT32 BIOS Parameter Block region (after the OEM name, before the boot
	// code window at 0x52, excluding the label window at 0x47) with a pattern
	for i := 0x0b; i < 0x47; i++ {
		img[i] = 0xa5
	}
	require.NoError(t, WritePBR(img, 512, PbrFat32Dos, true))
	for i := 0x0b; i < 0x47; i++ {
		assert.Equal(t, byte(0xa5), img[i], "BPB byte at 0x%x must not be touched", i)
	}
}

func TestPbrScenarioFat32Windows(t *testing.T) {
	// A FAT32 record carries its template at offset 0 and 0x52 with the boot marker set
	img := newImage(4096)
	require.NoError(t, WritePBR(img, 512, PbrFat32Dos, false))
	assert.Equal(t, []byte{0xeb, 0x58, 0x90}, []byte(img[0:3]))
	assert.Equal(t, pbrFat32DosBoot[0], img[0x52])
	assert.Equal(t, []byte{0x55, 0xaa}, []byte(img[0x1fe:0x200]))
}

func TestIdentifyPbrUnknown(t *testing.T) {
	img := newImage(4096)
	assert.Equal(t, PbrUnknown, IdentifyPBR(img))

	img[0x1fe] = 0x55
	img[0x1ff] = 0xaa
	assert.Equal(t, PbrUnknown, IdentifyPBR(img))
}

func TestFat32BootRecordMarkerReplication(t *testing.T) {
	img := newImage(4096)
	require.NoError(t, WritePBR(img, 2048, PbrFat32Nt, false))
	// FAT32 detection wants markers on the first three 512-byte sectors
	assert.True(t, IsFat32BootRecord(img))
}
