// (c) Copyright 2024 MediaForge Technologies LP

package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaforge/boot-host-libs/model"
)

func TestWriteLayoutStateProgression(t *testing.T) {
	const diskSize = 1 << 30
	drive := testDrive(diskSize, 512, model.MediaTypeRemovable)
	plan, err := Plan(drive, PlanConfig{Style: model.PartitionStyleMbr, Fs: model.FsFat32}, 0)
	require.NoError(t, err)

	w := NewWriter()
	assert.Equal(t, StateIdle, w.State())

	f := tempImage(t, diskSize)
	require.NoError(t, w.WriteLayout(f, drive, plan))
	assert.Equal(t, StateLayoutWritten, w.State())
}

func TestWriteLayoutZeroesPlannedPartitions(t *testing.T) {
	const diskSize = 1 << 30
	drive := testDrive(diskSize, 512, model.MediaTypeRemovable)
	plan, err := Plan(drive, PlanConfig{Style: model.PartitionStyleMbr, Fs: model.FsFat32}, 0)
	require.NoError(t, err)

	f := tempImage(t, diskSize)

	// Leave stale file system data where the partition will start
	stale := make([]byte, 4096)
	for i := range stale {
		stale[i] = 0x5a
	}
	mainOffset := int64(plan.Main().Offset)
	_, err = f.WriteAt(stale, mainOffset)
	require.NoError(t, err)

	w := NewWriter()
	require.NoError(t, w.WriteLayout(f, drive, plan))

	// The leading sectors of the planned partition must be zero, so the OS cannot
	// resurrect its cached view of the previous file system
	cleared := make([]byte, model.MaxSectorsToClear*512)
	_, err = f.ReadAt(cleared, mainOffset)
	require.NoError(t, err)
	for i, b := range cleared {
		if b != 0 {
			t.Fatalf("byte at partition offset +%d not cleared: 0x%02x", i, b)
		}
	}
}

func TestWriteLayoutCopiesUefiNtfsImage(t *testing.T) {
	const diskSize = 1 << 30
	drive := testDrive(diskSize, 512, model.MediaTypeRemovable)
	plan, err := Plan(drive, PlanConfig{
		Style:    model.PartitionStyleGpt,
		Fs:       model.FsNtfs,
		UefiNtfs: true,
	}, UefiNtfsImageSize())
	require.NoError(t, err)

	f := tempImage(t, diskSize)
	w := NewWriter()
	require.NoError(t, w.WriteLayout(f, drive, plan))

	helper := &plan.Partitions[plan.UefiNtfsIndex]
	written := make([]byte, UefiNtfsImageSize())
	_, err = f.ReadAt(written, int64(helper.Offset))
	require.NoError(t, err)
	assert.Equal(t, UefiNtfsImage(), written, "helper image must land at the helper partition offset")

	// The embedded image itself is a FAT volume labeled for detection
	assert.Equal(t, "UEFI_NTFS", string(written[0x2b:0x2b+9]))
	assert.Equal(t, []byte{0x55, 0xaa}, written[0x1fe:0x200])
}

func TestUefiNtfsImageSize(t *testing.T) {
	assert.NotZero(t, UefiNtfsImageSize())
	assert.Zero(t, UefiNtfsImageSize()%512, "image must be sector aligned")
}
