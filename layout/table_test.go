// (c) Copyright 2024 MediaForge Technologies LP

package layout

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/diskfs/go-diskfs/partition/gpt"
	"github.com/diskfs/go-diskfs/partition/mbr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaforge/boot-host-libs/model"
	"github.com/mediaforge/boot-host-libs/signature"
)

// tempImage creates a sparse disk image file of the given size
func tempImage(t *testing.T, size int64) *os.File {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "disk.img"))
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	t.Cleanup(func() { f.Close() })
	return f
}

func TestWriteTableGptRoundTrip(t *testing.T) {
	const diskSize = 1 << 30
	drive := testDrive(diskSize, 512, model.MediaTypeRemovable)
	plan, err := Plan(drive, PlanConfig{
		Style:    model.PartitionStyleGpt,
		Fs:       model.FsNtfs,
		UefiNtfs: true,
	}, 512<<10)
	require.NoError(t, err)

	f := tempImage(t, diskSize)
	require.NoError(t, WriteTable(f, drive, plan))

	table, err := gpt.Read(f, 512, 512)
	require.NoError(t, err)
	assert.Equal(t, strings.ToUpper(plan.DiskGUID.String()), strings.ToUpper(table.GUID))

	// The read-back table may carry the full (mostly empty) entry array
	var used []*gpt.Partition
	for _, p := range table.Partitions {
		if p != nil && !(p.Start == 0 && p.End == 0) {
			used = append(used, p)
		}
	}
	require.Len(t, used, len(plan.Partitions))
	for i, p := range used {
		record := &plan.Partitions[i]
		assert.Equal(t, record.Offset/512, p.Start, "partition %d start", i)
		assert.Equal(t, record.Name, p.Name, "partition %d name", i)
		assert.Equal(t, record.Attributes, p.Attributes, "partition %d attributes", i)
	}

	// A GPT disk carries a protective MBR, so the image must have the boot marker
	assert.True(t, signature.IsBootRecord(f, 512))
}

func TestWriteTableMbrRoundTrip(t *testing.T) {
	const diskSize = 1 << 30
	drive := testDrive(diskSize, 512, model.MediaTypeRemovable)
	plan, err := Plan(drive, PlanConfig{
		Style:         model.PartitionStyleMbr,
		Fs:            model.FsFat32,
		Bootable:      true,
		MbrUefiMarker: true,
	}, 0)
	require.NoError(t, err)

	f := tempImage(t, diskSize)
	require.NoError(t, WriteTable(f, drive, plan))

	table, err := mbr.Read(f, 512, 512)
	require.NoError(t, err)

	found := 0
	for _, p := range table.Partitions {
		if p == nil {
			continue
		}
		if p.Type == mbr.Type(model.MbrTypeFat32Lba) {
			found++
			assert.Equal(t, uint32(plan.Main().Offset/512), p.Start)
			assert.Equal(t, uint32(plan.Main().Size/512), p.Size)
		}
	}
	assert.Equal(t, 1, found, "exactly one FAT32 LBA partition expected")

	// The self-identification marker must land in the disk signature field
	sig, err := signature.ReadDiskSignature(f)
	require.NoError(t, err)
	assert.Equal(t, uint32(model.MbrUefiMarker), sig)
}

func TestBuildTableRejectsOversizedMbr(t *testing.T) {
	drive := testDrive(1<<30, 512, model.MediaTypeRemovable)
	plan := &model.LayoutPlan{Style: model.PartitionStyleMbr, MainIndex: 0}
	for i := 0; i < 5; i++ {
		plan.Partitions = append(plan.Partitions, model.PartitionRecord{
			Offset: uint64(i+1) << 20, Size: 1 << 20, MbrType: model.MbrTypeFat32Lba,
		})
	}
	_, err := BuildTable(drive, plan)
	assert.Error(t, err)
}
