// (c) Copyright 2024 MediaForge Technologies LP

package layout

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaforge/boot-host-libs/cerrors"
	"github.com/mediaforge/boot-host-libs/model"
)

func testDrive(sizeBytes uint64, sectorSize uint32, media model.MediaType) *model.DriveInfo {
	return &model.DriveInfo{
		Index:           1,
		PhysicalPath:    `\\.\PhysicalDrive1`,
		Size:            sizeBytes,
		SectorSize:      sectorSize,
		SectorsPerTrack: 63,
		MediaType:       media,
	}
}

// checkPlanInvariants verifies the structural properties every valid plan must hold:
// partitions sorted by offset, non overlapping, track aligned, inside the usable disk
// area, with exactly one main partition.
func checkPlanInvariants(t *testing.T, drive *model.DriveInfo, plan *model.LayoutPlan) {
	t.Helper()
	require.NotEqual(t, -1, plan.MainIndex)

	limit := drive.Size
	if plan.Style == model.PartitionStyleGpt {
		limit -= 33 * uint64(drive.SectorSize)
	}

	var prevEnd uint64
	mainCount := 0
	for i := range plan.Partitions {
		p := &plan.Partitions[i]
		assert.GreaterOrEqual(t, p.Offset, prevEnd, "partition %d overlaps its predecessor", i)
		// Offsets are either aligned to the drive's CHS track granularity or sit on the
		// modern 1 MiB boundary used for the leading partition
		aligned := p.Offset%drive.BytesPerTrack() == 0 || p.Offset%(1<<20) == 0
		assert.True(t, aligned, "partition %d offset %d not aligned", i, p.Offset)
		assert.LessOrEqual(t, p.End(), limit, "partition %d extends past the usable area", i)
		assert.NotZero(t, p.Size, "partition %d has no size", i)
		prevEnd = p.End()
		if i == plan.MainIndex {
			mainCount++
		}
	}
	assert.Equal(t, 1, mainCount)
}

func TestPlanSingleFat32Mbr(t *testing.T) {
	// 32 GiB removable drive, MBR, FAT32, no extras: a single partition starting at
	// 1 MiB with type FAT32 LBA
	drive := testDrive(32<<30, 512, model.MediaTypeRemovable)
	plan, err := Plan(drive, PlanConfig{
		Style:    model.PartitionStyleMbr,
		Fs:       model.FsFat32,
		Bootable: true,
	}, 0)
	require.NoError(t, err)
	checkPlanInvariants(t, drive, plan)

	require.Len(t, plan.Partitions, 1)
	main := plan.Main()
	assert.Equal(t, uint64(1<<20), main.Offset)
	assert.Equal(t, byte(model.MbrTypeFat32Lba), main.MbrType)
	assert.True(t, main.Bootable)
	// The remainder of the disk, aligned down to a track
	expectedSize := (32<<30 - 1<<20) / drive.BytesPerTrack() * drive.BytesPerTrack()
	assert.Equal(t, expectedSize, main.Size)
}

func TestPlanGptNtfsWithUefiNtfsHelper(t *testing.T) {
	// 128 GiB removable, GPT, NTFS, UEFI:NTFS helper: main Basic Data partition plus a
	// helper with the ESP type GUID, the no-drive-letter attribute and (outside debug
	// builds) the read-only attribute
	const helperImageSize = 512 << 10
	drive := testDrive(128<<30, 512, model.MediaTypeRemovable)
	plan, err := Plan(drive, PlanConfig{
		Style:    model.PartitionStyleGpt,
		Fs:       model.FsNtfs,
		UefiNtfs: true,
	}, helperImageSize)
	require.NoError(t, err)
	checkPlanInvariants(t, drive, plan)

	require.Len(t, plan.Partitions, 2)
	main := plan.Main()
	assert.Equal(t, model.PartitionMicrosoftData, main.GptType)

	require.NotEqual(t, -1, plan.UefiNtfsIndex)
	helper := &plan.Partitions[plan.UefiNtfsIndex]
	assert.Equal(t, model.PartitionNameUefiNtfs, helper.Name)
	assert.Equal(t, model.PartitionGenericEsp, helper.GptType)
	assert.NotZero(t, helper.Attributes&model.GptAttributeNoDriveLetter)
	assert.NotZero(t, helper.Attributes&model.GptAttributeReadOnly)
	// Helper size is the image size rounded up to a track
	assert.Equal(t, (helperImageSize+drive.BytesPerTrack()-1)/drive.BytesPerTrack()*drive.BytesPerTrack(), helper.Size)

	// Debug builds keep the helper writable
	plan, err = Plan(drive, PlanConfig{
		Style:              model.PartitionStyleGpt,
		Fs:                 model.FsNtfs,
		UefiNtfs:           true,
		KeepHelperWritable: true,
	}, helperImageSize)
	require.NoError(t, err)
	helper = &plan.Partitions[plan.UefiNtfsIndex]
	assert.Zero(t, helper.Attributes&model.GptAttributeReadOnly)
}

func TestPlanEspPlacement(t *testing.T) {
	cfg := PlanConfig{
		Style: model.PartitionStyleGpt,
		Fs:    model.FsNtfs,
		Esp:   true,
	}

	// On a removable drive without multi-partition support, the ESP goes after the main
	// partition
	drive := testDrive(64<<30, 512, model.MediaTypeRemovable)
	plan, err := Plan(drive, cfg, 0)
	require.NoError(t, err)
	checkPlanInvariants(t, drive, plan)
	require.NotEqual(t, -1, plan.EspIndex)
	assert.Greater(t, plan.EspIndex, plan.MainIndex)

	// On a fixed drive the ESP leads
	drive = testDrive(64<<30, 512, model.MediaTypeFixed)
	plan, err = Plan(drive, cfg, 0)
	require.NoError(t, err)
	checkPlanInvariants(t, drive, plan)
	assert.Less(t, plan.EspIndex, plan.MainIndex)
	assert.Equal(t, uint64(1<<20), plan.Partitions[plan.EspIndex].Offset)
	assert.Equal(t, uint64(260<<20), plan.Partitions[plan.EspIndex].Size)

	// A capability probe unlocks the leading ESP on removables too
	drive = testDrive(64<<30, 512, model.MediaTypeRemovable)
	cfg.MultiPartitionRemovable = true
	plan, err = Plan(drive, cfg, 0)
	require.NoError(t, err)
	assert.Less(t, plan.EspIndex, plan.MainIndex)
}

func TestPlanMsrEspMain(t *testing.T) {
	// MSR + ESP + main on a fixed GPT disk: ESP, then MSR, then main
	drive := testDrive(256<<30, 512, model.MediaTypeFixed)
	plan, err := Plan(drive, PlanConfig{
		Style: model.PartitionStyleGpt,
		Fs:    model.FsNtfs,
		Esp:   true,
		Msr:   true,
	}, 0)
	require.NoError(t, err)
	checkPlanInvariants(t, drive, plan)

	require.Len(t, plan.Partitions, 3)
	assert.Equal(t, 0, plan.EspIndex)
	assert.Equal(t, 1, plan.MsrIndex)
	assert.Equal(t, 2, plan.MainIndex)
	assert.Equal(t, uint64(128<<20), plan.Partitions[plan.MsrIndex].Size)
	assert.Equal(t, model.PartitionMicrosoftReserved, plan.Partitions[plan.MsrIndex].GptType)
}

func TestPlanPersistence(t *testing.T) {
	drive := testDrive(64<<30, 512, model.MediaTypeRemovable)
	plan, err := Plan(drive, PlanConfig{
		Style:           model.PartitionStyleMbr,
		Fs:              model.FsFat32,
		PersistenceSize: 4 << 30,
	}, 0)
	require.NoError(t, err)
	checkPlanInvariants(t, drive, plan)

	require.NotEqual(t, -1, plan.PersistenceIndex)
	persistence := &plan.Partitions[plan.PersistenceIndex]
	assert.Equal(t, byte(model.MbrTypeLinux), persistence.MbrType)
	assert.GreaterOrEqual(t, persistence.Size, uint64(4<<30))
}

func TestPlanOldBiosFixes(t *testing.T) {
	drive := testDrive(32<<30, 512, model.MediaTypeRemovable)

	plan, err := Plan(drive, PlanConfig{
		Style:        model.PartitionStyleMbr,
		Fs:           model.FsFat32,
		OldBiosFixes: true,
		ClusterSize:  4096,
	}, 0)
	require.NoError(t, err)

	// Track (63*512) aligned up to the cluster size, then doubled for the Grub2 embed
	// area
	expected := ((uint64(63*512)+4095)/4096*4096)*2
	assert.Equal(t, expected, plan.Main().Offset)
}

func TestPlanMbrUefiMarker(t *testing.T) {
	drive := testDrive(32<<30, 512, model.MediaTypeRemovable)

	plan, err := Plan(drive, PlanConfig{Style: model.PartitionStyleMbr, Fs: model.FsFat32, MbrUefiMarker: true}, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(model.MbrUefiMarker), plan.DiskSignature)

	plan, err = Plan(drive, PlanConfig{Style: model.PartitionStyleMbr, Fs: model.FsFat32}, 0)
	require.NoError(t, err)
	assert.NotEqual(t, uint32(model.MbrUefiMarker), plan.DiskSignature)
	assert.NotZero(t, plan.DiskSignature)
}

func TestPlanDeterministic(t *testing.T) {
	drive := testDrive(128<<30, 4096, model.MediaTypeRemovable)
	cfg := PlanConfig{
		Style:    model.PartitionStyleGpt,
		Fs:       model.FsNtfs,
		UefiNtfs: true,
	}

	first, err := Plan(drive, cfg, 512<<10)
	require.NoError(t, err)
	second, err := Plan(drive, cfg, 512<<10)
	require.NoError(t, err)
	assert.True(t, reflect.DeepEqual(first, second), "planning must be deterministic")
}

func TestPlanSectorSizes(t *testing.T) {
	for _, sectorSize := range []uint32{512, 1024, 2048, 4096} {
		drive := testDrive(64<<30, sectorSize, model.MediaTypeRemovable)
		plan, err := Plan(drive, PlanConfig{
			Style: model.PartitionStyleGpt,
			Fs:    model.FsNtfs,
			Esp:   true,
		}, 0)
		require.NoError(t, err, "sector size %d", sectorSize)
		checkPlanInvariants(t, drive, plan)
	}
}

func TestPlanRejectsImpossibleConfigs(t *testing.T) {
	drive := testDrive(32<<30, 512, model.MediaTypeRemovable)

	// MSR requires GPT
	_, err := Plan(drive, PlanConfig{Style: model.PartitionStyleMbr, Fs: model.FsFat32, Msr: true}, 0)
	assert.Equal(t, cerrors.InvalidArgument, cerrors.Code(err))

	// ESP and UEFI:NTFS are mutually exclusive
	_, err = Plan(drive, PlanConfig{Style: model.PartitionStyleGpt, Fs: model.FsNtfs, Esp: true, UefiNtfs: true}, 512<<10)
	assert.Equal(t, cerrors.InvalidArgument, cerrors.Code(err))

	// Clusters smaller than a sector are forbidden outright
	drive4k := testDrive(32<<30, 4096, model.MediaTypeRemovable)
	_, err = Plan(drive4k, PlanConfig{Style: model.PartitionStyleGpt, Fs: model.FsNtfs, ClusterSize: 512}, 0)
	assert.Equal(t, cerrors.InvalidArgument, cerrors.Code(err))

	// UEFI:NTFS without a helper image
	_, err = Plan(drive, PlanConfig{Style: model.PartitionStyleGpt, Fs: model.FsNtfs, UefiNtfs: true}, 0)
	assert.Equal(t, cerrors.InvalidArgument, cerrors.Code(err))
}

func TestPlanRefusesUndersizedDisk(t *testing.T) {
	// A disk smaller than the leading offset plus the ESP cannot hold a main partition
	drive := testDrive(16<<20, 512, model.MediaTypeRemovable)
	_, err := Plan(drive, PlanConfig{
		Style: model.PartitionStyleGpt,
		Fs:    model.FsFat32,
		Esp:   true,
	}, 0)
	require.Error(t, err)
	assert.Equal(t, cerrors.LayoutRefuses, cerrors.Code(err))
}
