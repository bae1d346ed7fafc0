// (c) Copyright 2024 MediaForge Technologies LP

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionRecordDerivedFields(t *testing.T) {
	esp := PartitionRecord{GptType: PartitionGenericEsp, Name: PartitionNameEsp}
	assert.True(t, esp.IsEsp())
	assert.False(t, esp.IsMsr())

	mbrEsp := PartitionRecord{MbrType: MbrTypeEsp}
	assert.True(t, mbrEsp.IsEsp())

	msr := PartitionRecord{GptType: PartitionMicrosoftReserved, Name: PartitionNameMsr}
	assert.True(t, msr.IsMsr())
	assert.False(t, msr.IsEsp())

	helper := PartitionRecord{GptType: PartitionGenericEsp, Name: PartitionNameUefiNtfs}
	assert.True(t, helper.IsUefiNtfs())

	extra := PartitionRecord{MbrType: MbrTypeExtra}
	assert.True(t, extra.IsExtra())

	p := PartitionRecord{Offset: 1 << 20, Size: 4 << 20}
	assert.Equal(t, uint64(5<<20), p.End())
}

func TestDriveInfoHelpers(t *testing.T) {
	drive := DriveInfo{
		SectorSize:      512,
		SectorsPerTrack: 63,
		HddScore:        5,
	}
	assert.Equal(t, uint64(63*512), drive.BytesPerTrack())
	assert.True(t, drive.IsHDD())

	drive.HddScore = 0
	assert.False(t, drive.IsHDD())
	drive.HddScore = -12
	assert.False(t, drive.IsHDD())
}

func TestDevicePaths(t *testing.T) {
	assert.Equal(t, `\\.\PhysicalDrive3`, PhysicalName(3))
	assert.Equal(t, `\\.\F:`, LogicalDriveName('F'))

	groot := GlobalRootName(`\Device\HarddiskVolume42`, false)
	assert.Equal(t, `\\?\GLOBALROOT\Device\HarddiskVolume42`, groot)
	assert.True(t, IsGlobalRootName(groot))
	assert.False(t, IsGlobalRootName(`\\.\PhysicalDrive0`))

	// A raw DOS-device definition takes the path without the 14-character prefix and
	// without a trailing backslash.
	withSlash := GlobalRootName(`\Device\HarddiskVolume42`, true)
	assert.Equal(t, `\Device\HarddiskVolume42`, StripGlobalRoot(withSlash))
}
