// (c) Copyright 2024 MediaForge Technologies LP

package layout

import (
	"strings"

	"github.com/diskfs/go-diskfs/partition"
	"github.com/diskfs/go-diskfs/partition/gpt"
	"github.com/diskfs/go-diskfs/partition/mbr"
	"github.com/diskfs/go-diskfs/util"

	"github.com/mediaforge/boot-host-libs/cerrors"
	"github.com/mediaforge/boot-host-libs/model"
	"github.com/mediaforge/boot-host-libs/signature"
)

// BuildTable converts a layout plan into a serializable partition table.  GPT tables
// reserve the full entry array and carry a protective MBR; MBR tables carry at most four
// primary entries.
func BuildTable(drive *model.DriveInfo, plan *model.LayoutPlan) (partition.Table, error) {
	sectorSize := int(drive.SectorSize)

	if plan.Style == model.PartitionStyleGpt {
		table := &gpt.Table{
			LogicalSectorSize:  sectorSize,
			PhysicalSectorSize: sectorSize,
			GUID:               strings.ToUpper(plan.DiskGUID.String()),
			ProtectiveMBR:      true,
		}
		for i := range plan.Partitions {
			p := &plan.Partitions[i]
			start := p.Offset / uint64(drive.SectorSize)
			end := (p.End() / uint64(drive.SectorSize)) - 1
			table.Partitions = append(table.Partitions, &gpt.Partition{
				Start:      start,
				End:        end,
				Size:       p.Size,
				Type:       gpt.Type(strings.ToUpper(p.GptType.String())),
				Name:       p.Name,
				GUID:       strings.ToUpper(p.PartitionID.String()),
				Attributes: p.Attributes,
			})
		}
		return table, nil
	}

	if len(plan.Partitions) > 4 {
		return nil, cerrors.NewCoreErrorf(cerrors.LayoutRefuses,
			"MBR tables hold at most 4 primary partitions, plan has %d", len(plan.Partitions))
	}
	table := &mbr.Table{
		LogicalSectorSize:  sectorSize,
		PhysicalSectorSize: sectorSize,
	}
	for i := range plan.Partitions {
		p := &plan.Partitions[i]
		table.Partitions = append(table.Partitions, &mbr.Partition{
			Bootable: p.Bootable,
			Type:     mbr.Type(p.MbrType),
			Start:    uint32(p.Offset / uint64(drive.SectorSize)),
			Size:     uint32(p.Size / uint64(drive.SectorSize)),
		})
	}
	return table, nil
}

// WriteTable serializes the partition table of the plan onto the target.  For MBR plans
// the disk signature is stamped after the table is written, since the table serializer
// does not carry one.
func WriteTable(f util.File, drive *model.DriveInfo, plan *model.LayoutPlan) error {
	table, err := BuildTable(drive, plan)
	if err != nil {
		return err
	}
	if err := table.Write(f, int64(drive.Size)); err != nil {
		return cerrors.NewCoreError(cerrors.LayoutRefuses, err)
	}
	if plan.Style == model.PartitionStyleMbr {
		if err := signature.WriteDiskSignature(f, plan.DiskSignature); err != nil {
			return err
		}
	}
	return nil
}
