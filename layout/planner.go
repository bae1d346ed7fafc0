// (c) Copyright 2024 MediaForge Technologies LP

// Package layout computes and writes partition layouts for the supported boot
// strategies, and performs the post-write refresh handshake with the OS.
package layout

import (
	"fmt"
	"hash/fnv"

	uuid "github.com/satori/go.uuid"

	"github.com/mediaforge/boot-host-libs/cerrors"
	log "github.com/mediaforge/boot-host-libs/logger"
	"github.com/mediaforge/boot-host-libs/model"
	"github.com/mediaforge/boot-host-libs/stringformat"
)

const (
	mb = uint64(1) << 20

	// Go for a 260 MB sized ESP by default to keep everyone happy, including 4K sector
	// users and macOS.
	defaultEspSize = 260 * mb

	msrSize = 128 * mb

	// A GPT disk reserves 34 sectors at the beginning and 33 at the end
	gptHeaderSectors    = 34
	gptSecondarySectors = 33
)

// planNamespace seeds the deterministic GUID derivation for plans, so that planning the
// same drive with the same config always yields the same identifiers.
var planNamespace = uuid.Must(uuid.FromString("7C45A1E3-9D2B-4F6A-8E07-3C51B2D4F890"))

// PlanConfig selects the boot strategy a layout is computed for
type PlanConfig struct {
	Style    model.PartitionStyle
	Fs       model.TargetFs
	Bootable bool // Set the MBR boot indicator on the main partition

	// ClusterSize is the cluster size the main partition will be formatted with.  Zero
	// selects a sector-sized default.  A cluster smaller than the drive's sector size is
	// rejected.
	ClusterSize uint64

	// MbrUefiMarker requests the fixed self-identification disk signature instead of a
	// derived one (MBR style only).
	MbrUefiMarker bool

	// OldBiosFixes aligns the first partition to CHS geometry instead of the modern
	// 1 MiB boundary.  The computed offset is doubled so a Grub2 core image still fits
	// in the embed gap.
	OldBiosFixes bool

	// WriteAsEsp gives the main partition the ESP type (used when writing a bootable
	// image straight into an ESP).
	WriteAsEsp bool

	// MultiPartitionRemovable declares that the host OS can mount multiple partitions
	// on removable media, which gates placing the ESP before the main partition.
	MultiPartitionRemovable bool

	// KeepHelperWritable skips the read-only attribute on the UEFI:NTFS helper
	// partition (debug builds only).
	KeepHelperWritable bool

	// Extra partitions
	Esp             bool
	Msr             bool
	PersistenceSize uint64 // Non-zero requests a persistence partition
	UefiNtfs        bool
	BiosCompat      bool
}

func alignUp(x, y uint64) uint64 {
	if y == 0 {
		return x
	}
	return ((x + y - 1) / y) * y
}

func alignDown(x, y uint64) uint64 {
	if y == 0 {
		return x
	}
	return (x / y) * y
}

// derivedDiskSignature computes a stable MBR disk signature for a drive, so planning is
// deterministic.  The self-identification marker takes precedence when requested.
func derivedDiskSignature(drive *model.DriveInfo) uint32 {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s:%d:%d", drive.PhysicalPath, drive.Index, drive.Size)
	sig := h.Sum32()
	if sig == 0 {
		sig = 1
	}
	return sig
}

// derivedGuid computes a stable GUID for the given drive-scoped tag
func derivedGuid(drive *model.DriveInfo, tag string) uuid.UUID {
	return uuid.NewV5(planNamespace, fmt.Sprintf("%s:%d:%s", drive.PhysicalPath, drive.Size, tag))
}

// validate rejects configurations that are physically impossible
func (cfg *PlanConfig) validate(drive *model.DriveInfo) error {
	if drive == nil || drive.SectorSize == 0 || drive.Size == 0 {
		return cerrors.NewCoreError(cerrors.InvalidArgument, "drive geometry is not populated")
	}
	if cfg.Msr && cfg.Style != model.PartitionStyleGpt {
		return cerrors.NewCoreError(cerrors.InvalidArgument, "MSR partitions require GPT")
	}
	if cfg.Esp && cfg.UefiNtfs {
		return cerrors.NewCoreError(cerrors.InvalidArgument, "ESP and UEFI:NTFS are mutually exclusive")
	}
	if cfg.ClusterSize != 0 && cfg.ClusterSize < uint64(drive.SectorSize) {
		return cerrors.NewCoreErrorf(cerrors.InvalidArgument,
			"cluster size %d is smaller than the sector size %d", cfg.ClusterSize, drive.SectorSize)
	}
	return nil
}

// mainMbrType maps the target file system to the MBR partition type of the main
// partition
func mainMbrType(fs model.TargetFs) (byte, error) {
	switch fs {
	case model.FsFat16:
		return model.MbrTypeFat16Lba, nil
	case model.FsFat32:
		return model.MbrTypeFat32Lba, nil
	case model.FsNtfs, model.FsExFat, model.FsUdf, model.FsReFS:
		return model.MbrTypeNtfs, nil
	case model.FsExt2, model.FsExt3, model.FsExt4:
		return model.MbrTypeLinux, nil
	default:
		return 0, cerrors.NewCoreErrorf(cerrors.InvalidArgument, "unsupported file system %d", fs)
	}
}

// Plan computes the partition layout for the given drive and configuration.  The result
// is a pure value; no I/O takes place.  Planning the same drive with the same
// configuration always yields the same plan.
func Plan(drive *model.DriveInfo, cfg PlanConfig, uefiNtfsImageSize uint64) (*model.LayoutPlan, error) {
	log.Tracef(">>>>> Plan, drive=%d, style=%v", drive.Index, cfg.Style)
	defer log.Trace("<<<<< Plan")

	if err := cfg.validate(drive); err != nil {
		return nil, err
	}
	if cfg.UefiNtfs && uefiNtfsImageSize == 0 {
		return nil, cerrors.NewCoreError(cerrors.InvalidArgument, "UEFI:NTFS requested without helper image")
	}

	bytesPerTrack := drive.BytesPerTrack()
	if bytesPerTrack == 0 {
		bytesPerTrack = 63 * uint64(drive.SectorSize)
	}
	clusterSize := cfg.ClusterSize
	if clusterSize == 0 {
		clusterSize = uint64(drive.SectorSize)
	}
	clusterAligned := clusterSize%uint64(drive.SectorSize) == 0

	plan := &model.LayoutPlan{
		Style:            cfg.Style,
		MainIndex:        -1,
		EspIndex:         -1,
		MsrIndex:         -1,
		PersistenceIndex: -1,
		UefiNtfsIndex:    -1,
		CompatIndex:      -1,
	}

	espPending := cfg.Esp

	// Compute the starting offset of the first partition
	var firstOffset uint64
	if cfg.Style == model.PartitionStyleGpt || !cfg.OldBiosFixes {
		// Go with the 1 MB wastage at the beginning
		firstOffset = 1 * mb
	} else {
		// Align to a cylinder size that is itself aligned to the cluster size, then
		// double it so a Grub2 core image still fits in the embed gap.
		firstOffset = alignUp(bytesPerTrack, clusterSize) * 2
	}

	// nextOffset aligns a follow-up partition boundary up to a track and, when the
	// cluster size is sector aligned, back down to a cluster.
	nextOffset := func(end uint64) uint64 {
		offset := alignUp(end, bytesPerTrack)
		if clusterAligned {
			aligned := alignDown(offset, clusterSize)
			if aligned >= end {
				offset = aligned
			}
		}
		return offset
	}

	appendPartition := func(name string, offset, size uint64) int {
		plan.Partitions = append(plan.Partitions, model.PartitionRecord{
			Offset:  offset,
			Size:    size,
			Name:    name,
			Rewrite: true,
		})
		return len(plan.Partitions) - 1
	}

	offset := firstOffset

	// Having the ESP up front is the recommended arrangement, but it is only achievable
	// when more than one partition can be mounted at once: fixed drives always can,
	// removable ones only when the OS supports it.
	if espPending && cfg.Style == model.PartitionStyleGpt &&
		(drive.MediaType == model.MediaTypeFixed || cfg.MultiPartitionRemovable) {
		plan.EspIndex = appendPartition(model.PartitionNameEsp, offset, defaultEspSize)
		offset = nextOffset(offset + defaultEspSize)
		espPending = false
	}

	// The MSR partition is always placed before the main partition
	if cfg.Msr {
		plan.MsrIndex = appendPartition(model.PartitionNameMsr, offset, msrSize)
		offset = nextOffset(offset + msrSize)
	}

	// Reserve the main partition entry; its size is the remainder once the tail
	// partitions have been placed
	mainName := model.PartitionNameMain
	if cfg.WriteAsEsp {
		mainName = model.PartitionNameEsp
	}
	plan.MainIndex = appendPartition(mainName, offset, 0)

	// Tail partitions, sized up front and packed back from the end of the disk
	if cfg.PersistenceSize != 0 {
		plan.PersistenceIndex = appendPartition(model.PartitionNamePersistence, 0,
			alignUp(cfg.PersistenceSize, bytesPerTrack))
	}
	if espPending {
		plan.EspIndex = appendPartition(model.PartitionNameEsp, 0, alignUp(defaultEspSize, bytesPerTrack))
	} else if cfg.UefiNtfs {
		plan.UefiNtfsIndex = appendPartition(model.PartitionNameUefiNtfs, 0,
			alignUp(uefiNtfsImageSize, bytesPerTrack))
	} else if cfg.BiosCompat {
		// One track for the BIOS compatibility stub
		plan.CompatIndex = appendPartition(model.PartitionNameCompat, 0, bytesPerTrack)
	}

	if len(plan.Partitions) > model.MaxPartitions {
		return nil, cerrors.NewCoreErrorf(cerrors.LayoutRefuses, "%d partitions exceed the maximum of %d",
			len(plan.Partitions), model.MaxPartitions)
	}

	// Compute the offsets of the tail partitions, walking back from the end of the
	// disk.  GPT needs 33 sectors left for the secondary header.
	lastOffset := drive.Size
	if cfg.Style == model.PartitionStyleGpt {
		lastOffset -= gptSecondarySectors * uint64(drive.SectorSize)
	}
	for i := len(plan.Partitions) - 1; i > plan.MainIndex; i-- {
		size := plan.Partitions[i].Size
		if size >= lastOffset {
			return nil, cerrors.NewCoreErrorf(cerrors.LayoutRefuses,
				"partition '%s' does not fit on the disk", plan.Partitions[i].Name)
		}
		plan.Partitions[i].Offset = alignDown(lastOffset-size, bytesPerTrack)
		lastOffset = plan.Partitions[i].Offset
	}

	// With the tail in place, the main partition is the track-aligned remainder
	main := &plan.Partitions[plan.MainIndex]
	if lastOffset <= main.Offset {
		return nil, cerrors.NewCoreError(cerrors.LayoutRefuses, "no room left for the main partition")
	}
	main.Size = alignDown(lastOffset-main.Offset, bytesPerTrack)
	// Align the main partition size to the cluster size, so a sector-by-sector capture
	// of the file system never has to read a partial cluster
	if clusterAligned {
		main.Size = alignDown(main.Size, clusterSize)
	}
	if main.Size == 0 {
		return nil, cerrors.NewCoreErrorf(cerrors.LayoutRefuses, "invalid %s size", main.Name)
	}

	// Assign partition types and identifiers
	if cfg.Style == model.PartitionStyleMbr {
		mainType, err := mainMbrType(cfg.Fs)
		if err != nil {
			return nil, err
		}
		if cfg.MbrUefiMarker {
			// Write the self-identification marker in lieu of the regular signature, so
			// the drive can later be recognized as one of ours
			plan.DiskSignature = model.MbrUefiMarker
		} else {
			plan.DiskSignature = derivedDiskSignature(drive)
		}
		for i := range plan.Partitions {
			p := &plan.Partitions[i]
			switch p.Name {
			case model.PartitionNameEsp, model.PartitionNameUefiNtfs:
				p.MbrType = model.MbrTypeEsp
			case model.PartitionNamePersistence:
				p.MbrType = model.MbrTypeLinux
			case model.PartitionNameCompat:
				p.MbrType = model.MbrTypeExtra
			default:
				p.MbrType = mainType
				p.Bootable = cfg.Bootable
			}
		}
	} else {
		plan.DiskGUID = derivedGuid(drive, "disk")
		for i := range plan.Partitions {
			p := &plan.Partitions[i]
			switch p.Name {
			case model.PartitionNameUefiNtfs:
				p.GptType = model.PartitionGenericEsp
				// Prevent a drive letter from being assigned to the helper, and make it
				// read-only outside debug builds
				p.Attributes = model.GptAttributeNoDriveLetter
				if !cfg.KeepHelperWritable {
					p.Attributes |= model.GptAttributeReadOnly
				}
			case model.PartitionNameEsp:
				p.GptType = model.PartitionGenericEsp
			case model.PartitionNamePersistence:
				p.GptType = model.PartitionLinuxData
			case model.PartitionNameMsr:
				p.GptType = model.PartitionMicrosoftReserved
			default:
				p.GptType = model.PartitionMicrosoftData
			}
			p.PartitionID = derivedGuid(drive, fmt.Sprintf("part:%d", p.Offset))
		}
	}

	for i := range plan.Partitions {
		p := &plan.Partitions[i]
		log.Infof("● Creating %s (offset: %d, size: %s)", p.Name, p.Offset, stringformat.SizeToHumanReadable(p.Size))
	}
	return plan, nil
}
