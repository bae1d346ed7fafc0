// (c) Copyright 2024 MediaForge Technologies LP

//go:build windows
// +build windows

package registry

import (
	"os"
	"syscall"

	uuid "github.com/satori/go.uuid"
	xwindows "golang.org/x/sys/windows"

	"github.com/mediaforge/boot-host-libs/cerrors"
	log "github.com/mediaforge/boot-host-libs/logger"
	"github.com/mediaforge/boot-host-libs/model"
	"github.com/mediaforge/boot-host-libs/signature"
	"github.com/mediaforge/boot-host-libs/stringformat"
	"github.com/mediaforge/boot-host-libs/windows/ioctl"
	"github.com/mediaforge/boot-host-libs/windows/wmi"
)

// MBR partition types that can be mounted by the host OS
var mbrMountable = []byte{0x01, 0x04, 0x06, 0x07, 0x0b, 0x0c, 0x0e, 0xef}

// Enumerate walks the physical devices of the host and returns one DriveInfo per
// device that survives the safety filters.  Enumeration failures on a single device
// remove only that device from the results.
func (r *Registry) Enumerate() ([]*model.DriveInfo, error) {
	log.Trace(">>>>> Enumerate")
	defer log.Trace("<<<<< Enumerate")

	wmiDrives, err := wmi.GetWin32DiskDrives()
	if err != nil {
		return nil, cerrors.NewCoreError(cerrors.Internal, err)
	}

	var drives []*model.DriveInfo
	for _, wmiDrive := range wmiDrives {
		if wmiDrive.Index >= model.MaxDriveIndex {
			log.Warnf("Skipping drive %d: device number out of range", wmiDrive.Index)
			continue
		}
		drive, err := r.buildDriveInfo(wmiDrive)
		if err != nil {
			// Open timeouts and sharing violations are not fatal for the scan; the
			// offending device is simply omitted
			log.Warnf("Skipping drive %d: %v", wmiDrive.Index, err)
			continue
		}
		drives = append(drives, drive)
	}
	return drives, nil
}

// Query rebuilds the DriveInfo of a single device
func (r *Registry) Query(driveIndex uint32) (*model.DriveInfo, error) {
	if err := checkDriveIndex(driveIndex); err != nil {
		return nil, err
	}
	wmiDrive, err := wmi.GetWin32DiskDrive(driveIndex)
	if err != nil {
		return nil, cerrors.NewCoreError(cerrors.Internal, err)
	}
	if wmiDrive == nil {
		return nil, cerrors.NewCoreErrorf(cerrors.NoDevice, "no drive with index %d", driveIndex)
	}
	return r.buildDriveInfo(wmiDrive)
}

// buildDriveInfo populates a DriveInfo from the device's geometry, layout, mounted
// volumes and USB identity
func (r *Registry) buildDriveInfo(wmiDrive *wmi.Win32_DiskDrive) (*model.DriveInfo, error) {
	log.Tracef(">>>>> buildDriveInfo, index=%v", wmiDrive.Index)
	defer log.Trace("<<<<< buildDriveInfo")

	drive := &model.DriveInfo{
		Index:        wmiDrive.Index,
		PhysicalPath: model.PhysicalName(wmiDrive.Index),
		Model:        wmiDrive.Model,
	}
	drive.VID, drive.PID = wmiDrive.VidPid()

	// Geometry: sector size and media type.  Drives that report sectors smaller than
	// 512 bytes are corrected up.
	geometry, err := ioctl.GetDiskGeometry(wmiDrive.Index)
	if err != nil {
		return nil, cerrors.NewCoreError(cerrors.NoDevice, err)
	}
	drive.Size = geometry.DiskSize
	drive.SectorSize = geometry.Geometry.BytesPerSector
	if drive.SectorSize < 512 {
		log.Warnf("Drive %d reports a sector size of %d - correcting to 512 bytes",
			wmiDrive.Index, drive.SectorSize)
		drive.SectorSize = 512
	}
	drive.SectorsPerTrack = geometry.Geometry.SectorsPerTrack

	// Mounted letters determine the media type where possible; unmounted devices fall
	// back to the geometry media type inside driveLettersAndType
	letters, mediaType, err := r.driveLettersAndType(wmiDrive.Index)
	if err == nil {
		drive.DriveLetters = letters
		drive.MediaType = mediaType
	}
	for _, letter := range letters {
		drive.LogicalPaths = append(drive.LogicalPaths, model.LogicalDriveName(letter))
	}

	// File system of the first mounted volume, as the OS reports it
	if volumeName, err := r.LogicalName(wmiDrive.Index, 0, true); err == nil &&
		volumeName != "" && !model.IsGlobalRootName(volumeName) {
		drive.FileSystem = volumeFileSystem(volumeName)
	}

	if err := r.readPartitionData(drive); err != nil {
		return nil, err
	}

	fixed := drive.MediaType == model.MediaTypeFixed
	drive.HddScore = HddScore(drive.VID, drive.PID, drive.Model, drive.Size, fixed)
	log.Infof("Drive %d: %s, %s, %s, score %d", drive.Index, drive.Model,
		stringformat.SizeToHumanReadable(drive.Size), drive.MediaType, drive.HddScore)
	return drive, nil
}

// volumeFileSystem asks the OS for the file system name of a mounted volume
func volumeFileSystem(volumeName string) string {
	rootUTF16, err := syscall.UTF16PtrFromString(volumeName)
	if err != nil {
		return ""
	}
	fsName := make([]uint16, 64)
	err = xwindows.GetVolumeInformation(rootUTF16, nil, 0, nil, nil, nil, &fsName[0], uint32(len(fsName)))
	if err != nil {
		return ""
	}
	return xwindows.UTF16ToString(fsName)
}

// readPartitionData fills the drive's partition table view: style, per-partition
// records, super-floppy detection and the counters the front end uses to warn about
// data loss
func (r *Registry) readPartitionData(drive *model.DriveInfo) error {
	handle, err := r.PhysicalHandle(drive.Index, false, false, true)
	if err != nil {
		return err
	}
	// Raw reads for the superblock probes below; closing the file closes the handle
	raw := os.NewFile(uintptr(handle), drive.PhysicalPath)
	defer raw.Close()

	layout, err := ioctl.GetDriveLayout(handle)
	if err != nil {
		return cerrors.NewCoreError(cerrors.NoDevice, err)
	}

	count := layout.PartitionCount()
	if count > model.MaxPartitions {
		// Never silently truncate a layout we would later rewrite
		return cerrors.NewCoreErrorf(cerrors.LayoutRefuses,
			"disk has %d partitions, more than the %d supported", count, model.MaxPartitions)
	}

	drive.FirstDataSector = ^uint64(0)
	switch layout.PartitionStyle() {
	case ioctl.PARTITION_STYLE_MBR:
		drive.PartitionStyle = model.PartitionStyleMbr
		drive.DiskSignature = layout.Mbr().Signature
		drive.HasMbrUefiMarker = drive.DiskSignature == model.MbrUefiMarker

		// Detect drives that use the whole disk as a single partition
		if count > 0 {
			first := layout.Partition(0)
			if first.Mbr().PartitionType != 0 && first.StartingOffset == 0 {
				log.Info("Partition type: SFD (super floppy drive) or unpartitioned")
				drive.SuperFloppy = true
			}
		}

		for i := uint32(0); i < count; i++ {
			entry := layout.Partition(i)
			partType := entry.Mbr().PartitionType
			if partType == 0 {
				continue
			}
			// The OS ignores the actual MBR type of zeroed drives and reports Small
			// FAT16 instead.  A Small FAT16 "partition" starting at offset 0 on a
			// drive larger than 16 MB means the drive is actually unpartitioned.
			if partType == model.MbrTypeSmallFat16 && drive.SuperFloppy && drive.Size > 16<<20 {
				break
			}
			record := model.PartitionRecord{
				Offset:   uint64(entry.StartingOffset),
				Size:     uint64(entry.PartitionLength),
				MbrType:  partType,
				Bootable: entry.Mbr().BootIndicator != 0,
			}
			isUefiNtfs := false
			if partType == model.MbrTypeEsp {
				// Check the FAT label to see if this is a UEFI:NTFS helper partition
				isUefiNtfs = hasUefiNtfsLabel(raw, record.Offset)
				if isUefiNtfs {
					record.Name = model.PartitionNameUefiNtfs
				}
			}
			drive.Partitions = append(drive.Partitions, record)
			drive.NumPartitions++
			logPartition(raw, drive, &record, int(i))
			if sector := record.Offset / uint64(drive.SectorSize); sector < drive.FirstDataSector {
				drive.FirstDataSector = sector
			}
			// Partitions this tool creates don't count against the user's data
			if partType == model.MbrTypeExtra || isUefiNtfs {
				drive.NumPartitions--
			}
			if partType == model.MbrTypeGptProtective {
				drive.HasProtectiveMbr = true
			}
		}

	case ioctl.PARTITION_STYLE_GPT:
		drive.PartitionStyle = model.PartitionStyleGpt
		drive.DiskGUID = ioctl.UUIDFromGuid(layout.Gpt().DiskId)

		for i := uint32(0); i < count; i++ {
			entry := layout.Partition(i)
			record := model.PartitionRecord{
				Offset:      uint64(entry.StartingOffset),
				Size:        uint64(entry.PartitionLength),
				GptType:     ioctl.UUIDFromGuid(entry.Gpt().PartitionType),
				PartitionID: ioctl.UUIDFromGuid(entry.Gpt().PartitionId),
				Attributes:  entry.Gpt().Attributes,
				Name:        xwindows.UTF16ToString(entry.Gpt().Name[:]),
			}
			drive.Partitions = append(drive.Partitions, record)
			drive.NumPartitions++
			logPartition(raw, drive, &record, int(i))
			if sector := record.Offset / uint64(drive.SectorSize); sector < drive.FirstDataSector {
				drive.FirstDataSector = sector
			}
			// Don't count the partitions the tool itself creates or Windows insists on
			if record.IsUefiNtfs() || record.IsMsr() || record.IsEsp() {
				drive.NumPartitions--
			}
		}

	default:
		drive.PartitionStyle = model.PartitionStyleRaw
		log.Info("Partition type: RAW")
	}
	return nil
}

// hasUefiNtfsLabel reads the FAT label of an ESP-typed partition to detect the
// UEFI:NTFS helper
func hasUefiNtfsLabel(raw *os.File, offset uint64) bool {
	buf := make([]byte, 512)
	if _, err := raw.ReadAt(buf, int64(offset)); err != nil {
		return false
	}
	return string(buf[0x2b:0x2b+9]) == "UEFI_NTFS"
}

// logPartition logs one partition's details, including its detected file system
func logPartition(raw *os.File, drive *model.DriveInfo, record *model.PartitionRecord, index int) {
	fsName, err := signature.FsName(raw, int64(record.Offset))
	if err != nil {
		fsName = signature.FsNameUnrecognized
	}
	suffix := ""
	if record.IsUefiNtfs() {
		suffix = " (UEFI:NTFS)"
	}
	log.Infof("Partition %d%s:", index+1, suffix)
	log.Infof("  Detected File System: %s", fsName)
	log.Infof("  Size: %s (%d bytes), Start Sector: %d", stringformat.SizeToHumanReadable(record.Size),
		record.Size, record.Offset/uint64(drive.SectorSize))
}

// MountableMbrType reports whether an MBR partition type can be mounted by the host OS
func MountableMbrType(partType byte) bool {
	for _, t := range mbrMountable {
		if t == partType {
			return true
		}
	}
	return false
}

// IsDevDrive detects a developer volume: a GPT disk carrying exactly an MSR partition
// and a Basic Data partition of at least 20 GiB formatted with ReFS
func (r *Registry) IsDevDrive(driveIndex uint32) bool {
	handle, err := r.PhysicalHandle(driveIndex, false, false, true)
	if err != nil {
		return false
	}
	raw := os.NewFile(uintptr(handle), model.PhysicalName(driveIndex))
	defer raw.Close()

	layout, err := ioctl.GetDriveLayout(handle)
	if err != nil {
		return false
	}
	if layout.PartitionStyle() != ioctl.PARTITION_STYLE_GPT || layout.PartitionCount() != 2 {
		return false
	}
	first := ioctl.UUIDFromGuid(layout.Partition(0).Gpt().PartitionType)
	second := ioctl.UUIDFromGuid(layout.Partition(1).Gpt().PartitionType)
	if !uuid.Equal(first, model.PartitionMicrosoftReserved) || !uuid.Equal(second, model.PartitionMicrosoftData) {
		return false
	}
	if uint64(layout.Partition(1).PartitionLength) < 20<<30 {
		return false
	}

	fsName, err := signature.FsName(raw, layout.Partition(1).StartingOffset)
	return err == nil && fsName == "ReFS"
}
