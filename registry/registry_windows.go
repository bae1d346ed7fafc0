// (c) Copyright 2024 MediaForge Technologies LP

//go:build windows
// +build windows

package registry

import (
	"fmt"
	"strings"
	"syscall"
	"time"

	xwindows "golang.org/x/sys/windows"

	"github.com/mediaforge/boot-host-libs/cerrors"
	"github.com/mediaforge/boot-host-libs/handlescan"
	log "github.com/mediaforge/boot-host-libs/logger"
	"github.com/mediaforge/boot-host-libs/model"
	mwindows "github.com/mediaforge/boot-host-libs/windows"
	"github.com/mediaforge/boot-host-libs/windows/ioctl"
)

// Registry enumerates and describes physical block devices.  The optional scanner is
// consulted when a device open keeps failing with sharing violations, so the log can
// name the blocking processes.
type Registry struct {
	scanner *handlescan.Scanner

	// Cancelled is polled between open/lock retries; the front end sets it on user
	// abort
	Cancelled func() bool
}

// New creates a device registry.  The scanner may be nil.
func New(scanner *handlescan.Scanner) *Registry {
	return &Registry{scanner: scanner}
}

func (r *Registry) cancelled() bool {
	return r.Cancelled != nil && r.Cancelled()
}

// checkDriveIndex validates a physical drive number
func checkDriveIndex(driveIndex uint32) error {
	if driveIndex >= model.MaxDriveIndex {
		return cerrors.NewCoreErrorf(cerrors.NoDevice, "drive index %d is out of range", driveIndex)
	}
	return nil
}

// PhysicalName returns the path to access the physical drive
func (r *Registry) PhysicalName(driveIndex uint32) (string, error) {
	if err := checkDriveIndex(driveIndex); err != nil {
		return "", err
	}
	return model.PhysicalName(driveIndex), nil
}

// getHandle opens a device path, optionally with write access and a volume lock.
// Sharing violations are retried across DriveAccessTimeout; if exclusive write access
// cannot be obtained after a third of the retries, write sharing is enabled and the
// blocking processes are reported.
func (r *Registry) getHandle(path string, lockDrive bool, writeAccess bool, writeShare bool) (syscall.Handle, error) {
	if len(path) < 5 || path[0] != '\\' || path[1] != '\\' || path[3] != '\\' {
		return syscall.InvalidHandle, cerrors.NewCoreErrorf(cerrors.InvalidArgument, "unexpected device path '%s'", path)
	}

	pathUTF16, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return syscall.InvalidHandle, err
	}

	handle := syscall.InvalidHandle
	retryDelay := model.DriveAccessTimeout / model.DriveAccessRetries
	for i := 0; i < model.DriveAccessRetries; i++ {
		// Try without FILE_SHARE_WRITE first (unless specifically requested) so the OS
		// or other applications cannot modify the drive under us.  This may mean
		// waiting for an access gap.  FILE_SHARE_READ is kept as it is required for
		// enumeration and doesn't hurt.
		access := uint32(syscall.GENERIC_READ)
		if writeAccess {
			access |= syscall.GENERIC_WRITE
		}
		share := uint32(syscall.FILE_SHARE_READ)
		if writeShare {
			share |= syscall.FILE_SHARE_WRITE
		}
		handle, err = syscall.CreateFile(pathUTF16, access, share, nil, syscall.OPEN_EXISTING, syscall.FILE_ATTRIBUTE_NORMAL, 0)
		if handle != syscall.InvalidHandle {
			break
		}
		if err != syscall.Errno(xwindows.ERROR_SHARING_VIOLATION) && err != syscall.Errno(xwindows.ERROR_ACCESS_DENIED) {
			break
		}
		if i == 0 {
			log.Infof("Waiting for access on %s...", path)
		} else if !writeShare && i > model.DriveAccessRetries/3 {
			// If we can't seem to get a hold of the drive for some time, try to enable
			// write sharing and report who is holding the device
			log.Warn("Could not obtain exclusive rights. Retrying with write sharing enabled...")
			writeShare = true
			r.reportBlockingProcesses()
		}
		if r.cancelled() {
			return syscall.InvalidHandle, cerrors.NewCoreError(cerrors.Cancelled)
		}
		time.Sleep(retryDelay)
	}
	if handle == syscall.InvalidHandle {
		log.Errorf("Could not open %s: %v", path, err)
		if err == syscall.Errno(xwindows.ERROR_SHARING_VIOLATION) {
			return handle, cerrors.NewCoreError(cerrors.Sharing, err)
		}
		return handle, cerrors.NewCoreError(cerrors.AccessDenied, err)
	}

	if writeAccess {
		log.Infof("Opened %s for write access", path)
	}

	if lockDrive {
		if ioctl.AllowExtendedDasdIo(handle) == nil {
			log.Info("I/O boundary checks disabled")
		}
		endTime := time.Now().Add(model.DriveAccessTimeout)
		for time.Now().Before(endTime) {
			if ioctl.LockVolume(handle) == nil {
				return handle, nil
			}
			if r.cancelled() {
				break
			}
			time.Sleep(retryDelay)
		}
		// Either the lock never came or the user cancelled
		log.Errorf("Could not lock access to %s", path)
		accessMask := r.reportBlockingProcesses()
		// Continue only if the only access rights seen were read-only
		if accessMask&0x07 != 0x01 {
			syscall.CloseHandle(handle)
			return syscall.InvalidHandle, cerrors.NewCoreError(cerrors.Sharing, "could not lock the volume")
		}
	}
	return handle, nil
}

// reportBlockingProcesses logs the processes the handle scanner found on the device
func (r *Registry) reportBlockingProcesses() byte {
	if r.scanner == nil {
		return 0
	}
	mask, entries := r.scanner.GetBlocking(2*time.Second, 0x07, false)
	if len(entries) > 0 {
		log.Warn("The following application(s) or service(s) are accessing the drive:")
		for _, e := range entries {
			log.Warnf("o [%d] %s (access mask 0x%x)", e.Pid, e.Cmdline, e.AccessMask)
		}
	}
	return mask
}

// PhysicalHandle returns a handle to the physical drive identified by driveIndex
func (r *Registry) PhysicalHandle(driveIndex uint32, lockDrive bool, writeAccess bool, writeShare bool) (syscall.Handle, error) {
	path, err := r.PhysicalName(driveIndex)
	if err != nil {
		return syscall.InvalidHandle, err
	}
	return r.getHandle(path, lockDrive, writeAccess, writeShare)
}

// LogicalName returns the GUID volume name for the disk and partition specified, or ""
// if not found.  If partitionOffset is 0 the first partition found is returned.  When
// the OS refuses to enumerate the partition, the synthesized GlobalRoot path is
// returned instead.
func (r *Registry) LogicalName(driveIndex uint32, partitionOffset uint64, keepTrailingBackslash bool) (string, error) {
	log.Tracef(">>>>> LogicalName, driveIndex=%v, partitionOffset=%v", driveIndex, partitionOffset)
	defer log.Trace("<<<<< LogicalName")

	if err := checkDriveIndex(driveIndex); err != nil {
		return "", err
	}

	ignoreDevices := []string{`\Device\CdRom`, `\Device\Floppy`}

	var foundNames []string
	var foundOffsets []uint64

	buffer := make([]uint16, syscall.MAX_PATH)
	findHandle, err := xwindows.FindFirstVolume(&buffer[0], uint32(len(buffer)))
	if err != nil {
		log.Errorf("Could not access first GUID volume: %v", err)
		return "", err
	}
	defer xwindows.FindVolumeClose(findHandle)

	for {
		volumeName := xwindows.UTF16ToString(buffer)
		if ok, offset := r.matchVolumeToDisk(volumeName, driveIndex, ignoreDevices); ok {
			if len(foundNames) == model.MaxPartitions {
				return "", cerrors.NewCoreErrorf(cerrors.Internal,
					"trying to process a disk with more than %d partitions", model.MaxPartitions)
			}
			name := volumeName
			if keepTrailingBackslash {
				name += `\`
			}
			foundNames = append(foundNames, name)
			foundOffsets = append(foundOffsets, offset)
			log.Infof("● %s @%d", volumeName, offset)
		}
		if err = xwindows.FindNextVolume(findHandle, &buffer[0], uint32(len(buffer))); err != nil {
			break
		}
	}

	// Try to match one of the volumes we found with our partition offset
	for i := range foundNames {
		if partitionOffset == 0 || partitionOffset == foundOffsets[i] {
			return foundNames[i], nil
		}
	}

	// No GUID volume matched: synthesize a GlobalRoot path
	name, err := r.AltLogicalName(driveIndex, partitionOffset, keepTrailingBackslash)
	if err == nil && name != "" {
		log.Warn("Using physical device to access partition data")
	}
	return name, err
}

// matchVolumeToDisk checks whether a GUID volume lives on the given disk and returns
// its first extent offset
func (r *Registry) matchVolumeToDisk(volumeName string, driveIndex uint32, ignoreDevices []string) (bool, uint64) {
	if len(volumeName) < 5 || !strings.HasPrefix(volumeName, `\\?\`) {
		return false, 0
	}

	rootUTF16, err := syscall.UTF16PtrFromString(volumeName + `\`)
	if err != nil {
		return false, 0
	}
	driveType := xwindows.GetDriveType(rootUTF16)
	if driveType != xwindows.DRIVE_REMOVABLE && driveType != xwindows.DRIVE_FIXED {
		return false, 0
	}

	// Resolve the device path behind the volume so CD-ROM and floppy devices can be
	// skipped without opening them
	devPath := queryDosDevice(volumeName[4:])
	for _, ignore := range ignoreDevices {
		if len(devPath) >= len(ignore) && strings.EqualFold(devPath[:len(ignore)], ignore) {
			log.Tracef("Skipping GUID volume for '%s'", devPath)
			return false, 0
		}
	}

	// Some drivers hang on open, so bound the call
	handle, err := mwindows.CreateFileWithTimeout(volumeName, syscall.GENERIC_READ,
		syscall.FILE_SHARE_READ|syscall.FILE_SHARE_WRITE, syscall.OPEN_EXISTING,
		syscall.FILE_ATTRIBUTE_NORMAL, model.DefaultOpenTimeout)
	if err != nil || handle == syscall.InvalidHandle {
		return false, 0
	}
	defer syscall.CloseHandle(handle)

	extents, err := ioctl.GetVolumeDiskExtents(volumeName)
	if err != nil || len(extents) == 0 {
		return false, 0
	}
	if len(extents) != 1 {
		// More than one extent per volume means RAID or spanning: stay well away
		log.Infof("Ignoring volume '%s' because it has more than one extent", volumeName)
		return false, 0
	}
	if extents[0].DiskNumber != driveIndex {
		return false, 0
	}
	return true, extents[0].StartingOffset
}

// AltLogicalName synthesizes the `\\?\GLOBALROOT\Device\HarddiskVolumeN` style path for
// partitions the OS refuses to enumerate, such as ESPs
func (r *Registry) AltLogicalName(driveIndex uint32, partitionOffset uint64, keepTrailingBackslash bool) (string, error) {
	log.Tracef(">>>>> AltLogicalName, driveIndex=%v, partitionOffset=%v", driveIndex, partitionOffset)
	defer log.Trace("<<<<< AltLogicalName")

	if err := checkDriveIndex(driveIndex); err != nil {
		return "", err
	}

	// Match the offset to a partition index
	partitionIndex := 0
	if partitionOffset != 0 {
		drive, err := r.Query(driveIndex)
		if err != nil {
			return "", err
		}
		partitionIndex = -1
		for i := range drive.Partitions {
			if drive.Partitions[i].Offset == partitionOffset {
				partitionIndex = i
				break
			}
		}
		if partitionIndex == -1 {
			return "", cerrors.NewCoreErrorf(cerrors.NotFound,
				"could not find a partition at offset %d on this disk", partitionOffset)
		}
	}

	devicePath := queryDosDevice(fmt.Sprintf("Harddisk%dPartition%d", driveIndex, partitionIndex+1))
	if len(devicePath) < 20 {
		return "", cerrors.NewCoreErrorf(cerrors.NotFound,
			"could not find a DOS volume name for Harddisk%dPartition%d", driveIndex, partitionIndex+1)
	}
	return model.GlobalRootName(devicePath, keepTrailingBackslash), nil
}

// queryDosDevice resolves a DOS device name into its kernel device path
func queryDosDevice(name string) string {
	nameUTF16, err := syscall.UTF16PtrFromString(name)
	if err != nil {
		return ""
	}
	buffer := make([]uint16, syscall.MAX_PATH)
	n, err := xwindows.QueryDosDevice(nameUTF16, &buffer[0], uint32(len(buffer)))
	if err != nil || n == 0 {
		return ""
	}
	return xwindows.UTF16ToString(buffer)
}

// LogicalHandle returns a handle to the volume identified by driveIndex and
// partitionOffset
func (r *Registry) LogicalHandle(driveIndex uint32, partitionOffset uint64, lockDrive bool, writeAccess bool, writeShare bool) (syscall.Handle, error) {
	logicalPath, err := r.LogicalName(driveIndex, partitionOffset, false)
	if err != nil {
		return syscall.InvalidHandle, err
	}
	if logicalPath == "" {
		log.Info("No logical drive found (unpartitioned?)")
		return syscall.InvalidHandle, cerrors.NewCoreError(cerrors.NotFound)
	}
	return r.getHandle(logicalPath, lockDrive, writeAccess, writeShare)
}

// WaitForLogical waits up to DriveAccessTimeout for the logical path of the given
// partition to reappear after a layout refresh
func (r *Registry) WaitForLogical(driveIndex uint32, partitionOffset uint64) bool {
	endTime := time.Now().Add(model.DriveAccessTimeout)
	retryDelay := model.DriveAccessTimeout / model.DriveAccessRetries
	for time.Now().Before(endTime) {
		logicalPath, err := r.LogicalName(driveIndex, partitionOffset, false)
		// GlobalRoot devices don't count: those exist before the volume is usable
		if err == nil && logicalPath != "" && !model.IsGlobalRootName(logicalPath) {
			return true
		}
		if r.cancelled() {
			return false
		}
		time.Sleep(retryDelay)
	}
	log.Error("Timeout while waiting for logical drive")
	return false
}

// DriveLetters returns the mounted drive letters of the given device
func (r *Registry) DriveLetters(driveIndex uint32) ([]byte, error) {
	letters, _, err := r.driveLettersAndType(driveIndex)
	return letters, err
}

// DriveType returns the drive type (removable/fixed) of the given device
func (r *Registry) DriveType(driveIndex uint32) (model.MediaType, error) {
	_, mediaType, err := r.driveLettersAndType(driveIndex)
	return mediaType, err
}

// driveLettersAndType walks all mounted drive letters with a bounded-timeout open and
// matches them to the device by storage device number.  Devices without mounted
// volumes recover their media type from the drive geometry.
func (r *Registry) driveLettersAndType(driveIndex uint32) ([]byte, model.MediaType, error) {
	log.Tracef(">>>>> driveLettersAndType, driveIndex=%v", driveIndex)
	defer log.Trace("<<<<< driveLettersAndType")

	if err := checkDriveIndex(driveIndex); err != nil {
		return nil, model.MediaTypeUnknown, err
	}

	var letters []byte
	mediaType := model.MediaTypeUnknown

	buffer := make([]uint16, 26*4+1)
	n, err := xwindows.GetLogicalDriveStrings(uint32(len(buffer)), &buffer[0])
	if err != nil || n == 0 {
		log.Errorf("GetLogicalDriveStrings failed: %v", err)
		return nil, model.MediaTypeUnknown, err
	}

	for _, root := range splitUTF16Strings(buffer) {
		if len(root) < 2 || root[0] < 'A' || root[0] > 'Z' {
			continue
		}
		letter := root[0]

		// The storage device number is not unique across device types, so filter with
		// the drive type first
		rootUTF16, _ := syscall.UTF16PtrFromString(root)
		driveType := xwindows.GetDriveType(rootUTF16)
		if driveType != xwindows.DRIVE_REMOVABLE && driveType != xwindows.DRIVE_FIXED {
			continue
		}

		// Some drivers freeze inside the open call, so bound it
		handle, err := mwindows.CreateFileWithTimeout(model.LogicalDriveName(letter),
			syscall.GENERIC_READ, syscall.FILE_SHARE_READ|syscall.FILE_SHARE_WRITE,
			syscall.OPEN_EXISTING, syscall.FILE_ATTRIBUTE_NORMAL, model.DefaultOpenTimeout)
		if err != nil || handle == syscall.InvalidHandle {
			continue
		}
		deviceNumber, err := ioctl.GetStorageDeviceNumber(handle)
		syscall.CloseHandle(handle)
		if err != nil {
			continue
		}
		if deviceNumber.DeviceNumber == driveIndex {
			letters = append(letters, letter)
			if driveType == xwindows.DRIVE_FIXED {
				mediaType = model.MediaTypeFixed
			} else {
				mediaType = model.MediaTypeRemovable
			}
		}
	}

	// Devices with no mounted volume recover the media type from the geometry
	if len(letters) == 0 {
		if geometry, err := ioctl.GetDiskGeometry(driveIndex); err == nil {
			switch geometry.Geometry.MediaType {
			case ioctl.FixedMedia:
				mediaType = model.MediaTypeFixed
			case ioctl.RemovableMedia:
				mediaType = model.MediaTypeRemovable
			}
		}
	}
	return letters, mediaType, nil
}

// splitUTF16Strings splits a REG_MULTI_SZ style double-NUL-terminated UTF-16 buffer
func splitUTF16Strings(buffer []uint16) []string {
	var result []string
	start := 0
	for i := 0; i < len(buffer); i++ {
		if buffer[i] == 0 {
			if i == start {
				break
			}
			result = append(result, xwindows.UTF16ToString(buffer[start:i]))
			start = i + 1
		}
	}
	return result
}

// HandleNames returns the kernel device names the handle scanner should watch for the
// given drive: the physical device path plus one per mounted volume.
func (r *Registry) HandleNames(driveIndex uint32) ([]string, error) {
	if err := checkDriveIndex(driveIndex); err != nil {
		return nil, err
	}

	var names []string
	// Physical drive handle name, e.g. \Device\Harddisk3\DR3
	if devPath := queryDosDevice(fmt.Sprintf("PhysicalDrive%d", driveIndex)); devPath != "" {
		names = append(names, devPath)
	}
	// Logical drive(s) handle name(s), e.g. \Device\HarddiskVolume42
	letters, err := r.DriveLetters(driveIndex)
	if err == nil {
		for _, letter := range letters {
			if devPath := queryDosDevice(string(letter) + ":"); devPath != "" {
				names = append(names, devPath)
			}
		}
	}
	return names, nil
}
