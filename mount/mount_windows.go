// (c) Copyright 2024 MediaForge Technologies LP

//go:build windows
// +build windows

// Package mount controls how the authoring core's volumes are mounted, unmounted and
// remounted, including the ESP paths the OS will not hand out GUID volume names for.
package mount

import (
	"strings"
	"syscall"

	xwindows "golang.org/x/sys/windows"

	"github.com/mediaforge/boot-host-libs/cerrors"
	log "github.com/mediaforge/boot-host-libs/logger"
	"github.com/mediaforge/boot-host-libs/model"
	"github.com/mediaforge/boot-host-libs/registry"
	"github.com/mediaforge/boot-host-libs/windows/ioctl"
)

// Controller mounts and unmounts the volumes of the target device.  The registry
// resolves device paths; the optional scanner (owned by the registry) keeps reporting
// blockers while we wait.
type Controller struct {
	registry *registry.Registry
}

// NewController creates a mount controller over the given device registry
func NewController(reg *registry.Registry) *Controller {
	return &Controller{registry: reg}
}

// Unmount dismounts the volume behind an open handle
func (c *Controller) Unmount(handle syscall.Handle) error {
	if err := ioctl.DismountVolume(handle); err != nil {
		return cerrors.NewCoreError(cerrors.Internal, err)
	}
	return nil
}

// Mount mounts the volume identified by volumeName at the drive letter in driveName
// (e.g. "K:\").  GlobalRoot device paths cannot be mounted through a volume mount
// point, so those are routed through a raw DOS device definition instead.
func (c *Controller) Mount(driveName string, volumeName string) error {
	log.Tracef(">>>>> Mount, driveName=%v, volumeName=%v", driveName, volumeName)
	defer log.Trace("<<<<< Mount")

	if driveName == "" || volumeName == "" || driveName[0] == '?' {
		return cerrors.NewCoreError(cerrors.InvalidArgument)
	}

	// ESPs and other un-enumerable partitions only mount through DefineDosDevice with
	// a raw target path.  The API refuses trailing backslashes and wants the path
	// without the GlobalRoot prefix.
	if model.IsGlobalRootName(volumeName) {
		dosName := driveName[:1] + ":"
		devicePath := model.StripGlobalRoot(volumeName)
		if err := defineDosDevice(dosName, devicePath, false); err != nil {
			log.Errorf("Could not mount %s as %s: %v", volumeName, dosName, err)
			return cerrors.NewCoreError(cerrors.Internal, err)
		}
		log.Infof("%s was successfully mounted as %s", volumeName, dosName)
		return nil
	}

	driveUTF16, err := syscall.UTF16PtrFromString(driveName)
	if err != nil {
		return err
	}
	volumeUTF16, err := syscall.UTF16PtrFromString(volumeName)
	if err != nil {
		return err
	}

	if err = xwindows.SetVolumeMountPoint(driveUTF16, volumeUTF16); err != nil {
		if err != syscall.Errno(xwindows.ERROR_DIR_NOT_EMPTY) {
			return cerrors.NewCoreError(cerrors.Internal, err)
		}
		// The mount point may already be taken.  If it holds the expected volume GUID
		// this is a silent success; otherwise unmount and retry once.
		mounted := volumeGuidForMountPoint(driveName)
		if sameVolume(mounted, volumeName) {
			log.Infof("%s is already mounted as %s", volumeName, driveName)
			return nil
		}
		if mounted != "" {
			log.Warnf("%s is mounted, but volume GUID doesn't match: expected %s, got %s",
				driveName, volumeName, mounted)
		}
		log.Info("Retrying after dismount...")
		if err = xwindows.DeleteVolumeMountPoint(driveUTF16); err != nil {
			log.Warnf("Could not delete volume mountpoint '%s': %v", driveName, err)
		}
		if err = xwindows.SetVolumeMountPoint(driveUTF16, volumeUTF16); err != nil {
			if sameVolume(volumeGuidForMountPoint(driveName), volumeName) {
				log.Infof("%s was remounted as %s (second time lucky)", volumeName, driveName)
				return nil
			}
			return cerrors.NewCoreError(cerrors.Internal, err)
		}
	}
	return nil
}

// Remount flushes and fully remounts the volume at the given drive name.  UDF requires
// the flush, and it doesn't hurt any other file system.  A failed remount leaves the
// drive inaccessible, which is why it gets its own error kind: the user must be told
// to unplug and replug the device.
func (c *Controller) Remount(driveName string) error {
	log.Tracef(">>>>> Remount, driveName=%v", driveName)
	defer log.Trace("<<<<< Remount")

	flushDrive(driveName[0])
	volumeName := volumeGuidForMountPoint(driveName)
	if volumeName == "" {
		return nil
	}
	if err := c.Mount(driveName, volumeName); err != nil {
		log.Errorf("Could not remount %s as %s: %v", volumeName, driveName, err)
		return cerrors.NewCoreErrorf(cerrors.RemountFailed,
			"could not remount %s as %s", volumeName, driveName)
	}
	log.Infof("Successfully remounted %s as %s", volumeName, driveName)
	return nil
}

// AltMount mounts the partition at the given offset through a raw DOS device
// definition and returns the drive letter used.  This is the only way to mount an ESP:
// neither the mount manager nor the virtual disk service will do it.
func (c *Controller) AltMount(driveIndex uint32, partitionOffset uint64) (string, error) {
	log.Tracef(">>>>> AltMount, driveIndex=%v, partitionOffset=%v", driveIndex, partitionOffset)
	defer log.Trace("<<<<< AltMount")

	letter := c.UnusedDriveLetter()
	if letter == 0 {
		return "", cerrors.NewCoreError(cerrors.NotFound, "could not find an unused drive letter")
	}

	// Can't use a regular volume GUID for ESPs
	volumeName, err := c.registry.AltLogicalName(driveIndex, partitionOffset, false)
	if err != nil {
		return "", err
	}
	if !model.IsGlobalRootName(volumeName) {
		return "", cerrors.NewCoreErrorf(cerrors.Internal, "unexpected volume name: '%s'", volumeName)
	}

	mountedDrive := string(letter) + ":"
	devicePath := model.StripGlobalRoot(volumeName)
	log.Infof("Mounting '%s' as '%s'", devicePath, mountedDrive)
	if err := defineDosDevice(mountedDrive, devicePath, false); err != nil {
		return "", cerrors.NewCoreError(cerrors.Internal, err)
	}
	return mountedDrive, nil
}

// AltUnmount removes a drive letter that was defined by AltMount
func (c *Controller) AltUnmount(driveName string) error {
	if driveName == "" {
		return cerrors.NewCoreError(cerrors.InvalidArgument)
	}
	if err := defineDosDevice(strings.TrimSuffix(driveName, `\`), "", true); err != nil {
		log.Errorf("Could not unmount '%s': %v", driveName, err)
		return cerrors.NewCoreError(cerrors.Internal, err)
	}
	log.Infof("Successfully unmounted '%s'", driveName)
	return nil
}

// RemoveDriveLetters unmounts every mounted volume that belongs to the drive and
// returns the first (or last) removed letter, or the next unused letter when the drive
// has none assigned.
func (c *Controller) RemoveDriveLetters(driveIndex uint32, returnLast bool) byte {
	letters, err := c.registry.DriveLetters(driveIndex)
	if err != nil || len(letters) == 0 {
		log.Info("No drive letter was assigned...")
		return c.UnusedDriveLetter()
	}

	for _, letter := range letters {
		driveName := string(letter) + ":"
		// DefineDosDevice cannot have a trailing backslash...
		if err := defineDosDevice(driveName, "", true); err != nil {
			log.Warnf("Could not remove drive letter %s: %v", driveName, err)
		}
		// ... but DeleteVolumeMountPoint requires one
		mountPoint, _ := syscall.UTF16PtrFromString(driveName + `\`)
		if err := xwindows.DeleteVolumeMountPoint(mountPoint); err != nil {
			log.Warnf("Failed to delete mountpoint %s\\: %v", driveName, err)
		}
	}
	if returnLast {
		return letters[len(letters)-1]
	}
	return letters[0]
}

// UnusedDriveLetter returns the next unused drive letter, or 0 when every letter is
// taken
func (c *Controller) UnusedDriveLetter() byte {
	inUse := driveLettersInUse()
	for letter := byte('C'); letter <= 'Z'; letter++ {
		if !inUse[letter] {
			return letter
		}
	}
	return 0
}

// IsDriveLetterInUse reports whether the given letter currently names a volume
func (c *Controller) IsDriveLetterInUse(letter byte) bool {
	return driveLettersInUse()[letter]
}

// driveLettersInUse reads the logical drive strings into a letter set
func driveLettersInUse() map[byte]bool {
	inUse := make(map[byte]bool)
	buffer := make([]uint16, 26*4+1)
	n, err := xwindows.GetLogicalDriveStrings(uint32(len(buffer)), &buffer[0])
	if err != nil || n == 0 {
		log.Errorf("GetLogicalDriveStrings failed: %v", err)
		return inUse
	}
	for i := 0; i+1 < len(buffer); i += 4 {
		if buffer[i] == 0 {
			break
		}
		letter := byte(buffer[i])
		if letter >= 'a' && letter <= 'z' {
			letter -= 'a' - 'A'
		}
		inUse[letter] = true
	}
	return inUse
}

// flushDrive flushes the file data of a mounted volume
func flushDrive(letter byte) {
	pathUTF16, err := syscall.UTF16PtrFromString(model.LogicalDriveName(letter))
	if err != nil {
		return
	}
	handle, err := syscall.CreateFile(pathUTF16, syscall.GENERIC_READ|syscall.GENERIC_WRITE,
		syscall.FILE_SHARE_READ|syscall.FILE_SHARE_WRITE, nil, syscall.OPEN_EXISTING,
		syscall.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil || handle == syscall.InvalidHandle {
		log.Warnf("Failed to open %c: for flushing: %v", letter, err)
		return
	}
	defer syscall.CloseHandle(handle)
	if err := syscall.FlushFileBuffers(handle); err != nil {
		log.Warnf("Failed to flush %c: %v", letter, err)
	}
}

// sameVolume compares two volume GUID paths regardless of trailing backslashes
func sameVolume(a, b string) bool {
	return a != "" && strings.TrimRight(a, `\`) == strings.TrimRight(b, `\`)
}

// volumeGuidForMountPoint returns the volume GUID path mounted at the given drive name
// (with its trailing backslash), or ""
func volumeGuidForMountPoint(driveName string) string {
	mountPoint := driveName
	if !strings.HasSuffix(mountPoint, `\`) {
		mountPoint += `\`
	}
	mountPointUTF16, err := syscall.UTF16PtrFromString(mountPoint)
	if err != nil {
		return ""
	}
	buffer := make([]uint16, 52)
	if err := xwindows.GetVolumeNameForVolumeMountPoint(mountPointUTF16, &buffer[0], uint32(len(buffer))); err != nil {
		return ""
	}
	return xwindows.UTF16ToString(buffer)
}

// defineDosDevice adds or removes a raw DOS device definition without broadcasting the
// change to every window in the system
func defineDosDevice(deviceName string, targetPath string, remove bool) error {
	const (
		dddRawTargetPath     = 0x00000001
		dddRemoveDefinition  = 0x00000002
		dddNoBroadcastSystem = 0x00000008
	)
	deviceUTF16, err := syscall.UTF16PtrFromString(deviceName)
	if err != nil {
		return err
	}
	if remove {
		return xwindows.DefineDosDevice(dddRemoveDefinition|dddNoBroadcastSystem, deviceUTF16, nil)
	}
	targetUTF16, err := syscall.UTF16PtrFromString(targetPath)
	if err != nil {
		return err
	}
	return xwindows.DefineDosDevice(dddRawTargetPath|dddNoBroadcastSystem, deviceUTF16, targetUTF16)
}
