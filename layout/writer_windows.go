// (c) Copyright 2024 MediaForge Technologies LP

//go:build windows
// +build windows

package layout

import (
	"os"
	"syscall"
	"time"

	"github.com/mediaforge/boot-host-libs/cerrors"
	log "github.com/mediaforge/boot-host-libs/logger"
	"github.com/mediaforge/boot-host-libs/model"
	"github.com/mediaforge/boot-host-libs/registry"
	"github.com/mediaforge/boot-host-libs/windows/ioctl"
)

// refreshRetryDelay is the pause before the refresh sequence is retried with rescan
// semantics
const refreshRetryDelay = 2 * time.Second

// Apply writes the plan onto the physical device and runs the refresh handshake:
// zeroize, table write, layout refresh, then wait for the OS to surface the main
// partition's logical volume again.  A failed refresh is retried once with rescan
// semantics (refresh plus re-enumeration) before giving up.
func (w *Writer) Apply(reg *registry.Registry, drive *model.DriveInfo, plan *model.LayoutPlan) error {
	log.Tracef(">>>>> Apply, drive=%d", drive.Index)
	defer log.Trace("<<<<< Apply")

	handle, err := reg.PhysicalHandle(drive.Index, true, true, false)
	if err != nil {
		return w.fail(StateFailed, err)
	}
	raw := os.NewFile(uintptr(handle), drive.PhysicalPath)

	if err := w.WriteLayout(raw, drive, plan); err != nil {
		raw.Close()
		return err
	}

	// Make the OS re-read the partition table.  This is known to be unreliable on its
	// own, which is why the planned partitions were zeroed first.
	if err := ioctl.UpdateDiskProperties(handle); err != nil {
		log.Warnf("Could not refresh drive layout: %v", err)
	}
	ioctl.UnlockVolume(handle)
	raw.Close()

	// Wait for the main partition's logical path to reappear
	if reg.WaitForLogical(drive.Index, plan.Main().Offset) {
		w.state = StateRefreshed
		return nil
	}

	// Retry with rescan semantics after a short sleep
	w.state = StateRefreshFailed
	time.Sleep(refreshRetryDelay)
	if err := RefreshDriveLayout(reg, drive.Index); err == nil {
		if reg.WaitForLogical(drive.Index, plan.Main().Offset) {
			w.state = StateRefreshed
			return nil
		}
	}
	return w.fail(StateFailed, cerrors.NewCoreErrorf(cerrors.LayoutRefuses,
		"the logical volume did not reappear after the layout refresh"))
}

// RefreshDriveLayout re-issues the layout refresh against a fresh handle
func RefreshDriveLayout(reg *registry.Registry, driveIndex uint32) error {
	handle, err := reg.PhysicalHandle(driveIndex, false, true, true)
	if err != nil {
		return err
	}
	defer syscall.CloseHandle(handle)
	return ioctl.UpdateDiskProperties(handle)
}

// InitializeDisk resets the drive to an uninitialized (RAW) partition style
func InitializeDisk(reg *registry.Registry, driveIndex uint32) error {
	log.Tracef(">>>>> InitializeDisk, driveIndex=%v", driveIndex)
	defer log.Trace("<<<<< InitializeDisk")

	handle, err := reg.PhysicalHandle(driveIndex, false, true, true)
	if err != nil {
		return err
	}
	defer syscall.CloseHandle(handle)

	createDisk := &ioctl.CREATE_DISK{PartitionStyle: ioctl.PARTITION_STYLE_RAW}
	if err := ioctl.CreateDisk(handle, createDisk); err != nil {
		return cerrors.NewCoreError(cerrors.LayoutRefuses, err)
	}
	if err := ioctl.UpdateDiskProperties(handle); err != nil {
		return cerrors.NewCoreError(cerrors.LayoutRefuses, err)
	}
	return nil
}
