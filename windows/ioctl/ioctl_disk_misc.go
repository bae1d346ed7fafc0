// (c) Copyright 2024 MediaForge Technologies LP

//go:build windows
// +build windows

package ioctl

import (
	"syscall"
	"unsafe"

	log "github.com/mediaforge/boot-host-libs/logger"
)

// CREATE_DISK_MBR union member
type CREATE_DISK_MBR struct {
	Signature uint32
}

// CREATE_DISK_GPT union member
type CREATE_DISK_GPT struct {
	DiskId            GUID
	MaxPartitionCount uint32
}

// CREATE_DISK structure (the union is as large as its largest member)
type CREATE_DISK struct {
	PartitionStyle PARTITION_STYLE
	union          [20]byte
}

// Mbr returns the MBR view of the CREATE_DISK union
func (c *CREATE_DISK) Mbr() *CREATE_DISK_MBR {
	return (*CREATE_DISK_MBR)(unsafe.Pointer(&c.union[0]))
}

// Gpt returns the GPT view of the CREATE_DISK union
func (c *CREATE_DISK) Gpt() *CREATE_DISK_GPT {
	return (*CREATE_DISK_GPT)(unsafe.Pointer(&c.union[0]))
}

// CreateDisk issues an IOCTL_DISK_CREATE_DISK to reset the drive's partition style.
// The set-layout IOCTL fails unless this has been called first.
func CreateDisk(handle syscall.Handle, createDisk *CREATE_DISK) (err error) {
	log.Tracef(">>>>> CreateDisk, style=%v", createDisk.PartitionStyle)
	defer log.Trace("<<<<< CreateDisk")

	size := uint32(unsafe.Sizeof(*createDisk))
	var bytesReturned uint32
	err = syscall.DeviceIoControl(handle, IOCTL_DISK_CREATE_DISK, (*byte)(unsafe.Pointer(createDisk)), size, nil, 0, &bytesReturned, nil)
	if err != nil {
		log.Errorf("Error=%v", err)
	}
	return err
}

// UpdateDiskProperties issues an IOCTL_DISK_UPDATE_PROPERTIES to make the OS re-read
// the partition table.  The partition manager calls this after every layout change, so
// we do too.
func UpdateDiskProperties(handle syscall.Handle) (err error) {
	log.Trace(">>>>> UpdateDiskProperties")
	defer log.Trace("<<<<< UpdateDiskProperties")

	var bytesReturned uint32
	err = syscall.DeviceIoControl(handle, IOCTL_DISK_UPDATE_PROPERTIES, nil, 0, nil, 0, &bytesReturned, nil)
	if err != nil {
		log.Errorf("Error=%v", err)
	}
	return err
}

// LockVolume issues an FSCTL_LOCK_VOLUME against an open volume handle
func LockVolume(handle syscall.Handle) (err error) {
	var bytesReturned uint32
	return syscall.DeviceIoControl(handle, FSCTL_LOCK_VOLUME, nil, 0, nil, 0, &bytesReturned, nil)
}

// UnlockVolume issues an FSCTL_UNLOCK_VOLUME against an open volume handle
func UnlockVolume(handle syscall.Handle) (err error) {
	var bytesReturned uint32
	return syscall.DeviceIoControl(handle, FSCTL_UNLOCK_VOLUME, nil, 0, nil, 0, &bytesReturned, nil)
}

// DismountVolume issues an FSCTL_DISMOUNT_VOLUME against an open volume handle
func DismountVolume(handle syscall.Handle) (err error) {
	log.Trace(">>>>> DismountVolume")
	defer log.Trace("<<<<< DismountVolume")

	var bytesReturned uint32
	err = syscall.DeviceIoControl(handle, FSCTL_DISMOUNT_VOLUME, nil, 0, nil, 0, &bytesReturned, nil)
	if err != nil {
		log.Errorf("Error=%v", err)
	}
	return err
}

// AllowExtendedDasdIo issues an FSCTL_ALLOW_EXTENDED_DASD_IO so partition boundary
// checks are disabled for raw I/O on the handle
func AllowExtendedDasdIo(handle syscall.Handle) (err error) {
	var bytesReturned uint32
	return syscall.DeviceIoControl(handle, FSCTL_ALLOW_EXTENDED_DASD_IO, nil, 0, nil, 0, &bytesReturned, nil)
}
