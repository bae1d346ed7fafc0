// (c) Copyright 2024 MediaForge Technologies LP

//go:build windows
// +build windows

package ioctl

import (
	"syscall"
	"unsafe"

	log "github.com/mediaforge/boot-host-libs/logger"
)

// STORAGE_DEVICE_NUMBER structure
type STORAGE_DEVICE_NUMBER struct {
	DeviceType      uint32
	DeviceNumber    uint32
	PartitionNumber uint32
}

// GetStorageDeviceNumber issues an IOCTL_STORAGE_GET_DEVICE_NUMBER against an open
// volume handle and returns the owning device's number.  Note that the device number is
// not unique across device types, so callers must filter by drive type first.
func GetStorageDeviceNumber(handle syscall.Handle) (deviceNumber *STORAGE_DEVICE_NUMBER, err error) {
	log.Trace(">>>>> GetStorageDeviceNumber")
	defer log.Trace("<<<<< GetStorageDeviceNumber")

	dataBuffer := make([]uint8, unsafe.Sizeof(STORAGE_DEVICE_NUMBER{}))

	var bytesReturned uint32
	err = syscall.DeviceIoControl(handle, IOCTL_STORAGE_GET_DEVICE_NUMBER, nil, 0, &dataBuffer[0], uint32(len(dataBuffer)), &bytesReturned, nil)
	if err != nil {
		log.Errorf("Error=%v", err)
		return nil, err
	}

	raw := *(*STORAGE_DEVICE_NUMBER)(unsafe.Pointer(&dataBuffer[0]))
	deviceNumber = &raw
	log.Tracef("DeviceType=%v, DeviceNumber=%v, PartitionNumber=%v",
		deviceNumber.DeviceType, deviceNumber.DeviceNumber, deviceNumber.PartitionNumber)
	return deviceNumber, nil
}
