// (c) Copyright 2024 MediaForge Technologies LP

//go:build windows
// +build windows

package ioctl

import (
	"syscall"
	"unsafe"

	log "github.com/mediaforge/boot-host-libs/logger"
)

// DRIVE_LAYOUT_INFORMATION_MBR union member
type DRIVE_LAYOUT_INFORMATION_MBR struct {
	Signature uint32
	CheckSum  uint32
}

// DRIVE_LAYOUT_INFORMATION_GPT union member
type DRIVE_LAYOUT_INFORMATION_GPT struct {
	DiskId               GUID
	StartingUsableOffset int64
	UsableLength         int64
	MaxPartitionCount    uint32
}

// PARTITION_INFORMATION_MBR is the MBR view of a partition entry's union
type PARTITION_INFORMATION_MBR struct {
	PartitionType        byte
	BootIndicator        byte
	RecognizedPartition  byte
	_                    byte
	HiddenSectors        uint32
	PartitionId          GUID
}

// PARTITION_INFORMATION_GPT is the GPT view of a partition entry's union
type PARTITION_INFORMATION_GPT struct {
	PartitionType GUID
	PartitionId   GUID
	Attributes    uint64
	Name          [36]uint16
}

// PARTITION_INFORMATION_EX mirrors the 144-byte on-wire layout used by the drive layout
// IOCTLs.  The trailing union is accessed through the Mbr()/Gpt() views.
type PARTITION_INFORMATION_EX struct {
	PartitionStyle     PARTITION_STYLE
	_                  uint32
	StartingOffset     int64
	PartitionLength    int64
	PartitionNumber    uint32
	RewritePartition   byte
	IsServicePartition byte
	_                  [2]byte
	union              [112]byte
}

// Mbr returns the MBR view of the partition entry union
func (p *PARTITION_INFORMATION_EX) Mbr() *PARTITION_INFORMATION_MBR {
	return (*PARTITION_INFORMATION_MBR)(unsafe.Pointer(&p.union[0]))
}

// Gpt returns the GPT view of the partition entry union
func (p *PARTITION_INFORMATION_EX) Gpt() *PARTITION_INFORMATION_GPT {
	return (*PARTITION_INFORMATION_GPT)(unsafe.Pointer(&p.union[0]))
}

// driveLayoutHeaderSize is the offset of the partition entry array inside
// DRIVE_LAYOUT_INFORMATION_EX: style (4), count (4), union padded to 40.
const driveLayoutHeaderSize = 48

// DriveLayout wraps the raw DRIVE_LAYOUT_INFORMATION_EX buffer returned by the OS, so a
// caller can mutate entries in place and hand the same buffer back to the set call.
type DriveLayout struct {
	raw []byte
}

// PartitionStyle returns the layout's partition table style
func (l *DriveLayout) PartitionStyle() PARTITION_STYLE {
	return *(*PARTITION_STYLE)(unsafe.Pointer(&l.raw[0]))
}

// PartitionCount returns the number of partition entries in the layout
func (l *DriveLayout) PartitionCount() uint32 {
	return *(*uint32)(unsafe.Pointer(&l.raw[4]))
}

// Mbr returns the MBR view of the layout header union
func (l *DriveLayout) Mbr() *DRIVE_LAYOUT_INFORMATION_MBR {
	return (*DRIVE_LAYOUT_INFORMATION_MBR)(unsafe.Pointer(&l.raw[8]))
}

// Gpt returns the GPT view of the layout header union
func (l *DriveLayout) Gpt() *DRIVE_LAYOUT_INFORMATION_GPT {
	return (*DRIVE_LAYOUT_INFORMATION_GPT)(unsafe.Pointer(&l.raw[8]))
}

// Partition returns a pointer into the raw buffer for entry i.  Mutations through the
// returned pointer are carried back by SetDriveLayout.
func (l *DriveLayout) Partition(i uint32) *PARTITION_INFORMATION_EX {
	offset := driveLayoutHeaderSize + uintptr(i)*unsafe.Sizeof(PARTITION_INFORMATION_EX{})
	return (*PARTITION_INFORMATION_EX)(unsafe.Pointer(&l.raw[offset]))
}

// GetDriveLayout issues an IOCTL_DISK_GET_DRIVE_LAYOUT_EX against an open disk handle
// and returns the raw layout for in-place edits.
func GetDriveLayout(handle syscall.Handle) (layout *DriveLayout, err error) {
	log.Trace(">>>>> GetDriveLayout")
	defer log.Trace("<<<<< GetDriveLayout")

	// A fully populated GPT layout with 128 entries needs 48 + 128*144 bytes; a 32 KiB
	// buffer gives comfortable headroom.
	dataBuffer := make([]uint8, 0x8000)

	var bytesReturned uint32
	err = syscall.DeviceIoControl(handle, IOCTL_DISK_GET_DRIVE_LAYOUT_EX, nil, 0, &dataBuffer[0], uint32(len(dataBuffer)), &bytesReturned, nil)
	if err != nil {
		log.Errorf("Error=%v", err)
		return nil, err
	}
	if bytesReturned < driveLayoutHeaderSize {
		log.Errorf("Short drive layout, bytesReturned=%v", bytesReturned)
		return nil, syscall.ERROR_INSUFFICIENT_BUFFER
	}

	layout = &DriveLayout{raw: dataBuffer[:bytesReturned]}
	log.Tracef("PartitionStyle=%v, PartitionCount=%v", layout.PartitionStyle(), layout.PartitionCount())
	return layout, nil
}

// SetDriveLayout issues an IOCTL_DISK_SET_DRIVE_LAYOUT_EX with the (possibly mutated)
// layout buffer obtained from GetDriveLayout.
func SetDriveLayout(handle syscall.Handle, layout *DriveLayout) (err error) {
	log.Trace(">>>>> SetDriveLayout")
	defer log.Trace("<<<<< SetDriveLayout")

	var bytesReturned uint32
	err = syscall.DeviceIoControl(handle, IOCTL_DISK_SET_DRIVE_LAYOUT_EX, &layout.raw[0], uint32(len(layout.raw)), nil, 0, &bytesReturned, nil)
	if err != nil {
		log.Errorf("Error=%v", err)
	}
	return err
}
