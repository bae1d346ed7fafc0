// (c) Copyright 2024 MediaForge Technologies LP

//go:build windows
// +build windows

// Package ioctl provides Windows IOCTL support
package ioctl

import (
	"fmt"

	uuid "github.com/satori/go.uuid"
)

// INVALID_HANDLE_VALUE as returned by CreateFile
const INVALID_HANDLE_VALUE = ^uintptr(0)

// Device IOCTL control codes
const (
	IOCTL_DISK_GET_DRIVE_GEOMETRY_EX     = 0x000700a0
	IOCTL_DISK_GET_DRIVE_LAYOUT_EX       = 0x00070050
	IOCTL_DISK_SET_DRIVE_LAYOUT_EX       = 0x0007c054
	IOCTL_DISK_CREATE_DISK               = 0x0007c058
	IOCTL_DISK_DELETE_DRIVE_LAYOUT       = 0x0007c100
	IOCTL_DISK_UPDATE_PROPERTIES         = 0x00070140
	IOCTL_STORAGE_GET_DEVICE_NUMBER      = 0x002d1080
	IOCTL_VOLUME_GET_VOLUME_DISK_EXTENTS = 0x00560000
	FSCTL_LOCK_VOLUME                    = 0x00090018
	FSCTL_UNLOCK_VOLUME                  = 0x0009001c
	FSCTL_DISMOUNT_VOLUME                = 0x00090020
	FSCTL_ALLOW_EXTENDED_DASD_IO         = 0x00090083
)

// diskPathFromNumber converts a disk number into its raw device path
func diskPathFromNumber(diskNumber uint32) string {
	return fmt.Sprintf(`\\.\PhysicalDrive%d`, diskNumber)
}

// GUID is the Windows GUID wire format (mixed endian, unlike RFC 4122)
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// GuidFromUUID converts an RFC 4122 UUID into the Windows GUID wire format
func GuidFromUUID(u uuid.UUID) GUID {
	b := u.Bytes()
	return GUID{
		Data1: uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]),
		Data2: uint16(b[4])<<8 | uint16(b[5]),
		Data3: uint16(b[6])<<8 | uint16(b[7]),
		Data4: [8]byte{b[8], b[9], b[10], b[11], b[12], b[13], b[14], b[15]},
	}
}

// UUIDFromGuid converts a Windows GUID into an RFC 4122 UUID
func UUIDFromGuid(g GUID) uuid.UUID {
	var b [16]byte
	b[0] = byte(g.Data1 >> 24)
	b[1] = byte(g.Data1 >> 16)
	b[2] = byte(g.Data1 >> 8)
	b[3] = byte(g.Data1)
	b[4] = byte(g.Data2 >> 8)
	b[5] = byte(g.Data2)
	b[6] = byte(g.Data3 >> 8)
	b[7] = byte(g.Data3)
	copy(b[8:], g.Data4[:])
	u, _ := uuid.FromBytes(b[:])
	return u
}
