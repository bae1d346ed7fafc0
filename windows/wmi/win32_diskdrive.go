// (c) Copyright 2024 MediaForge Technologies LP

//go:build windows
// +build windows

package wmi

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/go-ole/go-ole"

	log "github.com/mediaforge/boot-host-libs/logger"
)

// Win32_DiskDrive WMI class (the subset of properties the device registry consumes)
type Win32_DiskDrive struct {
	Index         uint32
	DeviceID      string
	Model         string
	SerialNumber  string
	InterfaceType string
	PNPDeviceID   string
	MediaType     string
	Size          uint64
}

// pnpVidPid extracts the USB vendor and product IDs from a PNPDeviceID such as
// `USB\VID_0951&PID_1666\001CC0EC3429...`
var pnpVidPid = regexp.MustCompile(`VID_([0-9A-Fa-f]{4})&PID_([0-9A-Fa-f]{4})`)

// VidPid returns the USB vendor and product IDs encoded in the drive's PNPDeviceID, or
// (0, 0) when the drive is not USB attached
func (d *Win32_DiskDrive) VidPid() (vid uint16, pid uint16) {
	match := pnpVidPid.FindStringSubmatch(d.PNPDeviceID)
	if match == nil {
		return 0, 0
	}
	v, _ := strconv.ParseUint(match[1], 16, 16)
	p, _ := strconv.ParseUint(match[2], 16, 16)
	return uint16(v), uint16(p)
}

// GetWin32DiskDrives enumerates this host's Win32_DiskDrive objects
func GetWin32DiskDrives() (drives []*Win32_DiskDrive, err error) {
	log.Trace(">>>>> GetWin32DiskDrives")
	defer log.Trace("<<<<< GetWin32DiskDrives")

	err = ExecQuery("SELECT * FROM Win32_DiskDrive", defaultNamespace, func(item *ole.IDispatch) error {
		drives = append(drives, &Win32_DiskDrive{
			Index:         uint32(UintProperty(item, "Index")),
			DeviceID:      StringProperty(item, "DeviceID"),
			Model:         StringProperty(item, "Model"),
			SerialNumber:  StringProperty(item, "SerialNumber"),
			InterfaceType: StringProperty(item, "InterfaceType"),
			PNPDeviceID:   StringProperty(item, "PNPDeviceID"),
			MediaType:     StringProperty(item, "MediaType"),
			Size:          UintProperty(item, "Size"),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return drives, nil
}

// GetWin32DiskDrive returns the Win32_DiskDrive object for the given disk number
func GetWin32DiskDrive(diskNumber uint32) (*Win32_DiskDrive, error) {
	var drive *Win32_DiskDrive
	query := fmt.Sprintf("SELECT * FROM Win32_DiskDrive WHERE Index = %d", diskNumber)
	err := ExecQuery(query, defaultNamespace, func(item *ole.IDispatch) error {
		drive = &Win32_DiskDrive{
			Index:         uint32(UintProperty(item, "Index")),
			DeviceID:      StringProperty(item, "DeviceID"),
			Model:         StringProperty(item, "Model"),
			SerialNumber:  StringProperty(item, "SerialNumber"),
			InterfaceType: StringProperty(item, "InterfaceType"),
			PNPDeviceID:   StringProperty(item, "PNPDeviceID"),
			MediaType:     StringProperty(item, "MediaType"),
			Size:          UintProperty(item, "Size"),
		}
		return nil
	})
	return drive, err
}
