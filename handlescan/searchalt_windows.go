// (c) Copyright 2024 MediaForge Technologies LP

//go:build windows
// +build windows

package handlescan

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	log "github.com/mediaforge/boot-host-libs/logger"
)

const fileProcessIdsUsingFileInformation = 47

var procNtQueryInformationFile = ntdll.NewProc("NtQueryInformationFile")

// ioStatusBlock mirrors IO_STATUS_BLOCK
type ioStatusBlock struct {
	Status      uintptr
	Information uintptr
}

// SearchAlt queries the processes keeping a handle on a specific disk or volume by
// asking the file system directly.  This requires opening the target, which is not
// always convenient (we may be looking for the processes that prevent us from opening
// it in the first place), and on recent Windows builds the query tends to over-report,
// so the handle-table scanner remains the primary source.
func SearchAlt(handleName string) ([]uint64, error) {
	log.Tracef(">>>>> SearchAlt, handleName=%v", handleName)
	defer log.Trace("<<<<< SearchAlt")

	pathUTF16, err := syscall.UTF16PtrFromString(handleName)
	if err != nil {
		return nil, err
	}
	// The access rights used here matter: attributes-only access avoids tripping the
	// very sharing violations being diagnosed
	handle, err := syscall.CreateFile(pathUTF16,
		windows.FILE_READ_ATTRIBUTES|windows.SYNCHRONIZE, syscall.FILE_SHARE_READ,
		nil, syscall.OPEN_EXISTING, syscall.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil {
		return nil, err
	}
	defer syscall.CloseHandle(handle)

	bufferSize := uint32(0x1000)
	for attempts := 0; attempts < 8; attempts, bufferSize = attempts+1, bufferSize*2 {
		buffer := make([]byte, bufferSize)
		var iosb ioStatusBlock
		status, _, _ := procNtQueryInformationFile.Call(uintptr(handle),
			uintptr(unsafe.Pointer(&iosb)), uintptr(unsafe.Pointer(&buffer[0])),
			uintptr(bufferSize), fileProcessIdsUsingFileInformation)
		switch windows.NTStatus(status) {
		case statusSuccess:
			count := *(*uint32)(unsafe.Pointer(&buffer[0]))
			pidBase := uintptr(unsafe.Pointer(&buffer[0])) + unsafe.Sizeof(uintptr(0))
			maxCount := uint32((bufferSize - uint32(unsafe.Sizeof(uintptr(0)))) / uint32(unsafe.Sizeof(uintptr(0))))
			if count > maxCount {
				count = maxCount
			}
			pids := make([]uint64, 0, count)
			for i := uint32(0); i < count; i++ {
				pid := *(*uintptr)(unsafe.Pointer(pidBase + uintptr(i)*unsafe.Sizeof(uintptr(0))))
				pids = append(pids, uint64(pid))
			}
			return pids, nil
		case statusBufferOverflow, statusInfoLengthMismatch, statusBufferTooSmall:
			continue
		default:
			return nil, windows.NTStatus(status)
		}
	}
	return nil, statusInfoLengthMismatch
}
