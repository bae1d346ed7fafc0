// (c) Copyright 2024 MediaForge Technologies LP

//go:build windows
// +build windows

package windows

import (
	"syscall"
	"time"

	log "github.com/mediaforge/boot-host-libs/logger"
)

// CreateFileWithTimeout opens the given device path with a bounded timeout.  Some
// storage drivers hang inside CreateFile, and a single unresponsive volume must not
// stall a whole enumeration pass, so the open runs on its own goroutine and is abandoned
// once the timeout expires (the straggler closes its handle when it finally returns).
func CreateFileWithTimeout(path string, access uint32, shareMode uint32, disposition uint32, flags uint32, timeout time.Duration) (syscall.Handle, error) {
	type openResult struct {
		handle syscall.Handle
		err    error
	}

	pathUTF16, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return syscall.InvalidHandle, err
	}

	result := make(chan openResult, 1)
	abandoned := make(chan struct{})
	go func() {
		handle, err := syscall.CreateFile(pathUTF16, access, shareMode, nil, disposition, flags, 0)
		select {
		case result <- openResult{handle, err}:
		case <-abandoned:
			// The caller gave up; don't leak the handle
			if handle != syscall.InvalidHandle {
				syscall.CloseHandle(handle)
			}
		}
	}()

	select {
	case r := <-result:
		return r.handle, r.err
	case <-time.After(timeout):
		close(abandoned)
		log.Warnf("Time-out while opening %s", path)
		return syscall.InvalidHandle, ERROR_TIMEOUT
	}
}
