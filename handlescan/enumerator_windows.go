// (c) Copyright 2024 MediaForge Technologies LP

//go:build windows
// +build windows

package handlescan

import (
	"unsafe"

	"golang.org/x/sys/windows"

	log "github.com/mediaforge/boot-host-libs/logger"
	"github.com/mediaforge/boot-host-libs/model"
)

// NT definitions not surfaced by golang.org/x/sys/windows
const (
	systemExtendedHandleInformation = 64
	objectNameInformation           = 1

	statusSuccess            = windows.NTStatus(0x00000000)
	statusBufferOverflow     = windows.NTStatus(0x80000005)
	statusInfoLengthMismatch = windows.NTStatus(0xC0000004)
	statusBufferTooSmall     = windows.NTStatus(0xC0000023)

	fileTypeDisk = 0x0001

	processCommandLineInformation = 60
)

var (
	ntdll              = windows.NewLazySystemDLL("ntdll.dll")
	procNtQueryObject  = ntdll.NewProc("NtQueryObject")
)

// SYSTEM_HANDLE_TABLE_ENTRY_INFO_EX is one entry of the extended system handle table
type SYSTEM_HANDLE_TABLE_ENTRY_INFO_EX struct {
	Object                uintptr
	UniqueProcessId       uintptr
	HandleValue           uintptr
	GrantedAccess         uint32
	CreatorBackTraceIndex uint16
	ObjectTypeIndex       uint16
	HandleAttributes      uint32
	Reserved              uint32
}

// SYSTEM_HANDLE_INFORMATION_EX is the header of the extended system handle table
type SYSTEM_HANDLE_INFORMATION_EX struct {
	NumberOfHandles uintptr
	Reserved        uintptr
}

// systemEnumerator backs OsHandleEnumerator with the native handle table and process
// APIs
type systemEnumerator struct{}

// NewSystemEnumerator returns the enumerator used outside of tests
func NewSystemEnumerator() OsHandleEnumerator {
	return &systemEnumerator{}
}

// NewSystemScanner returns a scanner over the live system handle table
func NewSystemScanner() *Scanner {
	return NewScanner(NewSystemEnumerator())
}

// Snapshot requests the full system handle table.  The required length is not knowable
// up front, so the buffer grows until the query stops reporting a length mismatch.
func (e *systemEnumerator) Snapshot() ([]model.HandleEntry, error) {
	bufferSize := uint32(0x10000)
	var buffer []byte
	for attempts := 0; attempts < 16; attempts++ {
		buffer = make([]byte, bufferSize)
		var returnLength uint32
		err := windows.NtQuerySystemInformation(systemExtendedHandleInformation,
			unsafe.Pointer(&buffer[0]), bufferSize, &returnLength)
		if err == nil {
			break
		}
		if err == statusInfoLengthMismatch || err == statusBufferTooSmall {
			// The table grows between queries, so pad the reported length
			if returnLength > bufferSize {
				bufferSize = returnLength + 0x10000
			} else {
				bufferSize *= 2
			}
			buffer = nil
			continue
		}
		return nil, err
	}
	if buffer == nil {
		return nil, statusInfoLengthMismatch
	}

	header := (*SYSTEM_HANDLE_INFORMATION_EX)(unsafe.Pointer(&buffer[0]))
	count := header.NumberOfHandles
	entrySize := unsafe.Sizeof(SYSTEM_HANDLE_TABLE_ENTRY_INFO_EX{})
	base := uintptr(unsafe.Pointer(&buffer[0])) + unsafe.Sizeof(SYSTEM_HANDLE_INFORMATION_EX{})

	// Validate the reported count against the buffer before touching any entry
	maxCount := (uintptr(len(buffer)) - unsafe.Sizeof(SYSTEM_HANDLE_INFORMATION_EX{})) / entrySize
	if count > maxCount {
		log.Debugf("Handle table reports %d entries, buffer holds %d", count, maxCount)
		count = maxCount
	}

	entries := make([]model.HandleEntry, 0, count)
	for i := uintptr(0); i < count; i++ {
		raw := (*SYSTEM_HANDLE_TABLE_ENTRY_INFO_EX)(unsafe.Pointer(base + i*entrySize))
		entries = append(entries, model.HandleEntry{
			Pid:             uint64(raw.UniqueProcessId),
			Handle:          raw.HandleValue,
			GrantedAccess:   raw.GrantedAccess,
			ObjectTypeIndex: raw.ObjectTypeIndex,
		})
	}
	return entries, nil
}

type systemProcessHandle struct {
	pid    uint64
	handle windows.Handle
}

func (e *systemEnumerator) OpenProcess(pid uint64) (ProcessHandle, error) {
	handle, err := windows.OpenProcess(
		windows.PROCESS_DUP_HANDLE|windows.PROCESS_QUERY_INFORMATION|windows.PROCESS_VM_READ,
		false, uint32(pid))
	if err != nil {
		return nil, err
	}
	return &systemProcessHandle{pid: pid, handle: handle}, nil
}

func (e *systemEnumerator) IsRunning(pid uint64) bool {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(handle)
	var exitCode uint32
	if err := windows.GetExitCodeProcess(handle, &exitCode); err != nil {
		return false
	}
	const stillActive = 259
	return exitCode == stillActive
}

func (p *systemProcessHandle) Close() {
	windows.CloseHandle(p.handle)
}

type systemOwnedHandle struct {
	handle windows.Handle
}

func (p *systemProcessHandle) DuplicateHandle(handle uintptr) (OwnedHandle, error) {
	var dup windows.Handle
	err := windows.DuplicateHandle(p.handle, windows.Handle(handle),
		windows.CurrentProcess(), &dup, 0, false, 0)
	if err != nil {
		return nil, err
	}
	return &systemOwnedHandle{handle: dup}, nil
}

// CommandLine resolves a display command line for the process: the user-mode command
// line first, then the executable path, then the native image name.
func (p *systemProcessHandle) CommandLine() (string, bool) {
	if line, ok := p.userCommandLine(); ok {
		return line, true
	}
	// Win32 path first; native format ('\Device\HarddiskVolumeN\...') beats nothing at all
	for _, flags := range []uint32{0, windows.PROCESS_NAME_NATIVE} {
		buf := make([]uint16, windows.MAX_LONG_PATH)
		size := uint32(len(buf))
		if err := windows.QueryFullProcessImageName(p.handle, flags, &buf[0], &size); err == nil && size > 0 {
			return windows.UTF16ToString(buf[:size]), true
		}
	}
	return "", false
}

// userCommandLine queries ProcessCommandLineInformation, which hands back the PEB
// command line without the cross-bitness indirection dance
func (p *systemProcessHandle) userCommandLine() (string, bool) {
	var returnLength uint32
	// First call sizes the buffer
	err := windows.NtQueryInformationProcess(p.handle, processCommandLineInformation,
		nil, 0, &returnLength)
	if err != statusInfoLengthMismatch && err != statusBufferTooSmall && err != statusBufferOverflow {
		if err != nil {
			return "", false
		}
	}
	if returnLength == 0 || returnLength > 0x10000 {
		return "", false
	}
	buffer := make([]byte, returnLength)
	err = windows.NtQueryInformationProcess(p.handle, processCommandLineInformation,
		unsafe.Pointer(&buffer[0]), returnLength, &returnLength)
	if err != nil {
		return "", false
	}
	ucmdline := (*windows.NTUnicodeString)(unsafe.Pointer(&buffer[0]))
	if ucmdline.Buffer == nil || ucmdline.Length == 0 {
		return "", false
	}
	// Someone could craft a process with dodgy attributes to cause an overflow
	length := int(ucmdline.Length) / 2
	if length > 512 {
		length = 512
	}
	chars := unsafe.Slice(ucmdline.Buffer, length)
	return windows.UTF16ToString(chars), true
}

func (h *systemOwnedHandle) Close() {
	windows.CloseHandle(h.handle)
}

// IsDiskHandle reports whether the duplicated handle refers to a disk file object.
// Everything else is skipped fast, since querying the name of some handle types (e.g.
// synchronous pipes) freezes the calling thread.
func (h *systemOwnedHandle) IsDiskHandle() bool {
	fileType, err := windows.GetFileType(h.handle)
	return err == nil && fileType == fileTypeDisk
}

// QueryName returns the kernel object name of the duplicated handle.  A loop is needed
// because the I/O subsystem likes to return the wrong lengths on the first try.
func (h *systemOwnedHandle) QueryName() (string, bool) {
	bufferSize := uint32(0x200)
	for attempts := 0; attempts < 8; attempts++ {
		buffer := make([]byte, bufferSize)
		var returnSize uint32
		status, _, _ := procNtQueryObject.Call(uintptr(h.handle), objectNameInformation,
			uintptr(unsafe.Pointer(&buffer[0])), uintptr(bufferSize),
			uintptr(unsafe.Pointer(&returnSize)))
		switch windows.NTStatus(status) {
		case statusSuccess:
			name := (*windows.NTUnicodeString)(unsafe.Pointer(&buffer[0]))
			if name.Buffer == nil || name.Length == 0 {
				return "", false
			}
			return windows.UTF16ToString(unsafe.Slice(name.Buffer, int(name.Length)/2)), true
		case statusBufferOverflow, statusInfoLengthMismatch, statusBufferTooSmall:
			if returnSize > bufferSize {
				bufferSize = returnSize
			} else {
				bufferSize *= 2
			}
		default:
			return "", false
		}
	}
	return "", false
}
