// (c) Copyright 2024 MediaForge Technologies LP

//go:build windows
// +build windows

package handlescan

import (
	"golang.org/x/sys/windows"

	log "github.com/mediaforge/boot-host-libs/logger"
)

// EnableDebugPrivilege enables SeDebugPrivilege on the current process token, so the
// scanner can open more processes.  Failure is non-fatal; fewer processes will simply
// be visible.
func EnableDebugPrivilege() bool {
	var token windows.Token
	err := windows.OpenProcessToken(windows.CurrentProcess(), windows.TOKEN_ADJUST_PRIVILEGES, &token)
	if err != nil {
		log.Infof("Could not open the process token: %v", err)
		return false
	}
	defer token.Close()

	var luid windows.LUID
	if err = windows.LookupPrivilegeValue(nil, windows.StringToUTF16Ptr("SeDebugPrivilege"), &luid); err != nil {
		log.Infof("Could not look up the debug privilege: %v", err)
		return false
	}

	privileges := windows.Tokenprivileges{
		PrivilegeCount: 1,
	}
	privileges.Privileges[0].Luid = luid
	privileges.Privileges[0].Attributes = windows.SE_PRIVILEGE_ENABLED

	if err = windows.AdjustTokenPrivileges(token, false, &privileges, 0, nil, nil); err != nil {
		log.Infof("Could not set process privileges: %v", err)
		return false
	}
	return true
}
