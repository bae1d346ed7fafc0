// (c) Copyright 2024 MediaForge Technologies LP
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build windows
// +build windows

package windows

import (
	"os"
	"path/filepath"
	"syscall"
)

// Define additional error codes not defined by the src/syscall/types_windows.go module
// (or not defined in older Go versions)
const (
	ERROR_INVALID_PARAMETER syscall.Errno = 87   // The parameter is incorrect.
	ERROR_DIR_NOT_EMPTY     syscall.Errno = 145  // The directory is not empty.
	ERROR_TIMEOUT           syscall.Errno = 1460 // The operation returned because the timeout period expired.
)

// List of constants for the Windows platform
const (
	Platform = "windows"
)

// Windows paths
var (
	LogPath    string
	ToolHome   string
	ConfigHome string
)

// Initialize windows package paths
func init() {

	// Get the ProgramData location
	programData := os.Getenv("ProgramData")
	if programData == "" {
		programData = `C:\ProgramData`
	}

	// Initialize the package paths
	LogPath = filepath.Join(programData, `mediaforge\log`) + `\`   // e.g. C:\ProgramData\mediaforge\log\
	ToolHome = filepath.Join(programData, `mediaforge`) + `\`      // e.g. C:\ProgramData\mediaforge\
	ConfigHome = filepath.Join(ToolHome, `conf`) + `\`             // e.g. C:\ProgramData\mediaforge\conf\
}
