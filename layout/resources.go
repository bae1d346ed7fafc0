// (c) Copyright 2024 MediaForge Technologies LP

package layout

import (
	_ "embed"
)

// uefiNtfsImage is the precompiled FAT helper image copied verbatim into the UEFI:NTFS
// partition.  It carries the NTFS UEFI driver that lets firmware chain-boot an NTFS
// main partition.
//
//go:embed resources/uefi-ntfs.img
var uefiNtfsImage []byte

// UefiNtfsImageSize returns the size of the embedded UEFI:NTFS helper image
func UefiNtfsImageSize() uint64 {
	return uint64(len(uefiNtfsImage))
}

// UefiNtfsImage returns the embedded UEFI:NTFS helper image
func UefiNtfsImage() []byte {
	return uefiNtfsImage
}
