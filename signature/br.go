// (c) Copyright 2024 MediaForge Technologies LP

package signature

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/mediaforge/boot-host-libs/cerrors"
	log "github.com/mediaforge/boot-host-libs/logger"
)

var bootMarker = []byte{0x55, 0xaa}

// containsData reads len(ref) bytes at the given offset and reports whether they match.
// Read failures report as a non match; the caller decides whether that matters.
func containsData(r io.ReaderAt, offset int64, ref []byte) bool {
	buf := make([]byte, len(ref))
	if _, err := r.ReadAt(buf, offset); err != nil {
		return false
	}
	return bytes.Equal(buf, ref)
}

// writeData writes the given bytes at the given offset
func writeData(w io.WriterAt, offset int64, data []byte) error {
	if _, err := w.WriteAt(data, offset); err != nil {
		return cerrors.NewCoreError(cerrors.BadMedia, err)
	}
	return nil
}

// matchesSegments reports whether every declared template window matches
func matchesSegments(r io.ReaderAt, segments []segment) bool {
	for _, s := range segments {
		if !containsData(r, s.offset, s.data) {
			return false
		}
	}
	return true
}

// writeSegments writes every declared template window
func writeSegments(w io.WriterAt, segments []segment) error {
	for _, s := range segments {
		if err := writeData(w, s.offset, s.data); err != nil {
			return err
		}
	}
	return nil
}

// writeBootMarker writes the 55 AA marker at offset 0x1fe of every 512-byte unit through
// the device's sector size, so that 4K-native media carry the marker where firmware
// expects to find it.
func writeBootMarker(w io.WriterAt, sectorSize uint32) error {
	if sectorSize < 512 {
		sectorSize = 512
	}
	for pos := int64(bootMarkerOffset); pos < int64(sectorSize); pos += 0x200 {
		if err := writeData(w, pos, bootMarker); err != nil {
			return err
		}
	}
	return nil
}

// IsBootRecord reports whether the target carries the generic boot marker, replicated
// every 512 bytes through the sector size.
func IsBootRecord(r io.ReaderAt, sectorSize uint32) bool {
	if sectorSize < 512 {
		sectorSize = 512
	}
	for pos := int64(bootMarkerOffset); pos < int64(sectorSize); pos += 0x200 {
		if !containsData(r, pos, bootMarker) {
			return false
		}
	}
	return true
}

// IdentifyMBR probes the known master boot record templates in fixed order and returns
// the first match, or MbrUnknown.  An unknown record is not an error.
func IdentifyMBR(r io.ReaderAt, sectorSize uint32) MbrFlavor {
	hasBr := IsBootRecord(r, sectorSize)
	for _, probe := range mbrIdentify {
		if probe.needsBr && !hasBr {
			continue
		}
		if matchesSegments(r, probe.segments) {
			return probe.flavor
		}
	}
	return MbrUnknown
}

// WriteMBR writes the boot code template of the given flavor, then appends the boot
// marker.  The disk signature, copy protect bytes and partition entries are preserved
// (no template window covers them, except for the zeroed flavor which clears the whole
// boot area).
func WriteMBR(w io.WriterAt, sectorSize uint32, flavor MbrFlavor) error {
	segments, ok := mbrTemplates[flavor]
	if !ok {
		return cerrors.NewCoreErrorf(cerrors.InvalidArgument, "no MBR template for flavor %v", flavor)
	}
	if err := writeSegments(w, segments); err != nil {
		return err
	}
	return writeBootMarker(w, sectorSize)
}

// ReadDiskSignature returns the 32-bit MBR disk signature at offset 0x1b8
func ReadDiskSignature(r io.ReaderAt) (uint32, error) {
	buf := make([]byte, 4)
	if _, err := r.ReadAt(buf, diskSignatureOffset); err != nil {
		return 0, cerrors.NewCoreError(cerrors.BadMedia, err)
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// WriteDiskSignature writes the 32-bit MBR disk signature at offset 0x1b8
func WriteDiskSignature(w io.WriterAt, signature uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, signature)
	return writeData(w, diskSignatureOffset, buf)
}

// ReadCopyProtectBytes returns the copy protect word at offset 0x1bc.  A value of 0x5a5a
// marks a copy protected disk.
func ReadCopyProtectBytes(r io.ReaderAt) (uint16, error) {
	buf := make([]byte, 2)
	if _, err := r.ReadAt(buf, copyProtectOffset); err != nil {
		return 0xffff, cerrors.NewCoreError(cerrors.BadMedia, err)
	}
	return binary.LittleEndian.Uint16(buf), nil
}

// AnalyzeMBR logs the master boot record flavor of the target and reports whether the
// drive looks bootable
func AnalyzeMBR(r io.ReaderAt, sectorSize uint32, targetName string) bool {
	if !IsBootRecord(r, sectorSize) {
		log.Infof("%s does not have a Boot Marker", targetName)
		return false
	}
	if flavor := IdentifyMBR(r, sectorSize); flavor != MbrUnknown {
		log.Infof("%s has a %s Master Boot Record", targetName, flavor)
	} else {
		log.Infof("%s has an unknown Master Boot Record", targetName)
	}
	return true
}
