// (c) Copyright 2024 MediaForge Technologies LP

package signature

import (
	"io"

	"github.com/mediaforge/boot-host-libs/cerrors"
	log "github.com/mediaforge/boot-host-libs/logger"
)

// IsFat16BootRecord reports whether the target looks like a FAT16 partition boot record
func IsFat16BootRecord(r io.ReaderAt) bool {
	return containsData(r, bootMarkerOffset, bootMarker) &&
		containsData(r, 0x03, []byte("MSWIN4.1"))
}

// IsFat32BootRecord reports whether the target looks like a FAT32 partition boot record.
// FAT32 replicates the boot marker over the first three 512-byte sectors.
func IsFat32BootRecord(r io.ReaderAt) bool {
	for i := int64(0); i < 3; i++ {
		if !containsData(r, bootMarkerOffset+i*0x200, bootMarker) {
			return false
		}
	}
	return containsData(r, 0x03, []byte("MSWIN4.1"))
}

// IsNtfsBootRecord reports whether the target looks like an NTFS partition boot record
func IsNtfsBootRecord(r io.ReaderAt) bool {
	return containsData(r, bootMarkerOffset, bootMarker) &&
		containsData(r, 0x03, []byte("NTFS    "))
}

// IdentifyPBR probes the known partition boot record templates in fixed order and
// returns the first match, or PbrUnknown.  An unknown record is not an error.
func IdentifyPBR(r io.ReaderAt) PbrFlavor {
	if !containsData(r, bootMarkerOffset, bootMarker) {
		return PbrUnknown
	}
	for _, probe := range pbrIdentify {
		if matchesSegments(r, probe.segments) {
			return probe.flavor
		}
	}
	return PbrUnknown
}

// WritePBR writes the partition boot record template of the given flavor and appends the
// boot marker through the device's sector size.  When keepLabel is true, the 11-byte
// label window inside the record is left untouched; otherwise it is overwritten with the
// default label.  The BIOS Parameter Block region is never written.
func WritePBR(w io.WriterAt, sectorSize uint32, flavor PbrFlavor, keepLabel bool) error {
	segments, ok := pbrTemplates[flavor]
	if !ok {
		return cerrors.NewCoreErrorf(cerrors.InvalidArgument, "no PBR template for flavor %v", flavor)
	}
	if err := writeSegments(w, segments); err != nil {
		return err
	}
	if !keepLabel {
		if offset, ok := labelOffsets[flavor]; ok {
			if err := writeData(w, offset, defaultLabel); err != nil {
				return err
			}
		}
	}
	return writeBootMarker(w, sectorSize)
}

// ReadLabel returns the 11-character label stored in the boot record of the given flavor,
// or "" when the flavor carries no label window.
func ReadLabel(r io.ReaderAt, flavor PbrFlavor) (string, error) {
	offset, ok := labelOffsets[flavor]
	if !ok {
		return "", nil
	}
	buf := make([]byte, labelLength)
	if _, err := r.ReadAt(buf, offset); err != nil {
		return "", cerrors.NewCoreError(cerrors.BadMedia, err)
	}
	return string(buf), nil
}

// AnalyzePBR logs the partition boot record flavor of the target volume and reports
// whether it carries an x86 boot record
func AnalyzePBR(r io.ReaderAt) bool {
	const pbrName = "Partition Boot Record"
	if !containsData(r, bootMarkerOffset, bootMarker) {
		log.Infof("Volume does not have an x86 %s", pbrName)
		return false
	}
	if IsFat16BootRecord(r) || IsFat32BootRecord(r) || IsNtfsBootRecord(r) {
		if flavor := IdentifyPBR(r); flavor != PbrUnknown {
			log.Infof("Volume has a %s %s", flavor, pbrName)
			return true
		}
		log.Infof("Volume has an unknown FAT16, FAT32 or NTFS %s", pbrName)
	} else {
		log.Infof("Volume has an unknown %s", pbrName)
	}
	return true
}
