// (c) Copyright 2024 MediaForge Technologies LP

// Package signature recognizes and emits the fixed binary templates used in master boot
// records, partition boot records and file system superblocks.
package signature

// MbrFlavor identifies a known master boot record family
type MbrFlavor int

const (
	MbrUnknown MbrFlavor = iota
	MbrDos
	MbrDosF2
	Mbr95B
	Mbr2000
	MbrVista
	MbrWin7
	MbrRufus
	MbrSyslinux
	MbrReactOS
	MbrKolibriOS
	MbrGrub4Dos
	MbrGrub2
	MbrSyslinuxGpt
	MbrZeroed
)

func (f MbrFlavor) String() string {
	switch f {
	case MbrDos:
		return "DOS/NT/95A"
	case MbrDosF2:
		return "DOS/NT/95A (F2)"
	case Mbr95B:
		return "Windows 95B/98/98SE/ME"
	case Mbr2000:
		return "Windows 2000/XP/2003"
	case MbrVista:
		return "Windows Vista"
	case MbrWin7:
		return "Windows 7"
	case MbrRufus:
		return "Rufus"
	case MbrSyslinux:
		return "Syslinux"
	case MbrReactOS:
		return "ReactOS"
	case MbrKolibriOS:
		return "KolibriOS"
	case MbrGrub4Dos:
		return "Grub4DOS"
	case MbrGrub2:
		return "Grub 2.0"
	case MbrSyslinuxGpt:
		return "Syslinux (GPT)"
	case MbrZeroed:
		return "Zeroed"
	default:
		return "Unknown"
	}
}

// PbrFlavor identifies a known partition boot record family
type PbrFlavor int

const (
	PbrUnknown PbrFlavor = iota
	PbrFat16Dos
	PbrFat16FreeDos
	PbrFat16ReactOS
	PbrFat32Dos
	PbrFat32Nt
	PbrFat32FreeDos
	PbrFat32ReactOS
	PbrFat32KolibriOS
	PbrNtfs
)

func (f PbrFlavor) String() string {
	switch f {
	case PbrFat16Dos:
		return "FAT16 DOS"
	case PbrFat16FreeDos:
		return "FAT16 FreeDOS"
	case PbrFat16ReactOS:
		return "FAT16 ReactOS"
	case PbrFat32Dos:
		return "FAT32 DOS"
	case PbrFat32Nt:
		return "FAT32 NT"
	case PbrFat32FreeDos:
		return "FAT32 FreeDOS"
	case PbrFat32ReactOS:
		return "FAT32 ReactOS"
	case PbrFat32KolibriOS:
		return "FAT32 KolibriOS"
	case PbrNtfs:
		return "NTFS"
	default:
		return "Unknown"
	}
}

// segment is one (offset, bytes) window of a boot record template.  Matching compares
// only the declared windows and writing writes only the declared windows; the BIOS
// Parameter Block region between them is never touched.
type segment struct {
	offset int64
	data   []byte
}

// Boot record well-known offsets
const (
	bootMarkerOffset   = 0x1fe
	diskSignatureOffset = 0x1b8
	copyProtectOffset  = 0x1bc
	fat16LabelOffset   = 0x2b
	fat32LabelOffset   = 0x47
	labelLength        = 11
)

// defaultLabel is written into the PBR label window when the caller does not ask for the
// existing label to be preserved.
var defaultLabel = []byte("NO NAME    ")

///////////////////////////////////////////////////////////////////////////////////////////////////
// Master boot record templates
//
// Each template is the language independent window of the loader's boot code.  The
// partition entries at 0x1be and the boot marker are outside every window; the disk
// signature at 0x1b8 is outside every window except the zeroed template's.
///////////////////////////////////////////////////////////////////////////////////////////////////

var mbrDos = []segment{
	{0x0, []byte{
		0x33, 0xc0, 0x8e, 0xd0, 0xbc, 0x00, 0x7c, 0xfb, 0x50, 0x07, 0x50, 0x1f, 0xfc, 0xbe, 0x1b, 0x7c,
		0xbf, 0x1b, 0x06, 0x50, 0x57, 0xb9, 0xe5, 0x01, 0xf3, 0xa4, 0xcb, 0xbd, 0xbe, 0x07, 0xb1, 0x04,
		0x38, 0x6e, 0x00, 0x7c, 0x09, 0x75, 0x13, 0x83, 0xc5, 0x10, 0xe2, 0xf4, 0xcd, 0x18, 0x8b, 0xf5,
		0x83, 0xc6, 0x10, 0x49, 0x74, 0x19, 0x38, 0x2c, 0x74, 0xf6, 0xa0, 0xb5, 0x07, 0xb4, 0x07, 0x8b,
	}},
}

var mbrDosF2 = []segment{
	{0x0, []byte{
		0x33, 0xc0, 0xfa, 0x8e, 0xd0, 0xbc, 0x00, 0x7c, 0xfb, 0x50, 0x07, 0x50, 0x1f, 0xfc, 0xbe, 0x1b,
		0x7c, 0xbf, 0x1b, 0x06, 0x50, 0x57, 0xb9, 0xe5, 0x01, 0xf3, 0xa4, 0xcb, 0xbd, 0xbe, 0x07, 0xb1,
		0x04, 0x38, 0x6e, 0x00, 0x7c, 0x09, 0x75, 0x13, 0x83, 0xc5, 0x10, 0xe2, 0xf4, 0xcd, 0x18, 0x8b,
		0xf5, 0x83, 0xc6, 0x10, 0x49, 0x74, 0x19, 0x38, 0x2c, 0x74, 0xf6, 0xa0, 0xb5, 0x07, 0xb4, 0x07,
	}},
}

var mbr95B = []segment{
	{0x0, []byte{
		0xfa, 0x33, 0xc0, 0x8e, 0xd0, 0xbc, 0x00, 0x7c, 0xfb, 0x50, 0x07, 0x50, 0x1f, 0xfc, 0xbe, 0x1b,
		0x7c, 0xbf, 0x1b, 0x06, 0x50, 0x57, 0xb9, 0xe5, 0x01, 0xf3, 0xa4, 0xcb, 0xbe, 0xbe, 0x07, 0xb1,
		0x04, 0x38, 0x2c, 0x7c, 0x09, 0x75, 0x15, 0x83, 0xc6, 0x10, 0xe2, 0xf5, 0xcd, 0x18, 0x8b, 0x14,
	}},
	{0xe0, []byte{
		0x8a, 0x74, 0x01, 0x8b, 0x4c, 0x02, 0xcd, 0x13, 0xea, 0x00, 0x7c, 0x00, 0x00, 0xeb, 0xfe, 0x5e,
		0xac, 0xb4, 0x0e, 0xbb, 0x07, 0x00, 0xcd, 0x10, 0x3c, 0x00, 0x75, 0xf4, 0xc3, 0x00, 0x00, 0x00,
	}},
}

var mbr2000 = []segment{
	{0x0, []byte{
		0xfa, 0x33, 0xc0, 0x8e, 0xd0, 0xbc, 0x00, 0x7c, 0x8b, 0xf4, 0x50, 0x07, 0x50, 0x1f, 0xfb, 0xfc,
		0xbf, 0x00, 0x06, 0xb9, 0x00, 0x01, 0xf2, 0xa5, 0xea, 0x1d, 0x06, 0x00, 0x00, 0xbe, 0xbe, 0x07,
		0xb1, 0x04, 0x80, 0x3c, 0x80, 0x74, 0x0e, 0x80, 0x3c, 0x00, 0x75, 0x1c, 0x83, 0xc6, 0x10, 0xfe,
		0xc9, 0x75, 0xef, 0xcd, 0x18, 0x8b, 0x14, 0x8b, 0x4c, 0x02, 0x8b, 0xee, 0x83, 0xc6, 0x10, 0xfe,
	}},
}

var mbrVista = []segment{
	{0x0, []byte{
		0x33, 0xc0, 0x8e, 0xd0, 0xbc, 0x00, 0x7c, 0x8e, 0xc0, 0x8e, 0xd8, 0xbe, 0x00, 0x7c, 0xbf, 0x00,
		0x06, 0xb9, 0x00, 0x02, 0xfc, 0xf3, 0xa4, 0x50, 0x68, 0x1c, 0x06, 0xcb, 0xfb, 0xb9, 0x04, 0x00,
		0xbd, 0xbe, 0x07, 0x80, 0x7e, 0x00, 0x00, 0x7c, 0x0b, 0x0f, 0x85, 0x10, 0x01, 0x83, 0xc5, 0x10,
		0xe2, 0xf1, 0xcd, 0x18, 0x88, 0x56, 0x00, 0x55, 0xc6, 0x46, 0x11, 0x05, 0xc6, 0x46, 0x10, 0x00,
	}},
}

var mbrWin7 = []segment{
	{0x0, []byte{
		0x33, 0xc0, 0x8e, 0xd0, 0xbc, 0x00, 0x7c, 0x8e, 0xc0, 0x8e, 0xd8, 0xbe, 0x00, 0x7c, 0xbf, 0x00,
		0x06, 0xb9, 0x00, 0x02, 0xfc, 0xf3, 0xa4, 0x50, 0x68, 0x1c, 0x06, 0xcb, 0xfb, 0xb9, 0x04, 0x00,
		0xbd, 0xbe, 0x07, 0x80, 0x7e, 0x00, 0x00, 0x7c, 0x0b, 0x0f, 0x85, 0x0e, 0x01, 0x83, 0xc5, 0x10,
		0xe2, 0xf1, 0xcd, 0x18, 0x88, 0x56, 0x00, 0x55, 0xc6, 0x46, 0x11, 0x05, 0xc6, 0x46, 0x10, 0x00,
	}},
}

var mbrRufus = []segment{
	{0x0, []byte{
		0xfa, 0x33, 0xc0, 0x8e, 0xd0, 0xbc, 0x00, 0x7c, 0x8b, 0xf4, 0x50, 0x07, 0x50, 0x1f, 0xfb, 0xfc,
		0xbf, 0x00, 0x06, 0xb9, 0x00, 0x01, 0xf2, 0xa5, 0xea, 0x1d, 0x06, 0x00, 0x00, 0xbe, 0xbe, 0x07,
		0xb1, 0x04, 0x80, 0x3c, 0x80, 0x74, 0x0e, 0x80, 0x3c, 0x00, 0x75, 0x1c, 0x83, 0xc6, 0x10, 0xfe,
		0xc9, 0x75, 0xef, 0xcd, 0x18, 0x72, 0x75, 0x66, 0x75, 0x73, 0x8b, 0x4c, 0x02, 0x8b, 0xee, 0xfe,
	}},
}

var mbrSyslinux = []segment{
	{0x0, []byte{
		0x33, 0xc0, 0xfa, 0x8e, 0xd8, 0x8e, 0xd0, 0xbc, 0x00, 0x7c, 0x89, 0xe6, 0x06, 0x57, 0x8e, 0xc0,
		0xfb, 0xfc, 0xbf, 0x00, 0x06, 0xb9, 0x00, 0x01, 0xf3, 0xa5, 0xea, 0x1f, 0x06, 0x00, 0x00, 0x52,
		0x52, 0xb4, 0x41, 0xbb, 0xaa, 0x55, 0x31, 0xc9, 0x30, 0xf6, 0xf9, 0xcd, 0x13, 0x72, 0x13, 0x81,
		0xfb, 0x55, 0xaa, 0x75, 0x0d, 0xd1, 0xe9, 0x73, 0x09, 0x66, 0xc7, 0x06, 0x8d, 0x06, 0xb4, 0x42,
	}},
}

var mbrReactOS = []segment{
	{0x0, []byte{
		0xfa, 0x33, 0xc9, 0x8e, 0xd9, 0x8e, 0xc1, 0x8e, 0xd1, 0xbc, 0x00, 0x7c, 0xfb, 0xfc, 0xbe, 0x00,
		0x7c, 0xbf, 0x00, 0x06, 0xb9, 0x00, 0x02, 0xf3, 0xa4, 0xea, 0x19, 0x06, 0x00, 0x00, 0xbe, 0xbe,
		0x07, 0xb9, 0x04, 0x00, 0x80, 0x3c, 0x80, 0x74, 0x0b, 0x80, 0x3c, 0x00, 0x75, 0x2e, 0x83, 0xc6,
		0x10, 0xe2, 0xf1, 0xcd, 0x18, 0x8b, 0x14, 0x8b, 0xee, 0x8b, 0x4c, 0x02, 0x83, 0xc6, 0x10, 0x49,
	}},
}

var mbrKolibriOS = []segment{
	{0x0, []byte{
		0xfa, 0x31, 0xc0, 0x8e, 0xd0, 0xbc, 0x00, 0x7c, 0xfb, 0x0e, 0x07, 0x0e, 0x1f, 0xfc, 0xbe, 0x00,
		0x7c, 0xbf, 0x00, 0x06, 0xb9, 0x00, 0x02, 0xf3, 0xa4, 0xea, 0x1e, 0x06, 0x00, 0x00, 0x4b, 0x6f,
		0x6c, 0x69, 0x62, 0x72, 0x69, 0x4f, 0x53, 0x00, 0xbe, 0xbe, 0x07, 0xb9, 0x04, 0x00, 0x80, 0x3c,
		0x80, 0x74, 0x0a, 0x83, 0xc6, 0x10, 0xe2, 0xf6, 0xcd, 0x18, 0x8b, 0x14, 0x8b, 0x4c, 0x02, 0xeb,
	}},
}

var mbrGrub4Dos = []segment{
	{0x0, []byte{
		0xeb, 0x3e, 0x90, 0x47, 0x52, 0x4c, 0x44, 0x52, 0x00, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff,
		0xff, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xfa, 0x90,
	}},
}

var mbrGrub2 = []segment{
	{0x0, []byte{
		0xeb, 0x63, 0x90, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x03, 0x02, 0xff, 0x00,
	}},
}

var mbrSyslinuxGpt = []segment{
	{0x0, []byte{
		0x33, 0xc0, 0xfa, 0x8e, 0xd8, 0x8e, 0xd0, 0xbc, 0x00, 0x7c, 0x89, 0xe6, 0x06, 0x57, 0x8e, 0xc0,
		0xfb, 0xfc, 0xbf, 0x00, 0x06, 0xb9, 0x00, 0x01, 0xf3, 0xa5, 0xea, 0x1f, 0x06, 0x00, 0x00, 0x52,
		0xb4, 0x41, 0xbb, 0xaa, 0x55, 0x31, 0xc9, 0x30, 0xf6, 0xf9, 0xcd, 0x13, 0x72, 0x16, 0x81, 0xfb,
		0x55, 0xaa, 0x75, 0x10, 0x83, 0xe1, 0x01, 0x74, 0x0b, 0x66, 0xc7, 0x06, 0xf1, 0x06, 0xb4, 0x42,
	}},
}

// mbrZeroed covers the full boot code, disk signature and copy protect bytes.  When
// identifying, only the boot code region (up to 0x1b8) is compared so a zeroed drive with
// a disk signature still reports as zeroed.
var mbrZeroed = []segment{
	{0x0, make([]byte, 0x1be)},
}

// mbrIdentify lists the MBR probes in the order they are tried.  The first match wins.
var mbrIdentify = []struct {
	flavor   MbrFlavor
	segments []segment
	needsBr  bool
}{
	{MbrDos, mbrDos, true},
	{MbrDosF2, mbrDosF2, true},
	{Mbr95B, mbr95B, true},
	{Mbr2000, mbr2000, true},
	{MbrVista, mbrVista, true},
	{MbrWin7, mbrWin7, true},
	{MbrRufus, mbrRufus, true},
	{MbrSyslinux, mbrSyslinux, true},
	{MbrReactOS, mbrReactOS, true},
	{MbrKolibriOS, mbrKolibriOS, true},
	{MbrGrub4Dos, mbrGrub4Dos, true},
	{MbrGrub2, mbrGrub2, true},
	{MbrSyslinuxGpt, mbrSyslinuxGpt, true},
	{MbrZeroed, []segment{{0x0, make([]byte, 0x1b8)}}, false},
}

// mbrTemplates maps each writable flavor to its template segments
var mbrTemplates = map[MbrFlavor][]segment{
	MbrDos:         mbrDos,
	MbrDosF2:       mbrDosF2,
	Mbr95B:         mbr95B,
	Mbr2000:        mbr2000,
	MbrVista:       mbrVista,
	MbrWin7:        mbrWin7,
	MbrRufus:       mbrRufus,
	MbrSyslinux:    mbrSyslinux,
	MbrReactOS:     mbrReactOS,
	MbrKolibriOS:   mbrKolibriOS,
	MbrGrub4Dos:    mbrGrub4Dos,
	MbrGrub2:       mbrGrub2,
	MbrSyslinuxGpt: mbrSyslinuxGpt,
	MbrZeroed:      mbrZeroed,
}

///////////////////////////////////////////////////////////////////////////////////////////////////
// Partition boot record templates
//
// FAT16 templates declare windows at 0x0 and 0x3e, FAT32 templates at 0x0, 0x52 and 0x3f0,
// NTFS at 0x0 and 0x54.  The label window (0x2b for FAT16, 0x47 for FAT32) is separate and
// only written when the caller does not preserve the existing label.
///////////////////////////////////////////////////////////////////////////////////////////////////

// Shared FAT16 jump + OEM name window
var pbrFat16Head = []byte{0xeb, 0x3c, 0x90, 'M', 'S', 'W', 'I', 'N', '4', '.', '1'}

// Shared FAT32 jump + OEM name window
var pbrFat32Head = []byte{0xeb, 0x58, 0x90, 'M', 'S', 'W', 'I', 'N', '4', '.', '1'}

// NTFS jump + OEM name window
var pbrNtfsHead = []byte{0xeb, 0x52, 0x90, 'N', 'T', 'F', 'S', ' ', ' ', ' ', ' '}

var pbrFat16DosBoot = []byte{
	0x33, 0xc9, 0x8e, 0xd1, 0xbc, 0xfc, 0x7b, 0x16, 0x07, 0xbd, 0x78, 0x00, 0xc5, 0x76, 0x00, 0x1e,
	0x56, 0x16, 0x55, 0xbf, 0x22, 0x05, 0x89, 0x7e, 0x00, 0x89, 0x4e, 0x02, 0xb1, 0x0b, 0xfc, 0xf3,
	0xa4, 0x06, 0x1f, 0xbd, 0x00, 0x7c, 0xc6, 0x45, 0xfe, 0x0f, 0x38, 0x4e, 0x24, 0x7d, 0x20, 0x8b,
	0xc1, 0x99, 0xe8, 0x7e, 0x01, 0x83, 0xeb, 0x3a, 0x66, 0xa1, 0x1c, 0x7c, 0x66, 0x3b, 0x07, 0x8a,
}

var pbrFat16FreeDosBoot = []byte{
	0xfa, 0x31, 0xc0, 0x8e, 0xd8, 0xbd, 0x00, 0x7c, 0xb8, 0xe0, 0x1f, 0x8e, 0xc0, 0x89, 0xee, 0x89,
	0xef, 0xb9, 0x00, 0x01, 0xf3, 0xa5, 0xea, 0x5e, 0x7c, 0xe0, 0x1f, 0x00, 0x00, 0x60, 0x00, 0x26,
	0x66, 0x8b, 0x47, 0x1c, 0x66, 0x03, 0x06, 0x5c, 0x7c, 0x66, 0x3d, 0x00, 0x00, 0x10, 0x00, 0x72,
	0x03, 0xe9, 0x87, 0x00, 0xbb, 0x78, 0x00, 0x36, 0x8b, 0x37, 0x36, 0x8b, 0x7f, 0x02, 0xfd, 0x45,
}

var pbrFat16ReactOSBoot = []byte{
	0xfa, 0x33, 0xc9, 0x8e, 0xd1, 0xbc, 0x00, 0x7c, 0x16, 0x07, 0xbd, 0x78, 0x00, 0xc5, 0x76, 0x00,
	0x1e, 0x56, 0x16, 0x55, 0xbf, 0x22, 0x05, 0x89, 0x7e, 0x00, 0x89, 0x4e, 0x02, 0xb1, 0x0b, 0xfc,
	0xf3, 0xa4, 0x06, 0x1f, 0xbd, 0x00, 0x7c, 0xfb, 0xc6, 0x45, 0xfe, 0x0f, 0x8b, 0x46, 0x18, 0xa3,
	0x7d, 0x7d, 0x8b, 0x46, 0x1a, 0xa3, 0x7f, 0x7d, 0x8b, 0x46, 0x08, 0xa3, 0x81, 0x7d, 0x8b, 0x46,
}

var pbrFat32DosBoot = []byte{
	0x33, 0xc9, 0x8e, 0xd1, 0xbc, 0xf4, 0x7b, 0x8e, 0xc1, 0x8e, 0xd9, 0xbd, 0x00, 0x7c, 0x88, 0x4e,
	0x02, 0x8a, 0x56, 0x40, 0xb4, 0x08, 0xcd, 0x13, 0x73, 0x05, 0xb9, 0xff, 0xff, 0x8a, 0xf1, 0x66,
	0x0f, 0xb6, 0xc6, 0x40, 0x66, 0x0f, 0xb6, 0xd1, 0x80, 0xe2, 0x3f, 0xf7, 0xe2, 0x86, 0xcd, 0xc0,
	0xed, 0x06, 0x41, 0x66, 0x0f, 0xb7, 0xc9, 0x66, 0xf7, 0xe1, 0x66, 0x89, 0x46, 0xf8, 0x83, 0x7e,
}

var pbrFat32NtBoot = []byte{
	0x33, 0xc9, 0x8e, 0xd1, 0xbc, 0xf4, 0x7b, 0x8e, 0xc1, 0x8e, 0xd9, 0xbd, 0x00, 0x7c, 0x88, 0x56,
	0x40, 0x88, 0x4e, 0x02, 0x8a, 0x56, 0x40, 0xb4, 0x41, 0xbb, 0xaa, 0x55, 0xcd, 0x13, 0x72, 0x10,
	0x81, 0xfb, 0x55, 0xaa, 0x75, 0x0a, 0xf6, 0xc1, 0x01, 0x74, 0x05, 0xfe, 0x46, 0x02, 0xeb, 0x2d,
	0x8a, 0x56, 0x40, 0xb4, 0x08, 0xcd, 0x13, 0x73, 0x05, 0xb9, 0xff, 0xff, 0x8a, 0xf1, 0x66, 0x0f,
}

var pbrFat32FreeDosBoot = []byte{
	0xfa, 0xfc, 0x31, 0xc9, 0x8e, 0xd1, 0xbc, 0x76, 0x7b, 0x52, 0x06, 0x57, 0x1e, 0x56, 0x8e, 0xc1,
	0xb1, 0x26, 0xbf, 0x78, 0x7b, 0xf3, 0xa5, 0x8e, 0xd9, 0xbb, 0x78, 0x00, 0x0f, 0xb4, 0x37, 0x0f,
	0xa0, 0x56, 0x20, 0xd2, 0x78, 0x1b, 0x31, 0xc0, 0xb1, 0x06, 0x89, 0x3f, 0x89, 0x47, 0x02, 0xf3,
	0xaa, 0x8d, 0x7f, 0x44, 0xb1, 0x0b, 0xf3, 0xa4, 0x8d, 0x5f, 0x24, 0xc6, 0x07, 0x80, 0xc6, 0x47,
}

var pbrFat32ReactOSBoot = []byte{
	0xfa, 0x33, 0xc9, 0x8e, 0xd1, 0xbc, 0x00, 0x7c, 0xfb, 0x8e, 0xc1, 0x8e, 0xd9, 0xbd, 0x00, 0x7c,
	0x88, 0x56, 0x40, 0x89, 0x6e, 0xfc, 0xb8, 0x20, 0x00, 0xf7, 0x66, 0x11, 0x8b, 0x5e, 0x0b, 0x03,
	0xc3, 0x48, 0xf7, 0xf3, 0x03, 0x46, 0x1c, 0x13, 0x56, 0x1e, 0x0f, 0xb6, 0x5e, 0x10, 0xf7, 0x66,
	0x24, 0x03, 0xc8, 0x89, 0x4e, 0xf8, 0x89, 0x56, 0xfa, 0x8b, 0x46, 0x2c, 0x8b, 0x56, 0x2e, 0xeb,
}

var pbrFat32KolibriOSBoot = []byte{
	0xfa, 0x31, 0xc0, 0x8e, 0xd0, 0xbc, 0x00, 0x7c, 0x8e, 0xd8, 0x8e, 0xc0, 0xfb, 0xfc, 0x88, 0x56,
	0x40, 0xbe, 0x00, 0x7c, 0xbf, 0x00, 0x06, 0xb9, 0x00, 0x01, 0xf3, 0xa5, 0xea, 0x20, 0x06, 0x00,
	0x00, 0x4b, 0x6f, 0x6c, 0x69, 0x62, 0x72, 0x69, 0x8a, 0x56, 0x40, 0xb4, 0x08, 0xcd, 0x13, 0x73,
	0x05, 0xb9, 0xff, 0xff, 0x8a, 0xf1, 0x66, 0x0f, 0xb6, 0xc6, 0x40, 0x66, 0x0f, 0xb6, 0xd1, 0x80,
}

var pbrFat32ClusterInfo = []byte{
	0xac, 0x84, 0xc0, 0x74, 0x17, 0x3c, 0xff, 0x74, 0x09, 0xb4, 0x0e, 0xbb, 0x07, 0x00, 0xcd, 0x10,
}

var pbrNtfsBoot = []byte{
	0x33, 0xc0, 0x8e, 0xd0, 0xbc, 0x00, 0x7c, 0xfb, 0x68, 0xc0, 0x07, 0x1f, 0x1e, 0x68, 0x66, 0x00,
	0xcb, 0x88, 0x16, 0x0e, 0x00, 0x66, 0x81, 0x3e, 0x03, 0x00, 0x4e, 0x54, 0x46, 0x53, 0x75, 0x15,
	0xb4, 0x41, 0xbb, 0xaa, 0x55, 0xcd, 0x13, 0x72, 0x0c, 0x81, 0xfb, 0x55, 0xaa, 0x75, 0x06, 0xf7,
	0xc1, 0x01, 0x00, 0x75, 0x03, 0xe9, 0xdd, 0x00, 0x1e, 0x83, 0xec, 0x18, 0x68, 0x1a, 0x00, 0xb4,
}

// pbrIdentify lists the PBR probes in the order they are tried
var pbrIdentify = []struct {
	flavor   PbrFlavor
	segments []segment
}{
	{PbrFat16Dos, []segment{{0x0, pbrFat16Head}, {0x3e, pbrFat16DosBoot}}},
	{PbrFat16FreeDos, []segment{{0x0, pbrFat16Head}, {0x3e, pbrFat16FreeDosBoot}}},
	{PbrFat16ReactOS, []segment{{0x0, pbrFat16Head}, {0x3e, pbrFat16ReactOSBoot}}},
	{PbrFat32Dos, []segment{{0x0, pbrFat32Head}, {0x52, pbrFat32DosBoot}, {0x3f0, pbrFat32ClusterInfo}}},
	{PbrFat32Nt, []segment{{0x0, pbrFat32Head}, {0x52, pbrFat32NtBoot}, {0x3f0, pbrFat32ClusterInfo}}},
	{PbrFat32FreeDos, []segment{{0x0, pbrFat32Head}, {0x52, pbrFat32FreeDosBoot}, {0x3f0, pbrFat32ClusterInfo}}},
	{PbrFat32ReactOS, []segment{{0x0, pbrFat32Head}, {0x52, pbrFat32ReactOSBoot}, {0x3f0, pbrFat32ClusterInfo}}},
	{PbrFat32KolibriOS, []segment{{0x0, pbrFat32Head}, {0x52, pbrFat32KolibriOSBoot}, {0x3f0, pbrFat32ClusterInfo}}},
	{PbrNtfs, []segment{{0x0, pbrNtfsHead}, {0x54, pbrNtfsBoot}}},
}

// pbrTemplates maps each writable flavor to its template segments
var pbrTemplates = map[PbrFlavor][]segment{}

// labelOffsets maps each PBR flavor to the byte offset of its 11-character label window
var labelOffsets = map[PbrFlavor]int64{
	PbrFat16Dos:       fat16LabelOffset,
	PbrFat16FreeDos:   fat16LabelOffset,
	PbrFat16ReactOS:   fat16LabelOffset,
	PbrFat32Dos:       fat32LabelOffset,
	PbrFat32Nt:        fat32LabelOffset,
	PbrFat32FreeDos:   fat32LabelOffset,
	PbrFat32ReactOS:   fat32LabelOffset,
	PbrFat32KolibriOS: fat32LabelOffset,
}

func init() {
	for _, probe := range pbrIdentify {
		pbrTemplates[probe.flavor] = probe.segments
	}
}
