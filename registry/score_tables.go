// (c) Copyright 2024 MediaForge Technologies LP

package registry

// HDD versus flash-drive scoring tables.  A positive score means HDD, a negative one a
// flash drive; the higher the absolute value, the greater the probability.
//
// The string identifiers cover the usual rotational vendors and the usual flash vendors.
// '#' at the end of a name means any digit in [0-9] must follow the prefix.

type strScore struct {
	name  string
	score int
}

type vidScore struct {
	vid   uint16
	score int
}

type vidPidScore struct {
	vid   uint16
	pid   uint16
	score int
}

var strScores = []strScore{
	{"IC#", 10},
	{"ST#", 10},
	{"MX#", 10},
	{"WDC", 10},
	{"IBM", 10},
	{"STM#", 10},
	{"HDS#", 10},
	{"HDP#", 10},
	{"HDT#", 10},
	{"HTE#", 10},
	{"HTS#", 10},
	{"HUA#", 10},
	{"APPLE", 10},
	{"INTEL", 10},
	{"MAXTOR", 10},
	{"HITACHI", 10},
	{"SEAGATE", 10},
	{"SAMSUNG", 5},
	{"FUJITSU", 10},
	{"TOSHIBA", 5},
	{"QUANTUM", 10},
	{"EXCELSTOR", 10},
	{"CORSAIR", -15},
	{"KINGMAX", -15},
	{"KINGSTON", -15},
	{"LEXAR", -15},
	{"MUSHKIN", -15},
	{"PNY", -15},
	{"SANDISK", -15},
	{"TRANSCEND", -15},
}

var strAdjusts = []strScore{
	{"Gadget", -10},
	{"Flash", -10},
}

// vidScores sets a score according to the USB vendor ID.  Must be kept in increasing
// VID order.
var vidScores = []vidScore{
	{0x0011, -5},  // Kingston
	{0x03f0, -5},  // HP
	{0x0409, -10}, // NEC/Toshiba
	{0x0411, 5},   // Buffalo
	{0x0420, -5},  // Chipsbank
	{0x046d, -5},  // Logitech
	{0x0480, 5},   // Toshiba
	{0x048d, -5},  // ITE
	{0x04b4, 10},  // Cypress
	{0x04c5, 7},   // Fujitsu
	{0x04e8, 5},   // Samsung
	{0x04f3, -5},  // Elan
	{0x04fc, 5},   // Sunplus
	{0x056e, -5},  // Elecom
	{0x058f, -5},  // Alcor
	{0x059b, 7},   // Iomega
	{0x059f, 5},   // LaCie
	{0x05ab, 10},  // In-System Design
	{0x05dc, -5},  // Lexar
	{0x05e3, -5},  // Genesys Logic
	{0x067b, 7},   // Prolific
	{0x0718, -2},  // Imation
	{0x0781, -5},  // SanDisk
	{0x07ab, 8},   // Freecom
	{0x090c, -5},  // Silicon Motion (also used by Samsung)
	{0x0928, 10},  // PLX Technology
	{0x0930, -8},  // Toshiba
	{0x093a, -5},  // Pixart
	{0x0951, -5},  // Kingston
	{0x09da, -5},  // A4 Tech
	{0x0b27, -5},  // Ritek
	{0x0bc2, 10},  // Seagate
	{0x0c76, -5},  // JMTek
	{0x0cf2, -5},  // ENE
	{0x0d49, 10},  // Maxtor
	{0x0dc4, 10},  // Macpower Peripherals
	{0x1000, -5},  // Speed Tech
	{0x1002, -5},  // Hisun
	{0x1005, -5},  // Apacer
	{0x1043, -5},  // iCreate
	{0x1058, 10},  // Western Digital
	{0x1221, -5},  // Kingston (?)
	{0x125f, -5},  // Adata
	{0x12d1, -5},  // Huawei
	{0x1307, -5},  // USBest
	{0x13fd, 10},  // Initio
	{0x13fe, -5},  // Kingston
	{0x14cd, -5},  // Super Top
	{0x1516, -5},  // CompUSA
	{0x152d, 10},  // JMicron
	{0x1687, -5},  // Kingmax
	{0x174c, 3},   // ASMedia (also used by SanDisk)
	{0x1759, 8},   // LucidPort
	{0x18a5, -2},  // Verbatim
	{0x18ec, -5},  // Arkmicro
	{0x1908, -5},  // Ax216
	{0x1a4a, 10},  // Silicon Image
	{0x1b1c, -5},  // Corsair
	{0x1e3d, -5},  // Chipsbank
	{0x1f75, -2},  // Innostor
	{0x2001, -5},  // Micov
	{0x201e, -5},  // Evdo
	{0x2188, -5},  // SMI
	{0x3538, -5},  // PQI
	{0x413c, -5},  // Ameco
	{0x4971, 10},  // Hitachi
	{0x5136, -5},  // Skymedi
	{0x8564, -5},  // Transcend
	{0x8644, -5},  // NandTec
	{0xeeee, -5},  // ????
}

// vidPidScores overrides the VID table for specific devices.  Must be kept in increasing
// VID:PID order within each group.
var vidPidScores = []vidPidScore{
	{0x03f0, 0xbd07, 10}, // HP Desktop HD BD07
	{0x0402, 0x5621, 10}, // ALi M5621
	{0x040d, 0x6204, 10}, // Connectland BE-USB2-35BP-LCM
	{0x043e, 0x70f1, 10}, // LG Mini HXD5
	{0x0471, 0x2021, 10}, // Philips
	{0x05e3, 0x0718, 10}, // Genesys Logic IDE/SATA Adapter
	{0x05e3, 0x0719, 10}, // Genesys Logic SATA adapter
	{0x05e3, 0x0731, 10}, // Genesys Logic GL3310 SATA 3Gb/s Bridge Controller
	{0x0634, 0x0655, 5},  // Micron USB SSD
	{0x0718, 0x1000, 7},  // Imation Odyssey external USB dock
	{0x0939, 0x0b16, 10}, // Toshiba Stor.E
	{0x0c0b, 0xb001, 10}, // Dura Micro
	{0x0c0b, 0xb159, 10}, // Dura Micro 509
	{0x0e21, 0x0510, 5},  // Cowon iAudio X5
	{0x11b0, 0x6298, 10}, // Enclosure from Kingston SSDNow notebook upgrade kit
	{0x125f, 0xa93a, 10}, // A-DATA SH93
	{0x125f, 0xa94a, 10}, // A-DATA DashDrive
	{0x14cd, 0x6116, 10}, // Super Top generic enclosure
	{0x18a5, 0x0214, 10}, // Verbatim Portable Hard Drive
	{0x18a5, 0x0215, 10}, // Verbatim FW/USB160
	{0x18a5, 0x0216, 10}, // Verbatim External Hard Drive 47519
	{0x18a5, 0x0227, 10}, // Verbatim Pocket Hard Drive
	{0x18a5, 0x022a, 10}, // Verbatim External Hard Drive
	{0x18a5, 0x022b, 10}, // Verbatim Portable Hard Drive (Store'n'Go)
	{0x18a5, 0x0237, 10}, // Verbatim Portable Hard Drive (500 GB)
	{0x1bcf, 0x0c31, 10}, // SunplusIT
	{0x1f75, 0x0888, 10}, // Innostor IS888
	{0x3538, 0x0902, 10}, // PQI H560
	{0x55aa, 0x0015, 10}, // OnSpec Hard Drive
	{0x55aa, 0x0102, 8},  // OnSpec SuperDisk
	{0x55aa, 0x0103, 10}, // OnSpec IDE Hard Drive
	{0x55aa, 0x1234, 8},  // OnSpec ATAPI Bridge
	{0x55aa, 0x2b00, 8},  // OnSpec USB->PATA
	{0x6795, 0x2756, 2},  // Sharkoon 2-Bay RAID Box

	// Flash drive exceptions for vendors that mostly ship disks
	{0x0324, 0xbc06, -20}, // OCZ ATV USB 2.0 Flash Drive
	{0x0324, 0xbc08, -20}, // OCZ Rally2 / ATV USB 2.0 Flash Drive
	{0x0325, 0xac02, -20}, // OCZ ATV Turbo / Rally2 Dual Channel USB 2.0 Flash Drive
	{0x0411, 0x01e8, -20}, // Buffalo HD-PNTU2
	{0x04e8, 0x0100, -20}, // Kingston Flash Drive (128MB)
	{0x04e8, 0x0101, -20}, // Connect3D Flash Drive
	{0x04e8, 0x1a23, -20}, // 2 GB UFD
	{0x04e8, 0x5120, -20}, // 4 GB UFD
	{0x04e8, 0x6818, -20}, // 8 GB UFD
	{0x04e8, 0x6845, -20}, // 16 GB UFD
	{0x04e8, 0x685e, -20}, // 16 GB UFD
	{0x04fc, 0x05d8, -20}, // Verbatim Flash Drive
	{0x04fc, 0x5720, -20}, // Card Reader
	{0x059f, 0x1027, -20}, // 16 GB UFD
	{0x059f, 0x103b, -20}, // 16 GB UFD
	{0x059f, 0x1064, -20}, // 16 GB UFD
	{0x067b, 0x2506, -20}, // 8 GB Micro Hard Drive
	{0x067b, 0x2517, -20}, // 1 GB UFD
	{0x067b, 0x2528, -20}, // 8 GB UFD
	{0x067b, 0x2731, -20}, // SD/TF Card Reader
	{0x067b, 0x3400, -10}, // Hi-Speed Flash Disk with TruePrint AES3400
	{0x067b, 0x3500, -10}, // Hi-Speed Flash Disk with TruePrint AES3500
	{0x07ab, 0xfcab, -20}, // 4 GB UFD
	{0x090c, 0x1000, -20}, // Samsung Flash Drive
	{0x0930, 0x1400, -20}, // Toshiba UFD
	{0x0930, 0x6533, -20}, // Toshiba UFD
	{0x0930, 0x653e, -20}, // Toshiba UFD
	{0x0930, 0x6544, -20}, // Toshiba UFD
	{0x0930, 0x6545, -20}, // Toshiba UFD
	{0x0bc2, 0x3312, -20}, // Innostor UFD
	{0x18a5, 0x0243, -20}, // Verbatim UFD
	{0x18a5, 0x0245, -20}, // Verbatim UFD
	{0x18a5, 0x0302, -20}, // Verbatim UFD
	{0x18a5, 0x0304, -20}, // Verbatim UFD
	{0x18a5, 0x3327, -20}, // Verbatim UFD
	{0x1f75, 0x0917, -10}, // Intenso Speed Line USB Device
}
