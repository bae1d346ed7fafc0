// (c) Copyright 2024 MediaForge Technologies LP

//go:build windows
// +build windows

// Package core wires the authoring components together for a front end: device
// registry, handle scanner, partition planner/writer, mount controller and persistent
// settings.  One Core serves one front end; operations on the same drive are
// serialized, operations on different drives may run concurrently.
package core

import (
	"fmt"
	"os"

	"github.com/mediaforge/boot-host-libs/cerrors"
	"github.com/mediaforge/boot-host-libs/concurrent"
	"github.com/mediaforge/boot-host-libs/handlescan"
	"github.com/mediaforge/boot-host-libs/layout"
	log "github.com/mediaforge/boot-host-libs/logger"
	"github.com/mediaforge/boot-host-libs/model"
	"github.com/mediaforge/boot-host-libs/mount"
	"github.com/mediaforge/boot-host-libs/registry"
	"github.com/mediaforge/boot-host-libs/settings"
	"github.com/mediaforge/boot-host-libs/signature"
)

// Core owns the long-lived pieces of the authoring stack
type Core struct {
	Registry *registry.Registry
	Mount    *mount.Controller
	Scanner  *handlescan.Scanner
	Settings *settings.Store

	driveLocks *concurrent.MapMutex
}

// New starts the authoring core: the handle scanner thread is launched (sleeping until
// a drive is selected) and the settings store is loaded.  Debug privilege elevation is
// attempted so the scanner can open more processes; failure only narrows the results.
func New(settingsPath string) (*Core, error) {
	store, err := settings.NewStore(settingsPath)
	if err != nil {
		return nil, cerrors.NewCoreError(cerrors.Internal, err)
	}

	handlescan.EnableDebugPrivilege()
	scanner := handlescan.NewSystemScanner()
	scanner.Start()

	reg := registry.New(scanner)
	return &Core{
		Registry:   reg,
		Mount:      mount.NewController(reg),
		Scanner:    scanner,
		Settings:   store,
		driveLocks: concurrent.NewMapMutex(),
	}, nil
}

// Close stops the background scanner
func (c *Core) Close() {
	c.Scanner.Stop()
}

func driveLockName(driveIndex uint32) string {
	return fmt.Sprintf("drive-%d", driveIndex)
}

// SelectDrive points the handle scanner at the given drive, so blocking-process
// information is already warm by the time an operation needs exclusive access
func (c *Core) SelectDrive(driveIndex uint32) error {
	names, err := c.Registry.HandleNames(driveIndex)
	if err != nil {
		return err
	}
	c.Scanner.Arm(names)
	return nil
}

// FormatRequest describes one authoring operation on a drive
type FormatRequest struct {
	DriveIndex uint32
	Plan       layout.PlanConfig

	// PbrFlavor selects the partition boot record written onto the main partition;
	// PbrUnknown skips the boot record write (data-only drives).
	PbrFlavor signature.PbrFlavor

	// KeepLabel preserves the existing 11-byte label inside the boot record
	KeepLabel bool

	// MbrFlavor selects the master boot record boot code (MBR style only);
	// MbrUnknown skips it.
	MbrFlavor signature.MbrFlavor

	// AllowHdd overrides the safety refusal for devices that score as hard disks
	AllowHdd bool
}

// Format partitions the drive per the request and writes the requested boot records.
// The operation refuses HDD-scored devices unless explicitly overridden, aborts on the
// first failure and rolls back nothing: a failed run leaves the drive in an
// indeterminate state that the front end must surface.
func (c *Core) Format(req FormatRequest) error {
	log.Tracef(">>>>> Format, driveIndex=%v", req.DriveIndex)
	defer log.Trace("<<<<< Format")

	c.driveLocks.Lock(driveLockName(req.DriveIndex))
	defer c.driveLocks.Unlock(driveLockName(req.DriveIndex))

	drive, err := c.Registry.Query(req.DriveIndex)
	if err != nil {
		return err
	}
	if drive.IsHDD() && !req.AllowHdd {
		return cerrors.NewCoreErrorf(cerrors.AccessDenied,
			"drive %d scores as a hard disk (score %d); refusing without an explicit override",
			drive.Index, drive.HddScore)
	}

	if err := c.SelectDrive(req.DriveIndex); err != nil {
		return err
	}

	plan, err := layout.Plan(drive, req.Plan, layout.UefiNtfsImageSize())
	if err != nil {
		return err
	}

	// Dropping the drive letters before the rewrite keeps the shell from probing the
	// half-written device
	c.Mount.RemoveDriveLetters(req.DriveIndex, false)

	writer := layout.NewWriter()
	if err := writer.Apply(c.Registry, drive, plan); err != nil {
		return err
	}

	if req.MbrFlavor != signature.MbrUnknown && plan.Style == model.PartitionStyleMbr {
		if err := c.writeMasterBootRecord(drive, req.MbrFlavor); err != nil {
			return err
		}
	}
	if req.PbrFlavor != signature.PbrUnknown {
		if err := c.writePartitionBootRecord(drive, plan, req.PbrFlavor, req.KeepLabel); err != nil {
			return err
		}
	}

	// Hand the finished main partition back to the OS
	return c.mountMain(req.DriveIndex, plan)
}

// writeMasterBootRecord writes the boot code template onto sector 0 of the device
func (c *Core) writeMasterBootRecord(drive *model.DriveInfo, flavor signature.MbrFlavor) error {
	handle, err := c.Registry.PhysicalHandle(drive.Index, false, true, true)
	if err != nil {
		return err
	}
	raw := os.NewFile(uintptr(handle), drive.PhysicalPath)
	defer raw.Close()

	signature.AnalyzeMBR(raw, drive.SectorSize, "Drive")
	return signature.WriteMBR(raw, drive.SectorSize, flavor)
}

// writePartitionBootRecord writes the file-system boot record onto the main partition
func (c *Core) writePartitionBootRecord(drive *model.DriveInfo, plan *model.LayoutPlan, flavor signature.PbrFlavor, keepLabel bool) error {
	handle, err := c.Registry.LogicalHandle(drive.Index, plan.Main().Offset, true, true, false)
	if err != nil {
		return err
	}
	raw := os.NewFile(uintptr(handle), "volume")
	defer raw.Close()

	return signature.WritePBR(raw, drive.SectorSize, flavor, keepLabel)
}

// mountMain mounts the plan's main partition at the next unused drive letter
func (c *Core) mountMain(driveIndex uint32, plan *model.LayoutPlan) error {
	volumeName, err := c.Registry.LogicalName(driveIndex, plan.Main().Offset, true)
	if err != nil {
		return err
	}
	letter := c.Mount.UnusedDriveLetter()
	if letter == 0 {
		return cerrors.NewCoreError(cerrors.NotFound, "could not find an unused drive letter")
	}
	return c.Mount.Mount(string(letter)+`:\`, volumeName)
}

// ToggleEsp flips the ESP at (or found on) the given drive between ESP and Basic Data,
// remembering the identity in the settings store so the flip is exactly reversible
func (c *Core) ToggleEsp(driveIndex uint32, partitionOffset uint64) error {
	c.driveLocks.Lock(driveLockName(driveIndex))
	defer c.driveLocks.Unlock(driveLockName(driveIndex))
	return layout.ToggleEsp(c.Registry, c.Settings, driveIndex, partitionOffset)
}

// BlockingProcesses reports who is holding the selected drive open
func (c *Core) BlockingProcesses(ignoreStale bool) (byte, []model.ProcessEntry) {
	return c.Scanner.GetBlocking(model.DriveAccessTimeout, 0x07, ignoreStale)
}
