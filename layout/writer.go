// (c) Copyright 2024 MediaForge Technologies LP

package layout

import (
	"github.com/diskfs/go-diskfs/util"

	"github.com/mediaforge/boot-host-libs/cerrors"
	log "github.com/mediaforge/boot-host-libs/logger"
	"github.com/mediaforge/boot-host-libs/model"
)

// State tracks the per-drive progress of a layout operation.  Failure at any step aborts
// the operation; nothing on disk is rolled back, so anything past StateCleared leaves
// the drive in an indeterminate state until the operation completes.
type State int

const (
	StateIdle State = iota
	StatePlanned
	StateCleared
	StateLayoutWritten
	StateRefreshed
	StateMounted
	StateRefreshFailed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StatePlanned:
		return "Planned"
	case StateCleared:
		return "Cleared"
	case StateLayoutWritten:
		return "LayoutWritten"
	case StateRefreshed:
		return "Refreshed"
	case StateMounted:
		return "Mounted"
	case StateRefreshFailed:
		return "RefreshFailed"
	default:
		return "Failed"
	}
}

// Writer applies a layout plan to a target device
type Writer struct {
	state State
}

// NewWriter returns a Writer in the idle state
func NewWriter() *Writer {
	return &Writer{state: StateIdle}
}

// State returns the writer's current state
func (w *Writer) State() State {
	return w.state
}

func (w *Writer) fail(state State, err error) error {
	w.state = state
	return err
}

// clearPartition zeroes the first size bytes at the given offset.  This defeats the
// OS's cached view of the previous file system, which the layout-update call does not
// reliably invalidate.
func clearPartition(f util.File, offset uint64, size uint64) error {
	buffer := make([]byte, size)
	if _, err := f.WriteAt(buffer, int64(offset)); err != nil {
		return cerrors.NewCoreError(cerrors.BadMedia, err)
	}
	return nil
}

// clearPlannedPartitions zeroes the leading sectors of every planned partition offset,
// bounded by MaxSectorsToClear and by the partition size
func clearPlannedPartitions(f util.File, drive *model.DriveInfo, plan *model.LayoutPlan) error {
	sizeToClear := uint64(model.MaxSectorsToClear) * uint64(drive.SectorSize)
	for i := range plan.Partitions {
		p := &plan.Partitions[i]
		size := sizeToClear
		if p.Size < size {
			size = p.Size
		}
		if err := clearPartition(f, p.Offset, size); err != nil {
			log.Errorf("Could not zero %s: %v", p.Name, err)
			return err
		}
	}
	return nil
}

// WriteLayout zeroes the leading sectors of every planned partition, copies the
// UEFI:NTFS helper image when one is planned, and writes the partition table.  The
// caller is responsible for the OS refresh handshake afterwards.
func (w *Writer) WriteLayout(f util.File, drive *model.DriveInfo, plan *model.LayoutPlan) error {
	log.Tracef(">>>>> WriteLayout, drive=%d, style=%v", drive.Index, plan.Style)
	defer log.Trace("<<<<< WriteLayout")

	w.state = StatePlanned

	if err := clearPlannedPartitions(f, drive, plan); err != nil {
		return w.fail(StateFailed, err)
	}
	w.state = StateCleared

	// The helper image has to land on disk before the layout refresh makes the OS
	// re-read the partition table
	if plan.UefiNtfsIndex != -1 {
		helper := &plan.Partitions[plan.UefiNtfsIndex]
		log.Infof("Writing UEFI:NTFS data at offset %d", helper.Offset)
		if _, err := f.WriteAt(uefiNtfsImage, int64(helper.Offset)); err != nil {
			return w.fail(StateFailed, cerrors.NewCoreError(cerrors.BadMedia, err))
		}
	}

	if err := WriteTable(f, drive, plan); err != nil {
		return w.fail(StateFailed, err)
	}
	w.state = StateLayoutWritten
	return nil
}
