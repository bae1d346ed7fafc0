// (c) Copyright 2024 MediaForge Technologies LP

//go:build windows
// +build windows

package layout

import (
	"bytes"
	"os"

	uuid "github.com/satori/go.uuid"

	"github.com/mediaforge/boot-host-libs/cerrors"
	log "github.com/mediaforge/boot-host-libs/logger"
	"github.com/mediaforge/boot-host-libs/model"
	"github.com/mediaforge/boot-host-libs/registry"
	"github.com/mediaforge/boot-host-libs/settings"
	"github.com/mediaforge/boot-host-libs/windows/ioctl"
)

// fatMbrTypes maps the FAT variant magic found in the EBPB to the MBR partition type a
// toggled-off ESP should get, so the host OS mounts it with the right driver
var fatMbrTypes = []struct {
	mbrType byte
	magic   []byte
}{
	{model.MbrTypeFat32, []byte("FAT     ")},
	{model.MbrTypeFat12, []byte("FAT12   ")},
	{model.MbrTypeFat16Lba, []byte("FAT16   ")},
	{model.MbrTypeFat32Lba, []byte("FAT32   ")},
}

// GetEspOffset returns the offset of the first ESP found on the drive, or 0 when the
// drive carries none
func GetEspOffset(reg *registry.Registry, driveIndex uint32) (uint64, error) {
	log.Tracef(">>>>> GetEspOffset, driveIndex=%v", driveIndex)
	defer log.Trace("<<<<< GetEspOffset")

	handle, err := reg.PhysicalHandle(driveIndex, false, true, true)
	if err != nil {
		return 0, err
	}
	raw := os.NewFile(uintptr(handle), model.PhysicalName(driveIndex))
	defer raw.Close()

	layout, err := ioctl.GetDriveLayout(handle)
	if err != nil {
		return 0, cerrors.NewCoreError(cerrors.NoDevice, err)
	}
	for i := uint32(0); i < layout.PartitionCount(); i++ {
		if isEspEntry(layout, i) {
			return uint64(layout.Partition(i).StartingOffset), nil
		}
	}
	return 0, nil
}

// isEspEntry reports whether layout entry i is an ESP (or MBR ESP equivalent)
func isEspEntry(layout *ioctl.DriveLayout, i uint32) bool {
	entry := layout.Partition(i)
	if layout.PartitionStyle() == ioctl.PARTITION_STYLE_MBR {
		return entry.Mbr().PartitionType == model.MbrTypeEsp
	}
	return uuid.Equal(ioctl.UUIDFromGuid(entry.Gpt().PartitionType), model.PartitionGenericEsp)
}

// espIdentity derives the GUID under which a toggled ESP is remembered.  GPT partitions
// have a unique partition GUID; for MBR the GUID is synthesized from the disk signature
// and the partition offset.
func espIdentity(layout *ioctl.DriveLayout, i uint32) uuid.UUID {
	entry := layout.Partition(i)
	if layout.PartitionStyle() == ioctl.PARTITION_STYLE_GPT {
		return ioctl.UUIDFromGuid(entry.Gpt().PartitionId)
	}
	var g ioctl.GUID
	g.Data1 = layout.Mbr().Signature
	offset := uint64(entry.StartingOffset)
	for j := 0; j < 8; j++ {
		g.Data4[j] = byte(offset >> (8 * j))
	}
	return ioctl.UUIDFromGuid(g)
}

// ToggleEsp converts an ESP in place to a Basic Data partition so the host OS will
// mount it, or back.  With partitionOffset zero the drive is searched: an existing ESP
// is toggled off (its type GUID remembered in a settings slot), otherwise a partition
// whose identity matches a stored slot is toggled back on.  With a non-zero offset that
// partition is forced back to an ESP.  Toggling twice restores the exact original
// state, including the settings slots.
func ToggleEsp(reg *registry.Registry, store *settings.Store, driveIndex uint32, partitionOffset uint64) error {
	log.Tracef(">>>>> ToggleEsp, driveIndex=%v, partitionOffset=%v", driveIndex, partitionOffset)
	defer log.Trace("<<<<< ToggleEsp")

	handle, err := reg.PhysicalHandle(driveIndex, false, true, true)
	if err != nil {
		return err
	}
	raw := os.NewFile(uintptr(handle), model.PhysicalName(driveIndex))
	defer raw.Close()

	layout, err := ioctl.GetDriveLayout(handle)
	if err != nil {
		return cerrors.NewCoreError(cerrors.NoDevice, err)
	}

	espIndex := int32(-1)
	clearSlot := 0
	toggledOff := false

	if partitionOffset == 0 {
		// See if the current drive contains an ESP
		for i := uint32(0); i < layout.PartitionCount(); i++ {
			if isEspEntry(layout, i) {
				espIndex = int32(i)
				break
			}
		}

		if espIndex >= 0 {
			// ESP -> Basic Data
			identity := espIdentity(layout, uint32(espIndex))
			if err := store.StoreEspGuid(identity); err != nil {
				return cerrors.NewCoreError(cerrors.Internal, "ESP toggling data could not be stored")
			}
			entry := layout.Partition(uint32(espIndex))
			if layout.PartitionStyle() == ioctl.PARTITION_STYLE_GPT {
				entry.Gpt().PartitionType = ioctl.GuidFromUUID(model.PartitionMicrosoftData)
			} else {
				// Default to FAT32 (non LBA) unless the EBPB pins the FAT variant down
				entry.Mbr().PartitionType = model.MbrTypeFat32
				buf := make([]byte, 512)
				if _, err := raw.ReadAt(buf, entry.StartingOffset); err == nil {
					for offset := 0x36; offset <= 0x52; offset += 0x1c {
						for _, fat := range fatMbrTypes {
							if bytes.Equal(buf[offset:offset+8], fat.magic) {
								entry.Mbr().PartitionType = fat.mbrType
							}
						}
					}
				}
			}
			toggledOff = true
		} else {
			// Basic Data -> ESP: find a partition whose identity is in a stored slot
			for slot := 1; slot <= model.MaxEspToggleSlots && espIndex < 0; slot++ {
				stored := store.EspGuid(slot)
				if uuid.Equal(stored, uuid.Nil) {
					continue
				}
				for i := uint32(0); i < layout.PartitionCount() && espIndex < 0; i++ {
					if uuid.Equal(espIdentity(layout, i), stored) {
						espIndex = int32(i)
						clearSlot = slot
						setEspType(layout, i)
					}
				}
			}
		}
	} else {
		// Explicit offset: force that partition back to an ESP
		for i := uint32(0); i < layout.PartitionCount(); i++ {
			if uint64(layout.Partition(i).StartingOffset) == partitionOffset {
				espIndex = int32(i)
				setEspType(layout, i)
				break
			}
		}
	}

	if espIndex < 0 {
		log.Info("No partition to toggle")
		return cerrors.NewCoreError(cerrors.NotFound, "no partition to toggle")
	}

	layout.Partition(uint32(espIndex)).RewritePartition = 1
	if err := ioctl.SetDriveLayout(handle, layout); err != nil {
		return cerrors.NewCoreError(cerrors.LayoutRefuses, err)
	}
	if err := ioctl.UpdateDiskProperties(handle); err != nil {
		log.Warnf("Could not refresh drive layout: %v", err)
	}

	if partitionOffset == 0 {
		if clearSlot != 0 {
			// Successfully reverted to an ESP: drop the stored identity
			if err := store.ClearEspGuid(clearSlot); err != nil {
				log.Warnf("Could not clear ESP toggle slot %d: %v", clearSlot, err)
			}
		} else if toggledOff {
			log.Infof("ESP at offset %d is now mountable as Basic Data",
				layout.Partition(uint32(espIndex)).StartingOffset)
		}
	}
	return nil
}

// setEspType switches layout entry i to the ESP partition type
func setEspType(layout *ioctl.DriveLayout, i uint32) {
	entry := layout.Partition(i)
	if layout.PartitionStyle() == ioctl.PARTITION_STYLE_GPT {
		entry.Gpt().PartitionType = ioctl.GuidFromUUID(model.PartitionGenericEsp)
	} else {
		entry.Mbr().PartitionType = model.MbrTypeEsp
	}
}
