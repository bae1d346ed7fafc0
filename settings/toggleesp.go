// (c) Copyright 2024 MediaForge Technologies LP

package settings

import (
	"fmt"

	uuid "github.com/satori/go.uuid"

	"github.com/mediaforge/boot-host-libs/model"
)

// toggleEspKey builds the settings key of slot index (1-based)
func toggleEspKey(index int) string {
	return fmt.Sprintf("ToggleEsp%02d", index)
}

// StoreEspGuid remembers the partition GUID of an ESP that was switched to Basic Data,
// so the reverse operation is exact.  The first empty slot is used; when every slot is
// taken, the slots slide down and the newest entry lands in the last one.
func (s *Store) StoreEspGuid(guid uuid.UUID) error {
	// Look for an empty slot and use that if available
	for j := 1; j <= model.MaxEspToggleSlots; j++ {
		if s.GetString(toggleEspKey(j)) == "" {
			return s.SetString(toggleEspKey(j), guid.String())
		}
	}
	// All slots are used: move every key down and add to the last slot.  The slot
	// dropped is simply the first one, oldest or not.
	for j := 1; j < model.MaxEspToggleSlots; j++ {
		if err := s.SetString(toggleEspKey(j), s.GetString(toggleEspKey(j+1))); err != nil {
			return err
		}
	}
	return s.SetString(toggleEspKey(model.MaxEspToggleSlots), guid.String())
}

// EspGuid returns the GUID stored in slot index (1-based), or uuid.Nil when the slot is
// empty or unparsable
func (s *Store) EspGuid(index int) uuid.UUID {
	value := s.GetString(toggleEspKey(index))
	if value == "" {
		return uuid.Nil
	}
	guid, err := uuid.FromString(value)
	if err != nil {
		return uuid.Nil
	}
	return guid
}

// ClearEspGuid empties slot index (1-based)
func (s *Store) ClearEspGuid(index int) error {
	return s.SetString(toggleEspKey(index), "")
}

// FindEspGuid returns the slot index holding the given GUID, or 0 if absent
func (s *Store) FindEspGuid(guid uuid.UUID) int {
	for j := 1; j <= model.MaxEspToggleSlots; j++ {
		if uuid.Equal(s.EspGuid(j), guid) {
			return j
		}
	}
	return 0
}
