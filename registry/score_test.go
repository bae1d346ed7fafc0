// (c) Copyright 2024 MediaForge Technologies LP

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHddScoreKnownDevices(t *testing.T) {
	tests := []struct {
		name      string
		vid, pid  uint16
		model     string
		sizeBytes uint64
		fixed     bool
		wantHdd   bool
	}{
		{
			// A SanDisk flash drive must never classify as HDD
			name:      "sandisk cruzer",
			vid:       0x0781,
			pid:       0x5567,
			model:     "SanDisk Cruzer",
			sizeBytes: 16 << 30,
			fixed:     false,
			wantHdd:   false,
		},
		{
			// A 1 TB Seagate external disk must classify as HDD even with a
			// VID:PID flash exception in the table
			name:      "seagate backup plus",
			vid:       0x0bc2,
			pid:       0x3312,
			model:     "Seagate Backup+",
			sizeBytes: 1 << 40,
			fixed:     true,
			wantHdd:   true,
		},
		{
			name:      "wdc passport",
			vid:       0x1058,
			pid:       0x0748,
			model:     "WDC WD10JMVW-11AJGS2",
			sizeBytes: 1 << 40,
			fixed:     true,
			wantHdd:   true,
		},
		{
			name:      "kingston datatraveler",
			vid:       0x0951,
			pid:       0x1666,
			model:     "Kingston DataTraveler 3.0",
			sizeBytes: 32 << 30,
			fixed:     false,
			wantHdd:   false,
		},
		{
			name:      "tiny drive is flash",
			vid:       0x0000,
			pid:       0x0000,
			model:     "Generic Storage Gadget",
			sizeBytes: 4 << 30,
			fixed:     false,
			wantHdd:   false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			score := HddScore(tc.vid, tc.pid, tc.model, tc.sizeBytes, tc.fixed)
			if tc.wantHdd {
				assert.Greater(t, score, 0, "score was %d", score)
			} else {
				assert.LessOrEqual(t, score, 0, "score was %d", score)
			}
		})
	}
}

func TestHddScoreDeterministic(t *testing.T) {
	first := HddScore(0x0bc2, 0x3312, "Seagate Backup+", 1<<40, true)
	for i := 0; i < 16; i++ {
		assert.Equal(t, first, HddScore(0x0bc2, 0x3312, "Seagate Backup+", 1<<40, true))
	}
}

func TestHddScoreComponents(t *testing.T) {
	// Size adjustments
	assert.Equal(t, 10, HddScore(0, 0, "", 600<<30, false)-HddScore(0, 0, "", 100<<30, false))
	assert.Equal(t, -10, HddScore(0, 0, "", 4<<30, false)-HddScore(0, 0, "", 100<<30, false))

	// Fixed media bonus
	assert.Equal(t, 3, HddScore(0, 0, "", 100<<30, true)-HddScore(0, 0, "", 100<<30, false))

	// Substring adjustments are cumulative and case sensitive
	base := HddScore(0, 0, "Vendor Device", 100<<30, false)
	assert.Equal(t, -10, HddScore(0, 0, "Vendor Flash Device", 100<<30, false)-base)
	assert.Equal(t, base, HddScore(0, 0, "Vendor FLASH Device", 100<<30, false))
}

func TestMatchModelPrefix(t *testing.T) {
	// '#' requires a digit right after the prefix
	assert.True(t, matchModelPrefix("ST3000DM001", "ST#"))
	assert.False(t, matchModelPrefix("STEC SSD", "ST#"))
	assert.False(t, matchModelPrefix("ST", "ST#"))

	// Prefix compare is case insensitive
	assert.True(t, matchModelPrefix("seagate expansion", "SEAGATE"))
	assert.True(t, matchModelPrefix("Hitachi HDS721010", "HITACHI"))
	assert.False(t, matchModelPrefix("HIT", "HITACHI"))
}
