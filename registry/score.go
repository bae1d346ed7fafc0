// (c) Copyright 2024 MediaForge Technologies LP

// Package registry enumerates, classifies and describes the physical block devices the
// authoring core may operate on.
package registry

import (
	"strings"
)

const (
	gb = 1 << 30
)

// HddScore computes the composite HDD-versus-flash score for a device from its USB
// identifiers, model string, total size and media type.  A positive score means the
// device looks like a hard disk and should be hidden or warned about by default; zero or
// negative means flash drive.  The scorer is pure and deterministic.
func HddScore(vid uint16, pid uint16, model string, sizeBytes uint64, fixedMedia bool) int {
	score := 0

	// Boost the score if fixed, as these are *generally* HDDs.  For drives with no
	// mounted partition the registry takes the media type from the drive geometry.
	if fixedMedia {
		score += 3
	}

	// Adjust the score depending on the size
	if sizeBytes > 512*gb {
		score += 10
	} else if sizeBytes < 8*gb {
		score -= 10
	}

	// Check the model string against well known identifiers.  The prefix compare is
	// case insensitive; a trailing '#' in the table requires a digit after the prefix.
	if model != "" {
		for _, entry := range strScores {
			if matchModelPrefix(model, entry.name) {
				score += entry.score
				break
			}
		}
		// Adjust for oddball devices
		for _, entry := range strAdjusts {
			if strings.Contains(model, entry.name) {
				score += entry.score
			}
		}
	}

	// Check against known VIDs
	for _, entry := range vidScores {
		if vid == entry.vid {
			score += entry.score
			break
		}
	}

	// Check against known VID:PIDs
	for _, entry := range vidPidScores {
		if vid == entry.vid && pid == entry.pid {
			score += entry.score
			break
		}
	}

	return score
}

// matchModelPrefix compares the model string against one table name.  Names ending in
// '#' match any single digit in that position.
func matchModelPrefix(model, name string) bool {
	wildcard := strings.HasSuffix(name, "#")
	prefixLen := len(name)
	if wildcard {
		prefixLen--
	}
	if len(model) < prefixLen || (wildcard && len(model) < prefixLen+1) {
		return false
	}
	if !strings.EqualFold(model[:prefixLen], name[:prefixLen]) {
		return false
	}
	if wildcard {
		c := model[prefixLen]
		return c >= '0' && c <= '9'
	}
	return true
}
