// (c) Copyright 2024 MediaForge Technologies LP

// Package stringformat provides the small string helpers used in log and table output
package stringformat

import (
	"fmt"
	"strings"
)

// AlignmentType selects how FixedLengthString pads short values
type AlignmentType int

const (
	LeftAlign AlignmentType = iota
	RightAlign
	CenterAlign
)

// FixedLengthString formats any value into a string of exactly the given length,
// truncating or padding with the requested alignment
func FixedLengthString(length int, value interface{}, align AlignmentType) string {
	text := fmt.Sprintf("%v", value)
	if len(text) >= length {
		return text[:length]
	}
	switch align {
	case RightAlign:
		return strings.Repeat(" ", length-len(text)) + text
	case CenterAlign:
		left := (length - len(text)) / 2
		right := length - len(text) - left
		return strings.Repeat(" ", left) + text + strings.Repeat(" ", right)
	default:
		return text + strings.Repeat(" ", length-len(text))
	}
}

// StringLookup reports whether value equals the input string or is contained in the
// input string slice
func StringLookup(input interface{}, value string) bool {
	switch v := input.(type) {
	case string:
		return v == value
	case []string:
		for _, s := range v {
			if s == value {
				return true
			}
		}
	}
	return false
}

// sizeUnits are the binary prefixes used by SizeToHumanReadable
var sizeUnits = []string{"bytes", "KB", "MB", "GB", "TB", "PB"}

// SizeToHumanReadable formats a byte count with binary prefixes, the way drive sizes
// are usually displayed
func SizeToHumanReadable(size uint64) string {
	value := float64(size)
	unit := 0
	for value >= 1024 && unit < len(sizeUnits)-1 {
		value /= 1024
		unit++
	}
	if unit == 0 {
		return fmt.Sprintf("%d %s", size, sizeUnits[0])
	}
	return fmt.Sprintf("%.1f %s", value, sizeUnits[unit])
}
