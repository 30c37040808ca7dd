package model

import (
	"slices"
	"strings"
)

// CompareIDs orders server ids. Ids are unpadded decimal snowflakes, so a
// shorter id is always older; equal lengths compare lexically.
func CompareIDs(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// SortMessages sorts msgs ascending by id in place.
func SortMessages(msgs []Message) {
	slices.SortStableFunc(msgs, func(a, b Message) int { return CompareIDs(a.ID, b.ID) })
}

// SortChannels sorts channels by position, then id.
func SortChannels(chs []Channel) {
	slices.SortStableFunc(chs, func(a, b Channel) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return CompareIDs(a.ID, b.ID)
	})
}

// SortRoles sorts roles by position, then id.
func SortRoles(roles []Role) {
	slices.SortStableFunc(roles, func(a, b Role) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return CompareIDs(a.ID, b.ID)
	})
}
