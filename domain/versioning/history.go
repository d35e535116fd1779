package versioning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Prepend adds at to the head of a most-recent-first history unless it is
// already the head. maxVersions > 0 trims the oldest entries. Returns the new
// history and whether it changed.
func Prepend(history []time.Time, at time.Time, maxVersions int) ([]time.Time, bool) {
	if len(history) > 0 && history[0].Equal(at) {
		return history, false
	}
	out := make([]time.Time, 0, len(history)+1)
	out = append(out, at)
	out = append(out, history...)
	if maxVersions > 0 && len(out) > maxVersions {
		out = out[:maxVersions]
	}
	return out, true
}

// Nearest returns the newest version at or before at
func Nearest(history []time.Time, at time.Time) (time.Time, bool) {
	for _, v := range history {
		if !v.After(at) {
			return v, true
		}
	}
	return time.Time{}, false
}

// Sorted returns a copy of versions ordered most recent first
func Sorted(versions []time.Time) []time.Time {
	out := append([]time.Time(nil), versions...)
	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	return out
}

// AttributeDiff describes how to turn current attributes into a historical set
type AttributeDiff struct {
	Changed map[string]string `json:"changed"`
	Removed []string          `json:"removed"`
}

// IsEmpty reports whether the two sets were identical
func (d AttributeDiff) IsEmpty() bool {
	return len(d.Changed) == 0 && len(d.Removed) == 0
}

// Diff compares current attributes against a historical snapshot. Keys are
// compared case-insensitively; keys listed in preserve are never touched.
func Diff(current, historical map[string]string, preserve ...string) AttributeDiff {
	keep := make(map[string]bool, len(preserve))
	for _, key := range preserve {
		keep[strings.ToLower(key)] = true
	}

	currentByKey := make(map[string]string, len(current))
	for key, value := range current {
		currentByKey[strings.ToLower(key)] = value
	}
	historicalByKey := make(map[string]bool, len(historical))

	diff := AttributeDiff{Changed: make(map[string]string)}
	for key, value := range historical {
		norm := strings.ToLower(key)
		historicalByKey[norm] = true
		if keep[norm] {
			continue
		}
		if existing, ok := currentByKey[norm]; !ok || existing != value {
			diff.Changed[key] = value
		}
	}
	for key := range current {
		norm := strings.ToLower(key)
		if !historicalByKey[norm] && !keep[norm] {
			diff.Removed = append(diff.Removed, key)
		}
	}
	sort.Strings(diff.Removed)
	return diff
}

// Checksum fingerprints an attribute snapshot so identical versions can be
// recognised without comparing every value
func Checksum(attributes map[string]string) string {
	normalized := make(map[string]string, len(attributes))
	for key, value := range attributes {
		normalized[strings.ToLower(key)] = value
	}
	// json.Marshal sorts map keys, giving a deterministic encoding
	data, err := json.Marshal(normalized)
	if err != nil {
		return ""
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
