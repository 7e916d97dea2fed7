// Package zones classifies heart-rate samples into named zones and computes
// how the day's samples are distributed across them.
package zones

import (
	"errors"
	"fmt"
)

// Unknown is the zone name reported for values that fall in no configured zone
const Unknown = "unknown"

// ErrNoSamples is returned by Aggregate when no sample carries a value
var ErrNoSamples = errors.New("no heart rate samples to aggregate")

// Zone is a named, inclusive heart-rate range
type Zone struct {
	Name string `mapstructure:"name" json:"name" yaml:"name"`
	Min  int    `mapstructure:"min" json:"min" yaml:"min"`
	Max  int    `mapstructure:"max" json:"max" yaml:"max"`
}

// Contains reports whether v lies within the zone's bounds
func (z Zone) Contains(v int) bool {
	return v >= z.Min && v <= z.Max
}

// Sample is a single heart-rate reading. Value is nil when the device
// recorded no reading for that timestamp.
type Sample struct {
	Timestamp int64 // epoch milliseconds
	Value     *int  // bpm, nullable
}

// Classify returns the name of the first zone containing value, or Unknown.
// Zones are evaluated in slice order, so overlapping zones resolve to the
// earlier entry.
func Classify(zones []Zone, value int) string {
	for _, z := range zones {
		if z.Contains(value) {
			return z.Name
		}
	}
	return Unknown
}

// Aggregate classifies every sample with a value and returns the fraction of
// classified samples per zone, in the order zones were first seen.
//
// When no sample has a value the returned Distribution is empty and the error
// is ErrNoSamples.
func Aggregate(zones []Zone, samples []Sample) (Distribution, error) {
	var d Distribution
	index := make(map[string]int)

	for _, s := range samples {
		if s.Value == nil {
			continue
		}
		name := Classify(zones, *s.Value)
		i, ok := index[name]
		if !ok {
			i = len(d.shares)
			index[name] = i
			d.shares = append(d.shares, Share{Zone: name})
		}
		d.shares[i].Count++
		d.total++
	}

	if d.total == 0 {
		return Distribution{}, ErrNoSamples
	}

	for i := range d.shares {
		d.shares[i].Fraction = float64(d.shares[i].Count) / float64(d.total)
	}
	return d, nil
}

// ValidateZones checks a zone list loaded from configuration
func ValidateZones(zones []Zone) error {
	seen := make(map[string]bool, len(zones))
	for i, z := range zones {
		if z.Name == "" {
			return fmt.Errorf("zone %d: name is required", i)
		}
		if z.Name == Unknown {
			return fmt.Errorf("zone %d: name %q is reserved", i, Unknown)
		}
		if seen[z.Name] {
			return fmt.Errorf("zone %d: duplicate name %q", i, z.Name)
		}
		if z.Min > z.Max {
			return fmt.Errorf("zone %q: min (%d) must not exceed max (%d)", z.Name, z.Min, z.Max)
		}
		seen[z.Name] = true
	}
	return nil
}
