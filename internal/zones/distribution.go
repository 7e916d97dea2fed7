package zones

import (
	"bytes"
	"encoding/json"
)

// Share is one zone's slice of a Distribution
type Share struct {
	Zone     string
	Count    int
	Fraction float64
}

// Distribution is the fractional occupancy of classified samples across
// zones. Entries keep first-seen order.
type Distribution struct {
	shares []Share
	total  int
}

// Shares returns a copy of the distribution's entries in first-seen order
func (d Distribution) Shares() []Share {
	out := make([]Share, len(d.shares))
	copy(out, d.shares)
	return out
}

// Names returns the zone names in first-seen order
func (d Distribution) Names() []string {
	names := make([]string, len(d.shares))
	for i, s := range d.shares {
		names[i] = s.Zone
	}
	return names
}

// Fraction returns the fraction of samples in the named zone
func (d Distribution) Fraction(name string) (float64, bool) {
	for _, s := range d.shares {
		if s.Zone == name {
			return s.Fraction, true
		}
	}
	return 0, false
}

// Count returns the number of samples classified into the named zone
func (d Distribution) Count(name string) int {
	for _, s := range d.shares {
		if s.Zone == name {
			return s.Count
		}
	}
	return 0
}

// Total is the number of classified samples
func (d Distribution) Total() int {
	return d.total
}

// Len is the number of distinct zones seen
func (d Distribution) Len() int {
	return len(d.shares)
}

// MarshalJSON encodes the distribution as an object of zone → fraction,
// keys in first-seen order.
func (d Distribution) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range d.shares {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(s.Zone)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.Fraction)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
