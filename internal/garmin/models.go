package garmin

import (
	"encoding/json"

	"hrexport/internal/zones"
)

// Profile is the subset of the social profile the exporter needs
type Profile struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"displayName"`
	FullName    string `json:"fullName"`
	UserName    string `json:"userName"`
}

// DailyHeartRate is the dailyHeartRate response. Raw keeps the body as
// received so it can be written out unchanged.
type DailyHeartRate struct {
	Raw json.RawMessage `json:"-"`

	UserProfilePK    int64       `json:"userProfilePK"`
	CalendarDate     string      `json:"calendarDate"`
	MaxHeartRate     *int        `json:"maxHeartRate"`
	MinHeartRate     *int        `json:"minHeartRate"`
	RestingHeartRate *int        `json:"restingHeartRate"`
	HeartRateValues  [][2]*int64 `json:"heartRateValues"` // [epoch ms, bpm|null]
}

// Samples converts heartRateValues into zone samples, preserving order.
// Entries without a timestamp are dropped; null readings are kept with a nil
// value.
func (d *DailyHeartRate) Samples() []zones.Sample {
	if d == nil {
		return nil
	}
	samples := make([]zones.Sample, 0, len(d.HeartRateValues))
	for _, entry := range d.HeartRateValues {
		if entry[0] == nil {
			continue
		}
		s := zones.Sample{Timestamp: *entry[0]}
		if entry[1] != nil {
			v := int(*entry[1])
			s.Value = &v
		}
		samples = append(samples, s)
	}
	return samples
}
