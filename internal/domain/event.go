package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// LooseString decodes a JSON string and treats a value of any other type as
// absent, so one mistyped field does not reject the whole record.
type LooseString string

func (s *LooseString) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		*s = ""
		return nil
	}
	*s = LooseString(v)
	return nil
}

// EpochSeconds is a lenient Unix-timestamp field. Producers send the event
// timestamp as a JSON number or as a numeric string, and sometimes omit it
// entirely; decoding never fails, an unusable value simply leaves Valid false.
type EpochSeconds struct {
	Value int64
	Valid bool
}

// UnmarshalJSON accepts a number, a quoted numeric string, or null.
func (e *EpochSeconds) UnmarshalJSON(data []byte) error {
	e.Value, e.Valid = 0, false

	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		return nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}

	e.Value, e.Valid = int64(f), true
	return nil
}

// RawEvent is a user-login record exactly as read off the input stream.
// Any field may be missing or empty.
type RawEvent struct {
	UserID     LooseString  `json:"user_id"`
	AppVersion LooseString  `json:"app_version"`
	DeviceType LooseString  `json:"device_type"`
	IP         LooseString  `json:"ip"`
	Locale     LooseString  `json:"locale"`
	DeviceID   LooseString  `json:"device_id"`
	Timestamp  EpochSeconds `json:"timestamp"`
}

// NormalizedEvent is a RawEvent after defaulting: every string field is
// non-empty and Timestamp is a usable epoch value.
type NormalizedEvent struct {
	UserID     string `json:"user_id"`
	AppVersion string `json:"app_version"`
	DeviceType string `json:"device_type"`
	IP         string `json:"ip"`
	Locale     string `json:"locale"`
	DeviceID   string `json:"device_id"`
	Timestamp  int64  `json:"timestamp"`
}

// EnrichedEvent is the document published to the enriched output topic:
// the normalized fields plus the derived temporal ones.
type EnrichedEvent struct {
	NormalizedEvent
	ProcessedTimestamp string `json:"processed_timestamp"`
	ReadableTimestamp  string `json:"readable_timestamp"`
	HourOfDay          int    `json:"hour_of_day"`
}

// UsageSnapshot is the immutable aggregate emitted at each window flush and
// published to the aggregate output topic. Maps are detached from the live
// window and never mutated after emission.
type UsageSnapshot struct {
	CurrentTime   float64          `json:"current_time"`
	TimeWindow    float64          `json:"time_window"`
	BatchSize     float64          `json:"batch_size"`
	LocationStats map[string]int64 `json:"location_stats"`
	DeviceStats   map[string]int64 `json:"device_stats"`
}
