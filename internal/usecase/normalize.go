package usecase

import (
	"time"

	"github.com/user/login-stream-processor/internal/domain"
)

// UnknownValue is substituted for any missing or empty string field.
const UnknownValue = "unknown"

// maxFutureSkew bounds how far in the future an event timestamp may claim to
// be before it is treated as garbage and replaced by the wall clock.
const maxFutureSkew = 24 * time.Hour

// Normalize defaults every missing field of a raw event. It is total: any
// input produces a fully-populated NormalizedEvent, and it is idempotent on
// already-normalized input.
func Normalize(raw domain.RawEvent, now time.Time) domain.NormalizedEvent {
	return domain.NormalizedEvent{
		UserID:     orUnknown(raw.UserID),
		AppVersion: orUnknown(raw.AppVersion),
		DeviceType: orUnknown(raw.DeviceType),
		IP:         orUnknown(raw.IP),
		Locale:     orUnknown(raw.Locale),
		DeviceID:   orUnknown(raw.DeviceID),
		Timestamp:  normalizeEpoch(raw.Timestamp, now),
	}
}

func orUnknown(s domain.LooseString) string {
	if s == "" {
		return UnknownValue
	}
	return string(s)
}

func normalizeEpoch(e domain.EpochSeconds, now time.Time) int64 {
	if !e.Valid || !saneEpoch(e.Value, now) {
		return now.Unix()
	}
	return e.Value
}

func saneEpoch(ts int64, now time.Time) bool {
	return ts > 0 && ts <= now.Add(maxFutureSkew).Unix()
}
