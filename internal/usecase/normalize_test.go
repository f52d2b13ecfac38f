package usecase

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/user/login-stream-processor/internal/domain"
)

func TestNormalize(t *testing.T) {
	now := time.Unix(1700000000, 0)

	t.Run("Missing Fields Default To Unknown", func(t *testing.T) {
		n := Normalize(domain.RawEvent{UserID: "u1"}, now)

		if n.UserID != "u1" {
			t.Errorf("expected user_id to be preserved, got %q", n.UserID)
		}
		for name, got := range map[string]string{
			"app_version": n.AppVersion,
			"device_type": n.DeviceType,
			"ip":          n.IP,
			"locale":      n.Locale,
			"device_id":   n.DeviceID,
		} {
			if got != UnknownValue {
				t.Errorf("expected %s to default to %q, got %q", name, UnknownValue, got)
			}
		}
		if n.Timestamp != now.Unix() {
			t.Errorf("expected missing timestamp to default to now, got %d", n.Timestamp)
		}
	})

	t.Run("Populated Fields Preserved", func(t *testing.T) {
		raw := domain.RawEvent{
			UserID:     "u1",
			AppVersion: "2.3.0",
			DeviceType: "android",
			IP:         "1.2.3.4",
			Locale:     "CA",
			DeviceID:   "d1",
			Timestamp:  domain.EpochSeconds{Value: 1694479551, Valid: true},
		}
		n := Normalize(raw, now)

		if n.Locale != "CA" || n.DeviceType != "android" || n.Timestamp != 1694479551 {
			t.Errorf("unexpected normalized event: %+v", n)
		}
	})

	t.Run("Timestamp As Numeric String", func(t *testing.T) {
		var raw domain.RawEvent
		if err := json.Unmarshal([]byte(`{"user_id":"u1","timestamp":"1694479551"}`), &raw); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if n := Normalize(raw, now); n.Timestamp != 1694479551 {
			t.Errorf("expected string timestamp to parse, got %d", n.Timestamp)
		}
	})

	t.Run("Timestamp As Number", func(t *testing.T) {
		var raw domain.RawEvent
		if err := json.Unmarshal([]byte(`{"user_id":"u1","timestamp":1694479551}`), &raw); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if n := Normalize(raw, now); n.Timestamp != 1694479551 {
			t.Errorf("expected numeric timestamp to parse, got %d", n.Timestamp)
		}
	})

	t.Run("Mistyped Field Defaults To Unknown", func(t *testing.T) {
		var raw domain.RawEvent
		if err := json.Unmarshal([]byte(`{"user_id":123,"locale":"CA"}`), &raw); err != nil {
			t.Fatalf("mistyped field should not reject the record, got error: %v", err)
		}
		n := Normalize(raw, now)

		if n.UserID != UnknownValue {
			t.Errorf("expected mistyped user_id to default to %q, got %q", UnknownValue, n.UserID)
		}
		if n.Locale != "CA" {
			t.Errorf("expected locale preserved, got %q", n.Locale)
		}
	})

	t.Run("Unparsable Timestamp Defaults To Now", func(t *testing.T) {
		var raw domain.RawEvent
		if err := json.Unmarshal([]byte(`{"user_id":"u1","timestamp":"yesterday"}`), &raw); err != nil {
			t.Fatalf("unmarshal should be lenient, got error: %v", err)
		}
		if n := Normalize(raw, now); n.Timestamp != now.Unix() {
			t.Errorf("expected unparsable timestamp to default to now, got %d", n.Timestamp)
		}
	})

	t.Run("Out Of Range Timestamp Defaults To Now", func(t *testing.T) {
		for _, value := range []int64{-1, 0, now.Add(48 * time.Hour).Unix()} {
			raw := domain.RawEvent{Timestamp: domain.EpochSeconds{Value: value, Valid: true}}
			if n := Normalize(raw, now); n.Timestamp != now.Unix() {
				t.Errorf("expected timestamp %d to default to now, got %d", value, n.Timestamp)
			}
		}
	})

	t.Run("Idempotent On Normalized Input", func(t *testing.T) {
		first := Normalize(domain.RawEvent{UserID: "u1", Locale: "CA"}, now)

		asRaw := domain.RawEvent{
			UserID:     domain.LooseString(first.UserID),
			AppVersion: domain.LooseString(first.AppVersion),
			DeviceType: domain.LooseString(first.DeviceType),
			IP:         domain.LooseString(first.IP),
			Locale:     domain.LooseString(first.Locale),
			DeviceID:   domain.LooseString(first.DeviceID),
			Timestamp:  domain.EpochSeconds{Value: first.Timestamp, Valid: true},
		}
		second := Normalize(asRaw, now.Add(time.Hour))

		if first != second {
			t.Errorf("normalize is not idempotent: first %+v, second %+v", first, second)
		}
	})
}
