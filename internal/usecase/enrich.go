package usecase

import (
	"time"

	"github.com/user/login-stream-processor/internal/domain"
)

// Timestamp layouts compatible with the isoformat strings the previous
// processor emitted; downstream consumers parse these verbatim.
const (
	readableLayout  = "2006-01-02T15:04:05"
	processedLayout = "2006-01-02T15:04:05.000000"
)

// Enrich derives the temporal fields from a normalized event. It is a pure
// function of the event and the injected clock reading: no external state is
// consulted, so a fixed now yields a fixed output.
func Enrich(n domain.NormalizedEvent, now time.Time) domain.EnrichedEvent {
	ts := n.Timestamp
	if !saneEpoch(ts, now) {
		ts = now.Unix()
	}
	eventTime := time.Unix(ts, 0)

	return domain.EnrichedEvent{
		NormalizedEvent:    n,
		ProcessedTimestamp: now.Format(processedLayout),
		ReadableTimestamp:  eventTime.Format(readableLayout),
		HourOfDay:          eventTime.Hour(),
	}
}
