package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/user/login-stream-processor/internal/adapter/api"
	"github.com/user/login-stream-processor/internal/adapter/metrics"
	"github.com/user/login-stream-processor/internal/domain"
)

// LoopConfig carries the timing knobs of the processing loop.
type LoopConfig struct {
	MaxBatchSize     int
	CommitInterval   time.Duration
	FlushInterval    time.Duration
	MaxFetchFailures int
	FetchBackoff     time.Duration
	ShutdownGrace    time.Duration
}

// ProcessEventsUseCase drives the whole pipeline: it polls the input stream
// in batches, runs each record through normalize/enrich, hands the result to
// the publisher and the aggregation window, and schedules offset commits and
// window flushes cooperatively after each batch. Everything runs on the one
// goroutine that calls Run, which is what lets the window go unlocked.
type ProcessEventsUseCase struct {
	source    domain.EventSource
	publisher domain.EventPublisher
	window    *AggregationWindow
	probe     *api.Probe
	metrics   *metrics.PipelineMetrics
	logger    *slog.Logger
	cfg       LoopConfig
	clock     func() time.Time

	lastCommit      time.Time
	fetchFailures   int
	droppedInWindow int64
}

// NewProcessEventsUseCase creates the processing loop.
func NewProcessEventsUseCase(
	source domain.EventSource,
	publisher domain.EventPublisher,
	window *AggregationWindow,
	probe *api.Probe,
	m *metrics.PipelineMetrics,
	logger *slog.Logger,
	cfg LoopConfig,
) *ProcessEventsUseCase {
	return &ProcessEventsUseCase{
		source:    source,
		publisher: publisher,
		window:    window,
		probe:     probe,
		metrics:   m,
		logger:    logger.With("component", "processor"),
		cfg:       cfg,
		clock:     time.Now,
	}
}

// Run polls and processes batches until ctx is cancelled, then performs the
// drain sequence. The returned error is nil only if every drain step
// completed; a fatal pipeline error is surfaced after a best-effort drain.
func (uc *ProcessEventsUseCase) Run(ctx context.Context) error {
	uc.lastCommit = uc.clock()

	for {
		select {
		case <-ctx.Done():
			uc.logger.Info("termination signal received, draining")
			return uc.drain()
		default:
		}

		if _, err := uc.ProcessBatch(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue // cancellation is handled at the top of the loop
			}
			uc.logger.Error("fatal pipeline error, draining", "error", err)
			return errors.Join(err, uc.drain())
		}
	}
}

// ProcessBatch fetches and processes one batch, then runs the commit and
// flush checks. Per-record problems never surface as errors; a non-nil
// return means the pipeline cannot continue.
func (uc *ProcessEventsUseCase) ProcessBatch(ctx context.Context) (int, error) {
	ctx, span := otel.Tracer("login-processor").Start(ctx, "ProcessBatch")
	defer span.End()

	uc.probe.MarkPolled(uc.clock())

	msgs, fetchErr := uc.source.FetchBatch(ctx, uc.cfg.MaxBatchSize)
	if fetchErr != nil && ctx.Err() == nil {
		uc.fetchFailures++
		uc.metrics.FetchErrorsTotal.Inc()
		uc.logger.Error("failed to fetch batch from input stream",
			"error", fetchErr, "consecutive_failures", uc.fetchFailures)
		if uc.fetchFailures >= uc.cfg.MaxFetchFailures {
			return 0, fmt.Errorf("input stream unavailable after %d consecutive fetch failures: %w", uc.fetchFailures, fetchErr)
		}
		uc.backoff(ctx)
		return 0, nil
	}
	if fetchErr == nil {
		uc.fetchFailures = 0
		uc.probe.SetReady()
	}

	// A cancellation mid-poll still delivers the records fetched so far;
	// they are processed and acked before the drain sequence starts, so the
	// final commit never covers records that were thrown away.
	processed := 0
	for _, msg := range msgs {
		var raw domain.RawEvent
		if err := json.Unmarshal(msg.Value, &raw); err != nil {
			uc.droppedInWindow++
			uc.metrics.EventsTotal.WithLabelValues("error_parse").Inc()
			uc.logger.Warn("dropping malformed event",
				"error", err, "partition", msg.Partition, "offset", msg.Offset)
			uc.source.Ack(msg)
			continue
		}

		now := uc.clock()
		enriched := Enrich(Normalize(raw, now), now)

		// On a fatal publish error the rest of the batch stays unacked and
		// is redelivered after a restart.
		if err := uc.publisher.PublishEnriched(ctx, enriched); err != nil {
			return processed, err
		}
		uc.window.Observe(enriched)
		uc.source.Ack(msg)
		uc.metrics.EventsTotal.WithLabelValues("processed").Inc()
		processed++
	}

	if fetchErr != nil {
		return processed, ctx.Err()
	}

	now := uc.clock()
	if now.Sub(uc.lastCommit) >= uc.cfg.CommitInterval {
		if err := uc.source.Commit(ctx); err != nil {
			uc.logger.Error("failed to commit offsets", "error", err)
		} else {
			uc.lastCommit = now
			uc.metrics.CommitsTotal.Inc()
		}
	}

	if now.Sub(uc.window.Start()) >= uc.cfg.FlushInterval {
		if err := uc.flushWindow(ctx, now); err != nil {
			return processed, err
		}
	}

	return processed, nil
}

// flushWindow emits the window snapshot, logs the processing summary, and
// hands the snapshot to the publisher.
func (uc *ProcessEventsUseCase) flushWindow(ctx context.Context, now time.Time) error {
	records := uc.window.RecordCount()
	topVersions := uc.window.TopAppVersions(3)

	snap := uc.window.Flush(now)

	rate := 0.0
	if snap.TimeWindow > 0 {
		rate = float64(records) / snap.TimeWindow
	}
	uc.logger.Info("processing statistics",
		"window_seconds", snap.TimeWindow,
		"records", records,
		"records_per_second", rate,
		"dropped", uc.droppedInWindow,
		"top_devices", topKeys(snap.DeviceStats, len(snap.DeviceStats)),
		"top_locations", topKeys(snap.LocationStats, 3),
		"top_app_versions", topVersions,
	)
	uc.droppedInWindow = 0

	if err := uc.publisher.PublishSnapshot(ctx, snap); err != nil {
		return err
	}
	uc.metrics.SnapshotsTotal.Inc()
	return nil
}

// drain runs the shutdown sequence: final window flush if anything was
// observed, forced publisher flush, final offset commit, then handle close
// (source first, publisher last). Steps are attempted even if earlier ones
// failed; the error names which steps did not complete.
func (uc *ProcessEventsUseCase) drain() error {
	ctx, cancel := context.WithTimeout(context.Background(), uc.cfg.ShutdownGrace)
	defer cancel()

	var failed []string

	if uc.window.RecordCount() > 0 {
		if err := uc.flushWindow(ctx, uc.clock()); err != nil {
			uc.logger.Error("final window flush failed", "error", err)
			failed = append(failed, "flush")
		}
	}

	if err := uc.publisher.Flush(ctx); err != nil {
		uc.logger.Error("forced publisher flush failed", "error", err)
		failed = append(failed, "publish")
	}

	if err := uc.source.Commit(ctx); err != nil {
		uc.logger.Error("final offset commit failed", "error", err)
		failed = append(failed, "commit")
	}

	if err := uc.source.Close(); err != nil {
		uc.logger.Error("input stream close failed", "error", err)
		failed = append(failed, "close_source")
	}
	if err := uc.publisher.Close(); err != nil {
		uc.logger.Error("output stream close failed", "error", err)
		failed = append(failed, "close_publisher")
	}

	if len(failed) > 0 {
		return fmt.Errorf("shutdown incomplete, failed steps: %s", strings.Join(failed, ", "))
	}
	uc.logger.Info("drain complete")
	return nil
}

func (uc *ProcessEventsUseCase) backoff(ctx context.Context) {
	select {
	case <-time.After(backoffDelay(uc.cfg.FetchBackoff, uc.fetchFailures)):
	case <-ctx.Done():
	}
	// The loop is alive while it deliberately waits out a broker blip.
	uc.probe.MarkPolled(uc.clock())
}

// backoffCap bounds the fetch backoff at this multiple of the base delay.
const backoffCap = 8

// backoffDelay doubles per consecutive failure up to the cap.
func backoffDelay(base time.Duration, failures int) time.Duration {
	if failures < 1 {
		return base
	}
	delay := base << (failures - 1)
	if max := backoffCap * base; delay > max || delay <= 0 {
		delay = max
	}
	return delay
}

// MaxBackoff returns the largest single sleep the loop takes between polls.
// Liveness probes must tolerate at least a poll timeout plus this.
func (c LoopConfig) MaxBackoff() time.Duration {
	return backoffCap * c.FetchBackoff
}
