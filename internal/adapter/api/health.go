package api

import (
	"net/http"
	"sync/atomic"
	"time"
)

// Probe tracks liveness and readiness state shared between the processing
// loop and the admin HTTP server. The loop writes, the handlers read; all
// access goes through atomics.
type Probe struct {
	ready        atomic.Bool
	lastPollNano atomic.Int64
	staleAfter   time.Duration
}

// NewProbe creates a probe that reports the process as not alive once no
// poll has been recorded for staleAfter.
func NewProbe(staleAfter time.Duration) *Probe {
	return &Probe{staleAfter: staleAfter}
}

// MarkPolled records that the loop attempted a poll of the input stream.
func (p *Probe) MarkPolled(now time.Time) {
	p.lastPollNano.Store(now.UnixNano())
}

// SetReady marks the initial stream connection as established. Readiness is
// sticky: partition rebalances and transient broker errors do not unset it.
func (p *Probe) SetReady() {
	p.ready.Store(true)
}

// Ready reports whether the initial stream connection has been established.
func (p *Probe) Ready() bool { return p.ready.Load() }

// Alive reports whether the loop has polled recently.
func (p *Probe) Alive(now time.Time) bool {
	last := p.lastPollNano.Load()
	if last == 0 {
		return false
	}
	return now.Sub(time.Unix(0, last)) <= p.staleAfter
}

// Register mounts the health endpoints on the admin mux.
func (p *Probe) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !p.Alive(time.Now()) {
			http.Error(w, "poll loop stalled", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !p.Ready() {
			http.Error(w, "input stream not connected", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}
