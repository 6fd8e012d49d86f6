package metrics

import (
	"sync/atomic"

	"github.com/kilianp07/evcharge/core/logger"
)

// Recorder wraps a sink so that recording failures are logged instead of
// interrupting a simulation. It is safe for concurrent use when the sink is.
type Recorder struct {
	sink Sink
	log  logger.Logger
	errs atomic.Int64
}

// NewRecorder returns a Recorder over sink. A nil sink records nothing.
func NewRecorder(sink Sink, log logger.Logger) *Recorder {
	if sink == nil {
		sink = NopSink{}
	}
	return &Recorder{sink: sink, log: logger.OrNop(log)}
}

// Step records ev.
func (r *Recorder) Step(ev StepEvent) {
	if err := r.sink.RecordStep(ev); err != nil {
		r.errs.Add(1)
		r.log.Warnf("record step %s: %v", ev.EventID, err)
	}
}

// Session records ev when the sink supports it.
func (r *Recorder) Session(ev SessionEvent) {
	rec, ok := r.sink.(SessionRecorder)
	if !ok {
		return
	}
	if err := rec.RecordSession(ev); err != nil {
		r.errs.Add(1)
		r.log.Warnf("record session %s: %v", ev.EventID, err)
	}
}

// Errors is the number of failed records so far.
func (r *Recorder) Errors() int64 { return r.errs.Load() }
