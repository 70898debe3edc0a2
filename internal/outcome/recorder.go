package outcome

import (
    "context"
    "sync"
    "time"

    "go.uber.org/zap"

    "github.com/park285/hopchess/internal/obslog"
    "github.com/park285/hopchess/internal/rules"
)

// Sink persists or forwards one terminal outcome.
type Sink interface {
    Name() string
    Save(ctx context.Context, over rules.GameOver) error
}

// Recorder fans each outcome out to every sink in the background.
// Sink failures are logged and otherwise ignored.
type Recorder struct {
    sinks   []Sink
    timeout time.Duration
    wg      sync.WaitGroup
}

func NewRecorder(timeout time.Duration, sinks ...Sink) *Recorder {
    if timeout <= 0 { timeout = 30 * time.Second }
    kept := make([]Sink, 0, len(sinks))
    for _, s := range sinks {
        if s != nil { kept = append(kept, s) }
    }
    return &Recorder{sinks: kept, timeout: timeout}
}

// Record returns immediately. The caller's cancellation does not abort delivery.
func (r *Recorder) Record(ctx context.Context, over rules.GameOver) {
    base := context.WithoutCancel(ctx)
    for _, s := range r.sinks {
        r.wg.Add(1)
        go func(s Sink) {
            defer r.wg.Done()
            sctx, cancel := context.WithTimeout(base, r.timeout)
            defer cancel()
            if err := s.Save(sctx, over); err != nil {
                obslog.Room(over.SessionID).Warn("outcome_submit_error",
                    zap.String("sink", s.Name()),
                    zap.String("type", string(over.Type)),
                    zap.Error(err),
                )
                return
            }
            obslog.Room(over.SessionID).Info("outcome_recorded",
                zap.String("sink", s.Name()),
                zap.String("type", string(over.Type)),
            )
        }(s)
    }
}

// Wait blocks until every in-flight delivery finished.
func (r *Recorder) Wait() { r.wg.Wait() }
