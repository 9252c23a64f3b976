package query

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/geosuggest/internal/domain"
	"github.com/kailas-cloud/geosuggest/internal/domain/search/mode"
	"github.com/kailas-cloud/geosuggest/internal/domain/search/result"
	"github.com/kailas-cloud/geosuggest/internal/metrics"
)

// Defaults for SessionOptions.
const (
	DefaultDebounce = 300 * time.Millisecond
	DefaultTimeout  = 3 * time.Second
	DefaultMinChars = 2
)

// Timer is a scheduled callback.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. The real clock wraps time.AfterFunc.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Suggester is the query surface a Session dispatches to.
type Suggester interface {
	Suggest(ctx context.Context, m mode.Mode, text string) ([]result.Suggestion, error)
}

// Update is a change to the displayed suggestion list.
// Err is set when the list is empty because the source is degraded.
type Update struct {
	Generation  uint64
	Mode        mode.Mode
	Text        string
	Suggestions []result.Suggestion
	Err         error
}

// SessionOptions tunes debounce and cancellation.
type SessionOptions struct {
	Debounce time.Duration
	Timeout  time.Duration
	MinChars int
	Clock    Clock
}

// Session is one search box: it debounces keystrokes, keeps at most one query
// live, and applies only the results of the latest attempt.
type Session struct {
	svc    Suggester
	opts   SessionOptions
	sink   func(Update)
	logger *zap.Logger

	// deliverMu serializes result application and sink calls.
	deliverMu sync.Mutex

	mu      sync.Mutex
	mode    mode.Mode
	gen     uint64
	timer   Timer
	cancel  context.CancelFunc
	current []result.Suggestion
	closed  bool
	wg      sync.WaitGroup
}

// NewSession creates a session in mode m. sink receives every applied update and may be nil.
func NewSession(svc Suggester, m mode.Mode, opts SessionOptions, sink func(Update), logger *zap.Logger) *Session {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MinChars <= 0 {
		opts.MinChars = DefaultMinChars
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if sink == nil {
		sink = func(Update) {}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{svc: svc, opts: opts, sink: sink, logger: logger, mode: m}
}

// Type records a keystroke. The query is dispatched once input has been quiet
// for the debounce period. Text below the minimum length clears the list.
func (s *Session) Type(text string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen, m := s.gen, s.mode
	s.stopTimerLocked()

	if utf8.RuneCountInString(strings.TrimSpace(text)) < s.opts.MinChars {
		s.cancelLocked()
		s.mu.Unlock()
		s.clear(gen, m, text)
		return
	}

	s.timer = s.opts.Clock.AfterFunc(s.opts.Debounce, func() { s.dispatch(gen, m, text) })
	s.mu.Unlock()
}

// Submit dispatches text immediately, skipping the debounce.
func (s *Session) Submit(text string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen, m := s.gen, s.mode
	s.stopTimerLocked()
	s.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		s.mu.Lock()
		s.cancelLocked()
		s.mu.Unlock()
		s.clear(gen, m, text)
		return
	}
	s.dispatch(gen, m, text)
}

// SetMode switches the search domain, cancelling pending work and clearing the list.
func (s *Session) SetMode(m mode.Mode) {
	s.mu.Lock()
	if s.closed || s.mode == m {
		s.mu.Unlock()
		return
	}
	s.mode = m
	s.gen++
	gen := s.gen
	s.stopTimerLocked()
	s.cancelLocked()
	s.mu.Unlock()

	s.clear(gen, m, "")
}

// Mode returns the active mode.
func (s *Session) Mode() mode.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Current returns the displayed suggestions.
func (s *Session) Current() []result.Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]result.Suggestion, len(s.current))
	copy(out, s.current)
	return out
}

// Generation returns the latest attempt number.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Wait blocks until in-flight queries have finished.
func (s *Session) Wait() { s.wg.Wait() }

// Close cancels pending work and waits for in-flight queries. Later calls are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.gen++
	s.stopTimerLocked()
	s.cancelLocked()
	s.mu.Unlock()
	s.wg.Wait()
}

// dispatch starts attempt gen unless it has been superseded.
func (s *Session) dispatch(gen uint64, m mode.Mode, text string) {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	s.cancelLocked()
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer cancel()

		res, err := s.svc.Suggest(ctx, m, text)
		s.apply(gen, m, text, res, domain.Classify(err))
	}()
}

func (s *Session) apply(gen uint64, m mode.Mode, text string, res []result.Suggestion, err error) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	if gen != s.gen || m != s.mode {
		s.mu.Unlock()
		metrics.StaleResultsTotal.WithLabelValues(string(m)).Inc()
		s.logger.Debug("Dropped stale suggestions", zap.Uint64("generation", gen), zap.String("text", text))
		return
	}
	if err != nil && domain.IsCancelled(err) {
		s.mu.Unlock()
		return
	}
	if err != nil {
		res = nil
	}
	s.current = res
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("Suggestion query failed",
			zap.Uint64("generation", gen), zap.String("mode", string(m)), zap.Error(err))
	}
	s.sink(Update{Generation: gen, Mode: m, Text: text, Suggestions: res, Err: err})
}

func (s *Session) clear(gen uint64, m mode.Mode, text string) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.current = nil
	s.mu.Unlock()
	s.sink(Update{Generation: gen, Mode: m, Text: text})
}

// stopTimerLocked requires s.mu held.
func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// cancelLocked requires s.mu held.
func (s *Session) cancelLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
