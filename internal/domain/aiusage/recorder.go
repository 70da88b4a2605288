package aiusage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// maxBufferSize is the number of distinct users buffered before a flush
	// is forced.
	maxBufferSize = 100

	flushTimeout = 10 * time.Second
)

type usageDelta struct {
	tokens   int64
	requests int64
}

// Recorder buffers AI token spend in memory and periodically flushes it to
// the database. Quota checks combine the flushed rows with the in-memory
// buffer so a burst of requests cannot slip past the daily limit between
// flushes. Safe for concurrent use.
type Recorder struct {
	mu         sync.Mutex
	counts     map[string]*usageDelta
	repo       Repository
	dailyLimit int64
	interval   time.Duration
	ticker     *time.Ticker
	done       chan struct{}
	wg         sync.WaitGroup
	logger     zerolog.Logger
	shutdown   sync.Once
	started    bool
}

func NewRecorder(repo Repository, dailyLimit int64, interval time.Duration, logger zerolog.Logger) *Recorder {
	return &Recorder{
		counts:     make(map[string]*usageDelta),
		repo:       repo,
		dailyLimit: dailyLimit,
		interval:   interval,
		done:       make(chan struct{}),
		logger:     logger.With().Str("component", "ai_usage").Logger(),
	}
}

// Start begins the background flush goroutine. Safe to call more than once.
func (r *Recorder) Start() {
	r.mu.Lock()
	if r.ticker != nil {
		r.mu.Unlock()
		return
	}
	r.ticker = time.NewTicker(r.interval)
	r.started = true
	r.wg.Add(1)
	r.mu.Unlock()

	go r.flushLoop()
	r.logger.Info().Dur("interval", r.interval).Int64("daily_limit", r.dailyLimit).Msg("ai usage recorder started")
}

func (r *Recorder) flushLoop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ticker.C:
			r.flush()
		case <-r.done:
			r.flush()
			return
		}
	}
}

// Remaining reports how many tokens the user may still spend today,
// accounting for buffered spend that has not reached the database yet.
func (r *Recorder) Remaining(ctx context.Context, userULID string) (int64, error) {
	usage, err := r.repo.GetDayUsage(ctx, userULID, Day(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("get day usage: %w", err)
	}

	var persisted int64
	if usage != nil {
		persisted = usage.TokensUsed
	}

	r.mu.Lock()
	var buffered int64
	if delta, ok := r.counts[userULID]; ok {
		buffered = delta.tokens
	}
	r.mu.Unlock()

	remaining := r.dailyLimit - persisted - buffered
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Consume spends tokens against the user's daily quota, rejecting the call
// when it would exceed the limit. The quota check and the buffered write
// share one critical section so concurrent requests cannot both pass the
// limit on the same buffer snapshot.
func (r *Recorder) Consume(ctx context.Context, userULID string, tokens int64) error {
	if tokens <= 0 {
		return errors.New("token count must be positive")
	}

	usage, err := r.repo.GetDayUsage(ctx, userULID, Day(time.Now()))
	if err != nil {
		return fmt.Errorf("get day usage: %w", err)
	}
	var persisted int64
	if usage != nil {
		persisted = usage.TokensUsed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var buffered int64
	if delta, ok := r.counts[userULID]; ok {
		buffered = delta.tokens
	}
	if persisted+buffered+tokens > r.dailyLimit {
		return ErrQuotaExceeded
	}

	r.recordLocked(userULID, tokens)
	return nil
}

// recordLocked adds to the buffer; callers must hold r.mu.
func (r *Recorder) recordLocked(userULID string, tokens int64) {
	delta, ok := r.counts[userULID]
	if !ok {
		delta = &usageDelta{}
		r.counts[userULID] = delta
	}
	delta.tokens += tokens
	delta.requests++

	if len(r.counts) >= maxBufferSize {
		snapshot := r.counts
		r.counts = make(map[string]*usageDelta)
		go r.flushSnapshot(snapshot)
	}
}

func (r *Recorder) flush() {
	r.mu.Lock()
	if len(r.counts) == 0 {
		r.mu.Unlock()
		return
	}
	snapshot := r.counts
	r.counts = make(map[string]*usageDelta)
	r.mu.Unlock()

	r.flushSnapshot(snapshot)
}

func (r *Recorder) flushSnapshot(snapshot map[string]*usageDelta) {
	if len(snapshot) == 0 {
		return
	}

	// The originating request contexts are gone by flush time.
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	day := Day(time.Now())
	flushed := 0
	failed := 0
	for userULID, delta := range snapshot {
		if err := r.repo.UpsertDayUsage(ctx, userULID, day, delta.tokens, delta.requests); err != nil {
			r.logger.Error().Err(err).
				Str("user", userULID).
				Int64("tokens", delta.tokens).
				Msg("failed to upsert ai usage")
			failed++
			continue
		}
		flushed++
	}

	if flushed > 0 || failed > 0 {
		r.logger.Info().Int("flushed", flushed).Int("failed", failed).Msg("ai usage buffer flushed")
	}
}

// Close flushes any buffered usage and stops the flush loop. Safe to call
// more than once.
func (r *Recorder) Close() error {
	r.shutdown.Do(func() {
		r.mu.Lock()
		wasStarted := r.started
		if r.ticker != nil {
			r.ticker.Stop()
		}
		r.mu.Unlock()

		if wasStarted {
			close(r.done)
			r.wg.Wait()
		} else {
			r.flush()
		}
		r.logger.Info().Msg("ai usage recorder shutdown")
	})
	return nil
}

// Stats returns the current buffer size and totals, for tests.
func (r *Recorder) Stats() (bufferSize int, totalTokens int64, totalRequests int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bufferSize = len(r.counts)
	for _, delta := range r.counts {
		totalTokens += delta.tokens
		totalRequests += delta.requests
	}
	return
}
