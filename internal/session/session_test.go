package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendigo/internal/core"
	"spendigo/internal/ledger"
	"spendigo/internal/log"
	"spendigo/internal/middleware/ratelimit"
	"spendigo/internal/storage/memory"
	"spendigo/internal/voice"
)

var testNow = time.Date(2025, 6, 24, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

type countingLLM struct{ calls int }

func (c *countingLLM) Extract(ctx context.Context, text string, today core.Date, sources []core.PaymentSource, categories []string) (voice.Result, error) {
	c.calls++
	if ctx.Err() != nil {
		return voice.Result{}, ctx.Err()
	}
	return voice.Result{Amount: core.Rupees(99), Vendor: "Cafe", Date: today, Category: "Food & Drink",
		SourceID: ledger.DefaultUPIID, Confidence: 90}, nil
}

func newManager(t *testing.T, llm voice.Completer, quotaSize int) (*Manager, *ratelimit.Limiter) {
	t.Helper()
	catalog := core.NewCatalog()
	l := ledger.NewSnapshotLedger(memory.New(), catalog, log.Nop(), ledger.Options{Clock: clock})
	limiter := ratelimit.NewLimiter(ratelimit.Config{Requests: quotaSize, Window: time.Minute, Clock: clock})
	t.Cleanup(limiter.Stop)
	x := voice.NewExtractor(llm, limiter, catalog, log.Nop(), clock)
	return NewManager(l, x, log.Nop(), clock), limiter
}

func TestOpen_SeedsDefaultsOnce(t *testing.T) {
	m, _ := newManager(t, nil, 15)
	ctx := context.Background()

	s1, err := m.Open(ctx, "alice")
	require.NoError(t, err)
	s2, err := m.Open(ctx, "alice")
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, testNow, s1.OpenedAt)

	sources, err := s1.Ledger().ListSources(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, sources, 3)
	assert.Equal(t, 1, m.Len())
}

func TestOpen_RequiresUser(t *testing.T) {
	m, _ := newManager(t, nil, 15)
	_, err := m.Open(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrNoUser)
	assert.Equal(t, 0, m.Len())
}

func TestClose_KeepsQuotaWindow(t *testing.T) {
	llm := &countingLLM{}
	m, _ := newManager(t, llm, 2)
	ctx := context.Background()

	paths := map[voice.Path]int{}
	for round := 0; round < 3; round++ {
		s, err := m.Open(ctx, "alice")
		require.NoError(t, err)
		for i := 0; i < 2; i++ {
			ext, err := s.Extract(ctx, "coffee 99 on upi")
			require.NoError(t, err)
			paths[ext.Path]++
		}
		assert.True(t, m.Close("alice"))
		assert.False(t, m.Close("alice"))
	}

	assert.Equal(t, 2, llm.calls, "LLM calls within one window must stay within quota")
	assert.Equal(t, 2, paths[voice.PathLLM])
	assert.Equal(t, 4, paths[voice.PathRateLimited])
}

func TestDictate(t *testing.T) {
	m, _ := newManager(t, nil, 15)
	ctx := context.Background()
	s, err := m.Open(ctx, "alice")
	require.NoError(t, err)

	t.Run("extracts from final segments", func(t *testing.T) {
		segments := make(chan voice.Segment, 3)
		segments <- voice.Segment{Text: "paid 500", Final: true}
		segments <- voice.Segment{Text: "for lun", Final: false}
		segments <- voice.Segment{Text: "for lunch yesterday", Final: true}
		close(segments)

		got, err := s.Dictate(ctx, voice.NewCapture(time.Second), segments)
		require.NoError(t, err)
		assert.Equal(t, "paid 500 for lunch yesterday", got.Transcript)
		assert.Equal(t, core.Rupees(500), got.Amount)
		assert.Equal(t, voice.PathFallback, got.Path)
	})

	t.Run("stopped capture still extracts captured text", func(t *testing.T) {
		segments := make(chan voice.Segment, 1)
		segments <- voice.Segment{Text: "auto 80 cash", Final: true}
		capture := voice.NewCapture(time.Second)

		done := make(chan voice.Extraction, 1)
		go func() {
			got, _ := s.Dictate(ctx, capture, segments)
			done <- got
		}()
		require.Eventually(t, func() bool { return capture.Text() != "" }, time.Second, time.Millisecond)
		capture.Stop()

		got := <-done
		assert.Equal(t, core.Rupees(80), got.Amount)
		assert.Equal(t, ledger.DefaultCashID, got.SourceID)
	})

	t.Run("empty capture", func(t *testing.T) {
		segments := make(chan voice.Segment)
		close(segments)
		_, err := s.Dictate(ctx, voice.NewCapture(time.Second), segments)
		assert.True(t, errors.Is(err, ErrEmptyTranscript))
	})
}

func TestCloseAll(t *testing.T) {
	m, _ := newManager(t, nil, 15)
	ctx := context.Background()
	for _, u := range []string{"alice", "bob"} {
		_, err := m.Open(ctx, u)
		require.NoError(t, err)
	}
	m.CloseAll()
	assert.Equal(t, 0, m.Len())
}
