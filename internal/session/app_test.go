package session

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendmillion/internal/catalog"
	"spendmillion/internal/models"
)

// captureBoard records published entries so tests can assert on
// finalization side effects.
type captureBoard struct {
	mu      sync.Mutex
	entries []models.LeaderboardEntry
}

func (b *captureBoard) Publish(entry models.LeaderboardEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, entry)
}

func (b *captureBoard) published() []models.LeaderboardEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.LeaderboardEntry(nil), b.entries...)
}

func newTestApp(t *testing.T, cfg Config) (*App, *Repository, *captureBoard, *clockwork.FakeClock) {
	t.Helper()

	items, err := catalog.NewRepository(catalog.DefaultItems())
	require.NoError(t, err)

	repo := NewRepository()
	board := &captureBoard{}
	clock := clockwork.NewFakeClock()

	return NewApp(repo, items, board, nil, nil, clock, cfg), repo, board, clock
}

func TestStartResumesActiveSession(t *testing.T) {
	app, _, _, clock := newTestApp(t, DefaultConfig())
	ctx := context.Background()

	first, err := app.Start(ctx, 42, "alice")
	require.NoError(t, err)

	clock.Advance(1 * time.Minute)

	second, err := app.Start(ctx, 42, "alice")
	require.NoError(t, err)

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, first.ExpiresAt, second.ExpiresAt)
}

func TestStartResumeKeepsAccumulatedSpend(t *testing.T) {
	app, _, _, _ := newTestApp(t, DefaultConfig())
	ctx := context.Background()

	first, err := app.Start(ctx, 42, "alice")
	require.NoError(t, err)

	res := app.Spend(ctx, SpendRequest{SessionID: first.SessionID, UserID: 42, Item: "Diamonds", Quantity: 1, Amount: 50_000})
	require.True(t, res.OK)

	second, err := app.Start(ctx, 42, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(50_000), second.SpentTotal)
}

func TestStartCreatesNewSessionAfterExpiry(t *testing.T) {
	app, _, board, clock := newTestApp(t, DefaultConfig())
	ctx := context.Background()

	first, err := app.Start(ctx, 42, "alice")
	require.NoError(t, err)

	res := app.Spend(ctx, SpendRequest{SessionID: first.SessionID, UserID: 42, Item: "Diamonds", Quantity: 1, Amount: 50_000})
	require.True(t, res.OK)

	clock.Advance(6 * time.Minute)

	second, err := app.Start(ctx, 42, "alice")
	require.NoError(t, err)

	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Equal(t, int64(0), second.SpentTotal)

	// The expired run still counts as a finished game.
	published := board.published()
	require.Len(t, published, 1)
	assert.Equal(t, int64(42), published[0].UserID)
	assert.Equal(t, int64(50_000), published[0].FinalSpent)
}

func TestStartDifferentUsersGetDifferentSessions(t *testing.T) {
	app, _, _, _ := newTestApp(t, DefaultConfig())
	ctx := context.Background()

	a, err := app.Start(ctx, 1, "alice")
	require.NoError(t, err)
	b, err := app.Start(ctx, 2, "bob")
	require.NoError(t, err)

	assert.NotEqual(t, a.SessionID, b.SessionID)
}

func TestSpendAutoFinishesAtExactBudget(t *testing.T) {
	app, _, board, _ := newTestApp(t, DefaultConfig())
	ctx := context.Background()

	start, err := app.Start(ctx, 42, "alice")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		res := app.Spend(ctx, SpendRequest{SessionID: start.SessionID, UserID: 42, Item: "Supercar", Quantity: 1, Amount: 250_000})
		require.True(t, res.OK)
		assert.False(t, res.Finished)
	}

	res := app.Spend(ctx, SpendRequest{SessionID: start.SessionID, UserID: 42, Item: "Supercar", Quantity: 1, Amount: 250_000})
	require.True(t, res.OK)
	assert.True(t, res.Finished)
	assert.Equal(t, int64(1_000_000), res.SpentTotal)
	assert.Equal(t, int64(0), res.Remaining)

	published := board.published()
	require.Len(t, published, 1)
	assert.Equal(t, int64(1_000_000), published[0].FinalSpent)

	// Further spends hit the finished wall, not the expiry one.
	res = app.Spend(ctx, SpendRequest{SessionID: start.SessionID, UserID: 42, Item: "Diamonds", Quantity: 1, Amount: 50_000})
	assert.False(t, res.OK)
	assert.Equal(t, ReasonSessionFinished, res.Reason)
}

func TestSpendMultiQuantity(t *testing.T) {
	app, _, _, _ := newTestApp(t, DefaultConfig())
	ctx := context.Background()

	start, err := app.Start(ctx, 42, "alice")
	require.NoError(t, err)

	res := app.Spend(ctx, SpendRequest{SessionID: start.SessionID, UserID: 42, Item: "Diamonds", Quantity: 3, Amount: 150_000})
	require.True(t, res.OK)
	assert.Equal(t, int64(150_000), res.SpentTotal)
	assert.Equal(t, int64(850_000), res.Remaining)
}

func TestSpendUnknownSession(t *testing.T) {
	app, _, _, _ := newTestApp(t, DefaultConfig())

	res := app.Spend(context.Background(), SpendRequest{SessionID: "nope", UserID: 42, Item: "Diamonds", Quantity: 1, Amount: 50_000})
	assert.False(t, res.OK)
	assert.Equal(t, ReasonSessionNotFound, res.Reason)
}

func TestSpendRejectsUnknownItem(t *testing.T) {
	app, _, _, _ := newTestApp(t, DefaultConfig())
	ctx := context.Background()

	start, err := app.Start(ctx, 42, "alice")
	require.NoError(t, err)

	res := app.Spend(ctx, SpendRequest{SessionID: start.SessionID, UserID: 42, Item: "Moon base", Quantity: 1, Amount: 50_000})
	assert.False(t, res.OK)
	assert.Equal(t, ReasonInvalidItem, res.Reason)
	assert.Equal(t, int64(0), res.SpentTotal)
}

func TestSpendRejectsNonPositiveQuantity(t *testing.T) {
	app, _, _, _ := newTestApp(t, DefaultConfig())
	ctx := context.Background()

	start, err := app.Start(ctx, 42, "alice")
	require.NoError(t, err)

	for _, quantity := range []int64{0, -1} {
		res := app.Spend(ctx, SpendRequest{SessionID: start.SessionID, UserID: 42, Item: "Diamonds", Quantity: quantity, Amount: 0})
		assert.False(t, res.OK)
		assert.Equal(t, ReasonInvalidItem, res.Reason)
	}
}

func TestSpendRejectsTamperedAmount(t *testing.T) {
	app, repo, _, _ := newTestApp(t, DefaultConfig())
	ctx := context.Background()

	start, err := app.Start(ctx, 42, "alice")
	require.NoError(t, err)

	res := app.Spend(ctx, SpendRequest{SessionID: start.SessionID, UserID: 42, Item: "Diamonds", Quantity: 1, Amount: 1})
	assert.False(t, res.OK)
	assert.Equal(t, ReasonAmountMismatch, res.Reason)

	snap, ok := repo.Snapshot(start.SessionID)
	require.True(t, ok)
	assert.Empty(t, snap.Purchases)
	assert.Equal(t, int64(0), snap.SpentTotal)
}

func TestSpendRejectsOverBudgetWithoutPartialApply(t *testing.T) {
	app, repo, _, _ := newTestApp(t, Config{Budget: 100_000, Duration: 5 * time.Minute})
	ctx := context.Background()

	start, err := app.Start(ctx, 42, "alice")
	require.NoError(t, err)

	res := app.Spend(ctx, SpendRequest{SessionID: start.SessionID, UserID: 42, Item: "Diamonds", Quantity: 1, Amount: 50_000})
	require.True(t, res.OK)

	// 50k left, a 90k watch must be rejected whole.
	res = app.Spend(ctx, SpendRequest{SessionID: start.SessionID, UserID: 42, Item: "Luxury watch", Quantity: 1, Amount: 90_000})
	assert.False(t, res.OK)
	assert.Equal(t, ReasonInsufficientBudget, res.Reason)
	assert.Equal(t, int64(50_000), res.SpentTotal)
	assert.Equal(t, int64(50_000), res.Remaining)

	snap, ok := repo.Snapshot(start.SessionID)
	require.True(t, ok)
	assert.Len(t, snap.Purchases, 1)
}

func TestSpendAfterExpiryFinalizes(t *testing.T) {
	app, _, board, clock := newTestApp(t, DefaultConfig())
	ctx := context.Background()

	start, err := app.Start(ctx, 42, "alice")
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)

	res := app.Spend(ctx, SpendRequest{SessionID: start.SessionID, UserID: 42, Item: "Diamonds", Quantity: 1, Amount: 50_000})
	assert.False(t, res.OK)
	assert.Equal(t, ReasonSessionExpired, res.Reason)
	assert.Len(t, board.published(), 1)
}

func TestSpendPurchasesSumMatchesTotal(t *testing.T) {
	app, repo, _, _ := newTestApp(t, DefaultConfig())
	ctx := context.Background()

	start, err := app.Start(ctx, 42, "alice")
	require.NoError(t, err)

	spends := []SpendRequest{
		{SessionID: start.SessionID, UserID: 42, Item: "Supercar", Quantity: 1, Amount: 250_000},
		{SessionID: start.SessionID, UserID: 42, Item: "Diamonds", Quantity: 2, Amount: 100_000},
		{SessionID: start.SessionID, UserID: 42, Item: "Charity donation", Quantity: 5, Amount: 50_000},
	}
	for _, req := range spends {
		require.True(t, app.Spend(ctx, req).OK)
	}

	snap, ok := repo.Snapshot(start.SessionID)
	require.True(t, ok)

	var sum int64
	for _, p := range snap.Purchases {
		assert.Equal(t, p.UnitPrice*p.Quantity, p.TotalPrice)
		sum += p.TotalPrice
	}
	assert.Equal(t, snap.SpentTotal, sum)
	assert.Equal(t, int64(400_000), sum)
}

func TestConcurrentSpendsNeverExceedBudget(t *testing.T) {
	app, repo, _, _ := newTestApp(t, Config{Budget: 500_000, Duration: 5 * time.Minute})
	ctx := context.Background()

	start, err := app.Start(ctx, 42, "alice")
	require.NoError(t, err)

	const workers = 8
	results := make(chan SpendResult, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- app.Spend(ctx, SpendRequest{SessionID: start.SessionID, UserID: 42, Item: "Penthouse rental (week)", Quantity: 1, Amount: 300_000})
		}()
	}
	wg.Wait()
	close(results)

	okCount := 0
	for res := range results {
		if res.OK {
			okCount++
		} else {
			assert.Equal(t, ReasonInsufficientBudget, res.Reason)
		}
	}
	assert.Equal(t, 1, okCount)

	snap, ok := repo.Snapshot(start.SessionID)
	require.True(t, ok)
	assert.Equal(t, int64(300_000), snap.SpentTotal)
	assert.LessOrEqual(t, snap.SpentTotal, snap.Budget)
}

func TestFinishIsIdempotent(t *testing.T) {
	app, _, board, _ := newTestApp(t, DefaultConfig())
	ctx := context.Background()

	start, err := app.Start(ctx, 42, "alice")
	require.NoError(t, err)

	res := app.Spend(ctx, SpendRequest{SessionID: start.SessionID, UserID: 42, Item: "Diamonds", Quantity: 1, Amount: 50_000})
	require.True(t, res.OK)

	first, reason := app.Finish(ctx, start.SessionID, 42)
	require.Empty(t, reason)
	assert.True(t, first.Finished)
	assert.Equal(t, int64(50_000), first.SpentTotal)

	second, reason := app.Finish(ctx, start.SessionID, 42)
	require.Empty(t, reason)
	assert.Equal(t, first, second)

	// Finalization side effects fire exactly once.
	assert.Len(t, board.published(), 1)
}

func TestFinishUnknownSession(t *testing.T) {
	app, _, _, _ := newTestApp(t, DefaultConfig())

	_, reason := app.Finish(context.Background(), "nope", 42)
	assert.Equal(t, ReasonSessionNotFound, reason)
}

func TestFinishAllowsNewStart(t *testing.T) {
	app, _, _, _ := newTestApp(t, DefaultConfig())
	ctx := context.Background()

	first, err := app.Start(ctx, 42, "alice")
	require.NoError(t, err)

	_, reason := app.Finish(ctx, first.SessionID, 42)
	require.Empty(t, reason)

	second, err := app.Start(ctx, 42, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID, second.SessionID)
}

func TestSpendRejectsHugeQuantityWithoutOverflow(t *testing.T) {
	app, repo, _, _ := newTestApp(t, DefaultConfig())
	ctx := context.Background()

	start, err := app.Start(ctx, 42, "alice")
	require.NoError(t, err)

	res := app.Spend(ctx, SpendRequest{SessionID: start.SessionID, UserID: 42, Item: "Diamonds", Quantity: 1, Amount: 30_000})
	require.True(t, res.OK)

	// The largest quantity whose total still fits in int64. Adding that
	// total to the running spend would wrap negative; the rejection must
	// come from the budget check, not from luck.
	quantity := int64(math.MaxInt64) / 250_000
	res = app.Spend(ctx, SpendRequest{
		SessionID: start.SessionID,
		UserID:    42,
		Item:      "Supercar",
		Quantity:  quantity,
		Amount:    quantity * 250_000,
	})
	assert.False(t, res.OK)
	assert.Equal(t, ReasonInsufficientBudget, res.Reason)
	assert.Equal(t, int64(30_000), res.SpentTotal)

	snap, ok := repo.Snapshot(start.SessionID)
	require.True(t, ok)
	assert.Equal(t, int64(30_000), snap.SpentTotal)
	assert.GreaterOrEqual(t, snap.SpentTotal, int64(0))
	assert.LessOrEqual(t, snap.SpentTotal, snap.Budget)
}

func TestSpendRejectsForeignSession(t *testing.T) {
	app, repo, _, _ := newTestApp(t, DefaultConfig())
	ctx := context.Background()

	start, err := app.Start(ctx, 42, "alice")
	require.NoError(t, err)

	res := app.Spend(ctx, SpendRequest{SessionID: start.SessionID, UserID: 99, Item: "Diamonds", Quantity: 1, Amount: 50_000})
	assert.False(t, res.OK)
	assert.Equal(t, ReasonForeignSession, res.Reason)
	// The owner's totals must not leak to the caller.
	assert.Equal(t, int64(0), res.SpentTotal)
	assert.Equal(t, int64(0), res.Remaining)

	snap, ok := repo.Snapshot(start.SessionID)
	require.True(t, ok)
	assert.Equal(t, int64(0), snap.SpentTotal)
}

func TestFinishRejectsForeignSession(t *testing.T) {
	app, _, board, _ := newTestApp(t, DefaultConfig())
	ctx := context.Background()

	start, err := app.Start(ctx, 42, "alice")
	require.NoError(t, err)

	_, reason := app.Finish(ctx, start.SessionID, 99)
	assert.Equal(t, ReasonForeignSession, reason)
	assert.Empty(t, board.published())

	// The owner can still play and finish.
	res := app.Spend(ctx, SpendRequest{SessionID: start.SessionID, UserID: 42, Item: "Diamonds", Quantity: 1, Amount: 50_000})
	require.True(t, res.OK)
	_, reason = app.Finish(ctx, start.SessionID, 42)
	assert.Empty(t, reason)
}
