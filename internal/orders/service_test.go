package orders

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() (*Service, *memStore, *castRecorder) {
	store := newMemStore()
	cast := &castRecorder{}
	return NewService(store, cast), store, cast
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// assertHistoryWalk checks the audit-trail invariants: the first entry has no
// prior state, each entry starts where the previous one ended, and the
// order's current status matches the last entry.
func assertHistoryWalk(t *testing.T, o *Order, hs []StatusHistoryEntry) {
	t.Helper()
	require.NotEmpty(t, hs)
	assert.Nil(t, hs[0].FromStatus)
	for i := 1; i < len(hs); i++ {
		require.NotNil(t, hs[i].FromStatus)
		assert.Equal(t, hs[i-1].ToStatus, *hs[i].FromStatus)
		assert.True(t, CanTransition(*hs[i].FromStatus, hs[i].ToStatus))
	}
	assert.Equal(t, hs[len(hs)-1].ToStatus, o.Status)
}

func TestCreateOrder(t *testing.T) {
	svc, _, cast := newTestService()
	ctx := context.Background()

	o, err := svc.Create(ctx, CreateOrderInput{
		Items:       []ItemInput{{ProductID: 1, Quantity: 2}},
		TotalAmount: dec("25.98"),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, o.Status)
	assert.True(t, o.TotalAmount.Equal(dec("25.98")))
	require.Len(t, o.Items, 1)
	assert.Equal(t, int64(1), o.Items[0].ProductID)
	assert.Equal(t, 2, o.Items[0].Quantity)

	hs, err := svc.History(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, hs, 1)
	assert.Nil(t, hs[0].FromStatus)
	assert.Equal(t, StatusPending, hs[0].ToStatus)

	assert.Equal(t, []int64{o.ID}, cast.news)
	assert.Empty(t, cast.updates)
}

func TestCreateOrderWithOptions(t *testing.T) {
	svc, _, _ := newTestService()

	o, err := svc.Create(context.Background(), CreateOrderInput{
		Items: []ItemInput{{
			ProductID: 3,
			Quantity:  1,
			SelectedOptions: []OptionInput{
				{Name: "Extra cheese", Price: dec("1.50")},
				{Name: "No onions", Price: dec("0.00")},
			},
		}},
		TotalAmount: dec("11.49"),
	})
	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	require.Len(t, o.Items[0].Options, 2)
	assert.Equal(t, "Extra cheese", o.Items[0].Options[0].Name)
	assert.True(t, o.Items[0].Options[0].Price.Equal(dec("1.50")))
}

func TestCreateOrderValidation(t *testing.T) {
	svc, _, cast := newTestService()
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateOrderInput
	}{
		{"empty items", CreateOrderInput{TotalAmount: dec("10")}},
		{"zero quantity", CreateOrderInput{
			Items:       []ItemInput{{ProductID: 1, Quantity: 0}},
			TotalAmount: dec("10"),
		}},
		{"missing product id", CreateOrderInput{
			Items:       []ItemInput{{Quantity: 1}},
			TotalAmount: dec("10"),
		}},
		{"negative total", CreateOrderInput{
			Items:       []ItemInput{{ProductID: 1, Quantity: 1}},
			TotalAmount: dec("-1"),
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.in)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
		})
	}
	assert.Empty(t, cast.news, "no broadcast for rejected orders")
}

func TestAdvanceFlow(t *testing.T) {
	svc, _, cast := newTestService()
	ctx := context.Background()

	o, err := svc.Create(ctx, CreateOrderInput{
		Items: []ItemInput{{ProductID: 1, Quantity: 1}}, TotalAmount: dec("8.99"),
	})
	require.NoError(t, err)

	o2, err := svc.Advance(ctx, o.ID, StatusPreparing, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusPreparing, o2.Status)

	o3, err := svc.Advance(ctx, o.ID, StatusReady, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, o3.Status)

	got, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, got.Status)

	hs, err := svc.History(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, hs, 3)
	assertHistoryWalk(t, got, hs)
	assert.Equal(t, []int64{o.ID, o.ID}, cast.updates)
}

func TestAdvanceSkipsAllowed(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	o, err := svc.Create(ctx, CreateOrderInput{
		Items: []ItemInput{{ProductID: 1, Quantity: 1}}, TotalAmount: dec("5"),
	})
	require.NoError(t, err)

	// PENDING -> READY without going through PREPARING
	got, err := svc.Advance(ctx, o.ID, StatusReady, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, got.Status)
}

func TestCancel(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	o, err := svc.Create(ctx, CreateOrderInput{
		Items: []ItemInput{{ProductID: 1, Quantity: 1}}, TotalAmount: dec("5"),
	})
	require.NoError(t, err)
	_, err = svc.Advance(ctx, o.ID, StatusPreparing, nil)
	require.NoError(t, err)

	got, err := svc.Cancel(ctx, o.ID, "out of stock", nil)
	require.NoError(t, err)

	assert.Equal(t, StatusCanceled, got.Status)
	require.NotNil(t, got.CancelReason)
	assert.Equal(t, "out of stock", *got.CancelReason)
	require.NotNil(t, got.CanceledAt)

	hs, err := svc.History(ctx, o.ID)
	require.NoError(t, err)
	last := hs[len(hs)-1]
	require.NotNil(t, last.FromStatus)
	assert.Equal(t, StatusPreparing, *last.FromStatus)
	assert.Equal(t, StatusCanceled, last.ToStatus)
	require.NotNil(t, last.Reason)
	assert.Equal(t, "out of stock", *last.Reason)
	assertHistoryWalk(t, got, hs)
}

func TestCancelFieldsOnlyWhenCanceled(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	o, err := svc.Create(ctx, CreateOrderInput{
		Items: []ItemInput{{ProductID: 1, Quantity: 1}}, TotalAmount: dec("5"),
	})
	require.NoError(t, err)
	got, err := svc.Advance(ctx, o.ID, StatusCompleted, nil)
	require.NoError(t, err)

	assert.Nil(t, got.CancelReason)
	assert.Nil(t, got.CanceledAt)
}

func TestAdvanceNotFound(t *testing.T) {
	svc, store, cast := newTestService()

	_, err := svc.Advance(context.Background(), 999999, StatusReady, nil)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, cast.updates)
	assert.Empty(t, store.history)
}

func TestAdvanceUnknownStatus(t *testing.T) {
	svc, _, cast := newTestService()
	ctx := context.Background()

	o, err := svc.Create(ctx, CreateOrderInput{
		Items: []ItemInput{{ProductID: 1, Quantity: 1}}, TotalAmount: dec("5"),
	})
	require.NoError(t, err)

	_, err = svc.Advance(ctx, o.ID, Status("BOGUS_STATUS"), nil)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	got, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	hs, _ := svc.History(ctx, o.ID)
	assert.Len(t, hs, 1)
	assert.Empty(t, cast.updates)
}

func TestAdvanceRejectsCanceledTarget(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	o, err := svc.Create(ctx, CreateOrderInput{
		Items: []ItemInput{{ProductID: 1, Quantity: 1}}, TotalAmount: dec("5"),
	})
	require.NoError(t, err)

	_, err = svc.Advance(ctx, o.ID, StatusCanceled, nil)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestTerminalLockout(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	o, err := svc.Create(ctx, CreateOrderInput{
		Items: []ItemInput{{ProductID: 1, Quantity: 1}}, TotalAmount: dec("5"),
	})
	require.NoError(t, err)
	_, err = svc.Advance(ctx, o.ID, StatusCompleted, nil)
	require.NoError(t, err)

	_, err = svc.Advance(ctx, o.ID, StatusReady, nil)
	require.ErrorIs(t, err, ErrConflict)

	_, err = svc.Cancel(ctx, o.ID, "too late", nil)
	require.ErrorIs(t, err, ErrConflict)
}

func TestBackwardMoveRejected(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	o, err := svc.Create(ctx, CreateOrderInput{
		Items: []ItemInput{{ProductID: 1, Quantity: 1}}, TotalAmount: dec("5"),
	})
	require.NoError(t, err)
	_, err = svc.Advance(ctx, o.ID, StatusReady, nil)
	require.NoError(t, err)

	_, err = svc.Advance(ctx, o.ID, StatusPreparing, nil)
	require.ErrorIs(t, err, ErrConflict)
}

func TestCancelRequiresReason(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	o, err := svc.Create(ctx, CreateOrderInput{
		Items: []ItemInput{{ProductID: 1, Quantity: 1}}, TotalAmount: dec("5"),
	})
	require.NoError(t, err)

	for _, reason := range []string{"", "   "} {
		_, err = svc.Cancel(ctx, o.ID, reason, nil)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
	}
}

func TestGetIdempotent(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	o, err := svc.Create(ctx, CreateOrderInput{
		Items: []ItemInput{{ProductID: 1, Quantity: 2}}, TotalAmount: dec("25.98"),
	})
	require.NoError(t, err)

	a, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	b, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHistoryOfUnknownOrderIsEmpty(t *testing.T) {
	svc, _, _ := newTestService()

	hs, err := svc.History(context.Background(), 424242)
	require.NoError(t, err)
	assert.Empty(t, hs)
}

// Broadcasts for one order must go out in the same order the transitions
// commit: the delivered status sequence has to match the history walk exactly,
// never a later snapshot before an earlier one.
func TestBroadcastOrderMatchesCommitOrder(t *testing.T) {
	svc, _, cast := newTestService()
	ctx := context.Background()

	o, err := svc.Create(ctx, CreateOrderInput{
		Items: []ItemInput{{ProductID: 1, Quantity: 1}}, TotalAmount: dec("5"),
	})
	require.NoError(t, err)

	targets := []Status{
		StatusPreparing, StatusReady, StatusCompleted,
		StatusPreparing, StatusReady, StatusCompleted,
	}
	var wg sync.WaitGroup
	for _, target := range targets {
		wg.Add(1)
		go func(target Status) {
			defer wg.Done()
			_, _ = svc.Advance(ctx, o.ID, target, nil)
		}(target)
	}
	wg.Wait()

	hs, err := svc.History(ctx, o.ID)
	require.NoError(t, err)

	committed := []Status{}
	for _, h := range hs[1:] {
		committed = append(committed, h.ToStatus)
	}
	assert.Equal(t, committed, cast.statuses)
}

func TestListSearch(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	burger, err := svc.Create(ctx, CreateOrderInput{
		Items: []ItemInput{{ProductID: 1, Quantity: 1}}, TotalAmount: dec("8.99"),
	})
	require.NoError(t, err)
	satay, err := svc.Create(ctx, CreateOrderInput{
		Items: []ItemInput{{ProductID: 2, Quantity: 2}}, TotalAmount: dec("12.00"),
	})
	require.NoError(t, err)

	// lists return the product snapshotted onto each item
	store.orders[burger.ID].Items[0].Product = &Product{ID: 1, Name: "Classic Burger"}
	store.orders[satay.ID].Items[0].Product = &Product{ID: 2, Name: "Chicken Satay"}

	got, err := svc.List(ctx, ListFilter{Search: "satay"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, satay.ID, got[0].ID)

	got, err = svc.List(ctx, ListFilter{Search: strconv.FormatInt(burger.ID, 10)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, burger.ID, got[0].ID)

	got, err = svc.List(ctx, ListFilter{Search: "no such dish"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

// Concurrent transitions on one order must serialize: whatever interleaving
// wins, the recorded history stays a legal walk and the current status matches
// its last entry.
func TestConcurrentAdvance(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	o, err := svc.Create(ctx, CreateOrderInput{
		Items: []ItemInput{{ProductID: 1, Quantity: 1}}, TotalAmount: dec("5"),
	})
	require.NoError(t, err)

	targets := []Status{StatusPreparing, StatusReady, StatusCompleted, StatusPreparing, StatusReady}
	var wg sync.WaitGroup
	for _, target := range targets {
		wg.Add(1)
		go func(target Status) {
			defer wg.Done()
			_, _ = svc.Advance(ctx, o.ID, target, nil)
		}(target)
	}
	wg.Wait()

	got, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	hs, err := svc.History(ctx, o.ID)
	require.NoError(t, err)
	assertHistoryWalk(t, got, hs)

	// no duplicate consecutive states
	for i := 1; i < len(hs); i++ {
		assert.NotEqual(t, hs[i-1].ToStatus, hs[i].ToStatus)
	}
}
