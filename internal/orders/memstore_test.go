package orders

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// memStore is the in-memory Store used by service tests. It mirrors the repo
// contract: transition legality enforced under the store's lock, history
// appended in the same critical section.
type memStore struct {
	mu      sync.Mutex
	seq     int64
	itemSeq int64
	clock   time.Time
	orders  map[int64]*Order
	history map[int64][]StatusHistoryEntry
}

func newMemStore() *memStore {
	return &memStore{
		clock:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		orders:  map[int64]*Order{},
		history: map[int64][]StatusHistoryEntry{},
	}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) CreateOrder(_ context.Context, in CreateOrderInput) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	o := &Order{
		ID:          m.seq,
		TotalAmount: in.TotalAmount,
		Notes:       in.Notes,
		Status:      StatusPending,
		CreatedAt:   m.tick(),
		Items:       []OrderItem{},
	}
	for _, it := range in.Items {
		m.itemSeq++
		item := OrderItem{
			ID: m.itemSeq, OrderID: o.ID,
			ProductID: it.ProductID, Quantity: it.Quantity,
			Options: []SelectedOption{},
		}
		for _, op := range it.SelectedOptions {
			m.itemSeq++
			item.Options = append(item.Options, SelectedOption{
				ID: m.itemSeq, OrderItemID: item.ID, Name: op.Name, Price: op.Price,
			})
		}
		o.Items = append(o.Items, item)
	}
	m.orders[o.ID] = o
	m.history[o.ID] = []StatusHistoryEntry{{
		ID: o.ID, OrderID: o.ID, FromStatus: nil, ToStatus: StatusPending, CreatedAt: o.CreatedAt,
	}}
	return copyOrder(o), nil
}

func (m *memStore) GetOrder(_ context.Context, id int64) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyOrder(o), nil
}

func (m *memStore) ListOrders(_ context.Context, f ListFilter) ([]*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*Order{}
	for _, o := range m.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !o.CreatedAt.Before(*f.To) {
			continue
		}
		if f.Search != "" && !matchesSearch(o, f.Search) {
			continue
		}
		out = append(out, copyOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) ListHistory(_ context.Context, orderID int64) ([]StatusHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StatusHistoryEntry{}, m.history[orderID]...), nil
}

func (m *memStore) UpdateStatus(_ context.Context, id int64, target Status, note *string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !CanTransition(o.Status, target) {
		return nil, ErrConflict
	}
	from := o.Status
	o.Status = target
	m.history[id] = append(m.history[id], StatusHistoryEntry{
		OrderID: id, FromStatus: &from, ToStatus: target, Note: note, CreatedAt: m.tick(),
	})
	return copyOrder(o), nil
}

func (m *memStore) CancelOrder(_ context.Context, id int64, reason string, note *string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !CanTransition(o.Status, StatusCanceled) {
		return nil, ErrConflict
	}
	from := o.Status
	now := m.tick()
	o.Status = StatusCanceled
	o.CancelReason = &reason
	o.CanceledAt = &now
	m.history[id] = append(m.history[id], StatusHistoryEntry{
		OrderID: id, FromStatus: &from, ToStatus: StatusCanceled,
		Reason: &reason, Note: note, CreatedAt: now,
	})
	return copyOrder(o), nil
}

// matchesSearch mirrors the repo's free-text predicate: the query matches the
// order id as text or any item's product name, case-insensitively.
func matchesSearch(o *Order, q string) bool {
	if strings.Contains(strconv.FormatInt(o.ID, 10), q) {
		return true
	}
	q = strings.ToLower(q)
	for _, it := range o.Items {
		if it.Product != nil && strings.Contains(strings.ToLower(it.Product.Name), q) {
			return true
		}
	}
	return false
}

func copyOrder(o *Order) *Order {
	c := *o
	c.Items = append([]OrderItem{}, o.Items...)
	return &c
}

// castRecorder records broadcast order ids and the statuses carried by each
// update, in delivery order.
type castRecorder struct {
	mu       sync.Mutex
	news     []int64
	updates  []int64
	statuses []Status
}

func (c *castRecorder) OrderNew(o *Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.news = append(c.news, o.ID)
}

func (c *castRecorder) OrderUpdate(o *Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, o.ID)
	c.statuses = append(c.statuses, o.Status)
}
