package orders

import (
	"context"
	"strings"
	"sync"
)

// Store is the persistence contract. *Repo is the pgx implementation; tests use
// an in-memory fake. Transition legality (terminal lockout, forward-only moves)
// is enforced inside the store's per-order transaction, input validation here.
type Store interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error)
	GetOrder(ctx context.Context, id int64) (*Order, error)
	ListOrders(ctx context.Context, f ListFilter) ([]*Order, error)
	ListHistory(ctx context.Context, orderID int64) ([]StatusHistoryEntry, error)
	UpdateStatus(ctx context.Context, id int64, target Status, note *string) (*Order, error)
	CancelOrder(ctx context.Context, id int64, reason string, note *string) (*Order, error)
}

// Broadcaster receives orders after their mutation has committed. Delivery is
// fire-and-forget: a failed or missed broadcast never fails the request, the
// polling read path is the correctness backstop.
type Broadcaster interface {
	OrderNew(o *Order)
	OrderUpdate(o *Order)
}

type NopBroadcaster struct{}

func (NopBroadcaster) OrderNew(*Order)    {}
func (NopBroadcaster) OrderUpdate(*Order) {}

type Service struct {
	store Store
	cast  Broadcaster

	// Per-order locks held across mutate+broadcast, so events for one order
	// are published in the same order their transitions commit. Cross-order
	// calls stay fully parallel.
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewService(store Store, cast Broadcaster) *Service {
	if cast == nil {
		cast = NopBroadcaster{}
	}
	return &Service{store: store, cast: cast, locks: map[int64]*sync.Mutex{}}
}

func (s *Service) orderLock(id int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Create validates and persists a new order with status PENDING and its intake
// history entry, then broadcasts order:new.
//
// Option names and prices are stored exactly as the client sent them; they are
// a snapshot of the menu the customer saw, not re-resolved against the live
// catalog.
func (s *Service) Create(ctx context.Context, in CreateOrderInput) (*Order, error) {
	if len(in.Items) == 0 {
		return nil, invalidf("no items in order")
	}
	for i, it := range in.Items {
		if it.ProductID <= 0 {
			return nil, invalidf("item %d: missing product id", i)
		}
		if it.Quantity < 1 {
			return nil, invalidf("item %d: quantity must be at least 1", i)
		}
	}
	if in.TotalAmount.IsNegative() {
		return nil, invalidf("total amount must not be negative")
	}

	o, err := s.store.CreateOrder(ctx, in)
	if err != nil {
		return nil, err
	}
	l := s.orderLock(o.ID)
	l.Lock()
	s.cast.OrderNew(o)
	l.Unlock()
	return o, nil
}

// Advance moves an order to target. Unknown statuses are rejected before any
// storage access; illegal transitions surface as ErrConflict from the store.
func (s *Service) Advance(ctx context.Context, id int64, target Status, note *string) (*Order, error) {
	if !ValidStatus(target) {
		return nil, invalidf("unknown status %q", string(target))
	}
	if target == StatusCanceled {
		return nil, invalidf("use cancel to cancel an order")
	}

	l := s.orderLock(id)
	l.Lock()
	defer l.Unlock()

	o, err := s.store.UpdateStatus(ctx, id, target, note)
	if err != nil {
		return nil, err
	}
	s.cast.OrderUpdate(o)
	return o, nil
}

func (s *Service) Cancel(ctx context.Context, id int64, reason string, note *string) (*Order, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, invalidf("cancel reason is required")
	}

	l := s.orderLock(id)
	l.Lock()
	defer l.Unlock()

	o, err := s.store.CancelOrder(ctx, id, reason, note)
	if err != nil {
		return nil, err
	}
	s.cast.OrderUpdate(o)
	return o, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.store.GetOrder(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Order, error) {
	return s.store.ListOrders(ctx, f)
}

func (s *Service) History(ctx context.Context, orderID int64) ([]StatusHistoryEntry, error) {
	return s.store.ListHistory(ctx, orderID)
}
