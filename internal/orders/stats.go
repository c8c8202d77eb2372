package orders

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type DishSales struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type RecentOrder struct {
	ID          int64           `json:"id"`
	Status      Status          `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	ItemCount   int             `json:"itemCount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type Stats struct {
	TodayOrders        int             `json:"todayOrders"`
	TodayRevenue       decimal.Decimal `json:"todayRevenue"`
	TotalOrders        int             `json:"totalOrders"`
	TotalRevenue       decimal.Decimal `json:"totalRevenue"`
	AvgOrderValue      decimal.Decimal `json:"avgOrderValue"`
	PendingOrders      int             `json:"pendingOrders"`
	StatusDistribution map[Status]int  `json:"statusDistribution"`
	TopDishes          []DishSales     `json:"topDishes"`
	RecentOrders       []RecentOrder   `json:"recentOrders"`
}

// Stats aggregates the dashboard numbers from the full order list. Read-only
// consumer of the query path; nothing here mutates orders.
func (s *Service) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	all, err := s.store.ListOrders(ctx, ListFilter{})
	if err != nil {
		return nil, err
	}

	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	st := &Stats{
		TotalOrders: len(all),
		StatusDistribution: map[Status]int{
			StatusPending: 0, StatusPreparing: 0, StatusReady: 0,
			StatusCompleted: 0, StatusCanceled: 0,
		},
		TopDishes:    []DishSales{},
		RecentOrders: []RecentOrder{},
	}

	sales := map[int64]*DishSales{}
	for _, o := range all {
		st.TotalRevenue = st.TotalRevenue.Add(o.TotalAmount)
		if !o.CreatedAt.Before(startOfToday) {
			st.TodayOrders++
			st.TodayRevenue = st.TodayRevenue.Add(o.TotalAmount)
		}
		st.StatusDistribution[o.Status]++

		itemCount := 0
		for _, it := range o.Items {
			itemCount += it.Quantity
			if it.Product == nil {
				continue
			}
			d, ok := sales[it.Product.ID]
			if !ok {
				d = &DishSales{ID: it.Product.ID, Name: it.Product.Name}
				sales[it.Product.ID] = d
			}
			d.Quantity += it.Quantity
			d.Revenue = d.Revenue.Add(it.Product.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
		if len(st.RecentOrders) < 5 {
			st.RecentOrders = append(st.RecentOrders, RecentOrder{
				ID: o.ID, Status: o.Status, TotalAmount: o.TotalAmount,
				ItemCount: itemCount, CreatedAt: o.CreatedAt,
			})
		}
	}

	if len(all) > 0 {
		st.AvgOrderValue = st.TotalRevenue.Div(decimal.NewFromInt(int64(len(all)))).Round(2)
	}
	st.PendingOrders = st.StatusDistribution[StatusPending] + st.StatusDistribution[StatusPreparing]

	for _, d := range sales {
		st.TopDishes = append(st.TopDishes, *d)
	}
	sort.Slice(st.TopDishes, func(i, j int) bool {
		if st.TopDishes[i].Quantity != st.TopDishes[j].Quantity {
			return st.TopDishes[i].Quantity > st.TopDishes[j].Quantity
		}
		return st.TopDishes[i].ID < st.TopDishes[j].ID
	})
	if len(st.TopDishes) > 5 {
		st.TopDishes = st.TopDishes[:5]
	}
	return st, nil
}
