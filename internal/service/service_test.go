package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/restaurant-trends/internal/model"
	"github.com/mmeshcher/restaurant-trends/internal/repository"
)

type stubRepo struct {
	restaurantsResp []model.RestaurantWithStats
	restaurantsErr  error
	lastRestFilter  model.RestaurantFilter

	getRestaurant    *model.Restaurant
	getRestaurantErr error

	createdRestaurant *model.Restaurant
	createRestErr     error

	deleteErr error

	ordersResp      []model.OrderWithRestaurant
	ordersErr       error
	lastOrderFilter model.OrderFilter

	createdOrder   *model.Order
	createOrderErr error
	lastAmount     string
	lastTimestamp  time.Time

	analyticsResp      *model.Analytics
	analyticsErr       error
	lastAnalyticsID    string
	lastAnalyticsOrder model.OrderFilter

	topResp       []model.RestaurantWithStats
	topErr        error
	lastTopFilter model.TopFilter

	statsResp *model.DashboardStats
	statsErr  error

	resetErr     error
	seedInserted []repository.SeedOrder
	insertErr    error
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) ListRestaurants(ctx context.Context, f model.RestaurantFilter) ([]model.RestaurantWithStats, error) {
	s.lastRestFilter = f
	return s.restaurantsResp, s.restaurantsErr
}

func (s *stubRepo) GetRestaurant(ctx context.Context, id string) (*model.Restaurant, error) {
	return s.getRestaurant, s.getRestaurantErr
}

func (s *stubRepo) CreateRestaurant(ctx context.Context, name, cuisine, location string) (*model.Restaurant, error) {
	if s.createRestErr != nil {
		return nil, s.createRestErr
	}
	if s.createdRestaurant != nil {
		return s.createdRestaurant, nil
	}
	return &model.Restaurant{ID: "r-" + name, Name: name, Cuisine: cuisine, Location: location}, nil
}

func (s *stubRepo) DeleteRestaurant(ctx context.Context, id string) error {
	return s.deleteErr
}

func (s *stubRepo) ListOrders(ctx context.Context, f model.OrderFilter) ([]model.OrderWithRestaurant, error) {
	s.lastOrderFilter = f
	return s.ordersResp, s.ordersErr
}

func (s *stubRepo) CreateOrder(ctx context.Context, restaurantID, amount string, timestamp time.Time) (*model.Order, error) {
	s.lastAmount = amount
	s.lastTimestamp = timestamp
	return s.createdOrder, s.createOrderErr
}

func (s *stubRepo) RestaurantAnalytics(ctx context.Context, restaurantID string, f model.OrderFilter) (*model.Analytics, error) {
	s.lastAnalyticsID = restaurantID
	s.lastAnalyticsOrder = f
	return s.analyticsResp, s.analyticsErr
}

func (s *stubRepo) TopRestaurants(ctx context.Context, f model.TopFilter) ([]model.RestaurantWithStats, error) {
	s.lastTopFilter = f
	return s.topResp, s.topErr
}

func (s *stubRepo) DashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	return s.statsResp, s.statsErr
}

func (s *stubRepo) ResetData(ctx context.Context) error {
	return s.resetErr
}

func (s *stubRepo) InsertOrders(ctx context.Context, orders []repository.SeedOrder) (int, error) {
	s.seedInserted = orders
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	return len(orders), nil
}

func intPtr(n int) *int { return &n }

func TestListRestaurantsDefaultLimit(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)

	if _, err := svc.ListRestaurants(context.Background(), model.RestaurantFilter{}); err != nil {
		t.Fatalf("ListRestaurants error: %v", err)
	}

	if repo.lastRestFilter.Limit != 50 {
		t.Fatalf("default limit = %d, want 50", repo.lastRestFilter.Limit)
	}
	if repo.lastRestFilter.Offset != 0 {
		t.Fatalf("default offset = %d, want 0", repo.lastRestFilter.Offset)
	}
}

func TestListRestaurantsKeepsExplicitLimit(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)

	_, err := svc.ListRestaurants(context.Background(), model.RestaurantFilter{Limit: 7, Offset: 14})
	if err != nil {
		t.Fatalf("ListRestaurants error: %v", err)
	}

	if repo.lastRestFilter.Limit != 7 || repo.lastRestFilter.Offset != 14 {
		t.Fatalf("filter = %+v, want limit 7 offset 14", repo.lastRestFilter)
	}
}

func TestCreateRestaurantValidation(t *testing.T) {
	tests := []struct {
		name       string
		inName     string
		cuisine    string
		location   string
		wantFields []string
	}{
		{
			name:       "all empty",
			wantFields: []string{"name", "cuisine", "location"},
		},
		{
			name:       "whitespace name",
			inName:     "   ",
			cuisine:    "italian",
			location:   "Downtown",
			wantFields: []string{"name"},
		},
		{
			name:       "missing location",
			inName:     "Mario's",
			cuisine:    "italian",
			wantFields: []string{"location"},
		},
	}

	svc := NewService(&stubRepo{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateRestaurant(context.Background(), tt.inName, tt.cuisine, tt.location)

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(vErr.Fields) != len(tt.wantFields) {
				t.Fatalf("fields = %v, want %v", vErr.Fields, tt.wantFields)
			}
			for i, f := range tt.wantFields {
				if vErr.Fields[i] != f {
					t.Fatalf("fields = %v, want %v", vErr.Fields, tt.wantFields)
				}
			}
		})
	}
}

func TestCreateRestaurantSuccess(t *testing.T) {
	svc := NewService(&stubRepo{})

	rest, err := svc.CreateRestaurant(context.Background(), "Mario's", "italian", "Downtown")
	if err != nil {
		t.Fatalf("CreateRestaurant error: %v", err)
	}
	if rest.Name != "Mario's" {
		t.Fatalf("name = %q, want Mario's", rest.Name)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	tests := []struct {
		name         string
		restaurantID string
		amount       string
		timestamp    string
		wantFields   []string
	}{
		{
			name:         "negative amount",
			restaurantID: "r1",
			amount:       "-10.00",
			timestamp:    "2024-01-01T09:00:00Z",
			wantFields:   []string{"amount"},
		},
		{
			name:         "zero amount",
			restaurantID: "r1",
			amount:       "0",
			timestamp:    "2024-01-01T09:00:00Z",
			wantFields:   []string{"amount"},
		},
		{
			name:         "too many decimal places",
			restaurantID: "r1",
			amount:       "10.005",
			timestamp:    "2024-01-01T09:00:00Z",
			wantFields:   []string{"amount"},
		},
		{
			name:         "bad timestamp",
			restaurantID: "r1",
			amount:       "10.00",
			timestamp:    "yesterday",
			wantFields:   []string{"timestamp"},
		},
		{
			name:       "everything missing",
			wantFields: []string{"restaurantId", "amount", "timestamp"},
		},
	}

	svc := NewService(&stubRepo{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrder(context.Background(), tt.restaurantID, tt.amount, tt.timestamp)

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(vErr.Fields) != len(tt.wantFields) {
				t.Fatalf("fields = %v, want %v", vErr.Fields, tt.wantFields)
			}
			for i, f := range tt.wantFields {
				if vErr.Fields[i] != f {
					t.Fatalf("fields = %v, want %v", vErr.Fields, tt.wantFields)
				}
			}
		})
	}
}

func TestCreateOrderExactAmount(t *testing.T) {
	repo := &stubRepo{createdOrder: &model.Order{ID: "o1", Amount: "49.99"}}
	svc := NewService(repo)

	o, err := svc.CreateOrder(context.Background(), "r1", "49.99", "2024-01-01T09:00:00Z")
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}

	if repo.lastAmount != "49.99" {
		t.Fatalf("stored amount = %q, want 49.99", repo.lastAmount)
	}
	if o.Amount != "49.99" {
		t.Fatalf("returned amount = %q, want 49.99", o.Amount)
	}
}

func TestCreateOrderUnknownRestaurant(t *testing.T) {
	repo := &stubRepo{createOrderErr: repository.ErrUnknownRestaurant}
	svc := NewService(repo)

	_, err := svc.CreateOrder(context.Background(), "missing", "10.00", "2024-01-01T09:00:00Z")

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(vErr.Fields) != 1 || vErr.Fields[0] != "restaurantId" {
		t.Fatalf("fields = %v, want [restaurantId]", vErr.Fields)
	}
}

func TestCreateOrderStoreErrorPassesThrough(t *testing.T) {
	storeErr := errors.New("connection refused")
	repo := &stubRepo{createOrderErr: storeErr}
	svc := NewService(repo)

	_, err := svc.CreateOrder(context.Background(), "r1", "10.00", "2024-01-01T09:00:00Z")
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error passthrough, got %v", err)
	}
}

func TestListOrdersHourPairingRule(t *testing.T) {
	tests := []struct {
		name      string
		startHour *int
		endHour   *int
		wantStart *int
		wantEnd   *int
	}{
		{
			name:      "both supplied",
			startHour: intPtr(9),
			endHour:   intPtr(21),
			wantStart: intPtr(9),
			wantEnd:   intPtr(21),
		},
		{
			name:      "only start supplied",
			startHour: intPtr(18),
		},
		{
			name:    "only end supplied",
			endHour: intPtr(18),
		},
		{
			name: "neither supplied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &stubRepo{}
			svc := NewService(repo)

			_, err := svc.ListOrders(context.Background(), model.OrderFilter{
				StartHour: tt.startHour,
				EndHour:   tt.endHour,
			})
			if err != nil {
				t.Fatalf("ListOrders error: %v", err)
			}

			got := repo.lastOrderFilter
			if (got.StartHour == nil) != (tt.wantStart == nil) || (got.EndHour == nil) != (tt.wantEnd == nil) {
				t.Fatalf("hours = (%v, %v), want (%v, %v)", got.StartHour, got.EndHour, tt.wantStart, tt.wantEnd)
			}
			if tt.wantStart != nil && (*got.StartHour != *tt.wantStart || *got.EndHour != *tt.wantEnd) {
				t.Fatalf("hours = (%d, %d), want (%d, %d)", *got.StartHour, *got.EndHour, *tt.wantStart, *tt.wantEnd)
			}
		})
	}
}

func TestListOrdersDefaultLimit(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)

	if _, err := svc.ListOrders(context.Background(), model.OrderFilter{}); err != nil {
		t.Fatalf("ListOrders error: %v", err)
	}

	if repo.lastOrderFilter.Limit != 50 {
		t.Fatalf("default limit = %d, want 50", repo.lastOrderFilter.Limit)
	}
}

func TestRestaurantAnalyticsDropsPagination(t *testing.T) {
	repo := &stubRepo{analyticsResp: &model.Analytics{AvgOrderValue: "0"}}
	svc := NewService(repo)

	minAmount := decimal.RequireFromString("10.00")
	_, err := svc.RestaurantAnalytics(context.Background(), "r1", model.OrderFilter{
		RestaurantID: "ignored",
		MinAmount:    &minAmount,
		StartHour:    intPtr(18),
		Limit:        10,
		Offset:       5,
	})
	if err != nil {
		t.Fatalf("RestaurantAnalytics error: %v", err)
	}

	if repo.lastAnalyticsID != "r1" {
		t.Fatalf("restaurant id = %q, want r1", repo.lastAnalyticsID)
	}

	f := repo.lastAnalyticsOrder
	if f.RestaurantID != "" || f.Limit != 0 || f.Offset != 0 {
		t.Fatalf("filter not cleaned: %+v", f)
	}
	// одиночная граница часов отброшена
	if f.StartHour != nil || f.EndHour != nil {
		t.Fatalf("single-sided hour bound must be discarded, got (%v, %v)", f.StartHour, f.EndHour)
	}
	if f.MinAmount == nil || f.MinAmount.String() != "10" {
		t.Fatalf("min amount lost: %v", f.MinAmount)
	}
}

func TestTopRestaurantsDefaultLimit(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)

	if _, err := svc.TopRestaurants(context.Background(), model.TopFilter{}); err != nil {
		t.Fatalf("TopRestaurants error: %v", err)
	}

	if repo.lastTopFilter.Limit != 3 {
		t.Fatalf("default top limit = %d, want 3", repo.lastTopFilter.Limit)
	}
}

func TestDeleteRestaurantPassesSentinels(t *testing.T) {
	repo := &stubRepo{deleteErr: repository.ErrRestaurantHasOrders}
	svc := NewService(repo)

	err := svc.DeleteRestaurant(context.Background(), "r1")
	if !errors.Is(err, repository.ErrRestaurantHasOrders) {
		t.Fatalf("expected ErrRestaurantHasOrders, got %v", err)
	}
}

func TestSeedDemoData(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)

	res, err := svc.SeedDemoData(context.Background())
	if err != nil {
		t.Fatalf("SeedDemoData error: %v", err)
	}

	if res.Restaurants != 6 {
		t.Fatalf("restaurants = %d, want 6", res.Restaurants)
	}
	if res.Orders != len(repo.seedInserted) {
		t.Fatalf("orders = %d, want %d", res.Orders, len(repo.seedInserted))
	}
	// 30 дней по 5–15 заказов
	if res.Orders < 150 || res.Orders > 450 {
		t.Fatalf("orders = %d, want between 150 and 450", res.Orders)
	}
}

func TestGenerateSeedOrdersRanges(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	orders := generateSeedOrders([]string{"r1", "r2"}, now)

	min := decimal.RequireFromString("10.00")
	max := decimal.RequireFromString("150.00")

	for _, o := range orders {
		if o.RestaurantID != "r1" && o.RestaurantID != "r2" {
			t.Fatalf("unexpected restaurant id %q", o.RestaurantID)
		}

		h := o.Timestamp.Hour()
		if h < 8 || h > 23 {
			t.Fatalf("hour %d outside 8..23", h)
		}

		d, err := decimal.NewFromString(o.Amount)
		if err != nil {
			t.Fatalf("amount %q not a decimal: %v", o.Amount, err)
		}
		if d.LessThan(min) || d.GreaterThan(max) {
			t.Fatalf("amount %s outside 10.00..150.00", o.Amount)
		}
		if d.Exponent() < -2 {
			t.Fatalf("amount %s has more than two decimal places", o.Amount)
		}
	}
}
