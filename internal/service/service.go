// Package service реализует бизнес-логику сервиса аналитики ресторанных заказов.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmeshcher/restaurant-trends/internal/model"
	"github.com/mmeshcher/restaurant-trends/internal/repository"
	"github.com/mmeshcher/restaurant-trends/internal/validation"
)

const (
	defaultListLimit = 50
	defaultTopLimit  = 3
)

// ValidationError описывает ошибку валидации входных данных и перечисляет
// нарушенные поля.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, ", ")
}

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	ListRestaurants(ctx context.Context, f model.RestaurantFilter) ([]model.RestaurantWithStats, error)
	GetRestaurant(ctx context.Context, id string) (*model.Restaurant, error)
	CreateRestaurant(ctx context.Context, name, cuisine, location string) (*model.Restaurant, error)
	DeleteRestaurant(ctx context.Context, id string) error
	ListOrders(ctx context.Context, f model.OrderFilter) ([]model.OrderWithRestaurant, error)
	CreateOrder(ctx context.Context, restaurantID, amount string, timestamp time.Time) (*model.Order, error)
	RestaurantAnalytics(ctx context.Context, restaurantID string, f model.OrderFilter) (*model.Analytics, error)
	TopRestaurants(ctx context.Context, f model.TopFilter) ([]model.RestaurantWithStats, error)
	DashboardStats(ctx context.Context) (*model.DashboardStats, error)
	ResetData(ctx context.Context) error
	InsertOrders(ctx context.Context, orders []repository.SeedOrder) (int, error)
}

// Service содержит бизнес-логику сервиса аналитики заказов.
type Service struct {
	repo Repository
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// ListRestaurants возвращает рестораны с агрегатами, упорядоченные по выручке.
func (s *Service) ListRestaurants(ctx context.Context, f model.RestaurantFilter) ([]model.RestaurantWithStats, error) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.ListRestaurants(ctx, f)
}

// GetRestaurant возвращает ресторан по идентификатору.
func (s *Service) GetRestaurant(ctx context.Context, id string) (*model.Restaurant, error) {
	return s.repo.GetRestaurant(ctx, id)
}

// CreateRestaurant создаёт ресторан. Все три поля обязательны и не пусты.
func (s *Service) CreateRestaurant(ctx context.Context, name, cuisine, location string) (*model.Restaurant, error) {
	var bad []string
	if strings.TrimSpace(name) == "" {
		bad = append(bad, "name")
	}
	if strings.TrimSpace(cuisine) == "" {
		bad = append(bad, "cuisine")
	}
	if strings.TrimSpace(location) == "" {
		bad = append(bad, "location")
	}
	if len(bad) > 0 {
		return nil, &ValidationError{Fields: bad}
	}

	return s.repo.CreateRestaurant(ctx, name, cuisine, location)
}

// DeleteRestaurant удаляет ресторан. Ресторан с заказами не удаляется:
// возвращается repository.ErrRestaurantHasOrders.
func (s *Service) DeleteRestaurant(ctx context.Context, id string) error {
	return s.repo.DeleteRestaurant(ctx, id)
}

// ListOrders возвращает заказы, удовлетворяющие всем заданным фильтрам.
func (s *Service) ListOrders(ctx context.Context, f model.OrderFilter) ([]model.OrderWithRestaurant, error) {
	return s.repo.ListOrders(ctx, normalizeOrderFilter(f))
}

// CreateOrder создаёт заказ. Сумма — строго положительное десятичное число
// с не более чем двумя знаками после запятой; момент времени обязателен.
// Ссылка на несуществующий ресторан отклоняется как ошибка валидации.
func (s *Service) CreateOrder(ctx context.Context, restaurantID, amount, timestamp string) (*model.Order, error) {
	var bad []string

	if strings.TrimSpace(restaurantID) == "" {
		bad = append(bad, "restaurantId")
	}

	d, ok := validation.ParseAmount(amount)
	if !ok {
		bad = append(bad, "amount")
	}

	ts, ok := validation.ParseTimestamp(timestamp)
	if !ok {
		bad = append(bad, "timestamp")
	}

	if len(bad) > 0 {
		return nil, &ValidationError{Fields: bad}
	}

	o, err := s.repo.CreateOrder(ctx, restaurantID, d.String(), ts)
	if err != nil {
		if errors.Is(err, repository.ErrUnknownRestaurant) {
			return nil, &ValidationError{Fields: []string{"restaurantId"}}
		}
		return nil, err
	}

	return o, nil
}

// RestaurantAnalytics возвращает аналитику по одному ресторану.
// Пагинация здесь не применяется.
func (s *Service) RestaurantAnalytics(ctx context.Context, restaurantID string, f model.OrderFilter) (*model.Analytics, error) {
	f.RestaurantID = ""
	f.Limit = 0
	f.Offset = 0
	f.StartHour, f.EndHour = pairedHours(f.StartHour, f.EndHour)
	return s.repo.RestaurantAnalytics(ctx, restaurantID, f)
}

// TopRestaurants возвращает рестораны с наибольшей выручкой за период.
func (s *Service) TopRestaurants(ctx context.Context, f model.TopFilter) ([]model.RestaurantWithStats, error) {
	if f.Limit <= 0 {
		f.Limit = defaultTopLimit
	}
	return s.repo.TopRestaurants(ctx, f)
}

// DashboardStats возвращает сводные показатели по всем данным.
func (s *Service) DashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	return s.repo.DashboardStats(ctx)
}

func normalizeOrderFilter(f model.OrderFilter) model.OrderFilter {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.StartHour, f.EndHour = pairedHours(f.StartHour, f.EndHour)
	return f
}

// pairedHours сохраняет границы часов только парой: одиночная граница не
// фильтрует вовсе.
func pairedHours(start, end *int) (*int, *int) {
	if start == nil || end == nil {
		return nil, nil
	}
	return start, end
}
