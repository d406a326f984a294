package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/restaurant-trends/internal/repository"
)

// SeedResult содержит количество созданных фикстурных записей.
type SeedResult struct {
	Restaurants int `json:"restaurants"`
	Orders      int `json:"orders"`
}

var seedRestaurants = []struct {
	name     string
	cuisine  string
	location string
}{
	{"Mario's Pizza Palace", "italian", "Downtown"},
	{"Sakura Sushi", "japanese", "Midtown"},
	{"El Taco Loco", "mexican", "South Side"},
	{"Burger Haven", "american", "Uptown"},
	{"Golden Dragon", "chinese", "Downtown"},
	{"Spice Garden", "indian", "Midtown"},
}

const (
	seedDays      = 30
	seedMinPerDay = 5
	seedMaxPerDay = 15
	seedFirstHour = 8
	seedLastHour  = 23
	seedMinCents  = 1000  // $10.00
	seedMaxCents  = 15000 // $150.00
)

// SeedDemoData очищает обе таблицы и наполняет их демонстрационными данными:
// шесть ресторанов и случайные заказы за последние 30 дней.
func (s *Service) SeedDemoData(ctx context.Context) (*SeedResult, error) {
	if err := s.repo.ResetData(ctx); err != nil {
		return nil, fmt.Errorf("reset data: %w", err)
	}

	ids := make([]string, 0, len(seedRestaurants))
	for _, sr := range seedRestaurants {
		rest, err := s.repo.CreateRestaurant(ctx, sr.name, sr.cuisine, sr.location)
		if err != nil {
			return nil, fmt.Errorf("seed restaurant %q: %w", sr.name, err)
		}
		ids = append(ids, rest.ID)
	}

	orders := generateSeedOrders(ids, time.Now())

	inserted, err := s.repo.InsertOrders(ctx, orders)
	if err != nil {
		return nil, fmt.Errorf("seed orders: %w", err)
	}

	return &SeedResult{Restaurants: len(ids), Orders: inserted}, nil
}

func generateSeedOrders(restaurantIDs []string, now time.Time) []repository.SeedOrder {
	var orders []repository.SeedOrder

	for day := 0; day < seedDays; day++ {
		date := now.AddDate(0, 0, -day)
		perDay := seedMinPerDay + rand.Intn(seedMaxPerDay-seedMinPerDay+1)

		for i := 0; i < perDay; i++ {
			hour := seedFirstHour + rand.Intn(seedLastHour-seedFirstHour+1)
			minute := rand.Intn(60)
			ts := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location())

			cents := seedMinCents + rand.Intn(seedMaxCents-seedMinCents+1)

			orders = append(orders, repository.SeedOrder{
				RestaurantID: restaurantIDs[rand.Intn(len(restaurantIDs))],
				Amount:       decimal.New(int64(cents), -2).StringFixed(2),
				Timestamp:    ts,
			})
		}
	}

	return orders
}
