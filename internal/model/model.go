// Package model содержит доменные сущности сервиса аналитики ресторанных заказов.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Restaurant представляет ресторан.
type Restaurant struct {
	ID        string
	Name      string
	Cuisine   string
	Location  string
	CreatedAt time.Time
}

// Order описывает заказ ресторана. Amount хранится как точная десятичная
// строка с двумя знаками после запятой, без двоичного округления.
type Order struct {
	ID           string
	RestaurantID string
	Amount       string
	Timestamp    time.Time
	CreatedAt    time.Time
}

// RestaurantWithStats — ресторан вместе с агрегатами по его заказам.
// Денежные поля передаются строками в том виде, в котором их отдаёт хранилище.
type RestaurantWithStats struct {
	Restaurant
	TotalRevenue  string
	TotalOrders   int
	AvgOrderValue string
}

// OrderWithRestaurant — заказ вместе с рестораном, к которому он относится.
type OrderWithRestaurant struct {
	Order
	Restaurant Restaurant
}

// RestaurantFilter задаёт фильтры списка ресторанов.
type RestaurantFilter struct {
	Search   string
	Cuisine  string
	Location string
	Limit    int
	Offset   int
}

// OrderFilter задаёт фильтры по заказам. Nil-указатель означает отсутствие
// ограничения по соответствующему измерению. Границы часов действуют только
// парой: одиночная граница отбрасывается при нормализации.
type OrderFilter struct {
	RestaurantID string
	StartDate    *time.Time
	EndDate      *time.Time
	MinAmount    *decimal.Decimal
	MaxAmount    *decimal.Decimal
	StartHour    *int
	EndHour      *int
	Limit        int
	Offset       int
}

// TopFilter задаёт период и размер выборки лучших по выручке ресторанов.
type TopFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
}

// DatePoint — количество заказов за календарную дату.
type DatePoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// RevenuePoint — выручка за календарную дату.
type RevenuePoint struct {
	Date    string `json:"date"`
	Revenue string `json:"revenue"`
}

// HourPoint — количество заказов за час суток (0–23).
type HourPoint struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// Analytics содержит аналитику по одному ресторану. Даты и часы без заказов
// в ряды не включаются.
type Analytics struct {
	DailyOrders   []DatePoint    `json:"dailyOrders"`
	DailyRevenue  []RevenuePoint `json:"dailyRevenue"`
	AvgOrderValue string         `json:"avgOrderValue"`
	PeakHours     []HourPoint    `json:"peakHours"`
}

// DashboardStats — сводные показатели по всему набору данных.
type DashboardStats struct {
	TotalRevenue      string `json:"totalRevenue"`
	TotalOrders       int    `json:"totalOrders"`
	AvgOrderValue     string `json:"avgOrderValue"`
	ActiveRestaurants int    `json:"activeRestaurants"`
}
