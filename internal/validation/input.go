// Package validation содержит функции валидации входных данных.
package validation

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Форматы времени, принимаемые в параметрах запросов и телах заказов.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseAmount разбирает денежную сумму: строго положительное десятичное
// число с не более чем двумя знаками после запятой.
func ParseAmount(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	if d.Exponent() < -2 {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ParseHour разбирает час суток в диапазоне 0–23.
func ParseHour(s string) (int, bool) {
	h, err := strconv.Atoi(s)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}

// ParseTimestamp разбирает момент времени. Принимаются RFC 3339, локальное
// время без зоны и голая календарная дата.
func ParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseNonNegativeInt разбирает неотрицательное целое (limit, offset).
func ParseNonNegativeInt(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
