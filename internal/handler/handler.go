// Package handler содержит HTTP-обработчики API сервиса аналитики заказов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/restaurant-trends/internal/model"
	"github.com/mmeshcher/restaurant-trends/internal/repository"
	"github.com/mmeshcher/restaurant-trends/internal/service"
	"github.com/mmeshcher/restaurant-trends/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	ListRestaurants(ctx context.Context, f model.RestaurantFilter) ([]model.RestaurantWithStats, error)
	GetRestaurant(ctx context.Context, id string) (*model.Restaurant, error)
	CreateRestaurant(ctx context.Context, name, cuisine, location string) (*model.Restaurant, error)
	DeleteRestaurant(ctx context.Context, id string) error
	ListOrders(ctx context.Context, f model.OrderFilter) ([]model.OrderWithRestaurant, error)
	CreateOrder(ctx context.Context, restaurantID, amount, timestamp string) (*model.Order, error)
	RestaurantAnalytics(ctx context.Context, restaurantID string, f model.OrderFilter) (*model.Analytics, error)
	TopRestaurants(ctx context.Context, f model.TopFilter) ([]model.RestaurantWithStats, error)
	DashboardStats(ctx context.Context) (*model.DashboardStats, error)
	SeedDemoData(ctx context.Context) (*service.SeedResult, error)
}

// Handler реализует HTTP-обработчики API сервиса аналитики заказов.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeValidationError(w http.ResponseWriter, fields []string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Validation failed", Details: fields})
}

type restaurantResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Cuisine   string `json:"cuisine"`
	Location  string `json:"location"`
	CreatedAt string `json:"createdAt"`
}

type restaurantWithStatsResponse struct {
	restaurantResponse
	TotalRevenue  string `json:"totalRevenue"`
	TotalOrders   int    `json:"totalOrders"`
	AvgOrderValue string `json:"avgOrderValue"`
}

type orderResponse struct {
	ID           string `json:"id"`
	RestaurantID string `json:"restaurantId"`
	Amount       string `json:"amount"`
	Timestamp    string `json:"timestamp"`
	CreatedAt    string `json:"createdAt"`
}

type orderWithRestaurantResponse struct {
	orderResponse
	Restaurant restaurantResponse `json:"restaurant"`
}

func toRestaurantResponse(r model.Restaurant) restaurantResponse {
	return restaurantResponse{
		ID:        r.ID,
		Name:      r.Name,
		Cuisine:   r.Cuisine,
		Location:  r.Location,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
	}
}

func toStatsResponse(list []model.RestaurantWithStats) []restaurantWithStatsResponse {
	resp := make([]restaurantWithStatsResponse, 0, len(list))
	for _, rs := range list {
		resp = append(resp, restaurantWithStatsResponse{
			restaurantResponse: toRestaurantResponse(rs.Restaurant),
			TotalRevenue:       rs.TotalRevenue,
			TotalOrders:        rs.TotalOrders,
			AvgOrderValue:      rs.AvgOrderValue,
		})
	}
	return resp
}

func toOrderResponse(o model.Order) orderResponse {
	return orderResponse{
		ID:           o.ID,
		RestaurantID: o.RestaurantID,
		Amount:       o.Amount,
		Timestamp:    o.Timestamp.Format(time.RFC3339),
		CreatedAt:    o.CreatedAt.Format(time.RFC3339),
	}
}

// ListRestaurants возвращает рестораны с агрегатами по заказам.
func (h *Handler) ListRestaurants(w http.ResponseWriter, r *http.Request) {
	f := model.RestaurantFilter{
		Search:   r.URL.Query().Get("search"),
		Cuisine:  r.URL.Query().Get("cuisine"),
		Location: r.URL.Query().Get("location"),
	}

	var ok bool
	if f.Limit, f.Offset, ok = parsePagination(w, r); !ok {
		return
	}

	restaurants, err := h.service.ListRestaurants(r.Context(), f)
	if err != nil {
		h.logger.Error("list restaurants error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch restaurants")
		return
	}

	writeJSON(w, http.StatusOK, toStatsResponse(restaurants))
}

// GetRestaurant возвращает ресторан по идентификатору.
func (h *Handler) GetRestaurant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	restaurant, err := h.service.GetRestaurant(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrRestaurantNotFound) {
			writeError(w, http.StatusNotFound, "Restaurant not found")
			return
		}
		h.logger.Error("get restaurant error", zap.Error(err), zap.String("id", id))
		writeError(w, http.StatusInternalServerError, "Failed to fetch restaurant")
		return
	}

	writeJSON(w, http.StatusOK, toRestaurantResponse(*restaurant))
}

type createRestaurantRequest struct {
	Name     string `json:"name"`
	Cuisine  string `json:"cuisine"`
	Location string `json:"location"`
}

// CreateRestaurant создаёт новый ресторан.
func (h *Handler) CreateRestaurant(w http.ResponseWriter, r *http.Request) {
	var req createRestaurantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	restaurant, err := h.service.CreateRestaurant(r.Context(), req.Name, req.Cuisine, req.Location)
	if err != nil {
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			writeValidationError(w, vErr.Fields)
			return
		}
		h.logger.Error("create restaurant error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to create restaurant")
		return
	}

	writeJSON(w, http.StatusCreated, toRestaurantResponse(*restaurant))
}

// DeleteRestaurant удаляет ресторан без заказов.
func (h *Handler) DeleteRestaurant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.service.DeleteRestaurant(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrRestaurantNotFound) {
			writeError(w, http.StatusNotFound, "Restaurant not found")
			return
		}
		if errors.Is(err, repository.ErrRestaurantHasOrders) {
			writeError(w, http.StatusConflict, "Restaurant has orders")
			return
		}
		h.logger.Error("delete restaurant error", zap.Error(err), zap.String("id", id))
		writeError(w, http.StatusInternalServerError, "Failed to delete restaurant")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListOrders возвращает заказы, удовлетворяющие всем заданным фильтрам.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	f, ok := parseOrderFilter(w, r)
	if !ok {
		return
	}
	f.RestaurantID = r.URL.Query().Get("restaurantId")

	if f.Limit, f.Offset, ok = parsePagination(w, r); !ok {
		return
	}

	orders, err := h.service.ListOrders(r.Context(), f)
	if err != nil {
		h.logger.Error("list orders error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}

	resp := make([]orderWithRestaurantResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, orderWithRestaurantResponse{
			orderResponse: toOrderResponse(o.Order),
			Restaurant:    toRestaurantResponse(o.Restaurant),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type createOrderRequest struct {
	RestaurantID string `json:"restaurantId"`
	Amount       string `json:"amount"`
	Timestamp    string `json:"timestamp"`
}

// CreateOrder создаёт новый заказ.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	order, err := h.service.CreateOrder(r.Context(), req.RestaurantID, req.Amount, req.Timestamp)
	if err != nil {
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			writeValidationError(w, vErr.Fields)
			return
		}
		h.logger.Error("create order error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to create order")
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(*order))
}

// RestaurantAnalytics возвращает аналитику по одному ресторану.
func (h *Handler) RestaurantAnalytics(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	f, ok := parseOrderFilter(w, r)
	if !ok {
		return
	}

	analytics, err := h.service.RestaurantAnalytics(r.Context(), id, f)
	if err != nil {
		h.logger.Error("restaurant analytics error", zap.Error(err), zap.String("id", id))
		writeError(w, http.StatusInternalServerError, "Failed to fetch restaurant analytics")
		return
	}

	writeJSON(w, http.StatusOK, analytics)
}

// TopRestaurants возвращает рестораны с наибольшей выручкой за период.
func (h *Handler) TopRestaurants(w http.ResponseWriter, r *http.Request) {
	var f model.TopFilter
	var ok bool

	if f.StartDate, ok = queryTime(w, r, "startDate"); !ok {
		return
	}
	if f.EndDate, ok = queryTime(w, r, "endDate"); !ok {
		return
	}
	if f.Limit, _, ok = parsePagination(w, r); !ok {
		return
	}

	top, err := h.service.TopRestaurants(r.Context(), f)
	if err != nil {
		h.logger.Error("top restaurants error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch top restaurants")
		return
	}

	writeJSON(w, http.StatusOK, toStatsResponse(top))
}

// DashboardStats возвращает сводные показатели по всем данным.
func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.DashboardStats(r.Context())
	if err != nil {
		h.logger.Error("dashboard stats error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch dashboard stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

type seedResponse struct {
	Message string             `json:"message"`
	Data    service.SeedResult `json:"data"`
}

// Seed наполняет базу демонстрационными данными.
func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.SeedDemoData(r.Context())
	if err != nil {
		h.logger.Error("seed error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to seed database")
		return
	}

	writeJSON(w, http.StatusOK, seedResponse{
		Message: "Database seeded successfully",
		Data:    *res,
	})
}

// parseOrderFilter извлекает из строки запроса фильтры по заказам, кроме
// restaurantId и пагинации. Неразборчивое значение — ошибка 400 с именем поля.
func parseOrderFilter(w http.ResponseWriter, r *http.Request) (model.OrderFilter, bool) {
	var f model.OrderFilter
	var ok bool

	if f.StartDate, ok = queryTime(w, r, "startDate"); !ok {
		return f, false
	}
	if f.EndDate, ok = queryTime(w, r, "endDate"); !ok {
		return f, false
	}

	if v := r.URL.Query().Get("minAmount"); v != "" {
		d, okAmount := validation.ParseAmount(v)
		if !okAmount {
			writeValidationError(w, []string{"minAmount"})
			return f, false
		}
		f.MinAmount = &d
	}
	if v := r.URL.Query().Get("maxAmount"); v != "" {
		d, okAmount := validation.ParseAmount(v)
		if !okAmount {
			writeValidationError(w, []string{"maxAmount"})
			return f, false
		}
		f.MaxAmount = &d
	}

	if v := r.URL.Query().Get("startHour"); v != "" {
		hVal, okHour := validation.ParseHour(v)
		if !okHour {
			writeValidationError(w, []string{"startHour"})
			return f, false
		}
		f.StartHour = &hVal
	}
	if v := r.URL.Query().Get("endHour"); v != "" {
		hVal, okHour := validation.ParseHour(v)
		if !okHour {
			writeValidationError(w, []string{"endHour"})
			return f, false
		}
		f.EndHour = &hVal
	}

	return f, true
}

func parsePagination(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	if v := r.URL.Query().Get("limit"); v != "" {
		n, okInt := validation.ParseNonNegativeInt(v)
		if !okInt {
			writeValidationError(w, []string{"limit"})
			return 0, 0, false
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, okInt := validation.ParseNonNegativeInt(v)
		if !okInt {
			writeValidationError(w, []string{"offset"})
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}

func queryTime(w http.ResponseWriter, r *http.Request, name string) (*time.Time, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, true
	}

	t, ok := validation.ParseTimestamp(v)
	if !ok {
		writeValidationError(w, []string{name})
		return nil, false
	}

	return &t, true
}
