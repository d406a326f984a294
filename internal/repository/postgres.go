// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/restaurant-trends/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrRestaurantNotFound возвращается, если ресторан с указанным идентификатором не найден.
var (
	ErrRestaurantNotFound = errors.New("restaurant not found")
	// ErrRestaurantHasOrders возвращается при попытке удалить ресторан, у которого есть заказы.
	ErrRestaurantHasOrders = errors.New("restaurant has orders")
	// ErrUnknownRestaurant возвращается, если заказ ссылается на несуществующий ресторан.
	ErrUnknownRestaurant = errors.New("order references unknown restaurant")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Если ошибка контекста — выходим сразу
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Колонки агрегатов приводятся к тексту, как их отдаёт форма отчёта:
// суммы сохраняют масштаб слагаемых («30.00»), нулевая сумма и среднее
// по пустому множеству рендерятся как «0».
const restaurantStatsColumns = `
	r.id, r.name, r.cuisine, r.location, r.created_at,
	COALESCE(SUM(o.amount), 0)::text AS total_revenue,
	COUNT(o.id)::int AS total_orders,
	COALESCE(AVG(o.amount), 0)::text AS avg_order_value`

const listRestaurantsQuery = `
	SELECT` + restaurantStatsColumns + `
	FROM restaurants r
	LEFT JOIN orders o ON o.restaurant_id = r.id
	WHERE ($1::text IS NULL OR r.name ILIKE '%' || $1 || '%')
	  AND ($2::text IS NULL OR r.cuisine = $2)
	  AND ($3::text IS NULL OR r.location = $3)
	GROUP BY r.id
	ORDER BY COALESCE(SUM(o.amount), 0) DESC, r.id
	LIMIT $4 OFFSET $5`

// ListRestaurants возвращает рестораны с агрегатами по их заказам.
// Рестораны без заказов входят в выдачу с нулевыми показателями.
func (r *PostgresRepository) ListRestaurants(ctx context.Context, f model.RestaurantFilter) ([]model.RestaurantWithStats, error) {
	rows, err := r.pool.Query(ctx, listRestaurantsQuery,
		nullableStr(f.Search), nullableStr(f.Cuisine), nullableStr(f.Location),
		f.Limit, f.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("select restaurants: %w", err)
	}
	defer rows.Close()

	return scanRestaurantStats(rows)
}

// GetRestaurant возвращает ресторан по идентификатору.
func (r *PostgresRepository) GetRestaurant(ctx context.Context, id string) (*model.Restaurant, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, cuisine, location, created_at FROM restaurants WHERE id = $1`,
		id,
	)

	var rest model.Restaurant
	err := row.Scan(&rest.ID, &rest.Name, &rest.Cuisine, &rest.Location, &rest.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRestaurantNotFound
		}
		return nil, fmt.Errorf("get restaurant: %w", err)
	}

	return &rest, nil
}

// CreateRestaurant сохраняет новый ресторан и возвращает его.
func (r *PostgresRepository) CreateRestaurant(ctx context.Context, name, cuisine, location string) (*model.Restaurant, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO restaurants (id, name, cuisine, location)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, name, cuisine, location, created_at`,
		uuid.NewString(), name, cuisine, location,
	)

	var rest model.Restaurant
	if err := row.Scan(&rest.ID, &rest.Name, &rest.Cuisine, &rest.Location, &rest.CreatedAt); err != nil {
		return nil, fmt.Errorf("create restaurant: %w", err)
	}

	return &rest, nil
}

// DeleteRestaurant удаляет ресторан. Ресторан с существующими заказами
// защищён внешним ключом: попытка удаления возвращает ErrRestaurantHasOrders.
func (r *PostgresRepository) DeleteRestaurant(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM restaurants WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return fmt.Errorf("%w: %s", ErrRestaurantHasOrders, id)
		}
		return fmt.Errorf("delete restaurant: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrRestaurantNotFound
	}

	return nil
}

const listOrdersQuery = `
	SELECT o.id, o.restaurant_id, o.amount::text, o.timestamp, o.created_at,
	       r.id, r.name, r.cuisine, r.location, r.created_at
	FROM orders o
	JOIN restaurants r ON r.id = o.restaurant_id
	WHERE ($1::text IS NULL OR o.restaurant_id = $1)
	  AND ($2::timestamp IS NULL OR o.timestamp >= $2)
	  AND ($3::timestamp IS NULL OR o.timestamp <= $3)
	  AND ($4::numeric IS NULL OR o.amount >= $4)
	  AND ($5::numeric IS NULL OR o.amount <= $5)
	  AND ($6::int IS NULL OR $7::int IS NULL
	       OR EXTRACT(HOUR FROM o.timestamp) BETWEEN $6 AND $7)
	ORDER BY o.timestamp DESC
	LIMIT $8 OFFSET $9`

// ListOrders возвращает заказы вместе с их ресторанами, от новых к старым.
func (r *PostgresRepository) ListOrders(ctx context.Context, f model.OrderFilter) ([]model.OrderWithRestaurant, error) {
	rows, err := r.pool.Query(ctx, listOrdersQuery,
		nullableStr(f.RestaurantID), f.StartDate, f.EndDate,
		decText(f.MinAmount), decText(f.MaxAmount),
		f.StartHour, f.EndHour,
		f.Limit, f.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var res []model.OrderWithRestaurant
	for rows.Next() {
		var o model.OrderWithRestaurant
		err := rows.Scan(
			&o.ID, &o.RestaurantID, &o.Amount, &o.Timestamp, &o.CreatedAt,
			&o.Restaurant.ID, &o.Restaurant.Name, &o.Restaurant.Cuisine,
			&o.Restaurant.Location, &o.Restaurant.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		res = append(res, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateOrder сохраняет новый заказ и возвращает его. Ссылочную целостность
// обеспечивает внешний ключ: заказ на несуществующий ресторан отклоняется.
func (r *PostgresRepository) CreateOrder(ctx context.Context, restaurantID, amount string, timestamp time.Time) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO orders (id, restaurant_id, amount, "timestamp")
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, restaurant_id, amount::text, "timestamp", created_at`,
		uuid.NewString(), restaurantID, amount, timestamp,
	)

	var o model.Order
	err := row.Scan(&o.ID, &o.RestaurantID, &o.Amount, &o.Timestamp, &o.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRestaurant, restaurantID)
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	return &o, nil
}

// Все четыре среза аналитики считаются по одному и тому же предикату.
const analyticsPredicate = `
	o.restaurant_id = $1
	  AND ($2::timestamp IS NULL OR o.timestamp >= $2)
	  AND ($3::timestamp IS NULL OR o.timestamp <= $3)
	  AND ($4::numeric IS NULL OR o.amount >= $4)
	  AND ($5::numeric IS NULL OR o.amount <= $5)
	  AND ($6::int IS NULL OR $7::int IS NULL
	       OR EXTRACT(HOUR FROM o.timestamp) BETWEEN $6 AND $7)`

const dailyOrdersQuery = `
	SELECT DATE(o.timestamp)::text, COUNT(*)::int
	FROM orders o
	WHERE` + analyticsPredicate + `
	GROUP BY DATE(o.timestamp)
	ORDER BY DATE(o.timestamp)`

const dailyRevenueQuery = `
	SELECT DATE(o.timestamp)::text, SUM(o.amount)::text
	FROM orders o
	WHERE` + analyticsPredicate + `
	GROUP BY DATE(o.timestamp)
	ORDER BY DATE(o.timestamp)`

const avgOrderValueQuery = `
	SELECT COALESCE(AVG(o.amount), 0)::text
	FROM orders o
	WHERE` + analyticsPredicate

const peakHoursQuery = `
	SELECT EXTRACT(HOUR FROM o.timestamp)::int, COUNT(*)::int
	FROM orders o
	WHERE` + analyticsPredicate + `
	GROUP BY EXTRACT(HOUR FROM o.timestamp)
	ORDER BY EXTRACT(HOUR FROM o.timestamp)`

// RestaurantAnalytics возвращает временные ряды и средний чек одного
// ресторана по отфильтрованному множеству его заказов.
func (r *PostgresRepository) RestaurantAnalytics(ctx context.Context, restaurantID string, f model.OrderFilter) (*model.Analytics, error) {
	args := []any{
		restaurantID, f.StartDate, f.EndDate,
		decText(f.MinAmount), decText(f.MaxAmount),
		f.StartHour, f.EndHour,
	}

	res := &model.Analytics{
		DailyOrders:  []model.DatePoint{},
		DailyRevenue: []model.RevenuePoint{},
		PeakHours:    []model.HourPoint{},
	}

	rows, err := r.pool.Query(ctx, dailyOrdersQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("select daily orders: %w", err)
	}
	for rows.Next() {
		var p model.DatePoint
		if err := rows.Scan(&p.Date, &p.Count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan daily orders: %w", err)
		}
		res.DailyOrders = append(res.DailyOrders, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	rows, err = r.pool.Query(ctx, dailyRevenueQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("select daily revenue: %w", err)
	}
	for rows.Next() {
		var p model.RevenuePoint
		if err := rows.Scan(&p.Date, &p.Revenue); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan daily revenue: %w", err)
		}
		res.DailyRevenue = append(res.DailyRevenue, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	var avgText string
	if err := r.pool.QueryRow(ctx, avgOrderValueQuery, args...).Scan(&avgText); err != nil {
		return nil, fmt.Errorf("select avg order value: %w", err)
	}
	avg, err := normalizeMoney(avgText)
	if err != nil {
		return nil, err
	}
	res.AvgOrderValue = avg

	rows, err = r.pool.Query(ctx, peakHoursQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("select peak hours: %w", err)
	}
	for rows.Next() {
		var p model.HourPoint
		if err := rows.Scan(&p.Hour, &p.Count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan peak hours: %w", err)
		}
		res.PeakHours = append(res.PeakHours, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// Границы периода входят в условие соединения, а не в WHERE: ресторан без
// заказов за период остаётся в выдаче с нулевыми показателями.
const topRestaurantsQuery = `
	SELECT` + restaurantStatsColumns + `
	FROM restaurants r
	LEFT JOIN orders o ON o.restaurant_id = r.id
	  AND ($1::timestamp IS NULL OR o.timestamp >= $1)
	  AND ($2::timestamp IS NULL OR o.timestamp <= $2)
	GROUP BY r.id
	ORDER BY COALESCE(SUM(o.amount), 0) DESC, r.id
	LIMIT $3`

// TopRestaurants возвращает рестораны с наибольшей выручкой за период.
func (r *PostgresRepository) TopRestaurants(ctx context.Context, f model.TopFilter) ([]model.RestaurantWithStats, error) {
	rows, err := r.pool.Query(ctx, topRestaurantsQuery, f.StartDate, f.EndDate, f.Limit)
	if err != nil {
		return nil, fmt.Errorf("select top restaurants: %w", err)
	}
	defer rows.Close()

	return scanRestaurantStats(rows)
}

const dashboardStatsQuery = `
	SELECT COALESCE(SUM(o.amount), 0)::text,
	       COUNT(o.id)::int,
	       COALESCE(AVG(o.amount), 0)::text,
	       COUNT(DISTINCT r.id)::int
	FROM restaurants r
	LEFT JOIN orders o ON o.restaurant_id = r.id`

// DashboardStats возвращает сводные показатели по всему набору данных.
func (r *PostgresRepository) DashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	var stats model.DashboardStats
	var avgText string

	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx, dashboardStatsQuery).Scan(
			&stats.TotalRevenue, &stats.TotalOrders, &avgText, &stats.ActiveRestaurants,
		)
	})
	if err != nil {
		return nil, fmt.Errorf("select dashboard stats: %w", err)
	}

	avg, err := normalizeMoney(avgText)
	if err != nil {
		return nil, err
	}
	stats.AvgOrderValue = avg

	return &stats, nil
}

// SeedOrder описывает заказ, вставляемый утилитой наполнения фикстурами.
type SeedOrder struct {
	RestaurantID string
	Amount       string
	Timestamp    time.Time
}

// ResetData удаляет все заказы и рестораны одной транзакцией.
func (r *PostgresRepository) ResetData(ctx context.Context) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM orders`); err != nil {
		return fmt.Errorf("delete orders: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM restaurants`); err != nil {
		return fmt.Errorf("delete restaurants: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

const seedBatchSize = 100

// InsertOrders вставляет заказы партиями и возвращает число вставленных строк.
func (r *PostgresRepository) InsertOrders(ctx context.Context, orders []SeedOrder) (int, error) {
	inserted := 0

	for start := 0; start < len(orders); start += seedBatchSize {
		end := min(start+seedBatchSize, len(orders))
		chunk := orders[start:end]

		err := r.withRetry(ctx, func() error {
			b := &pgx.Batch{}
			for _, o := range chunk {
				b.Queue(
					`INSERT INTO orders (id, restaurant_id, amount, "timestamp") VALUES ($1, $2, $3, $4)`,
					uuid.NewString(), o.RestaurantID, o.Amount, o.Timestamp,
				)
			}

			br := r.pool.SendBatch(ctx, b)
			defer br.Close()

			for range chunk {
				if _, err := br.Exec(); err != nil {
					return fmt.Errorf("insert seed order: %w", err)
				}
			}
			return nil
		})
		if err != nil {
			return inserted, err
		}

		inserted += len(chunk)
	}

	return inserted, nil
}

func scanRestaurantStats(rows pgx.Rows) ([]model.RestaurantWithStats, error) {
	var res []model.RestaurantWithStats
	for rows.Next() {
		var rs model.RestaurantWithStats
		var avgText string
		err := rows.Scan(
			&rs.ID, &rs.Name, &rs.Cuisine, &rs.Location, &rs.CreatedAt,
			&rs.TotalRevenue, &rs.TotalOrders, &avgText,
		)
		if err != nil {
			return nil, fmt.Errorf("scan restaurant stats: %w", err)
		}

		avg, err := normalizeMoney(avgText)
		if err != nil {
			return nil, err
		}
		rs.AvgOrderValue = avg

		res = append(res, rs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// normalizeMoney убирает хвостовые нули текста AVG: «15.0000000000000000»
// становится «15», «0» остаётся «0».
func normalizeMoney(s string) (string, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", fmt.Errorf("parse money value %q: %w", s, err)
	}
	return d.String(), nil
}

func nullableStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func decText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
