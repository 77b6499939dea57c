package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats is the JSON view of pgxpool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

func GetPoolStats(pool *pgxpool.Pool) PoolStats {
	stat := pool.Stat()
	return PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// probe is what the health check needs from the database.
type probe interface {
	Ping(ctx context.Context) error
	TableExists(ctx context.Context, table string) (bool, error)
	Stats() PoolStats
}

type poolProbe struct {
	pool *pgxpool.Pool
}

func (p poolProbe) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p poolProbe) Stats() PoolStats { return GetPoolStats(p.pool) }

// TableExists resolves table against the connection's search_path.
func (p poolProbe) TableExists(ctx context.Context, table string) (bool, error) {
	var ok bool
	err := p.pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&ok)
	return ok, err
}

// HealthHandler reports 200 when the database answers and every table in
// required is visible in the configured schema, 503 otherwise.
func HealthHandler(pool *pgxpool.Pool, required ...string) echo.HandlerFunc {
	return healthHandler(poolProbe{pool: pool}, required)
}

func healthHandler(p probe, required []string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		body := map[string]interface{}{"pool": p.Stats()}

		if err := p.Ping(ctx); err != nil {
			body["status"] = "unhealthy"
			body["error"] = err.Error()
			return c.JSON(http.StatusServiceUnavailable, body)
		}

		missing := []string{}
		for _, table := range required {
			ok, err := p.TableExists(ctx, table)
			if err != nil {
				body["status"] = "unhealthy"
				body["error"] = err.Error()
				return c.JSON(http.StatusServiceUnavailable, body)
			}
			if !ok {
				missing = append(missing, table)
			}
		}
		if len(missing) > 0 {
			body["status"] = "unhealthy"
			body["missing_tables"] = missing
			return c.JSON(http.StatusServiceUnavailable, body)
		}

		body["status"] = "healthy"
		return c.JSON(http.StatusOK, body)
	}
}
