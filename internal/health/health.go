// Package health provides health check implementations for the portal's
// external dependencies: the database, Redis, and the payment gateway.
package health

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// Checker is a single dependency probe.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// DBChecker implements health checking for SQL databases.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker creates a new database health checker.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the database.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// RedisChecker implements health checking for Redis.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// HealthCheck sends a PING command.
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// GatewayChecker probes the payment gateway endpoint. The gateway being
// down is reported but never fails the overall readiness: online payment
// degrades to the manual path.
type GatewayChecker struct {
	url    string
	client *http.Client
}

// NewGatewayChecker creates a gateway health checker.
func NewGatewayChecker(url string) *GatewayChecker {
	return &GatewayChecker{
		url:    url,
		client: &http.Client{Timeout: 3 * time.Second},
	}
}

// HealthCheck issues a HEAD request to the gateway endpoint.
func (g *GatewayChecker) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, g.url, nil)
	if err != nil {
		return fmt.Errorf("build gateway probe: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("gateway returned %d", resp.StatusCode)
	}
	return nil
}
