package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/jdbcx/jdbcx-sub006/internal/debug"
	"github.com/jdbcx/jdbcx-sub006/internal/pool"
	"github.com/jdbcx/jdbcx-sub006/internal/retry"
)

// ErrUnknownDatasource is returned for a datasource id that is not configured.
var ErrUnknownDatasource = errors.New("unknown datasource")

// Driver names registered by the blank imports in the command line.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite3"
)

// Datasource describes a database reachable under an id.
type Datasource struct {
	ID  string
	URL string
	// Driver is inferred from the URL scheme when empty.
	Driver       string
	MaxOpenConns int
	// HealthCheckInterval pings an open pool periodically when set.
	HealthCheckInterval time.Duration
}

// ParseURL maps a connection URL to a database/sql driver name and the
// data source name that driver expects.
//
//	postgres://u:p@host/db?sslmode=disable  -> postgres, key=value string
//	mysql://u:p@host:3306/db?parseTime=true -> mysql, u:p@tcp(host:3306)/db?parseTime=true
//	sqlite:/path/to.db, sqlite::memory:     -> sqlite3, /path/to.db
func ParseURL(raw string) (driver, dsn string, err error) {
	raw = strings.TrimSpace(raw)
	scheme, rest, ok := strings.Cut(raw, ":")
	if !ok || scheme == "" {
		return "", "", fmt.Errorf("connection url %q has no scheme", raw)
	}

	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		dsn, err := pq.ParseURL(raw)
		if err != nil {
			return "", "", fmt.Errorf("invalid postgres url: %w", err)
		}
		return DriverPostgres, dsn, nil
	case "mysql":
		dsn, err := mysqlDSN(raw)
		if err != nil {
			return "", "", err
		}
		return DriverMySQL, dsn, nil
	case "sqlite", "sqlite3", "file":
		path := strings.TrimPrefix(rest, "//")
		if strings.EqualFold(scheme, "file") {
			path = raw
		}
		if path == "" {
			return "", "", fmt.Errorf("sqlite url %q has no path", raw)
		}
		return DriverSQLite, path, nil
	}
	return "", "", fmt.Errorf("unsupported connection url scheme %q", scheme)
}

func mysqlDSN(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid mysql url: %w", err)
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}

	dsn := cfg.FormatDSN()
	if u.RawQuery != "" {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + u.RawQuery
	}
	if _, err := mysql.ParseDSN(dsn); err != nil {
		return "", fmt.Errorf("invalid mysql url: %w", err)
	}
	return dsn, nil
}

// Manager opens and shares one pool per datasource.
type Manager struct {
	mu          sync.Mutex
	datasources map[string]Datasource
	pools       map[string]*openPool
	poolConfig  pool.Config
	retryOpts   []retry.Option
}

// NewManager creates a manager for the given datasources.
func NewManager(datasources ...Datasource) *Manager {
	m := &Manager{
		datasources: make(map[string]Datasource),
		pools:       make(map[string]*openPool),
		poolConfig:  pool.DefaultConfig(),
		retryOpts:   []retry.Option{retry.WithMaxAttempts(3), retry.WithMaxDelay(2 * time.Second)},
	}
	for _, ds := range datasources {
		m.datasources[ds.ID] = ds
	}
	return m
}

// Add registers or replaces a datasource.
func (m *Manager) Add(ds Datasource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasources[ds.ID] = ds
}

// IDs returns the configured datasource ids, sorted.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.datasources))
	for id := range m.datasources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Get returns the pool of a configured datasource, opening it on first use.
func (m *Manager) Get(ctx context.Context, id string) (*pool.Pool, error) {
	m.mu.Lock()
	ds, ok := m.datasources[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDatasource, id)
	}
	return m.open(ctx, ds)
}

// Open returns a pool for an ad-hoc connection URL.
func (m *Manager) Open(ctx context.Context, driver, rawURL string) (*pool.Pool, error) {
	return m.open(ctx, Datasource{URL: rawURL, Driver: driver})
}

type openPool struct {
	id string
	*pool.Pool
}

// PoolStats describes an open pool. ID is empty for ad-hoc connections.
type PoolStats struct {
	ID string
	pool.Stats
}

// Stats returns the statistics of every open pool, configured datasources
// first in id order.
func (m *Manager) Stats() []PoolStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]PoolStats, 0, len(m.pools))
	for _, p := range m.pools {
		out = append(out, PoolStats{ID: p.id, Stats: p.Stats()})
	}
	sort.Slice(out, func(i, j int) bool {
		if (out[i].ID == "") != (out[j].ID == "") {
			return out[j].ID == ""
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Manager) open(ctx context.Context, ds Datasource) (*pool.Pool, error) {
	driver, dsn := ds.Driver, ds.URL
	if driver == "" {
		var err error
		if driver, dsn, err = ParseURL(ds.URL); err != nil {
			return nil, err
		}
	}
	key := driver + "|" + dsn

	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pools[key]; ok {
		return p.Pool, nil
	}

	config := m.poolConfig
	if ds.MaxOpenConns > 0 {
		config.MaxOpenConns = ds.MaxOpenConns
		config.MaxIdleConns = min(config.MaxIdleConns, ds.MaxOpenConns)
	}
	if ds.HealthCheckInterval > 0 {
		config.HealthCheckInterval = ds.HealthCheckInterval
	}
	p, err := pool.New(driver, dsn, config)
	if err != nil {
		return nil, err
	}
	err = retry.Do(ctx, func(ctx context.Context) error {
		return p.HealthCheck(ctx)
	}, m.retryOpts...)
	if err != nil {
		p.Close()
		return nil, err
	}

	debug.Debug("datasource opened", "id", ds.ID, "driver", driver)
	m.pools[key] = &openPool{id: ds.ID, Pool: p}
	return p, nil
}

// Close closes every open pool.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for key, p := range m.pools {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(m.pools, key)
	}
	return errors.Join(errs...)
}
