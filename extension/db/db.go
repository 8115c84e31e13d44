// Package db runs block content against relational databases.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/jdbcx/jdbcx-sub006/extension"
	"github.com/jdbcx/jdbcx-sub006/internal/pool"
	"github.com/jdbcx/jdbcx-sub006/query/cache"
	"github.com/jdbcx/jdbcx-sub006/query/parser"
)

// Name is the tag the extension is registered under.
const Name = "db"

// Property names understood by the db extension.
const (
	PropURL             = "url"
	PropDriver          = "driver"
	PropColumnSeparator = "result.column.separator"
	PropRowSeparator    = "result.row.separator"
	PropQuote           = "result.quote"
	PropNull            = "result.null"
	PropCacheTTL        = "cache.ttl"
)

// Values of result.quote.
const (
	QuoteNone       = "none"
	QuoteIdentifier = "identifier"
	QuoteLiteral    = "literal"
)

// DB executes block content as SQL. Value blocks return the rendered
// result set, effect blocks only run the statement and drop the cached
// results of their datasource.
type DB struct {
	manager *Manager
	cache   cache.Cache
}

// Option configures the extension.
type Option func(*DB)

// WithCache enables result caching for blocks that set cache.ttl.
func WithCache(c cache.Cache) Option {
	return func(d *DB) {
		d.cache = c
	}
}

// New creates the extension over the datasources held by m.
func New(m *Manager, opts ...Option) *DB {
	if m == nil {
		m = NewManager()
	}
	d := &DB{manager: m}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Manager returns the datasource manager.
func (d *DB) Manager() *Manager {
	return d.manager
}

// Execute runs content against the datasource named by the tag suffix
// (db.<id>) or by the url property.
func (d *DB) Execute(ctx context.Context, props parser.Properties, content string, ec *extension.Context) (string, error) {
	query := strings.TrimSpace(content)
	if query == "" {
		return "", nil
	}

	p, source, target, err := d.pool(ctx, props, ec)
	if err != nil {
		return "", err
	}

	returnsValue := ec == nil || ec.ReturnsValue
	if !returnsValue {
		ec.Log().Debug("executing statement", "source", source)
		if _, err := p.Exec(ctx, query); err != nil {
			return "", err
		}
		if d.cache != nil {
			d.cache.InvalidatePattern(Name + ":" + source + ":*")
		}
		return "", nil
	}

	var ttl time.Duration
	if v, ok := props.Get(PropCacheTTL); ok && d.cache != nil {
		if ttl, err = time.ParseDuration(strings.TrimSpace(v)); err != nil || ttl <= 0 {
			return "", fmt.Errorf("invalid %s %q", PropCacheTTL, v)
		}
	}
	format := formatFrom(props)
	format.Driver = p.Driver()
	key := cache.Key(Name, source, target, query, format.String())
	if ttl > 0 {
		if out, ok := d.cache.Get(key); ok {
			ec.Log().Debug("result cache hit", "source", source)
			return out, nil
		}
	}

	ec.Log().Debug("running query", "source", source)
	out, err := Query(ctx, p, query, format)
	if err != nil {
		return "", err
	}
	if ttl > 0 {
		d.cache.Set(key, out, ttl)
	}
	return out, nil
}

// pool returns the pool for the block along with the datasource id, or
// "url" and the URL itself for ad-hoc connections.
func (d *DB) pool(ctx context.Context, props parser.Properties, ec *extension.Context) (*pool.Pool, string, string, error) {
	if ec != nil && ec.Suffix != "" {
		p, err := d.manager.Get(ctx, ec.Suffix)
		return p, ec.Suffix, "", err
	}
	u, ok := props.Get(PropURL)
	if u = strings.TrimSpace(u); !ok || u == "" {
		return nil, "", "", fmt.Errorf("no datasource: use %s.<id> or the %s property", Name, PropURL)
	}
	driver := props.GetOr(PropDriver, "")
	p, err := d.manager.Open(ctx, driver, u)
	return p, PropURL, driver + "|" + u, err
}

// Format controls how a result set is rendered.
type Format struct {
	ColumnSeparator string
	RowSeparator    string
	Quote           string
	Null            string
	// Driver selects the quoting dialect.
	Driver string
}

// DefaultFormat renders comma separated columns, one row per line.
func DefaultFormat() Format {
	return Format{ColumnSeparator: ",", RowSeparator: "\n", Quote: QuoteNone, Null: "NULL"}
}

func formatFrom(props parser.Properties) Format {
	f := DefaultFormat()
	f.ColumnSeparator = props.GetOr(PropColumnSeparator, f.ColumnSeparator)
	f.RowSeparator = props.GetOr(PropRowSeparator, f.RowSeparator)
	f.Quote = strings.ToLower(strings.TrimSpace(props.GetOr(PropQuote, f.Quote)))
	f.Null = props.GetOr(PropNull, f.Null)
	return f
}

func (f Format) String() string {
	return fmt.Sprintf("%q|%q|%s|%q|%s", f.ColumnSeparator, f.RowSeparator, f.Quote, f.Null, f.Driver)
}

func (f Format) value(v sql.NullString) string {
	if !v.Valid {
		return f.Null
	}
	mysqlDialect := f.Driver == DriverMySQL
	switch {
	case f.Quote == QuoteIdentifier && mysqlDialect:
		return "`" + strings.ReplaceAll(v.String, "`", "``") + "`"
	case f.Quote == QuoteIdentifier:
		return pq.QuoteIdentifier(v.String)
	case f.Quote == QuoteLiteral && mysqlDialect:
		return "'" + mysqlEscaper.Replace(v.String) + "'"
	case f.Quote == QuoteLiteral:
		return pq.QuoteLiteral(v.String)
	}
	return v.String
}

var mysqlEscaper = strings.NewReplacer(`\`, `\\`, "'", "''", "\x00", `\0`, "\n", `\n`, "\r", `\r`, "\x1a", `\Z`)

// Query runs query on p and renders the rows with f.
func Query(ctx context.Context, p *pool.Pool, query string, f Format) (string, error) {
	switch f.Quote {
	case QuoteNone, QuoteIdentifier, QuoteLiteral:
	default:
		return "", fmt.Errorf("invalid %s %q", PropQuote, f.Quote)
	}

	rows, err := p.Query(ctx, query)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	values := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}
	for n := 0; rows.Next(); n++ {
		if err := rows.Scan(dest...); err != nil {
			return "", err
		}
		if n > 0 {
			b.WriteString(f.RowSeparator)
		}
		for i, v := range values {
			if i > 0 {
				b.WriteString(f.ColumnSeparator)
			}
			b.WriteString(f.value(v))
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Description explains the extension.
func (d *DB) Description() string {
	var ids string
	if list := d.manager.IDs(); len(list) > 0 {
		ids = "\nConfigured datasources: `" + strings.Join(list, "`, `") + "`.\n"
	}
	return "# db\n\n" +
		"Runs the block content against a database. Value blocks return the " +
		"result set, effect blocks only execute the statement.\n" + ids + "\n" +
		"| Property | Default | Meaning |\n|---|---|---|\n" +
		"| `url` | | ad-hoc connection URL when no `db.<id>` is given |\n" +
		"| `driver` | from URL | database/sql driver, the URL is then passed as is |\n" +
		"| `result.column.separator` | `,` | between columns |\n" +
		"| `result.row.separator` | new line | between rows |\n" +
		"| `result.quote` | `none` | `identifier` or `literal` |\n" +
		"| `result.null` | `NULL` | text for NULL values |\n" +
		"| `cache.ttl` | | cache the result for this duration |\n\n" +
		"    select * from {{ db.mydb(result.row.separator=', '): select name from tables }}\n"
}
