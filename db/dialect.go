package db

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ─────────────────────────────────────────────────────────────────────────────
// Dialect
// ─────────────────────────────────────────────────────────────────────────────

// Dialect encapsulates the database-specific parts the rest of the code
// needs to know about: DSN construction, bind-parameter syntax and
// RETURNING support.
type Dialect interface {
	// Name returns the database/sql driver name, e.g. "sqlite3".
	Name() string

	// DSN converts structured options into a driver DSN string.
	DSN(opts DriverOptions) (string, error)

	// NormalizeDSN enforces the connection settings the repositories rely on.
	NormalizeDSN(dsn string) (string, error)

	// Placeholder returns the bind parameter for the n-th argument (1-based).
	Placeholder(n int) string

	// SupportsReturning reports whether INSERT/UPDATE ... RETURNING works.
	SupportsReturning() bool
}

// DriverOptions carries the common connection parameters in a structured,
// driver-agnostic form. DSN() converts them to the driver's native format.
type DriverOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string // database name, or file path for SQLite
	SSLMode  string // "disable", "require", "verify-full", etc.
	// Extra holds driver-specific key/value parameters.
	Extra map[string]string
}

var dialects = map[string]Dialect{
	SQLiteDialect{}.Name():   SQLiteDialect{},
	PostgresDialect{}.Name(): PostgresDialect{},
	MySQLDialect{}.Name():    MySQLDialect{},
}

// LookupDialect returns the Dialect registered under name.
func LookupDialect(name string) (Dialect, error) {
	d, ok := dialects[name]
	if !ok {
		return nil, fmt.Errorf("db: driver %q not supported (want one of %s)", name, strings.Join(DialectNames(), ", "))
	}
	return d, nil
}

// DialectNames lists the supported driver names in sorted order.
func DialectNames() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ─────────────────────────────────────────────────────────────────────────────
// SQLite (mattn/go-sqlite3)
// ─────────────────────────────────────────────────────────────────────────────

// SQLiteDialect targets mattn/go-sqlite3. RETURNING is reported as
// unsupported because the driver only decodes DATETIME values for columns
// with a declared type, which RETURNING output does not carry.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string { return "sqlite3" }

func (SQLiteDialect) DSN(o DriverOptions) (string, error) {
	if o.Database == "" {
		return "", fmt.Errorf("sqlite3 driver: Database (file path) is required")
	}
	if len(o.Extra) == 0 {
		return o.Database, nil
	}
	params := url.Values{}
	for k, v := range o.Extra {
		params.Set(k, v)
	}
	return o.Database + "?" + params.Encode(), nil
}

func (SQLiteDialect) NormalizeDSN(dsn string) (string, error) { return dsn, nil }
func (SQLiteDialect) Placeholder(int) string                   { return "?" }
func (SQLiteDialect) SupportsReturning() bool                  { return false }

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL (lib/pq)
// ─────────────────────────────────────────────────────────────────────────────

// PostgresDialect targets lib/pq.
type PostgresDialect struct{}

func (PostgresDialect) Name() string { return "postgres" }

func (PostgresDialect) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("postgres driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 5432
	}
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	parts := []string{
		"host=" + o.Host,
		"port=" + strconv.Itoa(port),
		"dbname=" + o.Database,
		"sslmode=" + sslMode,
	}
	if o.User != "" {
		parts = append(parts, "user="+o.User)
	}
	if o.Password != "" {
		parts = append(parts, "password="+o.Password)
	}
	keys := make([]string, 0, len(o.Extra))
	for k := range o.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+o.Extra[k])
	}
	return strings.Join(parts, " "), nil
}

func (PostgresDialect) NormalizeDSN(dsn string) (string, error) { return dsn, nil }
func (PostgresDialect) Placeholder(n int) string                 { return "$" + strconv.Itoa(n) }
func (PostgresDialect) SupportsReturning() bool                  { return true }

// ─────────────────────────────────────────────────────────────────────────────
// MySQL (go-sql-driver/mysql)
// ─────────────────────────────────────────────────────────────────────────────

// MySQLDialect targets go-sql-driver/mysql. Every DSN is forced to parse
// DATETIME columns into time.Time in UTC and to report matched (not changed)
// rows, which is what the repositories check after UPDATE.
type MySQLDialect struct{}

func (MySQLDialect) Name() string { return "mysql" }

func (d MySQLDialect) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("mysql driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 3306
	}
	cfg := mysql.NewConfig()
	cfg.User = o.User
	cfg.Passwd = o.Password
	cfg.Net = "tcp"
	cfg.Addr = o.Host + ":" + strconv.Itoa(port)
	cfg.DBName = o.Database
	tls, err := mysqlTLS(o.SSLMode)
	if err != nil {
		return "", err
	}
	cfg.TLSConfig = tls
	if len(o.Extra) > 0 {
		cfg.Params = make(map[string]string, len(o.Extra))
		for k, v := range o.Extra {
			cfg.Params[k] = v
		}
	}
	return d.normalize(cfg), nil
}

// mysqlTLS translates a libpq-style sslmode into the driver's tls parameter.
func mysqlTLS(sslMode string) (string, error) {
	switch sslMode {
	case "", "disable":
		return "", nil
	case "allow", "prefer":
		return "preferred", nil
	case "require":
		return "skip-verify", nil
	case "verify-ca", "verify-full":
		return "true", nil
	}
	return "", fmt.Errorf("mysql driver: unsupported sslmode %q", sslMode)
}

func (d MySQLDialect) NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql driver: %w", err)
	}
	return d.normalize(cfg), nil
}

func (MySQLDialect) normalize(cfg *mysql.Config) string {
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true
	return cfg.FormatDSN()
}

func (MySQLDialect) Placeholder(int) string  { return "?" }
func (MySQLDialect) SupportsReturning() bool { return false }
