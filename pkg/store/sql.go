package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	// Database drivers
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLStore keeps documents as JSON in two tables.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// OpenSQL opens a database store. driver is one of DriverSQLite,
// DriverPostgres or DriverMySQL.
func OpenSQL(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case DriverSQLite, DriverPostgres, DriverMySQL:
	default:
		return nil, fmt.Errorf("opening store: unsupported driver %q", driver)
	}
	if dsn == "" {
		return nil, fmt.Errorf("opening %s store: dsn is required", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one writer; also keeps :memory: databases on a single connection
		db.SetMaxOpenConns(1)
	}
	return &SQLStore{db: db, driver: driver}, nil
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// Migrate creates the document tables when they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	docType := "TEXT"
	if s.driver == DriverMySQL {
		docType = "LONGTEXT"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trellis_components (
	id VARCHAR(255) PRIMARY KEY,
	name VARCHAR(255),
	doc ` + docType + ` NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS trellis_pages (
	route VARCHAR(255) PRIMARY KEY,
	name VARCHAR(255),
	doc ` + docType + ` NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating store: %w", err)
		}
	}
	return nil
}

// GetComponent implements Store.
func (s *SQLStore) GetComponent(ctx context.Context, id string) (*Component, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT doc FROM trellis_components WHERE id = ?"), id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("component", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading component %q: %w", id, err)
	}

	var c Component
	if err := json.Unmarshal([]byte(doc), &c); err != nil {
		return nil, decodeError("component", id, err)
	}
	if c.BlockTemplate == nil {
		return nil, decodeError("component", id, fmt.Errorf("missing blockTemplate"))
	}
	c.ID = id
	c.BlockTemplate.Normalize()
	return &c, nil
}

// GetPage implements Store.
func (s *SQLStore) GetPage(ctx context.Context, route string) (*Page, error) {
	route = CleanRoute(route)

	var doc string
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT doc FROM trellis_pages WHERE route = ?"), route).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("page", route)
	}
	if err != nil {
		return nil, fmt.Errorf("loading page %q: %w", route, err)
	}

	var p Page
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, decodeError("page", route, err)
	}
	p.Route = route
	normalizePage(&p)
	return &p, nil
}

// PutComponent implements Store.
func (s *SQLStore) PutComponent(ctx context.Context, c *Component) error {
	if err := validateComponent(c); err != nil {
		return err
	}
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding component %q: %w", c.ID, err)
	}
	if _, err := s.db.ExecContext(ctx, s.upsert("trellis_components", "id"), c.ID, c.Name, string(doc), time.Now().UTC()); err != nil {
		return fmt.Errorf("saving component %q: %w", c.ID, err)
	}
	return nil
}

// PutPage implements Store.
func (s *SQLStore) PutPage(ctx context.Context, p *Page) error {
	if err := validatePage(p); err != nil {
		return err
	}
	cp := *p
	cp.Route = CleanRoute(p.Route)
	doc, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("encoding page %q: %w", cp.Route, err)
	}
	if _, err := s.db.ExecContext(ctx, s.upsert("trellis_pages", "route"), cp.Route, cp.Name, string(doc), time.Now().UTC()); err != nil {
		return fmt.Errorf("saving page %q: %w", cp.Route, err)
	}
	return nil
}

// ListComponents implements Store.
func (s *SQLStore) ListComponents(ctx context.Context) ([]string, error) {
	return s.listKeys(ctx, "SELECT id FROM trellis_components ORDER BY id")
}

// ListPages implements Store.
func (s *SQLStore) ListPages(ctx context.Context) ([]string, error) {
	return s.listKeys(ctx, "SELECT route FROM trellis_pages ORDER BY route")
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) listKeys(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("listing documents: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// upsert builds an insert-or-replace statement for (key, name, doc,
// updated_at) in the dialect of the driver.
func (s *SQLStore) upsert(table, key string) string {
	insert := "INSERT INTO " + table + " (" + key + ", name, doc, updated_at) VALUES (?, ?, ?, ?)"
	if s.driver == DriverMySQL {
		return insert + " ON DUPLICATE KEY UPDATE name = VALUES(name), doc = VALUES(doc), updated_at = VALUES(updated_at)"
	}
	return s.rebind(insert + " ON CONFLICT (" + key + ") DO UPDATE SET name = excluded.name, doc = excluded.doc, updated_at = excluded.updated_at")
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}
