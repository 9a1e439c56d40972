package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"Wulin-Chronicle/server/internal/models"
)

// duplicateKeyDriver answers every insert as an ON DUPLICATE KEY update of an
// existing row: LastInsertId is unrelated to the stored id, which only a
// SELECT returns.
type duplicateKeyDriver struct {
	mu         sync.Mutex
	storedID   int64
	statements []string
}

func (d *duplicateKeyDriver) Open(string) (driver.Conn, error) { return &duplicateKeyConn{d: d}, nil }

func (d *duplicateKeyDriver) record(query string) {
	d.mu.Lock()
	d.statements = append(d.statements, query)
	d.mu.Unlock()
}

type duplicateKeyConn struct{ d *duplicateKeyDriver }

func (c *duplicateKeyConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepared statements not supported")
}
func (c *duplicateKeyConn) Close() error              { return nil }
func (c *duplicateKeyConn) Begin() (driver.Tx, error) { return noopTx{}, nil }

func (c *duplicateKeyConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	c.d.record(query)
	return upsertResult{}, nil
}

// upsertResult mimics MySQL after an update through ON DUPLICATE KEY: two
// rows affected and an auto-increment value that names no row.
type upsertResult struct{}

func (upsertResult) LastInsertId() (int64, error) { return 99, nil }
func (upsertResult) RowsAffected() (int64, error) { return 2, nil }

func (c *duplicateKeyConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.d.record(query)
	return &idRows{id: c.d.storedID}, nil
}

type noopTx struct{}

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }

type idRows struct {
	id   int64
	done bool
}

func (r *idRows) Columns() []string { return []string{"id"} }
func (r *idRows) Close() error      { return nil }
func (r *idRows) Next(dest []driver.Value) error {
	if r.done {
		return io.EOF
	}
	r.done = true
	dest[0] = r.id
	return nil
}

func newDuplicateKeyStore(t *testing.T, storedID int64) (*MySQLStore, *duplicateKeyDriver) {
	t.Helper()
	drv := &duplicateKeyDriver{storedID: storedID}
	name := "duplicate-key-" + t.Name()
	sql.Register(name, drv)

	sqlDB, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger:                 logger.Discard,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("gorm: %v", err)
	}
	return &MySQLStore{db: db}, drv
}

func TestUpsertRelationshipReportsStoredID(t *testing.T) {
	st, drv := newDuplicateKeyStore(t, 7)

	rel := &models.FactionRelationship{SourceID: 1, TargetID: 2, Status: models.StatusHostile, Intensity: 40}
	if err := st.UpsertRelationship(context.Background(), rel); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if rel.ID != 7 {
		t.Fatalf("id = %d, want the stored row's 7", rel.ID)
	}

	var sawInsert, sawReload bool
	for _, q := range drv.statements {
		upper := strings.ToUpper(q)
		if strings.HasPrefix(upper, "INSERT") && strings.Contains(upper, "ON DUPLICATE KEY UPDATE") {
			sawInsert = true
		}
		if strings.HasPrefix(upper, "SELECT") && strings.Contains(q, "source_id") && strings.Contains(q, "target_id") {
			sawReload = true
		}
	}
	if !sawInsert || !sawReload {
		t.Fatalf("statements = %q", drv.statements)
	}
}
