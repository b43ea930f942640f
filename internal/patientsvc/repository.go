// internal/patientsvc/repository.go
//
// Patient row storage for the reference creation endpoint.  Column widths
// in Schema must hold the longest value the intake validator accepts.

package patientsvc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/intake/internal/intake"
)

var (
	// ErrNotFound means no row matched.
	ErrNotFound = errors.New("patientsvc: not found")

	// ErrDuplicate means a unique column (id or idempotency key) already
	// holds the inserted value.
	ErrDuplicate = errors.New("patientsvc: duplicate row")
)

// erDupEntry is the MySQL error number for a unique key violation.
const erDupEntry = 1062

// Schema creates the patients table (MySQL / MariaDB).
const Schema = `
CREATE TABLE IF NOT EXISTS patients (
  id            CHAR(36)     NOT NULL PRIMARY KEY,
  first_name    VARCHAR(100) NOT NULL,
  last_name     VARCHAR(100) NOT NULL,
  dob           DATE         NOT NULL,
  email         VARCHAR(254) NOT NULL,
  phone         VARCHAR(32)  NULL,
  insurance_id  VARCHAR(30)  NULL,
  idempotency   CHAR(36)     NULL UNIQUE,
  created_at    DATETIME     NOT NULL
)`

// Row mirrors one patients record.
type Row struct {
	ID          string         `db:"id"`
	FirstName   string         `db:"first_name"`
	LastName    string         `db:"last_name"`
	DOB         string         `db:"dob"`
	Email       string         `db:"email"`
	Phone       sql.NullString `db:"phone"`
	InsuranceID sql.NullString `db:"insurance_id"`
	Idempotency sql.NullString `db:"idempotency"`
	CreatedAt   time.Time      `db:"created_at"`
}

// RowFrom fills a Row from a creation payload.
func RowFrom(id, idemKey string, p intake.Payload, now time.Time) Row {
	return Row{
		ID:          id,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		DOB:         p.DOB,
		Email:       p.Email,
		Phone:       nullable(p.Phone),
		InsuranceID: nullable(p.InsuranceID),
		Idempotency: nullable(idemKey),
		CreatedAt:   now.UTC(),
	}
}

func nullable(s string) sql.NullString { return sql.NullString{String: s, Valid: s != ""} }

// Repository is the sqlx-backed store.
type Repository struct{ db *sqlx.DB }

// NewRepository wraps db.
func NewRepository(db *sqlx.DB) *Repository { return &Repository{db: db} }

// Migrate applies Schema.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate patients: %w", err)
	}
	return nil
}

const insertSQL = `
INSERT INTO patients
  (id, first_name, last_name, dob, email, phone, insurance_id, idempotency, created_at)
VALUES
  (:id, :first_name, :last_name, :dob, :email, :phone, :insurance_id, :idempotency, :created_at)`

// Insert writes r.
func (r *Repository) Insert(ctx context.Context, row Row) error {
	if _, err := r.db.NamedExecContext(ctx, insertSQL, row); err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == erDupEntry {
			return fmt.Errorf("insert patient: %w: %s", ErrDuplicate, me.Message)
		}
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

// IDByIdempotencyKey returns the id stored for key, or ErrNotFound.  It lets
// a retried request with the same key answer with the original id.
func (r *Repository) IDByIdempotencyKey(ctx context.Context, key string) (string, error) {
	var id string
	err := r.db.GetContext(ctx, &id, `SELECT id FROM patients WHERE idempotency = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup idempotency key: %w", err)
	}
	return id, nil
}
