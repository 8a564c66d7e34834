// Package store persists disclosures and drafted applications in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/joelkehle/disclosure-drafter/internal/disclosure"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means the stored disclosure is no longer in the status the
	// caller read it in.
	ErrConflict = errors.New("conflict")
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS disclosures (
	id                 TEXT PRIMARY KEY,
	title              TEXT NOT NULL DEFAULT '',
	patent_type        TEXT NOT NULL DEFAULT 'invention',
	status             TEXT NOT NULL DEFAULT 'draft',
	body               TEXT NOT NULL,
	validation         TEXT,
	completeness_score REAL NOT NULL DEFAULT 0,
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL,
	submitted_at       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS disclosures_status ON disclosures (status, updated_at);

CREATE TABLE IF NOT EXISTS applications (
	id            TEXT PRIMARY KEY,
	disclosure_id TEXT NOT NULL REFERENCES disclosures (id),
	title         TEXT NOT NULL,
	patent_type   TEXT NOT NULL,
	document      TEXT NOT NULL,
	claims        TEXT NOT NULL DEFAULT '[]',
	validation    TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS applications_disclosure ON applications (disclosure_id, created_at);
`

// Application is a drafted application as stored.
type Application struct {
	ID           string                         `json:"id"`
	DisclosureID string                         `json:"disclosure_id"`
	CreatedAt    time.Time                      `json:"created_at"`
	Rendered     disclosure.RenderedApplication `json:"application"`
}

// Config fields are optional. NewID defaults to random UUIDs.
type Config struct {
	Clock  func() time.Time
	NewID  func() string
	Logger *zap.Logger
}

type SQLiteStore struct {
	db     *sqlx.DB
	clock  func() time.Time
	newID  func() string
	logger *zap.Logger
}

func NewSQLiteStore(dbPath string, cfg Config) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &SQLiteStore{db: db, clock: cfg.Clock, newID: cfg.NewID, logger: cfg.Logger}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.NewString() }
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type disclosureRow struct {
	ID                string         `db:"id"`
	Title             string         `db:"title"`
	PatentType        string         `db:"patent_type"`
	Status            string         `db:"status"`
	Body              string         `db:"body"`
	Validation        sql.NullString `db:"validation"`
	CompletenessScore float64        `db:"completeness_score"`
	CreatedAt         string         `db:"created_at"`
	UpdatedAt         string         `db:"updated_at"`
	SubmittedAt       string         `db:"submitted_at"`
}

type applicationRow struct {
	ID           string `db:"id"`
	DisclosureID string `db:"disclosure_id"`
	Title        string `db:"title"`
	PatentType   string `db:"patent_type"`
	Document     string `db:"document"`
	Claims       string `db:"claims"`
	Validation   string `db:"validation"`
	CreatedAt    string `db:"created_at"`
}

// DisclosureRecord pairs a stored disclosure with its latest validation.
type DisclosureRecord struct {
	Disclosure *disclosure.Disclosure       `json:"disclosure"`
	Validation *disclosure.ValidationResult `json:"validation,omitempty"`
}

// CreateDisclosure stores d as a new draft with a fresh ID. The caller's
// value is not modified.
func (s *SQLiteStore) CreateDisclosure(ctx context.Context, d *disclosure.Disclosure) (*disclosure.Disclosure, error) {
	if d == nil {
		return nil, disclosure.ErrNilDisclosure
	}
	now := s.clock().UTC()
	cp := *d
	cp.ID = s.newID()
	cp.Status = disclosure.StatusDraft
	cp.SubmittedAt = nil
	cp.CreatedAt = now
	cp.UpdatedAt = now
	if err := s.insertDisclosure(ctx, &cp); err != nil {
		return nil, err
	}
	s.logger.Debug("disclosure created", zap.String("disclosure_id", cp.ID))
	return &cp, nil
}

// UpdateDisclosure replaces a stored disclosure and records its validation.
// The write only applies while the stored status is still from; otherwise it
// fails with ErrConflict. d.UpdatedAt is set to the store clock.
func (s *SQLiteStore) UpdateDisclosure(ctx context.Context, d *disclosure.Disclosure, validation *disclosure.ValidationResult, from disclosure.Status) error {
	if d == nil {
		return disclosure.ErrNilDisclosure
	}
	d.UpdatedAt = s.clock().UTC()
	row, err := newDisclosureRow(d, validation)
	if err != nil {
		return err
	}
	res, err := s.db.NamedExecContext(ctx, `UPDATE disclosures SET
		title = :title, patent_type = :patent_type, status = :status, body = :body,
		validation = :validation, completeness_score = :completeness_score,
		updated_at = :updated_at, submitted_at = :submitted_at
		WHERE id = :id AND status = :expected_status`, guardedRow{disclosureRow: row, ExpectedStatus: string(from)})
	if err != nil {
		return fmt.Errorf("update disclosure %s: %w", d.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update disclosure %s: %w", d.ID, err)
	}
	if n > 0 {
		return nil
	}
	var current string
	err = s.db.GetContext(ctx, &current, `SELECT status FROM disclosures WHERE id = ?`, d.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("disclosure %s: %w", d.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update disclosure %s: %w", d.ID, err)
	}
	return fmt.Errorf("disclosure %s is %s, not %s: %w", d.ID, current, from, ErrConflict)
}

type guardedRow struct {
	disclosureRow
	ExpectedStatus string `db:"expected_status"`
}

func (s *SQLiteStore) insertDisclosure(ctx context.Context, d *disclosure.Disclosure) error {
	row, err := newDisclosureRow(d, nil)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO disclosures
		(id, title, patent_type, status, body, validation, completeness_score, created_at, updated_at, submitted_at)
		VALUES (:id, :title, :patent_type, :status, :body, :validation, :completeness_score, :created_at, :updated_at, :submitted_at)`, row)
	if err != nil {
		return fmt.Errorf("insert disclosure %s: %w", d.ID, err)
	}
	return nil
}

func newDisclosureRow(d *disclosure.Disclosure, validation *disclosure.ValidationResult) (disclosureRow, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return disclosureRow{}, fmt.Errorf("marshal disclosure: %w", err)
	}
	row := disclosureRow{
		ID:          d.ID,
		Title:       d.Title,
		PatentType:  string(disclosure.ParsePatentType(string(d.PatentType))),
		Status:      string(d.Status),
		Body:        string(body),
		Validation:  nullableJSON(validation),
		CreatedAt:   timeToString(d.CreatedAt),
		UpdatedAt:   timeToString(d.UpdatedAt),
		SubmittedAt: timePtrToString(d.SubmittedAt),
	}
	if validation != nil {
		row.CompletenessScore = validation.CompletenessScore
	}
	return row, nil
}

func (s *SQLiteStore) GetDisclosure(ctx context.Context, id string) (*DisclosureRecord, error) {
	var row disclosureRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM disclosures WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("disclosure %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get disclosure %s: %w", id, err)
	}
	return row.record()
}

// ListDisclosures returns disclosures most recently updated first. An empty
// status lists every disclosure.
func (s *SQLiteStore) ListDisclosures(ctx context.Context, status disclosure.Status) ([]DisclosureRecord, error) {
	var rows []disclosureRow
	var err error
	if status == "" {
		err = s.db.SelectContext(ctx, &rows, `SELECT * FROM disclosures ORDER BY updated_at DESC, id`)
	} else {
		err = s.db.SelectContext(ctx, &rows, `SELECT * FROM disclosures WHERE status = ? ORDER BY updated_at DESC, id`, string(status))
	}
	if err != nil {
		return nil, fmt.Errorf("list disclosures: %w", err)
	}
	out := make([]DisclosureRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (r disclosureRow) record() (*DisclosureRecord, error) {
	var d disclosure.Disclosure
	if err := json.Unmarshal([]byte(r.Body), &d); err != nil {
		return nil, fmt.Errorf("decode disclosure %s: %w", r.ID, err)
	}
	rec := &DisclosureRecord{Disclosure: &d}
	if r.Validation.Valid {
		var v disclosure.ValidationResult
		if err := json.Unmarshal([]byte(r.Validation.String), &v); err != nil {
			return nil, fmt.Errorf("decode validation %s: %w", r.ID, err)
		}
		rec.Validation = &v
	}
	return rec, nil
}

// SaveApplication records a drafted application for a stored disclosure and
// marks the disclosure completed.
func (s *SQLiteStore) SaveApplication(ctx context.Context, disclosureID string, app disclosure.RenderedApplication) (*Application, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var row disclosureRow
	err = tx.GetContext(ctx, &row, `SELECT * FROM disclosures WHERE id = ?`, disclosureID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("disclosure %s: %w", disclosureID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get disclosure %s: %w", disclosureID, err)
	}
	rec, err := row.record()
	if err != nil {
		return nil, err
	}
	now := s.clock().UTC()
	out := &Application{ID: s.newID(), DisclosureID: disclosureID, CreatedAt: now, Rendered: app}

	_, err = tx.NamedExecContext(ctx, `INSERT INTO applications
		(id, disclosure_id, title, patent_type, document, claims, validation, created_at)
		VALUES (:id, :disclosure_id, :title, :patent_type, :document, :claims, :validation, :created_at)`,
		applicationRow{
			ID:           out.ID,
			DisclosureID: disclosureID,
			Title:        app.Title,
			PatentType:   string(app.PatentType),
			Document:     app.Document,
			Claims:       marshalJSON(app.Claims),
			Validation:   marshalJSON(app.Validation),
			CreatedAt:    timeToString(now),
		})
	if err != nil {
		return nil, fmt.Errorf("save application: %w", err)
	}

	d := rec.Disclosure
	d.Status = disclosure.StatusCompleted
	d.UpdatedAt = now
	body, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal disclosure: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE disclosures SET status = ?, body = ?, updated_at = ? WHERE id = ?`,
		string(d.Status), string(body), timeToString(now), disclosureID); err != nil {
		return nil, fmt.Errorf("mark disclosure completed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("application saved",
		zap.String("application_id", out.ID),
		zap.String("disclosure_id", disclosureID),
		zap.Int("claims", len(app.Claims)),
	)
	return out, nil
}

func (s *SQLiteStore) GetApplication(ctx context.Context, id string) (*Application, error) {
	var row applicationRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM applications WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("application %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get application %s: %w", id, err)
	}
	return row.application()
}

func (s *SQLiteStore) ListApplications(ctx context.Context, disclosureID string) ([]Application, error) {
	var rows []applicationRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM applications WHERE disclosure_id = ? ORDER BY created_at, id`, disclosureID); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	out := make([]Application, 0, len(rows))
	for _, row := range rows {
		app, err := row.application()
		if err != nil {
			return nil, err
		}
		out = append(out, *app)
	}
	return out, nil
}

func (r applicationRow) application() (*Application, error) {
	app := &Application{
		ID:           r.ID,
		DisclosureID: r.DisclosureID,
		CreatedAt:    parseTime(r.CreatedAt),
		Rendered: disclosure.RenderedApplication{
			Title:      r.Title,
			PatentType: disclosure.PatentType(r.PatentType),
			Document:   r.Document,
		},
	}
	if err := json.Unmarshal([]byte(r.Claims), &app.Rendered.Claims); err != nil {
		return nil, fmt.Errorf("decode claims %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Validation), &app.Rendered.Validation); err != nil {
		return nil, fmt.Errorf("decode validation %s: %w", r.ID, err)
	}
	return app, nil
}

func timeToString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func timePtrToString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return timeToString(*t)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func marshalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func nullableJSON(v *disclosure.ValidationResult) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
