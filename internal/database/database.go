package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/franckalain/scaneats/internal/models"
)

//go:embed schema.sql
var schemaFS embed.FS

// DB interface defines the methods our database should implement
type DB interface {
	UpsertUser(ctx context.Context, profile *models.UserProfile) error
	GetUserProfile(ctx context.Context, userID string) (models.UserProfile, error)
	InsertEntry(ctx context.Context, entry *models.NutritionEntry) (string, error)
	GetEntry(ctx context.Context, id string) (*models.NutritionEntry, error)
	GetRecentEntries(ctx context.Context, userID string, limit int) ([]*models.NutritionEntry, error)
	SaveScan(ctx context.Context, scan *models.ScanRecord) error
	UpdateScanStatus(ctx context.Context, id, status, errorKind, errMsg, entryID string) error
	GetScan(ctx context.Context, id string) (*models.ScanRecord, error)
	Close() error
}

// DefaultHistoryLimit caps GetRecentEntries when no limit is given.
const DefaultHistoryLimit = 20

// SQLiteDB implements the DB interface
type SQLiteDB struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ DB = (*SQLiteDB)(nil)

// NewSQLiteDB creates a new SQLite database connection
func NewSQLiteDB(dbPath string, logger *slog.Logger) (*SQLiteDB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling WAL mode: %w", err)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}
	logger.Debug("Database schema initialized", slog.String("path", dbPath))

	return &SQLiteDB{db: db, logger: logger}, nil
}

func initializeSchema(db *sql.DB) error {
	schemaBytes, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("error reading schema file: %w", err)
	}
	if _, err := db.Exec(string(schemaBytes)); err != nil {
		return fmt.Errorf("error executing schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// UpsertUser validates and stores a profile, assigning an ID when empty.
func (s *SQLiteDB) UpsertUser(ctx context.Context, p *models.UserProfile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	p.Gender, _ = models.ParseGender(string(p.Gender))
	if p.UserID == "" {
		p.UserID = uuid.New().String()
	}
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, age, weight_kg, height_cm, gender, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			age = excluded.age,
			weight_kg = excluded.weight_kg,
			height_cm = excluded.height_cm,
			gender = excluded.gender,
			updated_at = excluded.updated_at
	`, p.UserID, p.Name, p.Age, p.WeightKg, p.HeightCm, string(p.Gender), now, now)
	if err != nil {
		return fmt.Errorf("error saving user: %w", err)
	}
	return nil
}

// GetUserProfile returns the profile for userID or models.ErrNotFound.
func (s *SQLiteDB) GetUserProfile(ctx context.Context, userID string) (models.UserProfile, error) {
	p := models.UserProfile{UserID: userID}
	var gender string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, age, weight_kg, height_cm, gender FROM users WHERE id = ?`, userID,
	).Scan(&p.Name, &p.Age, &p.WeightKg, &p.HeightCm, &gender)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserProfile{}, fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("error loading user: %w", err)
	}
	p.Gender = models.Gender(gender)
	return p, nil
}

const entryColumns = `id, user_id, food_name, calories, fat, protein, carbs, sugar, fiber,
	sodium, serving_size, detected, calories_to_burn, steps_needed, created_at`

// InsertEntry stores a new, immutable nutrition entry and returns its ID.
func (s *SQLiteDB) InsertEntry(ctx context.Context, e *models.NutritionEntry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO nutrition_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.FoodName,
		e.Calories, e.Fat, e.Protein, e.Carbs, e.Sugar, e.Fiber, e.Sodium, e.ServingSize,
		joinKeys(e.Detected), e.CaloriesToBurn, e.StepsNeeded, formatTime(e.CreatedAt),
	)
	if err != nil {
		return "", fmt.Errorf("error inserting entry: %w", err)
	}
	return e.ID, nil
}

// GetEntry retrieves one entry or models.ErrNotFound.
func (s *SQLiteDB) GetEntry(ctx context.Context, id string) (*models.NutritionEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM nutrition_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetRecentEntries retrieves a user's most recent entries, newest first.
func (s *SQLiteDB) GetRecentEntries(ctx context.Context, userID string, limit int) ([]*models.NutritionEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM nutrition_entries
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying entries: %w", err)
	}
	defer rows.Close()

	var results []*models.NutritionEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.NutritionEntry, error) {
	var (
		e                 models.NutritionEntry
		detected, created string
	)
	err := row.Scan(
		&e.ID, &e.UserID, &e.FoodName,
		&e.Calories, &e.Fat, &e.Protein, &e.Carbs, &e.Sugar, &e.Fiber, &e.Sodium, &e.ServingSize,
		&detected, &e.CaloriesToBurn, &e.StepsNeeded, &created,
	)
	if err != nil {
		return nil, err
	}
	e.Detected = splitKeys(detected)
	e.CreatedAt, err = parseTime(created)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", e.ID, err)
	}
	return &e, nil
}

// SaveScan records the start of a pipeline run.
func (s *SQLiteDB) SaveScan(ctx context.Context, scan *models.ScanRecord) error {
	if scan.ID == "" {
		scan.ID = uuid.New().String()
	}
	now := time.Now()
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = now
	}
	scan.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO nutrition_scans (
			id, user_id, status, error_kind, error, entry_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, scan.ID, scan.UserID, scan.Status, scan.ErrorKind, scan.Error, scan.EntryID,
		formatTime(scan.CreatedAt), formatTime(scan.UpdatedAt))
	if err != nil {
		return fmt.Errorf("error saving scan: %w", err)
	}
	return nil
}

// UpdateScanStatus updates the status of a scan
func (s *SQLiteDB) UpdateScanStatus(ctx context.Context, id, status, errorKind, errMsg, entryID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE nutrition_scans
		SET status = ?, error_kind = ?, error = ?, entry_id = ?, updated_at = ?
		WHERE id = ?
	`, status, errorKind, errMsg, entryID, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("error updating scan: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("scan %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// GetScan retrieves one audit record.
func (s *SQLiteDB) GetScan(ctx context.Context, id string) (*models.ScanRecord, error) {
	var (
		scan             models.ScanRecord
		created, updated string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, error_kind, error, entry_id, created_at, updated_at
		FROM nutrition_scans WHERE id = ?
	`, id).Scan(&scan.ID, &scan.UserID, &scan.Status, &scan.ErrorKind, &scan.Error, &scan.EntryID, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scan %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error loading scan: %w", err)
	}
	if scan.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if scan.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &scan, nil
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func joinKeys(keys []models.NutrientKey) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}

func splitKeys(s string) []models.NutrientKey {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	keys := make([]models.NutrientKey, len(parts))
	for i, p := range parts {
		keys[i] = models.NutrientKey(p)
	}
	return keys
}
