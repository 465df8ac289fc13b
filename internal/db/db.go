// Package db is the SQLite prediction log. The schema is managed with
// embedded golang-migrate migrations.
package db

import (
	"compress/gzip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/risk.report/internal/features"
	"github.com/banshee-data/risk.report/internal/httputil"
	"github.com/banshee-data/risk.report/internal/monitoring"
	"github.com/banshee-data/risk.report/internal/predlog"
	"github.com/banshee-data/risk.report/internal/security"
)

var logf = monitoring.Prefixed("[db] ")

// DefaultPath is the database file used when none is configured.
const DefaultPath = "predictions.db"

// inputColumns maps each input field to its column in the predictions table.
var inputColumns = map[string]string{
	features.FieldAge:                "age",
	features.FieldAcademicPressure:   "academic_pressure",
	features.FieldWorkPressure:       "work_pressure",
	features.FieldCGPA:               "cgpa",
	features.FieldStudySatisfaction:  "study_satisfaction",
	features.FieldJobSatisfaction:    "job_satisfaction",
	features.FieldSleepDuration:      "sleep_duration",
	features.FieldWorkStudyHours:     "work_study_hours",
	features.FieldTotalPressure:      "total_pressure",
	features.FieldCity:               "city",
	features.FieldDegree:             "degree",
	features.FieldDietaryHabits:      "dietary_habits",
	features.FieldFamilyHistory:      "family_history",
	features.FieldFinancialStress:    "financial_stress",
	features.FieldRelationshipIssues: "relationship_issues",
	features.FieldSupportSystem:      "support_system",
	features.FieldSubstanceUse:       "substance_use",
}

// selectColumns is the column list read back into an Entry, in
// predlog.Header order.
func selectColumns() []string {
	cols := []string{"timestamp", "prediction", "risk_score"}
	for _, name := range features.FieldNames() {
		cols = append(cols, inputColumns[name])
	}
	return cols
}

// DB is a SQLite-backed predlog.Store.
type DB struct {
	*sql.DB
	path string
}

// OpenDB opens path with WAL journalling and a busy timeout but does not
// touch the schema.
func OpenDB(path string) (*DB, error) {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "temp_store(MEMORY)")

	sqlDB, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &DB{DB: sqlDB, path: path}, nil
}

// NewDB opens path and applies every pending migration.
func NewDB(path string) (*DB, error) {
	if path == "" {
		path = DefaultPath
	}
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	migrations, err := Migrations()
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := db.MigrateUp(migrations); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Path is the database file location.
func (db *DB) Path() string { return db.path }

// Append inserts e under a fresh UUID.
func (db *DB) Append(ctx context.Context, e predlog.Entry) error {
	cols := append([]string{"prediction_id"}, selectColumns()...)
	args := []any{uuid.NewString(), e.Timestamp, e.Prediction, e.RiskScore}
	for _, f := range e.Input.Fields() {
		args = append(args, f.Value)
	}

	query := fmt.Sprintf("INSERT INTO predictions (%s) VALUES (?%s)",
		strings.Join(cols, ", "), strings.Repeat(", ?", len(cols)-1))
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

// All returns every row in insertion order. An empty table is an empty
// log, not a missing one.
func (db *DB) All(ctx context.Context) ([]predlog.Entry, error) {
	query := fmt.Sprintf("SELECT %s FROM predictions ORDER BY id", strings.Join(selectColumns(), ", "))
	return db.queryEntries(ctx, query)
}

// Tail returns the last n rows in insertion order.
func (db *DB) Tail(ctx context.Context, n int) ([]predlog.Entry, error) {
	if n < 0 {
		n = 0
	}
	cols := strings.Join(selectColumns(), ", ")
	query := fmt.Sprintf(
		"SELECT %s FROM (SELECT id, %s FROM predictions ORDER BY id DESC LIMIT ?) ORDER BY id",
		cols, cols)
	return db.queryEntries(ctx, query, n)
}

// Export writes all rows as CSV.
func (db *DB) Export(ctx context.Context, w io.Writer) error {
	entries, err := db.All(ctx)
	if err != nil {
		return err
	}
	return predlog.WriteCSV(w, entries)
}

func (db *DB) queryEntries(ctx context.Context, query string, args ...any) ([]predlog.Entry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	header := predlog.Header()
	entries := []predlog.Entry{}
	for rows.Next() {
		raw := make([]string, len(header))
		dest := make([]any, len(raw))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		e, err := predlog.ParseRecord(header, raw)
		if err != nil {
			return nil, fmt.Errorf("decode prediction: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Stats is a summary of the predictions table.
type Stats struct {
	Total       int    `json:"total"`
	AtRisk      int    `json:"at_risk"`
	FirstLogged string `json:"first_logged,omitempty"`
	LastLogged  string `json:"last_logged,omitempty"`
}

// Stats counts rows and at-risk predictions.
func (db *DB) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	var first, last sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(prediction = 1), 0), MIN(timestamp), MAX(timestamp)
		FROM predictions`).Scan(&s.Total, &s.AtRisk, &first, &last)
	if err != nil {
		return Stats{}, fmt.Errorf("prediction stats: %w", err)
	}
	s.FirstLogged, s.LastLogged = first.String, last.String
	return s, nil
}

// AttachAdminRoutes mounts live SQL, backup and stats handlers under
// /debug/ on mux.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(db.path), db.DB, &tailsql.DBOptions{
		Label: "Predictions DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Download a gzipped snapshot of the predictions database", http.HandlerFunc(db.handleBackup))

	debug.Handle("stats", "Prediction counts", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats, err := db.Stats(r.Context())
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, stats)
	}))
	return nil
}

func (db *DB) handleBackup(w http.ResponseWriter, r *http.Request) {
	dir, err := os.MkdirTemp("", "risk-backup-")
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to create backup: %v", err))
		return
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logf("failed to remove backup dir: %v", err)
		}
	}()

	stem := security.SanitizeFilename(strings.TrimSuffix(filepath.Base(db.path), filepath.Ext(db.path)))
	name := fmt.Sprintf("%s-backup-%d.db", stem, time.Now().Unix())
	backupPath := filepath.Join(dir, name)
	if _, err := db.ExecContext(r.Context(), "VACUUM INTO ?", backupPath); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to create backup: %v", err))
		return
	}

	f, err := os.Open(backupPath)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to open backup: %v", err))
		return
	}
	defer f.Close()

	httputil.SetAttachment(w, name+".gz", "application/gzip")
	gz := gzip.NewWriter(w)
	if _, err := io.Copy(gz, f); err != nil {
		logf("backup stream failed: %v", err)
		return
	}
	if err := gz.Close(); err != nil {
		logf("backup stream failed: %v", err)
	}
}
