package db

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/risk.report/internal/model"
	"github.com/banshee-data/risk.report/internal/predlog"
	"github.com/banshee-data/risk.report/internal/testutil"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "predictions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seed(t *testing.T, db *DB, n int) []predlog.Entry {
	t.Helper()
	start := time.Date(2025, 5, 1, 12, 0, 0, 0, time.Local)
	var entries []predlog.Entry
	for i := 0; i < n; i++ {
		in := testutil.NoRiskInput()
		res := model.Result{Class: 0, Probability: 0.0833}
		if i%3 == 0 {
			in = testutil.AtRiskInput()
			res = model.Result{Class: 1, Probability: 0.832}
		}
		e := predlog.NewEntry(start.Add(time.Duration(i)*time.Minute), in, res)
		require.NoError(t, db.Append(context.Background(), e))
		entries = append(entries, e)
	}
	return entries
}

func TestPragmasApplied(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)
}

func TestAppendAndReadBack(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	want := seed(t, db, 12)
	ctx := context.Background()

	all, err := db.All(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, all); diff != "" {
		t.Errorf("All mismatch (-want +got):\n%s", diff)
	}

	tail, err := db.Tail(ctx, 10)
	require.NoError(t, err)
	if diff := cmp.Diff(want[2:], tail); diff != "" {
		t.Errorf("Tail mismatch (-want +got):\n%s", diff)
	}

	tail, err = db.Tail(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, tail)
}

func TestPredictionIDsAreUnique(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	seed(t, db, 5)

	var distinct int
	require.NoError(t, db.QueryRow("SELECT COUNT(DISTINCT prediction_id) FROM predictions").Scan(&distinct))
	assert.Equal(t, 5, distinct)
}

func TestEmptyTable(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)

	all, err := db.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)

	var buf bytes.Buffer
	require.NoError(t, db.Export(context.Background(), &buf))
	assert.Equal(t, strings.Join(predlog.Header(), ",")+"\n", buf.String())
}

func TestExport(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	want := seed(t, db, 3)

	var buf bytes.Buffer
	require.NoError(t, db.Export(context.Background(), &buf))
	got, err := predlog.ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStats(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	seed(t, db, 7)

	s, err := db.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, s.Total)
	assert.Equal(t, 3, s.AtRisk)
	assert.Equal(t, "2025-05-01 12:00:00", s.FirstLogged)
	assert.Equal(t, "2025-05-01 12:06:00", s.LastLogged)
}

func TestImplementsStore(t *testing.T) {
	var _ predlog.Store = (*DB)(nil)
}

func TestMigrations(t *testing.T) {
	t.Parallel()
	migrations, err := Migrations()
	require.NoError(t, err)

	names, err := fs.Glob(migrations, "*.sql")
	require.NoError(t, err)
	assert.Len(t, names, 4)

	latest, err := LatestMigrationVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, uint(2), latest)

	db := newTestDB(t)
	st, err := db.Status(migrations)
	require.NoError(t, err)
	assert.Equal(t, MigrationStatus{Current: 2, Latest: 2}, st)
	assert.Zero(t, st.Pending())
}

func TestMigrateDownAndUp(t *testing.T) {
	t.Parallel()
	migrations, err := Migrations()
	require.NoError(t, err)
	db := newTestDB(t)

	require.NoError(t, db.MigrateTo(migrations, 1))
	v, dirty, err := db.MigrateVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateDown(migrations))
	var tables int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='predictions'").Scan(&tables))
	assert.Zero(t, tables)

	require.NoError(t, db.MigrateUp(migrations))
	seed(t, db, 1)
}

func TestLatestMigrationVersion_Empty(t *testing.T) {
	t.Parallel()
	_, err := LatestMigrationVersion(fstestEmpty{})
	assert.Error(t, err)
}

type fstestEmpty struct{}

func (fstestEmpty) Open(string) (fs.File, error) { return nil, fs.ErrNotExist }

func TestRunMigrateCommand(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "cli.db")

	var out bytes.Buffer
	require.NoError(t, RunMigrateCommand([]string{"status"}, path, &out))
	assert.Contains(t, out.String(), "Current version: 0")
	assert.Contains(t, out.String(), "2 migration(s) pending")

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"up"}, path, &out))
	assert.Contains(t, out.String(), "Current version: 2")

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"version", "1"}, path, &out))
	assert.Contains(t, out.String(), "Migrated to version 1")

	assert.Error(t, RunMigrateCommand([]string{"version"}, path, &out))
	assert.Error(t, RunMigrateCommand([]string{"version", "x"}, path, &out))
	assert.Error(t, RunMigrateCommand([]string{"sideways"}, path, &out))
	assert.Error(t, RunMigrateCommand(nil, path, &out))

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"help"}, path, &out))
	assert.Contains(t, out.String(), "Usage: risk migrate")
}

func loopbackRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "127.0.0.1:40000"
	return req
}

func TestAttachAdminRoutes(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	seed(t, db, 4)

	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	t.Run("stats", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, loopbackRequest(http.MethodGet, "/debug/stats"))
		require.NotEqual(t, http.StatusNotFound, w.Code)
		if w.Code == http.StatusOK {
			var s Stats
			require.NoError(t, json.NewDecoder(w.Body).Decode(&s))
			assert.Equal(t, 4, s.Total)
		}
	})

	t.Run("backup", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, loopbackRequest(http.MethodGet, "/debug/backup"))
		require.NotEqual(t, http.StatusNotFound, w.Code)
		if w.Code == http.StatusOK {
			assert.Contains(t, w.Header().Get("Content-Disposition"), ".db.gz")
			gz, err := gzip.NewReader(w.Body)
			require.NoError(t, err)
			data, err := io.ReadAll(gz)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(data, []byte("SQLite format 3")))
		}
	})

	t.Run("tailsql", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, loopbackRequest(http.MethodGet, "/debug/tailsql/"))
		assert.NotEqual(t, http.StatusNotFound, w.Code)
	})
}
