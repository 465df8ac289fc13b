package predlog

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/banshee-data/risk.report/internal/fsutil"
)

// DefaultCSVPath is the log file name used when none is configured.
const DefaultCSVPath = "predictions_log.csv"

// CSVSink is the default log: a comma separated file with a header line
// written on the first append. The header is never rewritten, so a log
// written by an older field set keeps its original columns.
type CSVSink struct {
	fs   fsutil.FileSystem
	path string
}

// NewCSVSink returns a sink backed by path on fsys.
func NewCSVSink(fsys fsutil.FileSystem, path string) *CSVSink {
	if path == "" {
		path = DefaultCSVPath
	}
	return &CSVSink{fs: fsys, path: path}
}

// Path is the log file location.
func (s *CSVSink) Path() string { return s.path }

// Append writes e as one line, preceded by the header if the file is new
// or empty.
func (s *CSVSink) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fresh, err := s.needsHeader()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if fresh {
		if dir := filepath.Dir(s.path); dir != "." {
			if err := s.fs.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("create log directory: %w", err)
			}
		}
		if err := w.Write(Header()); err != nil {
			return err
		}
	}
	if err := w.Write(e.Record()); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	if err := s.fs.AppendFile(s.path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("append to %s: %w", s.path, err)
	}
	return nil
}

// needsHeader reports whether the file is absent or holds zero bytes. A
// failed first write can leave an empty file behind.
func (s *CSVSink) needsHeader() (bool, error) {
	info, err := s.fs.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", s.path, err)
	}
	return info.Size() == 0, nil
}

// All parses the whole file.
func (s *CSVSink) All(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.fs.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrLogNotFound
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return ReadCSV(bytes.NewReader(data))
}

// Tail returns the last n rows in file order.
func (s *CSVSink) Tail(ctx context.Context, n int) ([]Entry, error) {
	entries, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return TailOf(entries, n), nil
}

// Export copies the file byte for byte.
func (s *CSVSink) Export(ctx context.Context, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := s.fs.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrLogNotFound
		}
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("export %s: %w", s.path, err)
	}
	return nil
}
