// Package predlog records every successful prediction in an append-only log
// and reads it back for the preview, download and history views.
package predlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/risk.report/internal/features"
	"github.com/banshee-data/risk.report/internal/model"
)

// Leading log columns, ahead of the input fields.
const (
	ColTimestamp  = "Timestamp"
	ColPrediction = "Prediction"
	ColRiskScore  = "Risk Score"
)

// TimestampLayout is the wall-clock format written to the Timestamp column.
const TimestampLayout = time.DateTime

// Entry is one row of the prediction log.
type Entry struct {
	Timestamp  string         `json:"timestamp"`
	Prediction int            `json:"prediction"`
	RiskScore  float64        `json:"risk_score"`
	Input      features.Input `json:"input"`
}

// NewEntry stamps a result with now and rounds the risk score to four
// decimals.
func NewEntry(now time.Time, in features.Input, res model.Result) Entry {
	return Entry{
		Timestamp:  now.Format(TimestampLayout),
		Prediction: res.Class,
		RiskScore:  roundScore(res.Probability),
		Input:      in,
	}
}

// roundScore rounds p to four decimals of its exact decimal value.
func roundScore(p float64) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(p, 'f', 4, 64), 64)
	if err != nil {
		return p
	}
	return v
}

// Label is "At Risk" for prediction 1 and "No Risk" otherwise.
func (e Entry) Label() string {
	if e.Prediction == 1 {
		return "At Risk"
	}
	return "No Risk"
}

// Header returns the log's column names.
func Header() []string {
	return append([]string{ColTimestamp, ColPrediction, ColRiskScore}, features.FieldNames()...)
}

// Record renders e in Header order.
func (e Entry) Record() []string {
	rec := make([]string, 0, 3+len(features.FieldNames()))
	rec = append(rec, e.Timestamp, strconv.Itoa(e.Prediction), formatFloat(e.RiskScore))
	for _, f := range e.Input.Fields() {
		switch v := f.Value.(type) {
		case int:
			rec = append(rec, strconv.Itoa(v))
		case float64:
			rec = append(rec, formatFloat(v))
		default:
			rec = append(rec, fmt.Sprint(v))
		}
	}
	return rec
}

// formatFloat writes the shortest exact form and keeps a trailing ".0" on
// whole numbers, so 7 is written as "7.0" and 0.832 as "0.832".
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".nN") {
		s += ".0"
	}
	return s
}

// ParseRecord reads one row using the column positions in header. Columns
// missing from header keep their zero value; unknown columns are ignored.
func ParseRecord(header, rec []string) (Entry, error) {
	var e Entry
	for i, col := range header {
		if i >= len(rec) {
			break
		}
		raw := strings.TrimSpace(rec[i])
		switch col {
		case ColTimestamp:
			e.Timestamp = raw
		case ColPrediction:
			p, err := parseInt(raw)
			if err != nil {
				return Entry{}, fmt.Errorf("%s: %w", ColPrediction, err)
			}
			e.Prediction = p
		case ColRiskScore:
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return Entry{}, fmt.Errorf("%s: invalid number %q", ColRiskScore, raw)
			}
			e.RiskScore = v
		default:
			if err := e.Input.Set(col, raw); err != nil && !isUnknownField(col) {
				return Entry{}, err
			}
		}
	}
	return e, nil
}

func parseInt(raw string) (int, error) {
	if v, err := strconv.Atoi(raw); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid integer %q", raw)
	}
	return int(f), nil
}

func isUnknownField(col string) bool {
	for _, name := range features.FieldNames() {
		if name == col {
			return false
		}
	}
	return true
}

func checkHeader(header []string) error {
	have := make(map[string]bool, len(header))
	for _, col := range header {
		have[strings.TrimSpace(col)] = true
	}
	for _, col := range []string{ColTimestamp, ColPrediction, ColRiskScore} {
		if !have[col] {
			return fmt.Errorf("%w: header has no %q column", ErrBadHeader, col)
		}
	}
	return nil
}

// WriteCSV writes a header line followed by one line per entry.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write(e.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a log written by WriteCSV or CSVSink. The first line is
// taken as the header and must name the timestamp, prediction and risk
// score columns; an empty input yields no entries.
func ReadCSV(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read log header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	entries := []Entry{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read log line %d: %w", line, err)
		}
		e, err := ParseRecord(header, rec)
		if err != nil {
			return nil, fmt.Errorf("parse log line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
}
