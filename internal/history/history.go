// Package history summarises the most recent predictions for the history
// views.
package history

import (
	"context"
	"errors"

	"github.com/banshee-data/risk.report/internal/predlog"
)

// DefaultLimit is the number of recent predictions shown.
const DefaultLimit = 10

// Messages shown in place of a chart.
const (
	MsgLogNotFound = "Prediction log not found. Please run some predictions first."
	MsgEmpty       = "No predictions have been logged yet."
)

// Point is one bar of the history chart.
type Point struct {
	Timestamp  string  `json:"timestamp"`
	RiskScore  float64 `json:"risk_score"`
	Prediction int     `json:"prediction"`
	Label      string  `json:"label"`
}

// AtRisk reports whether the point is a positive prediction.
func (p Point) AtRisk() bool { return p.Prediction == 1 }

// Recent takes the last n entries in log order and labels them.
func Recent(entries []predlog.Entry, n int) []Point {
	tail := predlog.TailOf(entries, n)
	points := make([]Point, len(tail))
	for i, e := range tail {
		points[i] = Point{
			Timestamp:  e.Timestamp,
			RiskScore:  e.RiskScore,
			Prediction: e.Prediction,
			Label:      e.Label(),
		}
	}
	return points
}

// Load reads the last n entries from r. When there is nothing to chart it
// returns no points and the message to show instead.
func Load(ctx context.Context, r predlog.Reader, n int) ([]Point, string, error) {
	entries, err := r.Tail(ctx, n)
	if errors.Is(err, predlog.ErrLogNotFound) {
		return nil, MsgLogNotFound, nil
	}
	if err != nil {
		return nil, "", err
	}
	if len(entries) == 0 {
		return nil, MsgEmpty, nil
	}
	return Recent(entries, n), "", nil
}
