package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	predictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "risk_predictions_total",
		Help: "Total number of predictions computed, by label.",
	}, []string{"label"})
	predictionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "risk_prediction_errors_total",
		Help: "Total number of predictions that failed during inference.",
	})
	invalidInputs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "risk_invalid_inputs_total",
		Help: "Total number of submissions rejected by input validation.",
	})
	logAppendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "risk_log_append_failures_total",
		Help: "Total number of predictions that could not be written to the log.",
	})
	riskScores = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "risk_score",
		Help:    "Distribution of positive-class probabilities.",
		Buckets: prometheus.LinearBuckets(0.1, 0.1, 9),
	})
)
