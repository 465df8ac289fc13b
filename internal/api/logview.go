package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/banshee-data/risk.report/internal/history"
	"github.com/banshee-data/risk.report/internal/httputil"
	"github.com/banshee-data/risk.report/internal/monitoring"
	"github.com/banshee-data/risk.report/internal/predlog"
)

// DownloadName is the file name offered for the exported log.
const DownloadName = "predictions_log.csv"

// maxListLimit caps /api/predictions?limit=N.
const maxListLimit = 1000

func (s *Server) downloadLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}

	// Buffer so a failed read never sends a partial attachment.
	var buf bytes.Buffer
	err := s.log.Export(r.Context(), &buf)
	if errors.Is(err, predlog.ErrLogNotFound) {
		httputil.NotFound(w, history.MsgLogNotFound)
		return
	}
	if err != nil {
		monitoring.Logf("failed to export prediction log: %v", err)
		httputil.InternalServerError(w, "failed to export prediction log")
		return
	}

	httputil.SetAttachment(w, DownloadName, "text/csv")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := w.Write(buf.Bytes()); err != nil {
		monitoring.Logf("failed to write log download: %v", err)
	}
}

type historyPage struct {
	Title   string
	Message string
	Missing bool
	Error   string
}

func (s *Server) showHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}

	page := &historyPage{Title: "Recent Depression Predictions"}
	points, msg, err := history.Load(r.Context(), s.log, s.opts.HistoryLimit)
	if err != nil {
		monitoring.Logf("failed to load history: %v", err)
		page.Error = "Could not read the prediction log: " + err.Error()
		renderPage(w, http.StatusInternalServerError, "history.html", page)
		return
	}
	if msg != "" {
		page.Message = msg
		page.Missing = msg == history.MsgLogNotFound
		renderPage(w, http.StatusOK, "history.html", page)
		return
	}

	var buf bytes.Buffer
	if err := history.RenderBar(&buf, points); err != nil {
		monitoring.Logf("failed to render history chart: %v", err)
		page.Error = "Could not render the history chart."
		renderPage(w, http.StatusInternalServerError, "history.html", page)
		return
	}
	httputil.WriteHTML(w, http.StatusOK, buf.Bytes())
}

func (s *Server) showHistoryPNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}

	points, msg, err := history.Load(r.Context(), s.log, s.opts.HistoryLimit)
	if err != nil {
		monitoring.Logf("failed to load history: %v", err)
		httputil.InternalServerError(w, "failed to read prediction log")
		return
	}
	if msg != "" {
		httputil.NotFound(w, msg)
		return
	}

	var buf bytes.Buffer
	if err := history.RenderPNG(&buf, points); err != nil {
		monitoring.Logf("failed to render history png: %v", err)
		httputil.InternalServerError(w, "failed to render chart")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(buf.Bytes()); err != nil {
		monitoring.Logf("failed to write history png: %v", err)
	}
}

type loggedPrediction struct {
	predlog.Entry
	Label string `json:"label"`
}

type predictionsResponse struct {
	Count       int                `json:"count"`
	Predictions []loggedPrediction `json:"predictions"`
}

func (s *Server) listPredictions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}

	limit := s.opts.HistoryLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = min(parsed, maxListLimit)
	}

	entries, err := s.log.Tail(r.Context(), limit)
	if errors.Is(err, predlog.ErrLogNotFound) {
		httputil.NotFound(w, history.MsgLogNotFound)
		return
	}
	if err != nil {
		monitoring.Logf("failed to read prediction log: %v", err)
		httputil.InternalServerError(w, "failed to read prediction log")
		return
	}

	resp := predictionsResponse{Count: len(entries), Predictions: make([]loggedPrediction, 0, len(entries))}
	for _, e := range entries {
		resp.Predictions = append(resp.Predictions, loggedPrediction{Entry: e, Label: e.Label()})
	}
	httputil.WriteJSONOK(w, resp)
}
