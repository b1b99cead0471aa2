// Package api exposes the job service over HTTP: video upload, status
// polling, live log streaming, result download, and a summary chart.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/google/uuid"

	"github.com/banshee-data/thermal.report/internal/jobs"
	"github.com/banshee-data/thermal.report/internal/security"
	"github.com/banshee-data/thermal.report/internal/thermal"
	"github.com/banshee-data/thermal.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxUploadBytes bounds a single multipart upload.
const maxUploadBytes = 2 << 30

type Server struct {
	store    *jobs.Store
	queue    *jobs.Queue
	dataDir  string
	defaults thermal.RunConfig
}

// NewServer builds the HTTP surface. defaults supplies the baseline
// pipeline parameters applied to uploads that omit tuning fields.
func NewServer(store *jobs.Store, queue *jobs.Queue, dataDir string, defaults thermal.RunConfig) *Server {
	return &Server{
		store:    store,
		queue:    queue,
		dataDir:  dataDir,
		defaults: defaults.Sanitized(),
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.showIndex)
	mux.HandleFunc("GET /favicon.ico", showFavicon)
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("GET /api/jobs", s.listJobs)
	mux.HandleFunc("GET /api/status/{id}", s.showStatus)
	mux.HandleFunc("GET /api/logs/{id}", s.streamLogs)
	mux.HandleFunc("GET /api/download/{id}", s.downloadResult)
	mux.HandleFunc("GET /api/summary/{id}", s.showSummary)
	mux.HandleFunc("GET /api/chart/{id}", s.renderChart)
	mux.HandleFunc("GET /api/health", s.showHealth)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Failed to write response: %v", err)
	}
}

// formFloat reads a float form field, falling back to def when absent
// or unparseable. Out-of-range values are clamped later, never
// rejected.
func formFloat(r *http.Request, key string, def float64) float64 {
	v := r.FormValue(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func formBool(r *http.Request, key string) bool {
	switch r.FormValue(key) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// handleUpload accepts a multipart video upload plus optional tuning
// fields, stores the file under the data directory, and queues a
// processing job.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("video")
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "missing 'video' file field")
		return
	}
	defer file.Close()

	cfg := thermal.RunConfig{
		PercentileLow:  formFloat(r, "plow", s.defaults.PercentileLow),
		PercentileHigh: formFloat(r, "phigh", s.defaults.PercentileHigh),
		Gamma:          formFloat(r, "gamma", s.defaults.Gamma),
		AlphaMax:       formFloat(r, "alpha", s.defaults.AlphaMax),
		AmbientC:       formFloat(r, "ambient", s.defaults.AmbientC),
		MaxC:           formFloat(r, "maxc", s.defaults.MaxC),
		Stat:           r.FormValue("stat"),
	}
	if cfg.Stat == "" {
		cfg.Stat = s.defaults.Stat
	}
	cfg = cfg.Sanitized()

	params := jobs.Params{
		PercentileLow:  cfg.PercentileLow,
		PercentileHigh: cfg.PercentileHigh,
		Gamma:          cfg.Gamma,
		Alpha:          cfg.AlphaMax,
		Stat:           cfg.Stat,
		AmbientC:       cfg.AmbientC,
		MaxC:           cfg.MaxC,
		Preview:        formBool(r, "preview"),
		NoOverlay:      formBool(r, "no_overlay"),
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "failed to encode params")
		return
	}

	id := uuid.New().String()
	ext := filepath.Ext(header.Filename)
	if ext == "" {
		ext = ".mp4"
	}
	inputPath := filepath.Join(s.dataDir, id+"_input"+ext)
	outputPath := filepath.Join(s.dataDir, id+"_thermal.mp4")
	summaryPath := filepath.Join(s.dataDir, id+"_summary.json")

	dst, err := os.Create(inputPath)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(inputPath)
		s.writeJSONError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	if err := dst.Close(); err != nil {
		os.Remove(inputPath)
		s.writeJSONError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	job := &jobs.Job{
		ID:          id,
		InputPath:   inputPath,
		OutputPath:  outputPath,
		SummaryPath: summaryPath,
		ParamsJSON:  string(paramsJSON),
	}
	if err := s.queue.Submit(job); err != nil {
		os.Remove(inputPath)
		s.writeJSONError(w, http.StatusInternalServerError, "failed to queue job")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"jobId": id, "status": jobs.StatusQueued})
}

func (s *Server) loadJob(w http.ResponseWriter, r *http.Request) *jobs.Job {
	job, err := s.store.GetJob(r.PathValue("id"))
	if errors.Is(err, jobs.ErrNotFound) {
		s.writeJSONError(w, http.StatusNotFound, "unknown_job")
		return nil
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "failed to load job")
		return nil
	}
	return job
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.ListJobs()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	if all == nil {
		all = []*jobs.Job{}
	}
	s.writeJSON(w, all)
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	job := s.loadJob(w, r)
	if job == nil {
		return
	}
	s.writeJSON(w, job)
}

// streamLogs follows a job's log as server-sent events: a replay of
// everything so far, then the live stream, then a final "done" event
// carrying the terminal status.
func (s *Server) streamLogs(w http.ResponseWriter, r *http.Request) {
	job := s.loadJob(w, r)
	if job == nil {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	subID, replay, c := s.queue.SubscribeLogs(job.ID)
	defer s.queue.UnsubscribeLogs(job.ID, subID)

	// Send initial ping to establish connection
	w.Write([]byte(": ping\n\n"))
	w.(http.Flusher).Flush()

	for _, line := range replay {
		fmt.Fprintf(w, "data: %s\n\n", line)
	}
	w.(http.Flusher).Flush()

	for {
		select {
		case line, ok := <-c:
			if !ok {
				status := job.Status
				if j, err := s.store.GetJob(job.ID); err == nil {
					status = j.Status
				}
				fmt.Fprintf(w, "event: done\ndata: %s\n\n", status)
				w.(http.Flusher).Flush()
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", line); err != nil {
				return
			}
			w.(http.Flusher).Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) downloadResult(w http.ResponseWriter, r *http.Request) {
	job := s.loadJob(w, r)
	if job == nil {
		return
	}
	if job.Status != jobs.StatusDone {
		s.writeJSONError(w, http.StatusBadRequest, "not_ready")
		return
	}
	if err := security.ValidateWithinDir(job.OutputPath, s.dataDir); err != nil {
		log.Printf("[API] Rejected output path for job %s: %v", job.ID, err)
		s.writeJSONError(w, http.StatusInternalServerError, "file_missing")
		return
	}
	if _, err := os.Stat(job.OutputPath); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "file_missing")
		return
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(job.OutputPath)))
	http.ServeFile(w, r, job.OutputPath)
}

func (s *Server) loadSummary(w http.ResponseWriter, job *jobs.Job) *thermal.Summary {
	if job.Status != jobs.StatusDone {
		s.writeJSONError(w, http.StatusBadRequest, "not_ready")
		return nil
	}
	if err := security.ValidateWithinDir(job.SummaryPath, s.dataDir); err != nil {
		log.Printf("[API] Rejected summary path for job %s: %v", job.ID, err)
		s.writeJSONError(w, http.StatusInternalServerError, "file_missing")
		return nil
	}
	raw, err := os.ReadFile(job.SummaryPath)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "file_missing")
		return nil
	}
	var sum thermal.Summary
	if err := json.Unmarshal(raw, &sum); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "invalid summary")
		return nil
	}
	return &sum
}

func (s *Server) showSummary(w http.ResponseWriter, r *http.Request) {
	job := s.loadJob(w, r)
	if job == nil {
		return
	}
	sum := s.loadSummary(w, job)
	if sum == nil {
		return
	}
	s.writeJSON(w, sum)
}

// renderChart renders the job's hotspot summary as a standalone HTML
// bar chart of simulated temperature per hotspot.
func (s *Server) renderChart(w http.ResponseWriter, r *http.Request) {
	job := s.loadJob(w, r)
	if job == nil {
		return
	}
	sum := s.loadSummary(w, job)
	if sum == nil {
		return
	}

	labels := make([]string, 0, len(sum.Hotspots))
	temps := make([]opts.BarData, 0, len(sum.Hotspots))
	areas := make([]opts.BarData, 0, len(sum.Hotspots))
	for i, h := range sum.Hotspots {
		labels = append(labels, fmt.Sprintf("#%d f%d", i+1, h.FrameIdx))
		temps = append(temps, opts.BarData{Value: h.TempC})
		areas = append(areas, opts.BarData{Value: h.Pixels})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Thermal Hotspots", Theme: "dark", Width: "1100px", Height: "550px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Hotspots by simulated temperature",
			Subtitle: fmt.Sprintf("file=%s frames=%d stat=%s", filepath.Base(sum.File), sum.FramesUsed, sum.Stat),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Temp (C)"}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("temp_c", temps)
	bar.AddSeries("pixels", areas)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// indexPage is a bare operator page: an upload form plus a link to the
// job list, so the server is usable from a browser without a separate
// frontend.
const indexPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>thermal.report</title></head>
<body>
<h1>thermal.report</h1>
<form action="/api/upload" method="post" enctype="multipart/form-data">
  <p><input type="file" name="video" accept="video/*" required></p>
  <p>
    <label>plow <input name="plow" size="5" placeholder="0.80"></label>
    <label>phigh <input name="phigh" size="5" placeholder="0.98"></label>
    <label>gamma <input name="gamma" size="5" placeholder="1.2"></label>
    <label>alpha <input name="alpha" size="5" placeholder="0.6"></label>
  </p>
  <p>
    <label>stat <select name="stat"><option>avg</option><option>max</option></select></label>
    <label>ambient <input name="ambient" size="5" placeholder="22"></label>
    <label>maxc <input name="maxc" size="5" placeholder="120"></label>
    <label><input type="checkbox" name="preview" value="1"> preview</label>
    <label><input type="checkbox" name="no_overlay" value="1"> no overlay</label>
  </p>
  <p><button type="submit">Process</button></p>
</form>
<p><a href="/api/jobs">jobs</a> &middot; <a href="/api/health">health</a></p>
</body>
</html>
`

func (s *Server) showIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexPage))
}

func showFavicon(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) showHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	s.writeJSON(w, map[string]string{"status": "ok", "version": version.Version})
}
