package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/thermal.report/internal/config"
	"github.com/banshee-data/thermal.report/internal/jobs"
	"github.com/banshee-data/thermal.report/internal/monitoring"
	"github.com/banshee-data/thermal.report/internal/testutil"
	"github.com/banshee-data/thermal.report/internal/thermal"
)

// artifactRunner fakes a successful processor run: it logs the usual
// lines and writes the output and summary files a finished job is
// expected to leave behind.
type artifactRunner struct{}

func (artifactRunner) Run(ctx context.Context, j *jobs.Job, logf func(format string, v ...any)) error {
	logf("[thermal-proc] meta width=64 height=64")
	logf("[thermal-proc] done OK frames=10")
	if err := os.WriteFile(j.OutputPath, []byte("fake-video"), 0o644); err != nil {
		return err
	}
	cfg := thermal.DefaultRunConfig()
	agg := thermal.NewAggregator()
	agg.Add([]thermal.Hotspot{{X: 24, Y: 24, W: 10, H: 10, Pixels: 100, MeanScore: 0.9, TempC: 95.2, FrameIdx: 3, TSec: 0.3}})
	return thermal.WriteSummary(j.SummaryPath, agg.Build(cfg, j.InputPath, 64, 64, 10, 1.0))
}

func newTestServer(t *testing.T) (*Server, *jobs.Store, string) {
	t.Helper()
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	dataDir := t.TempDir()
	store, err := jobs.NewStore(filepath.Join(dataDir, "jobs.db"))
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { store.Close() })

	queue := jobs.NewQueue(store, artifactRunner{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	testutil.AssertNoError(t, queue.Start(ctx))
	t.Cleanup(func() {
		cancel()
		queue.Wait()
	})

	return NewServer(store, queue, dataDir, thermal.DefaultRunConfig()), store, dataDir
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, req)
	return rec
}

func waitTerminal(t *testing.T, store *jobs.Store, id string) *jobs.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		j, err := store.GetJob(id)
		testutil.AssertNoError(t, err)
		if j.Terminal() {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never finished", id)
	return nil
}

func uploadVideo(t *testing.T, s *Server, fields map[string]string) string {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("video", "clip.mp4")
	testutil.AssertNoError(t, err)
	fw.Write([]byte("not-really-mp4"))
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := do(t, s, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusAccepted)

	var resp map[string]string
	testutil.AssertNoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	if resp["jobId"] == "" {
		t.Fatal("upload response missing jobId")
	}
	if resp["status"] != jobs.StatusQueued {
		t.Errorf("upload status = %q, want queued", resp["status"])
	}
	return resp["jobId"]
}

func TestIndexPage(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	if !strings.Contains(rec.Body.String(), "/api/upload") {
		t.Error("index page missing the upload form")
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusNoContent)

	// The root pattern is exact; unknown paths still 404.
	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/nope", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("health body = %s", rec.Body.String())
	}
}

func TestStatusUnknownJob(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/status/does-not-exist", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
	if !strings.Contains(rec.Body.String(), "unknown_job") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestUploadMissingFile(t *testing.T) {
	s, _, _ := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("gamma", "1.5")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := do(t, s, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestUploadProcessDownloadFlow(t *testing.T) {
	s, store, dataDir := newTestServer(t)

	id := uploadVideo(t, s, map[string]string{"gamma": "1.5", "preview": "1"})

	// The upload landed on disk before the job was queued.
	matches, _ := filepath.Glob(filepath.Join(dataDir, id+"_input*"))
	if len(matches) != 1 {
		t.Fatalf("stored inputs = %v, want one", matches)
	}

	j := waitTerminal(t, store, id)
	if j.Status != jobs.StatusDone {
		t.Fatalf("job status = %q (%s), want done", j.Status, j.Error)
	}

	var p jobs.Params
	testutil.AssertNoError(t, json.Unmarshal([]byte(j.ParamsJSON), &p))
	if p.Gamma != 1.5 || !p.Preview {
		t.Errorf("params = %+v", p)
	}

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/status/"+id, nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"status":"done"`) {
		t.Errorf("status body = %s", rec.Body.String())
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/download/"+id, nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "attachment") {
		t.Errorf("Content-Disposition = %q", got)
	}
	if rec.Body.String() != "fake-video" {
		t.Errorf("download body = %q", rec.Body.String())
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/summary/"+id, nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var sum thermal.Summary
	testutil.AssertNoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	if len(sum.Hotspots) != 1 || sum.Hotspots[0].Pixels != 100 {
		t.Errorf("summary = %+v", sum)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/chart/"+id, nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("chart Content-Type = %q", ct)
	}
}

func TestUploadClampsOutOfRangeParams(t *testing.T) {
	s, store, _ := newTestServer(t)

	id := uploadVideo(t, s, map[string]string{
		"plow":  "-2",
		"phigh": "9",
		"gamma": "100",
		"alpha": "-1",
		"stat":  "median",
	})
	j := waitTerminal(t, store, id)

	var p jobs.Params
	testutil.AssertNoError(t, json.Unmarshal([]byte(j.ParamsJSON), &p))
	if p.PercentileLow != 0 || p.PercentileHigh != 0.999 {
		t.Errorf("percentiles = %v/%v", p.PercentileLow, p.PercentileHigh)
	}
	if p.Gamma != 6.0 || p.Alpha != 0 {
		t.Errorf("gamma/alpha = %v/%v", p.Gamma, p.Alpha)
	}
	if p.Stat != "avg" {
		t.Errorf("stat = %q, want avg", p.Stat)
	}
}

func TestUploadUsesServerDefaults(t *testing.T) {
	s, store, _ := newTestServer(t)
	gamma := 2.5
	stat := "max"
	s.defaults = (&config.ProcessingDefaults{Gamma: &gamma, Stat: &stat}).Apply(thermal.DefaultRunConfig())

	// Fields absent from the upload fall back to the server defaults;
	// explicit fields still win.
	id := uploadVideo(t, s, map[string]string{"alpha": "0.3"})
	j := waitTerminal(t, store, id)

	var p jobs.Params
	testutil.AssertNoError(t, json.Unmarshal([]byte(j.ParamsJSON), &p))
	if p.Gamma != 2.5 {
		t.Errorf("gamma = %v, want server default 2.5", p.Gamma)
	}
	if p.Stat != "max" {
		t.Errorf("stat = %q, want server default max", p.Stat)
	}
	if p.Alpha != 0.3 {
		t.Errorf("alpha = %v, want explicit 0.3", p.Alpha)
	}
}

func TestDownloadNotReady(t *testing.T) {
	s, store, _ := newTestServer(t)

	j := &jobs.Job{ID: "pending1", InputPath: "x", OutputPath: "y", SummaryPath: "z", ParamsJSON: "{}"}
	testutil.AssertNoError(t, store.Insert(j))

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/download/pending1", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
	if !strings.Contains(rec.Body.String(), "not_ready") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestDownloadFileMissing(t *testing.T) {
	s, store, dataDir := newTestServer(t)

	j := &jobs.Job{
		ID:          "gone1",
		InputPath:   "x",
		OutputPath:  filepath.Join(dataDir, "missing.mp4"),
		SummaryPath: "z",
		ParamsJSON:  "{}",
	}
	testutil.AssertNoError(t, store.Insert(j))
	testutil.AssertNoError(t, store.MarkDone("gone1"))

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/download/gone1", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusInternalServerError)
	if !strings.Contains(rec.Body.String(), "file_missing") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestLogsStreamFinishedJob(t *testing.T) {
	s, store, _ := newTestServer(t)

	id := uploadVideo(t, s, nil)
	waitTerminal(t, store, id)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/logs/"+id, nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "data: [thermal-proc] done OK frames=10") {
		t.Errorf("log replay missing: %s", body)
	}
	if !strings.Contains(body, "event: done\ndata: done") {
		t.Errorf("terminal event missing: %s", body)
	}
}

func TestListJobs(t *testing.T) {
	s, store, _ := newTestServer(t)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("empty list body = %s, want []", got)
	}

	id := uploadVideo(t, s, nil)
	waitTerminal(t, store, id)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	var list []jobs.Job
	testutil.AssertNoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	if len(list) != 1 || list[0].ID != id {
		t.Errorf("list = %+v", list)
	}
}
