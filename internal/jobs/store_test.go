package jobs

import (
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testJob(id string) *Job {
	return &Job{
		ID:          id,
		InputPath:   "/data/" + id + "_input.mp4",
		OutputPath:  "/data/" + id + "_thermal.mp4",
		SummaryPath: "/data/" + id + "_summary.json",
		ParamsJSON:  `{"gamma":1.2}`,
	}
}

func TestStoreInsertAndGet(t *testing.T) {
	s := newTestStore(t)
	if err := s.Insert(testJob("a1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	j, err := s.GetJob("a1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if j.Status != StatusQueued {
		t.Errorf("status = %q, want queued", j.Status)
	}
	if j.InputPath != "/data/a1_input.mp4" || j.ParamsJSON != `{"gamma":1.2}` {
		t.Errorf("stored fields wrong: %+v", j)
	}
	if j.CreatedAt.IsZero() {
		t.Error("created_at not stamped")
	}
	if j.StartedAt.Valid || j.FinishedAt.Valid {
		t.Error("queued job should have no started/finished stamps")
	}
}

func TestStoreGetUnknown(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetJob("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetJob unknown = %v, want ErrNotFound", err)
	}
}

func TestStoreLifecycleDone(t *testing.T) {
	s := newTestStore(t)
	if err := s.Insert(testJob("a2")); err != nil {
		t.Fatal(err)
	}

	if err := s.MarkRunning("a2"); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	j, _ := s.GetJob("a2")
	if j.Status != StatusRunning || !j.StartedAt.Valid {
		t.Errorf("after MarkRunning: %+v", j)
	}
	if j.Terminal() {
		t.Error("running job reported terminal")
	}

	if err := s.MarkDone("a2"); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	j, _ = s.GetJob("a2")
	if j.Status != StatusDone || !j.FinishedAt.Valid || j.Error != "" {
		t.Errorf("after MarkDone: %+v", j)
	}
	if !j.Terminal() {
		t.Error("done job not terminal")
	}
}

func TestStoreLifecycleError(t *testing.T) {
	s := newTestStore(t)
	if err := s.Insert(testJob("a3")); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkError("a3", "thermal-proc exited with status 3"); err != nil {
		t.Fatalf("MarkError: %v", err)
	}

	j, _ := s.GetJob("a3")
	if j.Status != StatusError || j.Error != "thermal-proc exited with status 3" {
		t.Errorf("after MarkError: %+v", j)
	}
	if !j.Terminal() {
		t.Error("errored job not terminal")
	}
}

func TestStoreMarkUnknown(t *testing.T) {
	s := newTestStore(t)
	if err := s.MarkDone("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkDone unknown = %v, want ErrNotFound", err)
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"j1", "j2", "j3"} {
		if err := s.Insert(testJob(id)); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListJobs()
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d jobs, want 3", len(all))
	}
	// Identical created_at falls back to id descending.
	if all[0].ID != "j3" || all[2].ID != "j1" {
		t.Errorf("order = %s,%s,%s, want j3,j2,j1", all[0].ID, all[1].ID, all[2].ID)
	}
}

func TestStoreRequeueStuck(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"r1", "r2", "r3"} {
		if err := s.Insert(testJob(id)); err != nil {
			t.Fatal(err)
		}
	}
	s.MarkRunning("r1")
	s.MarkRunning("r2")
	s.MarkDone("r2")

	// Both the interrupted running job and the never-dispatched queued
	// job come back; the finished one stays put.
	ids, err := s.RequeueStuck()
	if err != nil {
		t.Fatalf("RequeueStuck: %v", err)
	}
	if len(ids) != 2 || ids[0] != "r1" || ids[1] != "r3" {
		t.Fatalf("requeued %v, want [r1 r3]", ids)
	}

	j, _ := s.GetJob("r1")
	if j.Status != StatusQueued {
		t.Errorf("r1 status = %q, want queued", j.Status)
	}
	if j2, _ := s.GetJob("r2"); j2.Status != StatusDone {
		t.Errorf("r2 status = %q, want done untouched", j2.Status)
	}
}

func TestStoreMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	s1, err := NewStore(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := s1.Insert(testJob("persist")); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if _, err := s2.GetJob("persist"); err != nil {
		t.Errorf("job lost across reopen: %v", err)
	}
}
