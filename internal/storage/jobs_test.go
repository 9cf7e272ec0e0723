package storage

import (
	"testing"
	"time"
)

func jobState(t *testing.T, s *Store, id string) (status string, attempts int, lastError string, runAfter time.Time) {
	t.Helper()
	var ra string
	var le *string
	if err := s.db.QueryRow(`SELECT status, attempts, last_error, run_after FROM jobs WHERE id = ?`, id).Scan(&status, &attempts, &le, &ra); err != nil {
		t.Fatalf("reading job %s: %v", id, err)
	}
	if le != nil {
		lastError = *le
	}
	var err error
	if runAfter, err = parseTime(ra); err != nil {
		t.Fatalf("parsing run_after %q: %v", ra, err)
	}
	return status, attempts, lastError, runAfter
}

func mustEnqueue(t *testing.T, s *Store, j Job) {
	t.Helper()
	if j.PayloadJSON == "" {
		j.PayloadJSON = `{}`
	}
	if err := s.EnqueueJob(j); err != nil {
		t.Fatalf("EnqueueJob(%s): %v", j.ID, err)
	}
}

func TestEnqueueJob_Defaults(t *testing.T) {
	s := openTestStore(t)
	before := time.Now().Add(-time.Second)
	mustEnqueue(t, s, Job{ID: "j1", Type: "rfp.dispatch", PayloadJSON: `{"rfp_id":"r1"}`})

	status, attempts, _, runAfter := jobState(t, s, "j1")
	if status != "pending" || attempts != 0 {
		t.Errorf("status = %q attempts = %d, want pending 0", status, attempts)
	}
	if runAfter.Before(before) || runAfter.After(time.Now()) {
		t.Errorf("run_after = %v, want about now", runAfter)
	}

	var maxAttempts int
	s.db.QueryRow(`SELECT max_attempts FROM jobs WHERE id = 'j1'`).Scan(&maxAttempts)
	if maxAttempts != 3 {
		t.Errorf("max_attempts = %d, want 3", maxAttempts)
	}
}

func TestClaimNextJob(t *testing.T) {
	s := openTestStore(t)
	mustEnqueue(t, s, Job{ID: "j1", Type: "reply.process", PayloadJSON: `{"vendorEmail":"a@acme.test"}`, MaxAttempts: 5})

	got, err := s.ClaimNextJob([]string{"rfp.dispatch", "reply.process"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got == nil {
		t.Fatal("ClaimNextJob returned nil")
	}
	if got.ID != "j1" || got.Type != "reply.process" || got.Status != "running" || got.MaxAttempts != 5 {
		t.Errorf("claimed = %+v", got)
	}
	if got.PayloadJSON != `{"vendorEmail":"a@acme.test"}` {
		t.Errorf("PayloadJSON = %q", got.PayloadJSON)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not populated")
	}

	again, err := s.ClaimNextJob([]string{"reply.process"})
	if err != nil {
		t.Fatalf("second ClaimNextJob: %v", err)
	}
	if again != nil {
		t.Errorf("running job claimed twice: %+v", again)
	}
}

func TestClaimNextJob_Filters(t *testing.T) {
	tests := []struct {
		name  string
		jobs  []Job
		types []string
		want  string
	}{
		{name: "empty queue", types: []string{"x"}},
		{name: "no types", jobs: []Job{{ID: "j1", Type: "x"}}},
		{
			name:  "future run_after",
			jobs:  []Job{{ID: "j1", Type: "x", RunAfter: time.Now().Add(time.Hour)}},
			types: []string{"x"},
		},
		{
			name:  "type filter",
			jobs:  []Job{{ID: "j-a", Type: "a"}, {ID: "j-b", Type: "b"}},
			types: []string{"b"},
			want:  "j-b",
		},
		{
			name: "oldest due first",
			jobs: []Job{
				{ID: "j-late", Type: "x", RunAfter: time.Now().Add(-time.Minute)},
				{ID: "j-early", Type: "x", RunAfter: time.Now().Add(-time.Hour)},
			},
			types: []string{"x"},
			want:  "j-early",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestStore(t)
			for _, j := range tt.jobs {
				mustEnqueue(t, s, j)
			}
			got, err := s.ClaimNextJob(tt.types)
			if err != nil {
				t.Fatalf("ClaimNextJob: %v", err)
			}
			switch {
			case tt.want == "" && got != nil:
				t.Errorf("claimed %s, want nothing", got.ID)
			case tt.want != "" && (got == nil || got.ID != tt.want):
				t.Errorf("claimed %+v, want %s", got, tt.want)
			}
		})
	}
}

func TestCompleteJob(t *testing.T) {
	s := openTestStore(t)
	mustEnqueue(t, s, Job{ID: "j1", Type: "x"})
	s.ClaimNextJob([]string{"x"})

	if err := s.CompleteJob("j1"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	if status, _, _, _ := jobState(t, s, "j1"); status != "completed" {
		t.Errorf("status = %q, want completed", status)
	}
	if err := s.CompleteJob("missing"); err != ErrNotFound {
		t.Errorf("CompleteJob(missing) = %v, want ErrNotFound", err)
	}
}

func TestFailJob_RetriesWithBackoff(t *testing.T) {
	s := openTestStore(t)
	mustEnqueue(t, s, Job{ID: "j1", Type: "x"})
	s.ClaimNextJob([]string{"x"})

	before := time.Now()
	if err := s.FailJob("j1", "smtp timeout"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	status, attempts, lastError, runAfter := jobState(t, s, "j1")
	if status != "pending" || attempts != 1 || lastError != "smtp timeout" {
		t.Errorf("after first failure: status = %q attempts = %d last_error = %q", status, attempts, lastError)
	}
	if d := runAfter.Sub(before); d < retryBase || d > retryBase+time.Second {
		t.Errorf("first retry delay = %v, want about %v", d, retryBase)
	}

	s.db.Exec(`UPDATE jobs SET status = 'running' WHERE id = 'j1'`)
	before = time.Now()
	if err := s.FailJob("j1", "smtp timeout"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	_, attempts, _, runAfter = jobState(t, s, "j1")
	if d := runAfter.Sub(before); attempts != 2 || d < 2*retryBase || d > 2*retryBase+time.Second {
		t.Errorf("second retry: attempts = %d delay = %v, want 2 and about %v", attempts, d, 2*retryBase)
	}
}

func TestFailJob_GivesUpAtMaxAttempts(t *testing.T) {
	s := openTestStore(t)
	mustEnqueue(t, s, Job{ID: "j1", Type: "x", MaxAttempts: 1})
	s.ClaimNextJob([]string{"x"})

	if err := s.FailJob("j1", "fatal"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	if status, attempts, _, _ := jobState(t, s, "j1"); status != "failed" || attempts != 1 {
		t.Errorf("status = %q attempts = %d, want failed 1", status, attempts)
	}
	if got, _ := s.ClaimNextJob([]string{"x"}); got != nil {
		t.Errorf("failed job claimed: %+v", got)
	}
}

func TestFailJob_NotFound(t *testing.T) {
	s := openTestStore(t)
	if err := s.FailJob("missing", "x"); err != ErrNotFound {
		t.Errorf("FailJob(missing) = %v, want ErrNotFound", err)
	}
}

func TestRequeueRunningJobs(t *testing.T) {
	s := openTestStore(t)
	mustEnqueue(t, s, Job{ID: "j1", Type: "x"})
	mustEnqueue(t, s, Job{ID: "j2", Type: "x"})
	s.ClaimNextJob([]string{"x"})

	n, err := s.RequeueRunningJobs()
	if err != nil {
		t.Fatalf("RequeueRunningJobs: %v", err)
	}
	if n != 1 {
		t.Errorf("requeued %d, want 1", n)
	}
	for _, id := range []string{"j1", "j2"} {
		if status, _, _, _ := jobState(t, s, id); status != "pending" {
			t.Errorf("%s status = %q, want pending", id, status)
		}
	}
}
