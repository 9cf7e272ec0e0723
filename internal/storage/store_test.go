package storage

import (
	"slices"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:): %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_ReopenSkipsAppliedMigrations(t *testing.T) {
	dir := t.TempDir()

	var runs [][]int
	for range 2 {
		s, err := Open(dir)
		if err != nil {
			t.Fatalf("Open(%s): %v", dir, err)
		}
		v, err := s.AppliedMigrations()
		s.Close()
		if err != nil {
			t.Fatalf("AppliedMigrations: %v", err)
		}
		runs = append(runs, v)
	}

	if len(runs[0]) == 0 {
		t.Fatal("no migrations applied")
	}
	if !slices.Equal(runs[0], runs[1]) {
		t.Errorf("versions changed on reopen: %v then %v", runs[0], runs[1])
	}
	if !slices.IsSorted(runs[0]) {
		t.Errorf("versions not ascending: %v", runs[0])
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := openTestStore(t)

	var fk, busy int
	if err := s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if err := s.db.QueryRow("PRAGMA busy_timeout").Scan(&busy); err != nil {
		t.Fatal(err)
	}
	if fk != 1 || busy != 5000 {
		t.Errorf("foreign_keys = %d busy_timeout = %d, want 1 5000", fk, busy)
	}
}

func TestSchema_Indexes(t *testing.T) {
	s := openTestStore(t)

	rows, err := s.db.Query("SELECT name FROM sqlite_master WHERE type = 'index'")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	var got []string
	for rows.Next() {
		var name string
		rows.Scan(&name)
		got = append(got, name)
	}

	for _, want := range []string{"idx_rfps_created", "idx_proposals_rfp", "idx_dispatches_message", "idx_messages_conversation", "idx_jobs_status_run_after"} {
		if !slices.Contains(got, want) {
			t.Errorf("index %s missing (have %v)", want, got)
		}
	}
}

func TestTimeFormat_SortsAsText(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	earlier := formatTime(base)
	later := formatTime(base.Add(time.Millisecond))
	if !(earlier < later) {
		t.Errorf("%q should sort before %q", earlier, later)
	}
	if len(earlier) != len(later) {
		t.Errorf("layout not fixed width: %q vs %q", earlier, later)
	}

	back, err := parseTime(later)
	if err != nil {
		t.Fatalf("parseTime: %v", err)
	}
	if !back.Equal(base.Add(time.Millisecond)) {
		t.Errorf("round trip = %v", back)
	}
}
