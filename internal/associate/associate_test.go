package associate

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func mkSessionFile(t *testing.T, root string, day time.Time, filename string) {
	t.Helper()
	dir := filepath.Join(root,
		day.Format("2006"), day.Format("01"), day.Format("02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, filename), []byte("{}"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

// TestFindLogFileSameDay covers P7's exact-day case.
func TestFindLogFileSameDay(t *testing.T) {
	root := t.TempDir()
	day := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	mkSessionFile(t, root, day, "rollout-session-abc123.jsonl")

	got, err := findLogFile(root, "abc123", day.Format(time.RFC3339))
	if err != nil {
		t.Fatalf("findLogFile: %v", err)
	}
	want := filepath.Join(root, "2026", "03", "15", "rollout-session-abc123.jsonl")
	if got != want {
		t.Fatalf("findLogFile = %q, want %q", got, want)
	}
}

// TestFindLogFileLocalDateDriftPreviousDay covers the ±1 day search: the
// file was written under the local-calendar-date directory from the day
// before the event's UTC timestamp.
func TestFindLogFileLocalDateDriftPreviousDay(t *testing.T) {
	root := t.TempDir()
	eventTime := time.Date(2026, 3, 15, 0, 30, 0, 0, time.UTC)
	writtenDay := eventTime.AddDate(0, 0, -1)
	mkSessionFile(t, root, writtenDay, "rollout-session-xyz789.jsonl")

	got, err := findLogFile(root, "xyz789", eventTime.Format(time.RFC3339))
	if err != nil {
		t.Fatalf("findLogFile: %v", err)
	}
	want := filepath.Join(root, writtenDay.Format("2006"), writtenDay.Format("01"), writtenDay.Format("02"), "rollout-session-xyz789.jsonl")
	if got != want {
		t.Fatalf("findLogFile = %q, want %q", got, want)
	}
}

// TestFindLogFileLocalDateDriftNextDay covers the other drift direction.
func TestFindLogFileLocalDateDriftNextDay(t *testing.T) {
	root := t.TempDir()
	eventTime := time.Date(2026, 3, 15, 23, 45, 0, 0, time.UTC)
	writtenDay := eventTime.AddDate(0, 0, 1)
	mkSessionFile(t, root, writtenDay, "rollout-session-nextday.jsonl")

	got, err := findLogFile(root, "nextday", eventTime.Format(time.RFC3339))
	if err != nil {
		t.Fatalf("findLogFile: %v", err)
	}
	want := filepath.Join(root, writtenDay.Format("2006"), writtenDay.Format("01"), writtenDay.Format("02"), "rollout-session-nextday.jsonl")
	if got != want {
		t.Fatalf("findLogFile = %q, want %q", got, want)
	}
}

func TestFindLogFileNotFoundReturnsError(t *testing.T) {
	root := t.TempDir()
	day := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	if _, err := findLogFile(root, "missing-session", day.Format(time.RFC3339)); err == nil {
		t.Fatal("expected error when no matching log file exists within ±1 day")
	}
}

func TestFindLogFileFallsBackToNowOnUnparseableTimestamp(t *testing.T) {
	root := t.TempDir()
	now := time.Now().UTC()
	mkSessionFile(t, root, now, "rollout-session-badtime.jsonl")

	got, err := findLogFile(root, "badtime", "not-a-timestamp")
	if err != nil {
		t.Fatalf("findLogFile: %v", err)
	}
	want := filepath.Join(root, now.Format("2006"), now.Format("01"), now.Format("02"), "rollout-session-badtime.jsonl")
	if got != want {
		t.Fatalf("findLogFile = %q, want %q", got, want)
	}
}
