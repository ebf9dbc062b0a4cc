// Package associate implements Session Association (ccbox core
// component C7): while a spawned Codex child's stdout is captured, a
// side-channel parser watches for a session_meta record and then
// locates the on-disk log it belongs to.
package associate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/diskd-ai/ccbox/internal/ccerr"
	"github.com/diskd-ai/ccbox/internal/supervisor"
)

// Result is the resolved identity of a spawned child's own session log.
type Result struct {
	SessionID string
	LogPath   string
}

type sessionMetaLine struct {
	Type    string `json:"type"`
	Payload struct {
		ID        string `json:"id"`
		Timestamp string `json:"timestamp"`
	} `json:"payload"`
}

// Associate taps processID's stdout side channel for a session_meta
// record and resolves the on-disk log file it names. It keeps
// listening across the child's exit, allowing a further grace period
// (timeout) after exit before giving up — matching spec.md §4.7's "not
// found within 30s after the child exits" rule rather than a flat
// deadline from spawn time.
func Associate(ctx context.Context, sup *supervisor.Supervisor, processID, sessionsRoot string, timeout time.Duration) (Result, error) {
	found := make(chan sessionMetaLine, 1)
	unregister := sup.OnLine(processID, func(line string) {
		var rec sessionMetaLine
		if err := json.Unmarshal([]byte(line), &rec); err != nil || rec.Type != "session_meta" {
			return
		}
		select {
		case found <- rec:
		default:
		}
	})
	defer unregister()

	done := sup.Done(processID)
	var deadline <-chan time.Time

	for {
		select {
		case rec := <-found:
			logPath, err := findLogFile(sessionsRoot, rec.Payload.ID, rec.Payload.Timestamp)
			if err != nil {
				return Result{}, err
			}
			sup.SetAssociatedSession(processID, rec.Payload.ID)
			return Result{SessionID: rec.Payload.ID, LogPath: logPath}, nil

		case <-done:
			if deadline == nil {
				timer := time.NewTimer(timeout)
				defer timer.Stop()
				deadline = timer.C
			}
			done = nil // already fired once; stop selecting on it

		case <-deadline:
			return Result{}, ccerr.ErrAssociationTimeout

		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
}

// findLogFile searches the date directory of rawTimestamp's UTC calendar
// day (rawTimestamp is an RFC3339 string; the current time stands in when
// it does not parse) plus the day before and after, since the
// directory is keyed by local date at write time while the event
// timestamp is UTC and the two can disagree across the date boundary.
func findLogFile(sessionsRoot, sessionID, rawTimestamp string) (string, error) {
	ts, err := time.Parse(time.RFC3339, rawTimestamp)
	if err != nil {
		ts = time.Now().UTC()
	}
	ts = ts.UTC()

	for _, day := range []time.Time{ts, ts.AddDate(0, 0, -1), ts.AddDate(0, 0, 1)} {
		dir := filepath.Join(sessionsRoot,
			fmt.Sprintf("%04d", day.Year()),
			fmt.Sprintf("%02d", day.Month()),
			fmt.Sprintf("%02d", day.Day()))
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if strings.Contains(entry.Name(), sessionID) {
				return filepath.Join(dir, entry.Name()), nil
			}
		}
	}
	return "", fmt.Errorf("associate: session %s not found under %s (±1 day of %s)", sessionID, sessionsRoot, ts.Format(time.RFC3339))
}
