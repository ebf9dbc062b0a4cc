package timeline

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/diskd-ai/ccbox/internal/ccmodel"
	"github.com/diskd-ai/ccbox/internal/rawevent"
	rawclaude "github.com/diskd-ai/ccbox/internal/rawevent/claude"
	rawcodex "github.com/diskd-ai/ccbox/internal/rawevent/codex"
	rawgemini "github.com/diskd-ai/ccbox/internal/rawevent/gemini"
	rawopencode "github.com/diskd-ai/ccbox/internal/rawevent/opencode"
	scanopencode "github.com/diskd-ai/ccbox/internal/scan/opencode"
)

// ReadSession streams every event of one session's log source (dispatched
// by engine) and assembles its full Timeline. logPath is the
// SessionSummary.LogPath; for OpenCode it is "<db_path>#<session_id>" as
// produced by internal/scan/opencode.
func ReadSession(sessionID string, engine ccmodel.Engine, logPath string) (ccmodel.Timeline, error) {
	origin, events, malformed, truncated, err := readEvents(engine, logPath)
	if err != nil {
		return ccmodel.Timeline{}, err
	}
	return Assemble(sessionID, engine, origin, events, malformed, truncated), nil
}

// History implements the pagination contract (spec.md §4.4, P6): the
// source is re-read from the start on every call rather than caching the
// assembled item slice, trading CPU for simplicity at ccbox's scale.
func History(sessionID string, engine ccmodel.Engine, logPath string, offset, limit int) ([]ccmodel.TimelineItem, error) {
	tl, err := ReadSession(sessionID, engine, logPath)
	if err != nil {
		return nil, err
	}
	return paginate(tl.Items, offset, limit), nil
}

func paginate(items []ccmodel.TimelineItem, offset, limit int) []ccmodel.TimelineItem {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

func readEvents(engine ccmodel.Engine, logPath string) (origin time.Time, events []rawevent.Event, malformed int, truncated bool, err error) {
	switch engine {
	case ccmodel.EngineCodex:
		return readCodex(logPath)
	case ccmodel.EngineClaude:
		return readClaude(logPath)
	case ccmodel.EngineGemini:
		return readGemini(logPath)
	case ccmodel.EngineOpenCode:
		return readOpenCode(logPath)
	default:
		return time.Time{}, nil, 0, false, fmt.Errorf("timeline: unknown engine %q", engine)
	}
}

func readCodex(path string) (time.Time, []rawevent.Event, int, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, nil, 0, false, err
	}
	defer f.Close()

	events, malformed, err := rawcodex.DecodeAll(f)
	truncated := false
	if err != nil {
		truncated = true
	}

	var origin time.Time
	for _, ev := range events {
		if ev.Kind == rawevent.KindSessionMeta {
			origin = ev.Timestamp
			break
		}
	}
	return origin, events, malformed, truncated, nil
}

func readClaude(path string) (time.Time, []rawevent.Event, int, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, nil, 0, false, err
	}
	defer f.Close()

	events, malformed, err := rawclaude.DecodeAll(f)
	truncated := err != nil

	var origin time.Time
	for _, ev := range events {
		if !ev.Timestamp.IsZero() {
			origin = ev.Timestamp
			break
		}
	}
	return origin, events, malformed, truncated, nil
}

func readGemini(path string) (time.Time, []rawevent.Event, int, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, nil, 0, false, err
	}
	_, _, startTime, _, events, err := rawgemini.DecodeDocument(data)
	if err != nil {
		return time.Time{}, nil, 0, false, err
	}
	return startTime, events, 0, false, nil
}

// readOpenCode re-queries the database for logPath's "<db>#<session_id>"
// identity, decoding every part row for that session in order.
func readOpenCode(logPath string) (time.Time, []rawevent.Event, int, bool, error) {
	dbPath, sessionID, ok := strings.Cut(logPath, "#")
	if !ok {
		return time.Time{}, nil, 0, false, fmt.Errorf("timeline: malformed opencode log path %q", logPath)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&immutable=1", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return time.Time{}, nil, 0, false, err
	}
	defer db.Close()

	var created int64
	if err := db.QueryRow(`SELECT created FROM session WHERE id = ?`, sessionID).Scan(&created); err != nil {
		return time.Time{}, nil, 0, false, err
	}
	origin := time.UnixMilli(created)

	rows, err := db.Query(scanopencode.PartQuery, sessionID)
	if err != nil {
		return time.Time{}, nil, 0, false, err
	}
	defer rows.Close()

	var events []rawevent.Event
	malformed := 0
	for rows.Next() {
		row, ok := scanopencode.ScanPartRow(rows)
		if !ok {
			malformed++
			continue
		}
		ev, ok, decErr := rawopencode.DecodeRow(row)
		if decErr != nil {
			malformed++
		}
		if ok {
			events = append(events, ev)
		}
	}
	if err := rows.Err(); err != nil {
		return origin, events, malformed, true, nil
	}
	return origin, events, malformed, false, nil
}
