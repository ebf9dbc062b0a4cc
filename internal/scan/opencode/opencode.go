// Package opencode implements the OpenCode Source for the Session
// Scanner: open the OpenCode SQLite database read-only, probe its schema,
// and enumerate sessions via a read-only query.
package opencode

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/diskd-ai/ccbox/internal/ccerr"
	"github.com/diskd-ai/ccbox/internal/ccmodel"
	"github.com/diskd-ai/ccbox/internal/rawevent"
	rawopencode "github.com/diskd-ai/ccbox/internal/rawevent/opencode"
)

// requiredColumns is probed with PRAGMA table_info before any query runs;
// spec.md's Open Question resolution is to reject rather than fabricate
// fields when the schema doesn't match what ccbox targets.
var requiredColumns = map[string][]string{
	"session": {"id", "directory", "title", "created", "updated"},
	"message": {"id", "sessionID", "role", "created"},
	"part": {
		"id", "messageID", "type", "text",
		"callID", "tool", "status", "input", "output",
		"tokensInput", "tokensOutput", "tokensReasoning", "tokensCache",
	},
}

// Source discovers OpenCode sessions in one SQLite database file.
type Source struct {
	dbPath string
}

// New builds a Source reading the database at path.
func New(path string) *Source { return &Source{dbPath: path} }

// NewDefault resolves the database path from CCBOX_OPENCODE_DB_PATH, then
// $XDG_DATA_HOME/opencode/opencode.db, then ~/.local/share/opencode/opencode.db.
func NewDefault() *Source {
	if p := os.Getenv("CCBOX_OPENCODE_DB_PATH"); p != "" {
		return New(p)
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return New(filepath.Join(xdg, "opencode", "opencode.db"))
	}
	home, _ := os.UserHomeDir()
	return New(filepath.Join(home, ".local", "share", "opencode", "opencode.db"))
}

func (s *Source) Engine() ccmodel.Engine { return ccmodel.EngineOpenCode }

func (s *Source) Root() (string, bool) {
	_, err := os.Stat(s.dbPath)
	return s.dbPath, err == nil
}

// Scan opens the database read-only, validates the schema, and enumerates
// every session as a SessionSummary with its title derived from the first
// 250 parts of its earliest messages.
func (s *Source) Scan() ([]ccmodel.SessionSummary, int, error) {
	if _, err := os.Stat(s.dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, err
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&immutable=1", s.dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, 0, err
	}
	defer db.Close()

	if err := probeSchema(db); err != nil {
		return nil, 0, err
	}

	rows, err := db.Query(`
		SELECT id, directory, title, created, updated
		FROM session
		ORDER BY updated DESC
	`)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sessions []ccmodel.SessionSummary
	warnings := 0
	for rows.Next() {
		var id, directory string
		var title sql.NullString
		var created, updated int64
		if err := rows.Scan(&id, &directory, &title, &created, &updated); err != nil {
			warnings++
			continue
		}

		sessionTitle := title.String
		if sessionTitle == "" {
			sessionTitle, err = deriveTitleFromParts(db, id)
			if err != nil {
				warnings++
			}
		}

		sessions = append(sessions, ccmodel.SessionSummary{
			ID:            id,
			Engine:        ccmodel.EngineOpenCode,
			ProjectPath:   directory,
			StartedAt:     time.UnixMilli(created),
			Title:         sessionTitle,
			LogPath:       fmt.Sprintf("%s#%s", s.dbPath, id),
			FileSizeBytes: dbFileSize(s.dbPath),
			ModifiedAt:    time.UnixMilli(updated),
		})
	}
	if err := rows.Err(); err != nil {
		return sessions, warnings, err
	}
	return sessions, warnings, nil
}

func dbFileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// probeSchema runs PRAGMA table_info against every table ccbox depends on
// and fails closed (ErrNotASession) if an expected column is missing,
// rather than guessing at a renamed/removed column.
func probeSchema(db *sql.DB) error {
	for table, cols := range requiredColumns {
		present := make(map[string]bool)
		rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
		if err != nil {
			return fmt.Errorf("%w: probing %s: %v", ccerr.ErrNotASession, table, err)
		}
		for rows.Next() {
			var cid int
			var name, colType string
			var notNull, pk int
			var dflt sql.NullString
			if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
				rows.Close()
				return fmt.Errorf("%w: probing %s: %v", ccerr.ErrNotASession, table, err)
			}
			present[name] = true
		}
		rows.Close()
		if len(present) == 0 {
			return fmt.Errorf("%w: table %s not found", ccerr.ErrNotASession, table)
		}
		for _, col := range cols {
			if !present[col] {
				return fmt.Errorf("%w: table %s missing column %s", ccerr.ErrNotASession, table, col)
			}
		}
	}
	return nil
}

// deriveTitleFromParts reads the session's earliest text parts (bounded to
// 250, per the shared title-scan rule) when the session row itself has no
// title, reusing the shared decoder so title selection matches every
// other engine exactly.
func deriveTitleFromParts(db *sql.DB, sessionID string) (string, error) {
	rows, err := db.Query(PartQuery+" LIMIT 250", sessionID)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var events []rawevent.Event
	for rows.Next() {
		row, ok := ScanPartRow(rows)
		if !ok {
			continue
		}
		ev, ok, decErr := rawopencode.DecodeRow(row)
		if decErr != nil || !ok {
			continue
		}
		events = append(events, ev)
	}
	return rawevent.DeriveTitle(events), nil
}

// PartQuery joins part and message rows for one session in timeline
// order, pulling every column DecodeRow needs including the tool- and
// step-finish-specific ones (null for plain text/reasoning parts).
// Shared with internal/timeline's reader so title derivation and full
// assembly decode identically.
const PartQuery = `
	SELECT p.id, p.messageID, p.type, p.text, m.role, m.created,
	       p.callID, p.tool, p.status, p.input, p.output,
	       p.tokensInput, p.tokensOutput, p.tokensReasoning, p.tokensCache
	FROM part p
	JOIN message m ON m.id = p.messageID
	WHERE m.sessionID = ?
	ORDER BY m.created ASC, p.id ASC`

// ScanPartRow scans one row of PartQuery's result set into a Row.
func ScanPartRow(rows *sql.Rows) (rawopencode.Row, bool) {
	var partID, messageID, partType, role string
	var text, callID, tool, status, input, output sql.NullString
	var tokensInput, tokensOutput, tokensReasoning, tokensCache sql.NullInt64
	var created int64
	if err := rows.Scan(&partID, &messageID, &partType, &text, &role, &created,
		&callID, &tool, &status, &input, &output,
		&tokensInput, &tokensOutput, &tokensReasoning, &tokensCache); err != nil {
		return rawopencode.Row{}, false
	}

	row := rawopencode.Row{
		MessageID:  messageID,
		PartID:     partID,
		Role:       role,
		PartType:   partType,
		Text:       text.String,
		ToolCallID: callID.String,
		ToolName:   tool.String,
		ToolInput:  input.String,
		ToolOutput: output.String,
		ToolStatus: status.String,
		CreatedMS:  created,
	}
	if tokensInput.Valid || tokensOutput.Valid || tokensReasoning.Valid || tokensCache.Valid {
		row.Tokens = &rawopencode.RowTokens{
			Input:     int(tokensInput.Int64),
			Output:    int(tokensOutput.Int64),
			Reasoning: int(tokensReasoning.Int64),
			CacheRead: int(tokensCache.Int64),
		}
	}
	return row, true
}
