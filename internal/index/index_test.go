package index

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/diskd-ai/ccbox/internal/ccmodel"
	"github.com/diskd-ai/ccbox/internal/scan"
)

type fakeSource struct {
	engine   ccmodel.Engine
	sessions []ccmodel.SessionSummary
	warnings int
	err      error
}

func (f fakeSource) Engine() ccmodel.Engine          { return f.engine }
func (f fakeSource) Root() (string, bool)            { return "/fake/" + string(f.engine), true }
func (f fakeSource) Scan() ([]ccmodel.SessionSummary, int, error) {
	return f.sessions, f.warnings, f.err
}

func newOverridesPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "overrides.json")
}

func session(id, project string, started time.Time, engine ccmodel.Engine) ccmodel.SessionSummary {
	return ccmodel.SessionSummary{
		ID:          id,
		Engine:      engine,
		ProjectPath: project,
		StartedAt:   started,
		ModifiedAt:  started,
		Title:       "session " + id,
		LogPath:     "/fake/" + id + ".jsonl",
	}
}

// TestProjectsSortedBySessionRecencyAndProjectRecency covers P5: sessions
// within a project sort by started_at descending (ties by id), and
// projects sort by last_modified descending.
func TestProjectsSortedBySessionRecencyAndProjectRecency(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sources := []scan.Source{fakeSource{
		engine: ccmodel.EngineCodex,
		sessions: []ccmodel.SessionSummary{
			session("s-older", "/proj/a", t0, ccmodel.EngineCodex),
			session("s-newer", "/proj/a", t0.Add(time.Hour), ccmodel.EngineCodex),
			session("s-b", "/proj/b", t0.Add(2*time.Hour), ccmodel.EngineCodex),
		},
	}}

	idx, err := New(sources, newOverridesPath(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	projects := idx.Projects(Filter{})
	if len(projects) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(projects))
	}
	if projects[0].Path != "/proj/b" {
		t.Fatalf("expected /proj/b (most recently modified) first, got %s", projects[0].Path)
	}
	projA := projects[1]
	if projA.Sessions[0].ID != "s-newer" || projA.Sessions[1].ID != "s-older" {
		t.Fatalf("expected s-newer before s-older within /proj/a, got %v", projA.Sessions)
	}
}

func TestProjectsTieBreakByIDWhenStartedAtEqual(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sources := []scan.Source{fakeSource{
		engine: ccmodel.EngineCodex,
		sessions: []ccmodel.SessionSummary{
			session("s-b", "/proj/a", t0, ccmodel.EngineCodex),
			session("s-a", "/proj/a", t0, ccmodel.EngineCodex),
		},
	}}
	idx, err := New(sources, newOverridesPath(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sessions := idx.Projects(Filter{})[0].Sessions
	if sessions[0].ID != "s-a" || sessions[1].ID != "s-b" {
		t.Fatalf("expected ascending id tiebreak, got %v", sessions)
	}
}

func TestFilterByEngineExcludesOtherEnginesAndEmptyProjects(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sources := []scan.Source{
		fakeSource{engine: ccmodel.EngineCodex, sessions: []ccmodel.SessionSummary{
			session("s1", "/proj/codex-only", t0, ccmodel.EngineCodex),
		}},
		fakeSource{engine: ccmodel.EngineClaude, sessions: []ccmodel.SessionSummary{
			session("s2", "/proj/mixed", t0, ccmodel.EngineClaude),
		}},
	}
	idx, err := New(sources, newOverridesPath(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	projects := idx.Projects(Filter{Engine: ccmodel.EngineClaude})
	if len(projects) != 1 || projects[0].Path != "/proj/mixed" {
		t.Fatalf("expected only the claude project to survive, got %v", projects)
	}
}

func TestFilterByNameContainsIsCaseInsensitive(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sources := []scan.Source{fakeSource{
		engine: ccmodel.EngineCodex,
		sessions: []ccmodel.SessionSummary{
			session("s1", "/home/user/MyProject", t0, ccmodel.EngineCodex),
			session("s2", "/home/user/other", t0, ccmodel.EngineCodex),
		},
	}}
	idx, err := New(sources, newOverridesPath(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	projects := idx.Projects(Filter{NameContains: "myproj"})
	if len(projects) != 1 || projects[0].Name != "MyProject" {
		t.Fatalf("expected case-insensitive substring match, got %v", projects)
	}
}

func TestRootErrorsSurfaceWithoutHidingOtherEngines(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sources := []scan.Source{
		fakeSource{engine: ccmodel.EngineOpenCode, err: errBrokenDB},
		fakeSource{engine: ccmodel.EngineCodex, sessions: []ccmodel.SessionSummary{
			session("s1", "/proj/a", t0, ccmodel.EngineCodex),
		}},
	}
	idx, err := New(sources, newOverridesPath(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := idx.RootErrors()[ccmodel.EngineOpenCode]; !ok {
		t.Fatal("expected opencode root error to surface")
	}
	if len(idx.Projects(Filter{})) != 1 {
		t.Fatal("expected codex project to still be present despite opencode failure")
	}
}

var errBrokenDB = &scanError{"database probe failed"}

type scanError struct{ msg string }

func (e *scanError) Error() string { return e.msg }
