// Package index implements the Project Indexer (ccbox core component C3):
// grouping session summaries from every engine into projects, applying
// user overrides, and exposing substring/engine filtering.
package index

import (
	"sort"
	"strings"
	"time"

	"github.com/diskd-ai/ccbox/internal/ccmodel"
	"github.com/diskd-ai/ccbox/internal/overrides"
	"github.com/diskd-ai/ccbox/internal/scan"
)

// Indexer owns the latest scan snapshot and the override store consulted
// while grouping.
type Indexer struct {
	sources   []scan.Source
	overrides *overrides.Store

	projects []ccmodel.ProjectSummary
	warnings int
	rootErrs map[ccmodel.Engine]error
}

// New constructs an Indexer over sources, loading the override store from
// path (use overrides.DefaultPath() for the standard location).
func New(sources []scan.Source, overridesPath string) (*Indexer, error) {
	store, err := overrides.New(overridesPath)
	if err != nil {
		return nil, err
	}
	idx := &Indexer{sources: sources, overrides: store}
	if err := idx.Refresh(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Refresh re-runs every source's Scan, re-reads the override store, and
// rebuilds the grouped project snapshot. Safe to call from the watcher's
// debounced refresh handler.
func (idx *Indexer) Refresh() error {
	if err := idx.overrides.Reload(); err != nil {
		return err
	}

	sessions, warnings, rootErrs := scan.ScanAll(idx.sources)
	for i := range sessions {
		overrides.Apply(idx.overrides, &sessions[i])
	}

	idx.projects = group(sessions)
	idx.warnings = warnings
	idx.rootErrs = rootErrs
	return nil
}

// Warnings reports the number of files/rows skipped during the last scan.
func (idx *Indexer) Warnings() int { return idx.warnings }

// RootErrors reports per-engine root-level errors from the last scan
// (e.g. an OpenCode database that failed its schema probe).
func (idx *Indexer) RootErrors() map[ccmodel.Engine]error { return idx.rootErrs }

// Filter selects an engine subset, "" meaning every engine.
type Filter struct {
	Engine       ccmodel.Engine // zero value means all engines
	NameContains string         // case-insensitive project-name substring
}

// Projects returns the current snapshot with f applied. Engine filtering
// partitions at the source (a session belonging to a filtered-out engine
// never contributes to a project's grouping or counts); name filtering
// narrows the already-grouped project list.
func (idx *Indexer) Projects(f Filter) []ccmodel.ProjectSummary {
	if f.Engine == "" && f.NameContains == "" {
		return append([]ccmodel.ProjectSummary(nil), idx.projects...)
	}

	var out []ccmodel.ProjectSummary
	needle := strings.ToLower(f.NameContains)
	for _, p := range idx.projects {
		sessions := p.Sessions
		if f.Engine != "" {
			var filtered []ccmodel.SessionSummary
			for _, s := range sessions {
				if s.Engine == f.Engine {
					filtered = append(filtered, s)
				}
			}
			sessions = filtered
		}
		if len(sessions) == 0 {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		pCopy := p
		pCopy.Sessions = sessions
		pCopy.SessionCount = len(sessions)
		pCopy.LastModified = latestModified(sessions)
		pCopy.Online = anyOnline(sessions, time.Now())
		out = append(out, pCopy)
	}
	return out
}

// group partitions sessions by ProjectPath and sorts per spec.md §4.3:
// projects by last_modified descending (ties by path), sessions within a
// project by started_at descending (ties by id).
func group(sessions []ccmodel.SessionSummary) []ccmodel.ProjectSummary {
	byPath := make(map[string]*ccmodel.ProjectSummary)
	var order []string

	for _, s := range sessions {
		p, ok := byPath[s.ProjectPath]
		if !ok {
			p = &ccmodel.ProjectSummary{
				Name: projectName(s.ProjectPath),
				Path: s.ProjectPath,
			}
			byPath[s.ProjectPath] = p
			order = append(order, s.ProjectPath)
		}
		p.Sessions = append(p.Sessions, s)
	}

	now := time.Now()
	projects := make([]ccmodel.ProjectSummary, 0, len(order))
	for _, path := range order {
		p := byPath[path]
		sort.Slice(p.Sessions, func(i, j int) bool {
			a, b := p.Sessions[i], p.Sessions[j]
			if !a.StartedAt.Equal(b.StartedAt) {
				return a.StartedAt.After(b.StartedAt)
			}
			return a.ID < b.ID
		})
		p.SessionCount = len(p.Sessions)
		p.LastModified = latestModified(p.Sessions)
		p.Online = anyOnline(p.Sessions, now)
		projects = append(projects, *p)
	}

	sort.Slice(projects, func(i, j int) bool {
		a, b := projects[i], projects[j]
		if !a.LastModified.Equal(b.LastModified) {
			return a.LastModified.After(b.LastModified)
		}
		return a.Path < b.Path
	})
	return projects
}

func projectName(path string) string {
	if path == "" {
		return "(unknown project)"
	}
	trimmed := strings.TrimRight(path, "/")
	if idx := strings.LastIndexByte(trimmed, '/'); idx >= 0 && idx+1 < len(trimmed) {
		return trimmed[idx+1:]
	}
	return trimmed
}

func latestModified(sessions []ccmodel.SessionSummary) time.Time {
	var latest time.Time
	for _, s := range sessions {
		if s.ModifiedAt.After(latest) {
			latest = s.ModifiedAt
		}
	}
	return latest
}

func anyOnline(sessions []ccmodel.SessionSummary, now time.Time) bool {
	for _, s := range sessions {
		if s.Online(now) {
			return true
		}
	}
	return false
}
