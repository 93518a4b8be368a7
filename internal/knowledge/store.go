package knowledge

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound and ErrAmbiguous are sentinel errors Resolve returns.
type ErrNotFound struct{ Token string }

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("page %q not found. Use list_pages() to see available pages.", e.Token)
}

// ErrAmbiguous carries every candidate page name that matched a fuzzy token.
type ErrAmbiguous struct {
	Token      string
	Candidates []string
}

func (e ErrAmbiguous) Error() string {
	return fmt.Sprintf("ambiguous page token %q: matches %s", e.Token, strings.Join(e.Candidates, ", "))
}

// Store is the in-memory, read-only (except via UpdatePageField and
// UpdateRegionContent) view of
// one project's pre-ingested plan set.
type Store struct {
	root string

	mu          sync.RWMutex // guards pages/pageLocks/disciplines map membership, not page content
	pages       map[string]*Page
	pageLocks   map[string]*sync.RWMutex // striped per-page locks for torn-read-free updates
	disciplines []string
	index       GlobalIndex
}

// Page returns a snapshot-safe read of a page, or (nil, false).
func (s *Store) Page(name string) (*Page, bool) {
	s.mu.RLock()
	lock, ok := s.pageLocks[name]
	p := s.pages[name]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	lock.RLock()
	defer lock.RUnlock()
	cp := *p
	return &cp, true
}

// Disciplines lists the raw discipline strings observed across pages.
func (s *Store) Disciplines() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.disciplines))
	copy(out, s.disciplines)
	return out
}

// PageSummary is the list_pages() row shape.
type PageSummary struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Discipline  string `json:"discipline"`
	RegionCount int    `json:"region_count"`
}

// ListPages lists pages, optionally filtered by discipline (case-insensitive).
func (s *Store) ListPages(discipline string) []PageSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]PageSummary, 0, len(s.pages))
	for name, p := range s.pages {
		if discipline != "" && !strings.EqualFold(p.Discipline, discipline) {
			continue
		}
		out = append(out, PageSummary{Name: name, Type: p.PageType, Discipline: p.Discipline, RegionCount: len(p.Regions)})
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out
}

// PageCount and PointerCount feed the /project REST response's enrichment.
func (s *Store) PageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}

func (s *Store) PointerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.pages {
		n += len(p.Pointers)
	}
	return n
}

func (s *Store) DisciplineCount() int {
	return len(s.Disciplines())
}

// Search looks across the aggregated index and every page/pointer's text
// for a substring match, same shape as the original tools/knowledge.py.
func (s *Store) Search(query string) []SearchResult {
	q := strings.ToLower(query)
	var out []SearchResult

	s.mu.RLock()
	defer s.mu.RUnlock()

	for material, sources := range s.index.Materials {
		if strings.Contains(strings.ToLower(material), q) {
			out = append(out, SearchResult{Type: "material", Match: material, FoundIn: sources})
		}
	}
	for keyword, sources := range s.index.Keywords {
		if strings.Contains(strings.ToLower(keyword), q) {
			out = append(out, SearchResult{Type: "keyword", Match: keyword, FoundIn: sources})
		}
	}
	for name, p := range s.pages {
		if strings.Contains(strings.ToLower(p.SheetReflection), q) {
			out = append(out, SearchResult{Type: "page", Match: name, Context: "sheet_reflection"})
		}
		for regionID, pointer := range p.Pointers {
			if strings.Contains(strings.ToLower(pointer.Content), q) {
				out = append(out, SearchResult{Type: "pointer", Match: name + "/" + regionID, Context: "content_markdown"})
			}
		}
	}
	return out
}

// FindCrossReferences reports what a page references and what references it.
func (s *Store) FindCrossReferences(pageName string) (refsFrom, refsTo []string, err error) {
	p, ok := s.Page(pageName)
	if !ok {
		return nil, nil, ErrNotFound{Token: pageName}
	}
	s.mu.RLock()
	refsTo = s.index.CrossRefs[pageName]
	s.mu.RUnlock()
	return p.CrossReferences, refsTo, nil
}

// ListModifications returns every modification entry in the global index.
func (s *Store) ListModifications() []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Modifications
}

// CheckGaps lists broken cross-references and regions missing Pass-2 content.
func (s *Store) CheckGaps() []Gap {
	var gaps []Gap
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ref := range s.index.BrokenRefs {
		gaps = append(gaps, Gap{Type: "broken_ref", Detail: ref})
	}
	for name, p := range s.pages {
		for _, region := range p.Regions {
			if region.ID == "" {
				continue
			}
			if !p.HasPass2(region.ID) {
				gaps = append(gaps, Gap{Type: "missing_pass2", Page: name, Region: region.ID, Label: region.Label})
			}
		}
	}
	return gaps
}

// RegionsWithoutPointer counts regions on pageName lacking Pass-2 content,
// used by the heartbeat boredom-scoring formula.
func (s *Store) RegionsWithoutPointer(pageName string) int {
	p, ok := s.Page(pageName)
	if !ok {
		return 0
	}
	n := 0
	for _, r := range p.Regions {
		if r.ID != "" && !p.HasPass2(r.ID) {
			n++
		}
	}
	return n
}

// PageNames returns every known page name, for boredom-target candidate pools.
func (s *Store) PageNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.pages))
	for name := range s.pages {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
