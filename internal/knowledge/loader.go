package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Loader walks a project's knowledge directory into an in-memory Store.
type Loader struct {
	log *logrus.Entry
}

// NewLoader constructs a Loader.
func NewLoader(log *logrus.Entry) *Loader {
	return &Loader{log: log}
}

// Load walks root (a "knowledge_store/<project>" directory, matching the
// ingest pipeline's on-disk layout) into a Store. A missing directory or
// malformed JSON file degrades to defaults rather than failing the whole
// load, mirroring the original loader's "_load_json" best-effort reads --
// but a wholly absent root is a fatal startup error (§7.5), surfaced here
// as a plain error for main to act on.
func (l *Loader) Load(root string) (*Store, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("knowledge store %q not found: %w", root, err)
	}

	store := &Store{
		root:      root,
		pages:     make(map[string]*Page),
		pageLocks: make(map[string]*sync.RWMutex),
	}

	var index GlobalIndex
	loadJSON(filepath.Join(root, "index.json"), &index)
	store.index = index

	pagesDir := filepath.Join(root, "pages")
	entries, err := os.ReadDir(pagesDir)
	if err != nil {
		if l.log != nil {
			l.log.WithError(err).Warn("no pages directory in knowledge store")
		}
		return store, nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	disciplineSet := map[string]bool{}
	for _, name := range names {
		pageDir := filepath.Join(pagesDir, name)
		page := &Page{
			Name:       name,
			Path:       pageDir,
			Discipline: "General",
			PageType:   "unknown",
			Pointers:   map[string]Pointer{},
		}

		var pass1 struct {
			SheetReflection string           `json:"sheet_reflection"`
			PageType        string           `json:"page_type"`
			Discipline      string           `json:"discipline"`
			Index           map[string]any   `json:"index"`
			CrossReferences []string         `json:"cross_references"`
			Regions         []Region         `json:"regions"`
		}
		if loadJSON(filepath.Join(pageDir, "pass1.json"), &pass1) {
			page.SheetReflection = pass1.SheetReflection
			if pass1.PageType != "" {
				page.PageType = pass1.PageType
			}
			if strings.TrimSpace(pass1.Discipline) != "" {
				page.Discipline = pass1.Discipline
			}
			page.Index = pass1.Index
			page.CrossReferences = pass1.CrossReferences
			page.Regions = pass1.Regions
		}
		disciplineSet[page.Discipline] = true

		pointersDir := filepath.Join(pageDir, "pointers")
		if pointerEntries, err := os.ReadDir(pointersDir); err == nil {
			pointerNames := make([]string, 0, len(pointerEntries))
			for _, pe := range pointerEntries {
				if pe.IsDir() {
					pointerNames = append(pointerNames, pe.Name())
				}
			}
			sort.Strings(pointerNames)
			for _, regionID := range pointerNames {
				pointerDir := filepath.Join(pointersDir, regionID)
				var pointer Pointer
				loadJSON(filepath.Join(pointerDir, "pass2.json"), &pointer)
				pointer.CropPath = filepath.Join(pointerDir, "crop.png")
				page.Pointers[regionID] = pointer
			}
		}

		store.pages[name] = page
		store.pageLocks[name] = &sync.RWMutex{}
	}

	disciplines := make([]string, 0, len(disciplineSet))
	for d := range disciplineSet {
		disciplines = append(disciplines, d)
	}
	sort.Strings(disciplines)
	store.disciplines = disciplines

	pointerCount := 0
	for _, p := range store.pages {
		pointerCount += len(p.Pointers)
	}
	if l.log != nil {
		l.log.WithFields(logrus.Fields{
			"pages":    len(store.pages),
			"pointers": pointerCount,
		}).Info("knowledge store loaded")
	}
	return store, nil
}

// loadJSON reads and unmarshals path into v, returning whether it existed
// and parsed cleanly. A missing or malformed file leaves v at its zero
// value, matching the original loader's silent-default behavior.
func loadJSON(path string, v any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}
