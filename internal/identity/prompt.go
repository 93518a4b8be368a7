// Package identity assembles Maestro's system prompt from the same
// experience directory the learning tools write back into: a static core
// (soul.json, tone.json -- denylisted from self-modification, see
// internal/tools.RegisterLearning) plus dynamic experience accumulated over
// time (tool tips, per-discipline notes, cross-project patterns). The
// prompt is rebuilt fresh for every Conversation so a learning-tool edit
// made mid-project shows up the next time the process restarts; switching
// the engine keeps the prompt already built.
package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type soulFile struct {
	Name       string   `json:"name"`
	Role       string   `json:"role"`
	Purpose    string   `json:"purpose"`
	Boundaries string   `json:"boundaries"`
	Principles []string `json:"principles"`
}

type toneFile struct {
	Style      string   `json:"style"`
	Principles []string `json:"principles"`
}

type toolsFile struct {
	Strategy         string            `json:"strategy"`
	SearchTips       string            `json:"search_tips"`
	VisionStrategy   string            `json:"vision_strategy"`
	LearningStrategy string            `json:"learning_strategy"`
	GapsStrategy     string            `json:"gaps_strategy"`
	ToolTips         map[string]string `json:"tool_tips"`
}

type disciplineFile struct {
	Discipline    string   `json:"discipline"`
	SheetPrefixes []string `json:"sheet_prefixes"`
	WhatToWatch   []string `json:"what_to_watch"`
	Learned       []string `json:"learned"`
}

type patternsFile struct {
	CrossDiscipline       []string `json:"cross_discipline"`
	ProjectSpecific       []string `json:"project_specific"`
	LessonsFromBenchmarks []string `json:"lessons_from_benchmarks"`
}

// BuildSystemPrompt assembles the full prompt from dir/soul.json,
// dir/tone.json, dir/tools.json, dir/disciplines/*.json, and
// dir/patterns.json, skipping any file that is missing or unparseable.
func BuildSystemPrompt(dir string) string {
	var parts []string

	if soul, ok := readSoul(dir); ok {
		name := soul.Name
		if name == "" {
			name = "Maestro"
		}
		parts = append(parts, fmt.Sprintf("You are %s. %s.", name, soul.Role))
		if soul.Purpose != "" {
			parts = append(parts, soul.Purpose)
		}
		if soul.Boundaries != "" {
			parts = append(parts, soul.Boundaries)
		}
		principles := soul.Principles
		if tone, ok := readTone(dir); ok {
			if tone.Style != "" {
				parts = append(parts, "\nCommunication: "+tone.Style)
			}
			if len(tone.Principles) > 0 {
				principles = tone.Principles
			}
		}
		for _, p := range principles {
			parts = append(parts, "- "+p)
		}
	}

	if tf, ok := readTools(dir); ok {
		if tf.Strategy != "" {
			parts = append(parts, "\nTool strategy: "+tf.Strategy)
		}
		if tf.SearchTips != "" {
			parts = append(parts, "Search: "+tf.SearchTips)
		}
		if tf.VisionStrategy != "" {
			parts = append(parts, "Vision: "+tf.VisionStrategy)
		}
		if tf.LearningStrategy != "" {
			parts = append(parts, "Learning: "+tf.LearningStrategy)
		}
		if tf.GapsStrategy != "" {
			parts = append(parts, "Gaps: "+tf.GapsStrategy)
		}
		if len(tf.ToolTips) > 0 {
			parts = append(parts, "\n### Tool Tips (learned from experience)")
			names := make([]string, 0, len(tf.ToolTips))
			for name := range tf.ToolTips {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				parts = append(parts, fmt.Sprintf("- **%s**: %s", name, tf.ToolTips[name]))
			}
		}
	}

	for _, disc := range readDisciplines(dir) {
		label := disc.Discipline
		parts = append(parts, "\n### "+label)
		parts = append(parts, "Sheets: "+strings.Join(disc.SheetPrefixes, ", "))
		for _, w := range disc.WhatToWatch {
			parts = append(parts, "- Watch: "+w)
		}
		for _, l := range disc.Learned {
			parts = append(parts, "- Learned: "+l)
		}
	}

	if pf, ok := readPatterns(dir); ok {
		if len(pf.CrossDiscipline) > 0 {
			parts = append(parts, "\n### Cross-Discipline Patterns")
			for _, p := range pf.CrossDiscipline {
				parts = append(parts, "- "+p)
			}
		}
		if len(pf.ProjectSpecific) > 0 {
			parts = append(parts, "\n### Project-Specific")
			for _, p := range pf.ProjectSpecific {
				parts = append(parts, "- "+p)
			}
		}
		if len(pf.LessonsFromBenchmarks) > 0 {
			parts = append(parts, "\n### Benchmark Lessons")
			for _, p := range pf.LessonsFromBenchmarks {
				parts = append(parts, "- "+p)
			}
		}
	}

	return strings.Join(parts, "\n")
}

func readSoul(dir string) (soulFile, bool) {
	var s soulFile
	return s, readJSON(filepath.Join(dir, "soul.json"), &s)
}

func readTone(dir string) (toneFile, bool) {
	var t toneFile
	return t, readJSON(filepath.Join(dir, "tone.json"), &t)
}

func readTools(dir string) (toolsFile, bool) {
	var t toolsFile
	return t, readJSON(filepath.Join(dir, "tools.json"), &t)
}

func readPatterns(dir string) (patternsFile, bool) {
	var p patternsFile
	return p, readJSON(filepath.Join(dir, "patterns.json"), &p)
}

func readDisciplines(dir string) []disciplineFile {
	entries, err := os.ReadDir(filepath.Join(dir, "disciplines"))
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]disciplineFile, 0, len(names))
	for _, name := range names {
		var d disciplineFile
		if readJSON(filepath.Join(dir, "disciplines", name), &d) {
			if d.Discipline == "" {
				d.Discipline = strings.TrimSuffix(name, ".json")
			}
			out = append(out, d)
		}
	}
	return out
}

func readJSON(path string, v any) bool {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}
