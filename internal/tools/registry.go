package tools

import (
	"maestro/internal/knowledge"
	"maestro/internal/store"
)

// BuildOpts bundles the dependencies a fresh registry closes over. One
// registry is built per conversation (§9 "no file-scope mutable state").
type BuildOpts struct {
	Store         *store.Store
	Knowledge     *knowledge.Store
	ProjectID     string
	ExperienceDir string
	Dispatch      HighlightDispatcher
	SwitchEngine  EngineSwitcher
}

// Build assembles the full ~28-tool registry for one conversation.
func Build(opts BuildOpts) *Registry {
	r := NewRegistry()
	RegisterKnowledge(r, opts.Knowledge)
	RegisterWorkspace(r, opts.Store, opts.ProjectID)
	RegisterVision(r, opts.Knowledge, opts.Store, opts.ProjectID, opts.Dispatch)
	RegisterSchedule(r, opts.Store, opts.ProjectID)
	RegisterLearning(r, opts.Store, opts.Knowledge, opts.ProjectID, opts.ExperienceDir)
	RegisterControl(r, opts.SwitchEngine)
	return r
}
