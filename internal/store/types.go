// Package store is Maestro's durable relational state layer: one
// *sql.Tx per public method, committed on success and rolled back on any
// failure, backed by either Postgres or SQLite selected by DSN scheme.
package store

import "time"

// PrecondError is a precondition failure: a duplicate slug, an unknown
// workspace, an ambiguous fuzzy match, and the like. Callers -- in
// particular tool handlers -- surface Error() directly to the model as
// the tool result text, per the error taxonomy's first tier.
type PrecondError string

func (e PrecondError) Error() string { return string(e) }

// Project is the singleton scope a Maestro deployment serves.
type Project struct {
	ID        string
	Name      string
	Path      string
	CreatedAt time.Time
}

// ProjectCounts enriches Project for the REST /project response.
type ProjectCounts struct {
	Project
	PageCount       int
	PointerCount    int
	DisciplineCount int
}

// Workspace is a focused scope of work within a project.
type Workspace struct {
	ID          string
	ProjectID   string
	Slug        string
	Title       string
	Description string
	Status      string // active | archived
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WorkspacePage references a knowledge page from a workspace.
type WorkspacePage struct {
	ID          string
	WorkspaceID string
	PageName    string
	Description string
	AddedAt     time.Time
}

// WorkspaceNote is an observation attached to a workspace.
type WorkspaceNote struct {
	ID          string
	WorkspaceID string
	Text        string
	Source      string
	SourcePage  *string
	AddedAt     time.Time
}

// BBox is a normalized bounding rectangle, all fields in [0,1].
type BBox struct {
	X, Y, W, H float64
}

// Highlight statuses.
const (
	HighlightPending  = "pending"
	HighlightComplete = "complete"
	HighlightFailed   = "failed"
)

// WorkspaceHighlight is a pending/complete/failed visual annotation request.
type WorkspaceHighlight struct {
	ID              string
	WorkspacePageID string
	Mission         string
	Status          string
	BBoxes          []BBox
	CreatedAt       time.Time
}

// ScheduleEvent is an iCal-ish calendar entry.
type ScheduleEvent struct {
	ID        string
	ProjectID string
	Title     string
	Start     string
	End       string
	Type      string
	Notes     string
	CreatedAt time.Time
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in the single conversation thread.
type Message struct {
	ID        int64
	ProjectID string
	Role      string
	Content   string
	CreatedAt time.Time
}

// ConversationState is the single per-project conversation metadata row.
type ConversationState struct {
	ProjectID      string
	Summary        string
	TotalExchanges int
	Compactions    int
	LastCompaction *time.Time
	CreatedAt      time.Time
}

// ConversationStateUpdate is a sparse patch; nil fields are left unchanged.
type ConversationStateUpdate struct {
	Summary        *string
	BumpExchanges  bool
	BumpCompactions bool
}

// ExperienceLogEntry is an audit row for a learning-tool invocation.
type ExperienceLogEntry struct {
	ID        string
	Tool      string
	Details   string
	CreatedAt time.Time
}

// WorkspaceDetail is the full payload for GET /workspaces/{slug}: metadata
// plus pages (each with its highlights) plus notes.
type WorkspaceDetail struct {
	Workspace
	Pages []WorkspacePageDetail
	Notes []WorkspaceNote
}

// WorkspacePageDetail is a workspace page enriched with its highlights.
type WorkspacePageDetail struct {
	WorkspacePage
	Highlights []WorkspaceHighlight
}
