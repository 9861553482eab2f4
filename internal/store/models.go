package store

import (
	"time"

	"github.com/taskmaster-ai/taskmaster/internal/tasks"
)

// SourceDocument records that a piece of text was ingested. It exists for
// duplicate detection and provenance.
type SourceDocument struct {
	ID          int64     `json:"id"`
	SourceName  string    `json:"source_name"`
	ContentHash string    `json:"content_hash"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ActionItem is a stored task. The task fields live in the task_data JSON
// column; depends_on_id is mirrored into its own column.
type ActionItem struct {
	ID               int64      `json:"id"`
	SourceDocumentID int64      `json:"source_document_id"`
	Task             tasks.Task `json:"task"`
	DependsOnID      *int64     `json:"depends_on_id"`
	CreatedAt        time.Time  `json:"created_at"`
}

// TaskUpdate holds the fields to change on an action item. Nil fields are
// left alone; an empty project or due date clears it.
type TaskUpdate struct {
	Description *string       `json:"task_description,omitempty"`
	Project     *string       `json:"project,omitempty"`
	DueDate     *string       `json:"due_date,omitempty"`
	Status      *tasks.Status `json:"status,omitempty"`
	DependsOnID *int64        `json:"depends_on_id,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u TaskUpdate) Empty() bool {
	return u.Description == nil && u.Project == nil && u.DueDate == nil && u.Status == nil && u.DependsOnID == nil
}
