// Package tasks defines the action item model and the validation, dedup and
// priority rules applied to model output before it is stored.
package tasks

import (
	"strings"
)

// Status is the lifecycle state of a task. Transitions are free-form.
type Status string

const (
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
	StatusBlocked    Status = "Blocked"
)

// Statuses lists the valid statuses in display order.
var Statuses = []Status{StatusToDo, StatusInProgress, StatusDone, StatusBlocked}

func statusNames() string {
	names := make([]string, len(Statuses))
	for i, s := range Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func (s Status) Valid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusDone, StatusBlocked:
		return true
	}
	return false
}

var statusAliases = map[string]Status{
	"to do":       StatusToDo,
	"todo":        StatusToDo,
	"to-do":       StatusToDo,
	"open":        StatusToDo,
	"in progress": StatusInProgress,
	"in-progress": StatusInProgress,
	"doing":       StatusInProgress,
	"done":        StatusDone,
	"closed":      StatusDone,
	"completed":   StatusDone,
	"complete":    StatusDone,
	"blocked":     StatusBlocked,
	"on hold":     StatusBlocked,
}

// ParseStatus maps a loosely spelled status onto one of the four canonical values.
func ParseStatus(s string) (Status, bool) {
	st, ok := statusAliases[strings.ToLower(strings.Join(strings.Fields(s), " "))]
	return st, ok
}

// Task is a single extracted action item.
type Task struct {
	Description string  `json:"task_description"`
	Project     *string `json:"project"`
	DueDate     *string `json:"due_date"`
	Status      Status  `json:"status"`
	DependsOnID *int64  `json:"depends_on_id"`
	Priority    string  `json:"priority,omitempty"`
}

// Title is the first line of the description.
func (t Task) Title() string {
	title, _, _ := strings.Cut(strings.TrimSpace(t.Description), "\n")
	return title
}

// Detail is the description plus project, used for similarity checks.
func (t Task) Detail() string {
	if t.Project == nil {
		return t.Description
	}
	return t.Description + " " + *t.Project
}

// TaskList is an ordered, possibly empty, list of tasks.
type TaskList []Task

// StringPtr is a small helper for optional fields.
func StringPtr(s string) *string {
	return &s
}
