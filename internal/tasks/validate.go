package tasks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldError describes why a single record was dropped during validation.
type FieldError struct {
	Index  int    `json:"index"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

func (e FieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("task %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("task %d: %s: %s", e.Index, e.Field, e.Reason)
}

// Check reports the first task that cannot be stored: a blank description or
// a status outside the four known values. Validate never produces either;
// Check guards task lists that were built elsewhere.
func Check(tl TaskList) error {
	for i, t := range tl {
		if strings.TrimSpace(t.Description) == "" {
			return fmt.Errorf("%w: %w", ErrInvalidTask, FieldError{Index: i, Field: "task_description", Reason: "empty"})
		}
		if !t.Status.Valid() {
			return fmt.Errorf("%w: %w", ErrInvalidTask, FieldError{Index: i, Field: "status", Reason: fmt.Sprintf("%q is not one of %s", t.Status, statusNames())})
		}
	}
	return nil
}

// DateLayout is the canonical due date format.
const DateLayout = "2006-01-02"

// dateLayouts are tried in order when normalizing due dates. Slashed dates
// are read day first.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02/01/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// Validate turns recovered model JSON into a TaskList.
//
// Both a bare array and an object carrying a "tasks" array are accepted.
// Records without a usable task_description are dropped and reported as
// FieldErrors; the rest of the batch survives. Unknown fields are ignored.
func Validate(raw json.RawMessage) (TaskList, []FieldError, error) {
	records, err := unwrapRecords(raw)
	if err != nil {
		return nil, nil, err
	}

	list := make(TaskList, 0, len(records))
	var dropped []FieldError
	for i, rec := range records {
		task, ferr := validateRecord(i, rec)
		if ferr != nil {
			dropped = append(dropped, *ferr)
			continue
		}
		list = append(list, task)
	}
	return list, dropped, nil
}

func unwrapRecords(raw json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, ErrUnsupportedShape
	}

	var records []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedShape, err)
		}
	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedShape, err)
		}
		inner, ok := wrapper["tasks"]
		if !ok {
			return nil, ErrUnsupportedShape
		}
		if err := json.Unmarshal(inner, &records); err != nil {
			return nil, fmt.Errorf("%w: tasks: %v", ErrUnsupportedShape, err)
		}
	default:
		return nil, ErrUnsupportedShape
	}
	return records, nil
}

func validateRecord(index int, rec json.RawMessage) (Task, *FieldError) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(rec, &fields); err != nil || fields == nil {
		return Task{}, &FieldError{Index: index, Reason: "not a JSON object"}
	}

	descRaw, ok := fields["task_description"]
	if !ok {
		descRaw, ok = fields["task"]
	}
	if !ok {
		return Task{}, &FieldError{Index: index, Field: "task_description", Reason: "missing"}
	}
	desc, isString := stringValue(descRaw)
	if !isString {
		return Task{}, &FieldError{Index: index, Field: "task_description", Reason: "not a string"}
	}
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return Task{}, &FieldError{Index: index, Field: "task_description", Reason: "empty"}
	}

	task := Task{
		Description: desc,
		Status:      StatusToDo,
	}
	if s, ok := stringValue(fields["project"]); ok {
		if s = strings.TrimSpace(s); s != "" {
			task.Project = &s
		}
	}
	if s, ok := stringValue(fields["due_date"]); ok {
		if s = strings.TrimSpace(s); s != "" {
			d := NormalizeDate(s)
			task.DueDate = &d
		}
	}
	if s, ok := stringValue(fields["status"]); ok {
		if st, known := ParseStatus(s); known {
			task.Status = st
		}
	}
	if id, ok := intValue(fields["depends_on_id"]); ok {
		task.DependsOnID = &id
	}
	if s, ok := stringValue(fields["priority"]); ok {
		task.Priority = strings.TrimSpace(s)
	}
	return task, nil
}

// NormalizeDate rewrites recognizable dates as YYYY-MM-DD and returns
// anything else unchanged.
func NormalizeDate(s string) string {
	if t, ok := ParseDate(s); ok {
		return t.Format(DateLayout)
	}
	return s
}

// ParseDate tries the known absolute date layouts in order.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func stringValue(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func intValue(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}
	switch x := v.(type) {
	case json.Number:
		n = x
	case string:
		n = json.Number(strings.TrimSpace(x))
	default:
		return 0, false
	}
	id, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
