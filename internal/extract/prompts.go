package extract

import (
	"fmt"
	"strings"
	"time"
)

const extractionPrompt = `You are an expert assistant for parsing tasks from text into structured data. Identify and extract every complete action item assigned to "me" or "I".

For each action item extract:
1. "task_description": the complete, specific description of what needs to be done.
2. "project": the project the task belongs to, or null if none is mentioned.
3. "due_date": the date the task is due, or null.

To determine the due date:
1. Identify the natural language reference to the date ("tomorrow", "next Friday").
2. Reason about it relative to the current date: %s.
3. Call the parse_natural_date tool with the absolute date you reasoned about (for example date_text="2025-08-08") and use its answer.

Your final output must be ONLY a single valid JSON array, starting with '[' and ending with ']'.

Example, with the current date Monday, 2025-07-28 and the text "I need to present the GenAI project status tomorrow.":
[
  {"task_description": "Present the GenAI project status", "due_date": "2025-07-29", "project": "GenAI"}
]

If there are no action items, answer with [].`

const breakdownPrompt = `You are an expert project manager and planner. Break the user's high-level goal down into a series of smaller, actionable sub-tasks.

Respond with a JSON array of task objects with these keys:
- "task_description": a clear, concise description of the sub-task.
- "project": the name of the overall project or goal.
- "due_date": a suggested due date in YYYY-MM-DD format, or null.
- "status": always "To Do".

Your entire response must be ONLY the JSON array, starting with '[' and ending with ']'.`

const ragBreakdownPrompt = `You are an expert project manager with contextual awareness. Break the goal down into smaller, actionable sub-tasks, using the context from past notes to make them specific and relevant.

Relevant context from past notes:
---
%s
---

The sub-tasks should be logical next steps that incorporate details or themes found in the context.

Respond with a JSON array of task objects with these keys:
- "task_description": a clear, concise description of the sub-task.
- "project": the name of the overall project or goal.
- "due_date": a suggested due date in YYYY-MM-DD format, or null.
- "status": always "To Do".

Your entire response must be ONLY the JSON array, starting with '[' and ending with ']'.`

// PrioritizationPrompt asks for a short summary of what to work on next.
const PrioritizationPrompt = `You are an expert project manager. You will receive a list of action items in JSON format.
Based on the task descriptions and due dates, identify the top 1-3 tasks that should be prioritized now.

Consider urgency (due dates) and the importance implied by the description ("prepare", "present", "finish" are often important).

Respond with a short, actionable summary. Start with your top recommendation and give a brief justification for each.`

// ExtractionPrompt is the system prompt for pulling tasks out of notes.
func ExtractionPrompt(now time.Time) string {
	return fmt.Sprintf(extractionPrompt, now.Format("Monday, 2006-01-02"))
}

// BreakdownPrompt is the system prompt for splitting a goal into sub-tasks.
// Non-empty context switches to the retrieval-augmented variant.
func BreakdownPrompt(context []string) string {
	if len(context) == 0 {
		return breakdownPrompt
	}
	return fmt.Sprintf(ragBreakdownPrompt, strings.Join(context, "\n\n---\n\n"))
}
