package mcp

import "time"

// SearchInput is the search tool request.
type SearchInput struct {
	Query      string   `json:"query" jsonschema:"What to look for in the vault"`
	MaxResults int      `json:"max_results,omitempty" jsonschema:"Maximum number of chunks to return (1-20, default 10)"`
	Tags       []string `json:"tags,omitempty" jsonschema:"Restrict to notes carrying at least one of these tags"`
	PathPrefix string   `json:"path_prefix,omitempty" jsonschema:"Restrict to notes under this vault subdirectory"`
}

// SearchHit is one retrieved chunk.
type SearchHit struct {
	Path    string  `json:"path"`
	Section string  `json:"section,omitempty"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// SearchOutput is the search tool response.
type SearchOutput struct {
	Hits  []SearchHit `json:"hits"`
	Count int         `json:"count"`
}

// AskInput is the ask tool request.
type AskInput struct {
	Question string `json:"question" jsonschema:"The question to answer from the vault"`
}

// AskSource identifies a note that grounded the answer.
type AskSource struct {
	Path    string  `json:"path"`
	Section string  `json:"section,omitempty"`
	Score   float64 `json:"score"`
}

// AskOutput is the ask tool response.
type AskOutput struct {
	Answer     string      `json:"answer"`
	Confidence float64     `json:"confidence"`
	Sources    []AskSource `json:"sources"`
}

// CaptureInput is the capture tool request.
type CaptureInput struct {
	Text string `json:"text" jsonschema:"The note text to file into the vault inbox"`
}

// CaptureOutput is the capture tool response.
type CaptureOutput struct {
	Path string `json:"path"`
}

// TasksInput is the tasks tool request.
type TasksInput struct {
	Status    string `json:"status,omitempty" jsonschema:"Filter by status: pending, done or cancelled"`
	DueWithin string `json:"due_within,omitempty" jsonschema:"Only tasks due within this duration from now (e.g. 72h)"`
}

// TaskItem is one extracted task.
type TaskItem struct {
	ID       int64      `json:"id"`
	Content  string     `json:"content"`
	Status   string     `json:"status"`
	Priority int        `json:"priority"`
	DueDate  *time.Time `json:"due_date,omitempty"`
}

// TasksOutput is the tasks tool response.
type TasksOutput struct {
	Tasks []TaskItem `json:"tasks"`
	Count int        `json:"count"`
}
