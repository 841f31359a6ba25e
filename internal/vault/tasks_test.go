package vault

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindvault/mindvault/internal/note"
)

func TestExtractTasks(t *testing.T) {
	content := `# Todo

- [ ] write the sync tests due:2026-09-01
- [x] ship the parser
- [-] abandoned idea
- [ ] urgent fix !!
- not a task
* [ ] star bullet also counts
`
	tasks := ExtractTasks("doc1", content)
	require.Len(t, tasks, 5)

	assert.Equal(t, "write the sync tests", tasks[0].Content)
	assert.Equal(t, note.TaskPending, tasks[0].Status)
	require.NotNil(t, tasks[0].DueDate)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), *tasks[0].DueDate)
	assert.Equal(t, 3, tasks[0].SourceLine)

	assert.Equal(t, note.TaskDone, tasks[1].Status)
	assert.Equal(t, note.TaskCancelled, tasks[2].Status)

	assert.Equal(t, "urgent fix", tasks[3].Content)
	assert.Equal(t, 2, tasks[3].Priority)

	assert.Equal(t, "star bullet also counts", tasks[4].Content)
	for _, task := range tasks {
		assert.Equal(t, "doc1", task.DocumentID)
	}
}

func TestExtractTasksNone(t *testing.T) {
	assert.Empty(t, ExtractTasks("doc1", "plain prose, no checkboxes"))
}

func TestExtractReminders(t *testing.T) {
	content := `- call the dentist remind:2026-08-30
- ⏰ 2026-12-24 wrap presents
- no reminder here
`
	reminders := ExtractReminders("doc2", content)
	require.Len(t, reminders, 2)

	assert.Equal(t, "call the dentist", reminders[0].Content)
	require.NotNil(t, reminders[0].TriggerDate)
	assert.Equal(t, time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), *reminders[0].TriggerDate)

	assert.Equal(t, "wrap presents", reminders[1].Content)
}
