package localtask

import "testing"

func TestParseTaskListBasic(t *testing.T) {
	t.Parallel()
	out := "task-1\tFix bug\tin-progress\thigh\talice\tbackend,urgent\ntask-2\tWrite docs\ttodo\tlow\t\t\n"

	tasks, err := parseTaskList(out)
	if err != nil {
		t.Fatalf("parseTaskList() error: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("len(tasks) = %d, want 2", len(tasks))
	}
	if tasks[0].ID != "task-1" || tasks[0].Title != "Fix bug" || tasks[0].Status != "in-progress" {
		t.Errorf("tasks[0] = %+v", tasks[0])
	}
	if len(tasks[0].Labels) != 2 || tasks[0].Labels[0] != "backend" {
		t.Errorf("tasks[0].Labels = %v", tasks[0].Labels)
	}
	if tasks[1].Assignee != "" {
		t.Errorf("tasks[1].Assignee = %q, want empty", tasks[1].Assignee)
	}
}

func TestParseTaskListIgnoresBlankLines(t *testing.T) {
	t.Parallel()
	out := "\ntask-1\tTitle\ttodo\n\n"
	tasks, err := parseTaskList(out)
	if err != nil {
		t.Fatalf("parseTaskList() error: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("len(tasks) = %d, want 1", len(tasks))
	}
}

func TestParseTaskListRejectsTooFewColumns(t *testing.T) {
	t.Parallel()
	_, err := parseTaskList("task-1\tonly-two-cols\n")
	if err == nil {
		t.Error("expected error for malformed list line")
	}
}

func TestParseTaskDetailSections(t *testing.T) {
	t.Parallel()
	out := `Title: Fix the login bug
Status: in-progress
Assignee: alice
Priority: high
Labels: backend, urgent
Description:
Users can't log in
when the password has a unicode character.
Acceptance Criteria:
- [x] reproduce the bug
- [ ] add a regression test
Implementation Plan:
Normalize the password before comparing.
Implementation Notes:
Turned out to be an encoding mismatch.
`

	task, err := parseTaskDetail(out)
	if err != nil {
		t.Fatalf("parseTaskDetail() error: %v", err)
	}
	if task.Title != "Fix the login bug" {
		t.Errorf("Title = %q", task.Title)
	}
	if task.Status != "in-progress" || task.Assignee != "alice" || task.Priority != "high" {
		t.Errorf("fields = %+v", task)
	}
	if len(task.Labels) != 2 {
		t.Errorf("Labels = %v", task.Labels)
	}
	wantDesc := "Users can't log in\nwhen the password has a unicode character."
	if task.Description != wantDesc {
		t.Errorf("Description = %q, want %q", task.Description, wantDesc)
	}
	if len(task.AcceptanceCriteria) != 2 || !task.AcceptanceCriteria[0].Checked || task.AcceptanceCriteria[1].Checked {
		t.Errorf("AcceptanceCriteria = %+v", task.AcceptanceCriteria)
	}
	if task.ImplementationPlan != "Normalize the password before comparing." {
		t.Errorf("ImplementationPlan = %q", task.ImplementationPlan)
	}
	if task.ImplementationNotes != "Turned out to be an encoding mismatch." {
		t.Errorf("ImplementationNotes = %q", task.ImplementationNotes)
	}
}

func TestParseCreatedIDFromSentence(t *testing.T) {
	t.Parallel()
	id, err := parseCreatedID("Created task task-42\n")
	if err != nil {
		t.Fatalf("parseCreatedID() error: %v", err)
	}
	if id != "task-42" {
		t.Errorf("id = %q, want task-42", id)
	}
}

func TestParseCreatedIDBareLine(t *testing.T) {
	t.Parallel()
	id, err := parseCreatedID("task-99\n")
	if err != nil {
		t.Fatalf("parseCreatedID() error: %v", err)
	}
	if id != "task-99" {
		t.Errorf("id = %q, want task-99", id)
	}
}

func TestUpdateArgsOmitsUnsetFields(t *testing.T) {
	t.Parallel()
	title := "New title"
	u := Update{Title: &title, AddAc: []string{"do the thing"}}
	args := u.args()

	if len(args) != 4 {
		t.Fatalf("args = %v, want 4 entries", args)
	}
	if args[0] != "--title" || args[1] != "New title" {
		t.Errorf("args = %v", args)
	}
}
