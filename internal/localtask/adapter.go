// Package localtask speaks to the workspace's owning local task CLI
// exclusively via subprocess, consuming its stable `--plain` text
// output (spec.md §4.3). It never writes task files directly; the one
// exception, the structured frontmatter block, is internal/frontmatter's
// job, not this package's.
package localtask

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/jra3/tasksync/internal/model"
)

// Adapter wraps invocations of the owning local CLI binary.
type Adapter struct {
	binary string
}

// New constructs an Adapter that shells out to binary (e.g. "task").
func New(binary string) *Adapter {
	if binary == "" {
		binary = "task"
	}
	return &Adapter{binary: binary}
}

// Filter narrows `task list` to a subset of tasks.
type Filter struct {
	Status   string
	Assignee string
	Label    string
	Priority string
}

func (f Filter) args() []string {
	var args []string
	if f.Status != "" {
		args = append(args, "--status", f.Status)
	}
	if f.Assignee != "" {
		args = append(args, "--assignee", f.Assignee)
	}
	if f.Label != "" {
		args = append(args, "--label", f.Label)
	}
	if f.Priority != "" {
		args = append(args, "--priority", f.Priority)
	}
	return args
}

// ListTasks invokes `task list --plain` with the given filters and
// parses the multi-record plain-text output.
func (a *Adapter) ListTasks(ctx context.Context, filter Filter) ([]model.Task, error) {
	args := append([]string{"list", "--plain"}, filter.args()...)
	out, err := a.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return parseTaskList(out)
}

// GetTask invokes `task <id> --plain` and parses the multi-section
// detail output (spec.md §4.3: sections delimited by `Word Word:`-style
// headers, remainder kept in the current section until the next
// boundary).
func (a *Adapter) GetTask(ctx context.Context, id string) (model.Task, error) {
	out, err := a.run(ctx, id, "--plain")
	if err != nil {
		return model.Task{}, err
	}
	task, err := parseTaskDetail(out)
	if err != nil {
		return model.Task{}, &AdapterError{Op: "getTask", Detail: fmt.Sprintf("parse output for %s: %v", id, err)}
	}
	task.ID = id
	return task, nil
}

// Update is a partial field update applied via `task edit`. Nil-slice
// fields mean "leave untouched"; AddAc/RemoveAc/CheckAc/UncheckAc are
// applied in that order by the underlying CLI invocation, matching the
// local CLI's own flag semantics.
type Update struct {
	Title       *string
	Description *string
	Status      *string
	Assignee    *string
	Labels      []string
	Priority    *string
	AddAc       []string
	RemoveAc    []int
	CheckAc     []int
	UncheckAc   []int
	Plan        *string
	AppendNotes *string
}

// UpdateTask invokes `task edit <id>` with flags derived from u.
// Multiline strings are passed as single arguments (never interpolated
// via shell escape sequences) since exec.Command does not invoke a
// shell.
func (a *Adapter) UpdateTask(ctx context.Context, id string, u Update) error {
	args := append([]string{"edit", id}, u.args()...)
	if len(args) == 2 {
		return nil
	}
	_, err := a.run(ctx, args...)
	return err
}

func (u Update) args() []string {
	var args []string
	if u.Title != nil {
		args = append(args, "--title", *u.Title)
	}
	if u.Description != nil {
		args = append(args, "--description", *u.Description)
	}
	if u.Status != nil {
		args = append(args, "--status", *u.Status)
	}
	if u.Assignee != nil {
		args = append(args, "--assignee", *u.Assignee)
	}
	for _, l := range u.Labels {
		args = append(args, "--label", l)
	}
	if u.Priority != nil {
		args = append(args, "--priority", *u.Priority)
	}
	for _, ac := range u.AddAc {
		args = append(args, "--add-ac", ac)
	}
	for _, idx := range u.RemoveAc {
		args = append(args, "--remove-ac", fmt.Sprint(idx))
	}
	for _, idx := range u.CheckAc {
		args = append(args, "--check-ac", fmt.Sprint(idx))
	}
	for _, idx := range u.UncheckAc {
		args = append(args, "--uncheck-ac", fmt.Sprint(idx))
	}
	if u.Plan != nil {
		args = append(args, "--plan", *u.Plan)
	}
	if u.AppendNotes != nil {
		args = append(args, "--append-notes", *u.AppendNotes)
	}
	return args
}

// CreateTask invokes `task create` and parses the CLI's echoed new id.
func (a *Adapter) CreateTask(ctx context.Context, title string, u Update) (string, error) {
	args := append([]string{"create", title}, u.args()...)
	out, err := a.run(ctx, args...)
	if err != nil {
		return "", err
	}
	id, err := parseCreatedID(out)
	if err != nil {
		return "", &AdapterError{Op: "createTask", Detail: err.Error()}
	}
	return id, nil
}

// run executes the local CLI and classifies failures per spec.md §4.3:
// binary not found is fatal, non-zero exit surfaces captured stderr.
func (a *Adapter) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, a.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if isExecNotFound(err) {
			return "", &AdapterError{Op: "exec", Fatal: true, Detail: fmt.Sprintf("local task CLI %q not found: %v", a.binary, err)}
		}
		return "", &AdapterError{
			Op:     strings.Join(args, " "),
			Detail: strings.TrimSpace(stderr.String()),
			Cause:  err,
		}
	}
	return stdout.String(), nil
}

func isExecNotFound(err error) bool {
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return errors.Is(execErr.Err, exec.ErrNotFound)
	}
	return false
}
