package reconcile

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/jra3/tasksync/internal/localtask"
	"github.com/jra3/tasksync/internal/model"
	"github.com/jra3/tasksync/internal/normalize"
)

// pushFields applies task's fields to issue: status through the
// transition lookup, everything else through a single updateIssue call
// (spec.md §4.6 "push").
func (r *Reconciler) pushFields(ctx context.Context, task model.Task, issue model.Issue) error {
	if err := transitionStatus(ctx, r.Remote, issue.Key, task.Status, r.Cfg, r.Cfg.ProjectKey); err != nil {
		return err
	}

	fields := map[string]any{}

	if task.Title != issue.Summary {
		fields["summary"] = task.Title
	}

	desc := normalize.EncodeDescription(task.Description, task.AcceptanceCriteria, task.ImplementationPlan, task.ImplementationNotes)
	if desc != issue.Description {
		fields["description"] = desc
	}

	if !sameStringSet(task.Labels, issue.Labels) {
		fields["labels"] = task.Labels
	}

	if remotePriority, ok := normalize.RemotePriorityFor(task.Priority, r.Cfg, r.Cfg.ProjectKey); ok && remotePriority != issue.Priority {
		fields["priority"] = remotePriority
	}

	if task.Assignee != "" {
		if remoteUser, ok := r.Cfg.ResolveAssignee(task.Assignee); ok {
			if remoteUser != issue.Assignee {
				fields["assignee"] = remoteUser
			}
		} else {
			log.Printf("[reconcile] no assignee mapping for local user %q on %s; run map-assignees to configure one", task.Assignee, issue.Key)
		}
	}

	if len(fields) == 0 {
		return nil
	}
	if err := r.Remote.UpdateIssue(ctx, issue.Key, fields); err != nil {
		return fmt.Errorf("update issue %s: %w", issue.Key, err)
	}
	return nil
}

// pullFields applies issue's fields to task via the local adapter
// (spec.md §4.6 "pull"). It never writes the task file directly.
func (r *Reconciler) pullFields(ctx context.Context, task model.Task, issue model.Issue) error {
	u := localtask.Update{}
	dirty := false

	if issue.Summary != "" && issue.Summary != task.Title {
		u.Title = &issue.Summary
		dirty = true
	}

	base, remoteAC, remotePlan, remoteNotes := normalize.ExtractSections(issue.Description)
	if base != task.Description {
		u.Description = &base
		dirty = true
	}
	if remotePlan != "" && remotePlan != task.ImplementationPlan {
		u.Plan = &remotePlan
		dirty = true
	}
	if appended := newNotesSuffix(task.ImplementationNotes, remoteNotes); appended != "" {
		u.AppendNotes = &appended
		dirty = true
	}

	if local, ok := localStatusForRemote(issue.Status, r.Cfg, r.Cfg.ProjectKey); ok {
		if local != task.Status {
			u.Status = &local
			dirty = true
		}
	} else {
		log.Printf("[reconcile] unmapped remote status %q on %s; leaving local status %q unchanged", issue.Status, task.ID, task.Status)
	}

	if local, ok := localPriorityForRemote(issue.Priority, r.Cfg, r.Cfg.ProjectKey); ok {
		if local != task.Priority {
			u.Priority = &local
			dirty = true
		}
	}

	if issue.Assignee != "" {
		if local, ok := r.Cfg.ReverseResolveAssignee(issue.Assignee); ok && local != task.Assignee {
			u.Assignee = &local
			dirty = true
		}
	}

	remove, add, check, uncheck := diffAcceptanceCriteria(task.AcceptanceCriteria, remoteAC)
	if len(remove) > 0 || len(add) > 0 || len(check) > 0 || len(uncheck) > 0 {
		u.RemoveAc, u.AddAc, u.CheckAc, u.UncheckAc = remove, add, check, uncheck
		dirty = true
	}

	if !dirty {
		return nil
	}
	if err := r.Local.UpdateTask(ctx, task.ID, u); err != nil {
		return fmt.Errorf("update local task %s: %w", task.ID, err)
	}
	return nil
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa, sb := append([]string(nil), a...), append([]string(nil), b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

// newNotesSuffix returns the portion of remoteNotes not already
// present in localNotes, since the local CLI only supports appending
// to implementation notes rather than replacing them wholesale.
func newNotesSuffix(localNotes, remoteNotes string) string {
	if remoteNotes == "" || remoteNotes == localNotes {
		return ""
	}
	if localNotes == "" {
		return remoteNotes
	}
	if len(remoteNotes) > len(localNotes) && remoteNotes[:len(localNotes)] == localNotes {
		suffix := remoteNotes[len(localNotes):]
		for len(suffix) > 0 && (suffix[0] == '\n' || suffix[0] == ' ') {
			suffix = suffix[1:]
		}
		return suffix
	}
	return ""
}

// diffAcceptanceCriteria computes the edit sequence that turns current
// into desired using only the local CLI's index-based primitives
// (spec.md §4.6 "pull"): excess trailing indices are removed first, in
// reverse order so earlier removals don't shift later indices; missing
// items are then appended by text; finally checked state is aligned by
// index across whatever remains.
func diffAcceptanceCriteria(current, desired []model.AcceptanceCriterion) (remove []int, add []string, check, uncheck []int) {
	for i := len(current) - 1; i >= len(desired); i-- {
		remove = append(remove, i)
	}
	for i := len(current); i < len(desired); i++ {
		add = append(add, desired[i].Text)
	}

	keep := len(current)
	if len(desired) < keep {
		keep = len(desired)
	}
	for i := 0; i < keep; i++ {
		if desired[i].Checked && !current[i].Checked {
			check = append(check, i)
		} else if !desired[i].Checked && current[i].Checked {
			uncheck = append(uncheck, i)
		}
	}
	return remove, add, check, uncheck
}
