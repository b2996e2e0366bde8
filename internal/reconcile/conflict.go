package reconcile

import (
	"context"
	"fmt"
	"reflect"

	"github.com/jra3/tasksync/internal/localtask"
	"github.com/jra3/tasksync/internal/model"
)

// DecomposeConflicts compares two normalized payloads field by field
// and returns one FieldConflict per field that differs, in the fixed
// order of model.AllConflictFields (spec.md §4.7). base is the
// three-way-merge base drawn from the stored snapshots; it may be nil
// when no prior snapshot exists (e.g. the very first sync of a pair
// whose mapping was linked rather than bound fresh).
func DecomposeConflicts(local, remote model.NormalizedPayload, base *model.NormalizedPayload) []model.FieldConflict {
	var out []model.FieldConflict
	for _, field := range model.AllConflictFields {
		l, r := fieldValue(field, local), fieldValue(field, remote)
		if !reflect.DeepEqual(l, r) {
			fc := model.FieldConflict{Field: field, LocalValue: l, RemoteValue: r}
			if base != nil {
				fc.BaseValue = fieldValue(field, *base)
			}
			out = append(out, fc)
		}
	}
	return out
}

func fieldValue(field model.ConflictField, p model.NormalizedPayload) any {
	switch field {
	case model.FieldTitle:
		return p.Title
	case model.FieldDescription:
		return p.Description
	case model.FieldStatus:
		return p.Status
	case model.FieldAssignee:
		return p.Assignee
	case model.FieldPriority:
		return p.Priority
	case model.FieldLabels:
		return p.Labels
	default:
		return nil
	}
}

// applyResolution routes each resolved field through the matching push
// or pull primitive: a "local" decision pushes that single field to
// the remote, a "remote" decision pulls it to local, and "manual"
// applies the literal value to whichever side normally owns that field
// change (remote for everything routed through updateIssue/transitions,
// local otherwise) (spec.md §4.7 "applied by routing each field through
// the appropriate push or pull subroutine").
func (r *Reconciler) applyResolution(ctx context.Context, task model.Task, issue model.Issue, resolution Resolution) error {
	remoteFields := map[string]any{}
	var statusTarget *string
	localUpdate := localtask.Update{}
	var localDirty bool

	for field, decision := range resolution.Decisions {
		switch field {
		case model.FieldTitle:
			switch decision.Source {
			case "remote":
				if s, ok := decision.Value.(string); ok {
					localUpdate.Title = &s
					localDirty = true
				}
			default:
				if s, ok := decision.Value.(string); ok {
					remoteFields["summary"] = s
				}
			}
		case model.FieldDescription:
			switch decision.Source {
			case "remote":
				if s, ok := decision.Value.(string); ok {
					localUpdate.Description = &s
					localDirty = true
				}
			default:
				if s, ok := decision.Value.(string); ok {
					remoteFields["description"] = s
				}
			}
		case model.FieldStatus:
			switch decision.Source {
			case "remote":
				if s, ok := decision.Value.(string); ok {
					localUpdate.Status = &s
					localDirty = true
				}
			default:
				if s, ok := decision.Value.(string); ok {
					statusTarget = &s
				}
			}
		case model.FieldAssignee:
			switch decision.Source {
			case "remote":
				if s, ok := decision.Value.(string); ok {
					localUpdate.Assignee = &s
					localDirty = true
				}
			default:
				if s, ok := decision.Value.(string); ok {
					remoteFields["assignee"] = s
				}
			}
		case model.FieldPriority:
			switch decision.Source {
			case "remote":
				if s, ok := decision.Value.(string); ok {
					localUpdate.Priority = &s
					localDirty = true
				}
			default:
				if s, ok := decision.Value.(string); ok {
					remoteFields["priority"] = s
				}
			}
		case model.FieldLabels:
			switch decision.Source {
			case "remote":
				if labels, ok := decision.Value.([]string); ok {
					localUpdate.Labels = labels
					localDirty = true
				}
			default:
				if labels, ok := decision.Value.([]string); ok {
					remoteFields["labels"] = labels
				}
			}
		}
	}

	if statusTarget != nil {
		if err := transitionStatus(ctx, r.Remote, issue.Key, *statusTarget, r.Cfg, r.Cfg.ProjectKey); err != nil {
			return fmt.Errorf("apply resolved status: %w", err)
		}
	}
	if len(remoteFields) > 0 {
		if err := r.Remote.UpdateIssue(ctx, issue.Key, remoteFields); err != nil {
			return fmt.Errorf("apply resolved remote fields: %w", err)
		}
	}
	if localDirty {
		if err := r.Local.UpdateTask(ctx, task.ID, localUpdate); err != nil {
			return fmt.Errorf("apply resolved local fields: %w", err)
		}
	}
	return nil
}
