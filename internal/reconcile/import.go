package reconcile

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jra3/tasksync/internal/frontmatter"
	"github.com/jra3/tasksync/internal/localtask"
	"github.com/jra3/tasksync/internal/model"
	"github.com/jra3/tasksync/internal/normalize"
)

// ImportResult summarizes one Import run.
type ImportResult struct {
	Imported []model.Mapping
	Skipped  []string // remote keys already mapped, left untouched
	Failed   []string // remote keys that failed to import, with reasons logged
}

// Import queries the remote tracker with jql, partitions results into
// already-mapped and unmapped issues, and for each unmapped issue
// creates a local task, binds it, and establishes initial snapshots so
// the pair classifies InSync on the next run (spec.md §4.6 "Import
// mode"). Import does not run assignee auto-discovery; r.Mapper is not
// consulted.
func (r *Reconciler) Import(ctx context.Context, jql string) (ImportResult, error) {
	issues, err := r.Remote.SearchIssues(ctx, jql, 200, 0)
	if err != nil {
		return ImportResult{}, fmt.Errorf("search for import: %w", err)
	}

	var result ImportResult
	for _, issue := range issues {
		if _, ok, err := r.Store.GetMappingByRemoteKey(issue.Key); err != nil {
			log.Printf("[reconcile] import: check existing mapping for %s: %v", issue.Key, err)
			result.Failed = append(result.Failed, issue.Key)
			continue
		} else if ok {
			result.Skipped = append(result.Skipped, issue.Key)
			continue
		}

		mapping, err := r.importOne(ctx, issue)
		if err != nil {
			log.Printf("[reconcile] import %s: %v", issue.Key, err)
			result.Failed = append(result.Failed, issue.Key)
			continue
		}
		result.Imported = append(result.Imported, mapping)
	}
	return result, nil
}

func (r *Reconciler) importOne(ctx context.Context, issue model.Issue) (model.Mapping, error) {
	title := normalize.SanitizeTitle(issue.Summary)
	base, ac, plan, notes := normalize.ExtractSections(issue.Description)

	u := localtask.Update{Description: &base, AddAc: acTexts(ac)}
	if plan != "" {
		u.Plan = &plan
	}
	if notes != "" {
		u.AppendNotes = &notes
	}
	localID, err := r.Local.CreateTask(ctx, title, u)
	if err != nil {
		return model.Mapping{}, fmt.Errorf("create local task: %w", err)
	}

	task, err := r.Local.GetTask(ctx, localID)
	if err != nil {
		return model.Mapping{}, fmt.Errorf("read back created task %s: %w", localID, err)
	}

	now := time.Now()
	mapping := model.Mapping{LocalID: task.ID, RemoteKey: issue.Key, CreatedAt: now, UpdatedAt: now}
	if err := r.Store.PutMapping(mapping); err != nil {
		return model.Mapping{}, fmt.Errorf("put mapping: %w", err)
	}

	localPayload := normalize.NormalizeLocal(task)
	remotePayload := normalize.NormalizeRemote(issue, r.Cfg, r.Cfg.ProjectKey)
	if err := r.Store.PutSnapshot(model.Snapshot{LocalID: task.ID, Side: model.SideLocal, Hash: normalize.Hash(localPayload), Payload: localPayload, UpdatedAt: now}); err != nil {
		return model.Mapping{}, fmt.Errorf("put local snapshot: %w", err)
	}
	if err := r.Store.PutSnapshot(model.Snapshot{LocalID: task.ID, Side: model.SideRemote, Hash: normalize.Hash(remotePayload), Payload: remotePayload, UpdatedAt: now}); err != nil {
		return model.Mapping{}, fmt.Errorf("put remote snapshot: %w", err)
	}

	if task.FilePath != "" {
		syncState := string(model.StateInSync)
		lastSync := now.Format(time.RFC3339)
		remoteKey := issue.Key
		remoteURL := issue.URL
		u := frontmatter.Update{RemoteKey: &remoteKey, RemoteURL: &remoteURL, LastSync: &lastSync, SyncState: &syncState}
		if err := frontmatter.ApplyToFile(task.FilePath, u); err != nil {
			return model.Mapping{}, fmt.Errorf("update frontmatter: %w", err)
		}
	}

	if err := r.Store.AppendOp(model.OpLogEntry{Timestamp: now, Operation: model.OpImport, LocalID: task.ID, RemoteKey: issue.Key, Status: model.OpStatusOK}); err != nil {
		log.Printf("[reconcile] append import op log for %s: %v", issue.Key, err)
	}

	return mapping, nil
}

func acTexts(ac []model.AcceptanceCriterion) []string {
	out := make([]string, len(ac))
	for i, item := range ac {
		out[i] = item.Text
	}
	return out
}
