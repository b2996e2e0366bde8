// Package reconcile is the engine itself: the push, pull, and sync
// entry points that drive one mapping at a time through normalize,
// classify, and apply, plus the Import path that creates local tasks
// from unmapped remote issues (spec.md §4.6).
package reconcile

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jra3/tasksync/internal/classify"
	"github.com/jra3/tasksync/internal/config"
	"github.com/jra3/tasksync/internal/frontmatter"
	"github.com/jra3/tasksync/internal/localtask"
	"github.com/jra3/tasksync/internal/mapper"
	"github.com/jra3/tasksync/internal/model"
	"github.com/jra3/tasksync/internal/normalize"
	"github.com/jra3/tasksync/internal/remote"
)

// LocalAdapter is the subset of internal/localtask the Reconciler needs.
type LocalAdapter interface {
	GetTask(ctx context.Context, id string) (model.Task, error)
	UpdateTask(ctx context.Context, id string, u localtask.Update) error
	CreateTask(ctx context.Context, title string, u localtask.Update) (string, error)
}

// RemoteAdapter is the subset of internal/remote the Reconciler needs.
type RemoteAdapter interface {
	GetIssue(ctx context.Context, key string) (model.Issue, error)
	UpdateIssue(ctx context.Context, key string, fields map[string]any) error
	CreateIssue(ctx context.Context, project, issueType, summary string, additionalFields map[string]any) (model.Issue, error)
	GetTransitions(ctx context.Context, key string) ([]remote.Transition, error)
	TransitionIssue(ctx context.Context, key, transitionID, comment string) error
	SearchIssues(ctx context.Context, jql string, maxResults, startAt int) ([]model.Issue, error)
}

// MappingStore is the subset of internal/store the Reconciler needs.
type MappingStore interface {
	GetMapping(localID string) (*model.Mapping, bool, error)
	GetMappingByRemoteKey(remoteKey string) (*model.Mapping, bool, error)
	PutMapping(m model.Mapping) error
	GetSnapshot(localID string, side model.Side) (*model.Snapshot, bool, error)
	PutSnapshot(s model.Snapshot) error
	ListMappings() ([]model.Mapping, error)
	AppendOp(entry model.OpLogEntry) error
}

// Resolver drives the interactive "prompt" conflict strategy (§4.7,
// §4.9). internal/conflictui implements this against a real terminal;
// tests never need it. The watch command runs without one: under the
// prompt strategy it does not refuse to start, it clears the Resolver
// and logs a warning, so Conflict mappings fail until resolved.
type Resolver interface {
	Resolve(ctx context.Context, mapping model.Mapping, conflicts []model.FieldConflict) (Resolution, error)
}

// Resolution is the outcome of driving a Resolver: either a confirmed
// per-field decision or a cancellation.
type Resolution struct {
	Confirmed bool
	Decisions map[model.ConflictField]FieldDecision
}

// FieldDecision is one field's resolved value and its provenance, used
// both to apply the resolution and to compute the 2:1 majority-side
// persistence offer (spec.md §4.7).
type FieldDecision struct {
	Value  any
	Source string // "local", "remote", or "manual"
}

// Mode selects which direction an entry point reconciles in.
type Mode string

const (
	ModePush Mode = "push"
	ModePull Mode = "pull"
	ModeSync Mode = "sync"
)

// Result is the outcome of reconciling a single mapping.
type Result struct {
	LocalID   string
	RemoteKey string
	State     model.SyncState
	Op        model.OpKind
	Status    model.OpStatus
	Detail    string
}

// Reconciler is the engine: it owns no state of its own beyond its
// collaborators and the configuration that parameterizes normalization,
// status mapping, and conflict strategy.
type Reconciler struct {
	Local    LocalAdapter
	Remote   RemoteAdapter
	Store    MappingStore
	Cfg      *config.Config
	Resolver Resolver
	Mapper   *mapper.Mapper // not consulted by Push, Pull, Sync, or Import; may be nil
}

// Options parameterizes a single reconcile call.
type Options struct {
	Force    bool
	Strategy model.ConflictStrategy // overrides Cfg.ConflictStrategy when non-empty
}

func (r *Reconciler) strategy(opts Options) model.ConflictStrategy {
	if opts.Strategy != "" {
		return opts.Strategy
	}
	return model.ConflictStrategy(r.Cfg.ConflictStrategy)
}

// Push reconciles each mapping in mappings, applying local changes to
// the remote side (spec.md §4.6 "push").
func (r *Reconciler) Push(ctx context.Context, mappings []model.Mapping, opts Options) []Result {
	return r.batch(ctx, mappings, func(ctx context.Context, m model.Mapping) Result {
		return r.reconcileOne(ctx, m, ModePush, opts)
	})
}

// Pull reconciles each mapping in mappings, applying remote changes to
// the local side (spec.md §4.6 "pull").
func (r *Reconciler) Pull(ctx context.Context, mappings []model.Mapping, opts Options) []Result {
	return r.batch(ctx, mappings, func(ctx context.Context, m model.Mapping) Result {
		return r.reconcileOne(ctx, m, ModePull, opts)
	})
}

// Sync bidirectionally reconciles each mapping, picking push or pull
// per mapping based on its classified state (spec.md §4.6 "sync").
func (r *Reconciler) Sync(ctx context.Context, mappings []model.Mapping, opts Options) []Result {
	return r.batch(ctx, mappings, func(ctx context.Context, m model.Mapping) Result {
		return r.reconcileOne(ctx, m, ModeSync, opts)
	})
}

// batch runs fn over mappings with bounded concurrency (spec.md §5:
// "the Reconciler processes a batch of mappings concurrently").
func (r *Reconciler) batch(ctx context.Context, mappings []model.Mapping, fn func(context.Context, model.Mapping) Result) []Result {
	limit := int64(r.Cfg.Sync.BatchConcurrency)
	if limit <= 0 {
		limit = 10
	}
	sem := semaphore.NewWeighted(limit)

	results := make([]Result, len(mappings))
	done := make(chan struct{})
	pending := len(mappings)
	if pending == 0 {
		return results
	}

	for i, m := range mappings {
		i, m := i, m
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = Result{LocalID: m.LocalID, RemoteKey: m.RemoteKey, Status: model.OpStatusFailed, Detail: err.Error()}
			pending--
			if pending == 0 {
				close(done)
			}
			continue
		}
		go func() {
			defer sem.Release(1)
			results[i] = fn(ctx, m)
			if pending--; pending == 0 {
				close(done)
			}
		}()
	}
	<-done
	return results
}

// reconcileOne is the shared subroutine spec.md §4.6 describes: read
// both sides concurrently, normalize, classify, branch, and on success
// atomically persist new snapshots, frontmatter, and an op-log entry.
func (r *Reconciler) reconcileOne(ctx context.Context, m model.Mapping, mode Mode, opts Options) Result {
	task, issue, state, base, err := r.classifyOne(ctx, m)
	if err != nil {
		r.logFailure(m, opKindFor(mode), err)
		return Result{LocalID: m.LocalID, RemoteKey: m.RemoteKey, Status: model.OpStatusFailed, Detail: err.Error()}
	}

	result := r.apply(ctx, m, mode, state, task, issue, base, opts)
	result.State = state

	if result.Status == model.OpStatusOK {
		// Re-read both sides post-apply: applyPush/applyPull/applyResolution
		// may have written to either side (or, under a per-field conflict
		// resolution, both), so the task/issue values classifyOne read
		// before the mutation no longer reflect what's actually stored.
		// Snapshotting those stale values would make the next Classify
		// call see the write we just made as a foreign change. Mirrors
		// import.go's re-read of the task it just created.
		freshTask, freshIssue, err := r.readBoth(ctx, m)
		if err != nil {
			result.Status = model.OpStatusFailed
			result.Detail = fmt.Sprintf("applied operation but failed to re-read %s <-> %s for snapshot: %v", m.LocalID, m.RemoteKey, err)
		} else if err := r.commit(m, freshTask, freshIssue); err != nil {
			result.Status = model.OpStatusFailed
			result.Detail = fmt.Sprintf("committed operation but failed to persist snapshots: %v", err)
		}
	}
	r.appendOp(m, result)
	return result
}

// classifyOne reads both sides of m and classifies its sync state
// against the stored snapshots, without applying any change. It is the
// read-only half of reconcileOne, shared with Status for CLI/status
// reporting (spec.md §6 "status").
func (r *Reconciler) classifyOne(ctx context.Context, m model.Mapping) (model.Task, model.Issue, model.SyncState, *model.NormalizedPayload, error) {
	task, issue, err := r.readBoth(ctx, m)
	if err != nil {
		return model.Task{}, model.Issue{}, model.StateUnknown, nil, err
	}

	localPayload := normalize.NormalizeLocal(task)
	remotePayload := normalize.NormalizeRemote(issue, r.Cfg, r.Cfg.ProjectKey)
	localHash := normalize.Hash(localPayload)
	remoteHash := normalize.Hash(remotePayload)

	snapLocal, _, err := r.Store.GetSnapshot(m.LocalID, model.SideLocal)
	if err != nil {
		return model.Task{}, model.Issue{}, model.StateUnknown, nil, err
	}
	snapRemote, _, err := r.Store.GetSnapshot(m.LocalID, model.SideRemote)
	if err != nil {
		return model.Task{}, model.Issue{}, model.StateUnknown, nil, err
	}

	input := classify.Input{CurrentLocalHash: localHash, CurrentRemoteHash: remoteHash}
	if snapLocal != nil {
		input.SnapshotLocalHash = snapLocal.Hash
	}
	if snapRemote != nil {
		input.SnapshotRemoteHash = snapRemote.Hash
	}
	state := classify.Classify(input)

	var base *model.NormalizedPayload
	if snapLocal != nil {
		base = &snapLocal.Payload
	} else if snapRemote != nil {
		base = &snapRemote.Payload
	}
	return task, issue, state, base, nil
}

// StatusEntry is one mapping's current classification, for `status`/
// `view` reporting — it never mutates store or adapter state.
type StatusEntry struct {
	Mapping model.Mapping
	Task    model.Task
	Issue   model.Issue
	State   model.SyncState
	Err     error
}

// Status classifies every mapping in mappings without applying any
// change (spec.md §6 "status"). A per-mapping read failure is reported
// in that entry's Err rather than aborting the whole report.
func (r *Reconciler) Status(ctx context.Context, mappings []model.Mapping) []StatusEntry {
	entries := make([]StatusEntry, len(mappings))
	for i, m := range mappings {
		task, issue, state, _, err := r.classifyOne(ctx, m)
		entries[i] = StatusEntry{Mapping: m, Task: task, Issue: issue, State: state, Err: err}
	}
	return entries
}

func (r *Reconciler) readBoth(ctx context.Context, m model.Mapping) (model.Task, model.Issue, error) {
	type taskResult struct {
		task model.Task
		err  error
	}
	type issueResult struct {
		issue model.Issue
		err   error
	}

	taskCh := make(chan taskResult, 1)
	issueCh := make(chan issueResult, 1)

	go func() {
		task, err := r.Local.GetTask(ctx, m.LocalID)
		taskCh <- taskResult{task, err}
	}()
	go func() {
		issue, err := r.Remote.GetIssue(ctx, m.RemoteKey)
		issueCh <- issueResult{issue, err}
	}()

	tr := <-taskCh
	ir := <-issueCh
	if tr.err != nil {
		return model.Task{}, model.Issue{}, fmt.Errorf("read local task %s: %w", m.LocalID, tr.err)
	}
	if ir.err != nil {
		return model.Task{}, model.Issue{}, fmt.Errorf("read remote issue %s: %w", m.RemoteKey, ir.err)
	}
	return tr.task, ir.issue, nil
}

// apply branches on state per mode and performs the actual mutation;
// it never touches snapshots (that's commit's job, called only when
// apply succeeds).
func (r *Reconciler) apply(ctx context.Context, m model.Mapping, mode Mode, state model.SyncState, task model.Task, issue model.Issue, base *model.NormalizedPayload, opts Options) Result {
	res := Result{LocalID: m.LocalID, RemoteKey: m.RemoteKey}

	switch mode {
	case ModePush:
		if state == model.StateUnknown && !opts.Force {
			res.Op, res.Status, res.Detail = model.OpPush, model.OpStatusFailed, "mapping has no baseline snapshots; rerun with --force to push anyway"
			return res
		}
		return r.applyPush(ctx, res, state, task, issue, opts)
	case ModePull:
		return r.applyPull(ctx, res, state, task, issue, opts)
	case ModeSync:
		switch state {
		case model.StateInSync:
			res.Op, res.Status = model.OpSync, model.OpStatusOK
			return res
		case model.StateNeedsPush:
			return r.applyPush(ctx, res, state, task, issue, opts)
		case model.StateNeedsPull:
			return r.applyPull(ctx, res, state, task, issue, opts)
		case model.StateUnknown:
			// Push-then-refresh: always push local values; the commit
			// after a successful apply re-reads both sides for the new
			// snapshots. Unknown is never routed to pull here.
			return r.applyPush(ctx, res, state, task, issue, opts)
		case model.StateConflict:
			return r.applyConflict(ctx, res, task, issue, base, opts)
		}
	}
	res.Op, res.Status, res.Detail = model.OpSync, model.OpStatusFailed, fmt.Sprintf("unhandled state %s for mode %s", state, mode)
	return res
}

func (r *Reconciler) applyPush(ctx context.Context, base Result, state model.SyncState, task model.Task, issue model.Issue, opts Options) Result {
	base.Op = model.OpPush
	switch state {
	case model.StateInSync:
		base.Status = model.OpStatusOK
		return base
	case model.StateNeedsPush, model.StateUnknown:
		// fall through to push below
	case model.StateNeedsPull:
		if !opts.Force {
			base.Status, base.Detail = model.OpStatusFailed, "mapping needs pull; rerun with --force to push anyway"
			return base
		}
	case model.StateConflict:
		if !opts.Force {
			base.Status, base.Detail = model.OpStatusFailed, "mapping is in conflict; rerun with --force to push local values"
			return base
		}
	}

	if err := r.pushFields(ctx, task, issue); err != nil {
		base.Status, base.Detail = model.OpStatusFailed, err.Error()
		return base
	}
	base.Status = model.OpStatusOK
	return base
}

func (r *Reconciler) applyPull(ctx context.Context, base Result, state model.SyncState, task model.Task, issue model.Issue, opts Options) Result {
	base.Op = model.OpPull
	switch state {
	case model.StateInSync:
		base.Status = model.OpStatusOK
		return base
	case model.StateNeedsPull, model.StateUnknown:
		// fall through to pull below
	case model.StateNeedsPush:
		if !opts.Force {
			base.Status, base.Detail = model.OpStatusFailed, "mapping needs push; rerun with --force to pull anyway"
			return base
		}
	case model.StateConflict:
		if !opts.Force {
			base.Status, base.Detail = model.OpStatusFailed, "mapping is in conflict; rerun with --force to pull remote values"
			return base
		}
	}

	if err := r.pullFields(ctx, task, issue); err != nil {
		base.Status, base.Detail = model.OpStatusFailed, err.Error()
		return base
	}
	base.Status = model.OpStatusOK
	return base
}

func (r *Reconciler) applyConflict(ctx context.Context, base Result, task model.Task, issue model.Issue, snapBase *model.NormalizedPayload, opts Options) Result {
	base.Op = model.OpResolve
	strategy := r.strategy(opts)

	conflicts := DecomposeConflicts(normalize.NormalizeLocal(task), normalize.NormalizeRemote(issue, r.Cfg, r.Cfg.ProjectKey), snapBase)
	if len(conflicts) == 0 {
		// Hashes differed but no individual field differs once
		// canonicalized (e.g. two different unknown-status spellings
		// mapping to the same bucket); treat as in sync.
		base.Op, base.Status = model.OpSync, model.OpStatusOK
		return base
	}

	switch strategy {
	case model.StrategyPreferLocal:
		if err := r.pushFields(ctx, task, issue); err != nil {
			base.Status, base.Detail = model.OpStatusFailed, err.Error()
			return base
		}
		base.Status = model.OpStatusOK
		return base
	case model.StrategyPreferRemote:
		if err := r.pullFields(ctx, task, issue); err != nil {
			base.Status, base.Detail = model.OpStatusFailed, err.Error()
			return base
		}
		base.Status = model.OpStatusOK
		return base
	case model.StrategyManual:
		base.Status, base.Detail = model.OpStatusFailed, "conflict requires manual resolution"
		return base
	case model.StrategyPrompt:
		return r.resolveWithPrompt(ctx, base, task, issue, conflicts)
	default:
		base.Status, base.Detail = model.OpStatusFailed, fmt.Sprintf("unknown conflict strategy %q", strategy)
		return base
	}
}

func (r *Reconciler) resolveWithPrompt(ctx context.Context, base Result, task model.Task, issue model.Issue, conflicts []model.FieldConflict) Result {
	if r.Resolver == nil {
		base.Status, base.Detail = model.OpStatusFailed, "conflict strategy is prompt but no interactive resolver is configured"
		return base
	}

	mapping := model.Mapping{LocalID: base.LocalID, RemoteKey: base.RemoteKey}
	resolution, err := r.Resolver.Resolve(ctx, mapping, conflicts)
	if err != nil {
		base.Status, base.Detail = model.OpStatusFailed, err.Error()
		return base
	}
	if !resolution.Confirmed {
		base.Status, base.Detail = model.OpStatusFailed, "cancelled"
		return base
	}

	if err := r.applyResolution(ctx, task, issue, resolution); err != nil {
		base.Status, base.Detail = model.OpStatusFailed, err.Error()
		return base
	}
	r.maybePersistMajorityStrategy(resolution)

	base.Status = model.OpStatusOK
	return base
}

// maybePersistMajorityStrategy does nothing: the majority-side
// default-strategy offer, its confirmation, and the config.Save that
// follows an accepted offer all live in internal/conflictui.
func (r *Reconciler) maybePersistMajorityStrategy(resolution Resolution) {
	// No-op at this layer: majority computation and the confirmation
	// prompt are conflictui's responsibility. Reconcile only applies
	// whatever strategy is already configured; see conflictui.Resolver.
	_ = resolution
}

func opKindFor(mode Mode) model.OpKind {
	switch mode {
	case ModePush:
		return model.OpPush
	case ModePull:
		return model.OpPull
	default:
		return model.OpSync
	}
}

func (r *Reconciler) logFailure(m model.Mapping, op model.OpKind, err error) {
	log.Printf("[reconcile] %s %s <-> %s failed: %v", op, m.LocalID, m.RemoteKey, err)
	_ = r.Store.AppendOp(model.OpLogEntry{
		Timestamp: time.Now(),
		Operation: op,
		LocalID:   m.LocalID,
		RemoteKey: m.RemoteKey,
		Status:    model.OpStatusFailed,
		Detail:    err.Error(),
	})
}

func (r *Reconciler) appendOp(m model.Mapping, result Result) {
	if err := r.Store.AppendOp(model.OpLogEntry{
		Timestamp: time.Now(),
		Operation: result.Op,
		LocalID:   m.LocalID,
		RemoteKey: m.RemoteKey,
		Status:    result.Status,
		Detail:    result.Detail,
	}); err != nil {
		log.Printf("[reconcile] append op log for %s <-> %s: %v", m.LocalID, m.RemoteKey, err)
	}
}

// commit persists post-operation snapshots and updates frontmatter; it
// only runs after a successful apply (spec.md §4.6 step 6). task and
// issue must already be freshly re-read post-apply by the caller, not
// the pre-apply values classifyOne produced.
func (r *Reconciler) commit(m model.Mapping, task model.Task, issue model.Issue) error {
	localPayload := normalize.NormalizeLocal(task)
	remotePayload := normalize.NormalizeRemote(issue, r.Cfg, r.Cfg.ProjectKey)
	now := time.Now()

	if err := r.Store.PutSnapshot(model.Snapshot{LocalID: m.LocalID, Side: model.SideLocal, Hash: normalize.Hash(localPayload), Payload: localPayload, UpdatedAt: now}); err != nil {
		return fmt.Errorf("put local snapshot: %w", err)
	}
	if err := r.Store.PutSnapshot(model.Snapshot{LocalID: m.LocalID, Side: model.SideRemote, Hash: normalize.Hash(remotePayload), Payload: remotePayload, UpdatedAt: now}); err != nil {
		return fmt.Errorf("put remote snapshot: %w", err)
	}

	if task.FilePath != "" {
		syncState := string(model.StateInSync)
		lastSync := now.Format(time.RFC3339)
		remoteKey := m.RemoteKey
		remoteURL := issue.URL
		u := frontmatter.Update{RemoteKey: &remoteKey, RemoteURL: &remoteURL, LastSync: &lastSync, SyncState: &syncState}
		if err := frontmatter.ApplyToFile(task.FilePath, u); err != nil {
			return fmt.Errorf("update frontmatter: %w", err)
		}
	}
	return nil
}
