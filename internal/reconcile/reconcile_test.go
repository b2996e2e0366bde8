package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/jra3/tasksync/internal/config"
	"github.com/jra3/tasksync/internal/localtask"
	"github.com/jra3/tasksync/internal/model"
	"github.com/jra3/tasksync/internal/normalize"
	"github.com/jra3/tasksync/internal/remote"
)

type fakeLocal struct {
	tasks   map[string]model.Task
	updates map[string]localtask.Update
}

func newFakeLocal(tasks ...model.Task) *fakeLocal {
	m := map[string]model.Task{}
	for _, t := range tasks {
		m[t.ID] = t
	}
	return &fakeLocal{tasks: m, updates: map[string]localtask.Update{}}
}

func (f *fakeLocal) GetTask(ctx context.Context, id string) (model.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return model.Task{}, errors.New("not found")
	}
	return t, nil
}

func (f *fakeLocal) UpdateTask(ctx context.Context, id string, u localtask.Update) error {
	f.updates[id] = u
	task := f.tasks[id]
	if u.Title != nil {
		task.Title = *u.Title
	}
	if u.Status != nil {
		task.Status = *u.Status
	}
	if u.Priority != nil {
		task.Priority = *u.Priority
	}
	if u.Assignee != nil {
		task.Assignee = *u.Assignee
	}
	if u.Labels != nil {
		task.Labels = u.Labels
	}
	f.tasks[id] = task
	return nil
}

func (f *fakeLocal) CreateTask(ctx context.Context, title string, u localtask.Update) (string, error) {
	id := "imported-1"
	f.tasks[id] = model.Task{ID: id, Title: title}
	return id, nil
}

type fakeRemote struct {
	issues      map[string]model.Issue
	updates     map[string]map[string]any
	transitions map[string][]remote.Transition
	transitioned []string
}

func newFakeRemote(issues ...model.Issue) *fakeRemote {
	m := map[string]model.Issue{}
	for _, i := range issues {
		m[i.Key] = i
	}
	return &fakeRemote{issues: m, updates: map[string]map[string]any{}, transitions: map[string][]remote.Transition{}}
}

func (f *fakeRemote) GetIssue(ctx context.Context, key string) (model.Issue, error) {
	i, ok := f.issues[key]
	if !ok {
		return model.Issue{}, errors.New("not found")
	}
	return i, nil
}

func (f *fakeRemote) UpdateIssue(ctx context.Context, key string, fields map[string]any) error {
	f.updates[key] = fields
	issue := f.issues[key]
	if v, ok := fields["summary"].(string); ok {
		issue.Summary = v
	}
	if v, ok := fields["description"].(string); ok {
		issue.Description = v
	}
	if v, ok := fields["priority"].(string); ok {
		issue.Priority = v
	}
	if v, ok := fields["assignee"].(string); ok {
		issue.Assignee = v
	}
	if v, ok := fields["labels"].([]string); ok {
		issue.Labels = v
	}
	f.issues[key] = issue
	return nil
}

func (f *fakeRemote) CreateIssue(ctx context.Context, project, issueType, summary string, additionalFields map[string]any) (model.Issue, error) {
	return model.Issue{Key: "NEW-1", Summary: summary}, nil
}

func (f *fakeRemote) GetTransitions(ctx context.Context, key string) ([]remote.Transition, error) {
	return f.transitions[key], nil
}

func (f *fakeRemote) TransitionIssue(ctx context.Context, key, transitionID, comment string) error {
	f.transitioned = append(f.transitioned, transitionID)
	return nil
}

func (f *fakeRemote) SearchIssues(ctx context.Context, jql string, maxResults, startAt int) ([]model.Issue, error) {
	var out []model.Issue
	for _, i := range f.issues {
		out = append(out, i)
	}
	return out, nil
}

type fakeStore struct {
	mappings  map[string]model.Mapping
	byRemote  map[string]string
	snapshots map[string]map[model.Side]model.Snapshot
	ops       []model.OpLogEntry
}

func newFakeMappingStore() *fakeStore {
	return &fakeStore{
		mappings:  map[string]model.Mapping{},
		byRemote:  map[string]string{},
		snapshots: map[string]map[model.Side]model.Snapshot{},
	}
}

func (s *fakeStore) GetMapping(localID string) (*model.Mapping, bool, error) {
	m, ok := s.mappings[localID]
	if !ok {
		return nil, false, nil
	}
	return &m, true, nil
}

func (s *fakeStore) GetMappingByRemoteKey(remoteKey string) (*model.Mapping, bool, error) {
	localID, ok := s.byRemote[remoteKey]
	if !ok {
		return nil, false, nil
	}
	m := s.mappings[localID]
	return &m, true, nil
}

func (s *fakeStore) PutMapping(m model.Mapping) error {
	s.mappings[m.LocalID] = m
	s.byRemote[m.RemoteKey] = m.LocalID
	return nil
}

func (s *fakeStore) GetSnapshot(localID string, side model.Side) (*model.Snapshot, bool, error) {
	bySide, ok := s.snapshots[localID]
	if !ok {
		return nil, false, nil
	}
	snap, ok := bySide[side]
	if !ok {
		return nil, false, nil
	}
	return &snap, true, nil
}

func (s *fakeStore) PutSnapshot(snap model.Snapshot) error {
	if s.snapshots[snap.LocalID] == nil {
		s.snapshots[snap.LocalID] = map[model.Side]model.Snapshot{}
	}
	s.snapshots[snap.LocalID][snap.Side] = snap
	return nil
}

func (s *fakeStore) ListMappings() ([]model.Mapping, error) {
	var out []model.Mapping
	for _, m := range s.mappings {
		out = append(out, m)
	}
	return out, nil
}

func (s *fakeStore) AppendOp(entry model.OpLogEntry) error {
	s.ops = append(s.ops, entry)
	return nil
}

func newTestReconciler(local *fakeLocal, rem *fakeRemote, store *fakeStore, cfg *config.Config) *Reconciler {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Reconciler{Local: local, Remote: rem, Store: store, Cfg: cfg}
}

func TestReconcileOneInSyncIsNoOp(t *testing.T) {
	t.Parallel()
	task := model.Task{ID: "task-1", Title: "Fix bug", Status: "todo", Priority: "medium"}
	issue := model.Issue{Key: "PROJ-1", Summary: "Fix bug", Status: "Todo", Priority: "Medium"}

	local := newFakeLocal(task)
	rem := newFakeRemote(issue)
	store := newFakeMappingStore()
	if err := store.PutMapping(model.Mapping{LocalID: "task-1", RemoteKey: "PROJ-1"}); err != nil {
		t.Fatal(err)
	}

	r := newTestReconciler(local, rem, store, nil)
	r.seedSnapshots(t, "task-1", task, issue)

	results := r.Sync(context.Background(), []model.Mapping{{LocalID: "task-1", RemoteKey: "PROJ-1"}}, Options{})
	if len(results) != 1 {
		t.Fatalf("len(results) = %d", len(results))
	}
	if results[0].State != model.StateInSync || results[0].Status != model.OpStatusOK {
		t.Fatalf("results[0] = %+v", results[0])
	}
	if len(rem.updates) != 0 {
		t.Errorf("expected no remote update for in-sync mapping, got %+v", rem.updates)
	}
}

func TestReconcileOnePushesLocalChanges(t *testing.T) {
	t.Parallel()
	task := model.Task{ID: "task-1", Title: "Fix bug, now renamed", Status: "todo", Priority: "medium"}
	issue := model.Issue{Key: "PROJ-1", Summary: "Fix bug", Status: "Todo", Priority: "Medium"}

	local := newFakeLocal(task)
	rem := newFakeRemote(issue)
	store := newFakeMappingStore()
	if err := store.PutMapping(model.Mapping{LocalID: "task-1", RemoteKey: "PROJ-1"}); err != nil {
		t.Fatal(err)
	}

	r := newTestReconciler(local, rem, store, nil)
	// Seed snapshots against the *old* title so the local side is seen
	// as changed relative to the base.
	oldTask := task
	oldTask.Title = "Fix bug"
	r.seedSnapshots(t, "task-1", oldTask, issue)

	results := r.Sync(context.Background(), []model.Mapping{{LocalID: "task-1", RemoteKey: "PROJ-1"}}, Options{})
	if results[0].State != model.StateNeedsPush || results[0].Status != model.OpStatusOK {
		t.Fatalf("results[0] = %+v", results[0])
	}
	fields, ok := rem.updates["PROJ-1"]
	if !ok {
		t.Fatal("expected an update to PROJ-1")
	}
	if fields["summary"] != task.Title {
		t.Errorf("summary update = %v, want %q", fields["summary"], task.Title)
	}
}

func TestReconcileOnePullsRemoteChanges(t *testing.T) {
	t.Parallel()
	task := model.Task{ID: "task-1", Title: "Fix bug", Status: "todo", Priority: "medium"}
	issue := model.Issue{Key: "PROJ-1", Summary: "Fix bug, renamed remotely", Status: "Todo", Priority: "Medium"}

	local := newFakeLocal(task)
	rem := newFakeRemote(issue)
	store := newFakeMappingStore()
	if err := store.PutMapping(model.Mapping{LocalID: "task-1", RemoteKey: "PROJ-1"}); err != nil {
		t.Fatal(err)
	}

	r := newTestReconciler(local, rem, store, nil)
	oldIssue := issue
	oldIssue.Summary = "Fix bug"
	r.seedSnapshots(t, "task-1", task, oldIssue)

	results := r.Sync(context.Background(), []model.Mapping{{LocalID: "task-1", RemoteKey: "PROJ-1"}}, Options{})
	if results[0].State != model.StateNeedsPull || results[0].Status != model.OpStatusOK {
		t.Fatalf("results[0] = %+v", results[0])
	}
	u, ok := local.updates["task-1"]
	if !ok {
		t.Fatal("expected a local update for task-1")
	}
	if u.Title == nil || *u.Title != issue.Summary {
		t.Errorf("u.Title = %v, want %q", u.Title, issue.Summary)
	}
}

func TestReconcileOneConflictPreferLocal(t *testing.T) {
	t.Parallel()
	task := model.Task{ID: "task-1", Title: "Local title", Status: "todo", Priority: "medium"}
	issue := model.Issue{Key: "PROJ-1", Summary: "Remote title", Status: "Todo", Priority: "Medium"}

	local := newFakeLocal(task)
	rem := newFakeRemote(issue)
	store := newFakeMappingStore()
	if err := store.PutMapping(model.Mapping{LocalID: "task-1", RemoteKey: "PROJ-1"}); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.ConflictStrategy = string(model.StrategyPreferLocal)
	r := newTestReconciler(local, rem, store, cfg)

	oldTask, oldIssue := task, issue
	oldTask.Title, oldIssue.Summary = "Base title", "Base title"
	r.seedSnapshots(t, "task-1", oldTask, oldIssue)

	results := r.Sync(context.Background(), []model.Mapping{{LocalID: "task-1", RemoteKey: "PROJ-1"}}, Options{})
	if results[0].State != model.StateConflict || results[0].Status != model.OpStatusOK {
		t.Fatalf("results[0] = %+v", results[0])
	}
	if fields := rem.updates["PROJ-1"]; fields["summary"] != task.Title {
		t.Errorf("expected prefer-local to push local title, got %+v", fields)
	}
}

func TestReconcileOneConflictManualFails(t *testing.T) {
	t.Parallel()
	task := model.Task{ID: "task-1", Title: "Local title", Status: "todo"}
	issue := model.Issue{Key: "PROJ-1", Summary: "Remote title", Status: "Todo"}

	local := newFakeLocal(task)
	rem := newFakeRemote(issue)
	store := newFakeMappingStore()
	if err := store.PutMapping(model.Mapping{LocalID: "task-1", RemoteKey: "PROJ-1"}); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.ConflictStrategy = string(model.StrategyManual)
	r := newTestReconciler(local, rem, store, cfg)

	oldTask, oldIssue := task, issue
	oldTask.Title, oldIssue.Summary = "Base title", "Base title"
	r.seedSnapshots(t, "task-1", oldTask, oldIssue)

	results := r.Sync(context.Background(), []model.Mapping{{LocalID: "task-1", RemoteKey: "PROJ-1"}}, Options{})
	if results[0].Status != model.OpStatusFailed {
		t.Fatalf("expected manual strategy to fail the sync, got %+v", results[0])
	}
	if len(rem.updates) != 0 || len(local.updates) != 0 {
		t.Error("manual strategy must not mutate either side")
	}
}

func TestReconcilePushFailsOnNeedsPullWithoutForce(t *testing.T) {
	t.Parallel()
	task := model.Task{ID: "task-1", Title: "Fix bug", Status: "todo"}
	issue := model.Issue{Key: "PROJ-1", Summary: "Fix bug, renamed remotely", Status: "Todo"}

	local := newFakeLocal(task)
	rem := newFakeRemote(issue)
	store := newFakeMappingStore()
	if err := store.PutMapping(model.Mapping{LocalID: "task-1", RemoteKey: "PROJ-1"}); err != nil {
		t.Fatal(err)
	}
	r := newTestReconciler(local, rem, store, nil)
	oldIssue := issue
	oldIssue.Summary = "Fix bug"
	r.seedSnapshots(t, "task-1", task, oldIssue)

	results := r.Push(context.Background(), []model.Mapping{{LocalID: "task-1", RemoteKey: "PROJ-1"}}, Options{})
	if results[0].Status != model.OpStatusFailed {
		t.Fatalf("expected push to fail on NeedsPull without force, got %+v", results[0])
	}
}

func TestReconcileStatusTransitionUsesThreePassMatch(t *testing.T) {
	t.Parallel()
	task := model.Task{ID: "task-1", Title: "Fix bug", Status: "done"}
	issue := model.Issue{Key: "PROJ-1", Summary: "Fix bug", Status: "Todo"}

	local := newFakeLocal(task)
	rem := newFakeRemote(issue)
	rem.transitions["PROJ-1"] = []remote.Transition{
		{ID: "31", Name: "Resolve Issue", To: ""},
	}
	store := newFakeMappingStore()
	if err := store.PutMapping(model.Mapping{LocalID: "task-1", RemoteKey: "PROJ-1"}); err != nil {
		t.Fatal(err)
	}
	r := newTestReconciler(local, rem, store, nil)
	oldTask := task
	oldTask.Status = "todo"
	r.seedSnapshots(t, "task-1", oldTask, issue)

	results := r.Sync(context.Background(), []model.Mapping{{LocalID: "task-1", RemoteKey: "PROJ-1"}}, Options{})
	if results[0].Status != model.OpStatusOK {
		t.Fatalf("results[0] = %+v", results[0])
	}
	if len(rem.transitioned) != 1 || rem.transitioned[0] != "31" {
		t.Errorf("transitioned = %v, want [31]", rem.transitioned)
	}
}

// TestReconcileSyncIsIdempotentAfterPush runs a second Sync right after
// a push commits and asserts it finds InSync with zero mutations,
// exercising the post-sync snapshot equality property: the snapshots
// commit writes must reflect what the push actually wrote remotely,
// not the pre-push values, or the second run would spuriously see the
// just-written remote change as foreign and attempt a pull.
func TestReconcileSyncIsIdempotentAfterPush(t *testing.T) {
	t.Parallel()
	task := model.Task{ID: "task-1", Title: "Fix bug, now renamed", Status: "todo", Priority: "medium"}
	issue := model.Issue{Key: "PROJ-1", Summary: "Fix bug", Status: "Todo", Priority: "Medium"}

	local := newFakeLocal(task)
	rem := newFakeRemote(issue)
	store := newFakeMappingStore()
	if err := store.PutMapping(model.Mapping{LocalID: "task-1", RemoteKey: "PROJ-1"}); err != nil {
		t.Fatal(err)
	}

	r := newTestReconciler(local, rem, store, nil)
	oldTask := task
	oldTask.Title = "Fix bug"
	r.seedSnapshots(t, "task-1", oldTask, issue)

	mappings := []model.Mapping{{LocalID: "task-1", RemoteKey: "PROJ-1"}}

	first := r.Sync(context.Background(), mappings, Options{})
	if first[0].State != model.StateNeedsPush || first[0].Status != model.OpStatusOK {
		t.Fatalf("first sync = %+v", first[0])
	}
	if rem.issues["PROJ-1"].Summary != task.Title {
		t.Fatalf("fake remote issue not updated by push: %+v", rem.issues["PROJ-1"])
	}

	second := r.Sync(context.Background(), mappings, Options{})
	if second[0].State != model.StateInSync {
		t.Fatalf("second sync state = %v, want InSync (stale commit snapshot would see NeedsPull here)", second[0].State)
	}
	if second[0].Status != model.OpStatusOK {
		t.Fatalf("second sync = %+v", second[0])
	}
	if len(rem.updates) != 1 {
		t.Errorf("expected no additional remote update on the second, idempotent sync; updates = %+v", rem.updates)
	}
	if len(local.updates) != 0 {
		t.Errorf("expected no local update on either sync; updates = %+v", local.updates)
	}
}

// TestReconcileStatusAfterPushReflectsWrittenValue exercises Status
// (the read-only CLI path) immediately after a Push commits, asserting
// it reports InSync rather than rediscovering the write it just made
// as a pending pull.
func TestReconcileStatusAfterPushReflectsWrittenValue(t *testing.T) {
	t.Parallel()
	task := model.Task{ID: "task-1", Title: "Fix bug, now renamed", Status: "todo", Priority: "medium"}
	issue := model.Issue{Key: "PROJ-1", Summary: "Fix bug", Status: "Todo", Priority: "Medium"}

	local := newFakeLocal(task)
	rem := newFakeRemote(issue)
	store := newFakeMappingStore()
	if err := store.PutMapping(model.Mapping{LocalID: "task-1", RemoteKey: "PROJ-1"}); err != nil {
		t.Fatal(err)
	}

	r := newTestReconciler(local, rem, store, nil)
	oldTask := task
	oldTask.Title = "Fix bug"
	r.seedSnapshots(t, "task-1", oldTask, issue)

	mappings := []model.Mapping{{LocalID: "task-1", RemoteKey: "PROJ-1"}}
	if results := r.Push(context.Background(), mappings, Options{}); results[0].Status != model.OpStatusOK {
		t.Fatalf("push = %+v", results[0])
	}

	entries := r.Status(context.Background(), mappings)
	if len(entries) != 1 || entries[0].Err != nil {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].State != model.StateInSync {
		t.Errorf("State = %v, want InSync", entries[0].State)
	}
}

func (r *Reconciler) seedSnapshots(t *testing.T, localID string, task model.Task, issue model.Issue) {
	t.Helper()
	localPayload := normalize.NormalizeLocal(task)
	remotePayload := normalize.NormalizeRemote(issue, r.Cfg, r.Cfg.ProjectKey)
	if err := r.Store.PutSnapshot(model.Snapshot{LocalID: localID, Side: model.SideLocal, Hash: normalize.Hash(localPayload), Payload: localPayload}); err != nil {
		t.Fatalf("seed local snapshot: %v", err)
	}
	if err := r.Store.PutSnapshot(model.Snapshot{LocalID: localID, Side: model.SideRemote, Hash: normalize.Hash(remotePayload), Payload: remotePayload}); err != nil {
		t.Fatalf("seed remote snapshot: %v", err)
	}
}
