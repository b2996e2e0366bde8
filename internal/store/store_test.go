package store

import (
	"testing"
	"time"

	"github.com/jra3/tasksync/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutAndGetMapping(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	m := model.Mapping{LocalID: "task-1", RemoteKey: "PROJ-1", CreatedAt: time.Unix(0, 0), UpdatedAt: time.Unix(0, 0)}
	if err := s.PutMapping(m); err != nil {
		t.Fatalf("PutMapping() error: %v", err)
	}

	got, ok, err := s.GetMapping("task-1")
	if err != nil {
		t.Fatalf("GetMapping() error: %v", err)
	}
	if !ok {
		t.Fatal("GetMapping() ok = false, want true")
	}
	if got.RemoteKey != "PROJ-1" {
		t.Errorf("RemoteKey = %q, want PROJ-1", got.RemoteKey)
	}
}

func TestGetMappingAbsentIsNotError(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	_, ok, err := s.GetMapping("nope")
	if err != nil {
		t.Fatalf("GetMapping() error: %v", err)
	}
	if ok {
		t.Error("expected ok = false for unrecorded mapping")
	}
}

func TestGetMappingByRemoteKey(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	if err := s.PutMapping(model.Mapping{LocalID: "task-1", RemoteKey: "PROJ-1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.PutMapping(model.Mapping{LocalID: "task-2", RemoteKey: "PROJ-2"}); err != nil {
		t.Fatal(err)
	}

	got, ok, err := s.GetMappingByRemoteKey("PROJ-2")
	if err != nil {
		t.Fatalf("GetMappingByRemoteKey() error: %v", err)
	}
	if !ok || got.LocalID != "task-2" {
		t.Errorf("GetMappingByRemoteKey() = (%+v, %v)", got, ok)
	}
}

func TestDeleteMappingIsIdempotent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	if err := s.PutMapping(model.Mapping{LocalID: "task-1", RemoteKey: "PROJ-1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteMapping("task-1"); err != nil {
		t.Fatalf("DeleteMapping() error: %v", err)
	}
	if err := s.DeleteMapping("task-1"); err != nil {
		t.Fatalf("DeleteMapping() on already-deleted mapping should not error: %v", err)
	}

	_, ok, _ := s.GetMapping("task-1")
	if ok {
		t.Error("mapping should be gone after delete")
	}
}

func TestListMappings(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	for _, id := range []string{"task-1", "task-2", "task-3"} {
		if err := s.PutMapping(model.Mapping{LocalID: id, RemoteKey: "K-" + id}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListMappings()
	if err != nil {
		t.Fatalf("ListMappings() error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListMappings() len = %d, want 3", len(all))
	}
}

func TestSnapshotAbsenceIsNotError(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	_, ok, err := s.GetSnapshot("task-1", model.SideLocal)
	if err != nil {
		t.Fatalf("GetSnapshot() error: %v", err)
	}
	if ok {
		t.Error("expected ok = false for unrecorded snapshot")
	}
}

func TestPutAndGetSnapshotPerSide(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	local := model.Snapshot{LocalID: "task-1", Side: model.SideLocal, Hash: "h-local"}
	remote := model.Snapshot{LocalID: "task-1", Side: model.SideRemote, Hash: "h-remote"}
	if err := s.PutSnapshot(local); err != nil {
		t.Fatal(err)
	}
	if err := s.PutSnapshot(remote); err != nil {
		t.Fatal(err)
	}

	gotLocal, ok, err := s.GetSnapshot("task-1", model.SideLocal)
	if err != nil || !ok {
		t.Fatalf("GetSnapshot(local) = (%+v, %v, %v)", gotLocal, ok, err)
	}
	if gotLocal.Hash != "h-local" {
		t.Errorf("local hash = %q, want h-local", gotLocal.Hash)
	}

	gotRemote, ok, err := s.GetSnapshot("task-1", model.SideRemote)
	if err != nil || !ok {
		t.Fatalf("GetSnapshot(remote) = (%+v, %v, %v)", gotRemote, ok, err)
	}
	if gotRemote.Hash != "h-remote" {
		t.Errorf("remote hash = %q, want h-remote", gotRemote.Hash)
	}
}

func TestPutSnapshotOnlyUpdatesOneMissingSideIsClassifiedUnknownUpstream(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	if err := s.PutSnapshot(model.Snapshot{LocalID: "task-1", Side: model.SideLocal, Hash: "h"}); err != nil {
		t.Fatal(err)
	}

	_, ok, err := s.GetSnapshot("task-1", model.SideRemote)
	if err != nil {
		t.Fatalf("GetSnapshot() error: %v", err)
	}
	if ok {
		t.Error("remote snapshot should still be absent; store does not pair snapshot writes")
	}
}

func TestAppendOpIsAppendOnly(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	entries := []model.OpLogEntry{
		{Operation: model.OpPush, LocalID: "task-1", Status: model.OpStatusOK},
		{Operation: model.OpPull, LocalID: "task-1", Status: model.OpStatusFailed, Detail: "timeout"},
	}
	for _, e := range entries {
		if err := s.AppendOp(e); err != nil {
			t.Fatalf("AppendOp() error: %v", err)
		}
	}
}
