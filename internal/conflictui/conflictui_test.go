package conflictui

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/jra3/tasksync/internal/config"
	"github.com/jra3/tasksync/internal/model"
)

func TestResolvePrefersLocalWhenChosen(t *testing.T) {
	t.Parallel()
	conflicts := []model.FieldConflict{
		{Field: model.FieldTitle, LocalValue: "Local title", RemoteValue: "Remote title"},
	}
	in := strings.NewReader("l\ny\n")
	out := &bytes.Buffer{}
	r := &Resolver{In: in, Out: out, Cfg: config.DefaultConfig()}

	res, err := r.Resolve(context.Background(), model.Mapping{LocalID: "task-1", RemoteKey: "PROJ-1"}, conflicts)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !res.Confirmed {
		t.Fatal("expected confirmed resolution")
	}
	d := res.Decisions[model.FieldTitle]
	if d.Source != "local" || d.Value != "Local title" {
		t.Errorf("decision = %+v", d)
	}
}

func TestResolveAbortReturnsUnconfirmed(t *testing.T) {
	t.Parallel()
	conflicts := []model.FieldConflict{
		{Field: model.FieldTitle, LocalValue: "a", RemoteValue: "b"},
	}
	in := strings.NewReader("a\n")
	out := &bytes.Buffer{}
	r := &Resolver{In: in, Out: out, Cfg: config.DefaultConfig()}

	res, err := r.Resolve(context.Background(), model.Mapping{}, conflicts)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Confirmed {
		t.Fatal("expected unconfirmed resolution after abort")
	}
}

func TestResolveDecliningFinalConfirmCancelsEvenAfterPicks(t *testing.T) {
	t.Parallel()
	conflicts := []model.FieldConflict{
		{Field: model.FieldTitle, LocalValue: "a", RemoteValue: "b"},
	}
	in := strings.NewReader("l\nn\n")
	out := &bytes.Buffer{}
	r := &Resolver{In: in, Out: out, Cfg: config.DefaultConfig()}

	res, err := r.Resolve(context.Background(), model.Mapping{}, conflicts)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Confirmed {
		t.Fatal("expected unconfirmed resolution when final confirm is declined")
	}
}

func TestResolveManualPromptsForValue(t *testing.T) {
	t.Parallel()
	conflicts := []model.FieldConflict{
		{Field: model.FieldPriority, LocalValue: "low", RemoteValue: "high"},
	}
	in := strings.NewReader("m\ncustom-priority\ny\n")
	out := &bytes.Buffer{}
	r := &Resolver{In: in, Out: out, Cfg: config.DefaultConfig()}

	res, err := r.Resolve(context.Background(), model.Mapping{}, conflicts)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	d := res.Decisions[model.FieldPriority]
	if d.Source != "manual" || d.Value != "custom-priority" {
		t.Errorf("decision = %+v", d)
	}
}

func TestResolveReprompstOnInvalidAnswer(t *testing.T) {
	t.Parallel()
	conflicts := []model.FieldConflict{
		{Field: model.FieldTitle, LocalValue: "a", RemoteValue: "b"},
	}
	in := strings.NewReader("bogus\nl\ny\n")
	out := &bytes.Buffer{}
	r := &Resolver{In: in, Out: out, Cfg: config.DefaultConfig()}

	res, err := r.Resolve(context.Background(), model.Mapping{}, conflicts)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !res.Confirmed || res.Decisions[model.FieldTitle].Source != "local" {
		t.Fatalf("res = %+v", res)
	}
}

func TestPreviewTruncatesLongValues(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("x", 200)
	got := preview(long)
	if n := len([]rune(got)); n != previewWidth {
		t.Errorf("rune length of preview = %d, want %d", n, previewWidth)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("preview = %q, want ellipsis suffix", got)
	}
}
