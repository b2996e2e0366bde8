package classify

import (
	"testing"

	"github.com/jra3/tasksync/internal/model"
)

func TestClassifyExhaustiveTable(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   Input
		want model.SyncState
	}{
		{
			name: "snapshot local absent is unknown",
			in:   Input{CurrentLocalHash: "a", CurrentRemoteHash: "b", SnapshotLocalHash: "", SnapshotRemoteHash: "b"},
			want: model.StateUnknown,
		},
		{
			name: "snapshot remote absent is unknown",
			in:   Input{CurrentLocalHash: "a", CurrentRemoteHash: "b", SnapshotLocalHash: "a", SnapshotRemoteHash: ""},
			want: model.StateUnknown,
		},
		{
			name: "both absent is unknown",
			in:   Input{},
			want: model.StateUnknown,
		},
		{
			name: "neither changed is in sync",
			in:   Input{CurrentLocalHash: "a", CurrentRemoteHash: "b", SnapshotLocalHash: "a", SnapshotRemoteHash: "b"},
			want: model.StateInSync,
		},
		{
			name: "local changed only is needs push",
			in:   Input{CurrentLocalHash: "a2", CurrentRemoteHash: "b", SnapshotLocalHash: "a", SnapshotRemoteHash: "b"},
			want: model.StateNeedsPush,
		},
		{
			name: "remote changed only is needs pull",
			in:   Input{CurrentLocalHash: "a", CurrentRemoteHash: "b2", SnapshotLocalHash: "a", SnapshotRemoteHash: "b"},
			want: model.StateNeedsPull,
		},
		{
			name: "both changed is conflict",
			in:   Input{CurrentLocalHash: "a2", CurrentRemoteHash: "b2", SnapshotLocalHash: "a", SnapshotRemoteHash: "b"},
			want: model.StateConflict,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tc.in); got != tc.want {
				t.Errorf("Classify(%+v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
