// Package classify turns a pair of current/base snapshot hashes into a
// sync state. It is a pure function with no I/O, no config, and no
// knowledge of what a mapping or a task is — everything it needs
// arrives as arguments (spec.md §4.5).
package classify

import "github.com/jra3/tasksync/internal/model"

// Input is the four-hash tuple the classifier reasons over.
// SnapshotLocal/SnapshotRemote use the empty string to mean "absent":
// no snapshot has ever been recorded for that side.
type Input struct {
	CurrentLocalHash   string
	CurrentRemoteHash  string
	SnapshotLocalHash  string
	SnapshotRemoteHash string
}

// Classify returns the sync state for one mapping. The table is
// exhaustive: absence of either snapshot is always Unknown regardless
// of the current hashes, and otherwise the state is determined purely
// by whether each side's current hash differs from its snapshot hash.
func Classify(in Input) model.SyncState {
	if in.SnapshotLocalHash == "" || in.SnapshotRemoteHash == "" {
		return model.StateUnknown
	}

	localChanged := in.CurrentLocalHash != in.SnapshotLocalHash
	remoteChanged := in.CurrentRemoteHash != in.SnapshotRemoteHash

	switch {
	case !localChanged && !remoteChanged:
		return model.StateInSync
	case localChanged && !remoteChanged:
		return model.StateNeedsPush
	case !localChanged && remoteChanged:
		return model.StateNeedsPull
	default:
		return model.StateConflict
	}
}
