package reconcile

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jra3/tasksync/internal/config"
	"github.com/jra3/tasksync/internal/remote"
)

// transitionStatus changes key's remote status to canonical local
// status targetStatus using the three-pass transition match described
// in spec.md §4.6.1. A missing transition logs a warning and returns
// nil rather than failing the whole push.
func transitionStatus(ctx context.Context, r RemoteAdapter, key, targetStatus string, cfg *config.Config, projectKey string) error {
	acceptable := cfg.AcceptableStatuses(targetStatus, projectKey)
	if len(acceptable) == 0 {
		log.Printf("[reconcile] no configured remote status accepts local status %q; skipping transition for %s", targetStatus, key)
		return nil
	}

	transitions, err := r.GetTransitions(ctx, key)
	if err != nil {
		return fmt.Errorf("get transitions for %s: %w", key, err)
	}

	t, ok := matchTransition(transitions, acceptable, cfg.TransitionVerbs(targetStatus))
	if !ok {
		names := make([]string, len(transitions))
		for i, tr := range transitions {
			names[i] = tr.Name
		}
		log.Printf("[reconcile] no transition on %s satisfies status %q; available: %v", key, targetStatus, names)
		return nil
	}

	comment := fmt.Sprintf("Status changed to %s by tasksync", targetStatus)
	if err := r.TransitionIssue(ctx, key, t.ID, comment); err != nil {
		return fmt.Errorf("transition %s to %q: %w", key, targetStatus, err)
	}
	return nil
}

// matchTransition implements the three-pass match: exact `to.name`,
// case-insensitive `to.name`, then a verb-pattern or substring match
// against the transition's own name.
func matchTransition(transitions []remote.Transition, acceptable, verbs []string) (remote.Transition, bool) {
	for _, t := range transitions {
		for _, want := range acceptable {
			if t.To == want {
				return t, true
			}
		}
	}
	for _, t := range transitions {
		for _, want := range acceptable {
			if strings.EqualFold(t.To, want) {
				return t, true
			}
		}
	}
	for _, t := range transitions {
		for _, verb := range verbs {
			if strings.Contains(strings.ToLower(t.Name), strings.ToLower(verb)) {
				return t, true
			}
		}
	}
	for _, t := range transitions {
		for _, want := range acceptable {
			if strings.Contains(strings.ToLower(t.Name), strings.ToLower(want)) {
				return t, true
			}
		}
	}
	return remote.Transition{}, false
}

// localStatusForRemote maps a raw remote status name back onto a
// canonical local status key, per the pull-direction reverse lookup in
// spec.md §4.6 ("pull"): unknown remote statuses report ok=false so the
// caller can leave the local value unchanged rather than guess.
func localStatusForRemote(remoteStatus string, cfg *config.Config, projectKey string) (string, bool) {
	remoteStatus = strings.TrimSpace(remoteStatus)
	for local := range cfg.StatusMapping {
		for _, candidate := range cfg.AcceptableStatuses(local, projectKey) {
			if strings.EqualFold(candidate, remoteStatus) {
				return local, true
			}
		}
	}
	return "", false
}

// localPriorityForRemote is localStatusForRemote's priority analogue.
func localPriorityForRemote(remotePriority string, cfg *config.Config, projectKey string) (string, bool) {
	remotePriority = strings.TrimSpace(remotePriority)
	for _, local := range []string{"high", "medium", "low"} {
		for _, candidate := range cfg.AcceptablePriorities(local, projectKey) {
			if strings.EqualFold(candidate, remotePriority) {
				return local, true
			}
		}
	}
	return "", false
}
