// Package normalize canonicalizes either side of a mapping into a
// NormalizedPayload that can be compared for equality and hashed into a
// three-way-merge base, even though the local task and remote issue
// wire formats differ (spec.md §4.1).
package normalize

import (
	"log"
	"sort"
	"strings"

	"github.com/jra3/tasksync/internal/config"
	"github.com/jra3/tasksync/internal/model"
)

// NormalizeLocal canonicalizes a local task. Local status and priority
// are already canonical (the local CLI speaks the engine's own
// vocabulary), so this mostly lower-cases and sorts fields that aren't
// semantically order- or case-sensitive.
func NormalizeLocal(task model.Task) model.NormalizedPayload {
	return model.NormalizedPayload{
		Title:              strings.TrimSpace(task.Title),
		Description:        strings.TrimSpace(task.Description),
		Status:             strings.ToLower(strings.TrimSpace(task.Status)),
		Priority:           strings.ToLower(strings.TrimSpace(task.Priority)),
		Labels:             sortedLower(task.Labels),
		Assignee:           strings.ToLower(strings.TrimSpace(task.Assignee)),
		AcceptanceCriteria: task.AcceptanceCriteria,
	}
}

// NormalizeRemote canonicalizes a remote issue. projectKey selects a
// per-project status/priority override when one is configured.
func NormalizeRemote(issue model.Issue, cfg *config.Config, projectKey string) model.NormalizedPayload {
	description, ac, _, _ := ExtractSections(issue.Description)

	return model.NormalizedPayload{
		Title:              strings.TrimSpace(issue.Summary),
		Description:        strings.TrimSpace(description),
		Status:             canonicalStatus(issue.Status, cfg, projectKey),
		Priority:           canonicalPriority(issue.Priority, cfg, projectKey),
		Labels:             sortedLower(issue.Labels),
		Assignee:           strings.ToLower(strings.TrimSpace(issue.Assignee)),
		AcceptanceCriteria: ac,
	}
}

func sortedLower(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	sort.Strings(out)
	return out
}

// canonicalStatus maps a raw remote workflow status name onto the
// canonical local status key whose acceptable-statuses list contains it
// (case-insensitive). Unknown remote statuses log a warning and fall
// back to their lower-cased raw form so they still compare unequal to
// any known canonical status (spec.md §4.1 "unknown enum values log
// warnings and default").
func canonicalStatus(remoteStatus string, cfg *config.Config, projectKey string) string {
	remoteStatus = strings.TrimSpace(remoteStatus)
	if remoteStatus == "" {
		return ""
	}
	for local := range cfg.StatusMapping {
		for _, candidate := range cfg.AcceptableStatuses(local, projectKey) {
			if strings.EqualFold(candidate, remoteStatus) {
				return local
			}
		}
	}
	log.Printf("[normalize] unknown remote status %q has no configured statusMapping entry", remoteStatus)
	return strings.ToLower(remoteStatus)
}

// canonicalPriority maps a raw remote priority name onto {high, medium,
// low} using the configured priority map; unknown values default to
// medium (spec.md §4.1).
func canonicalPriority(remotePriority string, cfg *config.Config, projectKey string) string {
	remotePriority = strings.TrimSpace(remotePriority)
	if remotePriority == "" {
		return string(model.PriorityMedium)
	}
	for _, local := range []string{string(model.PriorityHigh), string(model.PriorityMedium), string(model.PriorityLow)} {
		for _, candidate := range cfg.AcceptablePriorities(local, projectKey) {
			if strings.EqualFold(candidate, remotePriority) {
				return local
			}
		}
	}
	log.Printf("[normalize] unknown remote priority %q, defaulting to medium", remotePriority)
	return string(model.PriorityMedium)
}

// RemoteStatusFor returns the preferred remote status name for a
// canonical local status: the first entry configured for it, allowing
// a project to prefer a particular alias (spec.md §4.1).
func RemoteStatusFor(localStatus string, cfg *config.Config, projectKey string) (string, bool) {
	list := cfg.AcceptableStatuses(localStatus, projectKey)
	if len(list) == 0 {
		return "", false
	}
	return list[0], true
}

// RemotePriorityFor returns the preferred remote priority name for a
// canonical local priority.
func RemotePriorityFor(localPriority string, cfg *config.Config, projectKey string) (string, bool) {
	list := cfg.AcceptablePriorities(localPriority, projectKey)
	if len(list) == 0 {
		return "", false
	}
	return list[0], true
}

// SanitizeTitle replaces frontmatter-hazardous characters in a title so
// a newly-imported local task file stays parseable (spec.md §4.1). It
// is applied only when creating a new local task, never on every pull.
func SanitizeTitle(title string) string {
	replacer := strings.NewReplacer(
		"[", "(",
		"]", ")",
		"{", "(",
		"}", ")",
		":", " -",
		`"`, "",
		"'", "",
		"`", "",
		"#", "",
		"&", "and",
		"*", "",
		"|", "-",
	)
	sanitized := replacer.Replace(title)
	return strings.Join(strings.Fields(sanitized), " ")
}
