// Package mapper establishes new mappings between local tasks and
// remote issues: automatic title-similarity matching, an interactive
// picker, explicit linking, and assignee auto-discovery (spec.md §4.8).
package mapper

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jra3/tasksync/internal/cache"
	"github.com/jra3/tasksync/internal/config"
	"github.com/jra3/tasksync/internal/frontmatter"
	"github.com/jra3/tasksync/internal/model"
	"github.com/jra3/tasksync/internal/normalize"
	"github.com/jra3/tasksync/internal/remote"
)

// scoreCacheTTL bounds how long a memoized title-similarity score stays
// valid. A run's candidate set rarely spans longer than this, so the
// cache exists purely to avoid rescoring the same (task, issue) pair
// across mapAuto's task loop and mapInteractive's jql-retry loop, not
// to survive across separate invocations.
const scoreCacheTTL = 10 * time.Minute

// DefaultMinScore is the title-similarity threshold mapAuto binds at
// when the caller doesn't override it (spec.md §4.8).
const DefaultMinScore = 0.7

// AssigneeMinScore is the similarity threshold below which an
// assignee auto-discovery candidate is discarded (spec.md §4.8).
const AssigneeMinScore = 0.6

// RemoteSearcher is the subset of the Remote Adapter the Mapper needs.
type RemoteSearcher interface {
	SearchIssues(ctx context.Context, jql string, maxResults, startAt int) ([]model.Issue, error)
	SearchUsers(ctx context.Context, query string) ([]remote.RemoteUser, error)
}

// MappingStore is the subset of the Mapping Store the Mapper writes to.
type MappingStore interface {
	GetMapping(localID string) (*model.Mapping, bool, error)
	GetMappingByRemoteKey(remoteKey string) (*model.Mapping, bool, error)
	PutMapping(m model.Mapping) error
	PutSnapshot(s model.Snapshot) error
	ListMappings() ([]model.Mapping, error)
}

// Candidate is a scored remote issue surfaced by a search.
type Candidate struct {
	Issue model.Issue
	Score float64
}

// Result summarizes one mapAuto/mapInteractive run.
type Result struct {
	Bound   []model.Mapping
	Skipped []string
}

// Mapper establishes mappings and performs assignee auto-discovery.
type Mapper struct {
	local  LocalAdapterFunc
	remote RemoteSearcher
	store  MappingStore
	cfg    *config.Config

	jqlBase string

	scoreCache *cache.Cache[float64]

	searchCache    SearchCache
	searchCacheTTL time.Duration
}

// LocalAdapterFunc is the narrow function signature the Mapper needs
// from the Local Adapter: list every local task (no filter).
type LocalAdapterFunc func(ctx context.Context) ([]model.Task, error)

// New constructs a Mapper. The configured JQL filter is used unchanged
// as the search query for title candidates.
func New(local LocalAdapterFunc, searcher RemoteSearcher, store MappingStore, cfg *config.Config) *Mapper {
	jqlBase := cfg.JQLFilter
	return &Mapper{
		local:      local,
		remote:     searcher,
		store:      store,
		cfg:        cfg,
		jqlBase:    jqlBase,
		scoreCache: cache.New[float64](scoreCacheTTL, 1000),
	}
}

// Close releases the Mapper's background resources. Safe to call once
// a Mapper is no longer needed; a Mapper left unclosed just leaks its
// cache's cleanup goroutine until process exit.
func (m *Mapper) Close() {
	if m.scoreCache != nil {
		m.scoreCache.Stop()
	}
}

// unmappedTasks returns local tasks with no recorded mapping.
func (m *Mapper) unmappedTasks(ctx context.Context) ([]model.Task, error) {
	all, err := m.local(ctx)
	if err != nil {
		return nil, fmt.Errorf("list local tasks: %w", err)
	}
	var out []model.Task
	for _, t := range all {
		_, ok, err := m.store.GetMapping(t.ID)
		if err != nil {
			return nil, fmt.Errorf("check existing mapping for %s: %w", t.ID, err)
		}
		if !ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// candidatesFor fetches the issues the jqlBase query returns (the query
// does not include task's title) and ranks them by titleScore against
// task's title, descending. The search itself goes through
// searchCache when one is configured, since mapAuto/mapInteractive
// issue the same jqlBase query once per unmapped task in the loop.
func (m *Mapper) candidatesFor(ctx context.Context, task model.Task) ([]Candidate, error) {
	jql := m.jqlBase
	issues, err := m.searchIssues(ctx, jql)
	if err != nil {
		return nil, fmt.Errorf("search candidates for %s: %w", task.ID, err)
	}

	candidates := make([]Candidate, 0, len(issues))
	for _, issue := range issues {
		candidates = append(candidates, Candidate{Issue: issue, Score: m.scoredTitle(task, issue)})
	}
	sortCandidatesDesc(candidates)
	return candidates, nil
}

// scoredTitle memoizes titleScore per (task, issue) pair: mapInteractive's
// jql-retry loop and mapAuto's task loop can both re-score the same pair
// within a single run without recomputing the word-level Jaccard
// similarity each time.
func (m *Mapper) scoredTitle(task model.Task, issue model.Issue) float64 {
	if m.scoreCache == nil {
		return titleScore(task.Title, issue.Summary)
	}
	key := task.ID + "|" + issue.Key
	if score, ok := m.scoreCache.Get(key); ok {
		return score
	}
	score := titleScore(task.Title, issue.Summary)
	m.scoreCache.Set(key, score)
	return score
}

// SearchCache is the subset of internal/searchcache the Mapper uses to
// avoid re-issuing an identical remote search within a run.
type SearchCache interface {
	GetSearch(jql string, ttl time.Duration) ([]model.Issue, bool, error)
	PutSearch(jql string, issues []model.Issue) error
}

// SetSearchCache attaches a secondary search-result cache. Optional:
// a Mapper with none set always queries the Remote Adapter directly.
func (m *Mapper) SetSearchCache(c SearchCache, ttl time.Duration) {
	m.searchCache = c
	m.searchCacheTTL = ttl
}

func (m *Mapper) searchIssues(ctx context.Context, jql string) ([]model.Issue, error) {
	if m.searchCache == nil {
		return m.remote.SearchIssues(ctx, jql, 50, 0)
	}
	if issues, ok, err := m.searchCache.GetSearch(jql, m.searchCacheTTL); err == nil && ok {
		return issues, nil
	}
	issues, err := m.remote.SearchIssues(ctx, jql, 50, 0)
	if err != nil {
		return nil, err
	}
	if err := m.searchCache.PutSearch(jql, issues); err != nil {
		log.Printf("[mapper] cache search results for %q: %v", jql, err)
	}
	return issues, nil
}

func sortCandidatesDesc(c []Candidate) {
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && c[j].Score > c[j-1].Score; j-- {
			c[j], c[j-1] = c[j-1], c[j]
		}
	}
}

// MapAuto binds every unmapped local task whose best remote candidate
// scores at or above minScore. minScore <= 0 uses DefaultMinScore.
func (m *Mapper) MapAuto(ctx context.Context, minScore float64) (Result, error) {
	if minScore <= 0 {
		minScore = DefaultMinScore
	}

	tasks, err := m.unmappedTasks(ctx)
	if err != nil {
		return Result{}, err
	}

	var result Result
	for _, task := range tasks {
		candidates, err := m.candidatesFor(ctx, task)
		if err != nil {
			log.Printf("[mapper] mapAuto: %v", err)
			result.Skipped = append(result.Skipped, task.ID)
			continue
		}
		if len(candidates) == 0 || candidates[0].Score < minScore {
			result.Skipped = append(result.Skipped, task.ID)
			continue
		}

		mapping, err := m.bind(ctx, task, candidates[0].Issue)
		if err != nil {
			log.Printf("[mapper] mapAuto: bind %s: %v", task.ID, err)
			result.Skipped = append(result.Skipped, task.ID)
			continue
		}
		result.Bound = append(result.Bound, mapping)
	}
	return result, nil
}

// Prompter drives the interactive picker for mapInteractive. Action is
// one of "pick", "jql", "skip", "abort".
type Prompter interface {
	Choose(task model.Task, candidates []Candidate) (Decision, error)
}

// Decision is the operator's response for one unmapped task.
type Decision struct {
	Action string
	Index  int
	JQL    string
}

// MapInteractive walks unmapped local tasks, showing ranked candidates
// and letting the operator pick one, supply custom JQL to re-search,
// skip, or abort the whole run (spec.md §4.8).
func (m *Mapper) MapInteractive(ctx context.Context, prompt Prompter) (Result, error) {
	tasks, err := m.unmappedTasks(ctx)
	if err != nil {
		return Result{}, err
	}

	var result Result
	for _, task := range tasks {
		candidates, err := m.candidatesFor(ctx, task)
		if err != nil {
			log.Printf("[mapper] mapInteractive: %v", err)
			result.Skipped = append(result.Skipped, task.ID)
			continue
		}

		for {
			decision, err := prompt.Choose(task, candidates)
			if err != nil {
				return result, fmt.Errorf("prompt for %s: %w", task.ID, err)
			}
			switch decision.Action {
			case "pick":
				if decision.Index < 0 || decision.Index >= len(candidates) {
					return result, fmt.Errorf("prompt returned out-of-range candidate index %d", decision.Index)
				}
				mapping, err := m.bind(ctx, task, candidates[decision.Index].Issue)
				if err != nil {
					return result, fmt.Errorf("bind %s: %w", task.ID, err)
				}
				result.Bound = append(result.Bound, mapping)
			case "jql":
				issues, err := m.remote.SearchIssues(ctx, decision.JQL, 50, 0)
				if err != nil {
					return result, fmt.Errorf("custom jql search: %w", err)
				}
				candidates = candidates[:0]
				for _, issue := range issues {
					candidates = append(candidates, Candidate{Issue: issue, Score: m.scoredTitle(task, issue)})
				}
				sortCandidatesDesc(candidates)
				continue
			case "skip":
				result.Skipped = append(result.Skipped, task.ID)
			case "abort":
				return result, nil
			default:
				return result, fmt.Errorf("unknown prompt decision %q", decision.Action)
			}
			break
		}
	}
	return result, nil
}

// MapLink directly binds localID to remoteKey, refusing to overwrite
// an existing participation on either side unless force is set
// (spec.md §4.8).
func (m *Mapper) MapLink(ctx context.Context, localTask model.Task, issue model.Issue, force bool) (model.Mapping, error) {
	if !force {
		if existing, ok, err := m.store.GetMapping(localTask.ID); err != nil {
			return model.Mapping{}, err
		} else if ok {
			return model.Mapping{}, fmt.Errorf("local task %s is already mapped to %s; pass force to override", localTask.ID, existing.RemoteKey)
		}
		if existing, ok, err := m.store.GetMappingByRemoteKey(issue.Key); err != nil {
			return model.Mapping{}, err
		} else if ok {
			return model.Mapping{}, fmt.Errorf("remote issue %s is already mapped to %s; pass force to override", issue.Key, existing.LocalID)
		}
	}
	return m.bind(ctx, localTask, issue)
}

// bind creates the mapping and initial snapshots from the current
// state of both sides, so the first subsequent sync classifies as
// InSync (spec.md §4.8).
func (m *Mapper) bind(ctx context.Context, task model.Task, issue model.Issue) (model.Mapping, error) {
	now := time.Now()
	mapping := model.Mapping{LocalID: task.ID, RemoteKey: issue.Key, CreatedAt: now, UpdatedAt: now}
	if err := m.store.PutMapping(mapping); err != nil {
		return model.Mapping{}, fmt.Errorf("put mapping: %w", err)
	}

	localPayload := normalize.NormalizeLocal(task)
	remotePayload := normalize.NormalizeRemote(issue, m.cfg, m.cfg.ProjectKey)

	if err := m.store.PutSnapshot(model.Snapshot{LocalID: task.ID, Side: model.SideLocal, Hash: normalize.Hash(localPayload), Payload: localPayload, UpdatedAt: now}); err != nil {
		return model.Mapping{}, fmt.Errorf("put local snapshot: %w", err)
	}
	if err := m.store.PutSnapshot(model.Snapshot{LocalID: task.ID, Side: model.SideRemote, Hash: normalize.Hash(remotePayload), Payload: remotePayload, UpdatedAt: now}); err != nil {
		return model.Mapping{}, fmt.Errorf("put remote snapshot: %w", err)
	}

	if task.FilePath != "" {
		syncState := string(model.StateInSync)
		lastSync := now.Format(time.RFC3339)
		u := frontmatter.Update{
			RemoteKey: &issue.Key,
			RemoteURL: &issue.URL,
			LastSync:  &lastSync,
			SyncState: &syncState,
		}
		if err := frontmatter.ApplyToFile(task.FilePath, u); err != nil {
			return model.Mapping{}, fmt.Errorf("update frontmatter: %w", err)
		}
	}

	return mapping, nil
}

// DiscoverAssignees computes, for each distinct local assignee
// identifier, the best-scoring remote user by display-name similarity,
// and persists matches at or above AssigneeMinScore into
// AutoMappedAssignees (never AssigneeMapping, which is reserved for
// explicit entries) (spec.md §4.8).
func (m *Mapper) DiscoverAssignees(ctx context.Context, remoteUsers []remote.RemoteUser) error {
	tasks, err := m.local(ctx)
	if err != nil {
		return fmt.Errorf("list local tasks: %w", err)
	}

	locals := make(map[string]bool)
	for _, t := range tasks {
		if a := strings.TrimSpace(t.Assignee); a != "" {
			locals[a] = true
		}
	}

	for localID := range locals {
		if _, ok := m.cfg.AssigneeMapping[localID]; ok {
			continue
		}
		best := ""
		bestScore := 0.0
		for _, u := range remoteUsers {
			score := assigneeScore(localID, u.DisplayName)
			if score > bestScore {
				bestScore = score
				best = u.AccountID
			}
		}
		if bestScore >= AssigneeMinScore && best != "" {
			m.cfg.PutAutoMappedAssignee(localID, best)
		}
	}
	return nil
}
