package remote

import (
	"context"

	"github.com/jra3/tasksync/internal/model"
)

// issuePayload mirrors the tool server's JSON shape for a single issue;
// it's kept adapter-private and translated into model.Issue at the
// wrapper boundary so the rest of the engine never depends on wire
// field names.
type issuePayload struct {
	Key         string   `json:"key"`
	ID          string   `json:"id"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Assignee    string   `json:"assignee"`
	Labels      []string `json:"labels"`
	Priority    string   `json:"priority"`
	IssueType   string   `json:"issueType"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
	URL         string   `json:"url"`
}

func (p issuePayload) toModel() model.Issue {
	return model.Issue{
		Key:         p.Key,
		ID:          p.ID,
		Summary:     p.Summary,
		Description: p.Description,
		Status:      p.Status,
		Assignee:    p.Assignee,
		Labels:      p.Labels,
		Priority:    p.Priority,
		IssueType:   p.IssueType,
		URL:         p.URL,
	}
}

// SearchIssues runs a JQL-style query against jira_search (spec.md §6).
func (a *Adapter) SearchIssues(ctx context.Context, jql string, maxResults, startAt int) ([]model.Issue, error) {
	var out struct {
		Issues []issuePayload `json:"issues"`
	}
	params := map[string]any{"jql": jql, "maxResults": maxResults, "startAt": startAt}
	if err := a.callTool(ctx, "jira_search", params, &out); err != nil {
		return nil, err
	}
	issues := make([]model.Issue, len(out.Issues))
	for i, p := range out.Issues {
		issues[i] = p.toModel()
	}
	return issues, nil
}

// GetIssue fetches a single issue by key.
func (a *Adapter) GetIssue(ctx context.Context, key string) (model.Issue, error) {
	var out issuePayload
	if err := a.callTool(ctx, "jira_get_issue", map[string]any{"key": key}, &out); err != nil {
		return model.Issue{}, err
	}
	if out.Key == "" {
		out.Key = key
	}
	return out.toModel(), nil
}

// UpdateIssue applies a partial field update to an existing issue.
// fields uses the wire names the tool server expects (summary,
// description, labels, priority, assignee); status changes go through
// TransitionIssue instead, since most trackers model status as a
// workflow transition rather than a plain field.
func (a *Adapter) UpdateIssue(ctx context.Context, key string, fields map[string]any) error {
	params := map[string]any{"key": key, "fields": fields}
	return a.callTool(ctx, "jira_update_issue", params, nil)
}

// CreateIssue creates a new issue and returns the created key. If the
// response is missing the summary value, it falls back
// to the input summary rather than failing (spec.md §4.4
// ResponseShape).
func (a *Adapter) CreateIssue(ctx context.Context, project, issueType, summary string, additionalFields map[string]any) (model.Issue, error) {
	params := map[string]any{
		"project":   project,
		"issueType": issueType,
		"summary":   summary,
		"fields":    additionalFields,
	}
	var out issuePayload
	if err := a.callTool(ctx, "jira_create_issue", params, &out); err != nil {
		return model.Issue{}, err
	}
	if out.Summary == "" {
		out.Summary = summary
	}
	if out.Key == "" {
		return model.Issue{}, &Error{Kind: KindResponseShape, Tool: "jira_create_issue", Message: "created-issue response missing key"}
	}
	return out.toModel(), nil
}

// Transition is one available workflow transition for an issue.
type Transition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	To   string `json:"to"`
}

// GetTransitions lists the transitions currently available for key.
func (a *Adapter) GetTransitions(ctx context.Context, key string) ([]Transition, error) {
	var out struct {
		Transitions []Transition `json:"transitions"`
	}
	if err := a.callTool(ctx, "jira_get_transitions", map[string]any{"key": key}, &out); err != nil {
		return nil, err
	}
	return out.Transitions, nil
}

// TransitionIssue executes a previously-discovered transition, with an
// optional comment attached to the transition.
func (a *Adapter) TransitionIssue(ctx context.Context, key, transitionID, comment string) error {
	params := map[string]any{"key": key, "transitionId": transitionID}
	if comment != "" {
		params["comment"] = comment
	}
	return a.callTool(ctx, "jira_transition_issue", params, nil)
}

// AddComment posts a comment to an issue.
func (a *Adapter) AddComment(ctx context.Context, key, body string) error {
	return a.callTool(ctx, "jira_add_comment", map[string]any{"key": key, "body": body}, nil)
}

// RemoteUser is a minimal user record for assignee fuzzy-matching
// (internal/mapper).
type RemoteUser struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// SearchUsers looks up candidate users by free-text query.
func (a *Adapter) SearchUsers(ctx context.Context, query string) ([]RemoteUser, error) {
	var out struct {
		Users []RemoteUser `json:"users"`
	}
	if err := a.callTool(ctx, "jira_search_user", map[string]any{"query": query}, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// RemoteProject is a minimal project record used by `create-issue`'s
// project picker.
type RemoteProject struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// GetAllProjects lists every project visible to the configured credentials.
func (a *Adapter) GetAllProjects(ctx context.Context) ([]RemoteProject, error) {
	var out struct {
		Projects []RemoteProject `json:"projects"`
	}
	if err := a.callTool(ctx, "jira_get_all_projects", nil, &out); err != nil {
		return nil, err
	}
	return out.Projects, nil
}

// IsRateLimited reports whether err is (or wraps) a RateLimited Error,
// the signal the watcher uses to trigger its long backoff.
func IsRateLimited(err error) bool {
	return KindOf(err) == KindRateLimited
}
