package localtask

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jra3/tasksync/internal/model"
)

// fieldLine matches a "Key: value" line with content on the same line,
// e.g. "Status: in-progress". sectionHeader matches a bare "Key:" or
// "Multi Word Key:" line with nothing following, which marks the start
// of a multi-line section (spec.md §4.3: "section-header detection
// treats any `Word Word:` line as a section boundary").
var fieldLine = regexp.MustCompile(`^([A-Za-z][A-Za-z ]*):\s+(.+)$`)
var sectionHeader = regexp.MustCompile(`^([A-Za-z][A-Za-z ]*):\s*$`)

// parseTaskList parses `task list --plain` output: one record per
// non-blank line, tab-separated fields in a fixed column order (id,
// title, status, priority, assignee, labels).
func parseTaskList(out string) ([]model.Task, error) {
	var tasks []model.Task
	for i, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 3 {
			return nil, fmt.Errorf("list line %d: expected at least 3 tab-separated columns, got %d: %q", i+1, len(cols), line)
		}
		task := model.Task{ID: cols[0], Title: cols[1], Status: cols[2]}
		if len(cols) > 3 {
			task.Priority = cols[3]
		}
		if len(cols) > 4 {
			task.Assignee = cols[4]
		}
		if len(cols) > 5 && cols[5] != "" {
			task.Labels = splitAndTrim(cols[5], ",")
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// parseTaskDetail parses `task <id> --plain` output: a leading run of
// "Key: value" fields (Title, Status, Assignee, Priority, Labels)
// followed by zero or more multi-line sections (Description,
// Acceptance Criteria, Implementation Plan, Implementation Notes).
func parseTaskDetail(out string) (model.Task, error) {
	var task model.Task
	lines := strings.Split(out, "\n")

	var currentSection string
	var currentBody []string

	flush := func() {
		if currentSection == "" {
			return
		}
		body := strings.TrimRight(strings.Join(currentBody, "\n"), "\n")
		switch strings.ToLower(currentSection) {
		case "description":
			task.Description = body
		case "acceptance criteria":
			task.AcceptanceCriteria = parseACLines(strings.Split(body, "\n"))
		case "implementation plan":
			task.ImplementationPlan = body
		case "implementation notes":
			task.ImplementationNotes = body
		}
	}

	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")

		if currentSection == "" {
			if m := fieldLine.FindStringSubmatch(line); m != nil {
				applyField(&task, m[1], m[2])
				continue
			}
		}

		if m := sectionHeader.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			flush()
			currentSection = m[1]
			currentBody = nil
			continue
		}

		if currentSection != "" {
			currentBody = append(currentBody, line)
		}
	}
	flush()

	return task, nil
}

func applyField(task *model.Task, key, value string) {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "title":
		task.Title = value
	case "status":
		task.Status = value
	case "assignee":
		task.Assignee = value
	case "priority":
		task.Priority = value
	case "labels":
		task.Labels = splitAndTrim(value, ",")
	case "path":
		task.FilePath = value
	}
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseACLines(lines []string) []model.AcceptanceCriterion {
	var out []model.AcceptanceCriterion
	pattern := regexp.MustCompile(`(?i)^-\s*\[( |x)\]\s*(.*)$`)
	for _, line := range lines {
		m := pattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		out = append(out, model.AcceptanceCriterion{
			Text:    strings.TrimSpace(m[2]),
			Checked: strings.EqualFold(m[1], "x"),
		})
	}
	return out
}

// parseCreatedID extracts the newly-created task id the CLI echoes
// back, e.g. "Created task task-42" or a bare id on the last non-blank
// line.
func parseCreatedID(out string) (string, error) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return "", fmt.Errorf("empty output from task create")
	}
	last := strings.TrimSpace(lines[len(lines)-1])

	if idx := strings.LastIndex(last, " "); idx != -1 {
		candidate := last[idx+1:]
		if looksLikeID(candidate) {
			return candidate, nil
		}
	}
	if looksLikeID(last) {
		return last, nil
	}
	return "", fmt.Errorf("could not find a task id in create output: %q", out)
}

func looksLikeID(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
