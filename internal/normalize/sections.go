package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jra3/tasksync/internal/model"
)

// Section markers appended to a remote description, always in this
// order and always rewritten as a single trailing block (spec.md §4.1).
const (
	acceptanceCriteriaMarker = "Acceptance Criteria:"
	implementationPlanMarker = "Implementation Plan:"
	implementationNotesMarker = "Implementation Notes:"
)

var acItemPattern = regexp.MustCompile(`(?i)^-\s*\[( |x)\]\s*(.*)$`)

// EncodeDescription appends the acceptance-criteria, implementation-plan,
// and implementation-notes sections to a base description, for pushing
// to the remote side (spec.md §4.1). Sections with no content are
// omitted. Any previously-rendered sections in base must already have
// been stripped by the caller (see ExtractSections).
func EncodeDescription(base string, ac []model.AcceptanceCriterion, plan, notes string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "\n"))

	if len(ac) > 0 {
		b.WriteString("\n\n")
		b.WriteString(acceptanceCriteriaMarker)
		for _, item := range ac {
			box := " "
			if item.Checked {
				box = "x"
			}
			fmt.Fprintf(&b, "\n- [%s] %s", box, item.Text)
		}
	}

	if strings.TrimSpace(plan) != "" {
		b.WriteString("\n\n")
		b.WriteString(implementationPlanMarker)
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(plan))
	}

	if strings.TrimSpace(notes) != "" {
		b.WriteString("\n\n")
		b.WriteString(implementationNotesMarker)
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(notes))
	}

	return strings.TrimSpace(b.String())
}

// ExtractSections strips the acceptance-criteria, implementation-plan,
// and implementation-notes sections from a remote description and
// returns the remaining free-text description plus the parsed-out
// pieces, so that AC/plan/notes changes don't masquerade as description
// changes when the two sides are compared (spec.md §4.1).
func ExtractSections(description string) (base string, ac []model.AcceptanceCriterion, plan, notes string) {
	lines := strings.Split(description, "\n")

	type span struct {
		marker string
		start  int // index of the marker line
	}
	var spans []span
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.EqualFold(trimmed, acceptanceCriteriaMarker):
			spans = append(spans, span{acceptanceCriteriaMarker, i})
		case strings.EqualFold(trimmed, implementationPlanMarker):
			spans = append(spans, span{implementationPlanMarker, i})
		case strings.EqualFold(trimmed, implementationNotesMarker):
			spans = append(spans, span{implementationNotesMarker, i})
		}
	}

	if len(spans) == 0 {
		return strings.TrimSpace(description), nil, "", ""
	}

	baseEnd := spans[0].start
	base = strings.TrimSpace(strings.Join(lines[:baseEnd], "\n"))

	for idx, sp := range spans {
		end := len(lines)
		if idx+1 < len(spans) {
			end = spans[idx+1].start
		}
		body := lines[sp.start+1 : end]

		switch sp.marker {
		case acceptanceCriteriaMarker:
			ac = parseACLines(body)
		case implementationPlanMarker:
			plan = strings.TrimSpace(strings.Join(body, "\n"))
		case implementationNotesMarker:
			notes = strings.TrimSpace(strings.Join(body, "\n"))
		}
	}

	return base, ac, plan, notes
}

func parseACLines(lines []string) []model.AcceptanceCriterion {
	var out []model.AcceptanceCriterion
	for _, line := range lines {
		m := acItemPattern.FindStringSubmatch(strings.TrimSpace(line))
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
