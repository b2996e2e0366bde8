package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jra3/tasksync/internal/mapper"
	"github.com/jra3/tasksync/internal/model"
)

// stdinPrompter drives mapper.MapInteractive from a real terminal: show
// ranked candidates, accept a numeric pick, a custom JQL string, "s" to
// skip, or "a" to abort the whole run (spec.md §4.8).
type stdinPrompter struct {
	scanner *bufio.Scanner
}

func newStdinPrompter() *stdinPrompter {
	return &stdinPrompter{scanner: bufio.NewScanner(os.Stdin)}
}

func (p *stdinPrompter) Choose(task model.Task, candidates []mapper.Candidate) (mapper.Decision, error) {
	fmt.Printf("\n%s: %s\n", task.ID, task.Title)
	if len(candidates) == 0 {
		fmt.Println("  (no candidates found)")
	}
	for i, c := range candidates {
		fmt.Printf("  [%d] %s  %.2f  %s\n", i, c.Issue.Key, c.Score, c.Issue.Summary)
	}
	fmt.Print("pick a number, jql <query>, [s]kip, or [a]bort: ")

	for {
		if !p.scanner.Scan() {
			return mapper.Decision{}, fmt.Errorf("reading prompt input: %w", p.scanner.Err())
		}
		line := strings.TrimSpace(p.scanner.Text())
		switch {
		case line == "s" || line == "skip":
			return mapper.Decision{Action: "skip"}, nil
		case line == "a" || line == "abort":
			return mapper.Decision{Action: "abort"}, nil
		case strings.HasPrefix(line, "jql "):
			return mapper.Decision{Action: "jql", JQL: strings.TrimSpace(strings.TrimPrefix(line, "jql "))}, nil
		default:
			if idx, err := strconv.Atoi(line); err == nil {
				return mapper.Decision{Action: "pick", Index: idx}, nil
			}
			fmt.Print("please enter a candidate number, \"jql <query>\", s, or a: ")
		}
	}
}
