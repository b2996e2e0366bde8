// Package conflictui implements the interactive "prompt" conflict
// strategy: a field-by-field resolver driven from a terminal, playing
// the same role for reconcile.Resolver that the teacher's interactive
// pieces (bufio-driven stdin prompts, mattn/go-isatty TTY detection)
// play for its own CLI (spec.md §4.7, §4.9).
package conflictui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/jra3/tasksync/internal/config"
	"github.com/jra3/tasksync/internal/model"
	"github.com/jra3/tasksync/internal/reconcile"
)

const previewWidth = 70

// Resolver drives reconcile.Resolver against a real terminal: it shows
// each conflicting field, asks local/remote/manual, previews the
// result, confirms, and — on a clean 2:1 majority — offers to persist
// that side as the project's default conflict strategy.
type Resolver struct {
	In  io.Reader
	Out io.Writer

	// ConfigPath is where Save writes Cfg when the operator accepts the
	// majority-default offer. Empty uses config's own default location.
	Cfg        *config.Config
	ConfigPath string

	reader *bufio.Scanner
}

// New builds a Resolver reading from stdin and writing to stdout. It
// does no terminal check itself; callers consult IsInteractive before
// wiring a Resolver in.
func New(cfg *config.Config, configPath string) *Resolver {
	return &Resolver{In: os.Stdin, Out: os.Stdout, Cfg: cfg, ConfigPath: configPath}
}

// IsInteractive reports whether stdin is attached to a terminal.
func IsInteractive() bool {
	f, ok := os.Stdin.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func (r *Resolver) scan() *bufio.Scanner {
	if r.reader == nil {
		r.reader = bufio.NewScanner(r.In)
	}
	return r.reader
}

func (r *Resolver) printf(format string, args ...any) {
	fmt.Fprintf(r.Out, format, args...)
}

// Resolve implements reconcile.Resolver. It walks conflicts in their
// fixed order, asking local ("l"), remote ("r"), or manual ("m") per
// field, then previews and confirms before returning.
func (r *Resolver) Resolve(ctx context.Context, mapping model.Mapping, conflicts []model.FieldConflict) (reconcile.Resolution, error) {
	r.printf("Conflict on %s <-> %s (%d field(s) differ):\n", mapping.LocalID, mapping.RemoteKey, len(conflicts))

	decisions := map[model.ConflictField]reconcile.FieldDecision{}
	sides := map[model.ConflictField]string{}

	for _, c := range conflicts {
		r.printf("\n  %s\n    local:  %s\n    remote: %s\n", c.Field, preview(c.LocalValue), preview(c.RemoteValue))
		if c.BaseValue != nil {
			r.printf("    base:   %s\n", preview(c.BaseValue))
		}
		r.printf("  keep [l]ocal, [r]emote, or [m]anual entry, [a]bort? ")

		for {
			if !r.scan().Scan() {
				return reconcile.Resolution{}, fmt.Errorf("reading resolution for %s: %w", c.Field, io.ErrUnexpectedEOF)
			}
			answer := strings.ToLower(strings.TrimSpace(r.scan().Text()))
			switch answer {
			case "l", "local":
				decisions[c.Field] = reconcile.FieldDecision{Value: c.LocalValue, Source: "local"}
				sides[c.Field] = "local"
			case "r", "remote":
				decisions[c.Field] = reconcile.FieldDecision{Value: c.RemoteValue, Source: "remote"}
				sides[c.Field] = "remote"
			case "m", "manual":
				r.printf("    enter value: ")
				if !r.scan().Scan() {
					return reconcile.Resolution{}, fmt.Errorf("reading manual value for %s: %w", c.Field, io.ErrUnexpectedEOF)
				}
				decisions[c.Field] = reconcile.FieldDecision{Value: r.scan().Text(), Source: "manual"}
				sides[c.Field] = "manual"
			case "a", "abort":
				return reconcile.Resolution{Confirmed: false}, nil
			default:
				r.printf("  please answer l, r, m, or a: ")
				continue
			}
			break
		}
	}

	r.printf("\nResolution for %s <-> %s:\n", mapping.LocalID, mapping.RemoteKey)
	for _, c := range conflicts {
		d := decisions[c.Field]
		r.printf("  %s -> %s (%s)\n", c.Field, preview(d.Value), d.Source)
	}
	r.printf("Apply? [y/N] ")
	if !r.scan().Scan() {
		return reconcile.Resolution{}, fmt.Errorf("reading confirmation: %w", io.ErrUnexpectedEOF)
	}
	if answer := strings.ToLower(strings.TrimSpace(r.scan().Text())); answer != "y" && answer != "yes" {
		return reconcile.Resolution{Confirmed: false}, nil
	}

	r.offerMajorityDefault(sides)
	return reconcile.Resolution{Confirmed: true, Decisions: decisions}, nil
}

// offerMajorityDefault computes the resolved sides' majority and, only
// when it forms a clean 2:1 majority over manual, asks whether to
// persist that side as Cfg.ConflictStrategy for future runs (spec.md
// §4.7: "a clean majority may be offered as the new default, never
// applied silently").
func (r *Resolver) offerMajorityDefault(sides map[model.ConflictField]string) {
	if r.Cfg == nil || len(sides) == 0 {
		return
	}
	counts := map[string]int{}
	for _, side := range sides {
		counts[side]++
	}
	total := len(sides)
	var majority string
	for side, n := range counts {
		if (side == "local" || side == "remote") && n*3 >= total*2 {
			majority = side
			break
		}
	}
	if majority == "" {
		return
	}

	strategy := model.StrategyPreferRemote
	if majority == "local" {
		strategy = model.StrategyPreferLocal
	}
	r.printf("\n%d/%d fields resolved to %s. Set this as the default conflict strategy? [y/N] ", counts[majority], total, majority)
	if !r.scan().Scan() {
		return
	}
	answer := strings.ToLower(strings.TrimSpace(r.scan().Text()))
	if answer != "y" && answer != "yes" {
		return
	}

	r.Cfg.ConflictStrategy = string(strategy)
	if err := config.Save(r.Cfg, r.ConfigPath); err != nil {
		r.printf("failed to save default strategy: %v\n", err)
		return
	}
	r.printf("saved %s as the default conflict strategy.\n", strategy)
}

// preview truncates a field value's string form to previewWidth
// characters so wide descriptions don't blow out the terminal.
func preview(v any) string {
	s := fmt.Sprintf("%v", v)
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= previewWidth {
		return s
	}
	return s[:previewWidth-1] + "…"
}
