// Package runbook parses and serves the runbook documents the Router
// resolves alerts to: YAML front matter (gopkg.in/yaml.v3) delimited by
// "---" lines, a free-form markdown body the engine never reads, gate
// expressions pre-parsed once at load time.
package runbook

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/fleetward/remediator/pkg/types"
)

// Lookup is the read surface over a loaded Table, satisfied by *Table
// directly and by Holder when RUNBOOK_WATCH enables hot reload.
type Lookup interface {
	Get(id types.RunbookID) (*types.Runbook, bool)
	Count() int
}

const delimiter = "---"

// Table is the loaded-once, read-only-thereafter set of runbooks, keyed by
// RunbookID. Reloading (dev-mode hot reload) swaps the whole table
// atomically; it never mutates a Runbook already handed to a caller.
type Table struct {
	byID map[types.RunbookID]*types.Runbook
}

// Get returns the runbook for id, or ok=false if none is loaded.
func (t *Table) Get(id types.RunbookID) (*types.Runbook, bool) {
	rb, ok := t.byID[id]
	return rb, ok
}

// Count returns the number of loaded runbooks.
func (t *Table) Count() int { return len(t.byID) }

// Holder lets Watch's reload swap the active Table atomically while every
// consumer (the Dedup Controller, the get_runbook diagnostic tool) keeps a
// single stable Lookup reference across reloads.
type Holder struct {
	ptr atomic.Pointer[Table]
}

// NewHolder wraps an already-loaded Table.
func NewHolder(initial *Table) *Holder {
	h := &Holder{}
	h.ptr.Store(initial)
	return h
}

// Store swaps in a newly loaded Table. Called from Watch's onReload.
func (h *Holder) Store(t *Table) { h.ptr.Store(t) }

func (h *Holder) Get(id types.RunbookID) (*types.Runbook, bool) {
	return h.ptr.Load().Get(id)
}

func (h *Holder) Count() int { return h.ptr.Load().Count() }

// IsKnownActionFunc reports whether action_id is a valid step identifier —
// backed by the Tool Registry's fixed action_id -> expected_tool table.
type IsKnownActionFunc func(actionID string) bool

type rawDoc struct {
	RunbookID   types.RunbookID `yaml:"runbook_id"`
	AlertName   string          `yaml:"alertname"`
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	Workflow    []types.Step    `yaml:"workflow"`
	Metadata    yaml.Node       `yaml:"metadata"`
}

// Load reads every *.md file under dir, parses its front matter, and
// returns the assembled Table. An unknown action_id or malformed gate
// expression is a load-time error, per spec.md §4's "Unknown action_id is
// a load-time error" rule.
func Load(dir string, isKnownAction IsKnownActionFunc) (*Table, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read runbook directory %s: %w", dir, err)
	}

	table := &Table{byID: make(map[types.RunbookID]*types.Runbook)}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		rb, err := parseFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load runbook %s: %w", path, err)
		}
		if err := validate(rb, isKnownAction); err != nil {
			return nil, fmt.Errorf("invalid runbook %s: %w", path, err)
		}
		if _, exists := table.byID[rb.ID]; exists {
			return nil, fmt.Errorf("duplicate runbook_id %q (file %s)", rb.ID, path)
		}
		table.byID[rb.ID] = rb
	}

	return table, nil
}

func parseFile(path string) (*types.Runbook, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	frontMatter, err := extractFrontMatter(string(contents))
	if err != nil {
		return nil, err
	}

	var raw rawDoc
	if err := yaml.Unmarshal([]byte(frontMatter), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse front matter: %w", err)
	}

	rb := &types.Runbook{
		ID:          raw.RunbookID,
		AlertName:   raw.AlertName,
		Title:       raw.Title,
		Description: raw.Description,
		Workflow:    raw.Workflow,
	}

	if !raw.Metadata.IsZero() {
		metaYAML, err := yaml.Marshal(&raw.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to re-marshal metadata block: %w", err)
		}
		// sigs.k8s.io/yaml round-trips through encoding/json, exercising the
		// same JSON-tag-compatible decode path client-go's apimachinery
		// types use — distinct from the generic front-matter parse above.
		if err := sigsyaml.Unmarshal(metaYAML, &rb.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata block: %w", err)
		}
	}

	if err := resolveSteps(rb.Workflow); err != nil {
		return nil, err
	}

	return rb, nil
}

// extractFrontMatter returns the YAML block between the first two "---"
// lines. The remainder of the document is markdown, ignored by the engine.
func extractFrontMatter(doc string) (string, error) {
	lines := strings.Split(doc, "\n")
	start := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == delimiter {
			start = i
			break
		}
	}
	if start == -1 {
		return "", fmt.Errorf("no front matter delimiter found")
	}
	for i := start + 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delimiter {
			return strings.Join(lines[start+1:i], "\n"), nil
		}
	}
	return "", fmt.Errorf("unterminated front matter block")
}

func validate(rb *types.Runbook, isKnownAction IsKnownActionFunc) error {
	if rb.ID == "" {
		return fmt.Errorf("runbook_id is required")
	}
	if rb.AlertName == "" {
		return fmt.Errorf("alertname is required")
	}
	if len(rb.Workflow) == 0 {
		return fmt.Errorf("workflow must have at least one step")
	}
	for _, step := range rb.Workflow {
		if step.ActionID == "" {
			return fmt.Errorf("step with empty action_id")
		}
		if isKnownAction != nil && !isKnownAction(step.ActionID) {
			return fmt.Errorf("unknown action_id %q", step.ActionID)
		}
	}
	return nil
}
