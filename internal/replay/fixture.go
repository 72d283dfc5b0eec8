package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hmansour/progression/internal/signal"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: a recorded
// script of signal mutations and choice resolutions, plus the unlock-event
// sequence the run is expected to emit.
type Fixture struct {
	Description    string   `json:"description"`
	GraphPath      string   `json:"graph_path,omitempty"`
	Steps          []Step   `json:"steps"`
	ExpectedEvents []string `json:"expected_events"` // node ids in emission order
}

// StepKind distinguishes signal mutations from choice resolutions.
type StepKind string

const (
	StepMutation StepKind = "mutation"
	StepResolve  StepKind = "resolve"
)

// Step is one recorded action.
type Step struct {
	Kind StepKind `json:"kind"`

	// StepMutation
	Op signal.MutationOp `json:"op,omitempty"`

	// StepResolve
	StoryID  string `json:"story_id,omitempty"`
	OptionID string `json:"option_id,omitempty"`
}

// #endregion fixture-types

// #region fixture-io

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture serializes a fixture to disk with stable indentation.
func WriteFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// #endregion fixture-io
