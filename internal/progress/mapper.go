// Package progress maps a job's percentage onto per-stage visual states.
//
// Stage states only move forward: pending -> in-progress -> complete. Noisy or
// out-of-order percentages never regress a stage.
package progress

import (
	"errors"
	"fmt"
)

// State is the visual state of one pipeline stage.
type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "in-progress"
	StateComplete   State = "complete"
)

func (s State) rank() int {
	switch s {
	case StateInProgress:
		return 1
	case StateComplete:
		return 2
	default:
		return 0
	}
}

// Stage is one row of the stage table. A stage is in progress while the
// percentage lies in [LoIn, LoOut) and complete once it reaches HiOut.
// Adjacent rows may overlap.
type Stage struct {
	Name  string  `json:"name"`
	Label string  `json:"label"`
	LoIn  float64 `json:"loIn"`
	LoOut float64 `json:"loOut"`
	HiOut float64 `json:"hiOut"`
}

// DefaultStages returns the puzzle pipeline's reference table.
func DefaultStages() []Stage {
	return []Stage{
		{Name: "load", Label: "画像読み込み", LoIn: 5, LoOut: 40, HiOut: 40},
		{Name: "segment", Label: "セグメンテーション", LoIn: 10, LoOut: 50, HiOut: 50},
		{Name: "saliency", Label: "顕著性解析", LoIn: 50, LoOut: 55, HiOut: 55},
		{Name: "modify", Label: "変更の適用", LoIn: 55, LoOut: 92, HiOut: 92},
		{Name: "finalize", Label: "仕上げ", LoIn: 92, LoOut: 100, HiOut: 100},
	}
}

// Change is emitted when one stage's state moves forward.
type Change struct {
	Stage string `json:"stage"`
	Label string `json:"label"`
	From  State  `json:"from"`
	To    State  `json:"to"`
}

// StageStatus is a snapshot row for rendering.
type StageStatus struct {
	Stage string `json:"stage"`
	Label string `json:"label"`
	State State  `json:"state"`
}

// Mapper holds cumulative stage state for one job. It is not safe for
// concurrent use; the poller serializes access.
type Mapper struct {
	stages []Stage
	states []State
}

// NewMapper validates the table and starts every stage as pending.
func NewMapper(stages []Stage) (*Mapper, error) {
	if len(stages) == 0 {
		return nil, errors.New("stage table is empty")
	}

	seen := make(map[string]struct{}, len(stages))
	for i, stage := range stages {
		if stage.Name == "" {
			return nil, fmt.Errorf("stage %d has no name", i)
		}
		if _, dup := seen[stage.Name]; dup {
			return nil, fmt.Errorf("duplicate stage %q", stage.Name)
		}
		seen[stage.Name] = struct{}{}
		if stage.LoIn > stage.LoOut || stage.LoOut > stage.HiOut {
			return nil, fmt.Errorf("stage %q: want loIn <= loOut <= hiOut, got %v/%v/%v", stage.Name, stage.LoIn, stage.LoOut, stage.HiOut)
		}
	}

	m := &Mapper{stages: append([]Stage(nil), stages...)}
	m.Reset()
	return m, nil
}

// MustDefault returns a mapper over DefaultStages.
func MustDefault() *Mapper {
	m, err := NewMapper(DefaultStages())
	if err != nil {
		panic(err)
	}
	return m
}

// Reset returns every stage to pending for a newly adopted job.
func (m *Mapper) Reset() {
	m.states = make([]State, len(m.stages))
	for i := range m.states {
		m.states[i] = StatePending
	}
}

// Update applies one percentage reading and returns the stages that moved.
func (m *Mapper) Update(percent float64) []Change {
	var changes []Change
	for i, stage := range m.stages {
		if next, ok := m.next(i, target(stage, percent)); ok {
			changes = append(changes, next)
		}
	}
	return changes
}

// CompleteAll forces every stage to complete.
func (m *Mapper) CompleteAll() []Change {
	var changes []Change
	for i := range m.stages {
		if next, ok := m.next(i, StateComplete); ok {
			changes = append(changes, next)
		}
	}
	return changes
}

// Snapshot returns the current state of every stage in table order.
func (m *Mapper) Snapshot() []StageStatus {
	out := make([]StageStatus, len(m.stages))
	for i, stage := range m.stages {
		out[i] = StageStatus{Stage: stage.Name, Label: stage.Label, State: m.states[i]}
	}
	return out
}

// next moves stage i to want when that is a forward transition.
func (m *Mapper) next(i int, want State) (Change, bool) {
	current := m.states[i]
	if want.rank() <= current.rank() {
		return Change{}, false
	}
	m.states[i] = want
	return Change{
		Stage: m.stages[i].Name,
		Label: m.stages[i].Label,
		From:  current,
		To:    want,
	}, true
}

// target is the state a single reading asks for, pending meaning "no opinion".
func target(stage Stage, percent float64) State {
	switch {
	case percent >= stage.HiOut:
		return StateComplete
	case percent >= stage.LoIn && percent < stage.LoOut:
		return StateInProgress
	default:
		return StatePending
	}
}
