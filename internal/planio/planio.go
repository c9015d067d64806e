// Package planio implements the plan manager that reconstructed plans are
// handed to: Manager's Text and JSON implementations mirror
// save_plan/dump_plan against a task's operator names rather than raw ids.
package planio

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/speckdavid/symk-sub001/internal/registry"
	"github.com/speckdavid/symk-sub001/internal/task"
)

// Manager is the Plan Manager interface: save_plan writes (and optionally
// echoes) a plan to disk, numbering plan files when generatesMultiple is
// set; dump_plan only echoes.
type Manager interface {
	SavePlan(plan registry.Plan, t task.Task, dumpToStdout, generatesMultiple bool) error
	DumpPlan(plan registry.Plan, t task.Task) error
}

func operatorName(t task.Task, id int) string {
	for _, op := range t.Operators() {
		if op.ID == id {
			return op.Name
		}
	}
	return fmt.Sprintf("op-%d", id)
}

// Text is a Manager writing one `(operator-name)` per line plus a trailing
// cost comment, mirroring the original planner's sas_plan[.k] files.
type Text struct {
	Filename string
	Out      io.Writer
	Log      zerolog.Logger

	numPreviouslyGenerated int
}

func NewText(filename string, out io.Writer, log zerolog.Logger) *Text {
	return &Text{Filename: filename, Out: out, Log: log}
}

func (m *Text) SavePlan(plan registry.Plan, t task.Task, dumpToStdout, generatesMultiple bool) error {
	name := m.Filename
	if generatesMultiple {
		m.numPreviouslyGenerated++
		name = fmt.Sprintf("%s.%d", m.Filename, m.numPreviouslyGenerated)
	}
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("planio: creating plan file %s: %w", name, err)
	}
	defer f.Close()
	if err := writeTextPlan(f, plan, t); err != nil {
		return err
	}
	m.Log.Info().Str("file", name).Int("cost", plan.Cost).Msg("plan saved")
	if dumpToStdout {
		return m.DumpPlan(plan, t)
	}
	return nil
}

func (m *Text) DumpPlan(plan registry.Plan, t task.Task) error {
	return writeTextPlan(m.Out, plan, t)
}

func writeTextPlan(w io.Writer, plan registry.Plan, t task.Task) error {
	for _, id := range plan.OperatorIDs {
		if _, err := fmt.Fprintf(w, "(%s)\n", operatorName(t, id)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "; cost = %d (unit cost)\n", plan.Cost)
	return err
}

// planRecord is one entry of a JSON plan file.
type planRecord struct {
	Operators []string `json:"operators"`
	Cost      int      `json:"cost"`
}

// JSON is a Manager writing structured, multiple-plan-capable plan files:
// every SavePlan call (with generatesMultiple set) appends to the same
// array in Filename instead of numbering separate files, since the JSON
// format can hold more than one plan natively.
type JSON struct {
	Filename string
	Out      io.Writer
	Log      zerolog.Logger

	plans []planRecord
}

func NewJSON(filename string, out io.Writer, log zerolog.Logger) *JSON {
	return &JSON{Filename: filename, Out: out, Log: log}
}

func toRecord(plan registry.Plan, t task.Task) planRecord {
	names := make([]string, len(plan.OperatorIDs))
	for i, id := range plan.OperatorIDs {
		names[i] = operatorName(t, id)
	}
	return planRecord{Operators: names, Cost: plan.Cost}
}

func (m *JSON) SavePlan(plan registry.Plan, t task.Task, dumpToStdout, generatesMultiple bool) error {
	rec := toRecord(plan, t)
	if generatesMultiple {
		m.plans = append(m.plans, rec)
	} else {
		m.plans = []planRecord{rec}
	}
	data, err := json.MarshalIndent(m.plans, "", "  ")
	if err != nil {
		return fmt.Errorf("planio: marshaling plans: %w", err)
	}
	if err := os.WriteFile(m.Filename, data, 0o644); err != nil {
		return fmt.Errorf("planio: writing plan file %s: %w", m.Filename, err)
	}
	m.Log.Info().Str("file", m.Filename).Int("count", len(m.plans)).Msg("plan saved")
	if dumpToStdout {
		return m.DumpPlan(plan, t)
	}
	return nil
}

func (m *JSON) DumpPlan(plan registry.Plan, t task.Task) error {
	data, err := json.MarshalIndent(toRecord(plan, t), "", "  ")
	if err != nil {
		return fmt.Errorf("planio: marshaling plan: %w", err)
	}
	_, err = m.Out.Write(append(data, '\n'))
	return err
}
