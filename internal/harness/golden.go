package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/domainreg/internal/ir"
)

// TraceSnapshot is the golden form of a scenario run.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []StepTrace
}

// toCanonicalMap converts the snapshot to plain maps for ir.MarshalCanonical.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	steps := make([]any, len(s.Trace))
	for i, st := range s.Trace {
		step := map[string]any{
			"step":    st.Step,
			"op":      st.Op,
			"outcome": st.Outcome,
		}
		if st.ID != nil {
			step["id"] = *st.ID
		}
		if len(st.Events) > 0 {
			evs := make([]any, len(st.Events))
			for j, ev := range st.Events {
				evs[j] = map[string]any{
					"seq":        ev.Seq,
					"event_id":   ev.ID,
					"flow_token": ev.FlowToken,
					"kind":       string(ev.Kind),
					"payload":    ev.Payload.Fields(),
				}
			}
			step["events"] = evs
		}
		steps[i] = step
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         steps,
	}
}

// MarshalTrace renders a result's trace as canonical JSON.
func MarshalTrace(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: scenarioName, Trace: result.Trace}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its trace with
// testdata/golden/<name>.golden. Assertion failures fail t.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result's trace with its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
