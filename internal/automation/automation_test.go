package automation

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/pidsim/internal/config"
	"github.com/san-kum/pidsim/internal/experiment"
	"github.com/san-kum/pidsim/internal/storage"
)

const scenarioYAML = `name: tuning sweep
description: oven with and without integral action
runs:
  - name: pid
    plant: thermal
    preset: oven
  - name: p-only
    plant: thermal
    preset: p-only
  - name: custom
    config:
      plant: thermal
      integrator: rk4
      controller: pid
      dt: 0.25
      duration: 10
      initial: 20
      controller_params:
        kp: 3
        setpoint: 40
        output_min: 0
        output_max: 100
`

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	if err != nil {
		t.Fatal(err)
	}
	if sc.Name != "tuning sweep" || len(sc.Runs) != 3 {
		t.Fatalf("unexpected scenario %+v", sc)
	}
	if sc.Runs[2].Config == nil || sc.Runs[2].Config.ControllerParams.Kp != 3 {
		t.Errorf("inline config not decoded: %+v", sc.Runs[2].Config)
	}

	if _, err := LoadScenario(writeScenario(t, "name: empty\n")); !errors.Is(err, ErrEmptyScenario) {
		t.Errorf("expected ErrEmptyScenario, got %v", err)
	}
}

func TestStepResolve(t *testing.T) {
	cfg, err := Step{Plant: "thermal", Preset: "windup"}.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ControllerParams.Setpoint != 90 {
		t.Errorf("expected windup preset, got setpoint %v", cfg.ControllerParams.Setpoint)
	}

	cfg, err = Step{Plant: "spring_mass"}.Resolve()
	if err != nil || cfg.Integrator != "rk4" {
		t.Errorf("expected spring_mass default preset, got %+v, %v", cfg, err)
	}

	if _, err := (Step{Plant: "thermal", Preset: "nope"}).Resolve(); err == nil {
		t.Error("expected unknown preset error")
	}

	bad := config.DefaultConfig()
	bad.Dt = 0
	if _, err := (Step{Config: bad}).Resolve(); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestRunScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	if err != nil {
		t.Fatal(err)
	}

	store := storage.New(t.TempDir())
	outcomes, err := RunScenario(context.Background(), sc, experiment.NewRegistry(), store, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}

	if outcomes[0].Result.StepsTaken != 60 {
		t.Errorf("oven steps: got %d, want 60", outcomes[0].Result.StepsTaken)
	}
	if outcomes[2].Result.StepsTaken != 40 {
		t.Errorf("custom steps: got %d, want 40", outcomes[2].Result.StepsTaken)
	}

	runs, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Errorf("expected 3 stored runs, got %d", len(runs))
	}
	for _, o := range outcomes {
		if o.RunID == "" {
			t.Errorf("%s: no run id", o.Name)
		}
	}
}

func TestRunScenarioStopsAtFailure(t *testing.T) {
	sc := &Scenario{Runs: []Step{
		{Plant: "thermal", Preset: "oven"},
		{Plant: "thermal", Preset: "missing"},
		{Plant: "thermal", Preset: "oven"},
	}}

	outcomes, err := RunScenario(context.Background(), sc, experiment.NewRegistry(), nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(outcomes) != 1 || outcomes[0].Name != "step-1" || outcomes[0].RunID != "" {
		t.Errorf("unexpected outcomes %+v", outcomes)
	}
}

func ovenMonteCarlo(seed uint64) MonteCarloConfig {
	base := config.GetPreset("thermal", "oven")
	base.Duration = 120
	return MonteCarloConfig{
		Base:          base,
		Trials:        8,
		InitialSpread: 5,
		ParamSpread:   0.1,
		Seed:          seed,
	}
}

func TestMonteCarloOven(t *testing.T) {
	trials, err := RunMonteCarlo(context.Background(), ovenMonteCarlo(1), experiment.NewRegistry(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(trials) != 8 {
		t.Fatalf("expected 8 trials, got %d", len(trials))
	}

	for _, tr := range trials {
		if tr.Initial < 15 || tr.Initial > 25 {
			t.Errorf("trial %d: initial %v outside spread", tr.ID, tr.Initial)
		}
		if g := tr.PlantParams["gain"]; g < 0.09 || g > 0.11 {
			t.Errorf("trial %d: gain %v outside spread", tr.ID, g)
		}
		if tr.PlantParams["ambient"] != 0 {
			t.Errorf("trial %d: zero parameter perturbed to %v", tr.ID, tr.PlantParams["ambient"])
		}
	}

	s := Summarize(trials, 50)
	if s.Trials != 8 || s.Stable != 8 || s.Settled != 8 {
		t.Errorf("expected every trial stable and settled: %+v", s)
	}
	if s.WorstFinalError > 0.5 {
		t.Errorf("worst final error %v", s.WorstFinalError)
	}
	if s.MeanSettling <= 0 || s.WorstSettling > 100 {
		t.Errorf("settling mean %v worst %v", s.MeanSettling, s.WorstSettling)
	}
}

func TestMonteCarloDeterministic(t *testing.T) {
	a, err := RunMonteCarlo(context.Background(), ovenMonteCarlo(7), experiment.NewRegistry(), nil)
	if err != nil {
		t.Fatal(err)
	}
	mc := ovenMonteCarlo(7)
	mc.Workers = 1
	b, err := RunMonteCarlo(context.Background(), mc, experiment.NewRegistry(), nil)
	if err != nil {
		t.Fatal(err)
	}

	for i := range a {
		if a[i].Initial != b[i].Initial || a[i].Final != b[i].Final {
			t.Errorf("trial %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestMonteCarloErrors(t *testing.T) {
	mc := ovenMonteCarlo(1)
	mc.Trials = 0
	if _, err := RunMonteCarlo(context.Background(), mc, experiment.NewRegistry(), nil); !errors.Is(err, ErrNoTrials) {
		t.Errorf("expected ErrNoTrials, got %v", err)
	}

	mc = ovenMonteCarlo(1)
	mc.Base.Plant = "tank"
	if _, err := RunMonteCarlo(context.Background(), mc, experiment.NewRegistry(), nil); err == nil {
		t.Error("expected unknown plant error")
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, 50)
	if s.Trials != 0 || s.MeanIAE != 0 || math.IsNaN(s.MeanSettling) {
		t.Errorf("unexpected summary %+v", s)
	}
}
