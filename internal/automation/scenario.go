package automation

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/san-kum/pidsim/internal/config"
	"github.com/san-kum/pidsim/internal/dynamo"
	"github.com/san-kum/pidsim/internal/experiment"
	"github.com/san-kum/pidsim/internal/storage"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var ErrEmptyScenario = errors.New("automation: scenario has no runs")

// Scenario is a scripted batch of runs.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Runs        []Step `yaml:"runs"`
}

// Step names one run. Config, when present, is used as is; otherwise the
// run starts from Preset (or the plant's default preset).
type Step struct {
	Name   string         `yaml:"name"`
	Plant  string         `yaml:"plant"`
	Preset string         `yaml:"preset"`
	Config *config.Config `yaml:"config"`
}

// Outcome is one finished step. RunID is empty when nothing was stored.
type Outcome struct {
	Name   string
	RunID  string
	Config *config.Config
	Result *dynamo.Result
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if len(sc.Runs) == 0 {
		return nil, ErrEmptyScenario
	}

	return &sc, nil
}

// Resolve builds the config for a step.
func (s Step) Resolve() (*config.Config, error) {
	if s.Config != nil {
		cfg := s.Config.Clone()
		if cfg.Plant == "" {
			cfg.Plant = s.Plant
		}
		return cfg, cfg.Validate()
	}

	plant := s.Plant
	if plant == "" {
		plant = config.DefaultPlant
	}
	if s.Preset == "" {
		return config.ForPlant(plant), nil
	}
	cfg := config.GetPreset(plant, s.Preset)
	if cfg == nil {
		return nil, fmt.Errorf("unknown preset: %s (available: %v)", s.Preset, config.ListPresets(plant))
	}
	return cfg, nil
}

// RunScenario executes the steps in order, saving each run when store is
// not nil. It stops at the first failing step and returns what finished.
func RunScenario(ctx context.Context, sc *Scenario, r *experiment.Registry, store *storage.Store, logger *zap.Logger) ([]Outcome, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(sc.Runs) == 0 {
		return nil, ErrEmptyScenario
	}

	outcomes := make([]Outcome, 0, len(sc.Runs))
	for i, step := range sc.Runs {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step-%d", i+1)
		}
		logger.Info("scenario step", zap.String("scenario", sc.Name), zap.String("step", name), zap.Int("index", i+1), zap.Int("of", len(sc.Runs)))

		cfg, err := step.Resolve()
		if err != nil {
			return outcomes, fmt.Errorf("step %s: %w", name, err)
		}

		exp := experiment.New(cfg).WithLogger(logger)
		if err := exp.Setup(r); err != nil {
			return outcomes, fmt.Errorf("step %s setup: %w", name, err)
		}

		result, err := exp.Run(ctx)
		if err != nil {
			return outcomes, fmt.Errorf("step %s run: %w", name, err)
		}

		out := Outcome{Name: name, Config: cfg, Result: result}
		if store != nil {
			if out.RunID, err = store.Save(cfg, result); err != nil {
				return outcomes, fmt.Errorf("step %s save: %w", name, err)
			}
		}
		outcomes = append(outcomes, out)
	}

	return outcomes, nil
}
