package automation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sort"

	"github.com/san-kum/pidsim/internal/analysis"
	"github.com/san-kum/pidsim/internal/config"
	"github.com/san-kum/pidsim/internal/dynamo"
	"github.com/san-kum/pidsim/internal/experiment"
	"github.com/san-kum/pidsim/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var ErrNoTrials = errors.New("automation: trials must be positive")

// MonteCarloConfig perturbs a base run to check that a tuning holds up
// against a different starting point and a plant that is not quite the one
// it was tuned on.
type MonteCarloConfig struct {
	Base   *config.Config
	Trials int
	// InitialSpread is the half-width of the uniform offset added to the
	// initial process value.
	InitialSpread float64
	// ParamSpread is the relative half-width applied to every plant
	// parameter (0.1 means ±10%).
	ParamSpread float64
	// Band is the settling band as a fraction of the initial step.
	Band    float64
	Seed    uint64
	Workers int
}

type Trial struct {
	ID           int
	Initial      float64
	PlantParams  map[string]float64
	Final        float64
	Stable       bool
	Settled      bool
	SettlingTime float64
	IAE          float64
}

type Summary struct {
	Trials          int
	Stable          int
	Settled         int
	MeanIAE         float64
	MeanSettling    float64
	WorstSettling   float64
	WorstFinalError float64
}

// RunMonteCarlo draws every trial up front from one seeded source, so the
// same seed gives the same trials regardless of scheduling, then runs them
// concurrently.
func RunMonteCarlo(ctx context.Context, mc MonteCarloConfig, r *experiment.Registry, logger *zap.Logger) ([]Trial, error) {
	if mc.Trials <= 0 {
		return nil, ErrNoTrials
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	band := mc.Band
	if band <= 0 {
		band = 0.02
	}

	nominal, err := nominalParams(r, mc.Base)
	if err != nil {
		return nil, err
	}

	src := rand.NewPCG(mc.Seed, mc.Seed^0x9e3779b97f4a7c15)
	offset := distuv.Uniform{Min: -mc.InitialSpread, Max: mc.InitialSpread, Src: src}
	scale := distuv.Uniform{Min: 1 - mc.ParamSpread, Max: 1 + mc.ParamSpread, Src: src}

	cfgs := make([]*config.Config, mc.Trials)
	for i := range cfgs {
		cfg := mc.Base.Clone()
		if mc.InitialSpread > 0 {
			cfg.Initial += offset.Rand()
		}
		cfg.PlantParams = make(map[string]float64, len(nominal))
		for _, k := range sortedNames(nominal) {
			v := nominal[k]
			if mc.ParamSpread > 0 {
				v *= scale.Rand()
			}
			cfg.PlantParams[k] = v
		}
		cfgs[i] = cfg
	}

	workers := mc.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trials := make([]Trial, mc.Trials)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, cfg := range cfgs {
		g.Go(func() error {
			exp := experiment.New(cfg)
			if err := exp.Setup(r); err != nil {
				return fmt.Errorf("trial %d: %w", i, err)
			}
			result, err := exp.Run(gctx)
			if err != nil {
				return fmt.Errorf("trial %d: %w", i, err)
			}
			trials[i] = evaluate(i, cfg, result, band)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Debug("monte carlo finished", zap.Int("trials", mc.Trials), zap.Uint64("seed", mc.Seed))
	return trials, nil
}

func evaluate(id int, cfg *config.Config, result *dynamo.Result, band float64) Trial {
	tr := Trial{
		ID:           id,
		Initial:      cfg.Initial,
		PlantParams:  cfg.PlantParams,
		Stable:       len(result.Errors) == 0,
		SettlingTime: math.NaN(),
		IAE:          result.Metrics["iae"],
	}
	if n := len(result.States); n > 0 {
		tr.Final = result.States[n-1][0]
	}

	series := storage.NewSeries(result)
	// the final state closes the record so a run that settles on its last
	// step counts
	series.Times = append(series.Times, result.Times[len(result.Times)-1])
	series.PV = append(series.PV, tr.Final)
	series.Setpoint = append(series.Setpoint, result.Setpoints[len(result.Setpoints)-1])

	width := analysis.Band(series.PV, series.Setpoint, band)
	if st, err := analysis.SettlingTime(series.Times, series.PV, series.Setpoint, width); err == nil && !math.IsNaN(st) {
		tr.Settled = tr.Stable
		tr.SettlingTime = st
	}
	return tr
}

func Summarize(trials []Trial, setpoint float64) Summary {
	s := Summary{Trials: len(trials)}

	iae := make([]float64, 0, len(trials))
	settling := make([]float64, 0, len(trials))
	for _, tr := range trials {
		if tr.Stable {
			s.Stable++
			iae = append(iae, tr.IAE)
			s.WorstFinalError = math.Max(s.WorstFinalError, math.Abs(setpoint-tr.Final))
		}
		if tr.Settled {
			s.Settled++
			settling = append(settling, tr.SettlingTime)
			s.WorstSettling = math.Max(s.WorstSettling, tr.SettlingTime)
		}
	}

	if len(iae) > 0 {
		s.MeanIAE = stat.Mean(iae, nil)
	}
	if len(settling) > 0 {
		s.MeanSettling = stat.Mean(settling, nil)
	}
	return s
}

// nominalParams returns the plant's parameters after applying the base
// config's overrides.
func nominalParams(r *experiment.Registry, base *config.Config) (map[string]float64, error) {
	plant, err := r.GetPlant(base.Plant, base.PlantParams)
	if err != nil {
		return nil, err
	}
	c, ok := plant.(dynamo.Configurable)
	if !ok {
		return map[string]float64{}, nil
	}
	return c.GetParams(), nil
}

func sortedNames(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
