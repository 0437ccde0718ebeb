package automation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/crnsim/internal/crn"
	"github.com/san-kum/crnsim/internal/dynamo"
	"github.com/san-kum/crnsim/internal/experiment"
)

// Scenario defines a scripted batch of spec runs
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`

	dir string
}

// ScenarioStep runs one spec, optionally with rate and x0 overrides. Zero
// timing fields inherit the batch defaults.
type ScenarioStep struct {
	Spec       string             `yaml:"spec"`
	Integrator string             `yaml:"integrator"`
	Duration   float64            `yaml:"duration"`
	Dt         float64            `yaml:"dt"`
	Tolerance  float64            `yaml:"tolerance"`
	Rates      map[string]float64 `yaml:"rates"`
	X0         map[string]float64 `yaml:"x0"`
	SaveAs     string             `yaml:"save_as"`
}

// StepResult is the outcome of one scenario step.
type StepResult struct {
	Step   ScenarioStep
	Model  *crn.Model
	Config experiment.Config
	Result *dynamo.Result
}

// LoadScenario loads a scenario from a YAML file. Relative spec paths are
// resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s: no steps", path)
	}
	scenario.dir = filepath.Dir(path)

	return &scenario, nil
}

func (s *Scenario) specPath(p string) string {
	if filepath.IsAbs(p) || s.dir == "" {
		return p
	}
	return filepath.Join(s.dir, p)
}

// sortedKeys keeps overrides deterministic for logging and error messages.
func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Build loads the step's spec and applies its overrides.
func (st ScenarioStep) Build(specPath string, opts ...crn.Option) (*crn.Model, error) {
	model, err := crn.FromJSON(specPath, opts...)
	if err != nil {
		return nil, err
	}
	if len(st.Rates) == 0 && len(st.X0) == 0 {
		return model, nil
	}

	rates := model.Rates()
	for _, name := range sortedKeys(st.Rates) {
		if rates, err = rates.With(name, st.Rates[name]); err != nil {
			return nil, err
		}
	}

	x0 := model.InitialState()
	for _, name := range sortedKeys(st.X0) {
		if !model.Species().Contains(name) {
			return nil, fmt.Errorf("%w: x0 override for undeclared species %q", crn.ErrInvalidInitialState, name)
		}
		x0 = x0.With(name, st.X0[name])
	}

	return model.With(rates, x0)
}

func (st ScenarioStep) config(base experiment.Config) experiment.Config {
	cfg := base
	if st.Integrator != "" {
		cfg.Integrator = st.Integrator
	}
	if st.Duration > 0 {
		cfg.Duration = st.Duration
	}
	if st.Dt > 0 {
		cfg.Dt = st.Dt
	}
	if st.Tolerance > 0 {
		cfg.Tolerance = st.Tolerance
	}
	return cfg
}

// RunScenario executes all steps in a scenario, stopping at the first failure.
func RunScenario(ctx context.Context, scenario *Scenario, base experiment.Config, registry *experiment.Registry, logger *zap.Logger) ([]StepResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		path := scenario.specPath(step.Spec)
		logger.Info("running step",
			zap.Int("step", i+1),
			zap.Int("of", len(scenario.Steps)),
			zap.String("spec", path))

		model, err := step.Build(path, crn.WithLogger(logger))
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}

		cfg := step.config(base)
		result, err := experiment.Integrate(ctx, registry, model, cfg)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		results = append(results, StepResult{Step: step, Model: model, Config: cfg, Result: result})
	}

	return results, nil
}

// MonteCarloConfig defines a rate-uncertainty study: every trial scales each
// rate by an independent factor drawn uniformly from [1-Perturbation, 1+Perturbation].
type MonteCarloConfig struct {
	Perturbation float64
	NumTrials    int
	Seed         int64
}

// MonteCarloResult holds one trial
type MonteCarloResult struct {
	TrialID    int
	Rates      crn.RateSet
	FinalState dynamo.State
	Stable     bool
}

// RunMonteCarlo integrates model under randomly perturbed rates. A trial is
// stable when it finishes without errors and no concentration drops below
// -tolerance.
func RunMonteCarlo(ctx context.Context, model *crn.Model, cfg MonteCarloConfig, expCfg experiment.Config, registry *experiment.Registry, logger *zap.Logger) ([]MonteCarloResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Perturbation < 0 || cfg.Perturbation > 1 {
		return nil, fmt.Errorf("perturbation must be in [0, 1], got %g", cfg.Perturbation)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	results := make([]MonteCarloResult, 0, cfg.NumTrials)
	for trial := 0; trial < cfg.NumTrials; trial++ {
		rates := model.Rates()
		for i := range rates.Values {
			rates.Values[i] *= 1 + (rng.Float64()-0.5)*2*cfg.Perturbation
		}

		m, err := model.WithRates(rates)
		if err != nil {
			return nil, fmt.Errorf("trial %d: %w", trial, err)
		}

		result, runErr := experiment.Integrate(ctx, registry, m, expCfg)
		if ctx.Err() != nil {
			return results, ctx.Err()
		}

		stable := runErr == nil
		var final dynamo.State
		if result != nil {
			final = result.Final()
			for _, v := range final {
				if v < -expCfg.Tolerance || math.IsNaN(v) {
					stable = false
					break
				}
			}
		}

		results = append(results, MonteCarloResult{
			TrialID:    trial,
			Rates:      rates,
			FinalState: final,
			Stable:     stable,
		})

		if (trial+1)%10 == 0 {
			logger.Info("monte carlo progress", zap.Int("done", trial+1), zap.Int("trials", cfg.NumTrials))
		}
	}

	return results, nil
}

// MonteCarloStats computes summary statistics from Monte Carlo results
func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}
