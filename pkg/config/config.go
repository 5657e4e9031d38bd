// Package config provides configuration loading and management for spacenet.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"spacenet/pkg/decoding"
	"spacenet/pkg/solver"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Estimator hyperparameters, converted to decoding.Config by Decoding
	Estimator struct {
		// Penalty is "smooth-lasso" (alias "graph-net") or "tv-l1"
		Penalty string `yaml:"penalty"`

		// Loss is "mse" or "logistic"; empty picks the loss matching Classification
		Loss string `yaml:"loss"`

		Classification bool `yaml:"classification"`

		// Alpha fixes the penalty strength; 0 selects it by cross-validation
		Alpha   float64   `yaml:"alpha"`
		Alphas  []float64 `yaml:"alphas,omitempty"`
		NAlphas int       `yaml:"nAlphas"`
		Eps     float64   `yaml:"eps"`

		L1Ratio             float64 `yaml:"l1Ratio"`
		ScreeningPercentile float64 `yaml:"screeningPercentile"`

		MaxIter int     `yaml:"maxIter"`
		Tol     float64 `yaml:"tol"`
		CV      int     `yaml:"cv"`

		Debias      bool `yaml:"debias"`
		Standardize bool `yaml:"standardize"`

		// NumCores bounds the number of path tasks solved concurrently
		NumCores int `yaml:"numCores"`

		// CacheResults memoises path tasks across fits of the same process
		CacheResults bool `yaml:"cacheResults"`
	} `yaml:"estimator"`

	// Simulation parameters of the synthetic dataset used by the CLI
	Simulation struct {
		// Shape is the extent of the voxel grid
		Shape []int `yaml:"shape"`

		TrainSamples int `yaml:"trainSamples"`
		TestSamples  int `yaml:"testSamples"`

		// Smoothing is the Gaussian width, in voxels, applied to the noise images
		Smoothing float64 `yaml:"smoothing"`

		// SNR is the ratio of the signal to the noise standard deviation
		SNR float64 `yaml:"snr"`

		Seed uint64 `yaml:"seed"`
	} `yaml:"simulation"`

	// Output parameters
	Output struct {
		// Dir receives the coefficient-map slices
		Dir string `yaml:"dir"`

		SaveSlices bool `yaml:"saveSlices"`

		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	def := decoding.DefaultConfig(false)
	cfg.Estimator.Penalty = def.Penalty.String()
	cfg.Estimator.NAlphas = def.NAlphas
	cfg.Estimator.Eps = def.Eps
	cfg.Estimator.L1Ratio = def.L1Ratio
	cfg.Estimator.ScreeningPercentile = def.ScreeningPercentile
	cfg.Estimator.MaxIter = def.MaxIter
	cfg.Estimator.Tol = def.Tol
	cfg.Estimator.CV = def.CV
	cfg.Estimator.Standardize = def.Standardize
	cfg.Estimator.NumCores = runtime.NumCPU() // Use all available cores by default

	cfg.Simulation.Shape = []int{12, 12, 12}
	cfg.Simulation.TrainSamples = 100
	cfg.Simulation.TestSamples = 100
	cfg.Simulation.Smoothing = 1
	cfg.Simulation.SNR = 1
	cfg.Simulation.Seed = 42

	cfg.Output.Dir = "coef_slices"
	cfg.Output.SaveSlices = true
	cfg.Output.Verbose = false

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config file")
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "creating config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "writing config file")
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Decoding converts the estimator section into a decoding.Config. Penalty
// and loss names are parsed here, the remaining checks are left to
// decoding.New.
func (c *Config) Decoding() (decoding.Config, error) {
	e := c.Estimator
	out := decoding.DefaultConfig(e.Classification)

	penalty, err := solver.ParsePenalty(e.Penalty)
	if err != nil {
		return decoding.Config{}, errors.Wrap(err, "estimator.penalty")
	}
	out.Penalty = penalty
	if e.Loss != "" {
		loss, err := solver.ParseLoss(e.Loss)
		if err != nil {
			return decoding.Config{}, errors.Wrap(err, "estimator.loss")
		}
		out.Loss = loss
	}

	out.Alpha = e.Alpha
	out.Alphas = append([]float64(nil), e.Alphas...)
	out.NAlphas = e.NAlphas
	out.Eps = e.Eps
	out.L1Ratio = e.L1Ratio
	out.ScreeningPercentile = e.ScreeningPercentile
	out.MaxIter = e.MaxIter
	out.Tol = e.Tol
	out.CV = e.CV
	out.Debias = e.Debias
	out.Standardize = e.Standardize
	out.NJobs = e.NumCores
	if e.CacheResults {
		out.Cache = decoding.NewPathCache()
	}
	return out, nil
}
