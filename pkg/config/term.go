/*
Copyright 2025 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Defaults of the reference term.
const (
	DefaultNumStudents          = 250
	DefaultPointsPerStudent     = 50
	DefaultNumCoursesOffered    = 5
	DefaultMinClassSize         = 3
	DefaultMaxClassSize         = 50
	DefaultMaxClassesPerStudent = 5
	DefaultBidFraction          = 0.6
	DefaultSolverTimeLimit      = 30 * time.Second
	DefaultSolverBackend        = SolverBackendFlow

	// EnvPrefix prefixes environment variable overrides, e.g. TERMSIM_NUMSTUDENTS.
	EnvPrefix = "TERMSIM"
)

// Solver backends selectable with TermConfig.SolverBackend.
const (
	// SolverBackendFlow solves the assignment exactly as a minimum cost circulation.
	SolverBackendFlow = "flow"
	// SolverBackendMILP runs branch and bound over LP relaxations.
	SolverBackendMILP = "milp"
)

// TermConfig holds everything needed to run one term.
type TermConfig struct {
	// NumStudents is the population size (>= 1).
	NumStudents int `yaml:"numStudents" mapstructure:"numStudents"`

	// PointsPerStudent is every student's bidding budget (>= 0).
	PointsPerStudent int `yaml:"pointsPerStudent" mapstructure:"pointsPerStudent"`

	// NumCoursesOffered is how many courses are drawn from the catalog (>= 1).
	NumCoursesOffered int `yaml:"numCoursesOffered" mapstructure:"numCoursesOffered"`

	// Capacity constants shared by every course and student
	MinClassSize         int `yaml:"minClassSize" mapstructure:"minClassSize"`
	MaxClassSize         int `yaml:"maxClassSize" mapstructure:"maxClassSize"`
	MaxClassesPerStudent int `yaml:"maxClassesPerStudent" mapstructure:"maxClassesPerStudent"`

	// BidFraction caps each random draw at this share of the unspent budget (0.0-1.0].
	BidFraction float64 `yaml:"bidFraction" mapstructure:"bidFraction"`

	// Seed makes course draws and bids reproducible.
	Seed uint64 `yaml:"seed" mapstructure:"seed"`

	// BidParallelism bounds how many students bid at once; below 2 is sequential.
	BidParallelism int `yaml:"bidParallelism" mapstructure:"bidParallelism"`

	// SolverTimeLimit is the wall-clock budget of the assignment solve (e.g., "30s").
	SolverTimeLimit time.Duration `yaml:"solverTimeLimit" mapstructure:"solverTimeLimit"`

	// SolverBackend names the assignment backend, "flow" or "milp".
	SolverBackend string `yaml:"solverBackend" mapstructure:"solverBackend"`

	// SolverMaxNodes stops branch and bound after this many nodes; 0 is unlimited.
	SolverMaxNodes int `yaml:"solverMaxNodes" mapstructure:"solverMaxNodes"`

	// CatalogFile optionally replaces the built-in catalog with a YAML file.
	CatalogFile string `yaml:"catalogFile,omitempty" mapstructure:"catalogFile"`
}

// Default returns the reference configuration.
func Default() TermConfig {
	return TermConfig{
		NumStudents:          DefaultNumStudents,
		PointsPerStudent:     DefaultPointsPerStudent,
		NumCoursesOffered:    DefaultNumCoursesOffered,
		MinClassSize:         DefaultMinClassSize,
		MaxClassSize:         DefaultMaxClassSize,
		MaxClassesPerStudent: DefaultMaxClassesPerStudent,
		BidFraction:          DefaultBidFraction,
		SolverTimeLimit:      DefaultSolverTimeLimit,
		SolverBackend:        DefaultSolverBackend,
	}
}

// Validate checks every field and reports all problems together.
func (c *TermConfig) Validate() error {
	var errs field.ErrorList
	root := field.NewPath("term")

	if c.NumStudents < 1 {
		errs = append(errs, field.Invalid(root.Child("numStudents"), c.NumStudents, "must be >= 1"))
	}
	if c.PointsPerStudent < 0 {
		errs = append(errs, field.Invalid(root.Child("pointsPerStudent"), c.PointsPerStudent, "must be >= 0"))
	}
	if c.NumCoursesOffered < 1 {
		errs = append(errs, field.Invalid(root.Child("numCoursesOffered"), c.NumCoursesOffered, "must be >= 1"))
	}
	if c.MinClassSize < 1 {
		errs = append(errs, field.Invalid(root.Child("minClassSize"), c.MinClassSize, "must be >= 1"))
	}
	if c.MaxClassSize < 1 {
		errs = append(errs, field.Invalid(root.Child("maxClassSize"), c.MaxClassSize, "must be >= 1"))
	}
	if c.MinClassSize > c.MaxClassSize {
		errs = append(errs, field.Invalid(root.Child("minClassSize"), c.MinClassSize,
			fmt.Sprintf("must be <= maxClassSize (%d)", c.MaxClassSize)))
	}
	if c.MaxClassesPerStudent < 1 {
		errs = append(errs, field.Invalid(root.Child("maxClassesPerStudent"), c.MaxClassesPerStudent, "must be >= 1"))
	}
	if c.BidFraction <= 0 || c.BidFraction > 1 {
		errs = append(errs, field.Invalid(root.Child("bidFraction"), c.BidFraction, "must be in (0, 1]"))
	}
	if c.BidParallelism < 0 {
		errs = append(errs, field.Invalid(root.Child("bidParallelism"), c.BidParallelism, "must be >= 0"))
	}
	if c.SolverTimeLimit < 0 {
		errs = append(errs, field.Invalid(root.Child("solverTimeLimit"), c.SolverTimeLimit.String(), "must be >= 0"))
	}
	switch c.SolverBackend {
	case SolverBackendFlow, SolverBackendMILP:
	default:
		errs = append(errs, field.NotSupported(root.Child("solverBackend"), c.SolverBackend,
			[]string{SolverBackendFlow, SolverBackendMILP}))
	}
	if c.SolverMaxNodes < 0 {
		errs = append(errs, field.Invalid(root.Child("solverMaxNodes"), c.SolverMaxNodes, "must be >= 0"))
	}
	return errs.ToAggregate()
}

// ValidateCatalogSize checks NumCoursesOffered against the catalog the term draws from.
func (c *TermConfig) ValidateCatalogSize(size int) error {
	if c.NumCoursesOffered > size {
		return field.Invalid(field.NewPath("term", "numCoursesOffered"), c.NumCoursesOffered,
			fmt.Sprintf("must be <= catalog size (%d)", size))
	}
	return nil
}

// flag name -> config key
var flagKeys = map[string]string{
	"students":                "numStudents",
	"points":                  "pointsPerStudent",
	"courses":                 "numCoursesOffered",
	"min-class-size":          "minClassSize",
	"max-class-size":          "maxClassSize",
	"max-classes-per-student": "maxClassesPerStudent",
	"bid-fraction":            "bidFraction",
	"seed":                    "seed",
	"bid-parallelism":         "bidParallelism",
	"solver-time-limit":       "solverTimeLimit",
	"solver-backend":          "solverBackend",
	"solver-max-nodes":        "solverMaxNodes",
	"catalog":                 "catalogFile",
}

// RegisterFlags adds one flag per configuration field to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.Int("students", d.NumStudents, "number of students in the term")
	fs.Int("points", d.PointsPerStudent, "bidding points per student")
	fs.Int("courses", d.NumCoursesOffered, "number of courses offered from the catalog")
	fs.Int("min-class-size", d.MinClassSize, "minimum enrollment per course")
	fs.Int("max-class-size", d.MaxClassSize, "maximum enrollment per course")
	fs.Int("max-classes-per-student", d.MaxClassesPerStudent, "maximum courses per student")
	fs.Float64("bid-fraction", d.BidFraction, "share of the remaining budget a single bid may take")
	fs.Uint64("seed", d.Seed, "random seed for course draws and bids")
	fs.Int("bid-parallelism", d.BidParallelism, "number of students bidding concurrently")
	fs.Duration("solver-time-limit", d.SolverTimeLimit, "wall-clock limit of the assignment solve")
	fs.String("solver-backend", d.SolverBackend, "assignment backend: flow or milp")
	fs.Int("solver-max-nodes", d.SolverMaxNodes, "branch and bound node limit (0 for none)")
	fs.String("catalog", d.CatalogFile, "YAML course catalog (code: title); built-in catalog when empty")
}

// NewViper layers defaults, an optional config file, TERMSIM_* environment
// variables and the flags registered by RegisterFlags.
func NewViper(fs *pflag.FlagSet, configFile string) (*viper.Viper, error) {
	v := viper.New()
	d := Default()
	v.SetDefault("numStudents", d.NumStudents)
	v.SetDefault("pointsPerStudent", d.PointsPerStudent)
	v.SetDefault("numCoursesOffered", d.NumCoursesOffered)
	v.SetDefault("minClassSize", d.MinClassSize)
	v.SetDefault("maxClassSize", d.MaxClassSize)
	v.SetDefault("maxClassesPerStudent", d.MaxClassesPerStudent)
	v.SetDefault("bidFraction", d.BidFraction)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("bidParallelism", d.BidParallelism)
	v.SetDefault("solverTimeLimit", d.SolverTimeLimit)
	v.SetDefault("solverBackend", d.SolverBackend)
	v.SetDefault("solverMaxNodes", d.SolverMaxNodes)
	v.SetDefault("catalogFile", d.CatalogFile)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}
	return v, nil
}

// Load decodes and validates a TermConfig from v.
func Load(v *viper.Viper) (TermConfig, error) {
	var cfg TermConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return TermConfig{}, fmt.Errorf("decoding term config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return TermConfig{}, fmt.Errorf("invalid term config: %w", err)
	}
	return cfg, nil
}
