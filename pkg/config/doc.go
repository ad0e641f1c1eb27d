// Package config provides the configuration of a course-bidding term.
//
// Configuration Types:
//
//   - TermConfig: population, budget, offered course count, capacity
//     constants, bidding and solver settings
//
// Configuration Sources:
//
//  1. Command-line flags (highest priority)
//  2. Environment variables (prefix TERMSIM_)
//  3. A YAML config file
//  4. Default values (lowest priority)
//
// Example usage:
//
//	fs := pflag.NewFlagSet("termsim", pflag.ContinueOnError)
//	config.RegisterFlags(fs)
//	_ = fs.Parse(os.Args[1:])
//
//	v, err := config.NewViper(fs, "term.yaml")
//	if err != nil {
//	    return err
//	}
//	cfg, err := config.Load(v)
//	if err != nil {
//	    return err
//	}
//
// Configuration Validation:
//
// All values are validated on load:
//   - Numeric ranges (e.g., 0 < bidFraction <= 1)
//   - Cross-field constraints (e.g., minClassSize <= maxClassSize)
//
// Validation reports every invalid field at once rather than the first one.
package config
