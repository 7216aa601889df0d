// Package config provides the configuration management for the fibsquares
// application. It defines the configuration structure, parses command-line
// flags, applies environment overrides and validates the result.
package config

import (
	"flag"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	apperrors "github.com/agbru/fibsquares/internal/errors"
	"github.com/agbru/fibsquares/internal/fibonacci"
)

const (
	// EnvPrefix is the prefix for all environment variables read by fibsquares.
	EnvPrefix = "FIBSQ_"
)

// Default configuration values.
const (
	// DefaultModulus yields the last decimal digit.
	DefaultModulus = fibonacci.LastDigitModulus
	// DefaultTimeout is the default calculation timeout.
	DefaultTimeout = 30 * time.Second
	// DefaultPort is the default server port.
	DefaultPort = "8080"
	// DefaultAlgo is the reference Pisano scan.
	DefaultAlgo = fibonacci.AlgoPisano
	// DefaultCacheSize is the number of period tables kept in memory.
	DefaultCacheSize = 64
	// DefaultMaxModulus bounds the modulus so that one period scan
	// (at most 6m terms) stays small.
	DefaultMaxModulus uint64 = 100_000
	// DefaultEnvFile is loaded when present.
	DefaultEnvFile = ".env"

	// AlgoAll runs every registered strategy and cross-checks them.
	AlgoAll = "all"
)

// AppConfig aggregates the application's configuration parameters.
type AppConfig struct {
	// N is the raw index given with -n. Empty means the index is read from
	// standard input.
	N string
	// Modulus is the modulus m; 10 yields the last digit.
	Modulus uint64
	// Algo selects a strategy by registry name, or "all".
	Algo string
	// Timeout sets the maximum duration for the calculation.
	Timeout time.Duration
	// JSONOutput, if true, prints results as JSON.
	JSONOutput bool
	// Details, if true, prints the execution header and the comparison table.
	Details bool
	// Verbose enables debug logging.
	Verbose bool
	// NoColor disables coloured output (NO_COLOR is honoured as well).
	NoColor bool
	// CacheSize is the period table cache capacity; 0 disables the cache.
	CacheSize int
	// MaxModulus is the largest accepted modulus.
	MaxModulus uint64
	// EnvFile is the dotenv file loaded before environment overrides.
	EnvFile string
	// ServerMode starts the HTTP API instead of a one-shot calculation.
	ServerMode bool
	// Port is the listen port in server mode.
	Port string
	// TrustProxy makes the rate limiter key clients on X-Forwarded-For.
	TrustProxy bool
}

// TableCacheConfig converts the cache settings for the fibonacci package.
func (c AppConfig) TableCacheConfig() fibonacci.TableCacheConfig {
	return fibonacci.TableCacheConfig{
		MaxEntries: c.CacheSize,
		Enabled:    c.CacheSize > 0,
	}
}

// Validate checks the semantic consistency of the configuration.
//
// Parameters:
//   - availableAlgos: The registered strategy names.
//
// Returns:
//   - error: A ConfigError if the configuration is invalid, nil otherwise.
func (c AppConfig) Validate(availableAlgos []string) error {
	if c.Timeout <= 0 {
		return apperrors.NewConfigError("timeout value must be strictly positive")
	}
	if c.Modulus == 0 {
		return apperrors.NewConfigError("modulus must be a positive integer")
	}
	if c.MaxModulus == 0 {
		return apperrors.NewConfigError("max modulus must be a positive integer")
	}
	if c.Modulus > c.MaxModulus {
		return apperrors.NewConfigError("modulus %d exceeds the maximum of %d", c.Modulus, c.MaxModulus)
	}
	if c.CacheSize < 0 {
		return apperrors.NewConfigError("cache size cannot be negative: %d", c.CacheSize)
	}
	if c.Algo != AlgoAll && !slices.Contains(availableAlgos, c.Algo) {
		return apperrors.NewConfigError("unrecognized algorithm: '%s'. Valid algorithms are: '%s' or [%s]",
			c.Algo, AlgoAll, strings.Join(availableAlgos, ", "))
	}
	return nil
}

// ParseConfig parses the command-line arguments into an AppConfig, loads the
// dotenv file, applies FIBSQ_* environment overrides for flags that were not
// set explicitly, and validates the result.
//
// Parameters:
//   - programName: The program name used in the usage message.
//   - args: The command-line arguments, without the program name.
//   - errorWriter: Where parse errors and usage are printed.
//   - availableAlgos: The registered strategy names.
//
// Returns:
//   - AppConfig: The populated configuration.
//   - error: flag.ErrHelp, a flag parse error, or a ConfigError.
func ParseConfig(programName string, args []string, errorWriter io.Writer, availableAlgos []string) (AppConfig, error) {
	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	fs.SetOutput(errorWriter)
	algoHelp := fmt.Sprintf("Algorithm to use: '%s' or one of [%s].", AlgoAll, strings.Join(availableAlgos, ", "))

	config := AppConfig{}
	fs.StringVar(&config.N, "n", "", "Index n of the last squared term (read from stdin when omitted).")
	fs.Uint64Var(&config.Modulus, "m", DefaultModulus, "Modulus of the result (10 yields the last digit).")
	fs.StringVar(&config.Algo, "algo", DefaultAlgo, algoHelp)
	fs.DurationVar(&config.Timeout, "timeout", DefaultTimeout, "Maximum execution time for the calculation.")
	fs.BoolVar(&config.JSONOutput, "json", false, "Output results in JSON format.")
	fs.BoolVar(&config.Details, "d", false, "Display the execution summary and per-algorithm timings.")
	fs.BoolVar(&config.Details, "details", false, "Alias for -d.")
	fs.BoolVar(&config.Verbose, "v", false, "Enable debug logging on stderr.")
	fs.BoolVar(&config.NoColor, "no-color", false, "Disable colored output (also respects NO_COLOR env var).")
	fs.IntVar(&config.CacheSize, "cache-size", DefaultCacheSize, "Number of Pisano period tables kept in memory (0 disables the cache).")
	fs.Uint64Var(&config.MaxModulus, "max-modulus", DefaultMaxModulus, "Largest accepted modulus.")
	fs.StringVar(&config.EnvFile, "env-file", DefaultEnvFile, "Dotenv file with FIBSQ_* settings.")
	fs.BoolVar(&config.ServerMode, "server", false, "Start in HTTP server mode.")
	fs.StringVar(&config.Port, "port", DefaultPort, "Port to listen on in server mode.")
	fs.BoolVar(&config.TrustProxy, "trust-proxy", false, "Rate limit on X-Forwarded-For (only behind a reverse proxy).")

	setCustomUsage(fs)

	if err := fs.Parse(args); err != nil {
		return AppConfig{}, err
	}

	if err := loadEnvFile(config.EnvFile, isFlagSet(fs, "env-file")); err != nil {
		fmt.Fprintln(errorWriter, "Configuration error:", err)
		return AppConfig{}, err
	}
	applyEnvOverrides(&config, fs)

	config.Algo = strings.ToLower(strings.TrimSpace(config.Algo))
	if err := config.Validate(availableAlgos); err != nil {
		fmt.Fprintln(errorWriter, "Configuration error:", err)
		fs.Usage()
		return AppConfig{}, err
	}
	return config, nil
}

// setCustomUsage prints a short synopsis before the flag list.
func setCustomUsage(fs *flag.FlagSet) {
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage: %s [options]\n\n", fs.Name())
		fmt.Fprintln(out, "Prints the last digit of F(0)² + F(1)² + ... + F(n)², with n read from stdin.")
		fmt.Fprintln(out, "Options:")
		fs.PrintDefaults()
		fmt.Fprintf(out, "\nEvery option can also be set with a %s<NAME> environment variable.\n", EnvPrefix)
	}
}
