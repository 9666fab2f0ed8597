// Package cmd implements the krakenkit command line.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"krakenkit"
	"krakenkit/pkg/core"
)

// Version information, set by the main package.
var versionInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// globals holds what every subcommand needs: the flag-bound viper instance
// and the output format.
type globals struct {
	v       *viper.Viper
	cfgFile string
	output  string
	verbose bool
}

// Execute runs the root command with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree. Each call gets its own viper instance.
func NewRootCmd() *cobra.Command {
	g := &globals{v: viper.New()}

	root := &cobra.Command{
		Use:           "krakenkit",
		Short:         "Kraken spot REST and streaming client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.initConfig()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&g.cfgFile, "config", "", "config file (default ./krakenkit.yaml or $HOME/.krakenkit.yaml)")
	flags.StringVarP(&g.output, "output", "o", formatTable, "output format: table or json")
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	flags.String("api-url", core.DefaultAPIURL, "REST base URL")
	flags.String("ws-url", core.DefaultWSURL, "websocket URL")
	flags.String("ws-transport", "gws", "websocket implementation: gws or gorilla")
	flags.String("log-level", "warn", "log level: debug, info, warn or error")

	_ = g.v.BindPFlag("api_url", flags.Lookup("api-url"))
	_ = g.v.BindPFlag("ws_url", flags.Lookup("ws-url"))
	_ = g.v.BindPFlag("ws_transport", flags.Lookup("ws-transport"))
	_ = g.v.BindPFlag("log_level", flags.Lookup("log-level"))

	root.AddCommand(
		newTimeCmd(g),
		newTickerCmd(g),
		newBookCmd(g),
		newTradesCmd(g),
		newBalanceCmd(g),
		newLimitsCmd(g),
		newStreamCmd(g),
		newVersionCmd(),
	)
	return root
}

// initConfig reads the config file and KRAKEN_* environment variables.
func (g *globals) initConfig() error {
	v := g.v
	setDefaults(v, core.DefaultConfig())

	if g.cfgFile != "" {
		v.SetConfigFile(g.cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
			v.AddConfigPath(filepath.Join(home, ".config", "krakenkit"))
		}
		v.SetConfigName("krakenkit")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("KRAKEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("api_key")
	_ = v.BindEnv("api_secret")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	if g.verbose {
		v.Set("log_level", "debug")
	}
	return nil
}

// setDefaults registers every scalar key so AutomaticEnv can see it.
func setDefaults(v *viper.Viper, cfg *core.Config) {
	v.SetDefault("user_agent", cfg.UserAgent)
	v.SetDefault("timeout", cfg.Timeout)
	v.SetDefault("max_retries", cfg.MaxRetries)
	v.SetDefault("retry_wait_min", cfg.RetryWaitMin)
	v.SetDefault("retry_wait_max", cfg.RetryWaitMax)
	v.SetDefault("fair_queueing", cfg.FairQueueing)
	v.SetDefault("cache_enabled", cfg.CacheEnabled)
	v.SetDefault("cache_ttl", cfg.CacheTTL)
	v.SetDefault("circuit_breaker_enabled", cfg.CircuitBreakerEnabled)
	v.SetDefault("circuit_breaker_fail_threshold", cfg.CircuitBreakerFailThreshold)
	v.SetDefault("circuit_breaker_success_threshold", cfg.CircuitBreakerSuccessThreshold)
	v.SetDefault("circuit_breaker_timeout", cfg.CircuitBreakerTimeout)
	v.SetDefault("ws_buffer_size", cfg.WSBufferSize)
	v.SetDefault("ws_read_timeout", cfg.WSReadTimeout)
	v.SetDefault("ws_command_rate", cfg.WSCommandRate)
	v.SetDefault("ws_command_period", cfg.WSCommandPeriod)
	v.SetDefault("metrics_enabled", cfg.MetricsEnabled)
}

// loadConfig decodes the merged settings over DefaultConfig. A single key pair
// from KRAKEN_API_KEY / KRAKEN_API_SECRET is appended to any configured keys.
func (g *globals) loadConfig() (*core.Config, error) {
	cfg := core.DefaultConfig()
	if err := g.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if key, secret := g.v.GetString("api_key"), g.v.GetString("api_secret"); key != "" || secret != "" {
		cfg.WithCredentials(core.Credentials{APIKey: key, APISecret: secret})
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (g *globals) newClient() (*krakenkit.Client, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	return krakenkit.New(cfg)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "krakenkit %s (commit %s, built %s)\n",
				versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
			return err
		},
	}
}
