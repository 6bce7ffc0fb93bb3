// Package cmd provides the command-line interface for filesplit with
// configuration management supporting multiple configuration sources.
//
// Configuration System:
//
//	Values are resolved with clear precedence:
//	1. Command-line flags (--max-bytes, --output-dir, etc.) - highest priority
//	2. Individual environment variables (FILESPLIT_SPLIT_MAX_BYTES, etc.)
//	3. Configuration file: --config, FILESPLIT_CONFIG_FILE, or .filesplit.yml
//	4. Built-in defaults - lowest priority
//
// Environment Variables:
//
//	FILESPLIT_CONFIG_FILE: Path to custom configuration file
//	FILESPLIT_SPLIT_MAX_BYTES: Maximum bytes per part
//	FILESPLIT_SPLIT_MAX_LINES: Maximum lines per part
//	FILESPLIT_LOG_LEVEL: debug, info, warn or error
//	And every other key following the FILESPLIT_<SECTION>_<OPTION> pattern
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/config"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/logging"
)

var (
	cfgFile string
	// configErr holds a failure from initConfig, reported once a command runs.
	configErr error

	// Set by the root PersistentPreRunE for the running command.
	appConfig *config.Config
	appLogger logging.Logger = logging.Nop()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "filesplit",
	Short: "Split large delimited files into bounded parts and verify them",
	Long: `filesplit partitions a large delimited text file (CSV and friends) into
parts that never exceed a maximum byte size or line count, repeating the
header line at the top of every part, and independently verifies a split.

Quick Start:
  filesplit split --input-file data.csv --output-dir out --max-bytes 10485760 --max-lines 100000
  filesplit verify --original-file data.csv --parts-dir out --max-bytes 10485760 --max-lines 100000 --check-headers --recombine
  filesplit watch --inbox incoming --output-dir out --max-bytes 10485760 --max-lines 100000`,
	SilenceUsage:      true,
	PersistentPreRunE: setupCommand,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .filesplit.yml, can also use FILESPLIT_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")

	bindKey(rootCmd.PersistentFlags(), "log-level", "log.level")
	bindKey(rootCmd.PersistentFlags(), "log-format", "log.format")
	AddFlagValidation(rootCmd.PersistentFlags(), "log-level", ValidateLogLevel)
	AddFlagValidation(rootCmd.PersistentFlags(), "log-format", ValidateOneOf("text", "json"))
}

// initConfig selects and reads the configuration file.
//
// Configuration file priority (highest to lowest):
//  1. --config flag
//  2. FILESPLIT_CONFIG_FILE environment variable
//  3. .filesplit.yml in the current directory, if present
func initConfig() {
	configErr = nil

	explicit := true
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(config.EnvPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		explicit = false
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(config.DefaultConfigName)
	}

	config.ConfigureEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			configErr = fmt.Errorf("reading config file: %w", err)
		}
	}
}

// setupCommand binds the running command's flags to their configuration
// keys, loads the configuration and builds the logger.
func setupCommand(cmd *cobra.Command, _ []string) error {
	if configErr != nil {
		return configErr
	}
	if err := bindFlags(cmd.Flags(), viper.GetViper()); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug(cmd.Context(), "Using config file", "path", used)
	}
	for _, w := range cfg.Validate().Warnings {
		logger.Debug(cmd.Context(), "Configuration warning", "field", w.Field, "message", w.Message)
	}

	appConfig = cfg
	appLogger = logger
	return nil
}
