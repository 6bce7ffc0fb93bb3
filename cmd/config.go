package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
	Long: `Inspect the configuration assembled from defaults, the config file,
FILESPLIT_* environment variables and flags.

Examples:
  filesplit config show                 # effective configuration as YAML
  filesplit config show --format json
  filesplit config validate --config .filesplit.yaml
  filesplit config keys                 # every key with its environment variable`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and list warnings",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List configuration keys and their environment variables",
	Args:  cobra.NoArgs,
	RunE:  runConfigKeys,
}

var configShowFormat string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configValidateCmd, configKeysCmd)

	configShowCmd.Flags().StringVarP(&configShowFormat, "format", "f", "yaml", "output format (yaml, json)")
	AddFlagValidation(configShowCmd.Flags(), "format", ValidateOneOf("yaml", "json"))
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	switch strings.ToLower(configShowFormat) {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(appConfig)
	default:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(appConfig); err != nil {
			return err
		}
		return enc.Close()
	}
}

// runConfigValidate only runs once loading succeeded, so errors have already
// been reported; what is left to show are warnings.
func runConfigValidate(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	source := viper.ConfigFileUsed()
	if source == "" {
		source = "defaults and environment"
	}

	result := appConfig.Validate()
	if result.HasWarnings() {
		fmt.Fprint(out, result.String())
	}
	fmt.Fprintf(out, "Configuration from %s is valid (%d warnings)\n", source, len(result.Warnings))
	return nil
}

func runConfigKeys(cmd *cobra.Command, _ []string) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tENVIRONMENT\tVALUE")
	for _, key := range config.Keys() {
		fmt.Fprintf(tw, "%s\t%s\t%v\n", key, envName(key), viper.Get(key))
	}
	return tw.Flush()
}

func envName(key string) string {
	return config.EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
