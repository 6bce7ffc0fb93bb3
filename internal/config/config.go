// Package config provides configuration management for filesplit using Viper
// for loading from files, environment variables, and command-line flags.
//
// Values are resolved flags first, then FILESPLIT_ environment variables
// (FILESPLIT_SPLIT_MAX_BYTES, ...), then the config file, then defaults.
// Only the cmd package and this package touch viper; everything else
// receives plain values such as types.SplitPolicy.
package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/errors"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/types"
)

// EnvPrefix prefixes every environment variable read by the tool.
const EnvPrefix = "FILESPLIT"

// DefaultConfigName is the config file looked up in the working directory.
const DefaultConfigName = ".filesplit"

type Config struct {
	Split  SplitConfig  `mapstructure:"split" yaml:"split" json:"split"`
	Verify VerifyConfig `mapstructure:"verify" yaml:"verify" json:"verify"`
	Watch  WatchConfig  `mapstructure:"watch" yaml:"watch" json:"watch"`
	Log    LogConfig    `mapstructure:"log" yaml:"log" json:"log"`
}

// SplitConfig holds the policy and the split switches. The policy is shared
// with verify.
type SplitConfig struct {
	InputFile string `mapstructure:"input_file" yaml:"input_file" json:"input_file"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	MaxBytes  int64  `mapstructure:"max_bytes" yaml:"max_bytes" json:"max_bytes"`
	MaxLines  int64  `mapstructure:"max_lines" yaml:"max_lines" json:"max_lines"`
	NoHeader  bool   `mapstructure:"no_header" yaml:"no_header" json:"no_header"`
	Encoding  string `mapstructure:"encoding" yaml:"encoding" json:"encoding"`
	Clean     bool   `mapstructure:"clean" yaml:"clean" json:"clean"`
	Verify    bool   `mapstructure:"verify" yaml:"verify" json:"verify"`
}

type VerifyConfig struct {
	OriginalFile    string `mapstructure:"original_file" yaml:"original_file" json:"original_file"`
	PartsDir        string `mapstructure:"parts_dir" yaml:"parts_dir" json:"parts_dir"`
	Pattern         string `mapstructure:"pattern" yaml:"pattern" json:"pattern"`
	CheckHeaders    bool   `mapstructure:"check_headers" yaml:"check_headers" json:"check_headers"`
	Recombine       bool   `mapstructure:"recombine" yaml:"recombine" json:"recombine"`
	WriteRecombined bool   `mapstructure:"write_recombined" yaml:"write_recombined" json:"write_recombined"`
	ReportDir       string `mapstructure:"report_dir" yaml:"report_dir" json:"report_dir"`
	Format          string `mapstructure:"format" yaml:"format" json:"format"`
}

type WatchConfig struct {
	Inbox    string        `mapstructure:"inbox" yaml:"inbox" json:"inbox"`
	Pattern  string        `mapstructure:"pattern" yaml:"pattern" json:"pattern"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce" json:"debounce"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// Defaults applied before any other source.
var defaults = map[string]interface{}{
	"split.encoding":    "utf-8",
	"verify.report_dir": "sanity_checks",
	"verify.format":     "text",
	"watch.pattern":     "*.csv",
	"watch.debounce":    500 * time.Millisecond,
	"log.level":         "info",
	"log.format":        "text",
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// ConfigureEnv makes v read FILESPLIT_* variables, with "." in keys mapped
// to "_". Every key is bound explicitly so Unmarshal sees environment values
// for keys that have no default.
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range Keys() {
		_ = v.BindEnv(key)
	}
}

// Keys returns every configuration key in dotted form, e.g. "split.max_bytes".
func Keys() []string {
	return collectKeys(reflect.TypeOf(Config{}), "")
}

func collectKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("mapstructure")
		if name == "" || name == "-" {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct {
			keys = append(keys, collectKeys(f.Type, name)...)
			continue
		}
		keys = append(keys, name)
	}
	return keys
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals v into a Config and validates it. Warnings do not fail
// the load.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeConfigInvalid, "cannot decode configuration")
	}

	result := cfg.Validate()
	if result.HasErrors() {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("invalid configuration:\n%s", result.String())).
			WithContext("errors", len(result.Errors))
	}
	return &cfg, nil
}

// Policy returns the split policy described by the configuration. It is not
// validated here; the splitter and verifier reject non-positive bounds.
func (c *Config) Policy() types.SplitPolicy {
	return types.SplitPolicy{
		MaxBytes: c.Split.MaxBytes,
		MaxLines: c.Split.MaxLines,
	}
}
