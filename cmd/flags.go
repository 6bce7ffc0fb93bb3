package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/logging"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/report"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/textenc"
)

// viperKeyAnnotation marks a flag with the configuration key it sets.
const viperKeyAnnotation = "filesplit_viper_key"

// bindKey records that flag name sets the configuration key.
func bindKey(flags *pflag.FlagSet, name, key string) {
	_ = flags.SetAnnotation(name, viperKeyAnnotation, []string{key})
}

// bindFlags binds every annotated flag to its key on v. Binding happens per
// run because several commands share a key (split and verify both set
// split.max_bytes).
func bindFlags(flags *pflag.FlagSet, v *viper.Viper) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[viperKeyAnnotation]
		if len(keys) == 0 || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(keys[0], f)
	})
	return bindErr
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(flags *pflag.FlagSet, flagName string, validator func(string) error) {
	flag := flags.Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidatePositive accepts integers greater than zero.
func ValidatePositive(s string) error {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid number: %s", s)
	}
	if n <= 0 {
		return fmt.Errorf("must be a positive integer, got %d", n)
	}
	return nil
}

// ValidateOneOf accepts one of the given values, case-insensitively.
func ValidateOneOf(allowed ...string) func(string) error {
	return func(s string) error {
		for _, a := range allowed {
			if strings.EqualFold(s, a) {
				return nil
			}
		}
		return fmt.Errorf("must be one of %s, got %q", strings.Join(allowed, ", "), s)
	}
}

// ValidateFormat accepts report formats.
func ValidateFormat(s string) error {
	_, err := report.ParseFormat(s)
	return err
}

// ValidateEncoding accepts encodings known to the text codec.
func ValidateEncoding(s string) error {
	_, err := textenc.Resolve(s)
	return err
}

// ValidateLogLevel accepts log levels.
func ValidateLogLevel(s string) error {
	_, err := logging.ParseLevel(s)
	return err
}

// addPolicyFlags adds --max-bytes and --max-lines bound to the shared policy.
func addPolicyFlags(flags *pflag.FlagSet) {
	flags.Int64("max-bytes", 0, "maximum bytes per part, header included")
	flags.Int64("max-lines", 0, "maximum lines per part, header included")
	bindKey(flags, "max-bytes", "split.max_bytes")
	bindKey(flags, "max-lines", "split.max_lines")
	AddFlagValidation(flags, "max-bytes", ValidatePositive)
	AddFlagValidation(flags, "max-lines", ValidatePositive)
}

// addEncodingFlags adds --no-header and --encoding.
func addEncodingFlags(flags *pflag.FlagSet) {
	flags.Bool("no-header", false, "treat the first line as data; no header is repeated")
	flags.String("encoding", "", "text encoding of the input and parts (default utf-8)")
	bindKey(flags, "no-header", "split.no_header")
	bindKey(flags, "encoding", "split.encoding")
	AddFlagValidation(flags, "encoding", ValidateEncoding)
}
