package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/smazurov/capturebridge/internal/logging"
)

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "CAPTUREBRIDGE_"

// boundField is an option field with the names it answers to in each
// configuration layer.
type boundField struct {
	value reflect.Value
	flag  string
	toml  string
	env   string
}

func bindFields(opts any) []boundField {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()
	fields := make([]boundField, 0, t.NumField())
	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		f := boundField{
			value: v.Field(i),
			flag:  fieldNameToFlag(sf.Name),
			toml:  sf.Tag.Get("toml"),
		}
		if env := sf.Tag.Get("env"); env != "" {
			f.env = EnvPrefix + env
		}
		fields = append(fields, f)
	}
	return fields
}

// LoadConfig layers the TOML file named by the Config field and then
// environment variables over opts. Flags set on cmd's command line are
// left alone, so the order of precedence is flags, env, file, defaults.
// A missing file is not an error.
func LoadConfig(opts any, cmd *cobra.Command) error {
	fields := bindFields(opts)
	changed := ChangedFlags(cmd)

	var file map[string]any
	for _, f := range fields {
		if f.flag != "config" || f.value.Kind() != reflect.String {
			continue
		}
		var err error
		if file, err = readTOML(f.value.String()); err != nil {
			return err
		}
	}

	for _, f := range fields {
		if changed[f.flag] {
			continue
		}
		if f.toml != "" {
			if value := getNestedValue(file, f.toml); value != nil {
				setFieldValue(f.value, value)
			}
		}
		if f.env != "" {
			if value, ok := os.LookupEnv(f.env); ok && value != "" {
				setFieldValueFromString(f.value, value)
			}
		}
	}
	return nil
}

func readTOML(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var out map[string]any
	if err := toml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	return out, nil
}

// ChangedFlags returns the names of flags set on the command line,
// including persistent flags inherited from parent commands.
func ChangedFlags(cmd *cobra.Command) map[string]bool {
	changed := make(map[string]bool)
	if cmd == nil {
		return changed
	}
	visit := func(f *pflag.Flag) {
		if f.Changed {
			changed[f.Name] = true
		}
	}
	cmd.Flags().VisitAll(visit)
	cmd.PersistentFlags().VisitAll(visit)
	cmd.InheritedFlags().VisitAll(visit)
	return changed
}

// fieldNameToFlag converts a struct field name to a CLI flag name.
// Example: "LoggingLevel" -> "logging-level", "JVMLibPath" -> "jvm-lib-path".
func fieldNameToFlag(fieldName string) string {
	runes := []rune(fieldName)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			endsAcronym := unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || endsAcronym {
				b.WriteByte('-')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// getNestedValue looks up a dotted path such as "bridge.log_class".
func getNestedValue(data map[string]any, path string) any {
	keys := strings.Split(path, ".")
	for _, key := range keys[:len(keys)-1] {
		next, ok := data[key].(map[string]any)
		if !ok {
			return nil
		}
		data = next
	}
	return data[keys[len(keys)-1]]
}

// setFieldValue assigns a decoded TOML value. Values of the wrong type are
// ignored.
func setFieldValue(field reflect.Value, value any) {
	if !field.CanSet() {
		return
	}
	switch v := value.(type) {
	case []any:
		if field.Kind() != reflect.Slice || field.Type().Elem().Kind() != reflect.String {
			return
		}
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		field.Set(reflect.ValueOf(out))
	case int64:
		if field.Kind() == reflect.Int {
			field.SetInt(v)
		}
	default:
		rv := reflect.ValueOf(value)
		if rv.Type().AssignableTo(field.Type()) {
			field.Set(rv)
		}
	}
}

// setFieldValueFromString parses an environment value into field. String
// slices are comma separated.
func setFieldValueFromString(field reflect.Value, value string) {
	if !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		if b, err := strconv.ParseBool(value); err == nil {
			field.SetBool(b)
		}
	case reflect.Int:
		if i, err := strconv.Atoi(value); err == nil {
			field.SetInt(int64(i))
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		var out []string
		for part := range strings.SplitSeq(value, ",") {
			out = append(out, strings.TrimSpace(part))
		}
		field.Set(reflect.ValueOf(out))
	}
}

// LoadLoggingConfig reads the [logging] table of a TOML config file.
// Missing or unreadable files yield the defaults.
func LoadLoggingConfig(configPath string) logging.Config {
	cfg, err := ReadLoggingConfig(configPath)
	if err != nil {
		return defaultLoggingConfig()
	}
	return cfg
}

// ReadLoggingConfig is LoadLoggingConfig with errors. The keys level,
// format and forward are global; a nested modules table or any other
// string key sets a per-module level.
func ReadLoggingConfig(configPath string) (logging.Config, error) {
	cfg := defaultLoggingConfig()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, err
	}

	var rawConfig struct {
		Logging map[string]any `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &rawConfig); err != nil {
		return cfg, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	for key, value := range rawConfig.Logging {
		switch v := value.(type) {
		case string:
			switch key {
			case "level":
				cfg.Level = v
			case "format":
				cfg.Format = v
			case "forward":
				cfg.Forward = v
			default:
				cfg.Modules[key] = v
			}
		case map[string]any:
			if key != "modules" {
				continue
			}
			for module, level := range v {
				if s, ok := level.(string); ok {
					cfg.Modules[module] = s
				}
			}
		}
	}

	return cfg, nil
}

func defaultLoggingConfig() logging.Config {
	return logging.Config{
		Level:   "info",
		Format:  "text",
		Forward: "info",
		Modules: make(map[string]string),
	}
}

// NewLoggingWatcher watches configPath and reloads its [logging] table.
func NewLoggingWatcher(configPath string, logger *slog.Logger, opts ...WatcherOption[logging.Config]) *Watcher[logging.Config] {
	return NewConfigWatcher(configPath, ReadLoggingConfig, logger, opts...)
}
