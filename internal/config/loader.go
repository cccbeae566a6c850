package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tgdrive/dropshare/internal/duration"
)

const (
	envPrefix = "DROPSHARE_"
	appDir    = ".dropshare"
)

var durationType = reflect.TypeOf(time.Duration(0))

// ConfigLoader builds flags from tagged config structs and fills them from
// defaults, a config file, the environment and command line flags, in that
// order of precedence.
type ConfigLoader struct {
	keys     map[string]string
	envKeys  map[string]string
	defaults map[string]any
	target   any
}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{
		keys:     make(map[string]string),
		envKeys:  make(map[string]string),
		defaults: make(map[string]any),
	}
}

// Dir is the per-user directory for config and local state.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return appDir
	}
	return filepath.Join(home, appDir)
}

func (cl *ConfigLoader) RegisterFlags(flags *pflag.FlagSet, prefix string, cfg any, hidden bool) error {
	if flags.Lookup("config") == nil {
		flags.StringP("config", "c", "", "Config file path (default $HOME/.dropshare/config.toml)")
	}
	t := reflect.TypeOf(cfg)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return errors.Errorf("config must be a struct, got %s", t)
	}
	return cl.register(flags, prefix, t, hidden)
}

func (cl *ConfigLoader) register(flags *pflag.FlagSet, prefix string, t reflect.Type, hidden bool) error {
	for i := range t.NumField() {
		field := t.Field(i)
		name := field.Tag.Get("config")
		if name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		if field.Type.Kind() == reflect.Struct {
			if err := cl.register(flags, key, field.Type, hidden); err != nil {
				return err
			}
			continue
		}

		flagName := strings.ReplaceAll(key, ".", "-")
		value, err := parseDefault(field.Type, field.Tag.Get("default"))
		if err != nil {
			return errors.Wrapf(err, "default for %s", key)
		}
		if flags.Lookup(flagName) == nil {
			if err := addFlag(flags, flagName, value, field.Tag.Get("description")); err != nil {
				return err
			}
			if hidden {
				_ = flags.MarkHidden(flagName)
			}
		}
		cl.keys[flagName] = key
		cl.envKeys[envPrefix+strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))] = key
		cl.defaults[key] = value
	}
	return nil
}

func parseDefault(t reflect.Type, def string) (any, error) {
	if t == durationType {
		if def == "" {
			return time.Duration(0), nil
		}
		return duration.Parse(def)
	}
	switch t.Kind() {
	case reflect.String:
		return def, nil
	case reflect.Bool:
		if def == "" {
			return false, nil
		}
		return strconv.ParseBool(def)
	case reflect.Int:
		if def == "" {
			return 0, nil
		}
		return strconv.Atoi(def)
	case reflect.Int64:
		if def == "" {
			return int64(0), nil
		}
		return strconv.ParseInt(def, 10, 64)
	case reflect.Float64:
		if def == "" {
			return float64(0), nil
		}
		return strconv.ParseFloat(def, 64)
	case reflect.Slice:
		if t.Elem().Kind() != reflect.String {
			break
		}
		if def == "" {
			return []string{}, nil
		}
		return strings.Split(def, ","), nil
	}
	return nil, errors.Errorf("unsupported config type %s", t)
}

func addFlag(flags *pflag.FlagSet, name string, value any, usage string) error {
	switch v := value.(type) {
	case time.Duration:
		duration.Var(flags, new(time.Duration), name, v, usage)
	case string:
		flags.String(name, v, usage)
	case bool:
		flags.Bool(name, v, usage)
	case int:
		flags.Int(name, v, usage)
	case int64:
		flags.Int64(name, v, usage)
	case float64:
		flags.Float64(name, v, usage)
	case []string:
		flags.StringSlice(name, v, usage)
	default:
		return errors.Errorf("unsupported flag type %T", value)
	}
	return nil
}

type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("mapProvider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	return maps.Unflatten(m, "."), nil
}

func (cl *ConfigLoader) Load(cmd *cobra.Command, cfg any) error {
	k := koanf.New(".")

	if err := k.Load(mapProvider(cl.defaults), nil); err != nil {
		return errors.Wrap(err, "load defaults")
	}

	path, err := configFile(cmd)
	if err != nil {
		return err
	}
	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return errors.Wrapf(err, "read config %s", path)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return cl.envKeys[s]
	}), nil); err != nil {
		return errors.Wrap(err, "load environment")
	}

	set := make(map[string]any)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		key, ok := cl.keys[f.Name]
		if !ok {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			set[key] = sv.GetSlice()
			return
		}
		set[key] = f.Value.String()
	})
	if err := k.Load(mapProvider(set), nil); err != nil {
		return errors.Wrap(err, "load flags")
	}

	err = k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "config",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				StringToDurationHook(),
				mapstructure.StringToSliceHookFunc(","),
			),
			WeaklyTypedInput: true,
			Result:           cfg,
			TagName:          "config",
		},
	})
	if err != nil {
		return errors.Wrap(err, "decode config")
	}
	cl.target = cfg
	return nil
}

func configFile(cmd *cobra.Command) (string, error) {
	if f := cmd.Flags().Lookup("config"); f != nil && f.Value.String() != "" {
		path := f.Value.String()
		if _, err := os.Stat(path); err != nil {
			return "", errors.Wrapf(err, "config file %s", path)
		}
		return path, nil
	}
	for _, dir := range []string{Dir(), "."} {
		for _, name := range []string{"config.toml", "config.yaml", "config.yml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}
	return "", nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	}
	return nil, errors.Errorf("unsupported config format %q", filepath.Ext(path))
}

func StringToDurationHook() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t != durationType {
			return data, nil
		}
		return duration.Parse(data.(string))
	}
}

// Validate checks the struct passed to the last Load call.
func (cl *ConfigLoader) Validate() error {
	if cl.target == nil {
		return errors.New("config not loaded")
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("config")
	})

	err := v.Struct(cl.target)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate config")
	}

	var missing, invalid []string
	for _, fe := range verrs {
		key := fe.Namespace()
		if i := strings.IndexByte(key, '.'); i >= 0 {
			key = key[i+1:]
		}
		switch fe.Tag() {
		case "required", "required_if":
			missing = append(missing, key)
		default:
			invalid = append(invalid, fmt.Sprintf("%s (%s %s)", key, fe.Tag(), fe.Param()))
		}
	}
	if len(missing) > 0 {
		return errors.Errorf("required configuration values not set: %s", strings.Join(missing, ", "))
	}
	return errors.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
}
