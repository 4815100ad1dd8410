package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/swiftpath/backend/local"
	"github.com/sagarc03/swiftpath/backend/remote"
	"github.com/sagarc03/swiftpath/backend/s3"
	"github.com/sagarc03/swiftpath/backend/swift"
	gateway "github.com/sagarc03/swiftpath/http"
	"github.com/sagarc03/swiftpath/keybackend"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SWIFTPATH"

// Backend kinds accepted in backend.type.
const (
	BackendSwift  = "swift"
	BackendS3     = "s3"
	BackendLocal  = "local"
	BackendMemory = "memory"
	BackendRemote = "remote"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for swiftpath. Only the section
// named by Backend.Type is validated.
type Config struct {
	Backend BackendConfig      `mapstructure:"backend"`
	Swift   swift.Config       `mapstructure:"swift" validate:"-"`
	S3      s3.Config          `mapstructure:"s3" validate:"-"`
	Local   local.Config       `mapstructure:"local" validate:"-"`
	Remote  remote.Config      `mapstructure:"remote" validate:"-"`
	Server  ServerConfig       `mapstructure:"server"`
	Auth    AuthConfig         `mapstructure:"auth"`
	CORS    gateway.CORSConfig `mapstructure:"cors"`
	Log     LogConfig          `mapstructure:"log"`
	// Profile names the entry of ProfilesFile layered under this config.
	Profile      string `mapstructure:"profile"`
	ProfilesFile string `mapstructure:"profiles_file"`
}

type BackendConfig struct {
	Type string `mapstructure:"type" validate:"required,oneof=swift s3 local memory remote"`
}

// ServerConfig holds HTTP gateway configuration.
type ServerConfig struct {
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`
}

// AuthConfig holds gateway authentication configuration.
type AuthConfig struct {
	Read  string                `mapstructure:"read" validate:"required,oneof=public private"`
	Write string                `mapstructure:"write" validate:"required,oneof=public private"`
	AWS   gateway.AWSConfig     `mapstructure:"aws"`
	Keys  keybackend.KeysConfig `mapstructure:"keys"`
}

// LogConfig holds logging configuration. File, when set, receives the log
// through a rotating writer instead of stderr.
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"required,oneof=text json"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"min=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"min=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"min=0"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"backend":   "backend.type",
	"db-type":   "local.database.type",
	"db-dsn":    "local.database.dsn",
	"root":      "local.root",
	"endpoint":  "remote.endpoint",
	"port":      "server.port",
	"log-level": "log.level",
}

// openstackEnv lists the OpenStack variables read for the swift section,
// in order of preference after SWIFTPATH_SWIFT_*.
var openstackEnv = map[string][]string{
	"swift.username":            {"OS_USERNAME"},
	"swift.user_id":             {"OS_USER_ID"},
	"swift.password":            {"OS_PASSWORD"},
	"swift.project_name":        {"OS_PROJECT_NAME", "OS_TENANT_NAME"},
	"swift.project_id":          {"OS_PROJECT_ID", "OS_TENANT_ID"},
	"swift.auth_url":            {"OS_AUTH_URL", "OS_AUTHENTICATION_URL"},
	"swift.auth_version":        {"OS_IDENTITY_API_VERSION"},
	"swift.storage_url":         {"OS_STORAGE_URL"},
	"swift.region_name":         {"OS_REGION_NAME"},
	"swift.user_domain_name":    {"OS_USER_DOMAIN_NAME"},
	"swift.project_domain_name": {"OS_PROJECT_DOMAIN_NAME"},
	"swift.auth_token":          {"OS_AUTH_TOKEN"},
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindStructEnv(v, "", reflect.TypeFor[Config]())

	for key, names := range openstackEnv {
		own := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(append([]string{key, own}, names...)...)
	}
}

// bindStructEnv binds every mapstructure key of t. AutomaticEnv alone only
// reaches keys viper already knows, so variables for keys without a default
// would never make it into Unmarshal.
func bindStructEnv(v *viper.Viper, prefix string, t reflect.Type) {
	for i := range t.NumField() {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if !f.IsExported() || name == "" || name == "-" {
			continue
		}

		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct {
			bindStructEnv(v, key, f.Type)
			continue
		}
		_ = v.BindEnv(key)
	}
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.type", BackendSwift)

	v.SetDefault("swift.user_domain_name", "default")
	v.SetDefault("swift.retries", 3)

	v.SetDefault("s3.use_ssl", true)

	v.SetDefault("local.root", "./data")
	v.SetDefault("local.database.type", "sqlite")
	v.SetDefault("local.database.dsn", "swiftpath.db")

	v.SetDefault("server.port", 5708)

	v.SetDefault("auth.read", "public")
	v.SetDefault("auth.write", "public")
	v.SetDefault("auth.aws.region", "us-east-1")
	v.SetDefault("auth.aws.service", "s3")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("profiles_file", DefaultProfilesPath())
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files >
// profile > defaults.
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("swiftpath")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	bindEnv(v)

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Layer the selected profile under everything set explicitly
	if err := applyProfile(v); err != nil {
		return nil, err
	}

	// 6. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 7. Validate using go-playground/validator
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the common sections and the section of the selected
// backend.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	var section any
	switch c.Backend.Type {
	case BackendSwift:
		section = &c.Swift
	case BackendS3:
		section = &c.S3
	case BackendLocal:
		section = &c.Local
	case BackendRemote:
		section = &c.Remote
	default:
		return nil
	}
	if err := validate.Struct(section); err != nil {
		return fmt.Errorf("validate %s config: %w", c.Backend.Type, err)
	}
	return nil
}

// applyProfile sets the values of the named profile, or of the default
// profile when none is named, as viper defaults.
func applyProfile(v *viper.Viper) error {
	path := v.GetString("profiles_file")
	name := v.GetString("profile")
	if path == "" {
		return nil
	}

	file, err := LoadProfiles(path)
	if err != nil {
		if name == "" {
			// No profile requested and no usable file.
			return nil
		}
		return fmt.Errorf("load profile %s: %w", name, err)
	}
	if name == "" && !file.HasDefault() {
		return nil
	}

	p, err := file.GetProfile(name)
	if err != nil {
		if name == "" {
			return nil
		}
		return fmt.Errorf("load profile: %w", err)
	}

	for k, val := range p.Settings() {
		v.SetDefault(k, val)
	}
	return nil
}
