package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload" // loads .env into the process environment
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/kathaghar/api/internal/database"
	"github.com/kathaghar/api/internal/logging"
	"github.com/kathaghar/api/internal/service"
	"github.com/kathaghar/api/pkg/jwt"
)

// EnvPrefix prefixes every environment variable the service reads.
const EnvPrefix = "KATHAGHAR_"

// DefaultSessionLifetime is how long a session token stays valid.
const DefaultSessionLifetime = 30 * 24 * time.Hour

// Config holds all application configuration
type Config struct {
	Env      string         `koanf:"env" validate:"oneof=development production test"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	JWT      JWTConfig      `koanf:"jwt"`
	Auth     AuthConfig     `koanf:"auth"`
	Log      LogConfig      `koanf:"log"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr         string        `koanf:"addr" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gt=0"`
	SecureCookie bool          `koanf:"secure_cookie"`
}

// DatabaseConfig holds SurrealDB connection settings
type DatabaseConfig struct {
	URL         string        `koanf:"url" validate:"required,url"`
	Namespace   string        `koanf:"namespace" validate:"required"`
	Name        string        `koanf:"name" validate:"required"`
	User        string        `koanf:"user"`
	Password    string        `koanf:"password"`
	DialTimeout time.Duration `koanf:"dial_timeout" validate:"gt=0"`
	// DialRetries is how many extra dial attempts each connect makes.
	DialRetries uint64 `koanf:"dial_retries"`
}

// JWTConfig holds session token signing settings
type JWTConfig struct {
	PrivateKeyPath string `koanf:"private_key_path"`
	PublicKeyPath  string `koanf:"public_key_path"`
	Issuer         string `koanf:"issuer" validate:"required"`
	ExpirationMins int    `koanf:"expiration_mins" validate:"gt=0"`
}

// AuthConfig holds the sign-in flow settings
type AuthConfig struct {
	SignInPage    string `koanf:"signin_page" validate:"required"`
	SignUpPage    string `koanf:"signup_page" validate:"required"`
	ThrottleRate  int    `koanf:"throttle_rate" validate:"gt=0"`
	ThrottleBurst int    `koanf:"throttle_burst" validate:"gt=0"`
	BcryptCost    int    `koanf:"bcrypt_cost" validate:"gte=4,lte=31"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Format string `koanf:"format" validate:"oneof=json text"`
	Level  string `koanf:"level" validate:"oneof=debug info warn warning error"`
}

// Options select the sources Load reads besides the environment.
type Options struct {
	// File is an optional YAML file, read before the environment.
	File string
	// Flags are command-line overrides; only flags the user set apply.
	// A flag named "database-url" maps to database.url.
	Flags *pflag.FlagSet
}

// Default returns the configuration used when nothing overrides it.
// Database.URL has no default.
func Default() *Config {
	return &Config{
		Env: "development",
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Namespace:   "kathaghar",
			Name:        "main",
			DialTimeout: 10 * time.Second,
			DialRetries: 3,
		},
		JWT: JWTConfig{
			PrivateKeyPath: "./keys/private.pem",
			PublicKeyPath:  "./keys/public.pem",
			Issuer:         "kathaghar",
			ExpirationMins: int(DefaultSessionLifetime / time.Minute),
		},
		Auth: AuthConfig{
			SignInPage:    "/login",
			SignUpPage:    "/register",
			ThrottleRate:  5,
			ThrottleBurst: 10,
			BcryptCost:    service.DefaultBcryptCost,
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
	}
}

// Load builds the configuration from defaults, then the optional file,
// then KATHAGHAR_* environment variables, then set flags. It fails when a
// required value such as KATHAGHAR_DATABASE_URL is missing.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading %s: %w", opts.File, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, flagKey)
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps KATHAGHAR_DATABASE_URL to database.url. Only the first
// underscore separates the section.
func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
}

func flagKey(f *pflag.Flag) (string, interface{}) {
	if !f.Changed {
		return "", nil
	}
	return strings.Replace(f.Name, "-", ".", 1), f.Value.String()
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("koanf")
	})
	return v
}

// Validate checks field constraints and cross-field rules. It reports every
// failure, each named by its environment variable.
func (c *Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validating config: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Errorf("%s: failed %q", envName(fe.Namespace()), fe.Tag()))
		}
	}

	if c.IsProduction() {
		if c.JWT.PrivateKeyPath == "" {
			errs = append(errs, errors.New(EnvPrefix+"JWT_PRIVATE_KEY_PATH is required in production"))
		}
		if c.JWT.PublicKeyPath == "" {
			errs = append(errs, errors.New(EnvPrefix+"JWT_PUBLIC_KEY_PATH is required in production"))
		}
		if !c.Server.SecureCookie {
			errs = append(errs, errors.New(EnvPrefix+"SERVER_SECURE_COOKIE must be true in production"))
		}
	}

	return errors.Join(errs...)
}

// envName turns "Config.database.url" into KATHAGHAR_DATABASE_URL.
func envName(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		namespace = rest
	}
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(namespace, ".", "_"))
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// DB returns the storage driver settings.
func (c *Config) DB() database.Config {
	return database.Config{
		URL:       c.Database.URL,
		User:      c.Database.User,
		Password:  c.Database.Password,
		Namespace: c.Database.Namespace,
		Database:  c.Database.Name,
	}
}

// Token returns the session token signer settings.
func (c *Config) Token() jwt.Config {
	return jwt.Config{
		PrivateKeyPath: c.JWT.PrivateKeyPath,
		PublicKeyPath:  c.JWT.PublicKeyPath,
		Issuer:         c.JWT.Issuer,
		Expiration:     time.Duration(c.JWT.ExpirationMins) * time.Minute,
	}
}

// Pages returns the sign-in flow redirect targets.
func (c *Config) Pages() service.Pages {
	return service.Pages{SignIn: c.Auth.SignInPage, SignUp: c.Auth.SignUpPage}
}

// Logging returns the logger settings for a service name and version.
func (c *Config) Logging(serviceName, version string) logging.Options {
	return logging.Options{
		Service: serviceName,
		Version: version,
		Format:  c.Log.Format,
		Level:   c.Log.Level,
		Output:  os.Stderr,
	}
}
