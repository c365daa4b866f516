// Package config provides layered configuration loading for the SealBox
// service. Defaults are overlaid with SEALBOX_-prefixed environment
// variables, then the merged result is validated.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces all environment variables read by Load.
const envPrefix = "SEALBOX_"

// Config holds the merged runtime configuration for the SealBox service.
// Precedence (lowest to highest): defaults, environment.
type Config struct {
	Addr      string `koanf:"addr" validate:"ip_port"`
	DataDir   string `koanf:"data_dir" validate:"safe_dir"`
	LogLevel  string `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// EncryptionKey is the base64-encoded 32-byte AES key for payloads at
	// rest. Empty is tolerated here so tooling can load partial configs; the
	// server refuses to start without it.
	EncryptionKey string `koanf:"encryption_key" validate:"omitempty,b64key32"`

	DefaultTTL       time.Duration `koanf:"default_ttl" validate:"min=0"`
	MaxTTL           time.Duration `koanf:"max_ttl" validate:"min=0"`
	DefaultDownloads int64         `koanf:"default_downloads" validate:"min=1"`
	MaxBytes         Bytes         `koanf:"max_bytes" validate:"min=1"`

	MetaBackend string `koanf:"meta_backend" validate:"oneof=sqlite postgres redis"`
	BlobBackend string `koanf:"blob_backend" validate:"oneof=filesystem s3"`

	PostgresDSN string `koanf:"postgres_dsn" validate:"required_if=MetaBackend postgres"`

	RedisAddr     string `koanf:"redis_addr" validate:"required_if=MetaBackend redis"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db" validate:"min=0"`

	S3Bucket    string `koanf:"s3_bucket" validate:"required_if=BlobBackend s3"`
	S3Region    string `koanf:"s3_region"`
	S3Endpoint  string `koanf:"s3_endpoint"`
	S3AccessKey string `koanf:"s3_access_key"`
	S3SecretKey string `koanf:"s3_secret_key"`

	JWTSecret string        `koanf:"jwt_secret"`
	JWTTTL    time.Duration `koanf:"jwt_ttl" validate:"gt=0"`

	JanitorInterval time.Duration `koanf:"janitor_interval" validate:"gt=0"`
}

// DefaultAppConfig is the configuration used when no environment variables
// are set.
var DefaultAppConfig = Config{
	Addr:             ":8080",
	DataDir:          "./data",
	LogLevel:         "info",
	LogFormat:        "text",
	DefaultTTL:       30 * time.Minute,
	MaxTTL:           7 * 24 * time.Hour,
	DefaultDownloads: 3,
	MaxBytes:         10 << 20, // 10 MiB
	MetaBackend:      "sqlite",
	BlobBackend:      "filesystem",
	S3Region:         "us-east-1",
	JWTTTL:           time.Hour,
	JanitorInterval:  time.Minute,
}

// Loader hooks are package vars so tests can inject failures.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DefaultAppConfig, "koanf"), nil)
}

var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
		},
	}), nil)
}

var registerValidators = func(v *validator.Validate) error {
	if err := v.RegisterValidation("ip_port", validIPPort); err != nil {
		return err
	}
	if err := v.RegisterValidation("safe_dir", validDataDir); err != nil {
		return err
	}
	return v.RegisterValidation("b64key32", validB64Key32)
}

// Load merges defaults with environment variables and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				StringToBytes(),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	v := validator.New()
	if err := registerValidators(v); err != nil {
		return nil, fmt.Errorf("register validators: %w", err)
	}
	if err := v.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.MaxTTL > 0 && cfg.DefaultTTL > cfg.MaxTTL {
		return nil, errors.New("default_ttl must not exceed max_ttl")
	}
	return &cfg, nil
}

// SQLiteDSN builds the SQLite connection string rooted in DataDir, with WAL
// journaling and a busy timeout suitable for a single-node deployment.
func (c *Config) SQLiteDSN() string {
	path := filepath.ToSlash(filepath.Join(c.DataDir, "sealbox.db"))
	return "file:" + path + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_synchronous=FULL"
}

// validIPPort accepts "host:port" where host is empty or a literal IP and
// port is 1-65535. Hostnames are rejected; a listen address should bind an
// interface, not resolve a name.
func validIPPort(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host != "" && net.ParseIP(host) == nil {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// validDataDir rejects empty, root, and any path containing a ".." element.
func validDataDir(fl validator.FieldLevel) bool {
	dir := fl.Field().String()
	if dir == "" {
		return false
	}
	clean := filepath.Clean(dir)
	if clean == "." || clean == "/" {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(clean), "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

// validB64Key32 accepts a standard base64 encoding of exactly 32 bytes.
func validB64Key32(fl validator.FieldLevel) bool {
	raw, err := base64.StdEncoding.DecodeString(fl.Field().String())
	return err == nil && len(raw) == 32
}
