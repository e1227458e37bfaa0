package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

// EnvPrefix: префикс переменных окружения; DVMAP_CONFIG указывает на YAML-файл.
const EnvPrefix = "DVMAP_"

type Config struct {
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	AllowOrigins string `koanf:"allow_origins"` // через запятую, "*" значит все
	LogLevel     string `koanf:"log_level"`
	LogFile      string `koanf:"log_file"`
	MaxUploadMB  int    `koanf:"max_upload_mb"`

	SchemaPath   string `koanf:"schema_path"`
	RulesPath    string `koanf:"rules_path"` // пусто: встроенные правила
	ClustersPath string `koanf:"clusters_path"`
	ArchivePath  string `koanf:"archive_path"` // пусто: архив прогонов выключен

	FuzzyThreshold  float64 `koanf:"fuzzy_threshold"`
	MinSeparation   float64 `koanf:"min_separation"`
	ReviewThreshold float64 `koanf:"review_threshold"`
	EnableFuzzy     bool    `koanf:"enable_fuzzy"`
	Workers         int     `koanf:"workers"`
}

func Default() Config {
	return Config{
		Host:            "127.0.0.1",
		Port:            8082,
		AllowOrigins:    "*",
		LogLevel:        "info",
		LogFile:         "logs/dvmap-service.log",
		MaxUploadMB:     64,
		SchemaPath:      "schema.yaml",
		FuzzyThreshold:  0.80,
		MinSeparation:   0.05,
		ReviewThreshold: 0.70,
		EnableFuzzy:     true,
		Workers:         4,
	}
}

// Load: дефолты -> YAML из DVMAP_CONFIG (если задан) -> переменные DVMAP_*.
func Load() (Config, error) {
	return LoadFile(os.Getenv(EnvPrefix + "CONFIG"))
}

// LoadFile: то же, но путь к YAML задан явно (флаг --config в CLI).
func LoadFile(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// DVMAP_MAX_UPLOAD_MB -> max_upload_mb (ключи плоские)
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var problems []string
	if c.Port <= 0 {
		problems = append(problems, "port must be positive")
	}
	for name, v := range map[string]float64{
		"fuzzy_threshold":  c.FuzzyThreshold,
		"min_separation":   c.MinSeparation,
		"review_threshold": c.ReviewThreshold,
	} {
		if v < 0 || v > 1 {
			problems = append(problems, fmt.Sprintf("%s must be in [0,1], got %g", name, v))
		}
	}
	if c.Workers < 1 {
		problems = append(problems, "workers must be >= 1")
	}
	if c.MaxUploadMB <= 0 {
		problems = append(problems, "max_upload_mb must be positive")
	}
	if len(problems) == 0 {
		return nil
	}
	// map обходится в случайном порядке, сортируем для стабильного текста
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}

func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

func (c Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
