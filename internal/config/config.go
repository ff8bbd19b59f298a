package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

// ProjectStage mirrors the deployment stage of the application. Development
// disables descriptor caching and timestamp caching.
type ProjectStage string

const (
	Development ProjectStage = "Development"
	UnitTest    ProjectStage = "UnitTest"
	SystemTest  ProjectStage = "SystemTest"
	Production  ProjectStage = "Production"
)

// Defaults for the numeric options. A value that fails to parse falls back to
// these instead of failing startup.
const (
	DefaultBufferSize  = 2048
	DefaultMaxAge      = 604800000 * time.Millisecond
	DefaultCheckPeriod = 0
)

type StorageConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKey"`
	SecretAccessKey string `yaml:"secretKey"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	UseSSL          bool   `yaml:"useSSL"`
}

// Config is passed explicitly to every component that needs it.
type Config struct {
	Stage      ProjectStage
	ListenAddr string

	// WebappDir is the local webapp root. Storage.Bucket, when set, takes
	// precedence and serves the webapp root from an object store.
	WebappDir string
	Storage   StorageConfig
	Classpath []string

	ResourcesDir     string
	ContractsDir     string
	FaceletsSuffixes []string
	ResourceExcludes []string

	CompressableTypes []string
	ELMimeTypes       []string
	MimeTypes         map[string]string
	TempDir           string

	BufferSize  int
	MaxAge      time.Duration
	CheckPeriod int

	CacheTimestamp          bool
	MissingLibraryDetection bool

	ResourcePrefix string
	MappingSuffix  string

	RateLimit       float64
	RateBurst       int
	AdminAllowedIPs []string
	Watch           bool
}

func (c *Config) IsDevelopment() bool { return c.Stage == Development }

// Default returns a configuration populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Stage:             Production,
		ListenAddr:        ":8080",
		WebappDir:         ".",
		ResourcesDir:      "/resources",
		ContractsDir:      "/contracts",
		FaceletsSuffixes:  []string{".xhtml"},
		ResourceExcludes:  []string{".class", ".jsp", ".jspx", ".properties", ".xhtml", ".groovy"},
		CompressableTypes: []string{"text/javascript", "application/javascript", "text/css", "image/svg+xml"},
		ELMimeTypes:       []string{"text/css"},
		MimeTypes:         map[string]string{},
		TempDir:           os.TempDir(),
		BufferSize:        DefaultBufferSize,
		MaxAge:            DefaultMaxAge,
		CheckPeriod:       DefaultCheckPeriod,
		CacheTimestamp:    true,
		ResourcePrefix:    "/jakarta.faces.resource",
		RateLimit:         50,
		RateBurst:         100,
	}
}

// fileConfig is the on-disk shape. Numeric options are kept as strings so a
// malformed value degrades to its default rather than failing the decode.
type fileConfig struct {
	Stage                   string            `yaml:"stage"`
	Listen                  string            `yaml:"listen"`
	WebappDir               string            `yaml:"webappDir"`
	Storage                 *StorageConfig    `yaml:"storage"`
	Classpath               []string          `yaml:"classpath"`
	ResourcesDir            string            `yaml:"resourcesDir"`
	ContractsDir            string            `yaml:"contractsDir"`
	FaceletsSuffixes        []string          `yaml:"faceletsSuffixes"`
	ResourceExcludes        []string          `yaml:"resourceExcludes"`
	CompressableTypes       []string          `yaml:"compressableTypes"`
	ELMimeTypes             []string          `yaml:"elMimeTypes"`
	MimeTypes               map[string]string `yaml:"mimeTypes"`
	TempDir                 string            `yaml:"tempDir"`
	BufferSize              string            `yaml:"bufferSize"`
	MaxAge                  string            `yaml:"maxAge"`
	CheckPeriod             string            `yaml:"checkPeriod"`
	CacheTimestamp          *bool             `yaml:"cacheTimestamp"`
	MissingLibraryDetection *bool             `yaml:"missingLibraryDetection"`
	ResourcePrefix          string            `yaml:"resourcePrefix"`
	MappingSuffix           string            `yaml:"mappingSuffix"`
	RateLimit               string            `yaml:"rateLimit"`
	RateBurst               string            `yaml:"rateBurst"`
	AdminAllowedIPs         []string          `yaml:"adminAllowedIPs"`
	Watch                   *bool             `yaml:"watch"`
}

// Load builds the configuration from the optional YAML file named by
// RESLIB_CONFIG, then applies environment overrides.
func Load(logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var fc fileConfig
	if path := os.Getenv("RESLIB_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Annotatef(err, "reading config file")
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, errors.Annotatef(err, "parsing config file %s", path)
		}
	}
	return fromFile(fc, logger)
}

func fromFile(fc fileConfig, logger *slog.Logger) (*Config, error) {
	cfg := Default()

	stage := getEnv("RESLIB_STAGE", fc.Stage)
	if stage != "" {
		s, err := parseStage(stage)
		if err != nil {
			return nil, err
		}
		cfg.Stage = s
	}

	cfg.ListenAddr = getEnv("RESLIB_LISTEN", firstNonEmpty(fc.Listen, cfg.ListenAddr))
	cfg.WebappDir = getEnv("RESLIB_WEBAPP_DIR", firstNonEmpty(fc.WebappDir, cfg.WebappDir))
	cfg.ResourcesDir = getEnv("RESLIB_RESOURCES_DIR", firstNonEmpty(fc.ResourcesDir, cfg.ResourcesDir))
	cfg.ContractsDir = getEnv("RESLIB_CONTRACTS_DIR", firstNonEmpty(fc.ContractsDir, cfg.ContractsDir))
	cfg.TempDir = getEnv("RESLIB_TEMP_DIR", firstNonEmpty(fc.TempDir, cfg.TempDir))
	cfg.ResourcePrefix = getEnv("RESLIB_RESOURCE_PREFIX", firstNonEmpty(fc.ResourcePrefix, cfg.ResourcePrefix))
	cfg.MappingSuffix = getEnv("RESLIB_MAPPING_SUFFIX", fc.MappingSuffix)

	if fc.Storage != nil {
		cfg.Storage = *fc.Storage
	}
	env := GetStorageConfig()
	cfg.Storage.Endpoint = firstNonEmpty(env.Endpoint, cfg.Storage.Endpoint, "localhost:9000")
	cfg.Storage.AccessKeyID = firstNonEmpty(env.AccessKeyID, cfg.Storage.AccessKeyID)
	cfg.Storage.SecretAccessKey = firstNonEmpty(env.SecretAccessKey, cfg.Storage.SecretAccessKey)
	cfg.Storage.Bucket = firstNonEmpty(env.Bucket, cfg.Storage.Bucket)
	cfg.Storage.Prefix = firstNonEmpty(env.Prefix, cfg.Storage.Prefix)
	cfg.Storage.UseSSL = env.UseSSL || cfg.Storage.UseSSL

	cfg.Classpath = listOption("RESLIB_CLASSPATH", fc.Classpath, cfg.Classpath)
	cfg.FaceletsSuffixes = listOption("RESLIB_FACELETS_SUFFIX", fc.FaceletsSuffixes, cfg.FaceletsSuffixes)
	cfg.ResourceExcludes = listOption("RESLIB_RESOURCE_EXCLUDES", fc.ResourceExcludes, cfg.ResourceExcludes)
	cfg.CompressableTypes = listOption("RESLIB_COMPRESSABLE_TYPES", fc.CompressableTypes, cfg.CompressableTypes)
	cfg.ELMimeTypes = listOption("RESLIB_EL_MIME_TYPES", fc.ELMimeTypes, cfg.ELMimeTypes)
	cfg.AdminAllowedIPs = listOption("RESLIB_ADMIN_ALLOWED_IPS", fc.AdminAllowedIPs, cfg.AdminAllowedIPs)
	for ext, typ := range fc.MimeTypes {
		cfg.MimeTypes[ext] = typ
	}

	cfg.BufferSize = ParseBufferSize(getEnv("RESLIB_BUFFER_SIZE", fc.BufferSize), logger)
	cfg.MaxAge = ParseMaxAge(getEnv("RESLIB_MAX_AGE", fc.MaxAge), logger)
	cfg.CheckPeriod = ParseCheckPeriod(getEnv("RESLIB_CHECK_PERIOD", fc.CheckPeriod), logger)

	cfg.CacheTimestamp = boolOption("RESLIB_CACHE_TIMESTAMP", fc.CacheTimestamp, cfg.CacheTimestamp)
	cfg.MissingLibraryDetection = boolOption("RESLIB_MISSING_LIBRARY_DETECTION", fc.MissingLibraryDetection, cfg.MissingLibraryDetection)
	cfg.Watch = boolOption("RESLIB_WATCH", fc.Watch, cfg.Stage != Production)

	if raw := getEnv("RESLIB_RATE_LIMIT", fc.RateLimit); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			cfg.RateLimit = v
		} else {
			logger.Warn("invalid rate limit, using default", "value", raw, "default", cfg.RateLimit)
		}
	}
	if raw := getEnv("RESLIB_RATE_BURST", fc.RateBurst); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.RateBurst = v
		} else {
			logger.Warn("invalid rate burst, using default", "value", raw, "default", cfg.RateBurst)
		}
	}

	return cfg, nil
}

func GetStorageConfig() *StorageConfig {
	return &StorageConfig{
		Endpoint:        getEnv("S3_ENDPOINT", ""),
		AccessKeyID:     getEnv("S3_ACCESS_KEY", ""),
		SecretAccessKey: getEnv("S3_SECRET_KEY", ""),
		Bucket:          getEnv("S3_BUCKET", ""),
		Prefix:          getEnv("S3_PREFIX", ""),
		UseSSL:          getEnv("S3_USE_SSL", "false") == "true",
	}
}

// ParseBufferSize accepts plain byte counts as well as humanized sizes such
// as "8KiB".
func ParseBufferSize(raw string, logger *slog.Logger) int {
	if raw == "" {
		return DefaultBufferSize
	}
	n, err := humanize.ParseBytes(raw)
	if err != nil || n == 0 || n > 64<<20 {
		logger.Warn("invalid resource buffer size, using default",
			"value", raw,
			"default", DefaultBufferSize,
		)
		return DefaultBufferSize
	}
	return int(n)
}

// ParseMaxAge reads a max-age in milliseconds.
func ParseMaxAge(raw string, logger *slog.Logger) time.Duration {
	if raw == "" {
		return DefaultMaxAge
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || ms < 0 {
		logger.Warn("invalid resource max age, using default",
			"value", raw,
			"default", DefaultMaxAge.Milliseconds(),
		)
		return DefaultMaxAge
	}
	return time.Duration(ms) * time.Millisecond
}

// ParseCheckPeriod reads the descriptor cache check period in minutes.
func ParseCheckPeriod(raw string, logger *slog.Logger) int {
	if raw == "" {
		return DefaultCheckPeriod
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		logger.Warn("invalid resource update check period, using default",
			"value", raw,
			"default", DefaultCheckPeriod,
		)
		return DefaultCheckPeriod
	}
	return n
}

func parseStage(raw string) (ProjectStage, error) {
	for _, s := range []ProjectStage{Development, UnitTest, SystemTest, Production} {
		if strings.EqualFold(raw, string(s)) {
			return s, nil
		}
	}
	return "", errors.NotValidf("project stage %q", raw)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func listOption(key string, fromFile, def []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Fields(strings.ReplaceAll(value, ",", " "))
	}
	if len(fromFile) > 0 {
		return fromFile
	}
	return def
}

func boolOption(key string, fromFile *bool, def bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true"
	}
	if fromFile != nil {
		return *fromFile
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
