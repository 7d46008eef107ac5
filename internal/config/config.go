package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// DefaultThumbnailBaseURL 缩略图所在静态文件服务的前缀。
	DefaultThumbnailBaseURL = "https://s3.amazonaws.com/com-federalforge-repository/public/resources/thumbnails/"
	// DefaultAssetBaseURL 转换后资源文件所在静态文件服务的前缀。
	DefaultAssetBaseURL = "https://s3.amazonaws.com/com-federalforge-repository/public/resources/converted/"
)

// Error policies for per-file failures.
const (
	OnErrorAbort    = "abort"
	OnErrorContinue = "continue"
)

// Ledger backends.
const (
	LedgerNone     = "none"
	LedgerMemory   = "memory"
	LedgerPostgres = "postgres"
	LedgerRedis    = "redis"
)

var (
	ErrMissingApplicationID = errors.New("config: parse application id is required")
	ErrMissingHost          = errors.New("config: parse host is required")
)

// Config holds all configuration for the application.
// The values are read by viper from a config file, environment variables or flags.
type Config struct {
	AppName    string           `mapstructure:"APP_NAME"`
	AppVersion string           `mapstructure:"APP_VERSION"`
	LogLevel   string           `mapstructure:"LOG_LEVEL"`
	Walk       WalkConfig       `mapstructure:"WALK"`
	Parse      ParseConfig      `mapstructure:"PARSE"`
	Links      LinksConfig      `mapstructure:"LINKS"`
	Upload     UploadConfig     `mapstructure:"UPLOAD"`
	Ledger     LedgerConfig     `mapstructure:"LEDGER"`
	Database   DatabaseConfig   `mapstructure:"DATABASE"`
	Redis      RedisConfig      `mapstructure:"REDIS"`
	Kafka      KafkaConfig      `mapstructure:"KAFKA"`
	Watch      WatchConfig      `mapstructure:"WATCH"`
	StubServer StubServerConfig `mapstructure:"STUB_SERVER"`
}

// WalkConfig 描述需要遍历的本地目录。
type WalkConfig struct {
	RootPath       string `mapstructure:"ROOT_PATH"`
	FollowSymlinks bool   `mapstructure:"FOLLOW_SYMLINKS"` // 仅对指向普通文件的符号链接生效
}

// ParseConfig holds the connection settings of the Parse server REST API.
type ParseConfig struct {
	Scheme        string        `mapstructure:"SCHEME"`
	Host          string        `mapstructure:"HOST"`
	Port          int           `mapstructure:"PORT"`
	MountPath     string        `mapstructure:"MOUNT_PATH"`
	ClassName     string        `mapstructure:"CLASS_NAME"`
	ApplicationID string        `mapstructure:"APPLICATION_ID"`
	RESTAPIKey    string        `mapstructure:"REST_API_KEY"` // 可选，设置后才发送 X-Parse-REST-API-Key
	Timeout       time.Duration `mapstructure:"TIMEOUT"`
	Debug         bool          `mapstructure:"DEBUG"`
}

// BaseURL returns scheme://host:port of the Parse server.
func (c ParseConfig) BaseURL() string {
	return fmt.Sprintf("%s://%s:%d", c.Scheme, c.Host, c.Port)
}

// ClassPath returns the REST path of the configured class, e.g. /parse/classes/Resource.
func (c ParseConfig) ClassPath() string {
	return strings.TrimSuffix(c.MountPath, "/") + "/classes/" + c.ClassName
}

// LinksConfig 用于拼接缩略图和资源文件的公开 URL。
type LinksConfig struct {
	ThumbnailBaseURL string `mapstructure:"THUMBNAIL_BASE_URL"`
	AssetBaseURL     string `mapstructure:"ASSET_BASE_URL"`
	EncodeFilenames  bool   `mapstructure:"ENCODE_FILENAMES"`
}

// UploadConfig controls how records are sent.
type UploadConfig struct {
	Workers int    `mapstructure:"WORKERS"`
	OnError string `mapstructure:"ON_ERROR"` // "abort" or "continue"
	DryRun  bool   `mapstructure:"DRY_RUN"`
}

// LedgerConfig 选择记录已发布资源的存储后端。
type LedgerConfig struct {
	Type string `mapstructure:"TYPE"` // "none", "memory", "postgres", "redis"
}

// DatabaseConfig holds configuration for the database.
type DatabaseConfig struct {
	Host     string `mapstructure:"HOST"`
	Port     int    `mapstructure:"PORT"`
	User     string `mapstructure:"USER"`
	Password string `mapstructure:"PASSWORD"`
	DBName   string `mapstructure:"DB_NAME"`
	SSLMode  string `mapstructure:"SSL_MODE"`
}

// RedisConfig holds configuration for Redis.
type RedisConfig struct {
	Addr     string `mapstructure:"ADDR"`
	Password string `mapstructure:"PASSWORD"`
	DB       int    `mapstructure:"DB"`
}

// KafkaConfig holds configuration for Kafka.
type KafkaConfig struct {
	Enabled       bool     `mapstructure:"ENABLED"`
	Brokers       []string `mapstructure:"BROKERS"`
	ClientID      string   `mapstructure:"CLIENT_ID"`
	ResourceTopic string   `mapstructure:"RESOURCE_TOPIC"` // 资源发布成功后的事件
	Protocol      string   `mapstructure:"PROTOCOL"`
}

// WatchConfig 控制初次遍历后是否继续监听目录。
type WatchConfig struct {
	Enabled bool `mapstructure:"ENABLED"`
}

// StubServerConfig holds configuration for the local Parse stand-in server.
type StubServerConfig struct {
	Host          string `mapstructure:"HOST"`
	Port          string `mapstructure:"PORT"`
	ApplicationID string `mapstructure:"APPLICATION_ID"`
}

// flagKeys 将命令行参数映射到配置键。
var flagKeys = map[string]string{
	"root":             "WALK.ROOT_PATH",
	"host":             "PARSE.HOST",
	"port":             "PARSE.PORT",
	"app-id":           "PARSE.APPLICATION_ID",
	"rest-api-key":     "PARSE.REST_API_KEY",
	"timeout":          "PARSE.TIMEOUT",
	"thumbnail-base":   "LINKS.THUMBNAIL_BASE_URL",
	"asset-base":       "LINKS.ASSET_BASE_URL",
	"encode-filenames": "LINKS.ENCODE_FILENAMES",
	"workers":          "UPLOAD.WORKERS",
	"on-error":         "UPLOAD.ON_ERROR",
	"dry-run":          "UPLOAD.DRY_RUN",
	"ledger":           "LEDGER.TYPE",
	"watch":            "WATCH.ENABLED",
	"log-level":        "LOG_LEVEL",
	"stub-port":        "STUB_SERVER.PORT",
}

// RegisterFlags defines the command line flags understood by LoadConfig.
// Flag defaults are placeholders; viper defaults apply unless a flag is set explicitly.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a config file")
	fs.String("root", "", "root directory to walk")
	fs.String("host", "", "Parse server host")
	fs.Int("port", 0, "Parse server port")
	fs.String("app-id", "", "X-Parse-Application-Id value")
	fs.String("rest-api-key", "", "X-Parse-REST-API-Key value (optional)")
	fs.Duration("timeout", 0, "per request timeout")
	fs.String("thumbnail-base", "", "thumbnail URL prefix")
	fs.String("asset-base", "", "converted asset URL prefix")
	fs.Bool("encode-filenames", false, "URL-escape filenames when building links")
	fs.Int("workers", 0, "number of concurrent uploads")
	fs.String("on-error", "", "per-file error policy: abort or continue")
	fs.Bool("dry-run", false, "print records without sending them")
	fs.String("ledger", "", "ledger backend: none, memory, postgres or redis")
	fs.Bool("watch", false, "keep watching the root directory for new files")
	fs.String("log-level", "", "log level: info or debug")
	fs.String("stub-port", "", "listen port of the local Parse stub server")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "resource-linker")
	v.SetDefault("APP_VERSION", "0.1.0")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("WALK.ROOT_PATH", "./converted/")
	v.SetDefault("WALK.FOLLOW_SYMLINKS", true)

	v.SetDefault("PARSE.SCHEME", "http")
	v.SetDefault("PARSE.HOST", "")
	v.SetDefault("PARSE.PORT", 80)
	v.SetDefault("PARSE.MOUNT_PATH", "/parse")
	v.SetDefault("PARSE.CLASS_NAME", "Resource")
	v.SetDefault("PARSE.APPLICATION_ID", "")
	v.SetDefault("PARSE.REST_API_KEY", "")
	v.SetDefault("PARSE.TIMEOUT", 30*time.Second)
	v.SetDefault("PARSE.DEBUG", false)

	v.SetDefault("LINKS.THUMBNAIL_BASE_URL", DefaultThumbnailBaseURL)
	v.SetDefault("LINKS.ASSET_BASE_URL", DefaultAssetBaseURL)
	v.SetDefault("LINKS.ENCODE_FILENAMES", false)

	v.SetDefault("UPLOAD.WORKERS", 1)
	v.SetDefault("UPLOAD.ON_ERROR", OnErrorAbort)
	v.SetDefault("UPLOAD.DRY_RUN", false)

	v.SetDefault("LEDGER.TYPE", LedgerNone)

	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", 5432)
	v.SetDefault("DATABASE.USER", "postgres")
	v.SetDefault("DATABASE.PASSWORD", "password")
	v.SetDefault("DATABASE.DB_NAME", "resource_linker")
	v.SetDefault("DATABASE.SSL_MODE", "disable")

	v.SetDefault("REDIS.ADDR", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)

	v.SetDefault("KAFKA.ENABLED", false)
	v.SetDefault("KAFKA.BROKERS", []string{"localhost:9092"})
	v.SetDefault("KAFKA.CLIENT_ID", "resource-linker")
	v.SetDefault("KAFKA.RESOURCE_TOPIC", "resource-announced")
	v.SetDefault("KAFKA.PROTOCOL", "plaintext")

	v.SetDefault("WATCH.ENABLED", false)

	v.SetDefault("STUB_SERVER.HOST", "0.0.0.0")
	v.SetDefault("STUB_SERVER.PORT", "1337")
	v.SetDefault("STUB_SERVER.APPLICATION_ID", "")
}

// LoadConfig reads configuration from file, environment variables and flags.
// flags may be nil; only flags that were set on the command line override other sources.
func LoadConfig(path string, flags *pflag.FlagSet) (config Config, err error) {
	v := viper.New()
	setDefaults(v)

	if path == "" && flags != nil {
		if f := flags.Lookup("config"); f != nil {
			path = f.Value.String()
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// PARSE_HOST 覆盖 PARSE.HOST
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err = v.BindPFlag(key, f); err != nil {
				return config, fmt.Errorf("绑定参数 --%s 失败: %w", name, err)
			}
		}
	}

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 没有配置文件时使用默认值
		err = nil
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("解析配置失败: %w", err)
	}
	config.normalize()
	return config, nil
}

func (c *Config) normalize() {
	if c.Upload.Workers < 1 {
		c.Upload.Workers = 1
	}
	c.Upload.OnError = strings.ToLower(strings.TrimSpace(c.Upload.OnError))
	c.Ledger.Type = strings.ToLower(strings.TrimSpace(c.Ledger.Type))
	if c.Ledger.Type == "" {
		c.Ledger.Type = LedgerNone
	}
	if c.StubServer.ApplicationID == "" {
		c.StubServer.ApplicationID = c.Parse.ApplicationID
	}
	c.Parse.Debug = c.Parse.Debug || strings.EqualFold(c.LogLevel, "debug")
}

// Validate checks the settings needed to announce resources.
func (c Config) Validate() error {
	if c.Parse.ApplicationID == "" {
		return ErrMissingApplicationID
	}
	if c.Parse.Host == "" {
		return ErrMissingHost
	}
	switch c.Upload.OnError {
	case OnErrorAbort, OnErrorContinue:
	default:
		return fmt.Errorf("config: unknown error policy %q", c.Upload.OnError)
	}
	switch c.Ledger.Type {
	case LedgerNone, LedgerMemory, LedgerPostgres, LedgerRedis:
	default:
		return fmt.Errorf("config: unknown ledger type %q", c.Ledger.Type)
	}
	return nil
}
