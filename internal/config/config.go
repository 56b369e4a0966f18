package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Conf holds the application configuration, making it accessible globally.
var Conf *Config

// Config struct is the top-level configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	STT      STTConfig      `mapstructure:"stt"`
	Audio    AudioConfig    `mapstructure:"audio"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds server-related settings.
type ServerConfig struct {
	Port      string `mapstructure:"port"`
	StaticDir string `mapstructure:"static_dir"`
	UploadDir string `mapstructure:"upload_dir"`
}

// StorageConfig selects and configures the report store backend.
type StorageConfig struct {
	// Backend is "file" (flat JSON documents) or "db" (PostgreSQL).
	Backend    string `mapstructure:"backend"`
	ResultsDir string `mapstructure:"results_dir"`
}

// DatabaseConfig holds database connection settings for the "db" backend.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// STTConfig holds the speech recognizer settings. One token per vocabulary
// profile; the endpoint is shared.
type STTConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	VocalesToken    string `mapstructure:"vocales_token"`
	AbecedarioToken string `mapstructure:"abecedario_token"`
	SilabasToken    string `mapstructure:"silabas_token"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
}

// AudioConfig holds segmentation thresholds.
type AudioConfig struct {
	TopDB             float64 `mapstructure:"top_db"`
	MinSegmentSeconds float64 `mapstructure:"min_segment_seconds"`
}

// LoggingConfig holds settings for the logger.
type LoggingConfig struct {
	Directory  string `mapstructure:"directory"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// setDefaults sets the default values for the configuration.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.static_dir", "static")
	v.SetDefault("server.upload_dir", "uploads")

	// Storage defaults
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.results_dir", "results")

	// Database defaults (only used when storage.backend = "db")
	v.SetDefault("database.host", "db")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "user")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.dbname", "expresatea-db")

	// Speech recognizer defaults
	v.SetDefault("stt.endpoint", "https://api.wit.ai/speech?v=20201126")
	v.SetDefault("stt.vocales_token", "")
	v.SetDefault("stt.abecedario_token", "")
	v.SetDefault("stt.silabas_token", "")
	v.SetDefault("stt.timeout_seconds", 30)

	// Audio defaults
	v.SetDefault("audio.top_db", 20.0)
	v.SetDefault("audio.min_segment_seconds", 0.3)

	// Logging defaults
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.max_size", 10)   // 10 MB
	v.SetDefault("logging.max_backups", 3) // Keep 3 backups
	v.SetDefault("logging.max_age", 7)     // 7 days
	v.SetDefault("logging.compress", true) // Compress old logs
}

// Init initializes the configuration with Viper.
func Init(projectRoot string, log *zap.Logger) error {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// --- File Configuration ---
	v.AddConfigPath(projectRoot)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// --- Environment Variable Binding ---
	v.SetEnvPrefix("EXPRESATEA") // e.g., EXPRESATEA_SERVER_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read the initial configuration from the file.
	// It's okay if the file doesn't exist; defaults and env vars will be used.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Unmarshal the config into our global Conf variable
	if err := v.Unmarshal(&Conf); err != nil {
		return fmt.Errorf("unable to decode config into struct: %w", err)
	}

	// Set up a watch for configuration changes for hot-reloading
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("Configuration file changed, reloading.", zap.String("file", e.Name))
		if err := v.Unmarshal(&Conf); err != nil {
			log.Error("Error reloading configuration", zap.Error(err))
		}
	})

	log.Info("Configuration loaded successfully")
	return nil
}
