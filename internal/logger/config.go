package logger

import (
	"io"
	"os"
	"strconv"
)

// Options configures a Logger.
type Options struct {
	Level       string    // debug, info, warn, error
	Format      string    // json, text
	Output      io.Writer // explicit destination, overrides file/stdout selection
	ServiceName string    // value of the "service" field

	// Environment is local, dev or prod. Outside local, logs also go to LogFile.
	Environment string

	LogFile     string
	LogFileOnly bool // write only to LogFile, not stdout

	// Rotation, passed to lumberjack
	MaxSize    int  // MB
	MaxBackups int  // files
	MaxAge     int  // days
	Compress   bool // gzip rotated files
}

// DefaultOptions returns stdout JSON logging at info level.
func DefaultOptions() *Options {
	return &Options{
		Level:       "info",
		Format:      "json",
		Output:      os.Stdout,
		ServiceName: "catalogx",
		Environment: "local",
	}
}

// LoadFromEnv reads Options from LOG_* environment variables. It is used by
// tools that start before configuration is loaded.
func LoadFromEnv() *Options {
	return &Options{
		Level:       getEnv("LOG_LEVEL", "info"),
		Format:      getEnv("LOG_FORMAT", "json"),
		ServiceName: getEnv("SERVICE_NAME", "catalogx"),
		Environment: getEnv("APP_ENV", "local"),

		LogFile:     getEnv("LOG_FILE", "/var/log/catalogx/app.log"),
		LogFileOnly: getEnvBool("LOG_FILE_ONLY", false),

		MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
		MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 7),
		MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
		Compress:   getEnvBool("LOG_COMPRESS", true),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}
