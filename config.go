package main

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/serialsplit/splitgui/com0com"
)

// Config holds every application setting. It is loaded once in main and
// passed along explicitly; nothing else reads the environment.
type Config struct {
	SetupcPath  string
	Hub4comPath string
	LogLevel    string
	DefaultBaud int
	StopGrace   time.Duration
	ShowSummary bool
	Fullscreen  bool
	Theme       string
}

// loadConfig reads a .env file when present, then the SPLITGUI_* variables.
func loadConfig() Config {
	_ = godotenv.Load()

	return Config{
		SetupcPath:  getEnv("SPLITGUI_SETUPC_PATH", com0com.DefaultPath),
		Hub4comPath: getEnv("SPLITGUI_HUB4COM_PATH", ""),
		LogLevel:    getEnv("SPLITGUI_LOG_LEVEL", "info"),
		DefaultBaud: getEnvAsInt("SPLITGUI_DEFAULT_BAUD", 115200),
		StopGrace:   time.Duration(getEnvAsInt("SPLITGUI_STOP_GRACE", 3)) * time.Second,
		ShowSummary: getEnvAsBool("SPLITGUI_SHOW_SUMMARY", true),
		Fullscreen:  getEnvAsBool("SPLITGUI_FULLSCREEN", false),
		Theme:       getEnv("SPLITGUI_THEME", "light"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	val, _ := strconv.ParseBool(value)
	return val
}
