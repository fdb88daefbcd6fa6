package config

import (
	"os"
	"strconv"
	"strings"
)

// ApplyEnv overrides file settings with TODO_* environment variables.
// Unset or unparsable variables leave the current value alone.
func (c *Config) ApplyEnv() {
	if val := getEnv("TODO_DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := getEnv("TODO_STORAGE_BACKEND"); val != "" {
		c.Storage.Backend = strings.ToLower(val)
	}
	if val := getEnv("TODO_STORAGE_KEY"); val != "" {
		c.Storage.Key = val
	}
	if val := getEnv("TODO_ADDR"); val != "" {
		c.Server.Addr = val
	}
	if val := getEnv("TODO_DEFAULT_PRIORITY"); val != "" {
		c.Defaults.Priority = strings.ToLower(val)
	}
	if val := getEnv("TODO_DEFAULT_CATEGORY"); val != "" {
		c.Defaults.Category = val
	}
	if val := getEnv("TODO_LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val, ok := getEnvBool("TODO_SEARCH_CATEGORY"); ok {
		c.Search.MatchCategory = &val
	}
	if val := getEnvInt("TODO_ACTIVITY_LIMIT"); val > 0 {
		c.Activity.Limit = val
	}
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func getEnvInt(key string) int {
	val := getEnv(key)
	if val == "" {
		return 0
	}
	num, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return num
}

func getEnvBool(key string) (bool, bool) {
	val := getEnv(key)
	if val == "" {
		return false, false
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, false
	}
	return b, true
}
