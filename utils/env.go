package utils

import (
	"os"
	"strconv"
	"time"
)

func GetEnvAsInt(envKey string, fallback int) int {
	if valStr := os.Getenv(envKey); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			return val
		}
	}
	return fallback
}

func GetEnvAsDuration(envKey string, fallback time.Duration) time.Duration {
	if valStr := os.Getenv(envKey); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			return val
		}
	}
	return fallback
}

func GetEnvAsBool(envKey string, fallback bool) bool {
	if valStr := os.Getenv(envKey); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			return val
		}
	}
	return fallback
}

func GetEnv(envKey, fallback string) string {
	if valStr := os.Getenv(envKey); valStr != "" {
		return valStr
	}
	return fallback
}
