package config

import (
	"os"
	"strings"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "ACME_ALIDNS_"

// getEnv retrieves an environment variable value.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrFile retrieves a value from either a direct environment variable
// or a file path specified by the file key (Docker secrets pattern).
//
// If both are set, the file takes precedence. This allows local development
// with direct values while production uses Docker secrets.
//
// The file contents are trimmed of leading/trailing whitespace.
func getEnvOrFile(directKey, fileKey string) (string, error) {
	if filePath := os.Getenv(fileKey); filePath != "" {
		content, err := os.ReadFile(filePath)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(content)), nil
	}

	return os.Getenv(directKey), nil
}

// getEnvWithFileFallback retrieves a value supporting the _FILE suffix pattern.
// Given a key like "ACCESS_KEY_SECRET", it checks:
//  1. ACME_ALIDNS_ACCESS_KEY_SECRET_FILE - reads file contents if set
//  2. ACME_ALIDNS_ACCESS_KEY_SECRET - returns direct value if set
func getEnvWithFileFallback(key string) (string, error) {
	return getEnvOrFile(EnvPrefix+key, EnvPrefix+key+"_FILE")
}

// parseBool parses a boolean string.
// Accepts: true/false, 1/0, yes/no, on/off (case-insensitive).
func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, true
	case "false", "0", "no", "off":
		return false, true
	default:
		return false, false
	}
}
