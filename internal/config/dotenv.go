package config

import (
	"bufio"
	"os"
	"strings"
)

// LoadDotEnv seeds the process environment from a .env file so local runs
// can carry Supabase keys and the JWT secret without exporting them by hand.
// Variables already set in the environment win over file values.
func LoadDotEnv(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err // a missing .env is fine, caller can ignore
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}

	return scanner.Err()
}
