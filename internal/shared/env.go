package shared

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv loads environment variables from a .env file if one exists.
// Variables already present in the environment are not overwritten.
func LoadEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}

	_ = godotenv.Load()
}

// RequireEnv returns the value of the named environment variable, or
// ErrMissingCredentials when it is unset or empty.
func RequireEnv(name string) (string, error) {
	value := os.Getenv(name)
	if value == "" {
		return "", ErrMissingCredentials
	}
	return value, nil
}
