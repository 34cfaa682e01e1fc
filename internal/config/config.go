package config

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	// Bearer token expected on inbound requests.
	APIKey string
	// Credential for the Gemini backend.
	GeminiAPIKey string
	// "vector" or "lexical".
	RetrieverStrategy string
}

func Load() *Config {
	_ = godotenv.Load()

	gemini := os.Getenv("GOOGLE_API_KEY")
	if gemini == "" {
		gemini = os.Getenv("GEMINI_API_KEY")
	}

	return &Config{
		Port:              getEnv("PORT", "8000"),
		APIKey:            os.Getenv("API_KEY"),
		GeminiAPIKey:      gemini,
		RetrieverStrategy: getEnv("RETRIEVER_STRATEGY", "vector"),
	}
}

// Validate reports missing required credentials. Absence is a startup-time
// misconfiguration, never a per-request error.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("API_KEY is required")
	}
	if c.GeminiAPIKey == "" {
		return errors.New("GOOGLE_API_KEY or GEMINI_API_KEY is required")
	}
	return nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
