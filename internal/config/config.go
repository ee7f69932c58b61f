package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreFirestore = "firestore"
	StoreMongo     = "mongo"
	StoreMemory    = "memory"
)

type Config struct {
	ServerAddress string
	JWTSecret     string
	JWTExpiration time.Duration

	// StoreBackend selects the document store implementation.
	StoreBackend string

	FirebaseProjectID       string
	FirebaseCredentialsJSON string
	IdentityAPIKey          string

	MongoURI    string
	MongoDBName string

	GeminiAPIKey string

	// AdminEmails are granted the admin role claim at login.
	AdminEmails []string

	MaxAvatarSizeKB int64

	LogLevel  string
	LogFormat string
}

func Load() *Config {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil {
		log.Printf("No %s file found, relying on process environment", envFile)
	}

	return &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		JWTSecret:     getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTExpiration: getDuration("JWT_EXPIRATION", 24*time.Hour),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", StoreFirestore)),

		FirebaseProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseCredentialsJSON: os.Getenv("FIREBASE_CREDENTIALS_JSON"),
		IdentityAPIKey:          os.Getenv("IDENTITY_API_KEY"),

		MongoURI:    os.Getenv("MONGO_URI"),
		MongoDBName: getEnv("MONGO_DB", "userdesk"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),

		AdminEmails: splitCSV(os.Getenv("ADMIN_EMAILS")),

		MaxAvatarSizeKB: getInt64("MAX_AVATAR_SIZE_KB", 256),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// IsAdminEmail reports whether the address is on the configured allow-list.
// Comparison is case-insensitive on the trimmed address.
func (c *Config) IsAdminEmail(email string) bool {
	needle := strings.ToLower(strings.TrimSpace(email))
	for _, admin := range c.AdminEmails {
		if needle == admin {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Invalid %s value %q, using default", key, value)
	}
	return defaultValue
}

func getInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil && n > 0 {
			return n
		}
		log.Printf("Invalid %s value %q, using default", key, value)
	}
	return defaultValue
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.ToLower(strings.TrimSpace(p)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
