package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Friend-list backend selectors. The denormalized Mongo array is the
// source-faithful default; the Postgres edge table removes the two-write
// hazard at the cost of an extra store.
const (
	FriendBackendMongo         = "mongo"
	FriendBackendPostgresEdges = "postgres-edges"
)

type Config struct {
	Port                    string
	Env                     string
	LogLevel                string
	FirebaseCredentialsPath string
	PostgresConnStr         string
	MongoURI                string
	MongoDatabase           string
	FriendBackend           string
	ReconcileInterval       time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}

	return &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", "./firebase_credentials.json"),
		PostgresConnStr:         getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:                getEnv("MONGO_URI", ""),
		MongoDatabase:           getEnv("MONGO_DATABASE", "bandmate"),
		FriendBackend:           getEnv("FRIEND_BACKEND", FriendBackendMongo),
		ReconcileInterval:       getDurationEnv("RECONCILE_INTERVAL", 10*time.Minute),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
