package postgres

import (
	"fmt"
	"os"
)

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

func NewPostgresConfig(fallbackDBName string) *PostgresConfig {
	var postgres PostgresConfig

	postgres.Host = getEnv("POSTGRES_HOST", "localhost")
	postgres.Port = getEnv("POSTGRES_PORT", "5432")
	postgres.User = getEnv("POSTGRES_USER", "user")
	postgres.Password = getEnv("POSTGRES_PASSWORD", "pass")
	postgres.DBName = getEnv("POSTGRES_DATABASE", fallbackDBName)

	return &postgres
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func GetConnString(options *PostgresConfig) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", options.Host, options.Port, options.User, options.Password, options.DBName)
}
