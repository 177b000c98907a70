package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AWS_BUCKET_NAME", "duette-videos")

	cfg, err := Load("server")
	require.NoError(t, err)

	assert.Equal(t, "server", cfg.Service.Name)
	assert.Equal(t, 8080, cfg.Service.Port)
	assert.Equal(t, "s3", cfg.Storage.Backend)
	assert.Equal(t, "duette-videos", cfg.Storage.Bucket)
	assert.Equal(t, "postgres", cfg.Catalog.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_S3RequiresBucket(t *testing.T) {
	t.Setenv("AWS_BUCKET_NAME", "")
	t.Setenv("OBJECT_STORE_BACKEND", "s3")

	_, err := Load("server")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AWS_BUCKET_NAME")
}

func TestLoad_MemoryBackendNeedsNoBucket(t *testing.T) {
	t.Setenv("OBJECT_STORE_BACKEND", "MEMORY")

	cfg, err := Load("server")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Backend)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Service:  ServiceConfig{Port: 8080},
			Database: DatabaseConfig{Host: "localhost", MaxConns: 10, MinConns: 2},
			Storage:  StorageConfig{Backend: "memory"},
			Catalog:  CatalogConfig{Backend: "postgres"},
		}
	}

	cfg := base()
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Service.Port = 70000
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Catalog.Backend = "sqlite"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Catalog = CatalogConfig{Backend: "dynamodb", VideosTable: "videos", DuettesTable: "duettes"}
	cfg.Database = DatabaseConfig{}
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.RateLimit.Enabled = true
	assert.Error(t, cfg.Validate())
}

func TestDatabaseURL(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{
		Host: "db", Port: 5433, Database: "duette", User: "u", Password: "p",
	}}
	assert.Equal(t, "postgres://u:p@db:5433/duette?sslmode=disable", cfg.DatabaseURL())
}
