package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sindh")
	t.Setenv("JWT_SECRET", "s")

	c, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.Addr())
	assert.Equal(t, 3, c.MaxAttempts)
	assert.Equal(t, 100, c.InboxSize)
	assert.Equal(t, 24*time.Hour, c.TokenTTL)
	assert.Equal(t, []string{"http://localhost:3000"}, c.CORSOrigins)
	assert.Equal(t, "*/10 * * * *", c.SweepSchedule)
}

func TestLoad_RequiresSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoad_DotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("DATABASE_URL=postgres://dotenv/db\nJWT_SECRET=fromfile\nPORT=9090\nCORS_ALLOWED_ORIGINS=https://a.example, https://b.example\n"), 0o600))
	t.Setenv("JWT_SECRET", "fromenv")
	// t.Setenv restores these after the test; unset them first so godotenv can fill them.
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("PORT")
	os.Unsetenv("CORS_ALLOWED_ORIGINS")

	c, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "fromenv", c.JWTSecret)
	assert.Equal(t, "postgres://dotenv/db", c.DatabaseURL)
	assert.Equal(t, ":9090", c.Addr())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.CORSOrigins)
}

func TestLoad_RejectsBadAttempts(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sindh")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("TX_MAX_ATTEMPTS", "0")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
