package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("defaults fill unset fields", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "env: production\n"))
		require.NoError(t, err)

		assert.Equal(t, 2440, cfg.Port)
		assert.Equal(t, "Sidestreets", cfg.Site.Name)
		assert.False(t, cfg.IsDev())
		assert.Contains(t, cfg.DSN, "sidestreets")
		assert.Contains(t, cfg.DSN, "tcp(127.0.0.1:3306)")
		assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	})

	t.Run("explicit dsn wins over parts", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, `
database:
  dsn: "user:pw@tcp(db.internal:3306)/events?parseTime=true"
  host: ignored.example
`))
		require.NoError(t, err)
		assert.Equal(t, "user:pw@tcp(db.internal:3306)/events?parseTime=true", cfg.DSN)
	})

	t.Run("base url trailing slash trimmed", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "site:\n  base_url: https://sidestreets.example/\n"))
		require.NoError(t, err)
		assert.Equal(t, "https://sidestreets.example", cfg.Site.BaseURL)
	})

	t.Run("unknown keys rejected", func(t *testing.T) {
		_, err := Load(writeConfig(t, "prot: 8080\n"))
		assert.Error(t, err)
	})

	t.Run("out of range port rejected", func(t *testing.T) {
		_, err := Load(writeConfig(t, "port: 70000\n"))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
		assert.Error(t, err)
	})
}

func TestSenderAddress(t *testing.T) {
	cfg := &AppConfig{
		Env: "development",
		Mail: MailConfig{
			From:        "hello@sidestreets.example",
			SandboxFrom: "sandbox@resend.dev",
		},
	}
	assert.Equal(t, "sandbox@resend.dev", cfg.SenderAddress())

	cfg.Env = "production"
	assert.Equal(t, "hello@sidestreets.example", cfg.SenderAddress())

	// Without a sandbox address dev falls back to the real sender.
	cfg.Env = "development"
	cfg.Mail.SandboxFrom = ""
	assert.Equal(t, "hello@sidestreets.example", cfg.SenderAddress())
}
