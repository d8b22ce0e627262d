package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/tournament-engine/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/engine")
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("VETO_STALE_AFTER", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 15*time.Minute, cfg.VetoStaleAfter)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/engine")
	t.Setenv("JWT_SECRET_KEY", "secret")

	t.Setenv("VETO_STALE_AFTER", "soon")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("VETO_STALE_AFTER", "5m")
	t.Setenv("SERVER_PORT", "70000")
	_, err = Load()
	assert.Error(t, err)
}

func TestParseMapPools(t *testing.T) {
	pools, err := ParseMapPools([]byte(`
pools:
  competitive: [ascent, bind, haven, split, lotus, sunset, icebox]
  short: [ascent, bind, haven]
`))
	require.NoError(t, err)
	assert.Len(t, pools, 2)
	assert.Equal(t, models.MapPool{"ascent", "bind", "haven"}, pools["short"])
}

func TestParseMapPoolsValidates(t *testing.T) {
	_, err := ParseMapPools([]byte("pools:\n  broken: [ascent, ascent]\n"))
	assert.ErrorIs(t, err, models.ErrInvalidMapPool)

	_, err = ParseMapPools([]byte("pools: [not, a, map]"))
	assert.Error(t, err)
}

func TestLoadMapPoolsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pools.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pools:\n  duo: [a, b]\n"), 0o600))

	pools, err := LoadMapPools(path)
	require.NoError(t, err)
	assert.Equal(t, models.MapPool{"a", "b"}, pools["duo"])

	empty, err := LoadMapPools("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
