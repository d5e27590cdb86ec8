package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("JWT_SECRET", "secret")

	config, err := LoadConfig()
	req.NoError(err)
	req.Equal("0.0.0.0:8080", config.Addr())
	req.Equal(168*time.Hour, config.AuthTokenDuration)
	req.Equal([]string{"*"}, config.Origins())
	req.Equal(50, config.LimitMessages)
	req.False(config.ExcludeSenderOnSend)
}

func TestLoadConfig_Requires_Secret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfig_Env_File(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "relay.env")
	req.NoError(os.WriteFile(path, []byte("JWT_SECRET=from-file\nPORT=9090\nALLOWED_ORIGINS=https://a.example, https://b.example,\n"), 0o600))
	t.Cleanup(func() {
		for _, key := range []string{"JWT_SECRET", "PORT", "ALLOWED_ORIGINS"} {
			os.Unsetenv(key)
		}
	})

	config, err := LoadConfig(path)
	req.NoError(err)
	req.Equal("from-file", config.JWTSecret)
	req.Equal(9090, config.Port)
	req.Equal([]string{"https://a.example", "https://b.example"}, config.Origins())

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	req.Error(err)
}

func TestCharacterRune(t *testing.T) {
	req := require.New(t)
	r, err := CharacterRune("#")
	req.NoError(err)
	req.Equal('#', r)

	_, err = CharacterRune("**")
	req.Error(err)
}
