package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sonetyo/ledger/internal/auth"
	"github.com/sonetyo/ledger/internal/config"
	"github.com/sonetyo/ledger/internal/domain/ledger"
	"github.com/sonetyo/ledger/internal/sqlite"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	require.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	require.Equal(t, slog.LevelError, parseLogLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLogLevel("loud"))
}

func TestNewResolver(t *testing.T) {
	cfg := config.Default()
	cfg.DB.Path = ":memory:"
	db, err := openDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	resolver, err := newResolver(cfg, db)
	require.NoError(t, err)
	require.IsType(t, &sqlite.APIKeyRepository{}, resolver)

	cfg.Auth.Mode = config.AuthJWT
	cfg.Auth.JWTSecret = "secret"
	resolver, err = newResolver(cfg, db)
	require.NoError(t, err)
	require.IsType(t, &auth.JWTResolver{}, resolver)

	cfg.Auth.Mode = "magic"
	_, err = newResolver(cfg, db)
	require.Error(t, err)
}

func TestLogFileWriter_Trims(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")
	w, file, err := newLogFileWriter(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = file.Close() })
	w.maxSize = 64
	w.keep = 32

	_, err = w.Write([]byte(strings.Repeat("a", 60)))
	require.NoError(t, err)
	_, err = w.Write([]byte(strings.Repeat("b", 10)))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, 32)
	require.True(t, strings.HasSuffix(string(data), strings.Repeat("b", 10)))
}

func TestEnsureDBDir(t *testing.T) {
	require.NoError(t, ensureDBDir(":memory:"))
	dir := filepath.Join(t.TempDir(), "nested")
	require.NoError(t, ensureDBDir(filepath.Join(dir, "ledger.db")))
	_, err := os.Stat(dir)
	require.NoError(t, err)
}

func TestIssueToken_TrimsIdentity(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "secret"
	cfg.Auth.JWTIssuer = "sonetyo"

	var out bytes.Buffer
	require.NoError(t, issueToken(&out, cfg, []string{"-ttl", "1h", " bob "}))

	token := strings.TrimSpace(out.String())
	var claims auth.Claims
	_, _, err := jwt.NewParser().ParseUnverified(token, &claims)
	require.NoError(t, err)
	require.Equal(t, "bob", claims.Subject)

	resolver := auth.NewJWTResolver(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	identity, err := resolver.ResolveIdentity(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, ledger.Identity("bob"), identity)

	require.ErrorIs(t, issueToken(&out, cfg, []string{"   "}), ledger.ErrInvalidIdentity)
}

func TestDefaultIdentity_Trimmed(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.DefaultIdentity = "  carol\t"
	require.Equal(t, ledger.Identity("carol"), defaultIdentity(cfg))

	cfg.Auth.DefaultIdentity = " "
	require.True(t, defaultIdentity(cfg).IsZero())
}
