package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kathaghar/api/internal/testing/helpers"
	"github.com/kathaghar/api/pkg/jwt"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configFile = ""
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"migrate", "ping", "keygen", "token", "seed", "serve"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("database-url"))
}

func TestKeygen_WritesUsableKeys(t *testing.T) {
	dir := t.TempDir()
	priv := filepath.Join(dir, "keys", "private.pem")
	pub := filepath.Join(dir, "keys", "public.pem")

	out, err := execute(t, "keygen", "--private", priv, "--public", pub)
	require.NoError(t, err)
	assert.Contains(t, out, priv)

	svc, err := jwt.NewService(jwt.Config{PrivateKeyPath: priv, PublicKeyPath: pub, Issuer: "kathaghar"})
	require.NoError(t, err)
	token, err := svc.Sign(jwt.Claims{UserID: "user:x"})
	require.NoError(t, err)
	_, err = svc.Validate(token)
	require.NoError(t, err)
}

func TestKeygen_RefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	priv := filepath.Join(dir, "private.pem")
	pub := filepath.Join(dir, "public.pem")
	require.NoError(t, os.WriteFile(priv, []byte("keep me"), 0o600))

	_, err := execute(t, "keygen", "--private", priv, "--public", pub)
	helpers.AssertErrorCode(t, err, "KEY_EXISTS")

	content, readErr := os.ReadFile(priv)
	require.NoError(t, readErr)
	assert.Equal(t, "keep me", string(content))

	_, err = execute(t, "keygen", "--private", priv, "--public", pub, "--force")
	require.NoError(t, err)
}

func TestCommands_MissingDatabaseURL_FailWithConfigError(t *testing.T) {
	t.Setenv("KATHAGHAR_DATABASE_URL", "")

	for _, args := range [][]string{
		{"migrate"},
		{"ping"},
		{"seed"},
		{"token", "--email", "a@example.com"},
	} {
		_, err := execute(t, args...)
		helpers.AssertErrorCode(t, err, "CONFIG_INVALID")
	}
}

func TestToken_RequiresEmail(t *testing.T) {
	_, err := execute(t, "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email")
}

func TestServe_MissingKeys_FailsBeforeListening(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KATHAGHAR_DATABASE_URL", "ws://127.0.0.1:1")
	t.Setenv("KATHAGHAR_JWT_PRIVATE_KEY_PATH", filepath.Join(dir, "absent.pem"))
	t.Setenv("KATHAGHAR_JWT_PUBLIC_KEY_PATH", filepath.Join(dir, "absent.pub"))

	_, err := execute(t, "serve", "--server-addr", "127.0.0.1:0")
	helpers.AssertErrorCode(t, err, "KEYS_UNAVAILABLE")
}
