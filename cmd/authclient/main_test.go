package main

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"testing"

	auth "github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-auth-client/devserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type quietLogger struct{}

func (quietLogger) Debug(string, ...any) {}
func (quietLogger) Info(string, ...any)  {}
func (quietLogger) Warn(string, ...any)  {}
func (quietLogger) Error(string, ...any) {}

func startBackend(t *testing.T) (*devserver.Server, string) {
	t.Helper()
	srv := devserver.New(devserver.Config{
		SigningKey: "cli-test-key",
		BcryptCost: bcrypt.MinCost,
	}, devserver.WithLogger(quietLogger{}))

	_, err := srv.AddUser(auth.Registration{
		Email:     "ana@example.com",
		Password:  "correct-horse",
		FirstName: "Ana",
		LastName:  "Lopez",
		JobTitle:  "Analyst",
	}, "/dashboard", "/investors")
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.App().Listener(ln) }()
	t.Cleanup(func() { _ = srv.App().Shutdown() })

	return srv, "http://" + ln.Addr().String()
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_LoginStatusCheckLogout(t *testing.T) {
	_, url := startBackend(t)
	common := []string{"--backend", url, "--store", "file", "--store-path", filepath.Join(t.TempDir(), "tokens.json")}

	out, err := run(t, append([]string{"status"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "not signed in (no_session)")

	out, err = run(t, append([]string{"login", "--email", "ana@example.com", "--password", "correct-horse"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "signed in as Ana Lopez")

	out, err = run(t, append([]string{"status"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "signed in as Ana Lopez <ana@example.com>")
	assert.Contains(t, out, "/investors")

	out, err = run(t, append([]string{"check", "/investors/42", "/settings", "/login"}, common...)...)
	require.NoError(t, err)
	assert.Regexp(t, `/investors/42\s+allow`, out)
	assert.Regexp(t, `/settings\s+unauthorized`, out)
	assert.Regexp(t, `/login\s+allow`, out)

	out, err = run(t, append([]string{"logout"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "signed out")

	out, err = run(t, append([]string{"check", "/investors"}, common...)...)
	require.NoError(t, err)
	assert.Regexp(t, `/investors\s+redirect -> /login`, out)
}

func TestCLI_LoginRejected(t *testing.T) {
	_, url := startBackend(t)
	common := []string{"--backend", url, "--store", "memory"}

	_, err := run(t, append([]string{"login", "--email", "ana@example.com", "--password", "wrong-password"}, common...)...)
	require.Error(t, err)
	assert.Equal(t, "Invalid email or password.", err.Error())
}

func TestCLI_RegisterValidation(t *testing.T) {
	_, url := startBackend(t)

	_, err := run(t, "register", "--backend", url, "--store", "memory",
		"--email", "new@example.com", "--password", "short",
		"--first-name", "Bo", "--last-name", "Chen", "--job-title", "Associate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Please correct the highlighted fields.")
	assert.Contains(t, err.Error(), "password:")
}

func TestOpenStore_Unknown(t *testing.T) {
	storeKind = "etcd"
	t.Cleanup(func() { storeKind = "file" })

	_, _, err := openStore(context.Background())
	assert.ErrorContains(t, err, `unknown token store "etcd"`)
}
