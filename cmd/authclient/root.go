package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	auth "github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-auth-client/activitymap"
	"github.com/goliatone/go-auth-client/backend"
	"github.com/goliatone/go-auth-client/store"
	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"
)

var (
	storeKind  string
	storePath  string
	redisAddr  string
	backendURL string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "authclient",
	Short:         "Run the CRM auth client against a backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&storeKind, "store", "file", "token store: memory, file, sqlite or redis")
	flags.StringVar(&storePath, "store-path", ".authclient.json", "file path or sqlite dsn for the token store")
	flags.StringVar(&redisAddr, "redis-addr", "localhost:6379", "redis address when --store=redis")
	flags.StringVar(&backendURL, "backend", "", "backend base url, overrides AUTH_BACKEND_URL")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log debug output and activity events")
}

// session bundles a client with the resources it must release
type session struct {
	client *auth.Client
	closer io.Closer
}

func (s *session) Close() error {
	s.client.Unmount()
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func openSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	opts, err := auth.LoadOptionsFromEnv()
	if err != nil {
		return nil, err
	}

	tokens, closer, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	bcfg, err := backend.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if backendURL != "" {
		bcfg.BaseURL = backendURL
	}

	logger := cliLogger{out: cmd.ErrOrStderr(), debug: verbose}
	client := auth.New(
		backend.New(bcfg,
			backend.WithCredentials(auth.TokenCredentials{Tokens: tokens, Config: opts}),
			backend.WithLogger(logger),
		),
		tokens,
		auth.WithConfig(opts),
		auth.WithLogger(logger),
		auth.WithActivitySink(activitymap.Sink(func(_ context.Context, rec activitymap.Normalized) error {
			logger.Debug("activity %s", print.MaybePrettyJSON(rec))
			return nil
		}, activitymap.WithDefaultChannel("authclient"))),
	)

	return &session{client: client, closer: closer}, nil
}

func openStore(ctx context.Context) (auth.TokenStore, io.Closer, error) {
	switch strings.ToLower(storeKind) {
	case "memory":
		return store.NewMemory(nil), nil, nil
	case "file":
		return store.NewFile(storePath), nil, nil
	case "sqlite":
		s, err := store.OpenSQLite(ctx, storePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "redis":
		r, err := store.OpenRedis(ctx, store.RedisConfig{Addr: redisAddr})
		if err != nil {
			return nil, nil, err
		}
		return r, r, nil
	default:
		return nil, nil, fmt.Errorf("unknown token store %q", storeKind)
	}
}

// mount restores the persisted session and waits for the attempt to resolve
func mount(ctx context.Context, s *session) auth.BootstrapResult {
	select {
	case res := <-s.client.Mount(ctx).Done():
		return res
	case <-ctx.Done():
		return auth.BootstrapResult{Outcome: auth.BootstrapSuperseded, Err: ctx.Err()}
	}
}

type cliLogger struct {
	out   io.Writer
	debug bool
}

func (l cliLogger) log(level, format string, args ...any) {
	fmt.Fprintf(l.out, "%s [%s] %s\n", time.Now().Format(time.TimeOnly), level, fmt.Sprintf(format, args...))
}

func (l cliLogger) Debug(format string, args ...any) {
	if l.debug {
		l.log("DBG", format, args...)
	}
}

func (l cliLogger) Info(format string, args ...any) {
	if l.debug {
		l.log("INF", format, args...)
	}
}

func (l cliLogger) Warn(format string, args ...any) {
	l.log("WRN", format, args...)
}

func (l cliLogger) Error(format string, args ...any) {
	l.log("ERR", format, args...)
}
