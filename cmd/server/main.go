package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sonetyo/ledger/internal/auth"
	"github.com/sonetyo/ledger/internal/config"
	"github.com/sonetyo/ledger/internal/domain/activity"
	"github.com/sonetyo/ledger/internal/domain/ledger"
	"github.com/sonetyo/ledger/internal/events"
	"github.com/sonetyo/ledger/internal/mcp"
	"github.com/sonetyo/ledger/internal/metrics"
	"github.com/sonetyo/ledger/internal/sqlite"
	"github.com/sonetyo/ledger/internal/transport"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "add-key":
			err = addKey(cfg, os.Args[2:])
		case "issue-token":
			err = issueToken(os.Stdout, cfg, os.Args[2:])
		case "serve":
			err = serve(cfg)
		default:
			err = fmt.Errorf("unknown command %q (want serve, add-key or issue-token)", os.Args[1])
		}
	} else {
		err = serve(cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func serve(cfg config.Config) error {
	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logWriter := io.Writer(os.Stdout)
	if cfg.Transport.Mode == config.TransportStdio {
		logWriter = os.Stderr
	}
	if cfg.Log.Path != "" {
		fileWriter, file, err := newLogFileWriter(cfg.Log.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer file.Close()
			logWriter = fileWriter
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	outbox := events.New(cfg.Events.Buffer, m, logger,
		events.WithDeliveryTimeout(cfg.Events.DeliveryTimeout),
		events.WithDrainTimeout(cfg.Events.DrainTimeout),
	)
	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), logger)
	outbox.Subscribe(activitySvc)

	if cfg.Events.RedisURL != "" {
		client, err := events.NewRedisClient(ctx, cfg.Events.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		outbox.Subscribe(events.NewRedisPublisher(client, cfg.Events.RedisChannel))
		logger.Info("redis event fan-out enabled", "channel", cfg.Events.RedisChannel)
	}
	if len(cfg.Events.KafkaBrokers) > 0 {
		producer, err := events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic,
			kgo.RecordDeliveryTimeout(cfg.Events.DeliveryTimeout),
		)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := producer.Close(closeCtx); err != nil {
				logger.Warn("kafka flush failed", "error", err)
			}
		}()
		outbox.Subscribe(producer)
		logger.Info("kafka event stream enabled", "brokers", cfg.Events.KafkaBrokers)
	}

	registry := ledger.NewRegistry(ledger.Config{
		Store:  sqlite.NewLedgerRepository(db),
		Events: outbox,
		Logger: logger,
		Name:   cfg.Ledger.Name,
		Symbol: cfg.Ledger.Symbol,
	})
	if err := registry.Load(ctx); err != nil {
		return fmt.Errorf("restore ledger: %w", err)
	}
	m.SetRecords(registry.TotalRecords())

	// The outbox outlives the servers so events from in-flight requests are
	// still delivered during shutdown.
	outboxCtx, stopOutbox := context.WithCancel(context.WithoutCancel(ctx))
	outboxDone := make(chan struct{})
	go func() {
		defer close(outboxDone)
		_ = outbox.Run(outboxCtx)
	}()
	defer func() {
		stopOutbox()
		<-outboxDone
	}()

	resolver, err := newResolver(cfg, db)
	if err != nil {
		return err
	}

	handler := mcp.NewHandler(registry, activitySvc, m)
	mcpServer := mcp.NewServer(mcp.Config{
		Handler:         handler,
		Resolver:        resolver,
		AuthEnabled:     cfg.Auth.Enabled,
		DefaultIdentity: defaultIdentity(cfg),
		TransportMode:   cfg.Transport.Mode,
		Logger:          logger,
	})

	if cfg.Transport.Mode == config.TransportStdio {
		return runStdioMode(ctx, logger, mcpServer)
	}

	authMiddleware := transport.StaticIdentityMiddleware(defaultIdentity(cfg))
	if cfg.Auth.Enabled {
		authMiddleware = transport.AuthMiddleware(resolver)
	}
	opts := transport.Options{
		Handler: handler,
		Auth:    authMiddleware,
		MCP: sdkmcp.NewStreamableHTTPHandler(
			func(*http.Request) *sdkmcp.Server { return mcpServer },
			&sdkmcp.StreamableHTTPOptions{SessionTimeout: 30 * time.Minute},
		),
		Logger: logger,
	}
	if m != nil {
		opts.Metrics = m.Handler()
	}
	return runHTTPMode(ctx, logger, transport.NewServer(opts), cfg.Server.Host, cfg.Server.Port)
}

func runStdioMode(ctx context.Context, logger *slog.Logger, mcpServer *sdkmcp.Server) error {
	logger.Info("starting stdio transport", "auth", "disabled")

	// Run blocks until stdin closes or context is canceled
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	logger.Info("shutting down")
	return nil
}

func runHTTPMode(ctx context.Context, logger *slog.Logger, handler http.Handler, host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openDB(cfg config.Config) (*sqlite.DB, error) {
	if err := ensureDBDir(cfg.DB.Path); err != nil {
		return nil, fmt.Errorf("prepare database path: %w", err)
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// defaultIdentity is the caller used when requests are not authenticated.
// config.Validate rejects a blank one wherever it is needed.
func defaultIdentity(cfg config.Config) ledger.Identity {
	id, _ := ledger.ParseIdentity(cfg.Auth.DefaultIdentity)
	return id
}

func newResolver(cfg config.Config, db *sqlite.DB) (transport.IdentityResolver, error) {
	switch cfg.Auth.Mode {
	case config.AuthJWT:
		return auth.NewJWTResolver(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer), nil
	case config.AuthAPIKey:
		return sqlite.NewAPIKeyRepository(db), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
	}
}

// addKey generates a random API key for an identity and prints it once.
func addKey(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("add-key", flag.ContinueOnError)
	description := fs.String("description", "", "note stored with the key")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: add-key [-description text] <identity>")
	}
	identity, err := ledger.ParseIdentity(fs.Arg(0))
	if err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	token := hex.EncodeToString(buf)

	if err := sqlite.NewAPIKeyRepository(db).AddAPIKey(context.Background(), token, identity, *description); err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// issueToken signs a JWT for an identity with the configured secret.
func issueToken(out io.Writer, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: issue-token [-ttl 24h] <identity>")
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("SONETYO_JWT_SECRET is not set")
	}

	identity, err := ledger.ParseIdentity(fs.Arg(0))
	if err != nil {
		return err
	}

	token, err := auth.NewJWTResolver(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer).Issue(identity, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
