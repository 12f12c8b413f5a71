package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/npezzotti/go-blogchat/internal/api"
	"github.com/npezzotti/go-blogchat/internal/auth"
	"github.com/npezzotti/go-blogchat/internal/config"
	"github.com/npezzotti/go-blogchat/internal/database"
	"github.com/npezzotti/go-blogchat/internal/preview"
	"github.com/npezzotti/go-blogchat/internal/server"
	"github.com/npezzotti/go-blogchat/internal/stats"
	"github.com/redis/go-redis/v9"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*s = append(*s, v)
		}
	}
	return nil
}

// envOr returns the value of the BLOGCHAT_ prefixed environment variable
// key, or def when it is unset.
func envOr(key, def string) string {
	if v, ok := os.LookupEnv("BLOGCHAT_" + key); ok {
		return v
	}
	return def
}

var (
	addr           string
	dsn            string
	signingKey     string
	allowedOrigins stringSliceFlag
	redisAddr      string
	filesDir       string
	previewTimeout time.Duration
	runMigrations  bool
)

func main() {
	flag.StringVar(&addr, "addr", envOr("ADDR", "localhost:8000"), "server address")
	flag.StringVar(&dsn, "dsn", envOr("DSN", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string")
	flag.StringVar(&signingKey, "signing-key", envOr("SIGNING_KEY", defaultSigningKey), "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.StringVar(&redisAddr, "redis-addr", envOr("REDIS_ADDR", ""), "redis address for the link preview cache, disabled when empty")
	flag.StringVar(&filesDir, "files-dir", envOr("FILES_DIR", "./uploads"), "directory served under /files")
	flag.DurationVar(&previewTimeout, "preview-timeout", 3*time.Second, "link preview fetch timeout")
	flag.BoolVar(&runMigrations, "migrate", false, "apply database migrations on startup")
	flag.Parse()

	if len(allowedOrigins) == 0 {
		allowedOrigins.Set(envOr("ALLOWED_ORIGINS", ""))
	}

	logger := log.New(os.Stderr, "[go-blogchat] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins,
		config.WithRedisAddr(redisAddr),
		config.WithFilesDir(filesDir),
		config.WithPreviewTimeout(previewTimeout),
	)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if runMigrations {
		if err := dbConn.Migrate(); err != nil {
			logger.Fatal("db migrate:", err)
		}
		logger.Println("database migrations applied")
	}

	var cache preview.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		cache = preview.NewRedisCache(rdb)
	}
	previews := preview.NewService(logger, cfg.PreviewTimeout, cache)

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	chatServer, err := server.NewChatServer(logger, dbConn, statsUpdater,
		server.WithAuthenticator(auth.NewTokenVerifier(cfg.SigningKey)),
		server.WithPreviewer(previews),
	)
	if err != nil {
		logger.Fatal("new chat server:", err)
	}

	srv := api.NewGoChatApp(mux, logger, chatServer, dbConn, previews, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go chatServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("chat server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
