package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/makersgallery/internal/auth"
	"github.com/hitoshi/makersgallery/internal/config"
	"github.com/hitoshi/makersgallery/internal/contact"
	"github.com/hitoshi/makersgallery/internal/credential"
	"github.com/hitoshi/makersgallery/internal/database"
	"github.com/hitoshi/makersgallery/internal/docstore"
	"github.com/hitoshi/makersgallery/internal/favorites"
	"github.com/hitoshi/makersgallery/internal/handler"
	"github.com/hitoshi/makersgallery/internal/identity"
	"github.com/hitoshi/makersgallery/internal/logger"
	"github.com/hitoshi/makersgallery/internal/maker"
	"github.com/hitoshi/makersgallery/internal/metrics"
	"github.com/hitoshi/makersgallery/internal/middleware"
	"github.com/hitoshi/makersgallery/internal/repository"
	"github.com/hitoshi/makersgallery/internal/security"
	"github.com/hitoshi/makersgallery/internal/worker/reconcile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// errPostgresRequired はPostgreSQLが必要なサブコマンドをmemoryバックエンドで実行した場合のエラー。
var errPostgresRequired = errors.New("this command requires STORAGE_BACKEND=postgres")

// Init はアプリケーションの初期化を行う。
// .envがあれば読み込み、環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// ログレベルは設定読み込み後にLOG_LEVELで設定し直す。
func Init(w io.Writer) (*config.Config, error) {
	logger.SetupDefault(w, slog.LevelInfo)

	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, cfg.LogLevel)
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("storage_backend", string(cfg.StorageBackend)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandReconcile:
		return runReconcile(cfg)
	case CommandMigrate:
		return runMigrate(cfg, args[1:])
	default:
		return runServe(cfg)
	}
}

// storage は選択されたバックエンドのリポジトリとドキュメントストア。
type storage struct {
	accounts repository.AccountRepository
	sessions repository.SessionRepository
	store    docstore.Store
	db       *sql.DB // memoryの場合はnil
}

func (s *storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// healthChecker はDBがある場合のみPingを行うチェッカーを返す。
func (s *storage) healthChecker() handler.HealthChecker {
	if s.db == nil {
		return nil
	}
	return s.db
}

// openStorage はSTORAGE_BACKENDに応じてストレージを構築する。
func openStorage(cfg *config.Config) (*storage, error) {
	if cfg.StorageBackend == config.StorageMemory {
		slog.Warn("using in-memory storage; data is lost on restart")
		return &storage{
			accounts: repository.NewMemoryAccountRepo(),
			sessions: repository.NewMemorySessionRepo(),
			store:    docstore.NewMemoryStore(),
		}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("database connection established")

	return &storage{
		accounts: repository.NewPostgresAccountRepo(db),
		sessions: repository.NewPostgresSessionRepo(db),
		store:    docstore.NewPostgresStore(db),
		db:       db,
	}, nil
}

// newRegistry はプロセスとGoランタイムのメトリクスを含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// buildRouter は全依存関係をワイヤリングしたHTTPハンドラーを返す。
func buildRouter(cfg *config.Config, st *storage, reg *prometheus.Registry, collector metrics.MetricsCollector) (http.Handler, error) {
	// 1. 認証バックエンド
	backend := credential.NewService(st.accounts, st.sessions, credential.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
		BcryptCost:    cfg.BcryptCost,
	})
	mapper := identity.NewMapper(cfg.AuthAddressDomain, st.store)

	// 2. 制作者一覧
	directory, err := maker.Load(cfg.MakersFile, security.NewTextSanitizer())
	if err != nil {
		return nil, fmt.Errorf("failed to load makers: %w", err)
	}

	// 3. 問い合わせ転送
	guard := security.NewEndpointGuard()
	if err := guard.ValidateEndpoint(cfg.ContactEndpoint); err != nil {
		return nil, fmt.Errorf("invalid CONTACT_ENDPOINT: %w", err)
	}
	if cfg.ContactAccessKey == "" {
		slog.Warn("CONTACT_ACCESS_KEY is not set; contact submissions will be rejected upstream")
	}
	relay := contact.NewRelay(guard.NewClient(cfg.ContactTimeout), contact.Config{
		Endpoint:  cfg.ContactEndpoint,
		AccessKey: cfg.ContactAccessKey,
	}, collector)

	// 4. ページコンテキスト
	pages := handler.NewPageFactory(backend, mapper, st.store, favorites.NewToggleGuard(), collector, auth.Config{
		SignupRedirectDelay: cfg.SignupRedirectDelay,
		LoginRedirectDelay:  cfg.LoginRedirectDelay,
	})

	// 5. ルーター
	deps := &handler.RouterDeps{
		Backend:           backend,
		Logger:            slog.Default(),
		Collector:         collector,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		SessionCookie: middleware.SessionCookieConfig{
			Secure: cfg.CookieSecure,
			Domain: cfg.CookieDomain,
			MaxAge: cfg.SessionMaxAge,
		},
		Pages:          pages,
		Directory:      directory,
		Contact:        relay,
		WebRoot:        cfg.WebRoot,
		ProtectedPages: cfg.ProtectedPages,
		HealthChecker:  st.healthChecker(),
		Gatherer:       reg,
	}
	return handler.NewRouter(deps), nil
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
// memoryバックエンドでは整合性ジョブも同じプロセスで実行する。
func runServe(cfg *config.Config) error {
	st, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	reg := newRegistry()
	collector := metrics.NewCollector(reg)

	router, err := buildRouter(cfg, st, reg, collector)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("shutting down API server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if st.db == nil {
		job := reconcile.NewJob(st.store, st.sessions, slog.Default(), collector)
		eg.Go(func() error {
			job.Start(egCtx, cfg.ReconcileInterval)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return err
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 整合性ジョブをRECONCILE_INTERVALごとに実行し、シグナル受信で停止する。
func runWorker(cfg *config.Config) error {
	if cfg.StorageBackend == config.StorageMemory {
		return errPostgresRequired
	}

	st, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	job := reconcile.NewJob(st.store, st.sessions, slog.Default(), nil)

	slog.Info("worker starting", slog.Duration("reconcile_interval", cfg.ReconcileInterval))
	job.Start(ctx, cfg.ReconcileInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runReconcile は整合性ジョブを1回実行して終了する。
func runReconcile(cfg *config.Config) error {
	if cfg.StorageBackend == config.StorageMemory {
		return errPostgresRequired
	}

	st, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	job := reconcile.NewJob(st.store, st.sessions, slog.Default(), nil)
	if _, err := job.RunOnce(context.Background()); err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// argsは "migrate" 以降の引数。
func runMigrate(cfg *config.Config, args []string) error {
	if cfg.StorageBackend == config.StorageMemory {
		return errPostgresRequired
	}

	margs, err := ParseMigrateArgs(args)
	if err != nil {
		return err
	}

	slog.Info("running database migrations",
		slog.String("action", string(margs.Action)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch margs.Action {
	case MigrateDown:
		if err := database.RollbackMigrations(cfg.DatabaseURL, margs.Steps); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
		slog.Info("database migrations rolled back", slog.Int("steps", margs.Steps))
	case MigrateVersion:
		status, err := database.Status(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("migration status failed: %w", err)
		}
		slog.Info("database migration status",
			slog.Uint64("version", uint64(status.Version)),
			slog.Bool("dirty", status.Dirty),
		)
	default:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("database migrations completed successfully")
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLから認証情報とクエリを取り除いてログ用の文字列を返す。
// 解析できないURLは全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "***"
	}
	masked := u.Scheme + "://"
	if u.User != nil {
		masked += "***@"
	}
	return masked + u.Host + u.Path
}
