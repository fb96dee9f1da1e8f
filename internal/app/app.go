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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/flextime/internal/auth"
	"github.com/hitoshi/flextime/internal/blobstore"
	"github.com/hitoshi/flextime/internal/cache"
	"github.com/hitoshi/flextime/internal/checkin"
	"github.com/hitoshi/flextime/internal/config"
	"github.com/hitoshi/flextime/internal/database"
	"github.com/hitoshi/flextime/internal/handler"
	"github.com/hitoshi/flextime/internal/identity"
	"github.com/hitoshi/flextime/internal/insight"
	"github.com/hitoshi/flextime/internal/logger"
	"github.com/hitoshi/flextime/internal/metrics"
	"github.com/hitoshi/flextime/internal/middleware"
	"github.com/hitoshi/flextime/internal/remote"
	"github.com/hitoshi/flextime/internal/report"
	"github.com/hitoshi/flextime/internal/security"
	"github.com/hitoshi/flextime/internal/session"
	"github.com/hitoshi/flextime/internal/task"
)

// Init はアプリケーションの初期化を行う。
// 設定を読み込み、設定されたレベルと形式で構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, "info", "json")

	// 2. YAMLと環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定に従ってログを再構成する
	logger.SetupDefault(w, cfg.LogLevel, cfg.LogFormat)

	return cfg, nil
}

// App はワイヤリング済みのコンポーネント一式。
// APIサーバーとCLIの両方が同じ構成を使う。
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry

	Remote   *remote.Client
	Cache    *cache.Cache
	Session  *session.Manager
	Tasks    *task.Service
	CheckIns *checkin.Service
	Reports  *report.Service

	db *sql.DB
}

// Build は設定から全依存関係を構築する。セッション管理はStartを呼ぶまで動作しない。
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	// 1. メトリクス
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	// 2. リモートAPIクライアントとキャッシュ
	remoteClient := remote.NewClient(remote.Config{
		BaseURL:    cfg.RemoteBaseURL,
		AuthHeader: cfg.RemoteAuthHeader,
		RateLimit:  cfg.RemoteRateLimit,
		RateBurst:  cfg.RemoteRateBurst,
	}, &http.Client{Timeout: cfg.RemoteTimeout}, log, collector)

	resourceCache, err := cache.New(remoteClient, cache.Options{
		MaxEntries: cfg.CacheMaxEntries,
		Logger:     log,
		Metrics:    collector,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	// 3. ブロブストア
	blobs, db, err := openBlobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// 4. 識別プロバイダーとセッション管理
	provider, err := newIdentityProvider(cfg, blobs, log)
	if err != nil {
		closeDB(db)
		return nil, err
	}
	manager := session.NewManager(
		provider,
		identity.NewStore(blobs, log),
		resourceCache,
		session.StaticUserID(cfg.RemoteUserID),
		log,
	)

	// 5. ドメインサービス
	fetcher := insight.NewFetcher(remoteClient, security.NewTextSanitizer(), log, collector)

	return &App{
		Config:   cfg,
		Logger:   log,
		Registry: reg,
		Remote:   remoteClient,
		Cache:    resourceCache,
		Session:  manager,
		Tasks:    task.NewService(resourceCache, log),
		CheckIns: checkin.NewService(resourceCache, checkin.Options{
			LegacyLocation: cfg.RemoteLegacyLocation,
			Logger:         log,
		}),
		Reports: report.NewService(resourceCache, fetcher, report.Options{Logger: log}),
		db:      db,
	}, nil
}

// Start はセッション管理を開始する。最初の認証状態はこの呼び出し中に処理される。
func (a *App) Start() {
	a.Session.Start()
}

// Close はセッション管理を停止し、DB接続を閉じる。
func (a *App) Close() error {
	a.Session.Stop()
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Router はローカルJSON APIのルーターを構築する。
func (a *App) Router(rl *middleware.RateLimiter) http.Handler {
	deps := &handler.RouterDeps{
		SessionSource:     a.Session,
		CORSAllowedOrigin: a.Config.CORSAllowedOrigin,
		RateLimiter:       rl,
		Logger:            a.Logger,
		MetricsHandler:    metrics.Handler(a.Registry),

		AuthService:    a.Session,
		TaskService:    a.Tasks,
		CheckInService: a.CheckIns,
		ReportService:  a.Reports,
		Versions:       a.Cache,
	}
	// nilの*sql.DBをインターフェースに入れないよう分岐する
	if a.db != nil {
		deps.HealthChecker = a.db
	}
	return handler.NewRouter(deps)
}

// openBlobStore は設定に応じたブロブストアを開く。PostgreSQLの場合のみDB接続を返す。
func openBlobStore(ctx context.Context, cfg *config.Config) (blobstore.Store, *sql.DB, error) {
	switch cfg.BlobStore {
	case config.BlobMemory:
		return blobstore.NewMemoryStore(), nil, nil
	case config.BlobFile:
		return blobstore.NewFileStore(cfg.BlobFilePath), nil, nil
	case config.BlobPostgres:
		db, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("database connection established",
			slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		)
		return blobstore.NewPostgresStore(db), db, nil
	default:
		return nil, nil, fmt.Errorf("unknown blob store %q", cfg.BlobStore)
	}
}

// newIdentityProvider は設定に応じた識別プロバイダーを生成する。
func newIdentityProvider(cfg *config.Config, blobs blobstore.Store, log *slog.Logger) (auth.IdentityProvider, error) {
	switch cfg.IdentityProvider {
	case config.IdentityLocal:
		return auth.NewLocalProvider(blobs, log), nil
	case config.IdentityPassword:
		return auth.NewPasswordProvider(auth.PasswordConfig{
			APIKey:     cfg.IdentityAPIKey,
			BaseURL:    cfg.IdentityBaseURL,
			HTTPClient: &http.Client{Timeout: cfg.RemoteTimeout},
			Persist:    blobs,
		}, log), nil
	default:
		return nil, fmt.Errorf("unknown identity provider %q", cfg.IdentityProvider)
	}
}

func closeDB(db *sql.DB) {
	if db != nil {
		db.Close()
	}
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}

// errNotSignedIn はセッションが必要なCLIコマンドを未ログインで実行した場合のエラー。
var errNotSignedIn = errors.New("not signed in: run `flextime login` first")
