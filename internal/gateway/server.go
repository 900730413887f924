package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nao1215/authgate/internal/config"
	"github.com/nao1215/authgate/pkg/httpclient"
	"github.com/nao1215/authgate/pkg/middleware"
	"github.com/nao1215/authgate/pkg/token"
)

// serviceName はメトリクスとヘルスチェックで使うサービス名。
const serviceName = "gateway"

// 開発用トークンを要求されたときのデフォルトユーザー。
const (
	devUserEmail       = "dev@localhost"
	devUserDisplayName = "開発ユーザー"
)

// shutdownTimeout はRunがリクエストの完了を待つ最大時間。
const shutdownTimeout = 10 * time.Second

// Server はゲートウェイのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// db はSQLiteデータベース接続。
	db *sql.DB
	// users はユーザーの永続化を担当する。
	users *userStore
	// issuer は開発用トークンの発行に使う。
	issuer *token.Issuer
	// verifier は認証ゲートが使うトークン検証器。
	verifier middleware.TokenVerifier
	// upstream は /api 以下の転送先。未設定の場合はnil。
	upstream *httpclient.Client
	// staticDir は静的ファイルのルートディレクトリ。
	staticDir string
	// production は本番環境かどうか。
	production bool
	// registry はこのサーバー専用のPrometheusレジストリ。
	registry *prometheus.Registry
	// logger は構造化ロガー。
	logger *zap.Logger
}

// NewServer は新しいゲートウェイサーバーを生成する。
// データベースを開いてマイグレーションを適用してからルーティングを構築する。
func NewServer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	db, err := openDB(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	return newServer(cfg, logger, db), nil
}

// newServer はオープン済みのデータベースを使ってサーバーを組み立てる。
func newServer(cfg config.Config, logger *zap.Logger, db *sql.DB) *Server {
	secret := []byte(cfg.AccessTokenSecret)

	var verifierOpts []token.VerifierOption
	if cfg.Issuer != "" {
		verifierOpts = append(verifierOpts, token.WithIssuer(cfg.Issuer))
	}

	var upstream *httpclient.Client
	if cfg.UpstreamURL != "" {
		upstream = httpclient.New(cfg.UpstreamURL, cfg.UpstreamTimeout)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		router:     gin.New(),
		port:       cfg.Port,
		db:         db,
		users:      &userStore{db: db},
		issuer:     token.NewIssuer(secret, cfg.AccessTokenTTL, cfg.Issuer),
		verifier:   token.NewVerifier(secret, verifierOpts...),
		upstream:   upstream,
		staticDir:  cfg.StaticDir,
		production: cfg.IsProduction(),
		registry:   registry,
		logger:     logger,
	}

	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Recovery(logger))
	s.router.Use(middleware.RequestLogger(logger))
	s.router.Use(middleware.NewMetrics(registry, serviceName).Handler())
	s.router.Use(middleware.CORS(cfg.AllowedOrigins))
	s.setupRoutes()

	return s
}

// Handler はサーバーのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxが終了するまでリクエストを処理する。
// ctxの終了後は処理中のリクエストの完了を待ってから戻る。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway started", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
	}
	s.logger.Info("gateway stopped")
	return nil
}

// Close はデータベース接続を閉じる。
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes はルーティングを設定する。
func (s *Server) setupRoutes() {
	authenticate := middleware.Authenticate(s.verifier)

	auth := s.router.Group("/auth")
	{
		// 本番環境では誰でもトークンを取得できてしまうため登録しない
		if !s.production {
			auth.POST("/dev-token", s.handleDevToken())
		}
		auth.GET("/me", authenticate, s.handleGetCurrentUser())
	}

	// 認証必須。パス以下をすべて上流サービスに転送する
	s.router.Any("/api/*path", authenticate, s.handleProxy())

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	s.router.NoRoute(s.handleStatic())
}

// devTokenRequest は開発用トークン発行リクエストのボディ。
type devTokenRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// handleDevToken は開発用トークンを発行するハンドラを返す。
// ボディは省略可能で、省略時は固定の開発ユーザーを使う。
func (s *Server) handleDevToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req devTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディが不正です"})
			return
		}
		if req.Email == "" {
			req.Email = devUserEmail
		}
		if req.DisplayName == "" {
			req.DisplayName = devUserDisplayName
		}

		u, err := s.users.upsertUser(c.Request.Context(), req.Email, req.DisplayName)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー作成に失敗しました"})
			return
		}

		signed, err := s.issuer.Issue(token.NumericUserID(u.ID))
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン生成に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":   signed,
			"user_id": u.ID,
		})
	}
}

// handleGetCurrentUser は認証済みユーザーの情報を返すハンドラを返す。
func (s *Server) handleGetCurrentUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		current, ok := middleware.GetUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		id, err := current.ID.Int64()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ユーザーIDの形式が不正です"})
			return
		}

		u, err := s.users.getUserByID(c.Request.Context(), id)
		if errors.Is(err, ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー取得に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, u)
	}
}
