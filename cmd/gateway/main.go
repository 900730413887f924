// ゲートウェイサービスのエントリポイント。
// 認証ゲートを通過したリクエストだけを上流サービスへ転送する。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/nao1215/authgate/internal/config"
	"github.com/nao1215/authgate/internal/gateway"
	"github.com/nao1215/authgate/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Error("設定が不正です", zap.Error(err))
		return err
	}
	if cfg.AccessTokenSecret == config.DefaultAccessTokenSecret {
		logger.Warn("開発用のACCESS_TOKEN_SECRETを使用しています。本番環境では必ず変更してください")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := gateway.NewServer(ctx, cfg, logger)
	if err != nil {
		logger.Error("Gatewayサーバーの初期化に失敗", zap.Error(err))
		return err
	}
	defer server.Close()

	if err := server.Run(ctx); err != nil {
		logger.Error("Gatewayサービスの実行に失敗", zap.Error(err))
		return err
	}
	return nil
}
