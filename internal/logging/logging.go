// Package logging はzapロガーの生成を提供する。
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New は実行環境に応じたロガーを生成する。
// development と dev では人が読みやすいコンソール形式、それ以外ではJSON形式で出力する。
func New(env string) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	switch env {
	case "development", "dev":
		logger, err = zap.NewDevelopment()
	default:
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("ロガーの生成に失敗: %w", err)
	}
	return logger.With(zap.String("env", env)), nil
}
