// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// アクセストークンによる認証ゲート、リクエストID、構造化アクセスログ、
// Prometheusメトリクス、パニックリカバリ、CORS設定を含む。
package middleware
