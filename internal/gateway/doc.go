// Package gateway は認証ゲートを前段に置いたHTTPゲートウェイを提供する。
//
// 開発用トークンの発行、認証済みユーザー情報の取得、/api 以下の上流サービスへの
// 転送、フロントエンドの静的ファイル配信を担当する。/auth/me と /api 以下は
// middleware.Authenticate を通過したリクエストだけが到達する。
package gateway
