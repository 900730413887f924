// Package httpclient はゲートウェイから上流サービスへのHTTP通信を行うクライアントを提供する。
//
// 認証済みリクエストの転送と、CLIからのJSON APIの呼び出しで使用する。
// コンテキストに設定したユーザーIDはX-User-IDヘッダーとして伝播する。
package httpclient
