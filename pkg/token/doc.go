// Package token はアクセストークン（HS256署名のJWT）の発行と検証を提供する。
//
// 署名用の共有シークレットはプロセス起動時に一度だけ読み込まれ、
// Issuer と Verifier の生成時に注入される。以降は読み取り専用であり、
// 両者は複数のリクエストから同時に利用できる。
package token
