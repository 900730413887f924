package token

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VerifierOption はVerifierの検証条件を変更する。
type VerifierOption func(*verifierOptions)

type verifierOptions struct {
	issuer string
	leeway time.Duration
}

// WithIssuer はissクレームが指定値と一致することを要求する。
func WithIssuer(issuer string) VerifierOption {
	return func(o *verifierOptions) {
		o.issuer = issuer
	}
}

// WithLeeway は有効期限の判定に許容する時刻のずれを設定する。
func WithLeeway(d time.Duration) VerifierOption {
	return func(o *verifierOptions) {
		o.leeway = d
	}
}

// Verifier は共有シークレットでアクセストークンを検証する。
// 状態を変更しないため、複数のゴルーチンから同時に使用できる。
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier は新しいVerifierを生成する。
func NewVerifier(secret []byte, opts ...VerifierOption) *Verifier {
	var o verifierOptions
	for _, opt := range opts {
		opt(&o)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if o.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(o.issuer))
	}
	if o.leeway > 0 {
		parserOpts = append(parserOpts, jwt.WithLeeway(o.leeway))
	}

	return &Verifier{
		secret: append([]byte(nil), secret...),
		parser: jwt.NewParser(parserOpts...),
	}
}

// Verify はトークンの署名と有効期限を検証し、クレームを返す。
// ctxが既に終了している場合は検証を行わずにctx.Err()を返す。
func (v *Verifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("トークン検証が中断されました: %w", err)
	}

	claims := &Claims{}
	if _, err := v.parser.ParseWithClaims(raw, claims, func(_ *jwt.Token) (any, error) {
		return v.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("トークンの検証に失敗: %w", err)
	}
	return claims, nil
}
