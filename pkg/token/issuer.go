package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer はアクセストークンを発行する。
type Issuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewIssuer は新しいIssuerを生成する。
// issuerが空文字列の場合、issクレームは付与しない。
func NewIssuer(secret []byte, ttl time.Duration, issuer string) *Issuer {
	return &Issuer{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}
}

// Issue は指定したユーザーIDのアクセストークンを発行する。
func (i *Issuer) Issue(id UserID) (string, error) {
	if id.IsZero() {
		return "", ErrMissingID
	}

	now := i.now()
	claims := Claims{
		UserID: id,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    i.issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("アクセストークンの署名に失敗: %w", err)
	}
	return signed, nil
}
