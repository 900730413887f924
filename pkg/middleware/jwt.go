package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/authgate/pkg/token"
)

var (
	// ErrMissingCredential はAuthorizationヘッダーからトークンを取り出せなかったことを表す。
	ErrMissingCredential = errors.New("authorization token required")
	// ErrInvalidCredential はトークンの検証に失敗したことを表す。
	ErrInvalidCredential = errors.New("invalid or expired token")
)

// 認証失敗時のレスポンスメッセージ。クライアントとの契約なので変更しないこと。
const (
	msgMissingCredential = "Authorization token required"
	msgInvalidCredential = "Invalid or expired token"
)

// contextKeyUser はGinコンテキストに認証済みユーザーを格納するキー。
const contextKeyUser = "user"

// TokenVerifier はアクセストークンを検証してクレームを返す。
// token.Verifier が標準の実装。
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*token.Claims, error)
}

// User はリクエストに紐づく認証済みユーザー。
type User struct {
	// ID はトークンのidクレーム。
	ID token.UserID `json:"id"`
}

// Authenticate はBearerトークンを検証するGinミドルウェアを返す。
//
// トークンが無い場合は401、検証に失敗した場合は403を返して以降のハンドラを呼ばない。
// 成功した場合はユーザーをコンテキストに設定し、c.Next()を一度だけ呼ぶ。
// 失敗理由はc.Errorで記録するだけで、このミドルウェア自身はログを出力しない。
func Authenticate(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerCredential(c.GetHeader("Authorization"))
		if !ok {
			_ = c.Error(ErrMissingCredential)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": msgMissingCredential,
			})
			return
		}

		claims, err := verifier.Verify(c.Request.Context(), raw)
		if err != nil || claims == nil {
			_ = c.Error(errors.Join(ErrInvalidCredential, err))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"valid": false,
				"error": msgInvalidCredential,
			})
			return
		}

		user := User{ID: claims.UserID}
		c.Set(contextKeyUser, user)
		c.Request = c.Request.WithContext(WithUser(c.Request.Context(), user))
		c.Next()
	}
}

// bearerCredential は "<Scheme> <token>" 形式のヘッダー値から2番目の要素を取り出す。
// スキーム名は検証しない。2番目の要素が無い場合はトークン無しとして扱う。
func bearerCredential(header string) (string, bool) {
	fields := strings.Fields(header)
	if len(fields) < 2 {
		return "", false
	}
	return fields[1], true
}

// GetUser はGinコンテキストから認証済みユーザーを取得する。
// Authenticateミドルウェアが事前に適用されている必要がある。
func GetUser(c *gin.Context) (User, bool) {
	v, ok := c.Get(contextKeyUser)
	if !ok {
		return User{}, false
	}
	user, ok := v.(User)
	return user, ok
}

// GetUserID はGinコンテキストからユーザーIDの文字列表現を取得する。
// 未認証の場合は空文字列を返す。
func GetUserID(c *gin.Context) string {
	user, ok := GetUser(c)
	if !ok {
		return ""
	}
	return user.ID.String()
}

// userContextKey はcontext.Contextに認証済みユーザーを格納するキーの型。
type userContextKey struct{}

// WithUser はコンテキストに認証済みユーザーを設定する。
func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext はコンテキストから認証済みユーザーを取得する。
func UserFromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(userContextKey{}).(User)
	return user, ok
}
