package gateway

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/authgate/pkg/httpclient"
	"github.com/nao1215/authgate/pkg/middleware"
)

// forwardedHeaders は上流サービスにそのまま転送するリクエストヘッダー。
var forwardedHeaders = []string{
	"Authorization",
	"Content-Type",
	middleware.HeaderRequestID,
}

// handleProxy は /api 以下のリクエストを上流サービスに転送するハンドラを返す。
// パスとクエリは変更せずに転送し、認証済みユーザーのIDをX-User-IDヘッダーで渡す。
func (s *Server) handleProxy() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.upstream == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "転送先のサービスが設定されていません"})
			return
		}

		target := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			target += "?" + c.Request.URL.RawQuery
		}

		header := http.Header{}
		for _, name := range forwardedHeaders {
			if v := c.GetHeader(name); v != "" {
				header.Set(name, v)
			}
		}
		// RequestIDミドルウェアが採番した値はリクエストヘッダーには無い
		if id := middleware.GetRequestID(c); id != "" {
			header.Set(middleware.HeaderRequestID, id)
		}

		ctx := httpclient.WithUserID(c.Request.Context(), middleware.GetUserID(c))
		resp, err := s.upstream.Forward(ctx, c.Request.Method, target, header, c.Request.Body)
		if err != nil {
			_ = c.Error(fmt.Errorf("プロキシエラー: path=%s: %w", target, err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "内部サービスとの通信に失敗しました"})
			return
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "レスポンスの読み取りに失敗しました"})
			return
		}

		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/json"
		}
		c.Data(resp.StatusCode, contentType, body)
	}
}
