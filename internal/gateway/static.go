package gateway

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// handleStatic はどのルートにも一致しなかったリクエストに静的ファイルを返すハンドラを返す。
//
// 存在するファイルはそのまま返し、それ以外はSPAのためにindex.htmlを返す。
// /api 以下とGET/HEAD以外のメソッドは404のJSONを返す。
func (s *Server) handleStatic() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		urlPath := c.Request.URL.Path
		if (method != http.MethodGet && method != http.MethodHead) ||
			urlPath == "/api" || strings.HasPrefix(urlPath, "/api/") ||
			s.staticDir == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		// path.Cleanはルートより上に出ないので、staticDirの外は参照できない
		name := filepath.Join(s.staticDir, filepath.FromSlash(path.Clean("/"+urlPath)))
		if isFile(name) {
			c.File(name)
			return
		}

		index := filepath.Join(s.staticDir, "index.html")
		if !isFile(index) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.File(index)
	}
}

// isFile はnameが通常のファイルとして存在するかどうかを返す。
func isFile(name string) bool {
	info, err := os.Stat(name)
	return err == nil && info.Mode().IsRegular()
}
