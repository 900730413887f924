package gateway

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/nao1215/authgate/pkg/migration"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// ErrUserNotFound は指定したユーザーが存在しないことを表す。
var ErrUserNotFound = errors.New("user not found")

// user はusersテーブルの1行。
type user struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// userStore はSQLiteに保存されたユーザーを読み書きする。
type userStore struct {
	db *sql.DB
}

// openDB はSQLiteデータベースを開き、マイグレーションを適用する。
// pathが ":memory:" の場合は接続ごとにDBが分かれないよう接続数を1に制限する。
func openDB(ctx context.Context, path string) (*sql.DB, error) {
	inMemory := path == ":memory:"
	dsn := path
	if !inMemory {
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if inMemory {
		db.SetMaxOpenConns(1)
	}

	if _, err := migration.Run(ctx, db, migrationFS, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return db, nil
}

// upsertUser はメールアドレスでユーザーを探し、無ければ作成する。
// 既存ユーザーの場合は最終ログイン日時だけを更新する。
func (s *userStore) upsertUser(ctx context.Context, email, displayName string) (user, error) {
	var u user
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, display_name) VALUES (?, ?)
		ON CONFLICT(email) DO UPDATE SET last_login_at = datetime('now')
		RETURNING id, email, display_name
	`, email, displayName).Scan(&u.ID, &u.Email, &u.DisplayName)
	if err != nil {
		return user{}, fmt.Errorf("ユーザーの保存に失敗: %w", err)
	}
	return u, nil
}

// getUserByID はIDでユーザーを取得する。存在しない場合はErrUserNotFoundを返す。
func (s *userStore) getUserByID(ctx context.Context, id int64) (user, error) {
	var u user
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, display_name FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Email, &u.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return user{}, ErrUserNotFound
	}
	if err != nil {
		return user{}, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	return u, nil
}
