package token

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingID はクレームにユーザーIDが含まれていないことを表す。
var ErrMissingID = errors.New("クレームにidが含まれていません")

// UserID はトークンのペイロードに含まれる不透明なユーザー識別子。
// JSON上は数値または文字列のどちらでもよく、元の種類を保持したまま往復できる。
type UserID struct {
	value   string
	numeric bool
}

// NumericUserID は数値のユーザーIDを生成する。
func NumericUserID(n int64) UserID {
	return UserID{value: strconv.FormatInt(n, 10), numeric: true}
}

// StringUserID は文字列のユーザーIDを生成する。
func StringUserID(s string) UserID {
	return UserID{value: s}
}

// String はIDのテキスト表現を返す。
func (id UserID) String() string {
	return id.value
}

// IsNumeric はIDがJSON上で数値として表現されるかどうかを返す。
func (id UserID) IsNumeric() bool {
	return id.numeric
}

// IsZero はIDが未設定かどうかを返す。
func (id UserID) IsZero() bool {
	return id.value == ""
}

// Int64 は数値IDをint64として返す。文字列IDや整数でない数値の場合はエラーを返す。
func (id UserID) Int64() (int64, error) {
	if !id.numeric {
		return 0, fmt.Errorf("ユーザーID %q は数値ではありません", id.value)
	}
	n, err := strconv.ParseInt(id.value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("ユーザーID %q を整数に変換できません: %w", id.value, err)
	}
	return n, nil
}

// MarshalJSON はIDを元の種類（数値または文字列）でシリアライズする。
func (id UserID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON は数値または文字列のIDをデシリアライズする。
// nullは未設定のIDとして扱う。
func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = UserID{}
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("文字列IDのデシリアライズに失敗: %w", err)
		}
		*id = StringUserID(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("idは数値または文字列である必要があります: %w", err)
		}
		*id = UserID{value: n.String(), numeric: true}
		return nil
	}
}

// Claims はアクセストークンのクレーム（ペイロード）を表す。
type Claims struct {
	// UserID は認証済みユーザーの識別子。
	UserID UserID `json:"id"`
	jwt.RegisteredClaims
}

// Validate は署名・有効期限の検証後にjwtパッケージから呼び出される追加検証。
func (c *Claims) Validate() error {
	if c.UserID.IsZero() {
		return ErrMissingID
	}
	return nil
}
