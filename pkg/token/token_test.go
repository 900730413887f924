package token

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// testSecret はテスト用の共有シークレット。
var testSecret = []byte("test-secret-key-for-unit-tests")

// signClaims はテスト用に任意のクレームをHS256で署名する。
func signClaims(t *testing.T, claims jwt.Claims, secret []byte) string {
	t.Helper()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("トークンの署名に失敗: %v", err)
	}
	return signed
}

// TestUserIDJSON はUserIDのJSON表現を検証する。
func TestUserIDJSON(t *testing.T) {
	t.Parallel()

	t.Run("数値IDは数値のまま往復すること", func(t *testing.T) {
		t.Parallel()

		var id UserID
		if err := json.Unmarshal([]byte(`123`), &id); err != nil {
			t.Fatalf("Unmarshal()でエラーが発生: %v", err)
		}
		if id != NumericUserID(123) {
			t.Errorf("id = %#v, want %#v", id, NumericUserID(123))
		}

		out, err := json.Marshal(id)
		if err != nil {
			t.Fatalf("Marshal()でエラーが発生: %v", err)
		}
		if string(out) != `123` {
			t.Errorf("Marshal() = %s, want 123", out)
		}
	})

	t.Run("文字列IDは文字列のまま往復すること", func(t *testing.T) {
		t.Parallel()

		var id UserID
		if err := json.Unmarshal([]byte(`"user-abc"`), &id); err != nil {
			t.Fatalf("Unmarshal()でエラーが発生: %v", err)
		}
		if id.IsNumeric() {
			t.Error("文字列IDが数値として扱われた")
		}

		out, err := json.Marshal(id)
		if err != nil {
			t.Fatalf("Marshal()でエラーが発生: %v", err)
		}
		if string(out) != `"user-abc"` {
			t.Errorf("Marshal() = %s, want %q", out, "user-abc")
		}
	})

	t.Run("数字だけの文字列IDは文字列として保持されること", func(t *testing.T) {
		t.Parallel()

		var id UserID
		if err := json.Unmarshal([]byte(`"123"`), &id); err != nil {
			t.Fatalf("Unmarshal()でエラーが発生: %v", err)
		}
		if id != StringUserID("123") {
			t.Errorf("id = %#v, want %#v", id, StringUserID("123"))
		}
		if _, err := id.Int64(); err == nil {
			t.Error("文字列IDのInt64()はエラーを返すべき")
		}
	})

	t.Run("真偽値やオブジェクトはエラーになること", func(t *testing.T) {
		t.Parallel()

		for _, in := range []string{`true`, `{"a":1}`, `[1]`} {
			var id UserID
			if err := json.Unmarshal([]byte(in), &id); err == nil {
				t.Errorf("Unmarshal(%s)がエラーを返すべき", in)
			}
		}
	})

	t.Run("nullは未設定になること", func(t *testing.T) {
		t.Parallel()

		id := NumericUserID(1)
		if err := json.Unmarshal([]byte(`null`), &id); err != nil {
			t.Fatalf("Unmarshal()でエラーが発生: %v", err)
		}
		if !id.IsZero() {
			t.Errorf("id = %#v, want zero", id)
		}
	})

	t.Run("整数でない数値はInt64()でエラーになること", func(t *testing.T) {
		t.Parallel()

		var id UserID
		if err := json.Unmarshal([]byte(`1.5`), &id); err != nil {
			t.Fatalf("Unmarshal()でエラーが発生: %v", err)
		}
		if _, err := id.Int64(); err == nil {
			t.Error("Int64()がエラーを返すべき")
		}
	})
}

// TestIssuer はIssuerを検証する。
func TestIssuer(t *testing.T) {
	t.Parallel()

	t.Run("発行したトークンをVerifierで検証できること", func(t *testing.T) {
		t.Parallel()

		issuer := NewIssuer(testSecret, time.Hour, "authgate")
		raw, err := issuer.Issue(NumericUserID(123))
		if err != nil {
			t.Fatalf("Issue()でエラーが発生: %v", err)
		}

		claims, err := NewVerifier(testSecret, WithIssuer("authgate")).Verify(context.Background(), raw)
		if err != nil {
			t.Fatalf("Verify()でエラーが発生: %v", err)
		}
		if claims.UserID != NumericUserID(123) {
			t.Errorf("UserID = %#v, want %#v", claims.UserID, NumericUserID(123))
		}
		if claims.Issuer != "authgate" {
			t.Errorf("Issuer = %q, want %q", claims.Issuer, "authgate")
		}
	})

	t.Run("有効期限がTTL後に設定されること", func(t *testing.T) {
		t.Parallel()

		fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		issuer := NewIssuer(testSecret, 15*time.Minute, "")
		issuer.now = func() time.Time { return fixed }

		raw, err := issuer.Issue(StringUserID("u-1"))
		if err != nil {
			t.Fatalf("Issue()でエラーが発生: %v", err)
		}

		claims := &Claims{}
		if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
			t.Fatalf("トークンのパースに失敗: %v", err)
		}
		if !claims.ExpiresAt.Time.Equal(fixed.Add(15 * time.Minute)) {
			t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt.Time, fixed.Add(15*time.Minute))
		}
		if !claims.IssuedAt.Time.Equal(fixed) {
			t.Errorf("IssuedAt = %v, want %v", claims.IssuedAt.Time, fixed)
		}
		if claims.Issuer != "" {
			t.Errorf("Issuer = %q, want empty", claims.Issuer)
		}
	})

	t.Run("空のIDでは発行できないこと", func(t *testing.T) {
		t.Parallel()

		_, err := NewIssuer(testSecret, time.Hour, "").Issue(UserID{})
		if !errors.Is(err, ErrMissingID) {
			t.Errorf("err = %v, want %v", err, ErrMissingID)
		}
	})
}

// TestVerifier はVerifierを検証する。
func TestVerifier(t *testing.T) {
	t.Parallel()

	t.Run("異なるシークレットで署名されたトークンは拒否されること", func(t *testing.T) {
		t.Parallel()

		raw, err := NewIssuer([]byte("other-secret"), time.Hour, "").Issue(NumericUserID(1))
		if err != nil {
			t.Fatalf("Issue()でエラーが発生: %v", err)
		}

		if _, err := NewVerifier(testSecret).Verify(context.Background(), raw); !errors.Is(err, jwt.ErrSignatureInvalid) {
			t.Errorf("err = %v, want %v", err, jwt.ErrSignatureInvalid)
		}
	})

	t.Run("期限切れトークンは拒否されること", func(t *testing.T) {
		t.Parallel()

		raw := signClaims(t, Claims{
			UserID: NumericUserID(1),
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		}, testSecret)

		if _, err := NewVerifier(testSecret).Verify(context.Background(), raw); !errors.Is(err, jwt.ErrTokenExpired) {
			t.Errorf("err = %v, want %v", err, jwt.ErrTokenExpired)
		}
	})

	t.Run("leeway内の期限切れは許容されること", func(t *testing.T) {
		t.Parallel()

		raw := signClaims(t, Claims{
			UserID: NumericUserID(1),
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-10 * time.Second)),
			},
		}, testSecret)

		if _, err := NewVerifier(testSecret, WithLeeway(time.Minute)).Verify(context.Background(), raw); err != nil {
			t.Errorf("Verify()でエラーが発生: %v", err)
		}
	})

	t.Run("expを持たないトークンは受理されること", func(t *testing.T) {
		t.Parallel()

		raw := signClaims(t, Claims{UserID: StringUserID("no-exp")}, testSecret)

		claims, err := NewVerifier(testSecret).Verify(context.Background(), raw)
		if err != nil {
			t.Fatalf("Verify()でエラーが発生: %v", err)
		}
		if claims.UserID.String() != "no-exp" {
			t.Errorf("UserID = %q, want %q", claims.UserID.String(), "no-exp")
		}
	})

	t.Run("idを持たないトークンは拒否されること", func(t *testing.T) {
		t.Parallel()

		raw := signClaims(t, jwt.MapClaims{"sub": "someone"}, testSecret)

		if _, err := NewVerifier(testSecret).Verify(context.Background(), raw); !errors.Is(err, ErrMissingID) {
			t.Errorf("err = %v, want %v", err, ErrMissingID)
		}
	})

	t.Run("HS256以外のアルゴリズムは拒否されること", func(t *testing.T) {
		t.Parallel()

		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{UserID: NumericUserID(1)}).SignedString(testSecret)
		if err != nil {
			t.Fatalf("トークンの署名に失敗: %v", err)
		}

		if _, err := NewVerifier(testSecret).Verify(context.Background(), raw); err == nil {
			t.Error("HS512トークンの検証がエラーを返すべき")
		}
	})

	t.Run("alg=noneのトークンは拒否されること", func(t *testing.T) {
		t.Parallel()

		raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: NumericUserID(1)}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		if err != nil {
			t.Fatalf("トークンの生成に失敗: %v", err)
		}

		if _, err := NewVerifier(testSecret).Verify(context.Background(), raw); err == nil {
			t.Error("alg=noneトークンの検証がエラーを返すべき")
		}
	})

	t.Run("issが一致しない場合は拒否されること", func(t *testing.T) {
		t.Parallel()

		raw, err := NewIssuer(testSecret, time.Hour, "someone-else").Issue(NumericUserID(1))
		if err != nil {
			t.Fatalf("Issue()でエラーが発生: %v", err)
		}

		if _, err := NewVerifier(testSecret, WithIssuer("authgate")).Verify(context.Background(), raw); !errors.Is(err, jwt.ErrTokenInvalidIssuer) {
			t.Errorf("err = %v, want %v", err, jwt.ErrTokenInvalidIssuer)
		}
	})

	t.Run("形式が不正なトークンは拒否されること", func(t *testing.T) {
		t.Parallel()

		for _, raw := range []string{"", "bad.token.value", "not-a-jwt"} {
			if _, err := NewVerifier(testSecret).Verify(context.Background(), raw); err == nil {
				t.Errorf("Verify(%q)がエラーを返すべき", raw)
			}
		}
	})

	t.Run("キャンセル済みのコンテキストではエラーになること", func(t *testing.T) {
		t.Parallel()

		raw, err := NewIssuer(testSecret, time.Hour, "").Issue(NumericUserID(1))
		if err != nil {
			t.Fatalf("Issue()でエラーが発生: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := NewVerifier(testSecret).Verify(ctx, raw); !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want %v", err, context.Canceled)
		}
	})

	t.Run("同じトークンを繰り返し検証しても同じクレームが得られること", func(t *testing.T) {
		t.Parallel()

		raw, err := NewIssuer(testSecret, time.Hour, "").Issue(NumericUserID(42))
		if err != nil {
			t.Fatalf("Issue()でエラーが発生: %v", err)
		}

		v := NewVerifier(testSecret)
		first, err := v.Verify(context.Background(), raw)
		if err != nil {
			t.Fatalf("1回目のVerify()でエラーが発生: %v", err)
		}
		second, err := v.Verify(context.Background(), raw)
		if err != nil {
			t.Fatalf("2回目のVerify()でエラーが発生: %v", err)
		}
		if first.UserID != second.UserID {
			t.Errorf("UserIDが一致しない: %#v != %#v", first.UserID, second.UserID)
		}
	})

	t.Run("シークレットのスライスを変更しても検証結果が変わらないこと", func(t *testing.T) {
		t.Parallel()

		secret := []byte("mutable-secret")
		v := NewVerifier(secret)
		raw, err := NewIssuer([]byte("mutable-secret"), time.Hour, "").Issue(NumericUserID(7))
		if err != nil {
			t.Fatalf("Issue()でエラーが発生: %v", err)
		}

		secret[0] = 'X'

		if _, err := v.Verify(context.Background(), raw); err != nil {
			t.Errorf("Verify()でエラーが発生: %v", err)
		}
	})

	t.Run("複数のゴルーチンから同時に検証できること", func(t *testing.T) {
		t.Parallel()

		v := NewVerifier(testSecret)
		issuer := NewIssuer(testSecret, time.Hour, "")

		var wg sync.WaitGroup
		for i := range 50 {
			wg.Add(1)
			go func(n int64) {
				defer wg.Done()

				raw, err := issuer.Issue(NumericUserID(n))
				if err != nil {
					t.Errorf("Issue()でエラーが発生: %v", err)
					return
				}
				claims, err := v.Verify(context.Background(), raw)
				if err != nil {
					t.Errorf("Verify()でエラーが発生: %v", err)
					return
				}
				if claims.UserID != NumericUserID(n) {
					t.Errorf("UserID = %#v, want %#v", claims.UserID, NumericUserID(n))
				}
			}(int64(i + 1))
		}
		wg.Wait()
	})
}
