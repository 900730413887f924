// Package config はゲートウェイの設定を読み込む。
//
// デフォルト値、YAMLファイル、環境変数の順に値を上書きする。
// 読み込んだ設定は起動後に変更しない。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAccessTokenSecret は開発用のアクセストークン署名シークレット。
// productionでは使用できない。
const DefaultAccessTokenSecret = "dev-secret-key"

// EnvProduction は本番環境を表すEnvの値。
const EnvProduction = "production"

// Config はゲートウェイの設定。
type Config struct {
	// Env は実行環境（development, production など）。
	Env string `yaml:"env"`
	// Port はHTTPサーバーのリッスンポート。
	Port string `yaml:"port"`
	// AccessTokenSecret はアクセストークンの署名・検証に使う共有シークレット。
	AccessTokenSecret string `yaml:"access_token_secret"`
	// AccessTokenTTL は発行するアクセストークンの有効期間。
	AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
	// Issuer はissクレームの値。空の場合は付与も検証もしない。
	Issuer string `yaml:"issuer"`
	// DatabasePath はSQLiteデータベースのパス。
	DatabasePath string `yaml:"database_path"`
	// StaticDir はフロントエンドの静的ファイルを配信するディレクトリ。
	StaticDir string `yaml:"static_dir"`
	// UpstreamURL は /api 以下のリクエストの転送先。空の場合は転送しない。
	UpstreamURL string `yaml:"upstream_url"`
	// UpstreamTimeout は転送先へのリクエストのタイムアウト。
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default はデフォルト値の設定を返す。
func Default() Config {
	return Config{
		Env:               "development",
		Port:              "8080",
		AccessTokenSecret: DefaultAccessTokenSecret,
		AccessTokenTTL:    time.Hour,
		DatabasePath:      "/data/gateway.db",
		StaticDir:         "public",
		UpstreamTimeout:   30 * time.Second,
		AllowedOrigins:    []string{"http://localhost:3000"},
	}
}

// Load は設定を読み込む。pathが空文字列の場合はYAMLファイルを読まない。
// YAMLファイル中の ${VAR} は環境変数で展開される。
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile はYAMLファイルの値をcfgに上書きする。
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return fmt.Errorf("設定ファイルのパースに失敗: %w", err)
	}
	return nil
}

// applyEnv は環境変数の値をcfgに上書きする。設定されていない変数は無視する。
func applyEnv(cfg *Config, getenv func(string) string) error {
	cfg.Env = getEnvOr(getenv, "APP_ENV", cfg.Env)
	cfg.Port = getEnvOr(getenv, "PORT", cfg.Port)
	cfg.AccessTokenSecret = getEnvOr(getenv, "ACCESS_TOKEN_SECRET", cfg.AccessTokenSecret)
	cfg.Issuer = getEnvOr(getenv, "TOKEN_ISSUER", cfg.Issuer)
	cfg.DatabasePath = getEnvOr(getenv, "DATABASE_PATH", cfg.DatabasePath)
	cfg.StaticDir = getEnvOr(getenv, "STATIC_DIR", cfg.StaticDir)
	cfg.UpstreamURL = getEnvOr(getenv, "UPSTREAM_URL", cfg.UpstreamURL)

	var err error
	if cfg.AccessTokenTTL, err = getDurationOr(getenv, "ACCESS_TOKEN_TTL", cfg.AccessTokenTTL); err != nil {
		return err
	}
	if cfg.UpstreamTimeout, err = getDurationOr(getenv, "UPSTREAM_TIMEOUT", cfg.UpstreamTimeout); err != nil {
		return err
	}

	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	return nil
}

// Validate は設定値の整合性を検証する。
func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("portが設定されていません"))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("access_token_ttlは正の値である必要があります: %s", c.AccessTokenTTL))
	}
	if c.IsProduction() && (c.AccessTokenSecret == "" || c.AccessTokenSecret == DefaultAccessTokenSecret) {
		errs = append(errs, errors.New("productionではACCESS_TOKEN_SECRETの設定が必須です"))
	}
	return errors.Join(errs...)
}

// IsProduction は本番環境かどうかを返す。
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(getenv func(string) string, key, defaultValue string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOr(getenv func(string) string, key string, defaultValue time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("環境変数 %s の値が不正です: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
