package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/authgate/internal/config"
	"github.com/nao1215/authgate/pkg/httpclient"
	"github.com/nao1215/authgate/pkg/token"
)

// globalOptions は全サブコマンド共通のフラグ。
type globalOptions struct {
	configPath string
	secret     string
}

// load は設定ファイルと環境変数を読み込み、--secretが指定されていれば優先する。
func (o *globalOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.secret != "" {
		cfg.AccessTokenSecret = o.secret
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:          "tokengen",
		Short:        "ゲートウェイのアクセストークンを発行・検証する",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "設定ファイルのパス")
	root.PersistentFlags().StringVar(&opts.secret, "secret", "", "署名シークレット（省略時は設定ファイルと環境変数から読む）")

	root.AddCommand(
		newIssueCmd(opts),
		newVerifyCmd(opts),
		newCheckCmd(),
	)
	return root
}

func newIssueCmd(opts *globalOptions) *cobra.Command {
	var (
		id       string
		stringID bool
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "アクセストークンを発行する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("ttl") {
				ttl = cfg.AccessTokenTTL
			}

			userID, err := parseUserID(id, stringID)
			if err != nil {
				return err
			}

			signed, err := token.NewIssuer([]byte(cfg.AccessTokenSecret), ttl, cfg.Issuer).Issue(userID)
			if err != nil {
				return fmt.Errorf("トークンの発行に失敗: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), signed)
			return err
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "idクレームに設定するユーザーID")
	cmd.Flags().BoolVar(&stringID, "string-id", false, "IDを数値ではなく文字列として扱う")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "有効期間（省略時は設定のaccess_token_ttl、負の値で期限切れのトークン）")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

// parseUserID はフラグの値からユーザーIDを組み立てる。
func parseUserID(id string, stringID bool) (token.UserID, error) {
	if id == "" {
		return token.UserID{}, token.ErrMissingID
	}
	if stringID {
		return token.StringUserID(id), nil
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return token.UserID{}, fmt.Errorf("数値でないIDには --string-id を指定してください: %q", id)
	}
	return token.NumericUserID(n), nil
}

func newVerifyCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <token>",
		Short: "アクセストークンを検証してクレームを表示する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			var verifierOpts []token.VerifierOption
			if cfg.Issuer != "" {
				verifierOpts = append(verifierOpts, token.WithIssuer(cfg.Issuer))
			}

			claims, err := token.NewVerifier([]byte(cfg.AccessTokenSecret), verifierOpts...).Verify(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("Invalid or expired token: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), claims)
		},
	}
}

func newCheckCmd() *cobra.Command {
	var (
		url     string
		raw     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "起動中のゲートウェイの /auth/me にトークンを送信する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			header := http.Header{}
			header.Set("Authorization", "Bearer "+raw)

			var me map[string]any
			err := httpclient.New(url, timeout).GetJSON(ctx, "/auth/me", header, &me)
			var statusErr *httpclient.StatusError
			if errors.As(err, &statusErr) {
				return fmt.Errorf("ゲートウェイが %d を返しました: %s", statusErr.StatusCode, statusErr.Body)
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), me)
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://localhost:8080", "ゲートウェイのURL")
	cmd.Flags().StringVar(&raw, "token", "", "送信するアクセストークン")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "リクエストのタイムアウト")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

// writeJSON はvをインデント付きJSONでwに書き出す。
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
