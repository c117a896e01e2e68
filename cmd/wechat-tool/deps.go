package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/viper"

	"github.com/sup-lh/wechat-tool/accounts"
	"github.com/sup-lh/wechat-tool/internal/logutil"
	"github.com/sup-lh/wechat-tool/internal/statepaths"
	"github.com/sup-lh/wechat-tool/ledger"
	"github.com/sup-lh/wechat-tool/session"
	"github.com/sup-lh/wechat-tool/tutu"
	"github.com/sup-lh/wechat-tool/wechat"
)

// deps wires the stores and clients every subcommand shares.
type deps struct {
	logger   *slog.Logger
	accounts *accounts.Store
	registry *ledger.Registry
	sessions *session.Store
	platform *wechat.Client
	images   *tutu.Client
}

func buildDeps() (*deps, error) {
	logger, err := logutil.LoggerFromViper()
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: viper.GetDuration("wechat.timeout")}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 60 * time.Second
	}

	return &deps{
		logger:   logger,
		accounts: accounts.NewStore(statepaths.AccountsPath()),
		registry: ledger.NewRegistry(statepaths.LedgerPath(), ledger.Options{}),
		sessions: session.NewStore(session.Options{
			AdminPassword:   viper.GetString("admin.password"),
			AdminTTL:        viper.GetDuration("admin.session_ttl"),
			ConversationTTL: viper.GetDuration("conversation.ttl"),
			TitleTTL:        viper.GetDuration("titles.ttl"),
			MediaHighWater:  viper.GetInt("media_cache.high_water"),
			MediaEvict:      viper.GetInt("media_cache.evict"),
		}),
		platform: wechat.NewClient(httpClient, logger),
		images:   tutu.NewClient(tutu.ConfigFromViper(), httpClient, logger),
	}, nil
}
