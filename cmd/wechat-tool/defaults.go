package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	// Global
	viper.SetDefault("file_state_dir", "~/.wechat-tool")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)

	// Admin channel
	viper.SetDefault("admin.password", "admin123456")
	viper.SetDefault("admin.session_ttl", 30*time.Minute)

	// Conversation flows
	viper.SetDefault("conversation.ttl", 300*time.Second)
	viper.SetDefault("titles.ttl", time.Hour)
	viper.SetDefault("media_cache.high_water", 1000)
	viper.SetDefault("media_cache.evict", 500)

	// Publishing
	viper.SetDefault("publish.default_author", "不存在的画廊")
	viper.SetDefault("publish.download_retries", 3)
	viper.SetDefault("publish.retry_delay", 2*time.Second)
	viper.SetDefault("ledger.retention_days", 7)

	// Image generation service
	viper.SetDefault("tutu.base_url", "https://tutu.aismrti.com/api/v1/supertutu")
	viper.SetDefault("tutu.api_key", "")
	viper.SetDefault("tutu.workspace_id", 2)
	viper.SetDefault("tutu.shot_count", 4)
	viper.SetDefault("tutu.quick_mode", true)
	viper.SetDefault("tutu.seed", "123123")

	// Official-account platform
	viper.SetDefault("wechat.timeout", 60*time.Second)
}
