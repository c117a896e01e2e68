package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sup-lh/wechat-tool/bot"
	"github.com/sup-lh/wechat-tool/internal/statepaths"
	"github.com/sup-lh/wechat-tool/publish"
)

// serve runs the assistant as a long-lived process with a line-based
// console. Each input line is handled exactly like an inbound platform
// text message; the webhook envelope is terminated outside this tool.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant loop, reading messages from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			slog.SetDefault(d.logger)

			retention := viper.GetInt("ledger.retention_days")
			if removed, err := d.registry.PurgeOlderThan(retention); err != nil {
				d.logger.Warn("ledger_purge_failed", "error", err)
			} else if removed > 0 {
				d.logger.Info("ledger_purged", "removed", removed, "retention_days", retention)
			}

			orchestrator := publish.NewOrchestrator(
				d.registry, d.accounts, d.platform, d.images,
				publish.NewGoSpawner(d.logger), d.logger,
				publish.Options{
					TempDir:         statepaths.TempDir(),
					DownloadRetries: viper.GetInt("publish.download_retries"),
					RetryDelay:      viper.GetDuration("publish.retry_delay"),
				},
			)
			processor := bot.NewProcessor(
				d.sessions, d.accounts, d.registry, d.platform, d.images, orchestrator,
				d.logger, bot.Options{
					TempDir:   statepaths.TempDir(),
					ShotCount: viper.GetInt("tutu.shot_count"),
					QuickMode: viper.GetBool("tutu.quick_mode"),
				},
			)

			userID, _ := cmd.Flags().GetString("user")
			d.logger.Info("serve_started", "state_dir", statepaths.StateDir(), "user_id", userID)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			lines := make(chan string)
			go func() {
				defer close(lines)
				scanner := bufio.NewScanner(os.Stdin)
				scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
				for scanner.Scan() {
					lines <- scanner.Text()
				}
			}()

			out := cmd.OutOrStdout()
			for {
				select {
				case <-ctx.Done():
					d.logger.Info("serve_stopped")
					return nil
				case line, ok := <-lines:
					if !ok {
						d.logger.Info("serve_stopped")
						return nil
					}
					if strings.TrimSpace(line) == "" {
						continue
					}
					reply := processor.HandleText(ctx, userID, line)
					if reply != "" {
						_, _ = fmt.Fprintln(out, strings.ReplaceAll(reply, "\r\n", "\n"))
					}
				}
			}
		},
	}
	cmd.Flags().String("user", "console", "User ID the console messages are attributed to.")
	return cmd
}
