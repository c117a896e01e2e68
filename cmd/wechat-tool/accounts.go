package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sup-lh/wechat-tool/accounts"
	"github.com/sup-lh/wechat-tool/internal/statepaths"
	"github.com/sup-lh/wechat-tool/publish"
)

func newBindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bind <name> <appid> <secret>",
		Short: "Validate and save a named account credential",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			name, appID, secret := args[0], args[1], args[2]
			token, _ := cmd.Flags().GetString("token")

			if err := d.platform.Validate(cmd.Context(), appID, secret); err != nil {
				return fmt.Errorf("credential validation failed: %w", err)
			}
			if err := d.accounts.SaveNamed(name, accounts.Account{AppID: appID, Secret: secret, Token: token}); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved account %q (appid %s)\n", name, appID)
			return nil
		},
	}
	cmd.Flags().String("token", "", "Message callback token (optional).")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved named accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			names, err := d.accounts.ListNamed()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No accounts saved.")
				return nil
			}
			for _, name := range names {
				account, _, err := d.accounts.GetNamed(name)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\tappid=%s\n", name, account.AppID)
			}
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a named account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			removed, err := d.accounts.DeleteNamed(args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("no account named %q", args[0])
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted account %q\n", args[0])
			return nil
		},
	}
}

func newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <name>",
		Short: "Test a named account's credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			account, ok, err := d.accounts.GetNamed(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no account named %q", args[0])
			}
			if err := d.platform.Validate(cmd.Context(), account.AppID, account.Secret); err != nil {
				return fmt.Errorf("connection test failed: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Account %q OK\n", args[0])
			return nil
		},
	}
}

func newPublishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish <name> <title> <content>",
		Short: "Publish an article to the draft box with a generated cover",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			name, title, content := args[0], args[1], args[2]
			author, _ := cmd.Flags().GetString("author")
			if strings.TrimSpace(author) == "" {
				author = viper.GetString("publish.default_author")
			}

			account, ok, err := d.accounts.GetNamed(name)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no account named %q", name)
			}

			ctx := cmd.Context()
			token, err := d.platform.AccessToken(ctx, account.AppID, account.Secret)
			if err != nil {
				return fmt.Errorf("access token: %w", err)
			}

			html, err := publish.RenderArticleHTML(content)
			if err != nil {
				return err
			}

			coverID := ""
			if coverPath, err := publish.GenerateCoverImage(statepaths.TempDir(), title); err != nil {
				d.logger.Warn("cover_generate_failed", "error", err)
			} else {
				defer os.Remove(coverPath)
				if coverID, err = d.platform.UploadMaterial(ctx, token, coverPath); err != nil {
					d.logger.Warn("cover_upload_failed", "error", err)
					coverID = ""
				}
			}

			draftID, err := d.platform.AddDraft(ctx, token, title, html, coverID, author)
			if err != nil {
				return fmt.Errorf("draft creation failed: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Draft created: %s\n", draftID)
			return nil
		},
	}
	cmd.Flags().String("author", "", "Article author (defaults to publish.default_author).")
	return cmd
}
