// Package bot is the conversational front of the tool: it routes inbound
// messages through the command grammar and drives account binding, image
// generation, and publishing flows.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/sup-lh/wechat-tool/accounts"
	"github.com/sup-lh/wechat-tool/command"
	"github.com/sup-lh/wechat-tool/ledger"
	"github.com/sup-lh/wechat-tool/publish"
	"github.com/sup-lh/wechat-tool/session"
	"github.com/sup-lh/wechat-tool/tutu"
)

const stateCoverSelection = "cover_selection"

// coverSelection is the pending-publish payload stored while the user
// picks a cover.
type coverSelection struct {
	Title    string
	Content  string
	Nickname string
	Author   string
	Account  accounts.Account
}

// Platform is the slice of the official-account API the bot calls
// directly (validation and the synchronous cover-selection publish).
type Platform interface {
	Validate(ctx context.Context, appID string, secret string) error
	AccessToken(ctx context.Context, appID string, secret string) (string, error)
	DownloadMedia(ctx context.Context, token string, mediaID string, dir string) (string, error)
	UploadMaterial(ctx context.Context, token string, path string) (string, error)
	AddDraft(ctx context.Context, token string, title string, content string, coverID string, author string) (string, error)
}

// Generator creates image-generation jobs and reports their shots.
type Generator interface {
	CreateJob(ctx context.Context, title string, plot string) (tutu.Job, error)
	JobShots(ctx context.Context, workID string) ([]tutu.Shot, error)
}

// Publisher admits and runs asynchronous work publishes.
type Publisher interface {
	Submit(ctx context.Context, req publish.Request) (int, publish.Handle, error)
}

type Processor struct {
	sessions  *session.Store
	accounts  *accounts.Store
	registry  *ledger.Registry
	platform  Platform
	generator Generator
	publisher Publisher
	logger    *slog.Logger
	tempDir   string
	shotCount int
	quickMode bool
	now       func() time.Time
}

type Options struct {
	TempDir   string
	ShotCount int
	QuickMode bool
	Now       func() time.Time
}

func NewProcessor(sessions *session.Store, accts *accounts.Store, registry *ledger.Registry, platform Platform, generator Generator, publisher Publisher, logger *slog.Logger, opts Options) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.ShotCount == 0 {
		opts.ShotCount = 4
	}
	return &Processor{
		sessions:  sessions,
		accounts:  accts,
		registry:  registry,
		platform:  platform,
		generator: generator,
		publisher: publisher,
		logger:    logger,
		tempDir:   opts.TempDir,
		shotCount: opts.ShotCount,
		quickMode: opts.QuickMode,
		now:       opts.Now,
	}
}

// HandleSubscribe greets a user who just followed the account.
func (p *Processor) HandleSubscribe(userID string) string {
	p.logger.Info("user_subscribed", "user_id", userID)
	return subscribeReply()
}

// HandleText processes one inbound text message and returns the reply.
// A live conversation state short-circuits normal dispatch: only the
// chat fallback's raw text reaches the flow handler, so command-looking
// input inside a flow is not executed as a command.
func (p *Processor) HandleText(ctx context.Context, userID string, text string) string {
	intent := command.Parse(text)

	if state, ok := p.sessions.GetConversationState(userID); ok {
		flowText := ""
		if chat, isChat := intent.(command.Chat); isChat {
			flowText = chat.Text
		}
		return p.resumeFlow(ctx, userID, state, flowText)
	}

	switch v := intent.(type) {
	case command.AdminLogin:
		return p.handleAdminLogin(userID, v)
	case command.AdminList:
		if !p.sessions.IsAdmin(userID) {
			return adminRequiredReply()
		}
		return p.handleAdminList()
	case command.AdminHelp:
		if p.sessions.IsAdmin(userID) {
			return adminHelpReply()
		}
		return userHelpReply()
	case command.AdminBind:
		if !p.sessions.IsAdmin(userID) {
			return adminRequiredReply()
		}
		return p.handleAdminBind(ctx, v)
	case command.AdminTest:
		if !p.sessions.IsAdmin(userID) {
			return adminRequiredReply()
		}
		return p.handleAdminTest(ctx, v)
	case command.AdminDelete:
		if !p.sessions.IsAdmin(userID) {
			return adminRequiredReply()
		}
		return p.handleAdminDelete(v)
	case command.AdminPublish:
		if !p.sessions.IsAdmin(userID) {
			return adminRequiredReply()
		}
		return p.handleAdminPublish(ctx, v)
	case command.AdminUnknown:
		return unknownReply(v.Command)

	case command.BindAccount:
		return p.handleBind(ctx, userID, v)
	case command.ListAccounts:
		return p.handleListAccounts(userID)
	case command.TestAccount:
		return p.handleTestAccount(ctx, userID, v)
	case command.PublishArticle:
		return p.handlePublishArticle(userID, v)
	case command.GenerateImage:
		return p.handleGenerateImage(ctx, v)
	case command.QueryWork:
		return p.handleQueryWork(ctx, v)
	case command.PublishWork:
		return p.handlePublishWork(ctx, userID, v)
	case command.QueryPublishResult:
		return p.handleQueryPublishResult(v)
	case command.FormatHelp:
		return formatHelpReply(v.Topic)

	case command.Greeting:
		return greetingReply()
	case command.Help:
		return userHelpReply()
	case command.Functions:
		return p.handleFunctions(userID)
	case command.TimeQuery:
		return timeReply(p.now())
	case command.StatusQuery:
		return p.handleStatus()
	case command.Chat:
		return chatReply(v.Text)
	default:
		return unknownReply(text)
	}
}

// HandleImage processes one inbound image message. Re-deliveries of the
// same media ID return an empty reply so the platform retry loop stays
// quiet.
func (p *Processor) HandleImage(ctx context.Context, userID string, picURL string, mediaID string) string {
	if p.sessions.IsMediaProcessed(mediaID) {
		p.logger.Debug("duplicate_media_ignored", "media_id", mediaID)
		return ""
	}
	p.sessions.MarkMediaProcessed(mediaID)

	state, ok := p.sessions.GetConversationState(userID)
	if ok && state.Tag == stateCoverSelection {
		if pending, valid := state.Payload.(coverSelection); valid {
			p.sessions.ClearConversationState(userID)
			return p.publishWithImageCover(ctx, userID, pending, mediaID)
		}
		p.sessions.ClearConversationState(userID)
		return stateBrokenReply()
	}

	p.logger.Info("image_received", "user_id", userID, "pic_url", picURL)
	return imageReceivedReply()
}

func (p *Processor) resumeFlow(ctx context.Context, userID string, state session.ConversationState, text string) string {
	if state.Tag != stateCoverSelection {
		p.sessions.ClearConversationState(userID)
		return stateBrokenReply()
	}
	pending, ok := state.Payload.(coverSelection)
	if !ok {
		p.sessions.ClearConversationState(userID)
		return stateBrokenReply()
	}

	if text == "0" {
		p.sessions.ClearConversationState(userID)
		return p.publishWithGeneratedCover(ctx, userID, pending)
	}
	return coverWaitingReply(pending.Title)
}

func (p *Processor) handleAdminLogin(userID string, v command.AdminLogin) string {
	if p.sessions.Authorize(userID, v.Password) {
		p.logger.Info("admin_granted", "user_id", userID)
		return adminGrantedReply()
	}
	return adminPasswordWrongReply()
}

func (p *Processor) handleAdminList() string {
	users, err := p.accounts.AllUsers()
	if err != nil {
		p.logger.Error("admin_list_failed", "error", err)
		return storeErrorReply()
	}
	return adminListReply(users)
}

func (p *Processor) handleAdminBind(ctx context.Context, v command.AdminBind) string {
	appID := v.Fields["appid"]
	secret := v.Fields["secret"]
	token := v.Fields["token"]
	if v.Name == "" || appID == "" || secret == "" {
		return adminBindUsageReply()
	}
	if err := p.platform.Validate(ctx, appID, secret); err != nil {
		p.logger.Warn("admin_bind_validate_failed", "name", v.Name, "error", err)
		return validateFailedReply()
	}
	account := accounts.Account{AppID: appID, Secret: secret, Token: token}
	if err := p.accounts.SaveNamed(v.Name, account); err != nil {
		p.logger.Error("admin_bind_save_failed", "name", v.Name, "error", err)
		return storeErrorReply()
	}
	return adminBindOKReply(v.Name, appID, secret, token)
}

func (p *Processor) handleAdminTest(ctx context.Context, v command.AdminTest) string {
	account, ok, err := p.accounts.GetNamed(v.Name)
	if err != nil {
		p.logger.Error("admin_test_load_failed", "name", v.Name, "error", err)
		return storeErrorReply()
	}
	if !ok {
		return namedNotFoundReply(v.Name)
	}
	if err := p.platform.Validate(ctx, account.AppID, account.Secret); err != nil {
		return testFailedReply(v.Name)
	}
	return testOKReply(v.Name)
}

func (p *Processor) handleAdminDelete(v command.AdminDelete) string {
	removed, err := p.accounts.DeleteNamed(v.Name)
	if err != nil {
		p.logger.Error("admin_delete_failed", "name", v.Name, "error", err)
		return storeErrorReply()
	}
	if !removed {
		return namedNotFoundReply(v.Name)
	}
	return adminDeleteOKReply(v.Name)
}

func (p *Processor) handleAdminPublish(ctx context.Context, v command.AdminPublish) string {
	title := v.Fields["title"]
	content := v.Fields["content"]
	author := v.Fields["author"]
	if author == "" {
		author = command.DefaultAuthor
	}
	if v.Name == "" || title == "" || content == "" {
		return adminPublishUsageReply()
	}
	account, ok, err := p.accounts.GetNamed(v.Name)
	if err != nil {
		p.logger.Error("admin_publish_load_failed", "name", v.Name, "error", err)
		return storeErrorReply()
	}
	if !ok {
		return namedNotFoundReply(v.Name)
	}
	pending := coverSelection{Title: title, Content: content, Nickname: v.Name, Author: author, Account: account}
	return p.publishWithGeneratedCover(ctx, "admin", pending)
}

func (p *Processor) handleBind(ctx context.Context, userID string, v command.BindAccount) string {
	p.logger.Info("bind_requested", "user_id", userID, "appid", v.AppID, "nickname", v.Nickname)
	if err := p.platform.Validate(ctx, v.AppID, v.Secret); err != nil {
		p.logger.Warn("bind_validate_failed", "user_id", userID, "error", err)
		return validateFailedReply()
	}
	account := accounts.Account{AppID: v.AppID, Secret: v.Secret}
	if err := p.accounts.SaveUser(userID, v.Nickname, account); err != nil {
		p.logger.Error("bind_save_failed", "user_id", userID, "error", err)
		return bindSaveFailedReply()
	}
	return bindOKReply(v.Nickname, v.AppID, v.Secret)
}

func (p *Processor) handleListAccounts(userID string) string {
	configs, err := p.accounts.ListUser(userID)
	if err != nil {
		p.logger.Error("list_accounts_failed", "user_id", userID, "error", err)
		return storeErrorReply()
	}
	return listAccountsReply(configs)
}

func (p *Processor) handleTestAccount(ctx context.Context, userID string, v command.TestAccount) string {
	account, ok, err := p.accounts.GetUser(userID, v.Nickname)
	if err != nil {
		p.logger.Error("test_account_load_failed", "user_id", userID, "error", err)
		return storeErrorReply()
	}
	if !ok {
		return userNotFoundReply(v.Nickname)
	}
	if err := p.platform.Validate(ctx, account.AppID, account.Secret); err != nil {
		return testFailedReply(v.Nickname)
	}
	return testOKReply(v.Nickname)
}

func (p *Processor) handlePublishArticle(userID string, v command.PublishArticle) string {
	account, ok, err := p.accounts.GetUser(userID, v.Nickname)
	if err != nil {
		p.logger.Error("publish_article_load_failed", "user_id", userID, "error", err)
		return storeErrorReply()
	}
	if !ok {
		return userNotFoundReply(v.Nickname)
	}

	p.logger.Info("publish_pending_cover", "user_id", userID, "title", v.Title, "author", v.Author)
	p.sessions.SetConversationState(userID, stateCoverSelection, coverSelection{
		Title:    v.Title,
		Content:  v.Content,
		Nickname: v.Nickname,
		Author:   v.Author,
		Account:  account,
	})
	return coverPromptReply(v.Title, v.Nickname, v.Author)
}

func (p *Processor) handleGenerateImage(ctx context.Context, v command.GenerateImage) string {
	job, err := p.generator.CreateJob(ctx, v.Title, v.Plot)
	if err != nil {
		p.logger.Error("generate_failed", "title", v.Title, "error", err)
		return generateFailedReply()
	}
	p.sessions.SetPendingTitle(job.ID, v.Title)
	p.logger.Info("generate_started", "work_id", job.ID, "title", v.Title)
	return generateStartedReply(job, v.Title, v.Plot, p.shotCount, p.quickMode)
}

func (p *Processor) handleQueryWork(ctx context.Context, v command.QueryWork) string {
	shots, err := p.generator.JobShots(ctx, v.WorkID)
	if err != nil {
		p.logger.Error("query_work_failed", "work_id", v.WorkID, "error", err)
		return queryWorkFailedReply(v.WorkID)
	}
	if len(shots) == 0 {
		return noShotsReply(v.WorkID)
	}

	completed := 0
	for _, shot := range shots {
		if shot.Completed() {
			completed++
		}
	}
	if completed == len(shots) {
		p.recordCompleted(v.WorkID, shots)
	}
	return shotsReply(v.WorkID, shots, completed)
}

// recordCompleted files the finished job into the ledger once every shot
// is terminal. Later queries leave the stored record alone.
func (p *Processor) recordCompleted(workID string, shots []tutu.Shot) {
	exists, err := p.registry.Exists(workID)
	if err != nil {
		p.logger.Error("ledger_lookup_failed", "work_id", workID, "error", err)
		return
	}
	if exists {
		return
	}

	title, ok := p.sessions.PendingTitle(workID)
	if !ok {
		title = "图图作品" + workID
	}
	records := make([]ledger.Shot, 0, len(shots))
	for _, shot := range shots {
		records = append(records, ledger.Shot{
			Index:       shot.Index,
			Completed:   shot.Completed(),
			ImageURL:    shot.ImageURL,
			Description: shot.FinalPrompt,
		})
	}
	if _, err := p.registry.RecordCompletedJob(workID, title, records); err != nil {
		p.logger.Error("ledger_record_failed", "work_id", workID, "error", err)
	}
}

func (p *Processor) handlePublishWork(ctx context.Context, userID string, v command.PublishWork) string {
	count, _, err := p.publisher.Submit(ctx, publish.Request{
		WorkID:   v.WorkID,
		UserID:   userID,
		Nickname: v.Nickname,
		Title:    v.Title,
		Author:   v.Author,
	})
	if err != nil {
		var dup *publish.DuplicateError
		switch {
		case errors.Is(err, publish.ErrUnknownWork):
			return workNotFoundReply(v.WorkID)
		case errors.As(err, &dup):
			return alreadyPublishedReply(v.WorkID, v.Title, dup.PublishedAt)
		case errors.Is(err, publish.ErrNoLinkedAccount):
			return userNotFoundReply(v.Nickname)
		case errors.Is(err, publish.ErrNoImages):
			return noImagesReply(v.WorkID)
		default:
			p.logger.Error("publish_work_failed", "work_id", v.WorkID, "error", err)
			return storeErrorReply()
		}
	}
	return publishAcceptedReply(v.WorkID, v.Title, v.Nickname, count)
}

func (p *Processor) handleQueryPublishResult(v command.QueryPublishResult) string {
	work, ok, err := p.registry.Get(v.WorkID)
	if err != nil {
		p.logger.Error("query_result_failed", "work_id", v.WorkID, "error", err)
		return storeErrorReply()
	}
	if !ok {
		return workNotFoundReply(v.WorkID)
	}
	return publishResultReply(v.WorkID, work)
}

func (p *Processor) handleFunctions(userID string) string {
	configs, err := p.accounts.ListUser(userID)
	if err != nil {
		p.logger.Error("functions_list_failed", "user_id", userID, "error", err)
		configs = nil
	}
	return functionsReply(configs)
}

func (p *Processor) handleStatus() string {
	named, err := p.accounts.ListNamed()
	if err != nil {
		p.logger.Error("status_accounts_failed", "error", err)
	}
	works, images, err := p.registry.Stats()
	if err != nil {
		p.logger.Error("status_ledger_failed", "error", err)
	}
	return statusReply(p.now(), len(named), works, images)
}

// publishWithGeneratedCover pushes the pending article to the draft box
// with a generated placeholder cover.
func (p *Processor) publishWithGeneratedCover(ctx context.Context, userID string, pending coverSelection) string {
	p.logger.Info("publish_generated_cover", "user_id", userID, "title", pending.Title)

	token, err := p.platform.AccessToken(ctx, pending.Account.AppID, pending.Account.Secret)
	if err != nil {
		p.logger.Error("publish_token_failed", "user_id", userID, "error", err)
		return tokenFailedReply(pending.Title)
	}

	coverID := ""
	coverPath, err := publish.GenerateCoverImage(p.tempDir, pending.Title)
	if err != nil {
		p.logger.Warn("cover_generate_failed", "error", err)
	} else {
		defer func() {
			if err := os.Remove(coverPath); err != nil {
				p.logger.Warn("temp_cleanup_failed", "path", coverPath, "error", err)
			}
		}()
		coverID, err = p.platform.UploadMaterial(ctx, token, coverPath)
		if err != nil {
			p.logger.Warn("cover_upload_failed", "error", err)
			coverID = ""
		}
	}

	return p.createDraft(ctx, token, pending, coverID, coverGeneratedInfo)
}

// publishWithImageCover uses an image the user sent in chat as the cover.
func (p *Processor) publishWithImageCover(ctx context.Context, userID string, pending coverSelection, mediaID string) string {
	p.logger.Info("publish_image_cover", "user_id", userID, "title", pending.Title, "media_id", mediaID)

	token, err := p.platform.AccessToken(ctx, pending.Account.AppID, pending.Account.Secret)
	if err != nil {
		p.logger.Error("publish_token_failed", "user_id", userID, "error", err)
		return tokenFailedReply(pending.Title)
	}

	coverID := ""
	localPath, err := p.platform.DownloadMedia(ctx, token, mediaID, p.tempDir)
	if err != nil {
		p.logger.Warn("cover_download_failed", "media_id", mediaID, "error", err)
	} else {
		defer func() {
			if err := os.Remove(localPath); err != nil {
				p.logger.Warn("temp_cleanup_failed", "path", localPath, "error", err)
			}
		}()
		coverID, err = p.platform.UploadMaterial(ctx, token, localPath)
		if err != nil {
			p.logger.Warn("cover_upload_failed", "error", err)
			coverID = ""
		}
	}

	info := coverCustomInfo
	if coverID == "" {
		info = coverDefaultInfo
	}
	return p.createDraft(ctx, token, pending, coverID, info)
}

func (p *Processor) createDraft(ctx context.Context, token string, pending coverSelection, coverID string, coverInfo string) string {
	content, err := publish.RenderArticleHTML(pending.Content)
	if err != nil {
		p.logger.Error("publish_render_failed", "title", pending.Title, "error", err)
		return publishFailedReply(pending.Title)
	}
	if _, err := p.platform.AddDraft(ctx, token, pending.Title, content, coverID, pending.Author); err != nil {
		p.logger.Error("publish_draft_failed", "title", pending.Title, "error", err)
		return publishFailedReply(pending.Title)
	}
	return publishOKReply(pending.Title, pending.Nickname, pending.Author, coverInfo)
}
