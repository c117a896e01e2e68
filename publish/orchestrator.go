// Package publish runs the asynchronous pipeline that turns a finished
// image-generation job into an official-account draft.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sup-lh/wechat-tool/accounts"
	"github.com/sup-lh/wechat-tool/internal/retryutil"
	"github.com/sup-lh/wechat-tool/ledger"
)

// Platform is the subset of the official-account API the pipeline uses.
type Platform interface {
	AccessToken(ctx context.Context, appID string, secret string) (string, error)
	UploadMaterial(ctx context.Context, token string, path string) (string, error)
	UploadContentImage(ctx context.Context, token string, path string) (string, error)
	AddDraft(ctx context.Context, token string, title string, content string, coverID string, author string) (string, error)
}

// ImageSource downloads generated images to local files.
type ImageSource interface {
	DownloadImage(ctx context.Context, url string, dir string) (string, error)
}

var (
	ErrUnknownWork     = errors.New("publish: unknown work")
	ErrNoLinkedAccount = errors.New("publish: no account bound under that nickname")
	ErrNoImages        = errors.New("publish: work has no completed images")
)

// DuplicateError rejects a re-publish of a tuple that already succeeded.
type DuplicateError struct {
	PublishedAt time.Time
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("publish: already published at %s", e.PublishedAt.Format(time.RFC3339))
}

// Request identifies one publish attempt of a finished work.
type Request struct {
	WorkID   string
	UserID   string
	Nickname string
	Title    string
	Author   string
}

type Orchestrator struct {
	registry *ledger.Registry
	accounts *accounts.Store
	platform Platform
	images   ImageSource
	spawner  Spawner
	tempDir  string
	logger   *slog.Logger
	now      func() time.Time

	downloadRetries int
	retryDelay      time.Duration
}

type Options struct {
	TempDir string
	Now     func() time.Time

	// DownloadRetries bounds attempts per image; the generation service
	// serves freshly rendered files and the first fetch sometimes races
	// its storage backend.
	DownloadRetries int
	RetryDelay      time.Duration
}

func NewOrchestrator(registry *ledger.Registry, accts *accounts.Store, platform Platform, images ImageSource, spawner Spawner, logger *slog.Logger, opts Options) *Orchestrator {
	if spawner == nil {
		spawner = NewGoSpawner(logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.DownloadRetries <= 0 {
		opts.DownloadRetries = 1
	}
	return &Orchestrator{
		registry: registry,
		accounts: accts,
		platform: platform,
		images:   images,
		spawner:  spawner,
		tempDir:  opts.TempDir,
		logger:   logger,
		now:      opts.Now,

		downloadRetries: opts.DownloadRetries,
		retryDelay:      opts.RetryDelay,
	}
}

// Submit admits a publish request and, if accepted, starts the pipeline
// in the background. It returns the number of images that will be
// processed. Rejections come back as ErrUnknownWork, *DuplicateError,
// ErrNoLinkedAccount, or ErrNoImages.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (int, Handle, error) {
	work, ok, err := o.registry.Get(req.WorkID)
	if err != nil {
		return 0, nil, err
	}
	if !ok {
		return 0, nil, fmt.Errorf("%w: %s", ErrUnknownWork, req.WorkID)
	}

	prior, found, err := o.registry.FindPublishRecord(req.WorkID, req.UserID, req.Nickname, req.Title)
	if err != nil {
		return 0, nil, err
	}
	if found {
		return 0, nil, &DuplicateError{PublishedAt: prior.PublishedAt}
	}

	account, ok, err := o.accounts.GetUser(req.UserID, req.Nickname)
	if err != nil {
		return 0, nil, err
	}
	if !ok {
		return 0, nil, fmt.Errorf("%w: %s", ErrNoLinkedAccount, req.Nickname)
	}

	if len(work.ImageURLs) == 0 {
		return 0, nil, fmt.Errorf("%w: %s", ErrNoImages, req.WorkID)
	}

	handle := o.spawner.Spawn("publish:"+req.WorkID, func(taskCtx context.Context) {
		o.run(taskCtx, req, work, account)
	})
	return len(work.ImageURLs), handle, nil
}

func (o *Orchestrator) run(ctx context.Context, req Request, work ledger.WorkRecord, account accounts.Account) {
	log := o.logger.With("work_id", req.WorkID, "user_id", req.UserID, "nickname", req.Nickname)
	log.Info("publish_started", "images", len(work.ImageURLs))

	token, err := o.platform.AccessToken(ctx, account.AppID, account.Secret)
	if err != nil {
		log.Error("publish_token_failed", "error", err)
		return
	}

	var tempFiles []string
	defer func() {
		for _, path := range tempFiles {
			if err := os.Remove(path); err != nil {
				log.Warn("temp_cleanup_failed", "path", path, "error", err)
			}
		}
	}()

	stats := ledger.PublishStats{TotalImages: len(work.ImageURLs)}
	var uploaded []ArticleImage
	var coverLocal string

	for i, imageURL := range work.ImageURLs {
		var local string
		err := retryutil.Do(ctx, log, "image_download", o.downloadRetries, o.retryDelay, func(ctx context.Context) error {
			var downloadErr error
			local, downloadErr = o.images.DownloadImage(ctx, imageURL, o.tempDir)
			return downloadErr
		})
		if err != nil {
			log.Warn("image_download_failed", "url", imageURL, "error", err)
			stats.FailedDownloads = append(stats.FailedDownloads, ledger.Failure{URL: imageURL, Reason: err.Error()})
			continue
		}
		tempFiles = append(tempFiles, local)
		stats.Downloaded++

		remote, err := o.platform.UploadContentImage(ctx, token, local)
		if err != nil {
			log.Warn("image_upload_failed", "url", imageURL, "error", err)
			stats.FailedUploads = append(stats.FailedUploads, ledger.Failure{URL: imageURL, Reason: err.Error()})
			continue
		}
		stats.Uploaded++
		if coverLocal == "" {
			coverLocal = local
		}
		uploaded = append(uploaded, ArticleImage{URL: remote, Description: descriptionAt(work.Descriptions, i)})
	}

	if stats.Uploaded == 0 {
		log.Error("publish_aborted_no_uploads",
			"downloaded", stats.Downloaded, "total", stats.TotalImages)
		return
	}

	markdown := ImageArticleMarkdown(req.Title, uploaded)
	content, err := RenderArticleHTML(markdown)
	if err != nil {
		log.Error("publish_render_failed", "error", err)
		return
	}

	// Cover upload is best effort. A draft without a custom cover is
	// still worth keeping.
	coverID := ""
	if coverLocal != "" {
		coverID, err = o.platform.UploadMaterial(ctx, token, coverLocal)
		if err != nil {
			log.Warn("cover_upload_failed", "error", err)
			coverID = ""
		}
	}

	draftID, err := o.platform.AddDraft(ctx, token, req.Title, content, coverID, req.Author)
	if err != nil {
		log.Error("publish_draft_failed", "error", err)
		return
	}

	record := ledger.PublishRecord{
		UserID:      req.UserID,
		Nickname:    req.Nickname,
		Title:       req.Title,
		Author:      req.Author,
		PublishedAt: o.now(),
		Stats:       stats,
	}
	if err := o.registry.AppendPublishRecord(req.WorkID, record); err != nil {
		log.Error("publish_record_failed", "error", err)
		return
	}
	log.Info("publish_completed", "draft_id", draftID,
		"uploaded", stats.Uploaded, "downloaded", stats.Downloaded, "total", stats.TotalImages)
}

func descriptionAt(descriptions []string, i int) string {
	if i >= 0 && i < len(descriptions) {
		return descriptions[i]
	}
	return ""
}
