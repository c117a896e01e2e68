// Package wechat is a thin client for the official-account platform
// API: credential exchange, material upload, and draft creation.
package wechat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/sup-lh/wechat-tool/internal/fsstore"
)

const defaultBaseURL = "https://api.weixin.qq.com"

type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{baseURL: defaultBaseURL, client: httpClient, logger: logger}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
}

// AccessToken exchanges an app credential for a short-lived access token.
func (c *Client) AccessToken(ctx context.Context, appID string, secret string) (string, error) {
	endpoint := fmt.Sprintf("%s/cgi-bin/token?grant_type=client_credential&appid=%s&secret=%s",
		c.baseURL, url.QueryEscape(appID), url.QueryEscape(secret))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var data tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", err
	}
	if data.AccessToken == "" {
		return "", fmt.Errorf("wechat token failed: %d %s", data.ErrCode, data.ErrMsg)
	}
	return data.AccessToken, nil
}

// Validate checks that a credential pair can obtain a token.
func (c *Client) Validate(ctx context.Context, appID string, secret string) error {
	_, err := c.AccessToken(ctx, appID, secret)
	return err
}

type uploadMaterialResponse struct {
	MediaID string `json:"media_id"`
	URL     string `json:"url"`
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// UploadMaterial uploads a permanent image material and returns its
// media id, used as a draft cover.
func (c *Client) UploadMaterial(ctx context.Context, token string, path string) (string, error) {
	endpoint := fmt.Sprintf("%s/cgi-bin/material/add_material?access_token=%s&type=image",
		c.baseURL, url.QueryEscape(token))

	var data uploadMaterialResponse
	if err := c.postImage(ctx, endpoint, path, &data); err != nil {
		return "", err
	}
	if data.MediaID == "" {
		return "", fmt.Errorf("wechat material upload failed: %d %s", data.ErrCode, data.ErrMsg)
	}
	return data.MediaID, nil
}

type uploadContentImageResponse struct {
	URL     string `json:"url"`
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// UploadContentImage uploads an image for use inside article bodies and
// returns the platform-hosted URL.
func (c *Client) UploadContentImage(ctx context.Context, token string, path string) (string, error) {
	endpoint := fmt.Sprintf("%s/cgi-bin/media/uploadimg?access_token=%s", c.baseURL, url.QueryEscape(token))

	var data uploadContentImageResponse
	if err := c.postImage(ctx, endpoint, path, &data); err != nil {
		return "", err
	}
	if data.URL == "" {
		return "", fmt.Errorf("wechat content image upload failed: %d %s", data.ErrCode, data.ErrMsg)
	}
	return data.URL, nil
}

// DownloadMedia fetches a temporary media item (an image the user sent
// in chat) into dir and returns the local path.
func (c *Client) DownloadMedia(ctx context.Context, token string, mediaID string, dir string) (string, error) {
	endpoint := fmt.Sprintf("%s/cgi-bin/media/get?access_token=%s&media_id=%s",
		c.baseURL, url.QueryEscape(token), url.QueryEscape(mediaID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("wechat media download failed: status %d", resp.StatusCode)
	}

	// Error responses come back as JSON instead of image bytes.
	if ct := resp.Header.Get("Content-Type"); ct == "application/json" || ct == "text/plain" {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("wechat media download failed: %s", bytes.TrimSpace(body))
	}

	if err := fsstore.EnsureDir(dir, 0); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "media_"+uuid.NewString()+".jpg")
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

type draftArticle struct {
	Title              string `json:"title"`
	Author             string `json:"author,omitempty"`
	Digest             string `json:"digest,omitempty"`
	Content            string `json:"content"`
	ThumbMediaID       string `json:"thumb_media_id,omitempty"`
	NeedOpenComment    int    `json:"need_open_comment"`
	OnlyFansCanComment int    `json:"only_fans_can_comment"`
}

type addDraftRequest struct {
	Articles []draftArticle `json:"articles"`
}

type addDraftResponse struct {
	MediaID string `json:"media_id"`
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// AddDraft creates a single-article draft and returns the draft media id.
func (c *Client) AddDraft(ctx context.Context, token string, title string, content string, coverID string, author string) (string, error) {
	endpoint := fmt.Sprintf("%s/cgi-bin/draft/add?access_token=%s", c.baseURL, url.QueryEscape(token))

	payload := addDraftRequest{Articles: []draftArticle{{
		Title:        title,
		Author:       author,
		Content:      content,
		ThumbMediaID: coverID,
	}}}
	// The platform rejects \uXXXX-escaped CJK in drafts, so keep the
	// payload unescaped.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var data addDraftResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", err
	}
	if data.MediaID == "" {
		return "", fmt.Errorf("wechat draft creation failed: %d %s", data.ErrCode, data.ErrMsg)
	}
	c.logger.Info("wechat_draft_created", "media_id", data.MediaID, "title", title)
	return data.MediaID, nil
}

func (c *Client) postImage(ctx context.Context, endpoint string, path string, out any) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("media", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(out)
}
