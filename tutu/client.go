// Package tutu talks to the remote image-generation service: creating
// generation jobs, polling their shots, and fetching finished images.
package tutu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/sup-lh/wechat-tool/internal/fsstore"
)

// ShotCompleted is the terminal status of a finished shot.
const ShotCompleted = "COMPLETED"

// ConfigFromViper assembles the client configuration from the standard
// tutu.* keys.
func ConfigFromViper() Config {
	return Config{
		BaseURL:     viper.GetString("tutu.base_url"),
		APIKey:      viper.GetString("tutu.api_key"),
		WorkspaceID: viper.GetInt("tutu.workspace_id"),
		ShotCount:   viper.GetInt("tutu.shot_count"),
		QuickMode:   viper.GetBool("tutu.quick_mode"),
		Seed:        viper.GetString("tutu.seed"),
	}
}

type Config struct {
	BaseURL     string
	APIKey      string
	WorkspaceID int
	ShotCount   int
	QuickMode   bool
	Seed        string
}

// Job describes a created generation job.
type Job struct {
	ID      string
	Status  string
	Message string
}

// Shot is one frame of a generation job.
type Shot struct {
	Index       int    `json:"shotIndex"`
	Status      string `json:"status"`
	ImageURL    string `json:"imageUrl"`
	FinalPrompt string `json:"finalPrompt"`
}

func (s Shot) Completed() bool { return s.Status == ShotCompleted }

type Client struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, client: httpClient, logger: logger}
}

type createJobRequest struct {
	WorkspaceID int    `json:"workspaceId"`
	ShotCount   int    `json:"shotCount"`
	QuickMode   bool   `json:"quickMode"`
	Seed        string `json:"seed"`
	Title       string `json:"title"`
	Plot        string `json:"plot"`
}

type createJobResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		ID     json.Number `json:"id"`
		Status string      `json:"status"`
	} `json:"data"`
}

type shotsResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    []Shot `json:"data"`
}

// CreateJob submits a new generation job and returns its descriptor.
func (c *Client) CreateJob(ctx context.Context, title string, plot string) (Job, error) {
	payload := createJobRequest{
		WorkspaceID: c.cfg.WorkspaceID,
		ShotCount:   c.cfg.ShotCount,
		QuickMode:   c.cfg.QuickMode,
		Seed:        c.cfg.Seed,
		Title:       title,
		Plot:        plot,
	}
	var resp createJobResponse
	if err := c.postJSON(ctx, c.cfg.BaseURL+"/creation/workspace", payload, &resp); err != nil {
		return Job{}, err
	}
	if resp.Code != 200 {
		return Job{}, fmt.Errorf("tutu create job failed: %d %s", resp.Code, resp.Message)
	}
	return Job{
		ID:      resp.Data.ID.String(),
		Status:  resp.Data.Status,
		Message: resp.Message,
	}, nil
}

// JobShots queries the shots of a generation job.
func (c *Client) JobShots(ctx context.Context, workID string) ([]Shot, error) {
	url := fmt.Sprintf("%s/work/%s/shots", c.cfg.BaseURL, workID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tutu shots query failed: status %d", resp.StatusCode)
	}
	var data shotsResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}
	return data.Data, nil
}

// DownloadImage fetches a generated image into dir and returns the local
// path. The caller owns the file and removes it when done.
func (c *Client) DownloadImage(ctx context.Context, imageURL string, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image download failed: status %d", resp.StatusCode)
	}

	if err := fsstore.EnsureDir(dir, 0); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "tutu_"+uuid.NewString()+".jpg")
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
	c.logger.Debug("tutu_image_downloaded", "url", imageURL, "path", path)
	return path, nil
}

func (c *Client) postJSON(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tutu request failed: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
