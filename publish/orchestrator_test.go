package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sup-lh/wechat-tool/accounts"
	"github.com/sup-lh/wechat-tool/ledger"
)

type fakePlatform struct {
	mu            sync.Mutex
	tokenErr      error
	uploadFails   map[string]bool // by local file base name
	coverErr      error
	draftErr      error
	drafts        []string
	coverUploads  int
	contentCount  int
	uploadedPaths []string
}

func (f *fakePlatform) AccessToken(ctx context.Context, appID, secret string) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return "token-" + appID, nil
}

func (f *fakePlatform) UploadMaterial(ctx context.Context, token, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.coverErr != nil {
		return "", f.coverErr
	}
	f.coverUploads++
	return "cover-media-id", nil
}

func (f *fakePlatform) UploadContentImage(ctx context.Context, token, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contentCount++
	if f.uploadFails[filepath.Base(path)] {
		return "", errors.New("upload rejected")
	}
	f.uploadedPaths = append(f.uploadedPaths, path)
	return "https://cdn.example/" + filepath.Base(path), nil
}

func (f *fakePlatform) AddDraft(ctx context.Context, token, title, content, coverID, author string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.draftErr != nil {
		return "", f.draftErr
	}
	f.drafts = append(f.drafts, title)
	return "draft-media-id", nil
}

type fakeImages struct {
	mu    sync.Mutex
	fails map[string]bool // by remote URL
	count int
}

func (f *fakeImages) DownloadImage(ctx context.Context, url, dir string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	if f.fails[url] {
		return "", errors.New("download refused")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	name := strings.ReplaceAll(strings.TrimPrefix(url, "https://img.example/"), "/", "_")
	path := filepath.Join(dir, fmt.Sprintf("img_%s_%d", name, f.count))
	if err := os.WriteFile(path, []byte("jpeg-bytes"), 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
}

func newTestOrchestrator(t *testing.T, platform *fakePlatform, images *fakeImages, shots []ledger.Shot) (*Orchestrator, *ledger.Registry, string) {
	t.Helper()
	dir := t.TempDir()

	registry := ledger.NewRegistry(filepath.Join(dir, "works.json"), ledger.Options{Now: fixedNow})
	if len(shots) > 0 {
		if ok, err := registry.RecordCompletedJob("w1", "春日", shots); err != nil || !ok {
			t.Fatalf("RecordCompletedJob() = %v, %v", ok, err)
		}
	}

	accts := accounts.NewStore(filepath.Join(dir, "accounts.yaml"))
	err := accts.SaveUser("u1", "blog", accounts.Account{AppID: "wxappid", Secret: "wxsecret"})
	if err != nil {
		t.Fatalf("SaveUser() error = %v", err)
	}

	tempDir := filepath.Join(dir, "tmp")
	orch := NewOrchestrator(registry, accts, platform, images, SyncSpawner{}, nil, Options{
		TempDir: tempDir,
		Now:     fixedNow,
	})
	return orch, registry, tempDir
}

func completedShots(n int) []ledger.Shot {
	shots := make([]ledger.Shot, 0, n)
	for i := 1; i <= n; i++ {
		shots = append(shots, ledger.Shot{
			Index:       i,
			Completed:   true,
			ImageURL:    fmt.Sprintf("https://img.example/%d", i),
			Description: fmt.Sprintf("场景%d", i),
		})
	}
	return shots
}

func TestSubmitRejectsUnknownWork(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, &fakePlatform{}, &fakeImages{}, completedShots(2))

	_, _, err := orch.Submit(context.Background(), Request{WorkID: "missing", UserID: "u1", Nickname: "blog", Title: "t"})
	if !errors.Is(err, ErrUnknownWork) {
		t.Fatalf("Submit() error = %v, want ErrUnknownWork", err)
	}
}

func TestSubmitRejectsDuplicateTuple(t *testing.T) {
	orch, registry, _ := newTestOrchestrator(t, &fakePlatform{}, &fakeImages{}, completedShots(2))

	prior := ledger.PublishRecord{
		UserID:      "u1",
		Nickname:    "blog",
		Title:       "春日",
		PublishedAt: fixedNow().Add(-time.Hour),
	}
	if err := registry.AppendPublishRecord("w1", prior); err != nil {
		t.Fatalf("AppendPublishRecord() error = %v", err)
	}

	_, _, err := orch.Submit(context.Background(), Request{WorkID: "w1", UserID: "u1", Nickname: "blog", Title: "春日"})
	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("Submit() error = %v, want *DuplicateError", err)
	}
	if !dup.PublishedAt.Equal(prior.PublishedAt) {
		t.Fatalf("DuplicateError.PublishedAt = %v, want %v", dup.PublishedAt, prior.PublishedAt)
	}

	// Same work under a different title is a fresh tuple.
	if _, _, err := orch.Submit(context.Background(), Request{WorkID: "w1", UserID: "u1", Nickname: "blog", Title: "夏日"}); err != nil {
		t.Fatalf("Submit() with new title error = %v", err)
	}
}

func TestSubmitRejectsUnboundNickname(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, &fakePlatform{}, &fakeImages{}, completedShots(1))

	_, _, err := orch.Submit(context.Background(), Request{WorkID: "w1", UserID: "u1", Nickname: "other", Title: "t"})
	if !errors.Is(err, ErrNoLinkedAccount) {
		t.Fatalf("Submit() error = %v, want ErrNoLinkedAccount", err)
	}
}

func TestSubmitRejectsWorkWithoutImages(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, &fakePlatform{}, &fakeImages{}, nil)

	// A record with an empty image list can only come from an older or
	// hand-edited ledger file, so plant one directly.
	dir := t.TempDir()
	path := filepath.Join(dir, "works.json")
	raw := `{"version":1,"works":{"w-empty":{"title":"t","created_at":"2026-03-01T00:00:00Z","image_urls":[],"shot_descriptions":[]}}}`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	registry := ledger.NewRegistry(path, ledger.Options{Now: fixedNow})
	orch.registry = registry

	_, _, err := orch.Submit(context.Background(), Request{WorkID: "w-empty", UserID: "u1", Nickname: "blog", Title: "t"})
	if !errors.Is(err, ErrNoImages) {
		t.Fatalf("Submit() error = %v, want ErrNoImages", err)
	}
}

func TestRunFullSuccess(t *testing.T) {
	platform := &fakePlatform{}
	images := &fakeImages{}
	orch, registry, tempDir := newTestOrchestrator(t, platform, images, completedShots(3))

	count, handle, err := orch.Submit(context.Background(), Request{
		WorkID: "w1", UserID: "u1", Nickname: "blog", Title: "春日", Author: "作者",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-handle.Done()
	if count != 3 {
		t.Fatalf("Submit() count = %d, want 3", count)
	}
	if len(platform.drafts) != 1 || platform.drafts[0] != "春日" {
		t.Fatalf("drafts = %v, want one titled 春日", platform.drafts)
	}
	if platform.coverUploads != 1 {
		t.Fatalf("coverUploads = %d, want 1", platform.coverUploads)
	}

	record, ok, err := registry.Get("w1")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if len(record.Published) != 1 {
		t.Fatalf("published records = %d, want 1", len(record.Published))
	}
	stats := record.Published[0].Stats
	if stats.TotalImages != 3 || stats.Downloaded != 3 || stats.Uploaded != 3 {
		t.Fatalf("stats = %+v, want 3/3/3", stats)
	}

	// Temp files are removed once the pipeline finishes.
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("temp dir has %d leftover files", len(entries))
	}
}

func TestRunPartialFailuresStillPublish(t *testing.T) {
	platform := &fakePlatform{uploadFails: map[string]bool{}}
	images := &fakeImages{fails: map[string]bool{"https://img.example/2": true}}
	orch, registry, _ := newTestOrchestrator(t, platform, images, completedShots(4))

	// Image 2 fails to download; image 3 downloads but fails to upload.
	images.fails["https://img.example/2"] = true
	platform.uploadFails["img_3_3"] = true

	_, handle, err := orch.Submit(context.Background(), Request{
		WorkID: "w1", UserID: "u1", Nickname: "blog", Title: "春日", Author: "作者",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-handle.Done()

	record, _, err := registry.Get("w1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(record.Published) != 1 {
		t.Fatalf("published records = %d, want 1", len(record.Published))
	}
	stats := record.Published[0].Stats
	if stats.TotalImages != 4 || stats.Downloaded != 3 || stats.Uploaded != 2 {
		t.Fatalf("stats = %+v, want total 4 downloaded 3 uploaded 2", stats)
	}
	if len(stats.FailedDownloads) != 1 || stats.FailedDownloads[0].URL != "https://img.example/2" {
		t.Fatalf("FailedDownloads = %+v", stats.FailedDownloads)
	}
	if len(stats.FailedUploads) != 1 {
		t.Fatalf("FailedUploads = %+v", stats.FailedUploads)
	}
}

func TestRunAbortsWhenNothingUploads(t *testing.T) {
	platform := &fakePlatform{}
	images := &fakeImages{fails: map[string]bool{
		"https://img.example/1": true,
		"https://img.example/2": true,
	}}
	orch, registry, _ := newTestOrchestrator(t, platform, images, completedShots(2))

	_, handle, err := orch.Submit(context.Background(), Request{
		WorkID: "w1", UserID: "u1", Nickname: "blog", Title: "春日",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-handle.Done()

	if len(platform.drafts) != 0 {
		t.Fatalf("drafts = %v, want none", platform.drafts)
	}
	record, _, err := registry.Get("w1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(record.Published) != 0 {
		t.Fatalf("published records = %d, want 0", len(record.Published))
	}
}

func TestRunTokenFailureLeavesNoRecord(t *testing.T) {
	platform := &fakePlatform{tokenErr: errors.New("invalid credential")}
	images := &fakeImages{}
	orch, registry, _ := newTestOrchestrator(t, platform, images, completedShots(2))

	_, handle, err := orch.Submit(context.Background(), Request{
		WorkID: "w1", UserID: "u1", Nickname: "blog", Title: "春日",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-handle.Done()

	if images.count != 0 {
		t.Fatalf("downloads = %d, want 0 after token failure", images.count)
	}
	record, _, err := registry.Get("w1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(record.Published) != 0 {
		t.Fatalf("published records = %d, want 0", len(record.Published))
	}
}

func TestRunCoverFailureIsNotFatal(t *testing.T) {
	platform := &fakePlatform{coverErr: errors.New("material quota exceeded")}
	images := &fakeImages{}
	orch, registry, _ := newTestOrchestrator(t, platform, images, completedShots(1))

	_, handle, err := orch.Submit(context.Background(), Request{
		WorkID: "w1", UserID: "u1", Nickname: "blog", Title: "春日",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-handle.Done()

	if len(platform.drafts) != 1 {
		t.Fatalf("drafts = %v, want one despite cover failure", platform.drafts)
	}
	record, _, err := registry.Get("w1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(record.Published) != 1 {
		t.Fatalf("published records = %d, want 1", len(record.Published))
	}
}
