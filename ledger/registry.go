// Package ledger is the durable record of generated works and what has been
// published from them. It backs the idempotency guarantee: once a publish
// record exists for a (work, user, nickname, title) tuple, that tuple can
// never be published again.
package ledger

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sup-lh/wechat-tool/internal/fsstore"
)

const registryFileVersion = 1

var (
	ErrUnknownWork      = errors.New("ledger: unknown work")
	ErrDuplicatePublish = errors.New("ledger: tuple already published")
)

type registryFile struct {
	Version int                    `json:"version"`
	Works   map[string]*WorkRecord `json:"works"`
}

// Registry persists work records to a single JSON file. One mutex covers
// every read-check-then-append sequence, so two concurrent publishes for the
// same tuple cannot both observe "not yet published".
type Registry struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

type Options struct {
	// Now overrides the clock; tests inject a fixed time.
	Now func() time.Time
}

func NewRegistry(path string, opts Options) *Registry {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{path: strings.TrimSpace(path), now: opts.Now}
}

// RecordCompletedJob persists a work record built from the completed subset of
// shots. It reports false, and writes nothing, when no shot completed. The
// image list is set here once and never mutated afterwards.
func (r *Registry) RecordCompletedJob(workID string, title string, shots []Shot) (bool, error) {
	workID = strings.TrimSpace(workID)
	if workID == "" {
		return false, fmt.Errorf("work id is required")
	}

	record := WorkRecord{
		Title:     title,
		CreatedAt: r.now().UTC().Format(time.RFC3339),
	}
	for _, shot := range shots {
		if !shot.Completed || strings.TrimSpace(shot.ImageURL) == "" {
			continue
		}
		description := strings.TrimSpace(shot.Description)
		if description == "" {
			description = fmt.Sprintf("分镜%d", shot.Index)
		}
		record.ImageURLs = append(record.ImageURLs, shot.ImageURL)
		record.Descriptions = append(record.Descriptions, description)
	}
	if len(record.ImageURLs) == 0 {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	file, err := r.loadLocked()
	if err != nil {
		return false, err
	}
	file.Works[workID] = &record
	if err := r.saveLocked(file); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Registry) Exists(workID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	file, err := r.loadLocked()
	if err != nil {
		return false, err
	}
	_, ok := file.Works[strings.TrimSpace(workID)]
	return ok, nil
}

func (r *Registry) Get(workID string) (WorkRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	file, err := r.loadLocked()
	if err != nil {
		return WorkRecord{}, false, err
	}
	record, ok := file.Works[strings.TrimSpace(workID)]
	if !ok {
		return WorkRecord{}, false, nil
	}
	return *record, true, nil
}

// FindPublishRecord returns the publish record matching the exact tuple, if
// any. Callers use the timestamp to explain duplicate rejections.
func (r *Registry) FindPublishRecord(workID, userID, nickname, title string) (PublishRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	file, err := r.loadLocked()
	if err != nil {
		return PublishRecord{}, false, err
	}
	record, ok := file.Works[strings.TrimSpace(workID)]
	if !ok {
		return PublishRecord{}, false, nil
	}
	for _, published := range record.Published {
		if published.UserID == userID && published.Nickname == nickname && published.Title == title {
			return published, true, nil
		}
	}
	return PublishRecord{}, false, nil
}

func (r *Registry) IsPublished(workID, userID, nickname, title string) (bool, error) {
	_, ok, err := r.FindPublishRecord(workID, userID, nickname, title)
	return ok, err
}

// AppendPublishRecord appends one publish record and persists before
// returning. The work must exist. The duplicate check runs inside the same
// critical section as the append, so two concurrent publishes for one tuple
// cannot both get a record in.
func (r *Registry) AppendPublishRecord(workID string, record PublishRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	file, err := r.loadLocked()
	if err != nil {
		return err
	}
	work, ok := file.Works[strings.TrimSpace(workID)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWork, workID)
	}
	for _, published := range work.Published {
		if published.UserID == record.UserID && published.Nickname == record.Nickname && published.Title == record.Title {
			return fmt.Errorf("%w: %s", ErrDuplicatePublish, workID)
		}
	}
	if record.PublishedAt.IsZero() {
		record.PublishedAt = r.now().UTC()
	}
	work.Published = append(work.Published, record)
	return r.saveLocked(file)
}

// PurgeOlderThan removes works created before the cutoff and returns how many
// were dropped. Records whose timestamp no longer parses are dropped too.
func (r *Registry) PurgeOlderThan(days int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	file, err := r.loadLocked()
	if err != nil {
		return 0, err
	}
	cutoff := r.now().UTC().AddDate(0, 0, -days)
	removed := 0
	for workID, record := range file.Works {
		createdAt, parseErr := time.Parse(time.RFC3339, record.CreatedAt)
		if parseErr == nil && !createdAt.Before(cutoff) {
			continue
		}
		delete(file.Works, workID)
		removed++
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, r.saveLocked(file)
}

// Stats reports total works and images for the status reply.
func (r *Registry) Stats() (works int, images int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	file, err := r.loadLocked()
	if err != nil {
		return 0, 0, err
	}
	for _, record := range file.Works {
		works++
		images += len(record.ImageURLs)
	}
	return works, images, nil
}

func (r *Registry) loadLocked() (registryFile, error) {
	var file registryFile
	ok, err := fsstore.ReadJSON(r.path, &file)
	if err != nil {
		return registryFile{}, err
	}
	if !ok {
		return registryFile{Version: registryFileVersion, Works: map[string]*WorkRecord{}}, nil
	}
	if file.Version != registryFileVersion {
		return registryFile{}, fmt.Errorf("unsupported ledger file version: %d", file.Version)
	}
	if file.Works == nil {
		file.Works = map[string]*WorkRecord{}
	}
	return file, nil
}

func (r *Registry) saveLocked(file registryFile) error {
	file.Version = registryFileVersion
	return fsstore.WriteJSONAtomic(r.path, file, fsstore.FileOptions{
		DirPerm:  0o700,
		FilePerm: 0o600,
	})
}
