package ledger

import "time"

// Shot is one frame of a finished generation job, as reported by the image
// service. Only completed shots with an image URL make it into a WorkRecord.
type Shot struct {
	Index       int
	Completed   bool
	ImageURL    string
	Description string
}

// Failure notes one image that could not be processed during a publish run.
type Failure struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// PublishStats summarizes one background publish attempt.
type PublishStats struct {
	TotalImages     int       `json:"total_images"`
	Downloaded      int       `json:"downloaded"`
	Uploaded        int       `json:"uploaded"`
	FailedDownloads []Failure `json:"failed_downloads,omitempty"`
	FailedUploads   []Failure `json:"failed_uploads,omitempty"`
}

// PublishRecord is one successful draft creation against a work. The tuple
// (work id, user, nickname, title) is the idempotency key.
type PublishRecord struct {
	UserID      string       `json:"user_id"`
	Nickname    string       `json:"nickname"`
	Title       string       `json:"title"`
	Author      string       `json:"author"`
	PublishedAt time.Time    `json:"published_at"`
	Stats       PublishStats `json:"stats"`
}

// WorkRecord is the durable output of one completed generation job. The image
// list is set once at creation; Published is append-only.
type WorkRecord struct {
	Title        string          `json:"title"`
	CreatedAt    string          `json:"created_at"`
	ImageURLs    []string        `json:"image_urls"`
	Descriptions []string        `json:"shot_descriptions"`
	Published    []PublishRecord `json:"published_records,omitempty"`
}
