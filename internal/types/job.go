package types

import "encoding/json"

const (
	PatternCreateThumbnail = "thumbnail.create"
	PatternRemoveAsset     = "thumbnail.remove"
)

// JobMessage is the envelope consumed from the job queues. Data is decoded
// according to Pattern.
type JobMessage struct {
	Pattern string          `json:"pattern"`
	Data    json.RawMessage `json:"data"`
}

// CreateThumbnail asks for an image to be stored as a thumbnail. Exactly one
// of Image (base64 or data URI) and URL is expected. An explicit zero Width
// stores the image at its native size; omitting Width uses the configured
// size.
type CreateThumbnail struct {
	Id     string `json:"id"`
	UserId string `json:"userId"`
	Image  string `json:"image"`
	URL    string `json:"url"`
	Width  *int   `json:"width"`
	Height *int   `json:"height"`
}

// RemoveAsset asks for a stored asset to be deleted.
type RemoveAsset struct {
	Id       string `json:"id"`
	UserId   string `json:"userId"`
	Filename string `json:"filename"`
}
