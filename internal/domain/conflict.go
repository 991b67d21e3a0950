package domain

import "time"

type Resolution string

const (
	ResolutionRemoteWins Resolution = "remote_wins"
	ResolutionLocalWins  Resolution = "local_wins"
)

// Conflict records one true conflict: two devices reached the same version
// of a record with different content.
type Conflict struct {
	ID            string       `json:"id"`
	Collection    Collection   `json:"collection"`
	RecordID      string       `json:"record_id"`
	Version       int64        `json:"version"`
	Resolution    Resolution   `json:"resolution"`
	LocalOrigin   OriginDevice `json:"local_origin"`
	RemoteOrigin  OriginDevice `json:"remote_origin"`
	LocalUpdated  time.Time    `json:"local_updated_at"`
	RemoteUpdated time.Time    `json:"remote_updated_at"`
	Title         string       `json:"title,omitempty"`
	DetectedAt    time.Time    `json:"detected_at"`
}

// Message is the user-facing text for the conflict notice.
func (c Conflict) Message() string {
	if c.Resolution == ResolutionRemoteWins {
		return "This item changed on another device. The remote version was kept and your version was archived."
	}
	return "This item changed on another device. Your version was kept and the remote version was archived."
}

type Notice struct {
	Conflict
	Text string `json:"message"`
}

func NewNotice(c Conflict) Notice {
	return Notice{Conflict: c, Text: c.Message()}
}
