package model

// VideoDescriptor is one playlist member as seen by a processing run.
type VideoDescriptor struct {
	VideoID  string `json:"video_id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Duration *int   `json:"duration,omitempty"`
	Status   string `json:"status"`
}

// PlaylistInfo is written verbatim as metadata.json.
type PlaylistInfo struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Channel   string `json:"channel"`
	ChannelID string `json:"channel_id"`
}

type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

type TranscriptMetadata struct {
	Language     string `json:"language"`
	LanguageName string `json:"language_name"`
	DownloadDate string `json:"download_date"`
}

// TranscriptRecord is the JSON artifact stored per video.
type TranscriptRecord struct {
	VideoID    string             `json:"video_id"`
	Title      string             `json:"title"`
	Transcript []Segment          `json:"transcript"`
	Metadata   TranscriptMetadata `json:"metadata"`
}

type ErrorLogEntry struct {
	VideoID string `json:"video_id"`
	Title   string `json:"title"`
	Error   string `json:"error"`
	IsRetry bool   `json:"is_retry"`
}

const (
	RunCollecting = "collecting"
	RunProcessing = "processing"
	RunComplete   = "complete"
)

// RunResult is the session-scoped summary of one playlist run. It is never
// persisted.
type RunResult struct {
	RunID            string            `json:"run_id"`
	State            string            `json:"state"`
	PlaylistID       string            `json:"playlist_id"`
	PlaylistTitle    string            `json:"playlist_title"`
	PlaylistUploader string            `json:"playlist_uploader"`
	Language         string            `json:"language"`
	Videos           []VideoDescriptor `json:"videos"`
	SuccessCount     int               `json:"success_count"`
	FailedCount      int               `json:"failed_count"`
	TotalVideos      int               `json:"total_videos"`
	FailedVideos     []VideoDescriptor `json:"failed_videos"`
	ErrorLogs        []ErrorLogEntry   `json:"error_logs"`
	ShowRetry        bool              `json:"show_retry"`
}
