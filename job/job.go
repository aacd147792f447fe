package job

type Status string

const (
	StatusUploaded    Status = "uploaded"
	StatusAnalyzing   Status = "analyzing"
	StatusCalculating Status = "calculating"
	StatusProcessing  Status = "processing"
	StatusFinalizing  Status = "finalizing"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
	// StatusUnknown is synthesized for lookups on missing ids, never stored.
	StatusUnknown Status = "unknown"
)

// IsTerminal reports whether a job in this status will receive no further
// updates.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Result is the immutable payload of a completed job.
type Result struct {
	Success          bool   `json:"success"`
	OriginalFile     string `json:"originalFile"`
	ProcessedFile    string `json:"processedFile"`
	DownloadURL      string `json:"downloadUrl"`
	OriginalSize     int64  `json:"originalSize"`
	CompressedSize   int64  `json:"compressedSize"`
	CompressionRatio string `json:"compressionRatio,omitempty"`
	TargetSize       string `json:"targetSize,omitempty"`
	AchievedSize     string `json:"achievedSize,omitempty"`
	Format           string `json:"format,omitempty"`
	QualityPreserved bool   `json:"qualityPreserved,omitempty"`
	BitratePreserved string `json:"bitratePreserved,omitempty"`
	SizeRatio        string `json:"sizeRatio,omitempty"`
}

// Job is the polling clients' view of one processing request.
type Job struct {
	ID        string  `json:"-"`
	Status    Status  `json:"status"`
	Progress  int     `json:"progress"`
	Message   string  `json:"message"`
	Stage     string  `json:"stage,omitempty"`
	Time      string  `json:"time,omitempty"`
	Remaining string  `json:"remaining,omitempty"`
	Speed     string  `json:"speed,omitempty"`
	Result    *Result `json:"result,omitempty"`
}

// Update is a partial patch merged into a job record. Nil fields keep the
// previously stored value.
type Update struct {
	Status    Status
	Progress  *int
	Message   string
	Stage     string
	Time      string
	Remaining string
	Speed     string
	Result    *Result
}

// Progress wraps an int for use in Update literals.
func Progress(p int) *int { return &p }
