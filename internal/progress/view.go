package progress

import "time"

// View is the polling contract served to monitors.
type View struct {
	RunID                  string      `json:"runId"`
	Topic                  string      `json:"topic"`
	Status                 string      `json:"status"`
	Reason                 string      `json:"reason,omitempty"`
	Steps                  []Step      `json:"steps"`
	Progress               int         `json:"progress"`
	CurrentStep            string      `json:"currentStep,omitempty"`
	StartTime              time.Time   `json:"startTime"`
	EndTime                *time.Time  `json:"endTime,omitempty"`
	EstimatedTimeRemaining string      `json:"estimatedTimeRemaining,omitempty"`
	QualityScore           *float64    `json:"qualityScore,omitempty"`
	Errors                 []string    `json:"errors,omitempty"`
	Result                 *ViewResult `json:"result,omitempty"`
}

type ViewResult struct {
	ContentURL  string     `json:"contentUrl,omitempty"`
	PDFURL      string     `json:"pdfUrl,omitempty"`
	WordCount   int        `json:"wordCount,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// BuildView converts a snapshot to the monitor contract. contentURL is where
// the artifact can be fetched; the result is only present for completed runs.
func BuildView(s *Snapshot, contentURL string) View {
	v := View{
		RunID:                  s.WorkflowID,
		Topic:                  s.Topic,
		Status:                 s.Status,
		Reason:                 s.Reason,
		Steps:                  append([]Step(nil), s.Steps...),
		Progress:               s.ProgressPercentage,
		CurrentStep:            s.CurrentStep,
		StartTime:              s.StartTime,
		EndTime:                s.EndTime,
		EstimatedTimeRemaining: s.EstimatedTimeRemaining,
		QualityScore:           s.QualityScore,
	}
	for _, e := range s.Errors {
		v.Errors = append(v.Errors, e.Message)
	}
	if s.Status == StatusCompleted {
		v.Progress = 100
		v.EstimatedTimeRemaining = ""
		if s.Result != nil {
			completed := s.Result.CompletedAt
			v.Result = &ViewResult{
				ContentURL:  contentURL,
				WordCount:   s.Result.WordCount,
				CompletedAt: &completed,
			}
		}
	}
	if s.Status == StatusFailed {
		v.EstimatedTimeRemaining = ""
	}
	return v
}
