package domain

// Difference describes one change applied to the modified image.
type Difference struct {
	ChangeType  string `json:"change_type"`
	Description string `json:"description,omitempty"`
}

// ResultMetadata is the generation summary stored next to the output images.
type ResultMetadata struct {
	Difficulty     string       `json:"difficulty,omitempty"`
	NumDifferences int          `json:"num_differences,omitempty"`
	Differences    []Difference `json:"differences,omitempty"`
	ElapsedSeconds *float64     `json:"elapsed_seconds,omitempty"`
}

// DifferenceCount prefers the explicit list over the reported count.
func (m ResultMetadata) DifferenceCount() int {
	if len(m.Differences) > 0 {
		return len(m.Differences)
	}
	return m.NumDifferences
}

// Result is the data handed to the result view once a job completes.
type Result struct {
	JobID                  string         `json:"job_id"`
	OriginalImageURL       string         `json:"original_image_url"`
	ModifiedImageURL       string         `json:"modified_image_url"`
	OriginalWithAnswersURL string         `json:"original_with_answers_url"`
	ModifiedWithAnswersURL string         `json:"modified_with_answers_url"`
	A4LayoutURL            string         `json:"a4_layout_url"`
	A4LayoutWithAnswersURL string         `json:"a4_layout_with_answers_url"`
	Metadata               ResultMetadata `json:"metadata"`
}
