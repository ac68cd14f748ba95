package domain

// Answer is an assembled response to a question.
// When Withheld is true, Text is empty and Draft holds the ungrounded text.
type Answer struct {
	Question    string           `json:"question"`
	Text        string           `json:"text"`
	Draft       string           `json:"draft,omitempty"`
	Withheld    bool             `json:"withheld"`
	Extractions []Extraction     `json:"extractions"`
	Validation  ValidationResult `json:"validation"`
	Confidence  ConfidenceScore  `json:"confidence"`
	Retrieval   *RetrievalResult `json:"retrieval"`
}
