package qa

// ClauseMatch pairs a clause with its similarity to a question.
// Similarity is cosine-based, clamped to [0,1]; Rank starts at 1.
type ClauseMatch struct {
	Clause     string  `json:"clause"`
	Similarity float64 `json:"similarity"`
	Rank       int     `json:"rank"`
}

// QueryRequest is the payload of the /hackrx/run endpoint.
type QueryRequest struct {
	Documents string   `json:"documents"` // URL of the document
	Questions []string `json:"questions"`
}

// QueryResponse always carries exactly one answer per question, in order.
// Failures are encoded in the answer text itself.
type QueryResponse struct {
	Answers []string `json:"answers"`
}

// DetailedAnswer is internal only; the public response flattens to Answer.
type DetailedAnswer struct {
	Answer          string   `json:"answer"`
	Rationale       string   `json:"rationale"`
	RelevantClauses []string `json:"relevantClauses"`
}
