package models

// RetrievedSegment is a Segment with its similarity to the query.
type RetrievedSegment struct {
	Segment Segment `json:"segment"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

// RetrievedResult is an ordered sequence of segments, most similar first.
type RetrievedResult []RetrievedSegment

// Top returns the first-ranked segment, or false when the result is empty.
func (r RetrievedResult) Top() (RetrievedSegment, bool) {
	if len(r) == 0 {
		return RetrievedSegment{}, false
	}
	return r[0], true
}

// Citation points back at the knowledge entry an answer is grounded on.
type Citation struct {
	Question string `json:"question"`
	URL      string `json:"url"`
}

// Answer is the reply returned to the user.
type Answer struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
	Escalated bool       `json:"escalated,omitempty"`
	Failed    bool       `json:"failed,omitempty"`
}

// RetrieveResponse is the response for a retrieval request.
type RetrieveResponse struct {
	Query     string          `json:"query"`
	Results   RetrievedResult `json:"results"`
	Context   string          `json:"context,omitempty"`
	QueryTime int64           `json:"query_time_ms"`
}
