package news

type Article struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Published   string `json:"published"`
	Summary     string `json:"summary"`
	FullContent string `json:"fullContent,omitempty"`
	AISummary   string `json:"aiSummary,omitempty"`
}

type SummaryResponse struct {
	Summary string `json:"summary"`
}
