package mcp

import "github.com/Aman-CERP/mindual/internal/search"

// SearchInput defines the input schema for the search_manual tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the question or keywords to look up in the manuals"`
	K     int    `json:"k,omitempty" jsonschema:"number of passages to return, default from configuration"`
}

// ContextOutput is one retrieved manual passage.
type ContextOutput struct {
	Text      string  `json:"text" jsonschema:"page text"`
	Page      int     `json:"page" jsonschema:"page number in the manual, 0 when unknown"`
	ManualID  int64   `json:"manual_id" jsonschema:"id of the manual the page belongs to"`
	PageImage string  `json:"page_image,omitempty" jsonschema:"path of the rendered page image"`
	Score     float64 `json:"score" jsonschema:"index relevance score, higher is better"`
}

// SearchOutput defines the output schema for the search_manual tool.
type SearchOutput struct {
	Contexts []ContextOutput `json:"contexts" jsonschema:"passages in relevance order"`
}

// AnswerInput defines the input schema for the answer tool.
type AnswerInput struct {
	Query string `json:"query" jsonschema:"the question to answer from the manuals"`
	K     int    `json:"k,omitempty" jsonschema:"number of passages to ground the answer on"`
}

// AnswerOutput defines the output schema for the answer tool. Found is
// false, with an empty answer, when no manual content matched.
type AnswerOutput struct {
	Answer   string          `json:"answer"`
	Found    bool            `json:"found"`
	Contexts []ContextOutput `json:"contexts"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Manuals    int                     `json:"manuals"`
	Chunks     int                     `json:"chunks"`
	PageImages int                     `json:"page_images"`
	Backend    string                  `json:"backend"`
	Embedder   string                  `json:"embedder,omitempty"`
	Consistent bool                    `json:"consistent"`
	Indexes    map[string]IndexSummary `json:"indexes"`
}

// IndexSummary reports one search index against the chunk table.
type IndexSummary struct {
	Indexed int `json:"indexed"`
	Missing int `json:"missing"`
	Orphans int `json:"orphans"`
}

func toContextOutputs(records []search.ContextRecord) []ContextOutput {
	out := make([]ContextOutput, len(records))
	for i, r := range records {
		out[i] = ContextOutput{
			Text:      r.Content,
			Page:      r.Page,
			ManualID:  r.ManualID,
			PageImage: r.PageImage,
			Score:     r.Score,
		}
	}
	return out
}
