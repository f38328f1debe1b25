package model

// ItemSource records which splitter tier produced an item.
type ItemSource string

const (
	// SourceRule marks items produced by the deterministic rule tier.
	SourceRule ItemSource = "rule"
	// SourceLLM marks items produced by the LLM splitting call.
	SourceLLM ItemSource = "llm"
	// SourceHeuristic marks items appended by the keyword backstop.
	SourceHeuristic ItemSource = "heuristic"
)

// Item is one candidate record carved out of an utterance. Category may be
// empty until the router resolves it.
type Item struct {
	Category string     `json:"category"`
	Text     string     `json:"text"`
	Source   ItemSource `json:"source"`
}
