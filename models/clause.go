package models

// Clause represents one numbered section of an uploaded contract.
// The heading (e.g. "§ 4 Betriebskosten") is unique within a document and
// acts as the clause identifier everywhere downstream; the body is immutable
// once extracted.
type Clause struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// ChatRole identifies the author of a chat turn
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatTurn represents one message in the session chat history
type ChatTurn struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// RetrievalDocument is one entry of the session retrieval index: a clause's
// heading, original body and current suggestion packed into a single text
// blob, tagged with the heading for relevance checks
type RetrievalDocument struct {
	Heading string `json:"heading"`
	Content string `json:"content"`
}
