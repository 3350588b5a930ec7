package agent

import "time"

// KnowledgeBaseType selects which ingestion path feeds an agent's knowledge.
type KnowledgeBaseType string

const (
	KnowledgeBaseLinks     KnowledgeBaseType = "links"
	KnowledgeBaseDocuments KnowledgeBaseType = "documents"
	KnowledgeBasePlainText KnowledgeBaseType = "plaintext"
)

// WebLink is a page to scrape into the knowledge base. SPA pages need a
// headless browser to render before their content is extractable.
type WebLink struct {
	URL   string `json:"url"`
	IsSPA bool   `json:"isSpa"`
}

// Agent is a tenant-owned chat assistant with its own knowledge base.
type Agent struct {
	ID                string            `json:"id"`
	OrganizationID    string            `json:"organizationId"`
	Name              string            `json:"name"`
	Persona           string            `json:"persona"`
	KnowledgeBaseType KnowledgeBaseType `json:"knowledgeBaseType"`
	// AvatarKey is the stored object key; AvatarURL is the presigned
	// download URL minted at read time.
	AvatarKey         string    `json:"-"`
	AvatarURL         string    `json:"avatarUrl,omitempty"`
	AuthorizedDomains []string  `json:"authorizedDomains"`
	WebLinks          []WebLink `json:"webLinks,omitempty"`
	// Documents lists the stored knowledge-base files; filled on single
	// reads, not on list responses.
	Documents []Document `json:"documents,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
