package workflows

type IndexDocumentInput struct {
	Path         string `json:"path"`
	Filename     string `json:"filename"`
	Mode         string `json:"mode"`
	Collection   string `json:"collection"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

type IndexDocumentOutput struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Collection string `json:"collection"`
	Pages      int    `json:"pages"`
	Chunks     int    `json:"chunks"`
	Total      int    `json:"total"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
}

type IndexStatus struct {
	DocumentID  string            `json:"document_id,omitempty"`
	Filename    string            `json:"filename"`
	Mode        string            `json:"mode"`
	CurrentStep string            `json:"current_step"`
	Status      string            `json:"status"`
	FailReason  string            `json:"fail_reason,omitempty"`
	Steps       map[string]string `json:"steps"`
}
