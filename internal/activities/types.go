package activities

const (
	ModeReplace = "replace"
	ModeAdd     = "add"
)

// Stage names reported on indexing failures and by the workflow status query.
const (
	StageExtract = "extract"
	StageChunk   = "chunk"
	StageEmbed   = "embed"
	StageStore   = "store"
)

type ExtractDocumentInput struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
}

type ExtractDocumentOutput struct {
	DocumentID  string `json:"document_id"`
	Filename    string `json:"filename"`
	Pages       int    `json:"pages"`
	Text        string `json:"text"`
	PageOffsets []int  `json:"page_offsets"`
	PageNumbers []int  `json:"page_numbers"`
}

type ChunkDocumentInput struct {
	DocumentID   string `json:"document_id"`
	Filename     string `json:"filename"`
	Text         string `json:"text"`
	PageOffsets  []int  `json:"page_offsets"`
	PageNumbers  []int  `json:"page_numbers"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

type ChunkItem struct {
	ChunkID    string            `json:"chunk_id"`
	ChunkIndex int               `json:"chunk_index"`
	Page       int               `json:"page"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata"`
}

type ChunkDocumentOutput struct {
	Chunks []ChunkItem `json:"chunks"`
}

type EmbedChunksInput struct {
	Operation string      `json:"operation"`
	Chunks    []ChunkItem `json:"chunks"`
}

type EmbedChunksOutput struct {
	Vectors      [][]float32 `json:"vectors"`
	ProviderName string      `json:"provider_name"`
	Model        string      `json:"model"`
}

type StoreChunksInput struct {
	Collection string      `json:"collection"`
	Mode       string      `json:"mode"`
	Chunks     []ChunkItem `json:"chunks"`
	Vectors    [][]float32 `json:"vectors"`
}

type StoreChunksOutput struct {
	Collection string `json:"collection"`
	Added      int    `json:"added"`
	Total      int    `json:"total"`
}
