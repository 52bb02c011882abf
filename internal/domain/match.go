package domain

// Match is a single scored chunk returned by a search. Produced fresh per
// call; ordering within a result list is the rank.
type Match struct {
	Content      string   `json:"content"`
	DocumentID   string   `json:"documentId"`
	DocumentName string   `json:"documentName"`
	ChunkID      string   `json:"chunkId"`
	ChunkIndex   *int     `json:"chunkIndex,omitempty"`
	Tags         []string `json:"tags"`
	SourceID     string   `json:"source_id"`
	SourceName   string   `json:"source_name"`
	SourceKind   string   `json:"source_type"`
	Similarity   float64  `json:"similarity"`
}

// Record is a raw scored row as a backend returns it: content, opaque
// metadata, and a similarity score. Normalization into a Match happens in
// the search usecase so every backend yields an identical shape.
type Record struct {
	Content    string
	Metadata   map[string]any
	Similarity float64
}
