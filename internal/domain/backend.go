package domain

// Kind identifies how a backend is queried.
type Kind string

const (
	// KindSQLVector is a SQL-capable vector store queried directly (fast path).
	KindSQLVector Kind = "sql_vector"
	// KindGenericVector is a store reachable only through a generic
	// nearest-neighbors capability.
	KindGenericVector Kind = "generic_vector"
)

// Backend describes one configured physical vector store.
// Registered at startup and never mutated afterwards.
type Backend struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Kind        Kind   `json:"type"`
	Description string `json:"description"`
}

// Collection is a named, tagged logical grouping of documents.
// A read-only projection of the collections table; the service never writes it.
type Collection struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags"`
}

// StatusLevel grades a backend status check.
type StatusLevel string

const (
	// StatusOK indicates a reachable backend with the expected schema.
	StatusOK StatusLevel = "ok"
	// StatusWarning indicates a reachable backend with a missing table or index.
	StatusWarning StatusLevel = "warning"
	// StatusError indicates an unreachable backend.
	StatusError StatusLevel = "error"
)

// BackendStatus is the outcome of one backend connectivity check.
type BackendStatus struct {
	Name          string      `json:"name"`
	Status        StatusLevel `json:"status"`
	Details       string      `json:"details"`
	DocumentCount int         `json:"document_count"`
	Dimensions    int         `json:"dimensions,omitempty"`
}
