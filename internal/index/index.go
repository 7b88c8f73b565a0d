package index

// Index is what the rest of the application needs from the search index.
type Index interface {
	UpsertDocument(d Document, body string, mentions []string) error
	DeleteDocument(path string) error
	GetChecksum(path string) (string, error)
	AllChecksums() (map[string]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	MentionedIn(name string) ([]string, error)
	Close() error
}

var _ Index = (*DB)(nil)
