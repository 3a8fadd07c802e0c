package badger

// Key prefixes for different data types
const (
	projectPrefix = "prjrec:"
)

// makeProjectKey generates a key for a project snapshot by ID.
func makeProjectKey(id string) []byte {
	return []byte(projectPrefix + id)
}

// projectIDFromKey strips the prefix from a project key.
func projectIDFromKey(key []byte) string {
	return string(key[len(projectPrefix):])
}
