package cache

import (
	"path"
	"strings"
	"time"
)

const (
	metadataDir    = ".metadata"
	metadataSuffix = ".meta.json"
)

// BuildRecord describes the last successful build of one output artifact
type BuildRecord struct {
	// SourceHashes maps every declared input key to its content hash at
	// the time of the build
	SourceHashes map[string]string `json:"source_files"`

	// RecordCount is the number of records written to the output
	RecordCount int `json:"total_records"`

	// CompletedAt is when the output and this record were committed
	CompletedAt time.Time `json:"completed_at"`

	// Completed is the only flag that makes a record authoritative
	Completed bool `json:"completed"`

	// LastPage is the last page fetched for paginated bronze outputs
	LastPage int `json:"last_page,omitempty"`
}

// RecordKey returns the build record location for an output key:
// bronze/transparency/ceis.json -> bronze/transparency/.metadata/ceis.json.meta.json
func RecordKey(outputKey string) string {
	return path.Join(path.Dir(outputKey), metadataDir, path.Base(outputKey)+metadataSuffix)
}

// IsRecordKey reports whether key is a build record location
func IsRecordKey(key string) bool {
	return strings.HasSuffix(key, metadataSuffix) &&
		path.Base(path.Dir(key)) == metadataDir
}
