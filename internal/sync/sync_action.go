package sync

// FileSyncAction is the per-file verdict of the reconciliation engine.
type FileSyncAction string

const (
	ActionUpload   FileSyncAction = "UPLOAD"
	ActionDownload FileSyncAction = "DOWNLOAD"
	ActionSkip     FileSyncAction = "SKIP"
	ActionConflict FileSyncAction = "CONFLICT"
)

// FileComparison classifies two metadata records before any content is read.
type FileComparison string

const (
	ComparisonEqual     FileComparison = "EQUAL"
	ComparisonDifByName FileComparison = "DIF_BY_NAME"
	ComparisonDifBySize FileComparison = "DIF_BY_SIZE"
	ComparisonDifByDate FileComparison = "DIF_BY_DATE"
	// ComparisonError marks the same timestamp with a different size.
	ComparisonError FileComparison = "ERROR"
)
