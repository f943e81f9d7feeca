package graph

// BatchConfig defines batch sizes for UNWIND writes.
//
// Paper records carry abstracts and are comparatively heavy, so paper and
// edge batches stay in the hundreds. Wipes delete in larger slices to keep
// each transaction's memory bounded on big graphs.
type BatchConfig struct {
	PaperBatchSize int
	EdgeBatchSize  int
	WipeBatchSize  int
}

// DefaultBatchConfig returns batch sizes for a typical citation crawl
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		PaperBatchSize: 500,
		EdgeBatchSize:  500,
		WipeBatchSize:  10000,
	}
}

// withDefaults fills zero fields from DefaultBatchConfig
func (bc BatchConfig) withDefaults() BatchConfig {
	d := DefaultBatchConfig()
	if bc.PaperBatchSize <= 0 {
		bc.PaperBatchSize = d.PaperBatchSize
	}
	if bc.EdgeBatchSize <= 0 {
		bc.EdgeBatchSize = d.EdgeBatchSize
	}
	if bc.WipeBatchSize <= 0 {
		bc.WipeBatchSize = d.WipeBatchSize
	}
	return bc
}
