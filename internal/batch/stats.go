package batch

import "time"

// Stats holds the queue's monotonic counters.
type Stats struct {
	PagesProcessed       int64
	OperationsSuccessful int64
	OperationsFailed     int64
	TotalProcessingTime  time.Duration

	// ItemsProcessed mirrors OperationsSuccessful.
	ItemsProcessed int64
}

// Snapshot is Stats plus derived fields, as reported by Queue.Stats.
type Snapshot struct {
	PagesProcessed       int64   `json:"pages_processed"`
	OperationsSuccessful int64   `json:"operations_successful"`
	OperationsFailed     int64   `json:"operations_failed"`
	ItemsProcessed       int64   `json:"items_processed"`
	TotalProcessingTime  float64 `json:"total_processing_time_seconds"`

	TotalOperations int64   `json:"total_operations"`
	SuccessRate     float64 `json:"success_rate"`
	AvgPageTime     float64 `json:"avg_page_time_seconds"`
	CurrentPageSize int     `json:"current_page_size"`
	ErrorsPending   int     `json:"errors_pending"`
}

// snapshot derives the reported fields. Divisors are clamped to 1 so empty
// stats report a zero success rate and zero average page time.
func (s Stats) snapshot(currentPageSize, errorsPending int) Snapshot {
	total := s.OperationsSuccessful + s.OperationsFailed
	seconds := s.TotalProcessingTime.Seconds()
	return Snapshot{
		PagesProcessed:       s.PagesProcessed,
		OperationsSuccessful: s.OperationsSuccessful,
		OperationsFailed:     s.OperationsFailed,
		ItemsProcessed:       s.ItemsProcessed,
		TotalProcessingTime:  seconds,
		TotalOperations:      total,
		SuccessRate:          float64(s.OperationsSuccessful) / float64(max(1, total)) * 100,
		AvgPageTime:          seconds / float64(max(1, s.PagesProcessed)),
		CurrentPageSize:      currentPageSize,
		ErrorsPending:        errorsPending,
	}
}
