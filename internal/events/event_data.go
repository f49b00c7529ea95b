package events

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// DatasetReloadedData contains data for DatasetReloaded events
type DatasetReloadedData struct {
	Records    int      `json:"records"`
	Persisted  int      `json:"persisted"`
	Source     string   `json:"source"`
	DurationMs int64    `json:"duration_ms"`
	Warnings   []string `json:"warnings,omitempty"`
}

// EventType returns the event type for DatasetReloadedData
func (d *DatasetReloadedData) EventType() EventType {
	return DatasetReloaded
}

// DatasetResetData contains data for DatasetReset events
type DatasetResetData struct {
	Cleared int `json:"cleared"`
}

// EventType returns the event type for DatasetResetData
func (d *DatasetResetData) EventType() EventType {
	return DatasetReset
}

// SnapshotCreatedData contains data for SnapshotCreated events
type SnapshotCreatedData struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Records   int    `json:"records"`
	Uploaded  bool   `json:"uploaded"`
}

// EventType returns the event type for SnapshotCreatedData
func (d *SnapshotCreatedData) EventType() EventType {
	return SnapshotCreated
}

// MarketUpdatedData contains data for MarketUpdated events
type MarketUpdatedData struct {
	Sentiment        string   `json:"sentiment"`
	AverageChangePct float64  `json:"average_change_pct"`
	Symbols          int      `json:"symbols"`
	Missing          []string `json:"missing,omitempty"`
}

// EventType returns the event type for MarketUpdatedData
func (d *MarketUpdatedData) EventType() EventType {
	return MarketUpdated
}

// SourceDegradedData contains data for SourceDegraded events
type SourceDegradedData struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
	WaitMs int64  `json:"wait_ms,omitempty"`
}

// EventType returns the event type for SourceDegradedData
func (d *SourceDegradedData) EventType() EventType {
	return SourceDegraded
}

// CacheCleanedData contains data for CacheCleaned events
type CacheCleanedData struct {
	Removed int64 `json:"removed"`
}

// EventType returns the event type for CacheCleanedData
func (d *CacheCleanedData) EventType() EventType {
	return CacheCleaned
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
