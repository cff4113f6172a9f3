package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Standard tracing fields, propagated through the call chain via context.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldAssetID is the asset being ingested, repaired, or evicted
	FieldAssetID = "asset_id"

	// FieldKind is the asset kind (image/video)
	FieldKind = "kind"

	// FieldGCRunID is the garbage-collection run ID
	FieldGCRunID = "gc_run_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldProvider is the provenance provider of an asset
	FieldProvider = "provider"
)

// Standard metric fields, attached at the log-entry level for aggregation.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
