package logging

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldEntryID   = "entry_id"
	FieldUnitID    = "unit_id"
	FieldSource    = "source"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Position fields
	FieldIndex     = "index"
	FieldOrdinal   = "ordinal"
	FieldOffset    = "offset"
	FieldDirection = "direction"
	FieldMediaType = "media_type"

	// Path / URL fields
	FieldPath    = "path"
	FieldURL     = "url"
	FieldBaseURL = "base_url"
)
