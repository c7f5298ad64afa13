package tabledb

// Schema metadata keys recomputed from the data file on every save. Caller
// supplied values for these never survive a save.
const (
	metadataKey  = "metadata"
	rowCountKey  = "row_count"
	updatedAtKey = "updated_at"
)

// UpdateSchemaMetadata syncs the row-count and updated-at summary fields on a
// schema document in place.
//
// An existing object-shaped metadata field is updated with the two keys, all
// other metadata keys untouched. An object-shaped root without one gets a new
// metadata object holding only the two keys. A root that is not object-shaped
// is left alone; callers must not rely on metadata existing unless they
// control the schema shape.
func UpdateSchemaMetadata(schema any, rowCount int, updatedAt string) {
	root, ok := schema.(map[string]any)
	if !ok {
		return
	}
	if md, ok := root[metadataKey].(map[string]any); ok {
		md[rowCountKey] = rowCount
		md[updatedAtKey] = updatedAt
		return
	}
	root[metadataKey] = map[string]any{
		rowCountKey:  rowCount,
		updatedAtKey: updatedAt,
	}
}

// DefaultSchema returns the schema document a fresh workspace is seeded with:
// the schema version, the table name derived from the data file stem, the
// single hidden system _id column, zeroed metadata and the extensions object.
func DefaultSchema(tableName, now string) map[string]any {
	if tableName == "" {
		tableName = "Untitled"
	}
	return map[string]any{
		"version":    "1.0",
		"table_name": tableName,
		"columns": []any{
			map[string]any{
				"id":     RowIDKey,
				"name":   "ID",
				"type":   "text",
				"hidden": true,
				"system": true,
			},
		},
		metadataKey: map[string]any{
			"created_at": now,
			updatedAtKey: now,
			rowCountKey:  0,
		},
		"extensions": map[string]any{
			"available_types": []any{"text", "number", "checkbox", "multiselect", "relation"},
			"future":          "additional column types may be added here",
		},
	}
}
