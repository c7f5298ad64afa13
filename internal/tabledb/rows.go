package tabledb

import (
	"encoding/json"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Well-known system fields managed on every row object. User columns live
// alongside them in the same open map.
const (
	// RowIDKey is the opaque stable identifier, immutable once assigned.
	RowIDKey = "_id"
	// RowCreatedKey is the creation timestamp, immutable once assigned.
	RowCreatedKey = "_created"
	// RowUpdatedKey is refreshed on every save.
	RowUpdatedKey = "_updated"
	// RowOrderKey is the integer position, user-overridable.
	RowOrderKey = "_order"
)

const (
	rowIDPrefix = "row_"
	rowIDLen    = 10
)

// NewRowID returns a fresh row identifier: "row_" plus a 10-character random
// token. IDs are not checked for collisions against existing rows; the token
// space is large enough that this is an accepted assumption, not a guaranteed
// uniqueness invariant.
func NewRowID() string {
	return rowIDPrefix + gonanoid.Must(rowIDLen)
}

// NormalizeRows enforces the system-field invariants on rows in place and
// returns the total row count. It performs no I/O.
//
// Each object-shaped row acquires _id and _created if absent, always gets
// _updated refreshed to timestamp, and gets its zero-based position as _order
// if _order is absent or non-numeric. A numeric _order is an explicit user
// override and is left untouched, so persisted order need not match array
// position. Rows that are not object-shaped are left untouched entirely.
func NormalizeRows(rows []any, timestamp string) int {
	for i, row := range rows {
		obj, ok := row.(map[string]any)
		if !ok {
			continue
		}
		if _, ok := obj[RowIDKey]; !ok {
			obj[RowIDKey] = NewRowID()
		}
		if _, ok := obj[RowCreatedKey]; !ok {
			obj[RowCreatedKey] = timestamp
		}
		obj[RowUpdatedKey] = timestamp
		if order, ok := obj[RowOrderKey]; !ok || !isNumeric(order) {
			obj[RowOrderKey] = i
		}
	}
	return len(rows)
}

// isNumeric reports whether v is a number in any of the shapes a row value
// can arrive in (JSON decoding yields float64, callers may hand in ints).
func isNumeric(v any) bool {
	switch v.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return true
	default:
		return false
	}
}
