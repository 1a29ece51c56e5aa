package importer

import (
	"fmt"
	"strings"

	"github.com/trezcool/reviewdesk/core"
)

// MaxHeaderRow is the last row index considered when looking for the header row.
const MaxHeaderRow = 10

const emptyKey = "__EMPTY"

// HeaderKeys names the cells of a candidate header row.
// Blank cells get placeholder keys: "__EMPTY", "__EMPTY_1", "__EMPTY_2", ...
func HeaderKeys(row []string) []string {
	keys := make([]string, len(row))
	blanks := 0
	for i, cell := range row {
		cell = core.CleanString(cell)
		if cell != "" {
			keys[i] = cell
			continue
		}
		if blanks == 0 {
			keys[i] = emptyKey
		} else {
			keys[i] = fmt.Sprintf("%s_%d", emptyKey, blanks)
		}
		blanks++
	}
	return keys
}

// IsPlaceholder reports whether a header key stands for an unnamed or empty column.
func IsPlaceholder(key string) bool {
	return strings.HasPrefix(key, emptyKey) || strings.HasPrefix(strings.ToLower(key), "unnamed")
}

// DetectHeader returns the index and keys of the header row among rows 0..MaxHeaderRow:
// the first row whose keys map both the batch and the name fields. When no row does,
// the first row whose keys are not all placeholders is returned.
func DetectHeader(rows [][]string) (int, []string, error) {
	fallback := -1
	var fallbackKeys []string
	for i := 0; i < len(rows) && i <= MaxHeaderRow; i++ {
		keys := HeaderKeys(rows[i])
		if allPlaceholders(keys) {
			continue
		}
		fields := MapFields(keys)
		_, hasBatch := fields[FieldBatch]
		_, hasName := fields[FieldName]
		if hasBatch && hasName {
			return i, keys, nil
		}
		if fallback < 0 {
			fallback, fallbackKeys = i, keys
		}
	}
	if fallback >= 0 {
		return fallback, fallbackKeys, nil
	}
	return -1, nil, core.NewValidationError(nil, core.FieldError{
		Field: "file",
		Error: fmt.Sprintf("no header row found in the first %d rows", MaxHeaderRow+1),
	})
}

func allPlaceholders(keys []string) bool {
	for _, k := range keys {
		if !IsPlaceholder(k) {
			return false
		}
	}
	return true
}

// Records maps every row below the header to its field values, skipping blank rows.
func Records(rows [][]string, headerIdx int, keys []string) []map[string]string {
	records := make([]map[string]string, 0, len(rows))
	for _, row := range rows[headerIdx+1:] {
		rec := make(map[string]string, len(keys))
		blank := true
		for i, k := range keys {
			var v string
			if i < len(row) {
				v = core.CleanString(row[i])
			}
			if v != "" {
				blank = false
			}
			rec[k] = v
		}
		if !blank {
			records = append(records, rec)
		}
	}
	return records
}
