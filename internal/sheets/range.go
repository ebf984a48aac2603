package sheets

import "strings"

// RangeRef composes an A1 range reference, quoting the sheet name when
// it contains spaces or non-ASCII characters (the Ukrainian sheet names
// require it). Embedded single quotes are doubled per the A1 grammar.
func RangeRef(sheet, cells string) string {
	return quoteSheetName(sheet) + "!" + cells
}

func quoteSheetName(sheet string) string {
	if !needsQuoting(sheet) {
		return sheet
	}
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}

func needsQuoting(sheet string) bool {
	for _, r := range sheet {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return true
		}
	}
	return false
}
