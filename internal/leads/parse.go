// Package leads imports delimited-text lead files into folders and reports
// how many leads have been reached.
package leads

import "strings"

// ReachedColumn is present in every lead file.
const ReachedColumn = "reached"

// Parsed is the header/row shape of an uploaded file.
type Parsed struct {
	Headers []string
	Rows    []map[string]string
}

// ParseDelimitedText parses comma-separated text whose first line holds the
// headers. Fields are trimmed and lose one surrounding double quote on each
// side; quoted commas are not supported. A reached column is appended when
// missing, absent trailing fields become "" and an empty reached cell becomes
// "false". Blank lines are skipped and blank content yields no headers.
func ParseDelimitedText(content string) Parsed {
	content = strings.TrimSpace(content)
	if content == "" {
		return Parsed{Headers: []string{}, Rows: []map[string]string{}}
	}
	lines := strings.Split(content, "\n")

	headers := splitFields(lines[0])
	if !contains(headers, ReachedColumn) {
		headers = append(headers, ReachedColumn)
	}

	rows := make([]map[string]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		values := splitFields(line)
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(values) {
				row[h] = values[i]
			} else {
				row[h] = ""
			}
		}
		if row[ReachedColumn] == "" {
			row[ReachedColumn] = "false"
		}
		rows = append(rows, row)
	}
	return Parsed{Headers: headers, Rows: rows}
}

// SanitizeField removes NUL bytes and surrounding whitespace.
func SanitizeField(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}

func splitFields(line string) []string {
	line = strings.TrimSuffix(line, "\r")
	fields := strings.Split(line, ",")
	for i, f := range fields {
		f = strings.TrimSpace(f)
		f = strings.TrimPrefix(f, `"`)
		f = strings.TrimSuffix(f, `"`)
		fields[i] = f
	}
	return fields
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
