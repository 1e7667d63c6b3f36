package importer

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"
)

// Logical sheet names. Exports arrive from several frontends, so each
// logical sheet has to be recognized under its English and Uzbek spellings.
const (
	sheetGroups   = "Groups"
	sheetStudents = "Students"
	sheetPayments = "Payments"
)

var (
	groupsSheetNames   = []string{"Groups", "Group", "Guruhlar", "Guruh"}
	studentsSheetNames = []string{"Students", "Student", "O'quvchilar", "Oquvchilar", "Talabalar"}
	paymentsSheetNames = []string{"Payments", "Payment", "To'lovlar", "Tolovlar"}
)

// row is one data row keyed by normalized header. Row is 1-based relative
// to the first data row, which is how errors are reported back.
type row struct {
	num   int
	cells map[string]string
}

// get returns the first non-empty value among the aliases, in alias order.
func (r row) get(aliases ...string) string {
	for _, alias := range aliases {
		if v, ok := r.cells[normalizeKey(alias)]; ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// normalizeKey lower-cases and strips whitespace, underscores and hyphens,
// so "Teacher Username", "teacher_username" and "teacherusername" all map
// to the same logical field.
func normalizeKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) || r == '_' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func openWorkbook(data []byte) (*excelize.File, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	return file, nil
}

// locateSheet finds the worksheet for a logical sheet by case-insensitive
// exact match against the candidate names, in candidate order.
func locateSheet(file *excelize.File, candidates []string) (string, bool) {
	sheets := file.GetSheetList()
	for _, candidate := range candidates {
		for _, name := range sheets {
			if strings.EqualFold(strings.TrimSpace(name), candidate) {
				return name, true
			}
		}
	}
	return "", false
}

// sheetRows reads a worksheet into header-keyed rows. The first row is the
// header; missing trailing cells default to the empty string so coercion
// always has a defined value to look at. Raw cell values are requested so
// date cells surface as serial numbers rather than locale-formatted text.
func sheetRows(file *excelize.File, sheet string) ([]row, error) {
	raw, err := file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(raw) < 2 {
		return nil, nil
	}

	headers := make([]string, len(raw[0]))
	for i, h := range raw[0] {
		headers[i] = normalizeKey(h)
	}

	rows := make([]row, 0, len(raw)-1)
	for i, cells := range raw[1:] {
		r := row{num: i + 1, cells: make(map[string]string, len(headers))}
		empty := true
		for col, key := range headers {
			if key == "" {
				continue
			}
			value := ""
			if col < len(cells) {
				value = cells[col]
			}
			if _, exists := r.cells[key]; !exists {
				r.cells[key] = value
			}
			if strings.TrimSpace(value) != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		rows = append(rows, r)
	}
	return rows, nil
}
