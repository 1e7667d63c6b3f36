package importer

import "fmt"

// RowError is one business-rule violation, addressed to a spreadsheet row.
// Row numbers are 1-based relative to the first data row of the sheet.
type RowError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (e RowError) String() string {
	return fmt.Sprintf("%s row %d: %s", e.Sheet, e.Row, e.Message)
}

// Summary counts what the import did. Counters only ever increase while the
// run is in flight; a rolled-back run reports all zeros.
type Summary struct {
	SubjectsCreated          int `json:"subjectsCreated"`
	GroupsCreated            int `json:"groupsCreated"`
	GroupsUpdated            int `json:"groupsUpdated"`
	StudentsCreated          int `json:"studentsCreated"`
	StudentsUpdated          int `json:"studentsUpdated"`
	StudentGroupLinksCreated int `json:"studentGroupLinksCreated"`
	PaymentsCreated          int `json:"paymentsCreated"`
	PaymentsSkipped          int `json:"paymentsSkipped"`
}

// Result is returned to the caller whether or not the run committed. When
// Committed is false the error list explains every offending row.
type Result struct {
	Summary   Summary    `json:"summary"`
	Errors    []RowError `json:"errors"`
	Committed bool       `json:"committed"`
}

func (r *Result) addError(sheet string, row int, format string, args ...any) {
	r.Errors = append(r.Errors, RowError{
		Sheet:   sheet,
		Row:     row,
		Message: fmt.Sprintf(format, args...),
	})
}
