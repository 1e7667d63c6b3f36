package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Behzodbek19981230/lms-sub002/internal/auth"
	"github.com/Behzodbek19981230/lms-sub002/internal/store"
)

// ErrMalformedWorkbook marks structural failures: input that cannot be
// processed at all, as opposed to row-level business errors.
var ErrMalformedWorkbook = errors.New("malformed workbook")

// Engine imports one workbook into one center, all or nothing.
type Engine struct {
	db              store.DB
	defaultPassword string

	hash func(string) (string, error)
	now  func() time.Time
}

type run struct {
	sess            *session
	res             *Result
	defaultPassword string
	hash            func(string) (string, error)
	now             func() time.Time
}

// NewEngine builds an Engine. defaultPassword is the credential given to
// created students whose row carries no password.
func NewEngine(db store.DB, defaultPassword string) *Engine {
	return &Engine{
		db:              db,
		defaultPassword: defaultPassword,
		hash:            auth.HashPassword,
		now:             time.Now,
	}
}

// Import runs the three phases (groups, students, payments) over the
// workbook inside one transaction. The returned error covers structural
// failures only; business-rule violations come back inside Result.Errors,
// and any of them rolls the whole run back with a zeroed summary.
func (e *Engine) Import(ctx context.Context, centerID int64, workbook []byte) (*Result, error) {
	file, err := openWorkbook(workbook)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWorkbook, err)
	}
	defer file.Close()

	var groupRows, studentRows, paymentRows []row
	located := 0
	if sheet, ok := locateSheet(file, groupsSheetNames); ok {
		located++
		if groupRows, err = sheetRows(file, sheet); err != nil {
			return nil, err
		}
	}
	if sheet, ok := locateSheet(file, studentsSheetNames); ok {
		located++
		if studentRows, err = sheetRows(file, sheet); err != nil {
			return nil, err
		}
	}
	if sheet, ok := locateSheet(file, paymentsSheetNames); ok {
		located++
		if paymentRows, err = sheetRows(file, sheet); err != nil {
			return nil, err
		}
	}
	if located == 0 {
		return nil, fmt.Errorf("%w: no groups, students or payments sheet", ErrMalformedWorkbook)
	}
	if len(groupRows)+len(studentRows)+len(paymentRows) == 0 {
		return nil, fmt.Errorf("%w: no data rows", ErrMalformedWorkbook)
	}

	tx, err := e.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.CenterByID(ctx, centerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("center %d: %w", centerID, err)
		}
		return nil, err
	}

	r := &run{
		sess:            newSession(tx, centerID),
		res:             &Result{},
		defaultPassword: e.defaultPassword,
		hash:            e.hash,
		now:             e.now,
	}
	if err := r.sess.loadSubjects(ctx); err != nil {
		return nil, err
	}

	// Phase order is load-bearing: payments reference students and groups,
	// students reference groups.
	if err := r.groupsPhase(ctx, groupRows); err != nil {
		return nil, err
	}
	if err := r.studentsPhase(ctx, studentRows); err != nil {
		return nil, err
	}
	if err := r.paymentsPhase(ctx, paymentRows); err != nil {
		return nil, err
	}

	if len(r.res.Errors) > 0 {
		if err := tx.Rollback(); err != nil {
			return nil, err
		}
		r.res.Summary = Summary{}
		return r.res, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	r.res.Committed = true
	return r.res, nil
}
