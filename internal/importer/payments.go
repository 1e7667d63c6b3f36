package importer

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/Behzodbek19981230/lms-sub002/internal/store"
)

const defaultPaymentDescription = "Monthly payment"

// paymentsPhase records payments against resolved students and groups.
// Rows referencing students or groups not touched by this workbook are
// batch-resolved first so per-row work stays cache-bound. Deduplication
// runs on the payment's natural key; status is not part of that key, so a
// re-import after an out-of-band status change skips rather than updates.
func (r *run) paymentsPhase(ctx context.Context, rows []row) error {
	var usernames, groupNames []string
	for _, rw := range rows {
		if u, ok := cellString(rw.get("studentusername", "studentuser", "student", "username")); ok {
			usernames = append(usernames, u)
		}
		if g, ok := cellString(rw.get("groupname", "group", "guruh")); ok {
			groupNames = append(groupNames, g)
		}
	}
	if err := r.sess.loadStudents(ctx, usernames); err != nil {
		return err
	}
	if err := r.sess.loadGroups(ctx, groupNames); err != nil {
		return err
	}

	for _, rw := range rows {
		username, hasUsername := cellString(rw.get("studentusername", "studentuser", "student", "username"))
		groupName, hasGroup := cellString(rw.get("groupname", "group", "guruh"))
		amount, hasAmount := cellNumber(rw.get("amount", "summa", "sum"))
		dueDate, hasDue := cellDate(rw.get("duedate", "due", "date"))
		status, _ := cellString(rw.get("status", "holat"))
		paidDate, hasPaid := cellDate(rw.get("paiddate", "paid"))
		description, hasDescription := cellString(rw.get("description", "desc", "izoh"))

		switch {
		case !hasUsername:
			r.res.addError(sheetPayments, rw.num, "student username is required")
			continue
		case !hasGroup:
			r.res.addError(sheetPayments, rw.num, "group name is required")
			continue
		case !hasAmount:
			r.res.addError(sheetPayments, rw.num, "amount is missing or not a number")
			continue
		case !hasDue:
			r.res.addError(sheetPayments, rw.num, "due date is missing or unparseable")
			continue
		}
		amount = math.Round(amount*100) / 100
		dueDate = dateOnly(dueDate)
		if !hasDescription {
			description = defaultPaymentDescription
		}

		student, found, err := r.sess.student(ctx, username)
		if err != nil {
			return err
		}
		if !found {
			r.res.addError(sheetPayments, rw.num, "student %q not found", username)
			continue
		}
		if student.CenterID != r.sess.centerID {
			r.res.addError(sheetPayments, rw.num, "student %q belongs to another center", username)
			continue
		}

		group, found, err := r.sess.group(ctx, groupName)
		if err != nil {
			return err
		}
		if !found {
			r.res.addError(sheetPayments, rw.num, "group %q not found", groupName)
			continue
		}

		payment := store.Payment{
			StudentID:   student.ID,
			GroupID:     group.ID,
			TeacherID:   group.TeacherID,
			CenterID:    r.sess.centerID,
			Amount:      amount,
			DueDate:     dueDate,
			Status:      normalizeStatus(status),
			Description: description,
		}
		if payment.Status == store.PaymentPaid {
			when := r.now()
			if hasPaid {
				when = paidDate
			}
			payment.PaidDate = &when
		}

		_, err = r.sess.tx.FindPayment(ctx, store.PaymentKey{
			StudentID:   student.ID,
			GroupID:     group.ID,
			DueDate:     dueDate,
			Amount:      amount,
			Description: description,
		})
		switch {
		case err == nil:
			r.res.Summary.PaymentsSkipped++
			continue
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		if _, err := r.sess.tx.CreatePayment(ctx, payment); err != nil {
			return err
		}
		r.res.Summary.PaymentsCreated++
	}
	return nil
}

// normalizeStatus maps free-text status to a known value, defaulting to
// pending for anything unrecognized.
func normalizeStatus(s string) string {
	switch s := strings.ToLower(s); s {
	case store.PaymentPaid, store.PaymentPending, store.PaymentOverdue, store.PaymentCancelled:
		return s
	default:
		return store.PaymentPending
	}
}
