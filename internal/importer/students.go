package importer

import (
	"context"

	"github.com/Behzodbek19981230/lms-sub002/internal/store"
)

// studentsPhase upserts student accounts and their group memberships.
// Existing accounts are batch-resolved up front; a row naming an account
// that is not a student, or a student of another center, is rejected
// without touching the account.
func (r *run) studentsPhase(ctx context.Context, rows []row) error {
	usernames := make([]string, 0, len(rows))
	for _, rw := range rows {
		if u, ok := cellString(rw.get("username", "login", "studentusername")); ok {
			usernames = append(usernames, u)
		}
	}
	if err := r.sess.loadStudents(ctx, usernames); err != nil {
		return err
	}

	for _, rw := range rows {
		username, hasUsername := cellString(rw.get("username", "login", "studentusername"))
		password, hasPassword := cellString(rw.get("password", "parol"))
		firstName, hasFirst := cellString(rw.get("firstname", "first", "ism"))
		lastName, hasLast := cellString(rw.get("lastname", "last", "familiya"))
		phone, hasPhone := cellString(rw.get("phone", "phonenumber", "telefon"))
		groupName, hasGroup := cellString(rw.get("groupname", "group", "guruh"))

		switch {
		case !hasUsername:
			r.res.addError(sheetStudents, rw.num, "username is required")
			continue
		case !hasFirst || !hasLast:
			r.res.addError(sheetStudents, rw.num, "first name and last name are required")
			continue
		}

		student, exists, err := r.sess.student(ctx, username)
		if err != nil {
			return err
		}

		switch {
		case exists && student.Role != store.RoleStudent:
			r.res.addError(sheetStudents, rw.num, "username %q is taken by a non-student account", username)
			continue
		case exists && student.CenterID != r.sess.centerID:
			r.res.addError(sheetStudents, rw.num, "student %q belongs to another center", username)
			continue
		case exists:
			student.FirstName = firstName
			student.LastName = lastName
			if hasPhone {
				student.Phone = phone
			}
			if hasPassword {
				hash, err := r.hash(password)
				if err != nil {
					return err
				}
				student.PasswordHash = hash
			}
			if err := r.sess.tx.UpdateUser(ctx, student); err != nil {
				return err
			}
			r.res.Summary.StudentsUpdated++
			r.sess.putStudent(student)
		default:
			secret := password
			if !hasPassword {
				secret = r.defaultPassword
			}
			hash, err := r.hash(secret)
			if err != nil {
				return err
			}
			student, err = r.sess.tx.CreateUser(ctx, store.User{
				Username:     username,
				PasswordHash: hash,
				Role:         store.RoleStudent,
				FirstName:    firstName,
				LastName:     lastName,
				Phone:        phone,
				IsActive:     true,
				CenterID:     r.sess.centerID,
			})
			if err != nil {
				return err
			}
			r.res.Summary.StudentsCreated++
			r.sess.putStudent(student)
		}

		if !hasGroup {
			continue
		}
		group, found, err := r.sess.group(ctx, groupName)
		if err != nil {
			return err
		}
		if !found {
			// The student upsert above stands; only the link is refused.
			r.res.addError(sheetStudents, rw.num, "group %q not found", groupName)
			continue
		}
		member, err := r.sess.tx.IsGroupMember(ctx, group.ID, student.ID)
		if err != nil {
			return err
		}
		if member {
			continue
		}
		if err := r.sess.tx.AddGroupMember(ctx, group.ID, student.ID); err != nil {
			return err
		}
		r.res.Summary.StudentGroupLinksCreated++
	}
	return nil
}
