package importer

import (
	"context"
	"strings"

	"github.com/Behzodbek19981230/lms-sub002/internal/store"
)

// groupsPhase upserts study groups. Teachers for every row are resolved in
// one batched lookup up front, then each row is validated and either
// created or merged into the existing group of the same name.
func (r *run) groupsPhase(ctx context.Context, rows []row) error {
	usernames := make([]string, 0, len(rows))
	for _, rw := range rows {
		if u, ok := cellString(rw.get("teacherusername", "teacheruser", "teacher")); ok {
			usernames = append(usernames, u)
		}
	}
	if err := r.sess.loadTeachers(ctx, usernames); err != nil {
		return err
	}

	for _, rw := range rows {
		name, hasName := cellString(rw.get("name", "groupname", "group"))
		teacherUsername, hasTeacher := cellString(rw.get("teacherusername", "teacheruser", "teacher"))
		startTime, hasStart := cellString(rw.get("starttime", "start"))
		endTime, hasEnd := cellString(rw.get("endtime", "end"))
		description, hasDescription := cellString(rw.get("description", "desc", "izoh"))
		subjectName, hasSubject := cellString(rw.get("subjectname", "subject", "fan"))
		days := splitDays(rw.get("daysofweek", "days", "weekdays", "schedule"))

		switch {
		case !hasName:
			r.res.addError(sheetGroups, rw.num, "group name is required")
			continue
		case !hasTeacher:
			r.res.addError(sheetGroups, rw.num, "teacher username is required")
			continue
		case !hasStart || !hasEnd:
			r.res.addError(sheetGroups, rw.num, "start time and end time are required")
			continue
		}

		teacher, ok := r.sess.teacher(teacherUsername)
		if !ok {
			r.res.addError(sheetGroups, rw.num, "teacher %q not found", teacherUsername)
			continue
		}
		if teacher.CenterID != r.sess.centerID {
			r.res.addError(sheetGroups, rw.num, "teacher %q belongs to another center", teacherUsername)
			continue
		}

		var subjectID *int64
		if hasSubject {
			subject, err := r.sess.subjectByName(ctx, subjectName, &r.res.Summary)
			if err != nil {
				return err
			}
			subjectID = &subject.ID
		}

		existing, found, err := r.sess.group(ctx, name)
		if err != nil {
			return err
		}

		if !found {
			created, err := r.sess.tx.CreateGroup(ctx, store.Group{
				Name:        name,
				CenterID:    r.sess.centerID,
				TeacherID:   teacher.ID,
				SubjectID:   subjectID,
				DaysOfWeek:  days,
				StartTime:   startTime,
				EndTime:     endTime,
				Description: description,
			})
			if err != nil {
				return err
			}
			r.res.Summary.GroupsCreated++
			r.sess.putGroup(created)
			continue
		}

		// Merge semantics: schedule times and teacher always win, the
		// optional fields only replace when the sheet supplies them.
		existing.TeacherID = teacher.ID
		existing.StartTime = startTime
		existing.EndTime = endTime
		if subjectID != nil {
			existing.SubjectID = subjectID
		}
		if len(days) > 0 {
			existing.DaysOfWeek = days
		}
		if hasDescription {
			existing.Description = description
		}
		if err := r.sess.tx.UpdateGroup(ctx, existing); err != nil {
			return err
		}
		r.res.Summary.GroupsUpdated++
		r.sess.putGroup(existing)
	}
	return nil
}

// splitDays turns free text like "Mon, Wed Fri" into a lower-cased day
// list, split on commas and whitespace, duplicates removed.
func splitDays(v string) []string {
	fields := strings.FieldsFunc(strings.ToLower(v), func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t'
	})
	seen := map[string]bool{}
	var days []string
	for _, f := range fields {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		days = append(days, f)
	}
	return days
}
