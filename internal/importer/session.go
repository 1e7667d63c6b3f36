package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Behzodbek19981230/lms-sub002/internal/store"
)

// session holds the per-run resolution caches. Every key is a business key
// (lower-cased name or username) scoped to the run's tenant; entries live
// for one import call and are updated the moment the underlying entity is
// created or modified, so a cache hit is never stale within the run.
type session struct {
	tx       store.Tx
	centerID int64

	subjects map[string]store.Subject // lower-cased subject name
	teachers map[string]store.User    // username
	groups   map[string]store.Group   // lower-cased group name
	students map[string]store.User    // username
}

func newSession(tx store.Tx, centerID int64) *session {
	return &session{
		tx:       tx,
		centerID: centerID,
		subjects: map[string]store.Subject{},
		teachers: map[string]store.User{},
		groups:   map[string]store.Group{},
		students: map[string]store.User{},
	}
}

// loadSubjects preloads every subject already belonging to the tenant.
func (s *session) loadSubjects(ctx context.Context) error {
	subjects, err := s.tx.SubjectsByCenter(ctx, s.centerID)
	if err != nil {
		return err
	}
	for _, sub := range subjects {
		s.subjects[strings.ToLower(sub.Name)] = sub
	}
	return nil
}

// subjectByName resolves a subject by name, creating it under the tenant on
// first reference. Later rows naming the same subject reuse the cache entry.
func (s *session) subjectByName(ctx context.Context, name string, summary *Summary) (store.Subject, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if sub, ok := s.subjects[key]; ok {
		return sub, nil
	}

	sub, err := s.tx.CreateSubject(ctx, store.Subject{Name: strings.TrimSpace(name), CenterID: s.centerID})
	if err != nil {
		return store.Subject{}, fmt.Errorf("create subject %q: %w", name, err)
	}
	summary.SubjectsCreated++
	s.subjects[key] = sub
	return sub, nil
}

// loadTeachers batch-resolves every distinct teacher username referenced by
// the groups sheet, bounding round-trips to O(distinct teachers).
func (s *session) loadTeachers(ctx context.Context, usernames []string) error {
	missing := distinctMissing(usernames, func(u string) bool { _, ok := s.teachers[u]; return ok })
	if len(missing) == 0 {
		return nil
	}
	teachers, err := s.tx.TeachersByUsernames(ctx, missing)
	if err != nil {
		return err
	}
	for _, t := range teachers {
		s.teachers[t.Username] = t
	}
	return nil
}

func (s *session) teacher(username string) (store.User, bool) {
	t, ok := s.teachers[username]
	return t, ok
}

// loadStudents batch-resolves usernames into the student cache. The cache
// may also hold non-student accounts; validation happens at the point of use.
func (s *session) loadStudents(ctx context.Context, usernames []string) error {
	missing := distinctMissing(usernames, func(u string) bool { _, ok := s.students[u]; return ok })
	if len(missing) == 0 {
		return nil
	}
	users, err := s.tx.UsersByUsernames(ctx, missing)
	if err != nil {
		return err
	}
	for _, u := range users {
		s.students[u.Username] = u
	}
	return nil
}

// student resolves a username from the cache, falling back to a point
// lookup: a payment can reference a student absent from this workbook's
// students sheet.
func (s *session) student(ctx context.Context, username string) (store.User, bool, error) {
	if u, ok := s.students[username]; ok {
		return u, true, nil
	}
	u, err := s.tx.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.User{}, false, nil
		}
		return store.User{}, false, err
	}
	s.students[u.Username] = *u
	return *u, true, nil
}

func (s *session) putStudent(u store.User) {
	s.students[u.Username] = u
}

// loadGroups batch-resolves group names not yet cached, used before the
// payments phase so its lookups stay bounded.
func (s *session) loadGroups(ctx context.Context, names []string) error {
	missing := distinctMissing(names, func(n string) bool { _, ok := s.groups[strings.ToLower(n)]; return ok })
	if len(missing) == 0 {
		return nil
	}
	groups, err := s.tx.GroupsByNames(ctx, s.centerID, missing)
	if err != nil {
		return err
	}
	for _, g := range groups {
		s.groups[strings.ToLower(g.Name)] = g
	}
	return nil
}

// group resolves a group by name within the tenant, cache first, then a
// direct lookup.
func (s *session) group(ctx context.Context, name string) (store.Group, bool, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if g, ok := s.groups[key]; ok {
		return g, true, nil
	}
	g, err := s.tx.GroupByName(ctx, s.centerID, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Group{}, false, nil
		}
		return store.Group{}, false, err
	}
	s.groups[key] = *g
	return *g, true, nil
}

func (s *session) putGroup(g store.Group) {
	s.groups[strings.ToLower(g.Name)] = g
}

// distinctMissing filters keys to the distinct ones not yet cached,
// preserving first-seen order.
func distinctMissing(keys []string, cached func(string) bool) []string {
	seen := map[string]bool{}
	var out []string
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] || cached(k) {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
