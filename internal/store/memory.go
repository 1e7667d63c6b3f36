package store

import (
	"context"
	"strings"
	"sync"
)

// Memory is an in-memory Store and DB with the same semantics as the
// Postgres implementation. It backs the engine's unit tests; transactions
// are snapshot-based, so a rollback discards every write of the run.
type Memory struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	nextID   int64
	centers  []Center
	users    []User
	subjects []Subject
	groups   []Group
	members  map[[2]int64]bool // [groupID, studentID]
	payments []Payment
}

func NewMemory() *Memory {
	return &Memory{state: newMemState()}
}

func newMemState() *memState {
	return &memState{nextID: 1, members: map[[2]int64]bool{}}
}

// AddCenter seeds a tenant. Centers are never created by the engine itself.
func (m *Memory) AddCenter(name string) Center {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := Center{ID: m.state.nextID, Name: name, IsActive: true}
	m.state.nextID++
	m.state.centers = append(m.state.centers, c)
	return c
}

func (m *Memory) Begin(ctx context.Context) (Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &memTx{memStore: memStore{state: m.state.clone()}, parent: m}, nil
}

type memTx struct {
	memStore
	parent *Memory
	done   bool
}

func (t *memTx) Commit() error {
	t.done = true
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()
	t.parent.state = t.state
	return nil
}

func (t *memTx) Rollback() error {
	t.done = true
	return nil
}

func (s *memState) clone() *memState {
	out := &memState{
		nextID:   s.nextID,
		centers:  append([]Center(nil), s.centers...),
		users:    append([]User(nil), s.users...),
		subjects: append([]Subject(nil), s.subjects...),
		payments: make([]Payment, len(s.payments)),
		groups:   make([]Group, len(s.groups)),
		members:  make(map[[2]int64]bool, len(s.members)),
	}
	for i, g := range s.groups {
		g.DaysOfWeek = append([]string(nil), g.DaysOfWeek...)
		if g.SubjectID != nil {
			id := *g.SubjectID
			g.SubjectID = &id
		}
		out.groups[i] = g
	}
	for i, p := range s.payments {
		if p.PaidDate != nil {
			d := *p.PaidDate
			p.PaidDate = &d
		}
		out.payments[i] = p
	}
	for k, v := range s.members {
		out.members[k] = v
	}
	return out
}

// memStore implements Store over a memState. Memory embeds it behind the
// pool lock; memTx embeds it over its private snapshot.
type memStore struct {
	state *memState
}

// Direct (non-transactional) access for tests and seeding.
func (m *Memory) CenterByID(ctx context.Context, id int64) (*Center, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memStore{m.state}.CenterByID(ctx, id)
}

func (m *Memory) SubjectsByCenter(ctx context.Context, centerID int64) ([]Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memStore{m.state}.SubjectsByCenter(ctx, centerID)
}

func (m *Memory) CreateSubject(ctx context.Context, s Subject) (Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memStore{m.state}.CreateSubject(ctx, s)
}

func (m *Memory) TeachersByUsernames(ctx context.Context, usernames []string) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memStore{m.state}.TeachersByUsernames(ctx, usernames)
}

func (m *Memory) UserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memStore{m.state}.UserByUsername(ctx, username)
}

func (m *Memory) UsersByUsernames(ctx context.Context, usernames []string) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memStore{m.state}.UsersByUsernames(ctx, usernames)
}

func (m *Memory) CreateUser(ctx context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memStore{m.state}.CreateUser(ctx, u)
}

func (m *Memory) UpdateUser(ctx context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memStore{m.state}.UpdateUser(ctx, u)
}

func (m *Memory) GroupByName(ctx context.Context, centerID int64, name string) (*Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memStore{m.state}.GroupByName(ctx, centerID, name)
}

func (m *Memory) GroupsByNames(ctx context.Context, centerID int64, names []string) ([]Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memStore{m.state}.GroupsByNames(ctx, centerID, names)
}

func (m *Memory) CreateGroup(ctx context.Context, g Group) (Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memStore{m.state}.CreateGroup(ctx, g)
}

func (m *Memory) UpdateGroup(ctx context.Context, g Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memStore{m.state}.UpdateGroup(ctx, g)
}

func (m *Memory) IsGroupMember(ctx context.Context, groupID, studentID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memStore{m.state}.IsGroupMember(ctx, groupID, studentID)
}

func (m *Memory) AddGroupMember(ctx context.Context, groupID, studentID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memStore{m.state}.AddGroupMember(ctx, groupID, studentID)
}

func (m *Memory) FindPayment(ctx context.Context, key PaymentKey) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memStore{m.state}.FindPayment(ctx, key)
}

func (m *Memory) CreatePayment(ctx context.Context, p Payment) (Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memStore{m.state}.CreatePayment(ctx, p)
}

// Payments returns every stored payment, for test assertions.
func (m *Memory) Payments() []Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Payment(nil), m.state.payments...)
}

// Groups returns every stored group, for test assertions.
func (m *Memory) Groups() []Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Group(nil), m.state.groups...)
}

// Users returns every stored user, for test assertions.
func (m *Memory) Users() []User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]User(nil), m.state.users...)
}

// MemberCount returns the number of membership links, for test assertions.
func (m *Memory) MemberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.members)
}

func (s memStore) CenterByID(_ context.Context, id int64) (*Center, error) {
	for _, c := range s.state.centers {
		if c.ID == id {
			out := c
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s memStore) SubjectsByCenter(_ context.Context, centerID int64) ([]Subject, error) {
	var out []Subject
	for _, sub := range s.state.subjects {
		if sub.CenterID == centerID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s memStore) CreateSubject(_ context.Context, sub Subject) (Subject, error) {
	sub.ID = s.state.nextID
	s.state.nextID++
	s.state.subjects = append(s.state.subjects, sub)
	return sub, nil
}

func (s memStore) TeachersByUsernames(_ context.Context, usernames []string) ([]User, error) {
	want := toSet(usernames)
	var out []User
	for _, u := range s.state.users {
		if u.Role == RoleTeacher && want[u.Username] {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s memStore) UserByUsername(_ context.Context, username string) (*User, error) {
	for _, u := range s.state.users {
		if u.Username == username {
			out := u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s memStore) UsersByUsernames(_ context.Context, usernames []string) ([]User, error) {
	want := toSet(usernames)
	var out []User
	for _, u := range s.state.users {
		if want[u.Username] {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s memStore) CreateUser(_ context.Context, u User) (User, error) {
	u.ID = s.state.nextID
	s.state.nextID++
	s.state.users = append(s.state.users, u)
	return u, nil
}

func (s memStore) UpdateUser(_ context.Context, u User) error {
	for i := range s.state.users {
		if s.state.users[i].ID == u.ID {
			s.state.users[i] = u
			return nil
		}
	}
	return ErrNotFound
}

func (s memStore) GroupByName(_ context.Context, centerID int64, name string) (*Group, error) {
	for _, g := range s.state.groups {
		if g.CenterID == centerID && strings.EqualFold(g.Name, name) {
			out := g
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s memStore) GroupsByNames(_ context.Context, centerID int64, names []string) ([]Group, error) {
	want := map[string]bool{}
	for _, n := range names {
		want[strings.ToLower(n)] = true
	}
	var out []Group
	for _, g := range s.state.groups {
		if g.CenterID == centerID && want[strings.ToLower(g.Name)] {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s memStore) CreateGroup(_ context.Context, g Group) (Group, error) {
	g.ID = s.state.nextID
	s.state.nextID++
	s.state.groups = append(s.state.groups, g)
	return g, nil
}

func (s memStore) UpdateGroup(_ context.Context, g Group) error {
	for i := range s.state.groups {
		if s.state.groups[i].ID == g.ID {
			s.state.groups[i] = g
			return nil
		}
	}
	return ErrNotFound
}

func (s memStore) IsGroupMember(_ context.Context, groupID, studentID int64) (bool, error) {
	return s.state.members[[2]int64{groupID, studentID}], nil
}

func (s memStore) AddGroupMember(_ context.Context, groupID, studentID int64) error {
	s.state.members[[2]int64{groupID, studentID}] = true
	return nil
}

func (s memStore) FindPayment(_ context.Context, key PaymentKey) (*Payment, error) {
	for _, p := range s.state.payments {
		if p.StudentID == key.StudentID && p.GroupID == key.GroupID &&
			p.DueDate.Equal(key.DueDate) && p.Amount == key.Amount && p.Description == key.Description {
			out := p
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s memStore) CreatePayment(_ context.Context, p Payment) (Payment, error) {
	p.ID = s.state.nextID
	s.state.nextID++
	s.state.payments = append(s.state.payments, p)
	return p, nil
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

var _ Store = (*Memory)(nil)
var _ DB = (*Memory)(nil)
var _ Tx = (*memTx)(nil)
