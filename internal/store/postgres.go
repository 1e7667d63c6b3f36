package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Postgres implements Store directly on a connection pool and hands out
// transaction-bound stores through Begin.
type Postgres struct {
	pgStore
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{pgStore: pgStore{q: db}, db: db}
}

func (p *Postgres) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &pgTx{pgStore: pgStore{q: tx}, tx: tx}, nil
}

type pgTx struct {
	pgStore
	tx   *sql.Tx
	done bool
}

func (t *pgTx) Commit() error {
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *pgTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type pgStore struct {
	q querier
}

func (s pgStore) CenterByID(ctx context.Context, id int64) (*Center, error) {
	var c Center
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, is_active FROM centers WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query center: %w", err)
	}
	return &c, nil
}

func (s pgStore) SubjectsByCenter(ctx context.Context, centerID int64) ([]Subject, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, center_id FROM subjects WHERE center_id = $1`,
		centerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query subjects: %w", err)
	}
	defer rows.Close()

	var subjects []Subject
	for rows.Next() {
		var sub Subject
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.CenterID); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}

func (s pgStore) CreateSubject(ctx context.Context, sub Subject) (Subject, error) {
	err := s.q.QueryRowContext(ctx,
		`INSERT INTO subjects (name, center_id) VALUES ($1, $2) RETURNING id`,
		strings.TrimSpace(sub.Name), sub.CenterID,
	).Scan(&sub.ID)
	if err != nil {
		return Subject{}, fmt.Errorf("insert subject: %w", err)
	}
	return sub, nil
}

const userColumns = `id, username, password_hash, role, first_name, last_name, COALESCE(phone, ''), is_active, center_id`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.FirstName, &u.LastName, &u.Phone, &u.IsActive, &u.CenterID)
	return u, err
}

func (s pgStore) TeachersByUsernames(ctx context.Context, usernames []string) ([]User, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = $1 AND username = ANY($2)`,
		RoleTeacher, usernames,
	)
	if err != nil {
		return nil, fmt.Errorf("query teachers: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (s pgStore) UserByUsername(ctx context.Context, username string) (*User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`,
		username,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

func (s pgStore) UsersByUsernames(ctx context.Context, usernames []string) ([]User, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ANY($1)`,
		usernames,
	)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func collectUsers(rows *sql.Rows) ([]User, error) {
	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s pgStore) CreateUser(ctx context.Context, u User) (User, error) {
	err := s.q.QueryRowContext(ctx,
		`INSERT INTO users (username, password_hash, role, first_name, last_name, phone, is_active, center_id)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
		 RETURNING id`,
		u.Username, u.PasswordHash, u.Role, u.FirstName, u.LastName, u.Phone, u.IsActive, u.CenterID,
	).Scan(&u.ID)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s pgStore) UpdateUser(ctx context.Context, u User) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE users
		 SET password_hash = $1, first_name = $2, last_name = $3, phone = NULLIF($4, ''), is_active = $5, updated_at = NOW()
		 WHERE id = $6`,
		u.PasswordHash, u.FirstName, u.LastName, u.Phone, u.IsActive, u.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const groupColumns = `id, name, center_id, teacher_id, subject_id, COALESCE(days_of_week, ''), start_time, end_time, COALESCE(description, '')`

func scanGroup(row interface{ Scan(...any) error }) (Group, error) {
	var g Group
	var days string
	err := row.Scan(&g.ID, &g.Name, &g.CenterID, &g.TeacherID, &g.SubjectID, &days, &g.StartTime, &g.EndTime, &g.Description)
	if err != nil {
		return Group{}, err
	}
	g.DaysOfWeek = splitDays(days)
	return g, nil
}

func splitDays(days string) []string {
	if days == "" {
		return nil
	}
	return strings.Split(days, ",")
}

func joinDays(days []string) string {
	return strings.Join(days, ",")
}

func (s pgStore) GroupByName(ctx context.Context, centerID int64, name string) (*Group, error) {
	g, err := scanGroup(s.q.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM study_groups WHERE center_id = $1 AND LOWER(name) = LOWER($2)`,
		centerID, name,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query group: %w", err)
	}
	return &g, nil
}

func (s pgStore) GroupsByNames(ctx context.Context, centerID int64, names []string) ([]Group, error) {
	if len(names) == 0 {
		return nil, nil
	}
	lowered := make([]string, len(names))
	for i, n := range names {
		lowered[i] = strings.ToLower(n)
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+groupColumns+` FROM study_groups WHERE center_id = $1 AND LOWER(name) = ANY($2)`,
		centerID, lowered,
	)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s pgStore) CreateGroup(ctx context.Context, g Group) (Group, error) {
	err := s.q.QueryRowContext(ctx,
		`INSERT INTO study_groups (name, center_id, teacher_id, subject_id, days_of_week, start_time, end_time, description)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, NULLIF($8, ''))
		 RETURNING id`,
		strings.TrimSpace(g.Name), g.CenterID, g.TeacherID, g.SubjectID, joinDays(g.DaysOfWeek), g.StartTime, g.EndTime, g.Description,
	).Scan(&g.ID)
	if err != nil {
		return Group{}, fmt.Errorf("insert group: %w", err)
	}
	return g, nil
}

func (s pgStore) UpdateGroup(ctx context.Context, g Group) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE study_groups
		 SET teacher_id = $1, subject_id = $2, days_of_week = NULLIF($3, ''), start_time = $4, end_time = $5, description = NULLIF($6, ''), updated_at = NOW()
		 WHERE id = $7`,
		g.TeacherID, g.SubjectID, joinDays(g.DaysOfWeek), g.StartTime, g.EndTime, g.Description, g.ID,
	)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s pgStore) IsGroupMember(ctx context.Context, groupID, studentID int64) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM group_students WHERE group_id = $1 AND student_id = $2)`,
		groupID, studentID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query membership: %w", err)
	}
	return exists, nil
}

func (s pgStore) AddGroupMember(ctx context.Context, groupID, studentID int64) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO group_students (group_id, student_id) VALUES ($1, $2)
		 ON CONFLICT (group_id, student_id) DO NOTHING`,
		groupID, studentID,
	)
	if err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

const paymentColumns = `id, student_id, group_id, teacher_id, center_id, amount, due_date, status, paid_date, COALESCE(description, '')`

func (s pgStore) FindPayment(ctx context.Context, key PaymentKey) (*Payment, error) {
	var p Payment
	err := s.q.QueryRowContext(ctx,
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE student_id = $1 AND group_id = $2 AND due_date = $3 AND amount = $4 AND COALESCE(description, '') = $5`,
		key.StudentID, key.GroupID, key.DueDate, key.Amount, key.Description,
	).Scan(&p.ID, &p.StudentID, &p.GroupID, &p.TeacherID, &p.CenterID, &p.Amount, &p.DueDate, &p.Status, &p.PaidDate, &p.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query payment: %w", err)
	}
	return &p, nil
}

func (s pgStore) CreatePayment(ctx context.Context, p Payment) (Payment, error) {
	err := s.q.QueryRowContext(ctx,
		`INSERT INTO payments (student_id, group_id, teacher_id, center_id, amount, due_date, status, paid_date, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))
		 RETURNING id`,
		p.StudentID, p.GroupID, p.TeacherID, p.CenterID, p.Amount, p.DueDate, p.Status, p.PaidDate, p.Description,
	).Scan(&p.ID)
	if err != nil {
		return Payment{}, fmt.Errorf("insert payment: %w", err)
	}
	return p, nil
}
