package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by point lookups when no row matches.
var ErrNotFound = errors.New("not found")

// User roles.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Payment statuses.
const (
	PaymentPending   = "pending"
	PaymentPaid      = "paid"
	PaymentOverdue   = "overdue"
	PaymentCancelled = "cancelled"
)

type Center struct {
	ID       int64
	Name     string
	IsActive bool
}

// User covers teachers and students alike; Role tells them apart.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         string
	FirstName    string
	LastName     string
	Phone        string
	IsActive     bool
	CenterID     int64
}

type Subject struct {
	ID       int64
	Name     string
	CenterID int64
}

type Group struct {
	ID          int64
	Name        string
	CenterID    int64
	TeacherID   int64
	SubjectID   *int64
	DaysOfWeek  []string
	StartTime   string
	EndTime     string
	Description string
}

type Payment struct {
	ID          int64
	StudentID   int64
	GroupID     int64
	TeacherID   int64
	CenterID    int64
	Amount      float64
	DueDate     time.Time
	Status      string
	PaidDate    *time.Time
	Description string
}

// PaymentKey is the natural key used for payment deduplication. Status is
// deliberately not part of the key.
type PaymentKey struct {
	StudentID   int64
	GroupID     int64
	DueDate     time.Time
	Amount      float64
	Description string
}

// Store is the typed persistence surface the import phases consume. Name
// matching (subjects, groups) is case-insensitive; username matching is
// exact. Point lookups return ErrNotFound on a miss, bulk lookups simply
// omit missing keys.
type Store interface {
	CenterByID(ctx context.Context, id int64) (*Center, error)

	SubjectsByCenter(ctx context.Context, centerID int64) ([]Subject, error)
	CreateSubject(ctx context.Context, s Subject) (Subject, error)

	TeachersByUsernames(ctx context.Context, usernames []string) ([]User, error)
	UserByUsername(ctx context.Context, username string) (*User, error)
	UsersByUsernames(ctx context.Context, usernames []string) ([]User, error)
	CreateUser(ctx context.Context, u User) (User, error)
	UpdateUser(ctx context.Context, u User) error

	GroupByName(ctx context.Context, centerID int64, name string) (*Group, error)
	GroupsByNames(ctx context.Context, centerID int64, names []string) ([]Group, error)
	CreateGroup(ctx context.Context, g Group) (Group, error)
	UpdateGroup(ctx context.Context, g Group) error

	IsGroupMember(ctx context.Context, groupID, studentID int64) (bool, error)
	AddGroupMember(ctx context.Context, groupID, studentID int64) error

	FindPayment(ctx context.Context, key PaymentKey) (*Payment, error)
	CreatePayment(ctx context.Context, p Payment) (Payment, error)
}

// DB hands out transactional units of work. The import engine runs all three
// phases against a single Tx and commits only when no row errors were
// collected.
type DB interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a Store bound to one transaction. Rollback after Commit is a no-op,
// so callers can keep the usual defer tx.Rollback() shape.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}
