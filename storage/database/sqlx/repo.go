// Package sqlxrepos implements the core repositories on top of sqlx, for postgres and sqlite.
// Queries are written with `?` placeholders and rebound for the connection's driver.
package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-obe/storage/database"
)

// Repositories groups every repository sharing one database.
type Repositories struct {
	Users       *userRepository
	Courses     *courseRepository
	Outcomes    *outcomeRepository
	Assessments *assessmentRepository
}

func NewRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		Users:       NewUserRepository(db),
		Courses:     NewCourseRepository(db),
		Outcomes:    NewOutcomeRepository(db),
		Assessments: NewAssessmentRepository(db),
	}
}

// The helpers take a sqlx.ExtContext so they run on a *sqlx.DB as well as inside a *sqlx.Tx.

// insert runs an INSERT ... RETURNING id statement.
func insert(ctx context.Context, db sqlx.ExtContext, query string, args ...interface{}) (int, error) {
	var id int
	err := db.QueryRowxContext(ctx, db.Rebind(query), args...).Scan(&id)
	return id, err
}

// get loads one row into dest, mapping sql.ErrNoRows to notFound.
func get(ctx context.Context, db sqlx.ExtContext, notFound error, dest interface{}, query string, args ...interface{}) error {
	err := sqlx.GetContext(ctx, db, dest, db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return err
}

func selectAll(ctx context.Context, db sqlx.ExtContext, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, db, dest, db.Rebind(query), args...)
}

// exec runs a statement that must touch at least one row, notFound otherwise.
func exec(ctx context.Context, db sqlx.ExtContext, notFound error, query string, args ...interface{}) error {
	res, err := db.ExecContext(ctx, db.Rebind(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// uniqueOr returns conflict when err is a unique violation, err wrapped with msg otherwise.
func uniqueOr(err, conflict error, msg string) error {
	if database.IsUniqueViolation(err) {
		return conflict
	}
	return errors.Wrap(err, msg)
}
