// Package sqlxrepos implements the repositories on PostgreSQL with sqlx.
// Columns are mapped through the json tags of the domain types.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	"github.com/pkg/errors"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/finance"
	"github.com/excellacademy/academia/core/school"
	"github.com/excellacademy/academia/core/user"
	"github.com/excellacademy/academia/storage/database"
)

// dbtx is satisfied by *sqlx.DB and *sqlx.Tx.
type dbtx interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	BindNamed(query string, arg interface{}) (string, []interface{}, error)
}

var mapper = reflectx.NewMapperFunc("json", strings.ToLower)

func bind(db *sqlx.DB) dbtx {
	db.Mapper = mapper
	return db
}

// withinTx runs fn in a transaction of db. Nested calls join the running transaction.
func withinTx(ctx context.Context, db dbtx, fn func(tx dbtx) error) (err error) {
	if tx, ok := db.(*sqlx.Tx); ok {
		return fn(tx)
	}
	sdb, ok := db.(*sqlx.DB)
	if !ok {
		return errors.Errorf("cannot begin a transaction on %T", db)
	}

	tx, err := sdb.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// filter accumulates AND conditions written with ? placeholders. Slice args of IN (?) conditions are expanded.
type filter struct {
	conds []string
	args  []interface{}
}

func (f *filter) where(cond string, args ...interface{}) {
	f.conds = append(f.conds, cond)
	f.args = append(f.args, args...)
}

func (f *filter) clause() string {
	if len(f.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.conds, " AND ")
}

func (f *filter) sel(ctx context.Context, db dbtx, dest interface{}, base, suffix string) error {
	query, args, err := sqlx.In(base+f.clause()+" "+suffix, f.args...)
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return db.SelectContext(ctx, dest, db.Rebind(query), args...)
}

func get(ctx context.Context, db dbtx, dest interface{}, query string, args ...interface{}) error {
	return db.GetContext(ctx, dest, db.Rebind(query), args...)
}

// namedGet runs a named query returning one row, e.g. an INSERT ... RETURNING.
func namedGet(ctx context.Context, db dbtx, dest interface{}, query string, arg interface{}) error {
	q, args, err := db.BindNamed(query, arg)
	if err != nil {
		return errors.Wrap(err, "binding query")
	}
	return db.GetContext(ctx, dest, q, args...)
}

func exec(ctx context.Context, db dbtx, query string, args ...interface{}) (sql.Result, error) {
	return db.ExecContext(ctx, db.Rebind(query), args...)
}

// notFound replaces sql.ErrNoRows with the not-found error of the resource.
func notFound(err error, nfErr error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nfErr
	}
	return err
}

// mustAffect returns nfErr when res touched no row.
func mustAffect(res sql.Result, err error, nfErr error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return nfErr
	}
	return nil
}

type uniqueKey struct {
	key string
	err error
}

// uniqueKeys maps the unique constraints of the schema to the domain errors they stand for.
var uniqueKeys = map[string]uniqueKey{
	"users_username_key":              {"username", user.ErrUsernameExists},
	"users_email_key":                 {"email", user.ErrEmailExists},
	"classes_name_section_year_key":   {"class", school.ErrClassExists},
	"subjects_code_key":               {"code", school.ErrSubjectExists},
	"parents_user_id_key":             {"user_id", school.ErrProfileExists},
	"teachers_user_id_key":            {"user_id", school.ErrProfileExists},
	"students_user_id_key":            {"user_id", school.ErrProfileExists},
	"teachers_employee_id_key":        {"employee_id", school.ErrEmployeeIDExists},
	"students_admission_number_key":   {"admission_number", school.ErrAdmissionNumberExists},
	"fee_structures_class_period_key": {"fee_structure", finance.ErrDuplicateFee},
	"invoices_student_fee_key":        {"invoice", finance.ErrDuplicateInvoice},
	"payments_external_reference_key": {"external_reference", finance.ErrDuplicateReference},
}

// translate turns unique violations into core.DuplicateKeyError.
func translate(err error) error {
	if err == nil {
		return nil
	}
	constraint, ok := database.IsUniqueViolation(err)
	if !ok {
		return err
	}
	if uk, ok := uniqueKeys[constraint]; ok {
		return core.NewDuplicateKeyError(uk.key, uk.err)
	}
	return core.NewDuplicateKeyError(constraint, err)
}
