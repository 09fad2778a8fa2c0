package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users(context context.Context) UserStore { return &userStore{db: s.db} }
func (s *PGStore) RefreshCredentials(context context.Context) RefreshCredentialStore {
	return &refreshStore{db: s.db}
}

// pgUniqueViolation is the SQLSTATE Postgres raises for a unique constraint
// breach.
const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// User store ---------------------------------------------------------------
type userStore struct{ db *sql.DB }

const userColumns = `id, name, last_names, username, email, phone_number, password_hash, role, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Name, &u.LastNames, &u.Username, &u.Email, &u.PhoneNumber,
		&u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *userStore) Create(ctx context.Context, u *User) error {
	row := s.db.QueryRowContext(ctx,
		`insert into users(name, last_names, username, email, phone_number, password_hash, role, is_active)
		 values($1,$2,$3,$4,$5,$6,$7,$8)
		 returning id, created_at, updated_at`,
		u.Name, u.LastNames, u.Username, u.Email, u.PhoneNumber, u.PasswordHash, u.Role, u.IsActive,
	)
	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username or email already registered", ErrConflict)
		}
		return err
	}
	return nil
}

func (s *userStore) Find(ctx context.Context, id int64) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id))
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, email))
}

func (s *userStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where username=$1`, username))
}

// searchOrderColumns whitelists the sortable columns; anything else falls
// back to id so request input can never reach the ORDER BY clause raw.
var searchOrderColumns = map[string]string{
	"id":         "id",
	"name":       "name",
	"username":   "username",
	"email":      "email",
	"role":       "role",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

func (s *userStore) Search(ctx context.Context, q UserSearch) (*UserPage, error) {
	q.Normalize()

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if q.Search != "" {
		p := arg("%" + q.Search + "%")
		where = append(where, fmt.Sprintf(
			"(name ilike %s or last_names ilike %s or username ilike %s or email ilike %s)", p, p, p, p))
	}
	if q.Role != nil {
		where = append(where, "role = "+arg(*q.Role))
	}
	if q.IsActive != nil {
		where = append(where, "is_active = "+arg(*q.IsActive))
	}
	clause := ""
	if len(where) > 0 {
		clause = " where " + strings.Join(where, " and ")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `select count(*) from users`+clause, args...).Scan(&total); err != nil {
		return nil, err
	}

	orderBy, ok := searchOrderColumns[q.OrderBy]
	if !ok {
		orderBy = "id"
	}
	dir := "asc"
	if strings.EqualFold(q.OrderDirection, "desc") {
		dir = "desc"
	}
	query := `select ` + userColumns + ` from users` + clause +
		fmt.Sprintf(" order by %s %s limit %s offset %s",
			orderBy, dir, arg(q.PageSize), arg((q.Page-1)*q.PageSize))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return NewUserPage(items, total, q.Page, q.PageSize), nil
}

func (s *userStore) Update(ctx context.Context, id int64, upd UserUpdate) (*User, error) {
	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if upd.Name != nil {
		set("name", *upd.Name)
	}
	if upd.LastNames != nil {
		set("last_names", *upd.LastNames)
	}
	if upd.Username != nil {
		set("username", *upd.Username)
	}
	if upd.Email != nil {
		set("email", *upd.Email)
	}
	if upd.PhoneNumber != nil {
		set("phone_number", *upd.PhoneNumber)
	}
	if upd.Role != nil {
		set("role", *upd.Role)
	}
	if upd.IsActive != nil {
		set("is_active", *upd.IsActive)
	}
	if len(sets) == 0 {
		return s.Find(ctx, id)
	}
	sets = append(sets, "updated_at=now()")
	args = append(args, id)
	query := fmt.Sprintf(`update users set %s where id=$%d returning `+userColumns,
		strings.Join(sets, ", "), len(args))

	u, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: username or email already registered", ErrConflict)
		}
		return nil, err
	}
	return u, nil
}

func (s *userStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash=$1, updated_at=now() where id=$2`, passwordHash, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *userStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Refresh credential store --------------------------------------------------
type refreshStore struct{ db *sql.DB }

func (s *refreshStore) FindByUser(ctx context.Context, userID int64) (*RefreshCredential, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, user_id, token, updated_at from refresh_credentials where user_id=$1`, userID)
	var rc RefreshCredential
	if err := row.Scan(&rc.ID, &rc.UserID, &rc.Token, &rc.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rc, nil
}

// Upsert installs token as userID's only refresh credential in a single
// statement. Concurrent logins converge on one row; the conflict-code
// fallback covers a race against the unique index on engines that surface
// the violation instead of taking the ON CONFLICT arm.
func (s *refreshStore) Upsert(ctx context.Context, userID int64, token string) error {
	_, err := s.db.ExecContext(ctx,
		`insert into refresh_credentials(user_id, token)
		 values($1,$2)
		 on conflict (user_id) do update set token=excluded.token, updated_at=now()`,
		userID, token)
	if err != nil && isUniqueViolation(err) {
		_, err = s.db.ExecContext(ctx,
			`update refresh_credentials set token=$1, updated_at=now() where user_id=$2`,
			token, userID)
	}
	return err
}

func (s *refreshStore) DeleteByUser(ctx context.Context, userID int64) error {
	res, err := s.db.ExecContext(ctx, `delete from refresh_credentials where user_id=$1`, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
