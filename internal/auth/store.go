package auth

import "context"

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Users(ctx context.Context) UserStore
	RefreshCredentials(ctx context.Context) RefreshCredentialStore
}

// UserStore manages principals. Create and Update surface ErrConflict on
// username/email uniqueness violations; lookups surface ErrNotFound.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	Search(ctx context.Context, q UserSearch) (*UserPage, error)
	Update(ctx context.Context, id int64, upd UserUpdate) (*User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	Delete(ctx context.Context, id int64) error
}

// RefreshCredentialStore manages the one rotating refresh credential per
// principal. Upsert must be atomic with respect to the user_id uniqueness
// constraint: concurrent calls for the same user leave exactly one row, the
// last writer's token value winning.
type RefreshCredentialStore interface {
	FindByUser(ctx context.Context, userID int64) (*RefreshCredential, error)
	Upsert(ctx context.Context, userID int64, token string) error
	DeleteByUser(ctx context.Context, userID int64) error
}
