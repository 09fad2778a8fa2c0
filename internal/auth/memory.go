package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var _ Store = (*InMemoryStore)(nil)

// InMemoryStore implements Store with in-process maps. Used by tests and by
// deployments running without a database connection string.
type InMemoryStore struct {
	mu sync.Mutex

	nextUserID    int64
	nextRefreshID int64
	users         map[int64]*User
	refresh       map[int64]*RefreshCredential
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:   make(map[int64]*User),
		refresh: make(map[int64]*RefreshCredential),
	}
}

func (s *InMemoryStore) Users(context.Context) UserStore { return (*memUserStore)(s) }
func (s *InMemoryStore) RefreshCredentials(context.Context) RefreshCredentialStore {
	return (*memRefreshStore)(s)
}

func cloneUser(u *User) *User {
	cp := *u
	return &cp
}

type memUserStore InMemoryStore

func (s *memUserStore) Create(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return fmt.Errorf("%w: username %q", ErrConflict, u.Username)
		}
		if existing.Email == u.Email {
			return fmt.Errorf("%w: email %q", ErrConflict, u.Email)
		}
	}
	s.nextUserID++
	u.ID = s.nextUserID
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = cloneUser(u)
	return nil
}

func (s *memUserStore) Find(ctx context.Context, id int64) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *memUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s *memUserStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s *memUserStore) Search(ctx context.Context, q UserSearch) (*UserPage, error) {
	q.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(q.Search)
	var matched []*User
	for _, u := range s.users {
		if needle != "" {
			hay := strings.ToLower(u.Name + " " + u.LastNames + " " + u.Username + " " + u.Email)
			if !strings.Contains(hay, needle) {
				continue
			}
		}
		if q.Role != nil && u.Role != *q.Role {
			continue
		}
		if q.IsActive != nil && u.IsActive != *q.IsActive {
			continue
		}
		matched = append(matched, cloneUser(u))
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var less bool
		switch q.OrderBy {
		case "name":
			less = a.Name < b.Name
		case "username":
			less = a.Username < b.Username
		case "email":
			less = a.Email < b.Email
		case "created_at":
			less = a.CreatedAt.Before(b.CreatedAt)
		case "updated_at":
			less = a.UpdatedAt.Before(b.UpdatedAt)
		default:
			less = a.ID < b.ID
		}
		if strings.EqualFold(q.OrderDirection, "desc") {
			return !less
		}
		return less
	})

	total := int64(len(matched))
	start := (q.Page - 1) * q.PageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return NewUserPage(matched[start:end], total, q.Page, q.PageSize), nil
}

func (s *memUserStore) Update(ctx context.Context, id int64, upd UserUpdate) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Username != nil || upd.Email != nil {
		for otherID, other := range s.users {
			if otherID == id {
				continue
			}
			if upd.Username != nil && other.Username == *upd.Username {
				return nil, fmt.Errorf("%w: username %q", ErrConflict, *upd.Username)
			}
			if upd.Email != nil && other.Email == *upd.Email {
				return nil, fmt.Errorf("%w: email %q", ErrConflict, *upd.Email)
			}
		}
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.LastNames != nil {
		u.LastNames = *upd.LastNames
	}
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.PhoneNumber != nil {
		u.PhoneNumber = *upd.PhoneNumber
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	u.UpdatedAt = time.Now().UTC()
	return cloneUser(u), nil
}

func (s *memUserStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memUserStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	delete(s.refresh, id)
	return nil
}

type memRefreshStore InMemoryStore

func (s *memRefreshStore) FindByUser(ctx context.Context, userID int64) (*RefreshCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rc, ok := s.refresh[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rc
	return &cp, nil
}

func (s *memRefreshStore) Upsert(ctx context.Context, userID int64, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rc, ok := s.refresh[userID]; ok {
		rc.Token = token
		rc.UpdatedAt = time.Now().UTC()
		return nil
	}
	s.nextRefreshID++
	s.refresh[userID] = &RefreshCredential{
		ID:        s.nextRefreshID,
		UserID:    userID,
		Token:     token,
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

func (s *memRefreshStore) DeleteByUser(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.refresh[userID]; !ok {
		return ErrNotFound
	}
	delete(s.refresh, userID)
	return nil
}
