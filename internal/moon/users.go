package moon

import (
	"context"
	"net/url"
	"strconv"

	"github.com/florianilch/moonctl/internal/apierror"
	"github.com/florianilch/moonctl/internal/httpclient"
)

// User is a Moon user account.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	CanWrite    bool   `json:"can_write,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
	LastLoginAt string `json:"last_login_at,omitempty"`
}

// UserList is one page of users.
type UserList struct {
	Users      []User `json:"users"`
	NextCursor string `json:"next_cursor,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// CreateUserInput is the body of /users:create.
type CreateUserInput struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=admin user"`
}

// UpdateUserInput changes profile fields of a user. Empty fields are left
// unchanged.
type UpdateUserInput struct {
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Role  string `json:"role,omitempty" validate:"omitempty,oneof=admin user"`
}

type userAction struct {
	Action      string `json:"action"`
	NewPassword string `json:"new_password,omitempty" validate:"omitempty,min=8"`
}

// UserService administers user accounts.
type UserService struct {
	requester Requester
}

// List returns a page of users. limit <= 0 uses the server default.
func (s *UserService) List(ctx context.Context, limit int, after string) (UserList, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if after != "" {
		query.Set("after", after)
	}

	list, err := httpclient.JSON[UserList](s.requester.Get(ctx, "/users:list", httpclient.WithQuery(query)))
	if err != nil {
		return UserList{}, err
	}
	if list.Users == nil {
		list.Users = []User{}
	}
	return list, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id string) (User, error) {
	if id == "" {
		return User{}, invalidUserID()
	}
	return userResult(s.requester.Get(ctx, "/users:get", idQuery(id)))
}

// Create creates a user account.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (User, error) {
	if err := validateInput(in); err != nil {
		return User{}, err
	}
	return userResult(s.requester.Post(ctx, "/users:create", in))
}

// Update changes a user's email or role.
func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (User, error) {
	if id == "" {
		return User{}, invalidUserID()
	}
	if err := validateInput(in); err != nil {
		return User{}, err
	}
	return userResult(s.requester.Post(ctx, "/users:update", in, idQuery(id)))
}

// ResetPassword sets a new password for a user.
func (s *UserService) ResetPassword(ctx context.Context, id, newPassword string) (User, error) {
	return s.action(ctx, id, userAction{Action: "reset_password", NewPassword: newPassword})
}

// RevokeSessions invalidates all refresh tokens of a user.
func (s *UserService) RevokeSessions(ctx context.Context, id string) (User, error) {
	return s.action(ctx, id, userAction{Action: "revoke_sessions"})
}

// Destroy deletes a user account.
func (s *UserService) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return invalidUserID()
	}
	_, err := s.requester.Post(ctx, "/users:destroy", emptyBody, idQuery(id))
	return err
}

func (s *UserService) action(ctx context.Context, id string, in userAction) (User, error) {
	if id == "" {
		return User{}, invalidUserID()
	}
	if in.Action == "reset_password" && in.NewPassword == "" {
		return User{}, apierror.Invalid("new password is required")
	}
	if err := validateInput(in); err != nil {
		return User{}, err
	}
	return userResult(s.requester.Post(ctx, "/users:update", in, idQuery(id)))
}

// userResult unwraps the {"user": {...}} envelope.
func userResult(resp *httpclient.Response, err error) (User, error) {
	wrapped, err := httpclient.JSON[struct {
		User User `json:"user"`
	}](resp, err)
	return wrapped.User, err
}

func invalidUserID() error {
	return apierror.Invalid("user id is required")
}
