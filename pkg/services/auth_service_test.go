package services

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"chirp/pkg/mention"
	"chirp/pkg/models"
	"chirp/pkg/repository"
	"chirp/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuth(t *testing.T) (*authService, *storage.Memory) {
	t.Helper()
	kv := storage.NewMemory()
	s := NewAuthService(repository.NewAuthRepository(kv), "test-secret").(*authService)
	s.cost = bcrypt.MinCost
	return s, kv
}

func validSignup() models.SignupRequest {
	return models.SignupRequest{
		Username:        "jane_smith",
		DisplayName:     "Jane Smith",
		Email:           "jane@example.com",
		Password:        "hunter22",
		ConfirmPassword: "hunter22",
	}
}

func TestSignup(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestAuth(t)

	resp, err := s.Signup(ctx, validSignup())
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, 3600, resp.ExpiresIn)
	assert.Equal(t, "jane_smith", resp.User.Username)
	assert.Empty(t, resp.User.PasswordHash)

	users, err := repository.NewAuthRepository(kv).Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.NotEqual(t, "hunter22", users[0].PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users[0].PasswordHash), []byte("hunter22")))

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, resp.User.ID, cur.ID)
}

func TestSignup_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.SignupRequest)
		field  string
		msg    string
	}{
		{"missing username", func(r *models.SignupRequest) { r.Username = "" }, "username", "Username is required"},
		{"short username", func(r *models.SignupRequest) { r.Username = "ab" }, "username", "Username must be 3-20 letters, digits or underscores"},
		{"long username", func(r *models.SignupRequest) { r.Username = "abcdefghijklmnopqrstu" }, "username", "Username must be 3-20 letters, digits or underscores"},
		{"username punctuation", func(r *models.SignupRequest) { r.Username = "jane.smith" }, "username", "Username must be 3-20 letters, digits or underscores"},
		{"missing display name", func(r *models.SignupRequest) { r.DisplayName = "  " }, "displayName", "Display name is required"},
		{"bad email", func(r *models.SignupRequest) { r.Email = "jane@example" }, "email", "Please enter a valid email"},
		{"short password", func(r *models.SignupRequest) { r.Password, r.ConfirmPassword = "abc", "abc" }, "password", "Password must be at least 6 characters"},
		{"mismatch", func(r *models.SignupRequest) { r.ConfirmPassword = "hunter23" }, "confirmPassword", "Passwords do not match"},
		{"missing confirm", func(r *models.SignupRequest) { r.ConfirmPassword = "" }, "confirmPassword", "Please confirm your password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, kv := newTestAuth(t)
			req := validSignup()
			tt.mutate(&req)

			_, err := s.Signup(context.Background(), req)
			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, tt.msg, verrs[tt.field])
			assert.Equal(t, 0, kv.Writes())
		})
	}
}

func TestSignup_Duplicates(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestAuth(t)
	_, err := s.Signup(ctx, validSignup())
	require.NoError(t, err)

	_, err = s.Signup(ctx, validSignup())
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "Email already exists", verrs["email"])
	assert.Equal(t, "Username already exists", verrs["username"])
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestAuth(t)
	signed, err := s.Signup(ctx, validSignup())
	require.NoError(t, err)
	require.NoError(t, s.Logout(ctx))
	_, ok := s.Current()
	assert.False(t, ok)

	_, err = s.Login(ctx, models.LoginRequest{Email: "jane@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Login(ctx, models.LoginRequest{Email: "nobody@example.com", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	resp, err := s.Login(ctx, models.LoginRequest{Email: "jane@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, signed.User.ID, resp.User.ID)
	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "jane_smith", cur.Username)
}

func TestLoad_RestoresSession(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestAuth(t)
	_, err := s.Signup(ctx, validSignup())
	require.NoError(t, err)

	reloaded := NewAuthService(repository.NewAuthRepository(kv), "test-secret")
	require.NoError(t, reloaded.Load(ctx))
	cur, ok := reloaded.Current()
	require.True(t, ok)
	assert.Equal(t, "jane_smith", cur.Username)
	assert.Empty(t, cur.PasswordHash)

	_, found := reloaded.User(cur.ID)
	assert.True(t, found)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestAuth(t)
	resp, err := s.Signup(ctx, validSignup())
	require.NoError(t, err)

	u, err := s.UpdateProfile(ctx, resp.User.ID, models.ProfileUpdate{DisplayName: "Jane S.", Bio: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Jane S.", u.DisplayName)
	assert.Equal(t, "hi", u.Bio)

	cur, _, err := repository.NewAuthRepository(kv).CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Jane S.", cur.DisplayName)

	long := make([]rune, MaxBioLen+1)
	for i := range long {
		long[i] = 'é'
	}
	_, err = s.UpdateProfile(ctx, resp.User.ID, models.ProfileUpdate{DisplayName: "x", Bio: string(long)})
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs, "bio")

	_, err = s.UpdateProfile(ctx, resp.User.ID, models.ProfileUpdate{DisplayName: ""})
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs, "displayName")

	_, err = s.UpdateProfile(ctx, "missing", models.ProfileUpdate{DisplayName: "x"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateProfile_Avatar(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString
	gif := "data:image/gif;base64," + b64([]byte("GIF89a"))

	tests := []struct {
		name    string
		avatar  string
		wantErr string
	}{
		{name: "empty keeps none", avatar: ""},
		{name: "small gif", avatar: gif},
		{name: "script url", avatar: "javascript:alert(1)", wantErr: "Avatar must be an image"},
		{name: "remote url", avatar: "https://example.com/a.png", wantErr: "Avatar must be an image"},
		{
			name:    "html document",
			avatar:  "data:text/html;base64," + b64([]byte(strings.Repeat("<b>", 2<<20/3))),
			wantErr: "Avatar must be an image",
		},
		{
			name:    "oversized image",
			avatar:  "data:image/png;base64," + b64(make([]byte, 2048)),
			wantErr: "Avatar must be at most 1024 bytes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, _ := newTestAuth(t)
			s.maxAvatar = 1024
			resp, err := s.Signup(ctx, validSignup())
			require.NoError(t, err)

			u, err := s.UpdateProfile(ctx, resp.User.ID, models.ProfileUpdate{DisplayName: "Jane", Avatar: tt.avatar})
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.avatar, u.Avatar)
				return
			}
			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, tt.wantErr, verrs["avatar"])

			cur, _ := s.Current()
			assert.Empty(t, cur.Avatar)
			assert.Equal(t, "Jane Smith", cur.DisplayName)
		})
	}
}

func TestWithMaxAvatarBytes(t *testing.T) {
	kv := storage.NewMemory()
	s := NewAuthService(repository.NewAuthRepository(kv), "k").(*authService)
	assert.Equal(t, int64(DefaultMaxAvatarBytes), s.maxAvatar)

	s = NewAuthService(repository.NewAuthRepository(kv), "k", WithMaxAvatarBytes(64)).(*authService)
	assert.Equal(t, int64(64), s.maxAvatar)
}

func TestUpdateProfile_PersistFailure(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestAuth(t)
	resp, err := s.Signup(ctx, validSignup())
	require.NoError(t, err)

	kv.FailWrites(true)
	u, err := s.UpdateProfile(ctx, resp.User.ID, models.ProfileUpdate{DisplayName: "Offline"})
	assert.ErrorIs(t, err, ErrNotPersisted)
	assert.Equal(t, "Offline", u.DisplayName)
	cur, _ := s.Current()
	assert.Equal(t, "Offline", cur.DisplayName)
}

func TestTokens(t *testing.T) {
	s, _ := newTestAuth(t)
	user := models.User{ID: "u1", Username: "bob"}

	tok, err := s.IssueToken(user)
	require.NoError(t, err)
	claims, err := s.ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, TokenClaims{UserID: "u1", Username: "bob"}, claims)

	other := NewAuthService(repository.NewAuthRepository(storage.NewMemory()), "other-secret")
	_, err = other.ParseToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	s.now = func() time.Time { return time.Now().Add(2 * TokenTTL) }
	_, err = s.ParseToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.ParseToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCandidates(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestAuth(t)
	assert.Equal(t, mention.DefaultCandidates, s.Candidates())

	_, err := s.Signup(ctx, validSignup())
	require.NoError(t, err)
	c := s.Candidates()
	require.Len(t, c, 1)
	assert.Equal(t, "jane_smith", c[0].Username)
	assert.Equal(t, "Jane Smith", c[0].DisplayName)
}

func TestValidationErrors_Error(t *testing.T) {
	err := ValidationErrors{"email": "bad", "bio": "long"}
	assert.Equal(t, "validation failed: bio: long; email: bad", err.Error())
}
