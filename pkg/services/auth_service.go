package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"chirp/pkg/media"
	"chirp/pkg/mention"
	"chirp/pkg/models"
	"chirp/pkg/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	TokenTTL  = time.Hour
	MaxBioLen = 160

	DefaultMaxAvatarBytes = 5 << 20
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidToken       = errors.New("invalid or expired token")

	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)
)

// ValidationErrors maps a form field to its message.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + ": " + v[f]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type TokenClaims struct {
	UserID   string
	Username string
}

type AuthService interface {
	Load(ctx context.Context) error
	Signup(ctx context.Context, req models.SignupRequest) (models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (models.AuthResponse, error)
	Logout(ctx context.Context) error
	Current() (models.User, bool)
	User(id string) (models.User, bool)
	UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) (models.User, error)
	IssueToken(user models.User) (string, error)
	ParseToken(tokenStr string) (TokenClaims, error)
	Candidates() []mention.Candidate
}

type authService struct {
	repo      repository.AuthRepository
	jwtSecret []byte
	now       func() time.Time
	cost      int
	maxAvatar int64

	mu      sync.RWMutex
	users   []models.User
	current *models.User
}

// AvatarMessage describes why an avatar was refused.
func AvatarMessage(err error, maxBytes int64) string {
	if errors.Is(err, media.ErrTooLarge) {
		return fmt.Sprintf("Avatar must be at most %d bytes", maxBytes)
	}
	return "Avatar must be an image"
}

type AuthOption func(*authService)

// WithMaxAvatarBytes caps the decoded size of a profile avatar.
func WithMaxAvatarBytes(n int64) AuthOption {
	return func(s *authService) {
		s.maxAvatar = n
	}
}

func NewAuthService(repo repository.AuthRepository, jwtSecret string, opts ...AuthOption) AuthService {
	s := &authService{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
		cost:      bcrypt.DefaultCost,
		maxAvatar: DefaultMaxAvatarBytes,
		users:     []models.User{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *authService) Load(ctx context.Context) error {
	users, err := s.repo.Users(ctx)
	if err != nil {
		log.Warnf("[AUTH] users unreadable, starting empty: %v", err)
	}
	current, ok, cerr := s.repo.CurrentUser(ctx)
	if cerr != nil {
		log.Warnf("[AUTH] current user unreadable: %v", cerr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = users
	s.current = nil
	if ok {
		s.current = &current
	}

	log.Infof("[AUTH] loaded %d users", len(users))
	return errors.Join(err, cerr)
}

func validateSignup(req models.SignupRequest, users []models.User) ValidationErrors {
	errs := ValidationErrors{}

	switch {
	case req.Username == "":
		errs["username"] = "Username is required"
	case !usernameRe.MatchString(req.Username):
		errs["username"] = "Username must be 3-20 letters, digits or underscores"
	}

	if strings.TrimSpace(req.DisplayName) == "" {
		errs["displayName"] = "Display name is required"
	}

	switch {
	case req.Email == "":
		errs["email"] = "Email is required"
	case !emailRe.MatchString(req.Email):
		errs["email"] = "Please enter a valid email"
	}

	switch {
	case req.Password == "":
		errs["password"] = "Password is required"
	case len(req.Password) < 6:
		errs["password"] = "Password must be at least 6 characters"
	case len(req.Password) > 72:
		errs["password"] = "Password too long"
	}

	switch {
	case req.ConfirmPassword == "":
		errs["confirmPassword"] = "Please confirm your password"
	case req.Password != req.ConfirmPassword:
		errs["confirmPassword"] = "Passwords do not match"
	}

	for _, u := range users {
		if u.Email == req.Email {
			errs["email"] = "Email already exists"
		}
		if u.Username == req.Username {
			errs["username"] = "Username already exists"
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (s *authService) Signup(ctx context.Context, req models.SignupRequest) (models.AuthResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if errs := validateSignup(req, s.users); errs != nil {
		return models.AuthResponse{}, errs
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return models.AuthResponse{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Email:        req.Email,
		PasswordHash: string(hashed),
		CreatedAt:    s.now().UTC(),
	}
	s.users = append(s.users, user)

	var perr error
	if err := s.repo.SaveUsers(ctx, s.users); err != nil {
		perr = err
	}
	resp, err := s.startSession(ctx, user)
	if err != nil {
		return models.AuthResponse{}, err
	}

	log.Infof("[AUTH] signup username=%s", user.Username)
	return resp.AuthResponse, notPersisted(errors.Join(perr, resp.persistErr))
}

func (s *authService) Login(ctx context.Context, req models.LoginRequest) (models.AuthResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.users, func(u models.User) bool { return u.Email == req.Email })
	if i < 0 || req.Password == "" {
		return models.AuthResponse{}, ErrInvalidCredentials
	}
	user := s.users[i]
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return models.AuthResponse{}, ErrInvalidCredentials
	}

	resp, err := s.startSession(ctx, user)
	if err != nil {
		return models.AuthResponse{}, err
	}

	log.Infof("[AUTH] login username=%s", user.Username)
	return resp.AuthResponse, notPersisted(resp.persistErr)
}

type session struct {
	models.AuthResponse
	persistErr error
}

// startSession must be called with mu held.
func (s *authService) startSession(ctx context.Context, user models.User) (session, error) {
	token, err := s.IssueToken(user)
	if err != nil {
		return session{}, err
	}

	pub := user.Public()
	s.current = &pub

	return session{
		AuthResponse: models.AuthResponse{
			AccessToken: token,
			User:        pub,
			ExpiresIn:   int(TokenTTL.Seconds()),
		},
		persistErr: s.repo.SetCurrentUser(ctx, user),
	}, nil
}

func (s *authService) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil
	return notPersisted(s.repo.ClearCurrentUser(ctx))
}

func (s *authService) Current() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return models.User{}, false
	}
	return *s.current, true
}

func (s *authService) User(id string) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := slices.IndexFunc(s.users, func(u models.User) bool { return u.ID == id })
	if i < 0 {
		return models.User{}, false
	}
	return s.users[i].Public(), true
}

// UpdateProfile rewrites the user record and, when it is the active one,
// currentUser. Author snapshots on existing posts are left alone. A non-empty
// avatar must be an image data URI within the avatar size limit.
func (s *authService) UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) (models.User, error) {
	errs := ValidationErrors{}
	if strings.TrimSpace(upd.DisplayName) == "" {
		errs["displayName"] = "Display name is required"
	}
	if utf8.RuneCountInString(upd.Bio) > MaxBioLen {
		errs["bio"] = fmt.Sprintf("Bio must be at most %d characters", MaxBioLen)
	}
	if upd.Avatar != "" {
		// Every later author snapshot embeds the avatar, so it is held to
		// the same rules as a post image.
		if err := media.CheckDataURI(upd.Avatar, s.maxAvatar); err != nil {
			errs["avatar"] = AvatarMessage(err, s.maxAvatar)
		}
	}
	if len(errs) > 0 {
		return models.User{}, errs
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.users, func(u models.User) bool { return u.ID == userID })
	if i < 0 {
		return models.User{}, ErrUserNotFound
	}
	s.users[i].DisplayName = strings.TrimSpace(upd.DisplayName)
	s.users[i].Bio = upd.Bio
	s.users[i].Avatar = upd.Avatar
	user := s.users[i]

	perr := s.repo.SaveUsers(ctx, s.users)
	if s.current != nil && s.current.ID == userID {
		pub := user.Public()
		s.current = &pub
		perr = errors.Join(perr, s.repo.SetCurrentUser(ctx, user))
	}

	log.Infof("[AUTH] profile updated username=%s", user.Username)
	return user.Public(), notPersisted(perr)
}

func (s *authService) IssueToken(user models.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(TokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *authService) ParseToken(tokenStr string) (TokenClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return TokenClaims{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return TokenClaims{}, ErrInvalidToken
	}
	userID, _ := claims["user_id"].(string)
	username, _ := claims["username"].(string)
	if userID == "" {
		return TokenClaims{}, ErrInvalidToken
	}
	return TokenClaims{UserID: userID, Username: username}, nil
}

// Candidates lists registered users for mention suggestions, or the built-in
// directory when nobody has signed up yet.
func (s *authService) Candidates() []mention.Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.users) == 0 {
		return slices.Clone(mention.DefaultCandidates)
	}
	out := make([]mention.Candidate, len(s.users))
	for i, u := range s.users {
		out[i] = mention.Candidate{
			ID:          u.ID,
			Username:    u.Username,
			DisplayName: u.DisplayName,
			Avatar:      u.Avatar,
		}
	}
	return out
}

func notPersisted(err error) error {
	if err == nil {
		return nil
	}
	log.Warnf("[AUTH] persist failed, keeping in-memory state: %v", err)
	return fmt.Errorf("%w: %v", ErrNotPersisted, err)
}
