package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	identitydomain "member-service/internal/identity/domain"
	"member-service/internal/platform/apperr"
	"member-service/internal/security"
	sessiondomain "member-service/internal/session/domain"
	userdomain "member-service/internal/user/domain"
)

// Audit actions written by the auth service.
const (
	ActionRegister       = "register"
	ActionLoginSuccess   = "login_success"
	ActionLoginFailure   = "login_failure"
	ActionRefresh        = "token_refresh"
	ActionLogout         = "logout"
	ActionPasswordChange = "password_change"
	ActionSessionsRevoke = "sessions_revoked"
)

// AuthResult is a freshly issued token pair bound to one session.
type AuthResult struct {
	AccessToken      string
	RefreshToken     string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
	UserID           string
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByLoginID(ctx context.Context, loginID string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	CreateProfile(ctx context.Context, p *userdomain.Profile) error
}

// ShadowRepo is the minimal password shadow repository needed by the auth service.
type ShadowRepo interface {
	GetByUserID(ctx context.Context, userID string) (*identitydomain.Shadow, error)
	Create(ctx context.Context, s *identitydomain.Shadow) error
	UpdatePasswordHash(ctx context.Context, userID, newHash, prevHash string) error
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	Create(ctx context.Context, s *sessiondomain.Session) error
	GetByHash(ctx context.Context, hash string) (*sessiondomain.Session, error)
	DeleteByHash(ctx context.Context, userID, hash string) error
	DeleteByID(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
}

// TxRunner runs fn as one all-or-nothing unit.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuditLogger records security events. Implementations are best-effort.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, resource, metadata string)
}

// AuthService implements password registration, login, token rotation, logout and
// password change.
type AuthService struct {
	userRepo    UserRepo
	shadowRepo  ShadowRepo
	sessionRepo SessionRepo
	tx          TxRunner
	hasher      *security.Hasher
	pepper      *security.PepperHasher
	tokens      *security.TokenIssuer
	audit       AuditLogger
	now         func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies. audit may be nil.
func NewAuthService(
	userRepo UserRepo,
	shadowRepo ShadowRepo,
	sessionRepo SessionRepo,
	tx TxRunner,
	hasher *security.Hasher,
	pepper *security.PepperHasher,
	tokens *security.TokenIssuer,
	audit AuditLogger,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		shadowRepo:  shadowRepo,
		sessionRepo: sessionRepo,
		tx:          tx,
		hasher:      hasher,
		pepper:      pepper,
		tokens:      tokens,
		audit:       audit,
		now:         time.Now,
	}
}

// Register creates the identity, profile and password rows for a new member in one
// transaction. The caller logs in separately to obtain tokens.
func (s *AuthService) Register(ctx context.Context, loginID, password, name string) (*userdomain.User, error) {
	loginID = normalizeLoginID(loginID)
	if err := validateLoginID(loginID); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	existing, err := s.userRepo.GetByLoginID(ctx, loginID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.ErrAlreadyExists
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	user := &userdomain.User{
		ID:        uuid.New().String(),
		LoginID:   loginID,
		Status:    userdomain.UserStatusActive,
		Role:      userdomain.RoleMember,
		CreatedAt: now,
		UpdatedAt: now,
	}
	profile := &userdomain.Profile{
		UserID:    user.ID,
		Name:      strings.TrimSpace(name),
		Email:     loginID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	shadow := &identitydomain.Shadow{
		UserID:       user.ID,
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.userRepo.Create(ctx, user); err != nil {
			return err
		}
		if err := s.userRepo.CreateProfile(ctx, profile); err != nil {
			return err
		}
		return s.shadowRepo.Create(ctx, shadow)
	})
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, user.ID, ActionRegister, "user", "")
	return user, nil
}

// Login verifies loginID and password and issues a token pair bound to a new session.
// An unknown login id, a missing password row and a wrong password all yield
// apperr.ErrInvalidCredentials after comparable bcrypt work.
func (s *AuthService) Login(ctx context.Context, loginID, password string) (*AuthResult, error) {
	loginID = normalizeLoginID(loginID)
	if loginID == "" || password == "" {
		return nil, apperr.ErrInvalidCredentials
	}
	user, err := s.userRepo.GetByLoginID(ctx, loginID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active() {
		_ = s.hasher.CompareDummy([]byte(password))
		s.logEvent(ctx, "", ActionLoginFailure, "session", "")
		return nil, apperr.ErrInvalidCredentials
	}
	shadow, err := s.shadowRepo.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if shadow == nil || shadow.PasswordHash == "" {
		_ = s.hasher.CompareDummy([]byte(password))
		s.logEvent(ctx, user.ID, ActionLoginFailure, "session", "")
		return nil, apperr.ErrInvalidCredentials
	}
	if err := s.hasher.Compare(shadow.PasswordHash, []byte(password)); err != nil {
		s.logEvent(ctx, user.ID, ActionLoginFailure, "session", "")
		return nil, apperr.ErrInvalidCredentials
	}
	res, err := s.IssueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, user.ID, ActionLoginSuccess, "session", "password")
	return res, nil
}

// IssueTokens mints a correlation hash, signs an access/refresh pair carrying it and persists
// the session row. Passkey login reuses it after a verified assertion.
func (s *AuthService) IssueTokens(ctx context.Context, user *userdomain.User) (*AuthResult, error) {
	hash, err := s.pepper.CorrelationHash(security.Seed(user.ID, strconv.FormatInt(s.now().UnixNano(), 10)))
	if err != nil {
		return nil, fmt.Errorf("correlation hash: %w", err)
	}
	access, accessExp, err := s.tokens.IssueAccess(security.AccessInput{
		OwnerID:   user.ID,
		Hash:      hash,
		LoginID:   user.LoginID,
		Role:      user.Role,
		CompanyID: user.CompanyID,
	})
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshExp, err := s.tokens.IssueRefresh(hash)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	sess := &sessiondomain.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Hash:      hash,
		CreatedAt: s.now().UTC(),
		ExpiresAt: refreshExp,
	}
	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		return nil, err
	}
	return &AuthResult{
		AccessToken:      access,
		RefreshToken:     refresh,
		ExpiresAt:        accessExp,
		RefreshExpiresAt: refreshExp,
		UserID:           user.ID,
	}, nil
}

// Refresh rotates a token pair. The refresh token must verify, the access token must decode
// (it may be expired), both must carry the same correlation hash, the hash must resolve to a
// session and that session must belong to the access token's subject. The new session is
// written and the old one deleted in one transaction; a concurrent rotation of the same pair
// finds nothing to delete and fails with apperr.ErrSessionNotFound.
func (s *AuthService) Refresh(ctx context.Context, accessToken, refreshToken string) (*AuthResult, error) {
	rc, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, apperr.ErrInvalidToken
	}
	ac, err := s.tokens.DecodeUnverified(accessToken)
	if err != nil {
		return nil, apperr.ErrInvalidToken
	}
	if !security.HashEqual(ac.Hash, rc.Hash) {
		return nil, apperr.ErrInvalidToken
	}
	sess, err := s.sessionRepo.GetByHash(ctx, rc.Hash)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apperr.ErrSessionNotFound
	}
	if sess.UserID != ac.OwnerID() {
		return nil, apperr.ErrInvalidToken
	}
	var res *AuthResult
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.userRepo.GetByID(ctx, sess.UserID)
		if err != nil {
			return err
		}
		if user == nil || !user.Active() {
			return apperr.ErrInvalidToken
		}
		res, err = s.IssueTokens(ctx, user)
		if err != nil {
			return err
		}
		return s.sessionRepo.DeleteByID(ctx, sess.ID)
	})
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, sess.UserID, ActionRefresh, "session", "")
	return res, nil
}

// Logout deletes the session for userID and hash. It succeeds whether or not the session
// still existed.
func (s *AuthService) Logout(ctx context.Context, userID, hash string) error {
	if userID == "" || hash == "" {
		return nil
	}
	if err := s.sessionRepo.DeleteByHash(ctx, userID, hash); err != nil {
		return err
	}
	s.logEvent(ctx, userID, ActionLogout, "session", "")
	return nil
}

// ChangePassword replaces the password after verifying oldPassword, keeps the replaced hash
// and deletes every session of the user in the same transaction.
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	shadow, err := s.shadowRepo.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if shadow == nil || shadow.PasswordHash == "" {
		_ = s.hasher.CompareDummy([]byte(oldPassword))
		return apperr.ErrInvalidCredentials
	}
	if err := s.hasher.Compare(shadow.PasswordHash, []byte(oldPassword)); err != nil {
		return apperr.ErrInvalidCredentials
	}
	hashed, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return err
	}
	var revoked int64
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.shadowRepo.UpdatePasswordHash(ctx, userID, hashed, shadow.PasswordHash); err != nil {
			return err
		}
		revoked, err = s.sessionRepo.DeleteAllForUser(ctx, userID)
		return err
	})
	if err != nil {
		return err
	}
	s.logEvent(ctx, userID, ActionPasswordChange, "user", fmt.Sprintf(`{"sessions_revoked":%d}`, revoked))
	return nil
}

// RevokeSessions deletes every session of targetUserID. Authorization is the caller's job.
func (s *AuthService) RevokeSessions(ctx context.Context, targetUserID string) (int64, error) {
	if strings.TrimSpace(targetUserID) == "" {
		return 0, fmt.Errorf("%w: user id is required", apperr.ErrInvalidArgument)
	}
	n, err := s.sessionRepo.DeleteAllForUser(ctx, targetUserID)
	if err != nil {
		return 0, err
	}
	s.logEvent(ctx, targetUserID, ActionSessionsRevoke, "session", fmt.Sprintf(`{"count":%d}`, n))
	return n, nil
}

func (s *AuthService) logEvent(ctx context.Context, userID, action, resource, metadata string) {
	if s.audit != nil {
		s.audit.LogEvent(ctx, userID, action, resource, metadata)
	}
}

func normalizeLoginID(id string) string {
	return strings.TrimSpace(strings.ToLower(id))
}

var loginIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func validateLoginID(loginID string) error {
	if loginID == "" {
		return fmt.Errorf("%w: email is required", apperr.ErrInvalidArgument)
	}
	if !loginIDPattern.MatchString(loginID) {
		return fmt.Errorf("%w: invalid email format", apperr.ErrInvalidArgument)
	}
	return nil
}

var errWeakPassword = errors.New("password must be at least 8 characters and contain a letter and a digit or symbol")

func validatePassword(password string) error {
	if len(password) < 8 || len(password) > 72 {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, errWeakPassword)
	}
	var hasLetter, hasOther bool
	for _, r := range password {
		if unicode.IsLetter(r) {
			hasLetter = true
		} else if !unicode.IsSpace(r) {
			hasOther = true
		}
	}
	if !hasLetter || !hasOther {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, errWeakPassword)
	}
	return nil
}
