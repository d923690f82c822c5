package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired or signed with the wrong secret.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingClaims is returned by the Issue methods when a required claim is empty.
	ErrMissingClaims = errors.New("missing required token claims")
	// ErrSecretsMisconfigured is returned when the access and refresh secrets are empty or shared.
	ErrSecretsMisconfigured = errors.New("access and refresh secrets must be set and differ")
)

// AccessClaims holds JWT claims for the access token. Subject is the owner id.
type AccessClaims struct {
	jwt.RegisteredClaims
	Hash      string `json:"hash"`
	LoginID   string `json:"login_id,omitempty"`
	Role      string `json:"role,omitempty"`
	CompanyID string `json:"company_id,omitempty"`
}

// OwnerID returns the subject claim.
func (c *AccessClaims) OwnerID() string { return c.Subject }

// RefreshClaims holds JWT claims for the refresh token. It carries only the correlation hash.
type RefreshClaims struct {
	jwt.RegisteredClaims
	Hash string `json:"hash"`
}

// AccessInput is what gets embedded in a new access token.
type AccessInput struct {
	OwnerID   string
	Hash      string
	LoginID   string
	Role      string
	CompanyID string
}

// TokenIssuer signs and verifies HS256 access and refresh tokens with independent secrets.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenIssuer returns a TokenIssuer. The two secrets must be non-empty and different so a
// refresh token can never verify as an access token.
func NewTokenIssuer(accessSecret, refreshSecret []byte, issuer string, accessTTL, refreshTTL time.Duration) (*TokenIssuer, error) {
	if len(accessSecret) == 0 || len(refreshSecret) == 0 || string(accessSecret) == string(refreshSecret) {
		return nil, ErrSecretsMisconfigured
	}
	return &TokenIssuer{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		issuer:        issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

// AccessTTL returns the configured access token lifetime.
func (p *TokenIssuer) AccessTTL() time.Duration { return p.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (p *TokenIssuer) RefreshTTL() time.Duration { return p.refreshTTL }

// IssueAccess signs a short-lived access token. OwnerID and Hash are required.
func (p *TokenIssuer) IssueAccess(in AccessInput) (token string, expiresAt time.Time, err error) {
	if in.OwnerID == "" || in.Hash == "" {
		return "", time.Time{}, ErrMissingClaims
	}
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   in.OwnerID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Hash:      in.Hash,
		LoginID:   in.LoginID,
		Role:      in.Role,
		CompanyID: in.CompanyID,
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.accessSecret)
	return token, expiresAt, err
}

// IssueRefresh signs a long-lived refresh token carrying hash.
func (p *TokenIssuer) IssueRefresh(hash string) (token string, expiresAt time.Time, err error) {
	if hash == "" {
		return "", time.Time{}, ErrMissingClaims
	}
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.refreshTTL)
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Hash: hash,
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.refreshSecret)
	return token, expiresAt, err
}

// VerifyAccess checks signature, expiry and issuer. Any failure yields ErrInvalidToken.
func (p *TokenIssuer) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := p.parse(tokenString, claims, p.accessSecret); err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.Hash == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefresh checks signature, expiry and issuer. Any failure yields ErrInvalidToken.
func (p *TokenIssuer) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := p.parse(tokenString, claims, p.refreshSecret); err != nil {
		return nil, err
	}
	if claims.Hash == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// DecodeUnverified reads access token claims without checking the signature or expiry.
// The result must only be trusted after it is cross-checked against a session row.
func (p *TokenIssuer) DecodeUnverified(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.Hash == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (p *TokenIssuer) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
