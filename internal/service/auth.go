package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fwdesk/fwdesk/internal/config"
	"github.com/fwdesk/fwdesk/internal/directory"
	"github.com/fwdesk/fwdesk/internal/model"
)

var (
	// ErrMissingCredentials means the username or password was empty.
	ErrMissingCredentials = errors.New("username and password are required")
	// ErrInvalidCredentials means the directory rejected the credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoGroups means the user authenticated but resolved no group
	// membership. Absence of group data blocks login entirely; it never
	// degrades to the user role.
	ErrNoGroups = errors.New("no directory groups resolved for user")
	// ErrInvalidToken covers malformed, tampered and expired tokens alike.
	ErrInvalidToken = errors.New("invalid token")
)

// AuthService issues and verifies signed session tokens. Login delegates
// password verification to the directory; Verify is purely local.
type AuthService struct {
	dir        directory.Client
	adminGroup string
	tokenTTL   time.Duration
	devBypass  config.DevBypassConfig
	secret     []byte
	logger     *slog.Logger
}

// NewAuthService creates an AuthService. dir may be nil only when the dev
// bypass is the sole configured credential source.
func NewAuthService(dir directory.Client, cfg config.Config, logger *slog.Logger) *AuthService {
	return &AuthService{
		dir:        dir,
		adminGroup: cfg.Directory.AdminGroup,
		tokenTTL:   cfg.Auth.TokenTTL,
		devBypass:  cfg.Auth.DevBypass,
		secret:     []byte(cfg.Auth.JWTSecret),
		logger:     logger,
	}
}

// Login authenticates the user against the directory, derives the role from
// group membership, and returns a signed session token with the identity it
// asserts.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, model.Identity, error) {
	if username == "" || password == "" {
		return "", model.Identity{}, ErrMissingCredentials
	}

	if id, ok := s.checkDevBypass(username, password); ok {
		s.logger.Warn("dev bypass credential used", "username", username)
		token, err := s.issueToken(id)
		return token, id, err
	}

	if s.dir == nil {
		return "", model.Identity{}, ErrInvalidCredentials
	}

	if err := s.dir.Authenticate(username, password); err != nil {
		if errors.Is(err, directory.ErrBindFailed) {
			s.logger.Info("directory rejected credentials", "username", username)
			return "", model.Identity{}, ErrInvalidCredentials
		}
		return "", model.Identity{}, err
	}

	groups, displayName, err := s.dir.FetchGroups(username)
	if err != nil {
		return "", model.Identity{}, err
	}
	if len(groups) == 0 {
		return "", model.Identity{}, ErrNoGroups
	}

	id := model.Identity{
		Username:    username,
		DisplayName: displayName,
		Role:        s.roleFromGroups(groups),
	}
	token, err := s.issueToken(id)
	return token, id, err
}

// Verify validates a presented token and recovers the identity it asserts.
// Malformed, tampered and expired tokens all collapse to ErrInvalidToken.
func (s *AuthService) Verify(ctx context.Context, tokenStr string) (model.Identity, error) {
	claims := &sessionClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return model.Identity{}, ErrInvalidToken
	}

	role := model.Role(claims.Role)
	if !role.Valid() {
		return model.Identity{}, ErrInvalidToken
	}

	return model.Identity{
		Username:    claims.Username,
		DisplayName: claims.DisplayName,
		Role:        role,
	}, nil
}

// roleFromGroups grants admin when any group value contains the configured
// admin-group identifier as a substring. The loose match is deliberate: it
// tolerates both full DNs and bare CNs in directory group naming.
func (s *AuthService) roleFromGroups(groups []string) model.Role {
	if s.adminGroup == "" {
		return model.RoleUser
	}
	for _, g := range groups {
		if strings.Contains(g, s.adminGroup) {
			return model.RoleAdmin
		}
	}
	return model.RoleUser
}

func (s *AuthService) checkDevBypass(username, password string) (model.Identity, bool) {
	if !s.devBypass.Enabled {
		return model.Identity{}, false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.devBypass.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.devBypass.Password)) == 1
	if !userOK || !passOK {
		return model.Identity{}, false
	}
	return model.Identity{Username: username, Role: model.Role(s.devBypass.Role)}, true
}

func (s *AuthService) issueToken(id model.Identity) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Username:    id.Username,
		DisplayName: id.DisplayName,
		Role:        string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			Issuer:    "fwdesk",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

type sessionClaims struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}
