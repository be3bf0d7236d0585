// Package auth is the session provider: it registers users, signs them in
// and out, and resolves session tokens to the signed-in user.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const issuer = "todos"

type Options struct {
	DB          *gorm.DB
	Secret      []byte
	TTL         time.Duration
	RememberTTL time.Duration
	// External verifies tokens issued by another provider, typically
	// keyfunc.JWKS.Keyfunc. Nil disables external tokens.
	External jwt.Keyfunc
	// ExternalIssuer and ExternalAudience, when set, must match the iss and
	// aud claims of external tokens.
	ExternalIssuer   string
	ExternalAudience string
	BcryptCost       int
	Now              func() time.Time
}

type Provider struct {
	db          *gorm.DB
	secret      []byte
	ttl         time.Duration
	rememberTTL time.Duration
	external    jwt.Keyfunc
	issuer      string
	audience    string
	cost        int
	now         func() time.Time
}

func NewProvider(options Options) *Provider {
	p := &Provider{
		db:          options.DB,
		secret:      options.Secret,
		ttl:         options.TTL,
		rememberTTL: options.RememberTTL,
		external:    options.External,
		issuer:      options.ExternalIssuer,
		audience:    options.ExternalAudience,
		cost:        options.BcryptCost,
		now:         options.Now,
	}

	if p.cost == 0 {
		p.cost = bcrypt.DefaultCost
	}

	if p.now == nil {
		p.now = time.Now
	}

	if p.ttl == 0 {
		p.ttl = 24 * time.Hour
	}

	if p.rememberTTL == 0 {
		p.rememberTTL = 7 * 24 * time.Hour
	}

	return p
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp registers a user and signs them in. Input is validated upstream.
func (p *Provider) SignUp(ctx context.Context, name, email, password string) (*UserSession, string, error) {
	email = normalizeEmail(email)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, "", err
	}

	user := User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: string(hash),
	}

	db := p.db.WithContext(ctx)

	var count int64
	if err := db.Model(&User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, "", err
	}

	if count > 0 {
		return nil, "", ErrEmailTaken
	}

	if err := db.Create(&user).Error; err != nil {
		// a concurrent sign-up may have won the unique index
		if db.Model(&User{}).Where("email = ?", email).Count(&count).Error == nil && count > 0 {
			return nil, "", ErrEmailTaken
		}
		return nil, "", err
	}

	return p.open(ctx, &user, false)
}

func (p *Provider) SignIn(ctx context.Context, email, password string, rememberMe bool) (*UserSession, string, error) {
	var user User

	err := p.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	return p.open(ctx, &user, rememberMe)
}

// SignOut ends the session. Unknown sessions are ignored.
func (p *Provider) SignOut(ctx context.Context, sessionID string) error {
	return p.db.WithContext(ctx).Where("id = ?", sessionID).Delete(&Session{}).Error
}

// Verify resolves a token to its user session. Any failure, including an
// expired or signed-out session, is ErrUnauthenticated.
func (p *Provider) Verify(ctx context.Context, token string) (*UserSession, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, p.keyfunc)
	if err == nil && parsed.Valid {
		return p.lookup(ctx, claims)
	}

	if p.external != nil {
		return p.verifyExternal(token)
	}

	return nil, ErrUnauthenticated
}

func (p *Provider) keyfunc(token *jwt.Token) (interface{}, error) {
	if token.Method != jwt.SigningMethodHS256 {
		return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
	}

	return p.secret, nil
}

func (p *Provider) lookup(ctx context.Context, claims *jwt.RegisteredClaims) (*UserSession, error) {
	db := p.db.WithContext(ctx)

	var session Session
	err := db.Where("id = ? AND user_id = ?", claims.ID, claims.Subject).Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}

	if !p.now().Before(session.ExpiresAt) {
		if err := db.Delete(&session).Error; err != nil {
			return nil, err
		}
		return nil, ErrUnauthenticated
	}

	var user User
	err = db.Where("id = ?", session.UserID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}

	return &UserSession{User: user, Session: session}, nil
}

func (p *Provider) verifyExternal(token string) (*UserSession, error) {
	parsed, err := jwt.Parse(token, p.external)
	if err != nil || !parsed.Valid {
		return nil, ErrUnauthenticated
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrUnauthenticated
	}

	if p.issuer != "" && !claims.VerifyIssuer(p.issuer, true) {
		return nil, ErrUnauthenticated
	}

	if p.audience != "" && !claims.VerifyAudience(p.audience, true) {
		return nil, ErrUnauthenticated
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrUnauthenticated
	}

	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	id, _ := claims["jti"].(string)

	session := Session{ID: id, UserID: sub}
	if exp, ok := claims["exp"].(float64); ok {
		session.ExpiresAt = time.Unix(int64(exp), 0)
	}

	return &UserSession{
		User:    User{ID: sub, Email: email, Name: name},
		Session: session,
	}, nil
}

func (p *Provider) open(ctx context.Context, user *User, rememberMe bool) (*UserSession, string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, "", err
	}

	now := p.now()
	ttl := p.ttl
	if rememberMe {
		ttl = p.rememberTTL
	}

	session := Session{
		ID:         id,
		UserID:     user.ID,
		RememberMe: rememberMe,
		ExpiresAt:  now.Add(ttl),
	}

	if err := p.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, "", err
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        session.ID,
		Subject:   user.ID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
	}).SignedString(p.secret)
	if err != nil {
		return nil, "", err
	}

	return &UserSession{User: *user, Session: session}, token, nil
}
