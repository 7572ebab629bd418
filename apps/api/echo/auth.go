package echoapi

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-obe/core"
	"github.com/trezcool/masomo-obe/core/user"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	contextClaimsKey = "claims"
	contextUserKey   = "user"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	TokenType    string   `json:"token_type"`
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	Username     string   `json:"username,omitempty"`
	Email        string   `json:"email,omitempty"`
	IsStudent    bool     `json:"is_student,omitempty"`
	IsTeacher    bool     `json:"is_teacher,omitempty"`
	IsAdmin      bool     `json:"is_admin,omitempty"`
	Roles        []string `json:"roles,omitempty"`
}

func (c Claims) UserID() int {
	id, _ := strconv.Atoi(c.Subject)
	return id
}

// TokenAuth issues and checks the access/refresh token pairs.
type TokenAuth struct {
	key          []byte
	issuer       string
	accessDelta  time.Duration
	refreshDelta time.Duration
}

func NewTokenAuth(conf *core.Config) *TokenAuth {
	return &TokenAuth{
		key:          []byte(conf.SecretKey),
		issuer:       conf.AppName,
		accessDelta:  conf.Server.JWTExpirationDelta,
		refreshDelta: conf.Server.JWTRefreshExpirationDelta,
	}
}

func (ta *TokenAuth) claims(usr user.User, typ string, delta time.Duration, origIat int64) *Claims {
	now := time.Now()
	if origIat == 0 {
		origIat = now.Unix()
	}
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ta.issuer,
			Subject:   strconv.Itoa(usr.ID),
			ExpiresAt: jwt.NewNumericDate(now.Add(delta)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		TokenType:    typ,
		OrigIssuedAt: origIat,
		Username:     usr.Username,
		Email:        usr.Email,
		IsStudent:    usr.IsStudent(),
		IsTeacher:    usr.IsTeacher(),
		IsAdmin:      usr.IsAdmin(),
		Roles:        usr.Roles,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func (ta *TokenAuth) GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(ta.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// AccessToken returns a signed access token for usr.
func (ta *TokenAuth) AccessToken(usr user.User, origIat ...int64) (string, error) {
	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	}
	return ta.GenerateToken(ta.claims(usr, tokenTypeAccess, ta.accessDelta, oriat))
}

// Issue returns a new token pair for usr.
func (ta *TokenAuth) Issue(usr user.User) (TokenResponse, error) {
	access, err := ta.AccessToken(usr)
	if err != nil {
		return TokenResponse{}, err
	}
	refresh, err := ta.GenerateToken(ta.claims(usr, tokenTypeRefresh, ta.refreshDelta, 0))
	if err != nil {
		return TokenResponse{}, err
	}
	return TokenResponse{
		Access:    access,
		Refresh:   refresh,
		ExpiresIn: int64(ta.accessDelta / time.Second),
		User:      &usr,
	}, nil
}

// Parse checks the signature, expiry and type of a token.
func (ta *TokenAuth) Parse(tokenStr, typ string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return ta.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(ta.issuer))
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}
	if claims.TokenType != typ {
		return nil, errInvalidToken
	}
	return claims, nil
}

// Refresh exchanges a refresh token for a new access token.
// The user must still be active and the refresh window must not have passed.
func (ta *TokenAuth) Refresh(ctx context.Context, refreshToken string, svc *user.Service) (TokenResponse, error) {
	claims, err := ta.Parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		return TokenResponse{}, err
	}
	usr, err := svc.GetByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return TokenResponse{}, errInvalidToken
		}
		return TokenResponse{}, errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return TokenResponse{}, errAccountDeactivated
	}
	if time.Now().After(time.Unix(claims.OrigIssuedAt, 0).Add(ta.refreshDelta)) {
		return TokenResponse{}, errRefreshExpired
	}

	access, err := ta.AccessToken(usr, claims.OrigIssuedAt)
	if err != nil {
		return TokenResponse{}, err
	}
	return TokenResponse{Access: access, ExpiresIn: int64(ta.accessDelta / time.Second)}, nil
}

// Middleware authenticates requests carrying a bearer access token.
func (ta *TokenAuth) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
			tokenStr := strings.TrimPrefix(auth, "Bearer ")
			if auth == "" || tokenStr == auth || tokenStr == "" {
				return errMissingToken
			}
			claims, err := ta.Parse(tokenStr, tokenTypeAccess)
			if err != nil {
				return err
			}
			ctx.Set(contextClaimsKey, claims)
			return next(ctx)
		}
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(*Claims); ok {
		return *claims, nil
	}
	return Claims{}, errUnauthorized
}

// getContextUser loads the authenticated user once per request.
func getContextUser(ctx echo.Context, svc *user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}
	usr, err := svc.GetByID(ctx.Request().Context(), claims.UserID())
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

func contextHasAnyRole(ctx echo.Context, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return false
	}
	for _, have := range claims.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

type (
	TokenResponse struct {
		Access    string     `json:"access"`
		Refresh   string     `json:"refresh,omitempty"`
		ExpiresIn int64      `json:"expires_in"`
		User      *user.User `json:"user,omitempty"`
	}

	RefreshRequest struct {
		Refresh string `json:"refresh" validate:"required"`
	}
)
