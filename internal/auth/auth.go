package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/npezzotti/go-blogchat/internal/types"
)

const (
	TokenCookieKey = "token"

	userIdClaim = "user-id"
	nameClaim   = "name"
	expClaim    = "exp"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier checks HS256 session tokens issued by the account service.
type TokenVerifier struct {
	signingKey []byte
}

func NewTokenVerifier(signingKey []byte) *TokenVerifier {
	return &TokenVerifier{signingKey: signingKey}
}

func (v *TokenVerifier) Issue(id types.Identity, exp time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim: id.UserId,
		nameClaim:   id.Name,
		expClaim:    time.Now().Add(exp).Unix(),
	})

	return token.SignedString(v.signingKey)
}

func (v *TokenVerifier) Authenticate(tokenString string) (types.Identity, error) {
	if tokenString == "" {
		return types.Identity{}, ErrInvalidToken
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return types.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return types.Identity{}, ErrInvalidToken
	}

	userId, _ := claims[userIdClaim].(string)
	userId = strings.TrimSpace(userId)
	if userId == "" {
		return types.Identity{}, fmt.Errorf("%w: missing user id claim", ErrInvalidToken)
	}

	name, _ := claims[nameClaim].(string)

	return types.Identity{UserId: userId, Name: strings.TrimSpace(name)}, nil
}

// FromRequest resolves the identity carried by the request's token cookie.
func (v *TokenVerifier) FromRequest(r *http.Request) (types.Identity, error) {
	cookie, err := r.Cookie(TokenCookieKey)
	if err != nil {
		return types.Identity{}, fmt.Errorf("get cookie: %w", err)
	}

	return v.Authenticate(cookie.Value)
}

func NewTokenCookie(tokenString string, exp time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     TokenCookieKey,
		Value:    tokenString,
		Path:     "/",
		Expires:  time.Now().Add(exp),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
