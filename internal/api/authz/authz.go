package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

// Operator is the caller behind an Authorization header. Verified is false
// when a token was presented but matched no configured hash.
type Operator struct {
	TokenIndex int
	Verified   bool
}

type operatorContextKey struct{}

func ContextWithOperator(ctx context.Context, operator *Operator) context.Context {
	return context.WithValue(ctx, operatorContextKey{}, operator)
}

// OperatorFromContext returns nil if no operator is stored in ctx.
func OperatorFromContext(ctx context.Context) *Operator {
	if ctx == nil {
		return nil
	}
	operator, ok := ctx.Value(operatorContextKey{}).(*Operator)
	if !ok {
		return nil
	}
	return operator
}

// RequireOperator returns ErrUnauthenticated when no credentials were
// presented and ErrForbidden when they were rejected.
func RequireOperator(ctx context.Context) error {
	operator := OperatorFromContext(ctx)
	if operator == nil {
		return ErrUnauthenticated
	}
	if !operator.Verified {
		return ErrForbidden
	}
	return nil
}

// TokenVerifier checks bearer tokens against bcrypt hashes.
type TokenVerifier struct {
	hashes [][]byte
}

func NewTokenVerifier(hashes []string) (*TokenVerifier, error) {
	verifier := &TokenVerifier{}
	for i, hash := range hashes {
		hash = strings.TrimSpace(hash)
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("operator token hash %d: %w", i, err)
		}
		verifier.hashes = append(verifier.hashes, []byte(hash))
	}
	return verifier, nil
}

// Verify returns the index of the hash matching token.
func (v *TokenVerifier) Verify(token string) (int, bool) {
	if v == nil || token == "" {
		return 0, false
	}
	for i, hash := range v.hashes {
		if bcrypt.CompareHashAndPassword(hash, []byte(token)) == nil {
			return i, true
		}
	}
	return 0, false
}

// HashToken wraps bcrypt.GenerateFromPassword for operator token config.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
