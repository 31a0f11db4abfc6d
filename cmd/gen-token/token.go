package main

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const defaultTTL = time.Hour

type tokenOptions struct {
	Secret   string
	Audience string
	Issuer   string
	TTL      time.Duration
	now      func() time.Time
}

// secretFromEnv prefers the test-mode secret over the local auth secret.
func secretFromEnv(getenv func(string) string) string {
	if s := getenv("TEST_JWT_SECRET"); s != "" {
		return s
	}
	return getenv("LOCAL_AUTH_SHARED_SECRET")
}

func userIDs(count int, prefix string, start int, args []string) []string {
	if len(args) > 0 {
		return []string{args[0]}
	}
	if count == 1 {
		return []string{prefix}
	}
	ids := make([]string, count)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s-%d", prefix, start+i)
	}
	return ids
}

func signToken(opts tokenOptions, userID string) (string, error) {
	now := time.Now
	if opts.now != nil {
		now = opts.now
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	issued := now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": issued.Unix(),
		"exp": issued.Add(ttl).Unix(),
	}
	if opts.Audience != "" {
		claims["aud"] = opts.Audience
	}
	if opts.Issuer != "" {
		claims["iss"] = opts.Issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(opts.Secret))
}

func generateTokens(opts tokenOptions, ids []string) ([]string, error) {
	tokens := make([]string, 0, len(ids))
	for _, id := range ids {
		tok, err := signToken(opts, id)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}
