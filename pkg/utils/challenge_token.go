package utils

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	tokenSecret          = []byte("change-me-in-production")
	challengeTokenExpiry = 5 * time.Minute
)

// ConfigureTokens sets the signing secret and lifetime for pending-auth
// challenge tokens. Must be called before the first token is issued.
func ConfigureTokens(secret string, expiry time.Duration) {
	if secret != "" {
		tokenSecret = []byte(secret)
	}
	if expiry > 0 {
		challengeTokenExpiry = expiry
	}
}

// ChallengeClaims bind an in-progress authentication to the identity and the
// method the caller is expected to complete next. The JTI makes each token
// single-use.
type ChallengeClaims struct {
	Identity  string `json:"identity"`
	Method    string `json:"method"`
	TokenType string `json:"tokenType"`
	JTI       string `json:"jti"`
	jwt.RegisteredClaims
}

func GenerateChallengeToken(identity, method string) (string, error) {
	expiresAt := time.Now().Add(challengeTokenExpiry)
	jti := uuid.New().String()
	claims := ChallengeClaims{
		Identity:  identity,
		Method:    method,
		TokenType: "auth_challenge",
		JTI:       jti,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        jti,
			Subject:   identity,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tokenSecret)
}

func ValidateChallengeToken(tokenString string) (*ChallengeClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ChallengeClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return tokenSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*ChallengeClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid challenge token")
	}

	if claims.TokenType != "auth_challenge" {
		return nil, fmt.Errorf("invalid token type")
	}

	if claims.JTI == "" {
		return nil, fmt.Errorf("missing token ID")
	}

	return claims, nil
}

var consumedJTIs = make(map[string]time.Time)
var jtiMu sync.Mutex

func IsJTIValid(jti string) bool {
	jtiMu.Lock()
	defer jtiMu.Unlock()
	_, exists := consumedJTIs[jti]
	return !exists
}

// ConsumeJTI marks the token ID used and reports whether this call was the
// one that consumed it. The check and the insert happen under one lock, so
// concurrent callers with the same JTI cannot both win.
func ConsumeJTI(jti string) bool {
	jtiMu.Lock()
	defer jtiMu.Unlock()
	if _, exists := consumedJTIs[jti]; exists {
		return false
	}
	consumedJTIs[jti] = time.Now()
	return true
}

// StartJTICleanup sweeps consumed token IDs on the given interval so the
// replay set does not grow without bound.
func StartJTICleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			CleanupExpiredJTIs()
		}
	}()
}

func CleanupExpiredJTIs() {
	jtiMu.Lock()
	defer jtiMu.Unlock()
	now := time.Now()
	for jti, consumedAt := range consumedJTIs {
		if now.Sub(consumedAt) > challengeTokenExpiry {
			delete(consumedJTIs, jti)
		}
	}
}
