package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appctx "ytsoob/internal/core/context"
)

// Claim names of tokens issued by the identity service.
const (
	DefaultActorClaim = "nameid"
	claimUserName     = "unique_name"
	claimEmail        = "email"
	claimRole         = "role"
)

// JWTConfig configures token validation.
type JWTConfig struct {
	Secret string
	// Issuer is checked when set
	Issuer string
	// ActorClaim carries the numeric actor id
	ActorClaim string
}

// JWTService validates HS256 tokens and maps their claims to a UserContext.
type JWTService struct {
	config JWTConfig
}

// NewJWTService creates a JWT service.
func NewJWTService(config JWTConfig) *JWTService {
	if config.ActorClaim == "" {
		config.ActorClaim = DefaultActorClaim
	}
	return &JWTService{config: config}
}

// ValidateToken implements JWTValidator. A token without a parseable actor
// claim is valid but anonymous.
func (s *JWTService) ValidateToken(tokenString string) (*appctx.UserContext, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return &appctx.UserContext{
		ActorID:  appctx.ParseActorID(claimString(claims[s.config.ActorClaim])),
		UserName: claimString(claims[claimUserName]),
		Email:    claimString(claims[claimEmail]),
		Roles:    claimStrings(claims[claimRole]),
	}, nil
}

// GenerateToken signs a token for actor. Used by tests and local tooling.
func (s *JWTService) GenerateToken(actor int64, userName string, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		s.config.ActorClaim: strconv.FormatInt(actor, 10),
		claimUserName:       userName,
		"iat":               now.Unix(),
		"exp":               now.Add(ttl).Unix(),
	}
	if s.config.Issuer != "" {
		claims["iss"] = s.config.Issuer
	}
	if len(roles) > 0 {
		claims[claimRole] = roles
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func claimString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// claimStrings accepts a single string or an array, as issuers emit both.
func claimStrings(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
