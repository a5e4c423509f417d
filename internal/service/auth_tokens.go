package service

import (
	"fmt"
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// ============================================================
// Session tokens
// ============================================================

const tokenIssuer = "boletopix"

// Roles carried in the "role" claim.
const (
	RoleAdmin  = "admin"
	RoleHolder = "holder"
)

// JWTClaims represents the custom claims in access tokens.
type JWTClaims struct {
	Sub      string `json:"sub"`
	Role     string `json:"role"`
	HolderID string `json:"holder_id,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
	Type     string `json:"type"`
	jwt.RegisteredClaims
}

// TokenService signs and validates HS256 access tokens. Login itself lives in
// the back office; this service only needs to trust its tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// IssueAccessToken signs a token for p. Used by the CLI and tests.
func (s *TokenService) IssueAccessToken(p domain.Principal) (string, error) {
	role := RoleHolder
	if p.IsAdmin() {
		role = RoleAdmin
	}
	now := time.Now()
	claims := JWTClaims{
		Sub:      p.Subject,
		Role:     role,
		HolderID: p.HolderID,
		TenantID: p.TenantID,
		Type:     "access",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			Issuer:    tokenIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateAccessToken verifies tokenString and maps its claims to a Principal.
func (s *TokenService) ValidateAccessToken(tokenString string) (domain.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return domain.Principal{}, &domain.ErrUnauthorized{Message: "Token inválido ou expirado"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return domain.Principal{}, &domain.ErrUnauthorized{Message: "Token inválido"}
	}
	if claims.Type != "access" {
		return domain.Principal{}, &domain.ErrUnauthorized{Message: "Tipo de token inválido"}
	}

	switch claims.Role {
	case RoleAdmin:
		return domain.AdminPrincipal(claims.Sub), nil
	case RoleHolder:
		if claims.HolderID == "" || claims.TenantID == "" {
			return domain.Principal{}, &domain.ErrUnauthorized{Message: "Token sem titular ou polo"}
		}
		p := domain.HolderPrincipal(claims.HolderID, claims.TenantID)
		if claims.Sub != "" {
			p.Subject = claims.Sub
		}
		return p, nil
	default:
		return domain.Principal{}, &domain.ErrUnauthorized{Message: "Perfil de acesso desconhecido"}
	}
}
