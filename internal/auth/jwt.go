package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/gochatroom/internal/config"
)

type Claims struct {
	MemberID int64  `json:"member_id"`
	UserID   string `json:"user_id"` // 登录 ID
	Name     string `json:"name"`
	jwt.RegisteredClaims
}

// GenerateToken 生成 JWT
func GenerateToken(cfg *config.JWTConfig, memberID int64, userID, name string) (string, error) {
	now := time.Now()
	claims := Claims{
		MemberID: memberID,
		UserID:   userID,
		Name:     name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// ParseToken 解析 JWT
func ParseToken(cfg *config.JWTConfig, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}
