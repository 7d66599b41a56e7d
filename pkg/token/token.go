package token

import (
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/hertz-contrib/jwt"

	"github.com/MehulDev0228/aurin-platform-sub001/pkg/errors"
)

const (
	IdentityKey = "uid"
	RoleKey     = "role"
)

// 角色
const (
	RoleOrganizer = "organizer"
	RoleAttendee  = "attendee"
)

var (
	// 这个实例会被 middleware 和 token 包共同使用
	sharedGenerator *jwt.HertzJWTMiddleware
	secret          []byte
	accessTTL       time.Duration
)

// Init 初始化访问令牌生成器，由入口传入配置
func Init(jwtSecret string, expire, maxRefresh time.Duration) error {
	var err error
	sharedGenerator, err = jwt.New(&jwt.HertzJWTMiddleware{
		Key:         []byte(jwtSecret),
		Timeout:     expire,
		MaxRefresh:  maxRefresh,
		IdentityKey: IdentityKey,
		TimeFunc:    time.Now,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize token generator: %w", err)
	}

	secret = []byte(jwtSecret)
	accessTTL = expire
	return nil
}

// GetGenerator 获取共享的 token 生成器（供 middleware 使用）
func GetGenerator() *jwt.HertzJWTMiddleware {
	return sharedGenerator
}

// GenerateAccessToken 为用户签发访问令牌，role 决定可访问的接口
func GenerateAccessToken(userID, role string) (accessToken string, expiresIn int, err error) {
	if sharedGenerator == nil {
		return "", 0, errors.ErrTokenGeneratorNotInitialized
	}

	now := time.Now()
	expiresAt := now.Add(accessTTL)

	claims := jwtv5.MapClaims{
		IdentityKey: userID,
		RoleKey:     role,
		"iat":       now.Unix(),
		"orig_iat":  now.Unix(),
		"exp":       expiresAt.Unix(),
	}

	accessToken, err = jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to generate access token: %w", err)
	}

	expiresIn = int(time.Until(expiresAt).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}

	return accessToken, expiresIn, nil
}

// Identity 从 claims 中解析出的调用方身份
type Identity struct {
	UserID string
	Role   string
}

// IdentityFromClaims 兼容 uid 被编码为数字的旧令牌
func IdentityFromClaims(claims map[string]interface{}) (Identity, error) {
	var id Identity

	switch v := claims[IdentityKey].(type) {
	case string:
		id.UserID = v
	case float64:
		id.UserID = fmt.Sprintf("%.0f", v)
	default:
		return Identity{}, errors.ErrInvalidTokenClaims
	}
	if id.UserID == "" {
		return Identity{}, errors.ErrInvalidTokenClaims
	}

	id.Role, _ = claims[RoleKey].(string)
	return id, nil
}
