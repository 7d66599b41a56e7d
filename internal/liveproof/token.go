// Package liveproof 签发和校验到场挑战令牌。
//
// 令牌是 HS256 JWS，签名覆盖 eid、jti(nonce)、iat、exp 全部字段，
// nonce 的一次性由 NonceStore 的原子操作保证。
package liveproof

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/model"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/repository"
	pkgerrors "github.com/MehulDev0228/aurin-platform-sub001/pkg/errors"
)

const (
	DefaultTTL = 5 * time.Minute

	issuerName = "aurin-liveproof"
	nonceBytes = 32
	// consumed 标记多保留一小段，避免和令牌过期时间擦边
	nonceGrace = 5 * time.Second
)

// EventDirectory 查询活动的组织者
type EventDirectory interface {
	GetEvent(ctx context.Context, id int64) (*model.Event, error)
}

// ProofToken 签发结果
type ProofToken struct {
	Token     string
	EventID   int64
	Nonce     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims 校验通过后的令牌内容
type Claims struct {
	EventID   int64
	Nonce     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type proofClaims struct {
	EventID string `json:"eid"`
	jwt.RegisteredClaims
}

type Service struct {
	secret []byte
	ttl    time.Duration
	events EventDirectory
	nonces NonceStore
	now    func() time.Time
	parser *jwt.Parser
}

type Option func(*Service)

// WithClock 替换时钟，测试使用
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithTTL 覆盖默认 5 分钟有效期
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func NewService(secret []byte, events EventDirectory, nonces NonceStore, opts ...Option) (*Service, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("liveproof secret must be at least 32 bytes, got %d", len(secret))
	}

	s := &Service{
		secret: secret,
		ttl:    DefaultTTL,
		events: events,
		nonces: nonces,
		now:    time.Now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL 令牌有效期
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue 只有活动的组织者可以签发
func (s *Service) Issue(ctx context.Context, eventID int64, issuer string) (*ProofToken, error) {
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, pkgerrors.EventNotFound
		}
		return nil, fmt.Errorf("failed to load event: %w", err)
	}

	if issuer == "" || event.OrganizerID != issuer {
		return nil, pkgerrors.IssuerUnauthorized
	}

	nonce, err := newNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := s.now()
	claims := proofClaims{
		EventID: strconv.FormatInt(eventID, 10),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        nonce,
			Issuer:    issuerName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign liveproof token: %w", err)
	}

	if err := s.nonces.Register(ctx, nonce, s.ttl+nonceGrace); err != nil {
		return nil, fmt.Errorf("failed to register nonce: %w", err)
	}

	return &ProofToken{
		Token:     signed,
		EventID:   eventID,
		Nonce:     nonce,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// ExpiresIn 剩余秒数
func (s *Service) ExpiresIn(t *ProofToken) int {
	secs := int(t.ExpiresAt.Sub(s.now()).Seconds())
	if secs < 0 {
		return 0
	}
	return secs
}

// Inspect 校验过期和签名，不消耗 nonce
// 过期判断先于签名，过期令牌无论签名是否有效都返回 TokenExpired
func (s *Service) Inspect(token string) (*Claims, error) {
	var unverified proofClaims
	if _, _, err := s.parser.ParseUnverified(token, &unverified); err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.TokenInvalidSignature, err)
	}
	if unverified.ExpiresAt == nil {
		return nil, pkgerrors.TokenInvalidSignature
	}
	if s.now().After(unverified.ExpiresAt.Time) {
		return nil, pkgerrors.TokenExpired
	}

	var claims proofClaims
	parsed, err := s.parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, pkgerrors.TokenInvalidSignature
	}

	eventID, err := strconv.ParseInt(claims.EventID, 10, 64)
	if err != nil || claims.ID == "" || claims.Issuer != issuerName || claims.ExpiresAt == nil {
		return nil, pkgerrors.TokenInvalidSignature
	}

	out := &Claims{
		EventID:   eventID,
		Nonce:     claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

// Verify 校验并原子地消耗 nonce
func (s *Service) Verify(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.Inspect(token)
	if err != nil {
		return nil, err
	}

	consumed, err := s.nonces.Consume(ctx, claims.Nonce, s.remaining(claims)+nonceGrace)
	if err != nil {
		return nil, fmt.Errorf("failed to consume nonce: %w", err)
	}
	if !consumed {
		return nil, pkgerrors.TokenReplayed
	}

	return claims, nil
}

// Release 签到落库失败时归还 nonce，令牌在有效期内可再用一次
func (s *Service) Release(ctx context.Context, claims *Claims) error {
	remaining := s.remaining(claims)
	if remaining <= 0 {
		return nil
	}
	return s.nonces.Release(ctx, claims.Nonce, remaining+nonceGrace)
}

func (s *Service) remaining(claims *Claims) time.Duration {
	d := claims.ExpiresAt.Sub(s.now())
	if d < 0 {
		return 0
	}
	return d
}

func newNonce() (string, error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
