package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"liyu1981.xyz/hive-telemetry-service/pkg/common"
	"liyu1981.xyz/hive-telemetry-service/pkg/db"
	"liyu1981.xyz/hive-telemetry-service/pkg/models"
)

const (
	issuer            = "hive-telemetry-service"
	minPasswordLength = 8
)

type Claims struct {
	jwt.RegisteredClaims
}

// Service issues and verifies operator tokens. Devices never use it; they authenticate with
// their credential on every submission.
type Service struct {
	Db     db.DB
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService signs with secret; an empty secret is replaced by a random per-process key, which
// invalidates issued tokens on restart.
func NewService(database *db.DB, secret string, ttl time.Duration) *Service {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(err)
		}
		common.GetLoggerWith(common.LoggerNameAuth).Warn("No JWT secret configured, using an ephemeral key")
	}
	return &Service{Db: *database, secret: key, ttl: ttl, now: time.Now}
}

func errBadLogin() *common.Error {
	return common.NewError(common.KindUnauthorized, "invalid username or password")
}

func (s *Service) CreateOperator(ctx context.Context, username, password string) (*models.Operator, error) {
	logger := common.GetLoggerWith(common.LoggerNameAuth)

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, common.NewError(common.KindInvalidPayload, "username must not be empty").WithField("username")
	}
	if len(password) < minPasswordLength {
		return nil, common.Errorf(common.KindInvalidPayload, "password must be at least %d characters", minPasswordLength).
			WithField("password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, common.WrapTransient(err, "hash password")
	}

	op := models.Operator{Username: username, PasswordHash: string(hash)}
	err = s.Db.Conn.WithContext(ctx).Create(&op).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, common.Errorf(common.KindInvalidPayload, "operator %q already exists", username).WithField("username")
	}
	if err != nil {
		logger.Error("Failed to create operator", zap.Error(err))
		return nil, common.WrapTransient(err, "create operator")
	}

	logger.Info("Created operator", zap.String("username", username))
	return &op, nil
}

// EnsureOperator creates the operator when no operator of that name exists; an existing
// password is left untouched.
func (s *Service) EnsureOperator(ctx context.Context, username, password string) error {
	var count int64
	err := s.Db.Conn.WithContext(ctx).Model(&models.Operator{}).Where("username = ?", strings.TrimSpace(username)).Count(&count).Error
	if err != nil {
		return common.WrapTransient(err, "look up operator")
	}
	if count > 0 {
		return nil
	}
	_, err = s.CreateOperator(ctx, username, password)
	return err
}

// Login returns a signed token and its expiry.
func (s *Service) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	logger := common.GetLoggerWith(common.LoggerNameAuth)

	var op models.Operator
	err := s.Db.Conn.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&op).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// same answer as a wrong password
		logger.Info("Rejected login", zap.String("username", username))
		return "", time.Time{}, errBadLogin()
	}
	if err != nil {
		return "", time.Time{}, common.WrapTransient(err, "look up operator")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		logger.Info("Rejected login", zap.String("username", username))
		return "", time.Time{}, errBadLogin()
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   op.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, common.WrapTransient(err, "sign token")
	}

	logger.Info("Operator logged in", zap.String("username", op.Username))
	return signed, expiresAt, nil
}

// ParseToken verifies signature, algorithm and expiry.
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, common.NewError(common.KindUnauthorized, "invalid or expired token")
	}
	if claims.Subject == "" {
		return nil, common.NewError(common.KindUnauthorized, "invalid token payload")
	}
	return claims, nil
}
