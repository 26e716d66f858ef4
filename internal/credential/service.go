// Package credential はアカウントとセッションを管理する認証バックエンドと、
// ページ単位でセッション状態を保持するクライアントを提供する。
package credential

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/makersgallery/internal/model"
	"github.com/hitoshi/makersgallery/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// ServiceConfig は認証バックエンドの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	BcryptCost    int // 0の場合はbcrypt.DefaultCost
}

// Service はアカウント作成、サインイン、セッション管理を提供する。
type Service struct {
	accounts repository.AccountRepository
	sessions repository.SessionRepository
	config   ServiceConfig
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	accounts repository.AccountRepository,
	sessions repository.SessionRepository,
	config ServiceConfig,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		accounts: accounts,
		sessions: sessions,
		config:   config,
		now:      time.Now,
	}
}

// CreateAccount はアカウントを作成する。セッションは発行しない。
// 失敗時は*Errorを返す。
func (s *Service) CreateAccount(ctx context.Context, address, secret string) (*model.Account, error) {
	if !validAddress(address) {
		return nil, newError(CodeInvalidEmail, invalidEmailMessage)
	}
	if len(secret) < minimumPasswordLength {
		return nil, newError(CodeWeakPassword, weakPasswordMessage)
	}

	existing, err := s.accounts.FindByAddress(ctx, address)
	if err != nil {
		return nil, internalError(fmt.Errorf("failed to find account: %w", err))
	}
	if existing != nil {
		return nil, newError(CodeEmailAlreadyInUse, emailInUseMessage)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.config.BcryptCost)
	if err != nil {
		return nil, internalError(fmt.Errorf("failed to hash password: %w", err))
	}

	account := &model.Account{
		ID:           uuid.New().String(),
		Address:      address,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrAddressTaken) {
			return nil, newError(CodeEmailAlreadyInUse, emailInUseMessage)
		}
		return nil, internalError(fmt.Errorf("failed to create account: %w", err))
	}

	slog.Info("account created", slog.String("account_id", account.ID))
	return account, nil
}

// SignIn は資格情報を検証し、新しいセッションを発行する。
// 失敗時は*Errorを返す。
func (s *Service) SignIn(ctx context.Context, address, secret string) (*model.Session, error) {
	if !validAddress(address) {
		return nil, newError(CodeInvalidEmail, invalidEmailMessage)
	}

	account, err := s.accounts.FindByAddress(ctx, address)
	if err != nil {
		return nil, internalError(fmt.Errorf("failed to find account: %w", err))
	}
	if account == nil {
		return nil, newError(CodeUserNotFound, userNotFoundMessage)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, newError(CodeWrongPassword, wrongPasswordMessage)
		}
		return nil, internalError(fmt.Errorf("failed to compare password: %w", err))
	}

	session, err := s.createSession(ctx, account.ID)
	if err != nil {
		return nil, internalError(err)
	}
	return session, nil
}

// SignOut はセッションを破棄する。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Resume はセッションIDから有効なセッションを取得する。
// 不明または期限切れの場合はnilを返す。
func (s *Service) Resume(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil || session.Expired(s.now()) {
		return nil, nil
	}
	return session, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, accountID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		AccountID: accountID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// validAddress は表示名や山括弧を含まない単体のメールアドレスかどうかを判定する。
func validAddress(address string) bool {
	parsed, err := mail.ParseAddress(address)
	if err != nil {
		return false
	}
	return parsed.Name == "" && parsed.Address == address
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
