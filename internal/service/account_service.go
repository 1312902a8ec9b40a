package service

import (
	"context"
	"fmt"

	"canteen/internal/infrastructure/lock"
	"canteen/internal/model"
	"canteen/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AccountService 余额查询和充值
type AccountService struct {
	uow             Transactor
	locker          Locker
	ledger          *Ledger
	achievements    *AchievementService
	userRepo        *repository.UserRepository
	topUpRepo       *repository.TopUpRepository
	transactionRepo *repository.TransactionRepository
	logger          *zap.Logger
}

func NewAccountService(db *gorm.DB, uow Transactor, locker Locker, ledger *Ledger, achievements *AchievementService, logger *zap.Logger) *AccountService {
	return &AccountService{
		uow:             uow,
		locker:          locker,
		ledger:          ledger,
		achievements:    achievements,
		userRepo:        repository.NewUserRepository(db),
		topUpRepo:       repository.NewTopUpRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		logger:          logger,
	}
}

func (s *AccountService) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return user.Balance, nil
}

// CreateTopUp 充值，amount 为负数时表示冲减，最多两位小数
func (s *AccountService) CreateTopUp(ctx context.Context, userID int64, amount decimal.Decimal) (*model.TopUp, error) {
	if amount.IsZero() || !amount.Equal(amount.Round(2)) {
		return nil, ErrInvalidAmount
	}

	release, err := s.locker.Acquire(ctx, lock.UserKey(userID))
	if err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer release()

	var topUp *model.TopUp
	err = s.uow.Do(ctx, func(tx *gorm.DB) error {
		var err error
		topUp, err = s.ledger.ApplyTopUp(ctx, tx, userID, amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("充值成功",
		zap.Int64("top_up_id", topUp.ID),
		zap.Int64("user_id", userID),
		zap.String("amount", amount.StringFixed(2)),
	)

	s.achievements.CheckUserBestEffort(ctx, userID)
	return topUp, nil
}

// DeleteTopUp 删除充值记录，余额恢复到充值前
func (s *AccountService) DeleteTopUp(ctx context.Context, topUpID int64) error {
	topUp, err := s.topUpRepo.GetByID(ctx, nil, topUpID)
	if err != nil {
		return err
	}

	release, err := s.locker.Acquire(ctx, lock.UserKey(topUp.UserID))
	if err != nil {
		return fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer release()

	err = s.uow.Do(ctx, func(tx *gorm.DB) error {
		_, err := s.ledger.ReverseTopUp(ctx, tx, topUpID)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("充值已冲正",
		zap.Int64("top_up_id", topUpID),
		zap.Int64("user_id", topUp.UserID),
		zap.String("amount", topUp.Amount.StringFixed(2)),
	)
	return nil
}

func (s *AccountService) ListTopUps(ctx context.Context, userID int64) ([]model.TopUp, error) {
	return s.topUpRepo.ListByUserID(ctx, userID)
}

func (s *AccountService) ListTransactions(ctx context.Context, userID int64, page, pageSize int) ([]*model.AccountTransaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.transactionRepo.ListByUserID(ctx, userID, page, pageSize)
}
