package service

import (
	"context"
	"errors"
	"time"

	"canteen/internal/model"
	"canteen/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AchievementService struct {
	achievementRepo *repository.AchievementRepository
	userRepo        *repository.UserRepository
	orderRepo       *repository.OrderRepository
	topUpRepo       *repository.TopUpRepository
	logger          *zap.Logger
	now             func() time.Time
}

func NewAchievementService(db *gorm.DB, logger *zap.Logger) *AchievementService {
	return &AchievementService{
		achievementRepo: repository.NewAchievementRepository(db),
		userRepo:        repository.NewUserRepository(db),
		orderRepo:       repository.NewOrderRepository(db),
		topUpRepo:       repository.NewTopUpRepository(db),
		logger:          logger,
		now:             utcNow,
	}
}

type CreateAchievementRequest struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Action      model.Action             `json:"action"`
	Operator    model.ComparisonOperator `json:"operator"`
	Threshold   int                      `json:"threshold"`
}

func (s *AchievementService) CreateAchievement(ctx context.Context, req *CreateAchievementRequest) (*model.Achievement, error) {
	if req.Name == "" || !req.Action.Valid() {
		return nil, ErrInvalidAchievement
	}
	switch req.Operator {
	case model.OperatorLessThan, model.OperatorGreaterThan, model.OperatorLessThanOrEqual, model.OperatorGreaterThanOrEqual:
	default:
		return nil, ErrInvalidAchievement
	}

	achievement := &model.Achievement{
		Name:        req.Name,
		Description: req.Description,
		Action:      req.Action,
		Operator:    req.Operator,
		Threshold:   req.Threshold,
	}
	if err := s.achievementRepo.Create(ctx, achievement); err != nil {
		return nil, err
	}
	return achievement, nil
}

// CheckOrderForAchievements 订单提交后检查下单用户新达成的成就，返回新增条数
// 统计包含这笔订单在内的全部历史
func (s *AchievementService) CheckOrderForAchievements(ctx context.Context, order *model.Order) (int64, error) {
	return s.CheckUser(ctx, order.UserID)
}

// CheckUser 对用户尚未获得的成就逐条求值，达成的一次性批量写入
func (s *AchievementService) CheckUser(ctx context.Context, userID int64) (int64, error) {
	unearned, err := s.achievementRepo.ListUnearned(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(unearned) == 0 {
		return 0, nil
	}

	metrics := make(map[model.Action]metricValue, 5)
	entries := make([]model.AchievementEntry, 0)

	for _, achievement := range unearned {
		m, ok := metrics[achievement.Action]
		if !ok {
			m, err = s.metric(ctx, userID, achievement.Action)
			if err != nil {
				return 0, err
			}
			metrics[achievement.Action] = m
		}
		if !m.defined {
			continue
		}
		if achievement.Operator.Evaluate(m.value, int64(achievement.Threshold)) {
			entries = append(entries, model.AchievementEntry{
				AchievementID: achievement.ID,
				UserID:        userID,
			})
		}
	}

	created, err := s.achievementRepo.CreateEntries(ctx, entries)
	if err != nil {
		return 0, err
	}
	if created > 0 {
		s.logger.Info("用户获得新成就", zap.Int64("user_id", userID), zap.Int64("count", created))
	}
	return created, nil
}

// CheckOrderBestEffort 成就检查失败不回滚订单，只记日志
func (s *AchievementService) CheckOrderBestEffort(ctx context.Context, order *model.Order) {
	if _, err := s.CheckOrderForAchievements(ctx, order); err != nil {
		s.logger.Error("成就检查失败",
			zap.Int64("order_id", order.ID),
			zap.Int64("user_id", order.UserID),
			zap.Error(err),
		)
	}
}

func (s *AchievementService) CheckUserBestEffort(ctx context.Context, userID int64) {
	if _, err := s.CheckUser(ctx, userID); err != nil {
		s.logger.Error("成就检查失败", zap.Int64("user_id", userID), zap.Error(err))
	}
}

// metricValue defined=false 表示该指标无法计算（例如没有任何订单时的会员年数），规则视为不满足
type metricValue struct {
	value   int64
	defined bool
}

func (s *AchievementService) metric(ctx context.Context, userID int64, action model.Action) (metricValue, error) {
	switch action {
	case model.ActionUserBuy:
		total, err := s.orderRepo.SumQuantityByUser(ctx, userID)
		return metricValue{value: total, defined: true}, err

	case model.ActionTotalBuy:
		paid, err := s.orderRepo.ListPaidByUser(ctx, userID)
		if err != nil {
			return metricValue{}, err
		}
		return metricValue{value: SumDecimals(paid).IntPart(), defined: true}, nil

	case model.ActionUserTopUp:
		count, err := s.topUpRepo.CountByUser(ctx, userID)
		return metricValue{value: count, defined: true}, err

	case model.ActionTotalTopUp:
		amounts, err := s.topUpRepo.ListAmountsByUser(ctx, userID)
		if err != nil {
			return metricValue{}, err
		}
		return metricValue{value: SumDecimals(amounts).RoundBank(0).IntPart(), defined: true}, nil

	case model.ActionYearsOfMembership:
		first, err := s.orderRepo.EarliestByUser(ctx, userID)
		if err != nil || first == nil {
			return metricValue{}, err
		}
		return metricValue{value: MembershipYears(first.CreatedAt, s.now()), defined: true}, nil
	}

	return metricValue{}, nil
}

// AwardToUser 手动发放成就；已经拥有或成就不存在时返回 false
func (s *AchievementService) AwardToUser(ctx context.Context, userID, achievementID int64) (bool, error) {
	if _, err := s.achievementRepo.GetByID(ctx, achievementID); err != nil {
		if errors.Is(err, repository.ErrAchievementNotFound) {
			return false, nil
		}
		return false, err
	}
	if _, err := s.userRepo.GetByID(ctx, nil, userID); err != nil {
		return false, err
	}

	created, err := s.achievementRepo.CreateEntries(ctx, []model.AchievementEntry{{
		AchievementID: achievementID,
		UserID:        userID,
	}})
	if err != nil {
		return false, err
	}
	return created == 1, nil
}

// AwardToAllUsers 给所有还没有该成就的用户发放，返回新增条数；成就不存在时返回 0
func (s *AchievementService) AwardToAllUsers(ctx context.Context, achievementID int64) (int64, error) {
	if _, err := s.achievementRepo.GetByID(ctx, achievementID); err != nil {
		if errors.Is(err, repository.ErrAchievementNotFound) {
			return 0, nil
		}
		return 0, err
	}

	userIDs, err := s.achievementRepo.UserIDsWithout(ctx, achievementID)
	if err != nil {
		return 0, err
	}

	entries := make([]model.AchievementEntry, 0, len(userIDs))
	for _, id := range userIDs {
		entries = append(entries, model.AchievementEntry{AchievementID: achievementID, UserID: id})
	}

	created, err := s.achievementRepo.CreateEntries(ctx, entries)
	if err != nil {
		return 0, err
	}
	s.logger.Info("批量发放成就", zap.Int64("achievement_id", achievementID), zap.Int64("count", created))
	return created, nil
}

func (s *AchievementService) ListUserAchievements(ctx context.Context, userID int64) ([]model.AchievementEntry, error) {
	return s.achievementRepo.ListEntriesByUser(ctx, userID)
}

func (s *AchievementService) MarkSeen(ctx context.Context, userID int64) (int64, error) {
	return s.achievementRepo.MarkSeen(ctx, userID)
}

// DeleteAllEntries 管理员批量删除某个成就的所有获得记录
func (s *AchievementService) DeleteAllEntries(ctx context.Context, achievementID int64) (int64, error) {
	if _, err := s.achievementRepo.GetByID(ctx, achievementID); err != nil {
		return 0, err
	}
	return s.achievementRepo.DeleteEntries(ctx, achievementID)
}

func SumDecimals(values []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum
}

// MembershipYears floor(自 first 起的天数 / 365)
func MembershipYears(first, now time.Time) int64 {
	if now.Before(first) {
		return 0
	}
	days := int64(now.Sub(first).Hours() / 24)
	return days / 365
}
