package repository

import (
	"context"
	"errors"

	"canteen/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AchievementRepository struct {
	db *gorm.DB
}

func NewAchievementRepository(db *gorm.DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

func (r *AchievementRepository) Create(ctx context.Context, achievement *model.Achievement) error {
	return r.db.WithContext(ctx).Create(achievement).Error
}

func (r *AchievementRepository) GetByID(ctx context.Context, id int64) (*model.Achievement, error) {
	var achievement model.Achievement
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&achievement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAchievementNotFound
		}
		return nil, err
	}
	return &achievement, nil
}

// ListUnearned 返回用户尚未获得的成就
func (r *AchievementRepository) ListUnearned(ctx context.Context, userID int64) ([]model.Achievement, error) {
	var achievements []model.Achievement
	earned := r.db.Model(&model.AchievementEntry{}).Select("achievement_id").Where("user_id = ?", userID)
	err := r.db.WithContext(ctx).
		Where("id NOT IN (?)", earned).
		Order("id ASC").
		Find(&achievements).Error
	return achievements, err
}

// UserIDsWithout 返回还没有获得该成就的用户
func (r *AchievementRepository) UserIDsWithout(ctx context.Context, achievementID int64) ([]int64, error) {
	var ids []int64
	earned := r.db.Model(&model.AchievementEntry{}).Select("user_id").Where("achievement_id = ?", achievementID)
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id NOT IN (?)", earned).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// CreateEntries 批量写入成就记录，返回实际新增的条数
//
// 唯一索引冲突视为"已获得"，直接忽略。两笔并发订单可能都通过了 ListUnearned 的预过滤，
// 真正保证每个用户每个成就只有一条记录的是这里的唯一索引。
func (r *AchievementRepository) CreateEntries(ctx context.Context, entries []model.AchievementEntry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "achievement_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&entries)
	return result.RowsAffected, result.Error
}

func (r *AchievementRepository) ListEntriesByUser(ctx context.Context, userID int64) ([]model.AchievementEntry, error) {
	entries := make([]model.AchievementEntry, 0)
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}

func (r *AchievementRepository) MarkSeen(ctx context.Context, userID int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.AchievementEntry{}).
		Where("user_id = ? AND has_seen = ?", userID, false).
		Update("has_seen", true)
	return result.RowsAffected, result.Error
}

func (r *AchievementRepository) DeleteEntries(ctx context.Context, achievementID int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("achievement_id = ?", achievementID).
		Delete(&model.AchievementEntry{})
	return result.RowsAffected, result.Error
}
