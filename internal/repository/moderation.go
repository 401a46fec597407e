package repository

import (
	"context"

	"campuschat/internal/models"
	"campuschat/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ModerationRepository stores block and report edges.
type ModerationRepository interface {
	// IsBlocked reports whether a block edge exists between a and b in either direction.
	IsBlocked(ctx context.Context, a, b uint) (bool, error)
	// BlockersOf returns the ids of every user who blocked userID.
	BlockersOf(ctx context.Context, userID uint) ([]uint, error)
	// InsertBlock records blocker -> blocked. Duplicate edges are ignored.
	InsertBlock(ctx context.Context, blockerID, blockedID uint) error
	// InsertReport appends a report edge; duplicates are kept.
	InsertReport(ctx context.Context, reporterID, reportedID uint) error
	CountReports(ctx context.Context, reportedID uint) (int64, error)
}

type moderationRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewModerationRepository returns a ModerationRepository backed by db.
func NewModerationRepository(db *gorm.DB) ModerationRepository {
	return &moderationRepository{db: db, log: observability.NewRepoLogger("blocks")}
}

func (r *moderationRepository) IsBlocked(ctx context.Context, a, b uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UserBlock{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *moderationRepository) BlockersOf(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.UserBlock{}).
		Where("blocked_id = ?", userID).
		Pluck("blocker_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *moderationRepository) InsertBlock(ctx context.Context, blockerID, blockedID uint) error {
	edge := models.UserBlock{BlockerID: blockerID, BlockedID: blockedID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "blocker_id"}, {Name: "blocked_id"}},
			DoNothing: true,
		}).
		Create(&edge).Error
	if err != nil {
		r.log.LogError(ctx, err, "insert_block")
		return models.NewInternalError(err)
	}
	r.log.LogWrite(ctx, "insert_block", map[string]any{"blocker_id": blockerID, "blocked_id": blockedID})
	return nil
}

func (r *moderationRepository) InsertReport(ctx context.Context, reporterID, reportedID uint) error {
	report := models.UserReport{ReporterID: reporterID, ReportedID: reportedID}
	if err := r.db.WithContext(ctx).Create(&report).Error; err != nil {
		r.log.LogError(ctx, err, "insert_report")
		return models.NewInternalError(err)
	}
	return nil
}

func (r *moderationRepository) CountReports(ctx context.Context, reportedID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UserReport{}).
		Where("reported_id = ?", reportedID).
		Count(&count).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
