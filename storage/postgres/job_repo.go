package postgres

import (
	"context"
	"errors"
	"fmt"

	"contract-guard/types"

	"gorm.io/gorm"
)

// JobRepo 后台任务持久化
type JobRepo struct {
	db *gorm.DB
}

func NewJobRepo(db *gorm.DB) *JobRepo {
	return &JobRepo{db: db}
}

func (r *JobRepo) Create(ctx context.Context, j *types.BackgroundJob) error {
	return r.db.WithContext(ctx).Create(toJobRecord(j)).Error
}

func (r *JobRepo) Update(ctx context.Context, j *types.BackgroundJob) error {
	return r.db.WithContext(ctx).Save(toJobRecord(j)).Error
}

func (r *JobRepo) Get(ctx context.Context, id string) (*types.BackgroundJob, error) {
	var rec JobRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", types.ErrJobNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return rec.toJob(), nil
}

// FindActiveByKey 查找同一去重键下未结束的任务，没有时返回 nil
func (r *JobRepo) FindActiveByKey(ctx context.Context, key string) (*types.BackgroundJob, error) {
	var rec JobRecord
	err := r.db.WithContext(ctx).
		Where("unique_key = ? AND state NOT IN ?", key, []string{string(types.JobSucceeded), string(types.JobFailed)}).
		Order("created_at DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec.toJob(), nil
}

func (r *JobRepo) ListByStates(ctx context.Context, states ...types.JobState) ([]*types.BackgroundJob, error) {
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = string(s)
	}
	var recs []JobRecord
	if err := r.db.WithContext(ctx).Where("state IN ?", names).Order("scheduled_at").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*types.BackgroundJob, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toJob())
	}
	return out, nil
}

func (r *JobRepo) CountByState(ctx context.Context) (map[types.JobState]int, error) {
	var rows []struct {
		State string
		Count int
	}
	err := r.db.WithContext(ctx).Model(&JobRecord{}).
		Select("state, count(*) as count").
		Group("state").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[types.JobState]int, len(rows))
	for _, row := range rows {
		out[types.JobState(row.State)] = row.Count
	}
	return out, nil
}
