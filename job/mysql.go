package job

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kestrel-qa/testpilot/logger"
)

// MySQLStore implements the Store interface using GORM. The same
// implementation backs the sqlite setup used in tests.
type MySQLStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewMySQLStore creates a new GORM-backed job store.
func NewMySQLStore(db *gorm.DB, log logger.Logger) *MySQLStore {
	return &MySQLStore{
		db:     db,
		logger: log,
	}
}

// Create creates a new job in the database.
func (s *MySQLStore) Create(ctx context.Context, j *Job) error {
	if err := j.Validate(); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(j).Error; err != nil {
		s.logger.Error(ctx, "failed to create job", map[string]interface{}{
			"error": err.Error(),
			"type":  string(j.Type),
		})
		return err
	}

	s.logger.Info(ctx, "job created", map[string]interface{}{
		"job_id": j.ID.String(),
		"type":   string(j.Type),
	})

	return nil
}

// GetByID retrieves a job by its ID.
func (s *MySQLStore) GetByID(ctx context.Context, id uuid.UUID) (*Job, error) {
	var j Job
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&j).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		s.logger.Error(ctx, "failed to get job by ID", map[string]interface{}{
			"error":  err.Error(),
			"job_id": id.String(),
		})
		return nil, err
	}

	return &j, nil
}

// Update updates a job with the given setters.
func (s *MySQLStore) Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error {
	j, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	for _, setter := range setters {
		if err := setter(j); err != nil {
			return err
		}
	}

	if err := s.db.WithContext(ctx).Save(j).Error; err != nil {
		s.logger.Error(ctx, "failed to update job", map[string]interface{}{
			"error":  err.Error(),
			"job_id": id.String(),
		})
		return err
	}

	s.logger.Info(ctx, "job updated", map[string]interface{}{
		"job_id": id.String(),
	})

	return nil
}

// List retrieves a paginated list of jobs, most recent first.
func (s *MySQLStore) List(ctx context.Context, limit, offset int) ([]*Job, error) {
	var jobs []*Job
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error

	if err != nil {
		s.logger.Error(ctx, "failed to list jobs", map[string]interface{}{
			"error":  err.Error(),
			"limit":  limit,
			"offset": offset,
		})
		return nil, err
	}

	return jobs, nil
}

// Count returns the total number of jobs.
func (s *MySQLStore) Count(ctx context.Context) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Job{}).
		Count(&count).Error

	if err != nil {
		s.logger.Error(ctx, "failed to count jobs", map[string]interface{}{
			"error": err.Error(),
		})
		return 0, err
	}

	return int(count), nil
}

// ListByStatus retrieves a paginated list of jobs filtered by status.
func (s *MySQLStore) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Job, error) {
	var jobs []*Job
	err := s.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error

	if err != nil {
		s.logger.Error(ctx, "failed to list jobs by status", map[string]interface{}{
			"error":  err.Error(),
			"status": string(status),
			"limit":  limit,
			"offset": offset,
		})
		return nil, err
	}

	return jobs, nil
}

// ClaimNextCreated atomically claims the oldest created job and marks it
// running. Returns nil without error when no created job is available.
// The claim is an optimistic conditional update so it works on both MySQL
// and sqlite without row locks.
func (s *MySQLStore) ClaimNextCreated(ctx context.Context) (*Job, error) {
	for {
		var j Job
		err := s.db.WithContext(ctx).
			Where("status = ?", StatusCreated).
			Order("created_at ASC").
			First(&j).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			s.logger.Error(ctx, "failed to find claimable job", map[string]interface{}{
				"error": err.Error(),
			})
			return nil, err
		}

		now := time.Now()
		res := s.db.WithContext(ctx).
			Model(&Job{}).
			Where("id = ? AND status = ?", j.ID, StatusCreated).
			Updates(map[string]interface{}{
				"status":     StatusRunning,
				"start_time": now,
			})
		if res.Error != nil {
			s.logger.Error(ctx, "failed to claim job", map[string]interface{}{
				"error":  res.Error.Error(),
				"job_id": j.ID.String(),
			})
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			// Another worker claimed it first; try the next one.
			continue
		}

		j.Status = StatusRunning
		j.StartTime = &now

		s.logger.Info(ctx, "job claimed", map[string]interface{}{
			"job_id": j.ID.String(),
		})

		return &j, nil
	}
}

// Complete marks a job as finished with the given status and result.
func (s *MySQLStore) Complete(ctx context.Context, id uuid.UUID, status Status, result JSONMap) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var j Job
		if err := tx.WithContext(ctx).Where("id = ?", id).First(&j).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrJobNotFound
			}
			return err
		}

		if err := j.Complete(status, result); err != nil {
			return err
		}

		return tx.WithContext(ctx).Save(&j).Error
	})

	if err != nil {
		if !errors.Is(err, ErrJobNotFound) && !errors.Is(err, ErrJobNotRunning) {
			s.logger.Error(ctx, "failed to complete job", map[string]interface{}{
				"error":  err.Error(),
				"job_id": id.String(),
				"status": string(status),
			})
		}
		return err
	}

	s.logger.Info(ctx, "job completed", map[string]interface{}{
		"job_id": id.String(),
		"status": string(status),
	})

	return nil
}
