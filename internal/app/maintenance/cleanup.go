package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/legalbridge/legalbridge/internal/models"
	"github.com/legalbridge/legalbridge/internal/monitoring"
	"github.com/legalbridge/legalbridge/pkg/logger"
)

const (
	defaultNotificationRetentionDays = 90
	defaultMessageRetentionDays      = 30
	defaultSchedule                  = "@daily"
)

// Cleaner runs the background retention jobs: purging read notifications and
// hard-deleting message rows that were soft-deleted long ago. Session expiry
// is NOT a maintenance concern; sessions expire lazily on read.
type Cleaner struct {
	db   *gorm.DB
	cron *cron.Cron
	now  func() time.Time
	log  *zap.Logger

	schedule              string
	notificationRetention int
	messageRetention      int
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for retention cutoffs.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithSchedule overrides the cron specification for the retention run.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// WithNotificationRetentionDays adjusts how long read notifications are kept.
func WithNotificationRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.notificationRetention = days
		}
	}
}

// WithMessageRetentionDays adjusts how long soft-deleted messages are kept
// before the rows are removed for good.
func WithMessageRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.messageRetention = days
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(db *gorm.DB, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:                    db,
		now:                   time.Now,
		schedule:              defaultSchedule,
		notificationRetention: defaultNotificationRetentionDays,
		messageRetention:      defaultMessageRetentionDays,
		log:                   logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the retention job with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.db == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("retention run failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all retention routines sequentially. Also used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if _, err := c.purgeNotifications(ctx); err != nil {
		errs = multierr.Append(errs, err)
		monitoring.RecordMaintenanceRun("notifications", "error")
	} else {
		monitoring.RecordMaintenanceRun("notifications", "success")
	}

	if _, err := c.purgeDeletedMessages(ctx); err != nil {
		errs = multierr.Append(errs, err)
		monitoring.RecordMaintenanceRun("messages", "error")
	} else {
		monitoring.RecordMaintenanceRun("messages", "success")
	}

	return errs
}

// purgeNotifications removes read notifications past the retention window.
// Unread rows are kept regardless of age.
func (c *Cleaner) purgeNotifications(ctx context.Context) (int64, error) {
	if c.db == nil {
		return 0, errors.New("maintenance: db is required")
	}

	cutoff := c.now().AddDate(0, 0, -c.notificationRetention)
	result := c.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("maintenance: purge notifications: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		c.log.Info("purged notifications", zap.Int64("rows", result.RowsAffected))
	}
	return result.RowsAffected, nil
}

// purgeDeletedMessages hard-deletes message rows whose soft delete happened
// before the retention cutoff. Live thread history is never touched.
func (c *Cleaner) purgeDeletedMessages(ctx context.Context) (int64, error) {
	if c.db == nil {
		return 0, errors.New("maintenance: db is required")
	}

	cutoff := c.now().AddDate(0, 0, -c.messageRetention)
	result := c.db.WithContext(ctx).
		Unscoped().
		Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
		Delete(&models.ConsultationMessage{})
	if result.Error != nil {
		return 0, fmt.Errorf("maintenance: purge deleted messages: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		c.log.Info("purged soft-deleted messages", zap.Int64("rows", result.RowsAffected))
	}
	return result.RowsAffected, nil
}
