package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/techblog/techblog/models"
)

// DatabaseSessionStore keeps sessions in the sessions table. Expired rows are
// invisible to lookups and removed by DeleteExpired.
type DatabaseSessionStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDatabaseSessionStore creates a store over db; the Session model must be migrated.
func NewDatabaseSessionStore(db *gorm.DB) *DatabaseSessionStore {
	return &DatabaseSessionStore{db: db, now: time.Now}
}

func (d *DatabaseSessionStore) Save(ctx context.Context, sessionID string, userID uint, ttl time.Duration) error {
	row := models.Session{ID: sessionKey(sessionID), UserID: userID, ExpiresAt: d.now().Add(ttl)}
	if err := d.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("db session save: %w", err)
	}
	return nil
}

func (d *DatabaseSessionStore) Lookup(ctx context.Context, sessionID string) (uint, error) {
	var row models.Session
	err := d.db.WithContext(ctx).
		Where("id = ? AND expires_at > ?", sessionKey(sessionID), d.now()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrSessionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("db session lookup: %w", err)
	}
	return row.UserID, nil
}

func (d *DatabaseSessionStore) Touch(ctx context.Context, sessionID string, ttl time.Duration) error {
	now := d.now()
	res := d.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ? AND expires_at > ?", sessionKey(sessionID), now).
		Update("expires_at", now.Add(ttl))
	if res.Error != nil {
		return fmt.Errorf("db session touch: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (d *DatabaseSessionStore) Destroy(ctx context.Context, sessionID string) error {
	if err := d.db.WithContext(ctx).Where("id = ?", sessionKey(sessionID)).Delete(&models.Session{}).Error; err != nil {
		return fmt.Errorf("db session destroy: %w", err)
	}
	return nil
}

// DeleteExpired removes expired rows and returns how many were deleted.
func (d *DatabaseSessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	res := d.db.WithContext(ctx).Where("expires_at <= ?", d.now()).Delete(&models.Session{})
	return res.RowsAffected, res.Error
}

// StartSessionCleaner periodically sweeps expired sessions until ctx is cancelled.
// It is best-effort and logs failures.
func StartSessionCleaner(ctx context.Context, store *DatabaseSessionStore, interval time.Duration, log *zap.Logger) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := store.DeleteExpired(ctx)
				if err != nil {
					log.Warn("session cleaner failed", zap.Error(err))
					continue
				}
				if n > 0 {
					log.Debug("expired sessions removed", zap.Int64("count", n))
				}
			}
		}
	}()
}
