package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	applog "linkfolio/internal/log"
	"linkfolio/models"
)

// Store persists scs sessions in the sessions table.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore returns a Store backed by db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Find(token string) ([]byte, bool, error) {
	return s.FindCtx(context.Background(), token)
}

func (s *Store) Commit(token string, b []byte, expiry time.Time) error {
	return s.CommitCtx(context.Background(), token, b, expiry)
}

func (s *Store) Delete(token string) error {
	return s.DeleteCtx(context.Background(), token)
}

func (s *Store) All() (map[string][]byte, error) {
	return s.AllCtx(context.Background())
}

// FindCtx returns the payload for an unexpired token.
func (s *Store) FindCtx(ctx context.Context, token string) ([]byte, bool, error) {
	var row models.Session
	err := s.db.WithContext(ctx).
		Where("token = ? AND expiry > ?", token, s.now()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find session: %w", err)
	}
	return []byte(row.Data), true, nil
}

// CommitCtx inserts or replaces the payload for token.
func (s *Store) CommitCtx(ctx context.Context, token string, b []byte, expiry time.Time) error {
	row := models.Session{Token: token, Data: string(b), Expiry: expiry.UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "expiry"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

func (s *Store) DeleteCtx(ctx context.Context, token string) error {
	if err := s.db.WithContext(ctx).Where("token = ?", token).Delete(&models.Session{}).Error; err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// AllCtx returns every unexpired session keyed by token.
func (s *Store) AllCtx(ctx context.Context) (map[string][]byte, error) {
	var rows []models.Session
	if err := s.db.WithContext(ctx).Where("expiry > ?", s.now()).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make(map[string][]byte, len(rows))
	for _, row := range rows {
		out[row.Token] = []byte(row.Data)
	}
	return out, nil
}

// DeleteExpired removes expired sessions and reports how many were removed.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expiry <= ?", s.now()).Delete(&models.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// StartCleanup prunes expired sessions every interval until ctx is done.
func (s *Store) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.DeleteExpired(ctx)
				if err != nil {
					applog.Warn(ctx, "session cleanup failed", "error", err)
					continue
				}
				if removed > 0 {
					applog.Debug(ctx, "expired sessions removed", "count", removed)
				}
			}
		}
	}()
}

// RevokeUsers deletes every session whose effective user is one of userIDs.
// It matches on the JSON payload written by JSONCodec.
func RevokeUsers(tx *gorm.DB, userIDs []string) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	query := tx.Model(&models.Session{})
	for i, id := range userIDs {
		pattern := fmt.Sprintf("%%%q:%q%%", UserIDKey, id)
		if i == 0 {
			query = query.Where("data LIKE ?", pattern)
		} else {
			query = query.Or("data LIKE ?", pattern)
		}
	}
	res := query.Delete(&models.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("revoke sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}
