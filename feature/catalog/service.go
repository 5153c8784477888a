package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"asset-bank/core/database"
	"asset-bank/core/filebank"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const batchSize = 500

// ErrSchemaMismatch is returned by Verify when the table lacks columns.
var ErrSchemaMismatch = errors.New("catalog table schema mismatch")

// Service writes and reads the mirror table.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new catalog service.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, logger: logger, now: time.Now}
}

// Migrate creates or updates the mirror table.
func (s *Service) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Entry{}); err != nil {
		return fmt.Errorf("migrate %s: %w", TableName, err)
	}
	return nil
}

// Verify checks that the existing table has every column the mirror writes.
func (s *Service) Verify(ctx context.Context) error {
	missing, err := database.MissingColumns(s.db.WithContext(ctx), TableName, Columns)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrSchemaMismatch, strings.Join(missing, ", "))
	}
	return nil
}

// Synced implements project.SyncObserver.
func (s *Service) Synced(ctx context.Context, tracked []filebank.Tracked, stats filebank.SyncStats) error {
	now := s.now().UTC()
	rows := make([]Entry, 0, len(tracked))
	live := make(map[string]struct{}, len(tracked))
	for _, t := range tracked {
		guid := t.Guid.String()
		live[guid] = struct{}{}
		rows = append(rows, Entry{
			Guid:      guid,
			Kind:      t.Kind.String(),
			Name:      t.Name,
			Path:      t.Path,
			Loaded:    t.Loaded,
			UpdatedAt: now,
		})
	}

	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(rows) > 0 {
			upsert := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "guid"}},
				DoUpdates: clause.AssignmentColumns([]string{"kind", "name", "path", "loaded", "updated_at"}),
			})
			if err := upsert.CreateInBatches(rows, batchSize).Error; err != nil {
				return fmt.Errorf("upsert entries: %w", err)
			}
		}

		var existing []string
		if err := tx.Model(&Entry{}).Pluck("guid", &existing).Error; err != nil {
			return fmt.Errorf("read mirrored identities: %w", err)
		}
		var stale []string
		for _, guid := range existing {
			if _, ok := live[guid]; !ok {
				stale = append(stale, guid)
			}
		}
		for start := 0; start < len(stale); start += batchSize {
			end := min(start+batchSize, len(stale))
			res := tx.Where("guid IN ?", stale[start:end]).Delete(&Entry{})
			if res.Error != nil {
				return fmt.Errorf("delete stale entries: %w", res.Error)
			}
			deleted += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("Catalog mirrored",
		zap.Bool("full", stats.Full),
		zap.Int("entries", len(rows)),
		zap.Int64("deleted", deleted))
	return nil
}

// List returns mirrored entries of kind (all kinds when empty) whose name
// starts with prefix, ordered by kind then name.
func (s *Service) List(ctx context.Context, kind, prefix string) ([]Entry, error) {
	q := s.db.WithContext(ctx).Model(&Entry{})
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if prefix != "" {
		q = q.Where("name LIKE ? ESCAPE '!'", escapeLike(prefix)+"%")
	}

	var entries []Entry
	if err := q.Order("kind, name").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	return entries, nil
}

// Find returns the mirrored entry with the given identity.
func (s *Service) Find(ctx context.Context, guid string) (*Entry, error) {
	var e Entry
	if err := s.db.WithContext(ctx).Where("guid = ?", guid).Take(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
