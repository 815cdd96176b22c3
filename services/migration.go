package services

import (
	"context"
	"fmt"

	"backend/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// MigrationService folds the legacy consumption stores into the canonical
// ledger. Dedupe runs on natural keys, so the whole thing is idempotent:
// a crash mid-way or a second invocation never duplicates rows.
type MigrationService struct {
	db *gorm.DB
}

func NewMigrationService(db *gorm.DB) *MigrationService {
	return &MigrationService{db: db}
}

// MigrateOnce scans both legacy stores and appends every event the ledger
// does not already hold. Safe to call repeatedly and safe to run while live
// traffic appends new entries: new entries cannot collide with legacy
// natural keys, and a coincidental collision just skips a duplicate write,
// which is what we want anyway.
//
// A single malformed record is logged and skipped; only an unreachable
// store fails the run.
func (s *MigrationService) MigrateOnce(ctx context.Context) (int, error) {
	seen, err := s.existingKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("migration: loading ledger keys: %w", err)
	}

	migrated := 0

	var analyses []models.LegacyAiAnalysis
	if err := s.db.WithContext(ctx).Find(&analyses).Error; err != nil {
		return migrated, fmt.Errorf("migration: reading ai analysis store: %w", err)
	}
	for _, a := range analyses {
		entry, err := a.ToLedgerEntry()
		if err != nil {
			log.Error().Err(err).Uint("legacy_id", a.ID).Msg("skipping unmappable ai analysis record")
			continue
		}
		if s.insertIfNew(ctx, entry, seen) {
			migrated++
		}
	}

	var meals []models.LegacyManualMeal
	if err := s.db.WithContext(ctx).Find(&meals).Error; err != nil {
		return migrated, fmt.Errorf("migration: reading manual meal store: %w", err)
	}
	for _, m := range meals {
		entry, err := m.ToLedgerEntry()
		if err != nil {
			log.Error().Err(err).Uint("legacy_id", m.ID).Msg("skipping unmappable manual meal record")
			continue
		}
		if s.insertIfNew(ctx, entry, seen) {
			migrated++
		}
	}

	log.Info().Int("migrated", migrated).Msg("legacy migration pass complete")
	return migrated, nil
}

// existingKeys snapshots the natural keys already in the ledger. Reading a
// snapshot instead of point lookups keeps the migrator from holding any lock
// that live Append traffic would contend on. Soft-deleted entries count too:
// an event the user explicitly removed must not resurface on the next run.
func (s *MigrationService) existingKeys(ctx context.Context) (map[models.NaturalKey]struct{}, error) {
	var entries []models.LedgerEntry
	if err := s.db.WithContext(ctx).Unscoped().Find(&entries).Error; err != nil {
		return nil, err
	}
	seen := make(map[models.NaturalKey]struct{}, len(entries))
	for _, e := range entries {
		seen[e.NaturalKey()] = struct{}{}
	}
	return seen, nil
}

// insertIfNew appends the mapped entry unless its natural key is already
// present. Insert failures are logged and skipped, row by row.
func (s *MigrationService) insertIfNew(ctx context.Context, entry models.LedgerEntry, seen map[models.NaturalKey]struct{}) bool {
	key := entry.NaturalKey()
	if _, dup := seen[key]; dup {
		return false
	}
	entry.RecordID = uuid.NewString()
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		log.Error().Err(err).
			Uint("user_id", entry.UserID).
			Str("food", entry.FoodDescription).
			Time("occurred_at", entry.OccurredAt).
			Msg("failed to append migrated entry")
		return false
	}
	seen[key] = struct{}{}
	return true
}
