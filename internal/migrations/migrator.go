package migrations

import (
	"fmt"
	"time"

	"github.com/suvankar11223/chatzi-sub000/pkg/logger"
	"gorm.io/gorm"
)

// Migration is a schema change AutoMigrate cannot express, such as
// expression or partial indexes.
type Migration struct {
	ID        string
	Name      string
	Up        func(db *gorm.DB) error
	DependsOn []string
}

// MigrationRecord tracks which migrations have been applied
type MigrationRecord struct {
	ID        string    `gorm:"primaryKey;type:text"`
	Name      string    `gorm:"type:text"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

func (MigrationRecord) TableName() string {
	return "schema_migrations"
}

type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

func NewMigrator(db *gorm.DB) *Migrator {
	return &Migrator{db: db, migrations: All()}
}

// Run applies pending migrations in order, each in its own transaction.
// It returns the ids it applied.
func (m *Migrator) Run() ([]string, error) {
	if err := m.db.AutoMigrate(&MigrationRecord{}); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	var applied []MigrationRecord
	if err := m.db.Find(&applied).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch applied migrations: %w", err)
	}
	done := make(map[string]bool, len(applied))
	for _, r := range applied {
		done[r.ID] = true
	}

	var ran []string
	for _, mig := range m.migrations {
		if done[mig.ID] {
			continue
		}
		for _, dep := range mig.DependsOn {
			if !done[dep] {
				return ran, fmt.Errorf("migration %s depends on %s which is not applied", mig.ID, dep)
			}
		}

		logger.Info().Str("migration", mig.ID).Msg("Running migration")
		err := m.db.Transaction(func(tx *gorm.DB) error {
			if err := mig.Up(tx); err != nil {
				return err
			}
			return tx.Create(&MigrationRecord{ID: mig.ID, Name: mig.Name}).Error
		})
		if err != nil {
			return ran, fmt.Errorf("migration %s failed: %w", mig.ID, err)
		}
		done[mig.ID] = true
		ran = append(ran, mig.ID)
	}
	return ran, nil
}

// All returns every registered migration in order.
func All() []Migration {
	return []Migration{
		conversationActivityIndex(),
		ringingCallsIndex(),
	}
}
