package allowlist

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// WhitelistRow is the persistent allow-list schema, one row per allowed
// user/channel/role snowflake per guild.
type WhitelistRow struct {
	ID        uint   `gorm:"primarykey"`
	Guild     string `gorm:"index;not null"`
	Type      string `gorm:"not null"`
	Snowflake string `gorm:"not null"`
}

func (WhitelistRow) TableName() string {
	return "whitelists"
}

type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&WhitelistRow{}); err != nil {
		return nil, fmt.Errorf("migrating allow-list schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) ListEntries(ctx context.Context, guildID string) ([]Entry, error) {
	var rows []WhitelistRow
	if err := s.db.WithContext(ctx).Where("guild = ?", guildID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing allow-list entries: %w", err)
	}
	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, Entry{Type: r.Type, Snowflake: r.Snowflake})
	}
	return entries, nil
}

// Toggle flips the allow-list status of a snowflake and reports whether it
// is now present. Used by the administrative surface; the engine only reads.
func (s *GormStore) Toggle(ctx context.Context, guildID, typ, snowflake string) (bool, error) {
	var row WhitelistRow
	err := s.db.WithContext(ctx).
		Where("guild = ? AND type = ? AND snowflake = ?", guildID, typ, snowflake).
		First(&row).Error
	switch {
	case err == nil:
		if err := s.db.WithContext(ctx).Delete(&row).Error; err != nil {
			return true, fmt.Errorf("removing allow-list entry: %w", err)
		}
		return false, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = WhitelistRow{Guild: guildID, Type: typ, Snowflake: snowflake}
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return false, fmt.Errorf("adding allow-list entry: %w", err)
		}
		return true, nil
	default:
		return false, fmt.Errorf("reading allow-list entry: %w", err)
	}
}
