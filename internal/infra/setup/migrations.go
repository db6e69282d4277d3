package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/lachelier/sugoroku/internal/domain"
)

// MigrateDB 迁移全部表结构并写入默认棋盘
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	err := db.AutoMigrate(
		&domain.Board{},
		&domain.Space{},
		&domain.Room{},
		&domain.RoomSpace{},
		&domain.RoomMember{},
		&domain.ActionLogEntry{},
	)
	if err != nil {
		logrus.Errorf("Failed to auto-migrate tables: %v", err)
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}

	if err := SeedDefaultBoard(db); err != nil {
		return err
	}
	logrus.Info("Database migration completed successfully")
	return nil
}

// SeedDefaultBoard 默认棋盘不存在时写入，已存在时不做修改。
func SeedDefaultBoard(db *gorm.DB) error {
	board, spaces := domain.DefaultBoard()
	return db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Board{}).Where("id = ?", board.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check default board: %w", err)
		}
		if count > 0 {
			return nil
		}
		if err := tx.Create(&board).Error; err != nil {
			return fmt.Errorf("failed to seed default board: %w", err)
		}
		if len(spaces) > 0 {
			if err := tx.Create(&spaces).Error; err != nil {
				return fmt.Errorf("failed to seed default board spaces: %w", err)
			}
		}
		logrus.WithField("board_id", board.ID).Info("Default board seeded")
		return nil
	})
}
