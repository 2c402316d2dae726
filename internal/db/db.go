package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"subforge/internal/model"
)

const batchSize = 500

func Connect(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		// logger.Error hides "SLOW SQL" warnings on large pools
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Node{}, &model.Subscription{})
}

// UpsertNodes inserts nodes, replacing every column of rows whose id
// already exists.
func UpsertNodes(db *gorm.DB, nodes []model.Node) (int64, error) {
	if len(nodes) == 0 {
		return 0, nil
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).CreateInBatches(nodes, batchSize)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to upsert nodes: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// UpsertSubscriptions inserts subscriptions keyed by name.
func UpsertSubscriptions(db *gorm.DB, subs []model.Subscription) (int64, error) {
	if len(subs) == 0 {
		return 0, nil
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(&subs)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to upsert subscriptions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// LoadPool returns the node pool in its stable order. A non-empty sources
// list restricts the pool to those sources.
func LoadPool(db *gorm.DB, sources []string) ([]model.Node, error) {
	var nodes []model.Node
	query := db.Order("sort ASC").Order("id ASC")
	if len(sources) > 0 {
		query = query.Where("source IN ?", sources)
	}
	if err := query.Find(&nodes).Error; err != nil {
		return nil, fmt.Errorf("failed to load node pool: %w", err)
	}
	return nodes, nil
}

func LoadSubscription(db *gorm.DB, name string) (*model.Subscription, error) {
	var sub model.Subscription
	result := db.Where("name = ?", name).Limit(1).Find(&sub)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load subscription '%s': %w", name, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("subscription '%s' not found", name)
	}
	return &sub, nil
}

func ListSubscriptions(db *gorm.DB) ([]model.Subscription, error) {
	var subs []model.Subscription
	if err := db.Order("name ASC").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

// NextSort is the sort value to give the next imported node.
func NextSort(db *gorm.DB) (int, error) {
	var maxSort int
	if err := db.Model(&model.Node{}).Select("COALESCE(MAX(sort), -1)").Scan(&maxSort).Error; err != nil {
		return 0, fmt.Errorf("failed to read node order: %w", err)
	}
	return maxSort + 1, nil
}

// Bucket is one row of a grouped node count.
type Bucket struct {
	Name  string
	Total int64
}

var countable = map[string]bool{"protocol": true, "country_code": true, "source": true, "delay_status": true}

// CountNodesBy groups the pool by column, largest buckets first.
func CountNodesBy(db *gorm.DB, column string) ([]Bucket, error) {
	if !countable[column] {
		return nil, fmt.Errorf("cannot group nodes by '%s'", column)
	}
	var buckets []Bucket
	err := db.Model(&model.Node{}).
		Select(column + " AS name, COUNT(*) AS total").
		Group(column).
		Order("total DESC").Order("name ASC").
		Scan(&buckets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count nodes by %s: %w", column, err)
	}
	return buckets, nil
}

func Close(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
