package store

import (
	"fmt"
	"time"

	"binance-dca-bot/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const insertBatchSize = 100

// Store wraps the relational database with the operations the jobs need.
// All inserts are batched and transactional: a failed batch is rolled back,
// never partially committed.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New creates a Store on top of an opened gorm connection.
func New(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// InsertTrades appends trade records to Trade_History. Trades whose order is
// already stored are skipped: the sync and report jobs fetch overlapping
// windows of the exchange history, and a re-fetched trade must not be
// double-counted by the valuator.
func (s *Store) InsertTrades(trades []models.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	fresh, err := s.withoutStoredOrders(trades)
	if err != nil {
		return err
	}
	if len(fresh) == 0 {
		s.logger.Info("All trades already recorded", zap.Int("count", len(trades)))
		return nil
	}

	if err := s.db.CreateInBatches(fresh, insertBatchSize).Error; err != nil {
		return fmt.Errorf("failed to insert trades: %w", err)
	}
	s.logger.Info("Inserted trade records",
		zap.Int("count", len(fresh)),
		zap.Int("skipped", len(trades)-len(fresh)))
	return nil
}

type orderKey struct {
	orderID int64
	symbol  string
}

// withoutStoredOrders filters out trades whose (order_id, symbol) pair is
// already in Trade_History. Trades within the batch are not deduplicated
// against each other: one order can legitimately fill as several trades.
func (s *Store) withoutStoredOrders(trades []models.Trade) ([]models.Trade, error) {
	orderIDs := make([]int64, 0, len(trades))
	for _, trade := range trades {
		orderIDs = append(orderIDs, trade.OrderID)
	}

	var existing []models.Trade
	err := s.db.Select("order_id", "symbol").Where("order_id IN ?", orderIDs).Find(&existing).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check stored trades: %w", err)
	}

	stored := make(map[orderKey]bool, len(existing))
	for _, trade := range existing {
		stored[orderKey{trade.OrderID, trade.Symbol}] = true
	}

	fresh := make([]models.Trade, 0, len(trades))
	for _, trade := range trades {
		if stored[orderKey{trade.OrderID, trade.Symbol}] {
			continue
		}
		fresh = append(fresh, trade)
	}
	return fresh, nil
}

// InsertMarketSnapshots appends rows to Market_Capitalization_History.
func (s *Store) InsertMarketSnapshots(snapshots []models.MarketSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	if err := s.db.CreateInBatches(snapshots, insertBatchSize).Error; err != nil {
		return fmt.Errorf("failed to insert market snapshots: %w", err)
	}
	s.logger.Info("Inserted market snapshots", zap.Int("count", len(snapshots)))
	return nil
}

// InsertBalances appends wallet snapshots to Portfolio_Balance.
func (s *Store) InsertBalances(balances []models.Balance) error {
	if len(balances) == 0 {
		return nil
	}
	if err := s.db.CreateInBatches(balances, insertBatchSize).Error; err != nil {
		return fmt.Errorf("failed to insert balances: %w", err)
	}
	s.logger.Info("Inserted balance snapshots", zap.Int("count", len(balances)))
	return nil
}

// InsertDailyHighPrices appends rows to Daily_High_Price.
func (s *Store) InsertDailyHighPrices(prices []models.DailyHighPrice) error {
	if len(prices) == 0 {
		return nil
	}
	if err := s.db.CreateInBatches(prices, insertBatchSize).Error; err != nil {
		return fmt.Errorf("failed to insert daily high prices: %w", err)
	}
	s.logger.Info("Inserted daily high prices", zap.Int("count", len(prices)))
	return nil
}

// Trades returns the complete trade history ordered by execution time.
func (s *Store) Trades() ([]models.Trade, error) {
	var trades []models.Trade
	if err := s.db.Order("timestamp asc").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to load trades: %w", err)
	}
	return trades, nil
}

// LatestDailyHigh returns the most recent stored high price for an asset,
// or nil when the asset has no row yet.
func (s *Store) LatestDailyHigh(asset string) (*models.DailyHighPrice, error) {
	var high models.DailyHighPrice
	err := s.db.Where("asset = ?", asset).Order("timestamp desc").First(&high).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load daily high for %s: %w", asset, err)
	}
	return &high, nil
}

// DeleteTradesBefore removes trade records older than the given cutoff.
// Used by the sync job to prune history older than one year.
func (s *Store) DeleteTradesBefore(cutoff time.Time) error {
	res := s.db.Where("timestamp < ?", cutoff).Delete(&models.Trade{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete old trades: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.logger.Info("Pruned old trade records",
			zap.Int64("count", res.RowsAffected),
			zap.Time("cutoff", cutoff))
	}
	return nil
}
