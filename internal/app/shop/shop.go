// Package shop lets users spend reward balance on listed items.
package shop

import (
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/ecoboard/ecoboard/internal/app/reward"
	"github.com/ecoboard/ecoboard/internal/domain"
	"github.com/ecoboard/ecoboard/internal/infra/sqlite"
)

// Service sells items against the reward ledger.
type Service struct {
	db     *sqlite.DB
	ledger *reward.Ledger
}

// NewService creates a shop service.
func NewService(db *sqlite.DB, ledger *reward.Ledger) *Service {
	return &Service{db: db, ledger: ledger}
}

// CreateItem lists a new item and returns its id.
func (s *Service) CreateItem(it domain.Item) (int64, error) {
	if it.CreatedBy == "" {
		it.CreatedBy = domain.DefaultIdentity
	}
	return s.db.InsertItem(it)
}

// Item returns one item by id.
func (s *Service) Item(id int64) (domain.Item, error) {
	return s.db.GetItem(id)
}

// List returns in-stock items, cheapest first.
func (s *Service) List(limit int) ([]domain.Item, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.db.ListItems(limit)
}

// Purchase buys one unit of itemID for userID: a stock unit is claimed
// atomically, the price is written off the buyer's account with the buyer
// as initiator, and a receipt is recorded. If the debit fails the claimed
// unit is restored.
func (s *Service) Purchase(itemID int64, userID string) (string, error) {
	item, err := s.db.GetItem(itemID)
	if err != nil {
		return "", fmt.Errorf("purchase item %d: %w", itemID, err)
	}

	if err := s.db.ClaimStockUnit(itemID); err != nil {
		return "", fmt.Errorf("purchase item %d: %w", itemID, err)
	}

	if err := s.ledger.WriteOff(userID, item.Price, userID); err != nil {
		if rerr := s.db.RestoreStockUnit(itemID); rerr != nil {
			log.Printf("[shop] restore stock failed item=%d: %v", itemID, rerr)
		}
		return "", fmt.Errorf("purchase item %d: %w", itemID, err)
	}

	receipt := uuid.NewString()
	if err := s.db.InsertPurchase(receipt, itemID, userID, item.Price); err != nil {
		return "", fmt.Errorf("record purchase of item %d: %w", itemID, err)
	}

	log.Printf("[shop] purchased item=%d user=%s price=%d receipt=%s", itemID, userID, item.Price, receipt)
	return receipt, nil
}
