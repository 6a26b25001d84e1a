// Shop catalog operations.
package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/ecoboard/ecoboard/internal/domain"
)

// InsertItem persists a new shop item and returns its id.
func (db *DB) InsertItem(it domain.Item) (int64, error) {
	res, err := db.db.Exec(`
		INSERT INTO item (title, description, price, stock, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, it.Title, it.Description, it.Price, it.Stock, it.CreatedBy, encodeTime(time.Now()))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetItem retrieves an item by id, or domain.ErrItemNotFound.
func (db *DB) GetItem(id int64) (domain.Item, error) {
	var it domain.Item
	var created string
	err := db.db.QueryRow(`
		SELECT id, title, description, price, stock, created_by, created_at FROM item WHERE id = ?
	`, id).Scan(&it.ID, &it.Title, &it.Description, &it.Price, &it.Stock, &it.CreatedBy, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Item{}, domain.ErrItemNotFound
	}
	if err != nil {
		return domain.Item{}, err
	}
	it.CreatedAt = decodeTime(created)
	return it, nil
}

// ListItems returns in-stock items, cheapest first.
func (db *DB) ListItems(limit int) ([]domain.Item, error) {
	rows, err := db.db.Query(`
		SELECT id, title, description, price, stock, created_by, created_at
		FROM item WHERE stock > 0 ORDER BY price, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var it domain.Item
		var created string
		if err := rows.Scan(&it.ID, &it.Title, &it.Description, &it.Price, &it.Stock, &it.CreatedBy, &created); err != nil {
			return nil, err
		}
		it.CreatedAt = decodeTime(created)
		items = append(items, it)
	}
	return items, rows.Err()
}

// ClaimStockUnit atomically reserves one unit of stock. Fails with
// domain.ErrOutOfStock when none is left; the conditional update is what
// serializes concurrent purchases of the last unit.
func (db *DB) ClaimStockUnit(itemID int64) error {
	res, err := db.db.Exec(`
		UPDATE item SET stock = stock - 1 WHERE id = ? AND stock > 0
	`, itemID)
	if err != nil {
		return err
	}
	return requireRow(res, domain.ErrOutOfStock)
}

// RestoreStockUnit returns a reserved unit, used when the debit for a
// purchase fails after the unit was claimed.
func (db *DB) RestoreStockUnit(itemID int64) error {
	_, err := db.db.Exec(`UPDATE item SET stock = stock + 1 WHERE id = ?`, itemID)
	return err
}

// InsertPurchase records a purchase receipt.
func (db *DB) InsertPurchase(id string, itemID int64, userID string, price int64) error {
	_, err := db.db.Exec(`
		INSERT INTO purchase (id, item_id, user_id, price, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, itemID, userID, price, encodeTime(time.Now()))
	return err
}
