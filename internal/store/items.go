package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Definition is a purchasable item definition.
type Definition struct {
	Def       int32  `json:"def"`
	Name      string `json:"name"`
	Price     uint64 `json:"price"`
	BasePrice uint64 `json:"base_price"`
}

// Item is one owned item instance.
type Item struct {
	InstanceID uint64 `json:"instance_id"`
	Def        int32  `json:"def"`
	Quantity   uint16 `json:"quantity"`
	Flags      uint16 `json:"flags"`
	Seq        int64  `json:"seq"`
}

// UpsertDefinition inserts a definition or replaces its name and prices.
func (s *Store) UpsertDefinition(ctx context.Context, d Definition) error {
	if d.Def <= 0 {
		return fmt.Errorf("upsert definition: def must be positive, got %d", d.Def)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO item_defs (def, name, price, base_price)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(def) DO UPDATE SET
			name = excluded.name,
			price = excluded.price,
			base_price = excluded.base_price
	`, d.Def, d.Name, int64(d.Price), int64(d.BasePrice))
	if err != nil {
		return fmt.Errorf("upsert definition %d: %w", d.Def, err)
	}
	return nil
}

// GetDefinition returns the definition with the given id, or ErrNotFound.
func (s *Store) GetDefinition(ctx context.Context, def int32) (Definition, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT def, name, price, base_price FROM item_defs WHERE def = ?
	`, def)
	d, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Definition{}, fmt.Errorf("definition %d: %w", def, ErrNotFound)
	}
	if err != nil {
		return Definition{}, fmt.Errorf("get definition %d: %w", def, err)
	}
	return d, nil
}

// ListDefinitions returns all definitions ordered by def.
//
// Returns an empty slice (not nil) when the catalog is empty.
func (s *Store) ListDefinitions(ctx context.Context) ([]Definition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT def, name, price, base_price FROM item_defs ORDER BY def ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query definitions: %w", err)
	}
	defer rows.Close()

	defs := []Definition{}
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		defs = append(defs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate definitions: %w", err)
	}
	return defs, nil
}

// GrantItem creates a new item instance of def and returns it.
// The definition must exist.
func (s *Store) GrantItem(ctx context.Context, def int32, quantity, flags uint16) (Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Item{}, fmt.Errorf("grant item: begin tx: %w", err)
	}
	defer tx.Rollback()

	item, err := grantItemTx(ctx, tx, def, quantity, flags)
	if err != nil {
		return Item{}, err
	}
	if err := tx.Commit(); err != nil {
		return Item{}, fmt.Errorf("grant item: commit: %w", err)
	}
	return item, nil
}

func grantItemTx(ctx context.Context, tx *sql.Tx, def int32, quantity, flags uint16) (Item, error) {
	if quantity == 0 {
		return Item{}, fmt.Errorf("grant item: quantity must be positive")
	}

	var exists int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM item_defs WHERE def = ?`, def).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, fmt.Errorf("grant item: definition %d: %w", def, ErrNotFound)
	}
	if err != nil {
		return Item{}, fmt.Errorf("grant item: lookup definition: %w", err)
	}

	seq, err := nextCounter(ctx, tx, counterSeq)
	if err != nil {
		return Item{}, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO items (def, quantity, flags, seq) VALUES (?, ?, ?, ?)
	`, def, quantity, flags, seq)
	if err != nil {
		return Item{}, fmt.Errorf("grant item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Item{}, fmt.Errorf("grant item: last insert id: %w", err)
	}

	return Item{
		InstanceID: uint64(id),
		Def:        def,
		Quantity:   quantity,
		Flags:      flags,
		Seq:        seq,
	}, nil
}

// ListItems returns all owned items ordered by seq, then instance id.
//
// Returns an empty slice (not nil) when nothing is owned.
func (s *Store) ListItems(ctx context.Context) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instance_id, def, quantity, flags, seq
		FROM items
		ORDER BY seq ASC, instance_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// ConsumeItem removes quantity units from an item instance and returns the
// updated item. An item whose quantity reaches zero is deleted; the
// returned Item then has Quantity 0.
//
// Returns ErrNotFound for an unknown instance and ErrInsufficientQuantity
// when quantity exceeds what is owned.
func (s *Store) ConsumeItem(ctx context.Context, instanceID uint64, quantity uint32) (Item, error) {
	if quantity == 0 {
		return Item{}, fmt.Errorf("consume item: quantity must be positive")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Item{}, fmt.Errorf("consume item: begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT instance_id, def, quantity, flags, seq FROM items WHERE instance_id = ?
	`, int64(instanceID))
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, fmt.Errorf("consume item %d: %w", instanceID, ErrNotFound)
	}
	if err != nil {
		return Item{}, fmt.Errorf("consume item %d: %w", instanceID, err)
	}

	if uint32(item.Quantity) < quantity {
		return Item{}, fmt.Errorf("consume item %d: have %d, want %d: %w",
			instanceID, item.Quantity, quantity, ErrInsufficientQuantity)
	}

	remaining := item.Quantity - uint16(quantity)
	if remaining == 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM items WHERE instance_id = ?`, int64(instanceID))
	} else {
		_, err = tx.ExecContext(ctx, `UPDATE items SET quantity = ? WHERE instance_id = ?`, remaining, int64(instanceID))
	}
	if err != nil {
		return Item{}, fmt.Errorf("consume item %d: %w", instanceID, err)
	}

	if err := tx.Commit(); err != nil {
		return Item{}, fmt.Errorf("consume item: commit: %w", err)
	}

	item.Quantity = remaining
	return item, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(r rowScanner) (Definition, error) {
	var (
		d                Definition
		price, basePrice int64
	)
	if err := r.Scan(&d.Def, &d.Name, &price, &basePrice); err != nil {
		return Definition{}, err
	}
	d.Price = uint64(price)
	d.BasePrice = uint64(basePrice)
	return d, nil
}

func scanItem(r rowScanner) (Item, error) {
	var (
		it Item
		id int64
	)
	if err := r.Scan(&id, &it.Def, &it.Quantity, &it.Flags, &it.Seq); err != nil {
		return Item{}, err
	}
	it.InstanceID = uint64(id)
	return it, nil
}
