package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// transIDBase offsets transaction ids away from order ids so the two are
// never confused in logs.
const transIDBase = 1_000_000

// PurchaseLine is one requested definition and quantity.
type PurchaseLine struct {
	Def      int32  `json:"def"`
	Quantity uint16 `json:"quantity"`
}

// Purchase is a completed order.
type Purchase struct {
	OrderID   uint64         `json:"order_id"`
	TransID   uint64         `json:"trans_id"`
	RequestID string         `json:"request_id"`
	Lines     []PurchaseLine `json:"lines"`
	Granted   []Item         `json:"granted,omitempty"`
	Seq       int64          `json:"seq"`
}

// WritePurchase grants one item per line and records the order, all in a
// single transaction. Any unknown definition aborts the whole purchase with
// ErrNotFound and nothing is granted.
func (s *Store) WritePurchase(ctx context.Context, requestID string, lines []PurchaseLine) (Purchase, error) {
	if len(lines) == 0 {
		return Purchase{}, fmt.Errorf("write purchase: no lines")
	}

	linesJSON, err := json.Marshal(lines)
	if err != nil {
		return Purchase{}, fmt.Errorf("write purchase: marshal lines: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Purchase{}, fmt.Errorf("write purchase: begin tx: %w", err)
	}
	defer tx.Rollback()

	granted := make([]Item, 0, len(lines))
	for _, l := range lines {
		item, err := grantItemTx(ctx, tx, l.Def, l.Quantity, 0)
		if err != nil {
			return Purchase{}, fmt.Errorf("write purchase: %w", err)
		}
		granted = append(granted, item)
	}

	trans, err := nextCounter(ctx, tx, counterTrans)
	if err != nil {
		return Purchase{}, err
	}
	seq, err := nextCounter(ctx, tx, counterSeq)
	if err != nil {
		return Purchase{}, err
	}

	transID := transIDBase + trans
	res, err := tx.ExecContext(ctx, `
		INSERT INTO purchases (trans_id, request_id, items, seq) VALUES (?, ?, ?, ?)
	`, transID, requestID, string(linesJSON), seq)
	if err != nil {
		return Purchase{}, fmt.Errorf("write purchase: %w", err)
	}
	orderID, err := res.LastInsertId()
	if err != nil {
		return Purchase{}, fmt.Errorf("write purchase: last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Purchase{}, fmt.Errorf("write purchase: commit: %w", err)
	}

	return Purchase{
		OrderID:   uint64(orderID),
		TransID:   uint64(transID),
		RequestID: requestID,
		Lines:     lines,
		Granted:   granted,
		Seq:       seq,
	}, nil
}

// ListPurchases returns all orders by seq. Granted is not populated.
//
// Returns an empty slice (not nil) when there are no orders.
func (s *Store) ListPurchases(ctx context.Context) ([]Purchase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, trans_id, request_id, items, seq
		FROM purchases
		ORDER BY seq ASC, order_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query purchases: %w", err)
	}
	defer rows.Close()

	purchases := []Purchase{}
	for rows.Next() {
		var (
			p                Purchase
			orderID, transID int64
			linesJSON        string
		)
		if err := rows.Scan(&orderID, &transID, &p.RequestID, &linesJSON, &p.Seq); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		if err := json.Unmarshal([]byte(linesJSON), &p.Lines); err != nil {
			return nil, fmt.Errorf("unmarshal purchase %d lines: %w", orderID, err)
		}
		p.OrderID = uint64(orderID)
		p.TransID = uint64(transID)
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchases: %w", err)
	}
	return purchases, nil
}
