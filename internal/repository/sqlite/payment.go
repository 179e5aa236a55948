package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/cliptray/cliptrayd/internal/model"
	"github.com/cliptray/cliptrayd/internal/repository"
)

var _ repository.PaymentRepository = (*PaymentRepo)(nil)

// PaymentRepo caches billing events fetched from the payment authority.
type PaymentRepo struct {
	db *DB
}

func NewPaymentRepo(db *DB) *PaymentRepo {
	return &PaymentRepo{db: db}
}

func (r *PaymentRepo) Record(ctx context.Context, payment *model.Payment) error {
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.conn.ExecContext(ctx,
		`INSERT INTO payments (firebase_uid, amount, currency, status, reference, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		payment.FirebaseUID, payment.Amount, payment.Currency,
		string(payment.Status), payment.Reference, payment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: recording payment: %w", err)
	}
	payment.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading payment id: %w", err)
	}
	return nil
}

// HasActivePlan reports whether at least one settled payment exists for the
// Firebase identity. One paid row is enough to unlock the Pro tier.
func (r *PaymentRepo) HasActivePlan(ctx context.Context, firebaseUID string) (bool, error) {
	var count int64
	err := r.db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payments WHERE firebase_uid = ? AND status = ?`,
		firebaseUID, string(model.PaymentPaid),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking active plan: %w", err)
	}
	return count > 0, nil
}

func (r *PaymentRepo) ListByUser(ctx context.Context, firebaseUID string) ([]model.Payment, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT id, firebase_uid, amount, currency, status, reference, created_at
		 FROM payments WHERE firebase_uid = ?
		 ORDER BY created_at DESC`,
		firebaseUID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing payments: %w", err)
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(
			&p.ID, &p.FirebaseUID, &p.Amount, &p.Currency,
			&p.Status, &p.Reference, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating payments: %w", err)
	}
	return payments, nil
}
