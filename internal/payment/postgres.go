package payment

import (
	"context"
	"database/sql"
	"errors"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL. The insert relies on the
// unique index over (gateway_order_id, gateway_payment_id) so the
// existence check and the write are one atomic statement.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) InsertIfAbsent(ctx context.Context, p *Payment) error {
	res, err := s.db.ExecContext(ctx,
		`insert into payments(id, gateway_order_id, gateway_payment_id, signature, course_id, student_id, created_at)
		 values($1,$2,$3,$4,$5,$6,$7)
		 on conflict (gateway_order_id, gateway_payment_id) do nothing`,
		p.ID, p.GatewayOrderID, p.GatewayPaymentID, p.Signature, p.CourseID, p.StudentID, p.CreatedAt,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrDuplicatePayment
	}
	return nil
}

func (s *PGStore) FindByGatewayIDs(ctx context.Context, orderID, paymentID string) (*Payment, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, gateway_order_id, gateway_payment_id, signature, course_id, student_id, created_at
		 from payments where gateway_order_id=$1 and gateway_payment_id=$2`,
		orderID, paymentID)
	var p Payment
	err := row.Scan(&p.ID, &p.GatewayOrderID, &p.GatewayPaymentID, &p.Signature, &p.CourseID, &p.StudentID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
