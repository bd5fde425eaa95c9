package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"gurukul.org/internal/ids"
)

var _ PrincipalStore = (*PGStore)(nil)

// PGStore implements PrincipalStore using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const principalColumns = `id, kind, identity, password_hash, approval_status, refresh_token, reset_token_hash, reset_token_expires_at, created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, p *Principal) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	if p.ApprovalStatus == "" && p.Kind != KindAdmin {
		p.ApprovalStatus = ApprovalPending
	}
	// Admins carry no approval state; their column stays null.
	var status any
	if p.ApprovalStatus != "" {
		status = string(p.ApprovalStatus)
	}
	_, err := s.db.ExecContext(ctx,
		`insert into principals(id, kind, identity, password_hash, approval_status) values($1,$2,$3,$4,$5)`,
		p.ID, p.Kind, p.Identity, p.PasswordHash, status,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *PGStore) Find(ctx context.Context, id string) (*Principal, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+principalColumns+` from principals where id=$1`, id)
	return scanPrincipal(row)
}

func (s *PGStore) FindByIdentity(ctx context.Context, kind Kind, identity string) (*Principal, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+principalColumns+` from principals where kind=$1 and identity=$2`,
		kind, NormalizeIdentity(identity))
	return scanPrincipal(row)
}

func (s *PGStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return s.exec(ctx,
		`update principals set password_hash=$2, refresh_token='', updated_at=now() where id=$1`,
		ErrNotFound, id, passwordHash)
}

func (s *PGStore) SetRefreshToken(ctx context.Context, id, token string) error {
	return s.exec(ctx,
		`update principals set refresh_token=$2, updated_at=now() where id=$1`,
		ErrNotFound, id, token)
}

func (s *PGStore) RotateRefreshToken(ctx context.Context, id, current, next string) error {
	return s.exec(ctx,
		`update principals set refresh_token=$3, updated_at=now() where id=$1 and refresh_token=$2 and refresh_token <> ''`,
		ErrTokenInvalid, id, current, next)
}

func (s *PGStore) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	return s.exec(ctx,
		`update principals set reset_token_hash=$2, reset_token_expires_at=$3, updated_at=now() where id=$1`,
		ErrNotFound, id, tokenHash, expiresAt)
}

func (s *PGStore) ConsumeResetToken(ctx context.Context, id, tokenHash string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update principals set reset_token_hash=null, reset_token_expires_at=null, updated_at=now()
		 where id=$1 and reset_token_hash=$2 and reset_token_expires_at > $3`,
		id, tokenHash, now)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	// The conditional update lost. Classify after the fact: the read is
	// advisory only, the atomic step above already decided the outcome.
	row := s.db.QueryRowContext(ctx,
		`select reset_token_hash, reset_token_expires_at from principals where id=$1`, id)
	var (
		storedHash sql.NullString
		expiry     sql.NullTime
	)
	if err := row.Scan(&storedHash, &expiry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrResetTokenNotFound
		}
		return err
	}
	if storedHash.Valid && storedHash.String == tokenHash && expiry.Valid && !expiry.Time.After(now) {
		return ErrResetTokenExpired
	}
	return ErrResetTokenNotFound
}

func (s *PGStore) SetApprovalStatus(ctx context.Context, id string, status ApprovalStatus) error {
	return s.exec(ctx,
		`update principals set approval_status=$2, updated_at=now() where id=$1`,
		ErrNotFound, id, string(status))
}

func (s *PGStore) TransitionApproval(ctx context.Context, id string, from, to ApprovalStatus) error {
	return s.exec(ctx,
		`update principals set approval_status=$3, updated_at=now() where id=$1 and approval_status=$2`,
		ErrResubmitNotAllowed, id, string(from), string(to))
}

// exec runs a conditional update and maps a zero-row result to miss.
func (s *PGStore) exec(ctx context.Context, query string, miss error, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return miss
	}
	return nil
}

func scanPrincipal(row *sql.Row) (*Principal, error) {
	var (
		p          Principal
		status     sql.NullString
		resetHash  sql.NullString
		resetUntil sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Kind, &p.Identity, &p.PasswordHash, &status,
		&p.RefreshToken, &resetHash, &resetUntil, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if status.Valid {
		p.ApprovalStatus = ApprovalStatus(status.String)
	}
	if resetHash.Valid {
		p.ResetTokenHash = resetHash.String
	}
	if resetUntil.Valid {
		t := resetUntil.Time
		p.ResetTokenExpiresAt = &t
	}
	return &p, nil
}
