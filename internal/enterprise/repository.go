package enterprise

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles database operations for enterprises and verifications
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new enterprise repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ResolveEnterprises returns the union of enterprises matching the email's
// domain and enterprises holding a direct invite for the address.
func (r *Repository) ResolveEnterprises(ctx context.Context, email, domain string) ([]int64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM enterprise WHERE email_domain = $1
		UNION
		SELECT enterprise_id FROM enterprise_invite WHERE email = $2
	`, domain, email)
	if err != nil {
		return nil, fmt.Errorf("resolve enterprises: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GroupEnterprise returns the owning enterprise of a carpool group,
// pgx.ErrNoRows when the group does not exist.
func (r *Repository) GroupEnterprise(ctx context.Context, groupID int64) (int64, error) {
	var enterpriseID int64
	err := r.db.QueryRow(ctx, `
		SELECT enterprise_id FROM duo_group WHERE id = $1
	`, groupID).Scan(&enterpriseID)
	return enterpriseID, err
}

// VerifiedByOtherUser reports whether the email is already verified by a
// different user.
func (r *Repository) VerifiedByOtherUser(ctx context.Context, email string, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM enterprise_verification
			WHERE email = $1 AND verification_status = $2 AND user_id <> $3
		)
	`, email, StatusSuccess, userID).Scan(&exists)
	return exists, err
}

// IsBlocked reports whether the email is blocklisted for any of the
// enterprises.
func (r *Repository) IsBlocked(ctx context.Context, email string, enterpriseIDs []int64) (bool, error) {
	if len(enterpriseIDs) == 0 {
		return false, nil
	}
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM enterprise_block
			WHERE email = $1 AND enterprise_id = ANY($2) AND is_blocked = TRUE
		)
	`, email, enterpriseIDs).Scan(&exists)
	return exists, err
}

// IsVerified reports whether the user already verified this email for the
// enterprise.
func (r *Repository) IsVerified(ctx context.Context, email string, userID, enterpriseID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM enterprise_verification
			WHERE email = $1 AND user_id = $2 AND enterprise_id = $3 AND verification_status = $4
		)
	`, email, userID, enterpriseID, StatusSuccess).Scan(&exists)
	return exists, err
}

// UpsertPending creates or refreshes the pending verification row for the
// user, email, and enterprise, replacing any previous token.
func (r *Repository) UpsertPending(ctx context.Context, v *Verification) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO enterprise_verification
			(email, user_id, enterprise_id, group_id, verification_token, verification_status, expires_on, created_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (email, user_id, enterprise_id) DO UPDATE SET
			group_id = EXCLUDED.group_id,
			verification_token = EXCLUDED.verification_token,
			verification_status = EXCLUDED.verification_status,
			expires_on = EXCLUDED.expires_on
	`, v.Email, v.UserID, v.EnterpriseID, v.GroupID, v.Token, StatusPending, v.ExpiresOn)
	if err != nil {
		return fmt.Errorf("upsert verification: %w", err)
	}
	return nil
}

// FindPendingByToken loads a pending, unexpired verification by token, nil
// when absent.
func (r *Repository) FindPendingByToken(ctx context.Context, token string) (*Verification, error) {
	v := &Verification{}
	err := r.db.QueryRow(ctx, `
		SELECT id, email, user_id, enterprise_id, group_id, verification_status, expires_on
		FROM enterprise_verification
		WHERE verification_token = $1 AND verification_status = $2 AND expires_on > NOW()
	`, token, StatusPending).Scan(
		&v.ID, &v.Email, &v.UserID, &v.EnterpriseID, &v.GroupID, &v.Status, &v.ExpiresOn,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// MarkVerified flips the row to success and clears the token.
func (r *Repository) MarkVerified(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE enterprise_verification
		SET verification_status = $1, verification_token = NULL, verified_on = NOW()
		WHERE id = $2
	`, StatusSuccess, id)
	return err
}

// JoinGroup adds the user to the carpool group in accepted state. Joining
// twice is a no-op.
func (r *Repository) JoinGroup(ctx context.Context, groupID, userID int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO duo_group_member (group_id, user_id, status, created_on)
		VALUES ($1, $2, 'accepted', NOW())
		ON CONFLICT (group_id, user_id) DO NOTHING
	`, groupID, userID)
	if err != nil {
		return fmt.Errorf("join group: %w", err)
	}
	return nil
}
