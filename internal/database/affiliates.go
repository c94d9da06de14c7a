package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"villa/internal/apperr"
	"villa/internal/models"
)

const affiliateColumns = `id, affiliate_code, coupon_code, name, email, bank_name, bank_branch,
        account_type, account_number, account_holder, created_at`

func scanAffiliate(row rowScanner) (*models.Affiliate, error) {
	var a models.Affiliate
	err := row.Scan(&a.ID, &a.AffiliateCode, &a.CouponCode, &a.Name, &a.Email, &a.BankName, &a.BankBranch,
		&a.AccountType, &a.AccountNumber, &a.AccountHolder, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (db *DB) CreateAffiliate(ctx context.Context, a *models.Affiliate) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	result, err := db.ExecContext(ctx, `
        INSERT INTO affiliates (affiliate_code, coupon_code, name, email, bank_name, bank_branch,
            account_type, account_number, account_holder, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.AffiliateCode, a.CouponCode, a.Name, a.Email, a.BankName, a.BankBranch,
		a.AccountType, a.AccountNumber, a.AccountHolder, a.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperr.ErrAffiliateExists
		}
		return fmt.Errorf("failed to create affiliate: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	a.ID = id
	return nil
}

func (db *DB) GetAffiliateByCode(ctx context.Context, code string) (*models.Affiliate, error) {
	return db.getAffiliate(ctx, `affiliate_code = ?`, code)
}

func (db *DB) GetAffiliateByCoupon(ctx context.Context, coupon string) (*models.Affiliate, error) {
	return db.getAffiliate(ctx, `coupon_code = ?`, coupon)
}

func (db *DB) getAffiliate(ctx context.Context, where string, arg string) (*models.Affiliate, error) {
	row := db.QueryRowContext(ctx, `SELECT `+affiliateColumns+` FROM affiliates WHERE `+where, arg)
	a, err := scanAffiliate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrAffiliateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get affiliate: %w", err)
	}
	return a, nil
}

func (db *DB) ListAffiliates(ctx context.Context) ([]models.Affiliate, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+affiliateColumns+` FROM affiliates ORDER BY affiliate_code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list affiliates: %w", err)
	}
	defer rows.Close()

	var out []models.Affiliate
	for rows.Next() {
		a, err := scanAffiliate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan affiliate: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (db *DB) CreatePayout(ctx context.Context, p *models.AffiliatePayout) error {
	if p.PaidAt.IsZero() {
		p.PaidAt = time.Now()
	}
	result, err := db.ExecContext(ctx, `
        INSERT INTO affiliate_payouts (affiliate_id, amount, period, paid_at) VALUES (?, ?, ?, ?)`,
		p.AffiliateID, p.Amount, p.Period, p.PaidAt)
	if err != nil {
		return fmt.Errorf("failed to create payout: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	p.ID = id
	return nil
}

func (db *DB) ListPayouts(ctx context.Context, affiliateID int64) ([]models.AffiliatePayout, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT id, affiliate_id, amount, period, paid_at
        FROM affiliate_payouts WHERE affiliate_id = ? ORDER BY paid_at`, affiliateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}
	defer rows.Close()

	var out []models.AffiliatePayout
	for rows.Next() {
		var p models.AffiliatePayout
		if err := rows.Scan(&p.ID, &p.AffiliateID, &p.Amount, &p.Period, &p.PaidAt); err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
