package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	appErrors "github.com/unclebandit/leopard-outreach/internal/errors"
	"github.com/unclebandit/leopard-outreach/internal/model"
)

type CampaignFilter struct {
	TenantID int
	Channel  string
	Status   string
}

type CampaignRepositoryInterface interface {
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id int) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, offset, limit int, f CampaignFilter) ([]*model.Campaign, int, error)
	UpdateStatus(ctx context.Context, id int, status model.CampaignStatus) error

	// TransitionStatus changes the status only if it currently equals from.
	// Entering running stamps running_since.
	TransitionStatus(ctx context.Context, id int, from, to model.CampaignStatus) (bool, error)

	// StartRun moves a draft campaign to running and resets its lead counters.
	StartRun(ctx context.Context, id, totalLeads int) (bool, error)

	// IncrementProcessed bumps processed_leads, never past total_leads, and
	// returns the new value.
	IncrementProcessed(ctx context.Context, id int) (int, error)

	Delete(ctx context.Context, id int) error
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, tenant_id, name, channel, status, template_content, template_subject,
	use_ai_personalization, ab_variants, total_leads, processed_leads, running_since, created_at, updated_at`

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	variants, err := json.Marshal(c.ABVariants)
	if err != nil {
		return fmt.Errorf("encode ab variants: %w", err)
	}
	query := `
        INSERT INTO campaigns (tenant_id, name, channel, status, template_content, template_subject,
            use_ai_personalization, ab_variants, total_leads, processed_leads, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, 0, $9)
        RETURNING id
    `
	return r.DB.QueryRowContext(ctx, query, c.TenantID, c.Name, c.Channel, c.Status, c.TemplateContent,
		c.TemplateSubject, c.UseAIPersonalization, variants, c.CreatedAt).Scan(&c.ID)
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, offset, limit int, f CampaignFilter) ([]*model.Campaign, int, error) {
	where, args := " WHERE 1=1", []interface{}{}
	if f.TenantID != 0 {
		args = append(args, f.TenantID)
		where += fmt.Sprintf(" AND tenant_id=$%d", len(args))
	}
	if f.Channel != "" {
		args = append(args, f.Channel)
		where += fmt.Sprintf(" AND channel=$%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(" AND status=$%d", len(args))
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := r.DB.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, total, rows.Err()
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, id int, status model.CampaignStatus) error {
	query := `
        UPDATE campaigns
        SET status=$1, updated_at=$2, running_since = CASE WHEN $1='running' THEN $2 ELSE running_since END
        WHERE id=$3
    `
	_, err := r.DB.ExecContext(ctx, query, status, time.Now(), id)
	return err
}

func (r *CampaignRepository) TransitionStatus(ctx context.Context, id int, from, to model.CampaignStatus) (bool, error) {
	query := `
        UPDATE campaigns
        SET status=$1, updated_at=$2, running_since = CASE WHEN $1='running' THEN $2 ELSE running_since END
        WHERE id=$3 AND status=$4
    `
	res, err := r.DB.ExecContext(ctx, query, to, time.Now(), id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *CampaignRepository) StartRun(ctx context.Context, id, totalLeads int) (bool, error) {
	query := `
        UPDATE campaigns
        SET status='running', total_leads=$1, processed_leads=0, running_since=$2, updated_at=$2
        WHERE id=$3 AND status='draft'
    `
	res, err := r.DB.ExecContext(ctx, query, totalLeads, time.Now(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *CampaignRepository) IncrementProcessed(ctx context.Context, id int) (int, error) {
	query := `
        UPDATE campaigns
        SET processed_leads = LEAST(processed_leads + 1, total_leads), updated_at = NOW()
        WHERE id=$1
        RETURNING processed_leads
    `
	var processed int
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&processed)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, appErrors.NewCampaignNotFound(id)
	}
	return processed, err
}

func (r *CampaignRepository) Delete(ctx context.Context, id int) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM campaigns WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.NewCampaignNotFound(id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	var variants []byte
	var subject sql.NullString
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Channel, &c.Status, &c.TemplateContent, &subject,
		&c.UseAIPersonalization, &variants, &c.TotalLeads, &c.ProcessedLeads, &c.RunningSince, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.TemplateSubject = subject.String
	if len(variants) > 0 {
		if err := json.Unmarshal(variants, &c.ABVariants); err != nil {
			return nil, fmt.Errorf("decode ab variants of campaign %d: %w", c.ID, err)
		}
	}
	return &c, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
