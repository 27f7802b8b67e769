package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/unclebandit/leopard-outreach/internal/model"
)

// LeadRepositoryInterface defines methods used by service
type LeadRepositoryInterface interface {
	GetByID(ctx context.Context, id int) (*model.Lead, error)
	// GetByIDs returns the tenant's leads among ids, keyed by id.
	GetByIDs(ctx context.Context, tenantID int, ids []int) (map[int]*model.Lead, error)
}

// LeadRepository is the concrete implementation
type LeadRepository struct {
	DB *sql.DB
}

const leadColumns = `id, tenant_id, name, COALESCE(industry, ''), COALESCE(location, ''), COALESCE(website, ''),
	COALESCE(phone, ''), COALESCE(email, ''), COALESCE(insight, '')`

// GetByID fetches a lead by ID
func (r *LeadRepository) GetByID(ctx context.Context, id int) (*model.Lead, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	l, err := scanLead(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // not found
		}
		return nil, err
	}
	return l, nil
}

func (r *LeadRepository) GetByIDs(ctx context.Context, tenantID int, ids []int) (map[int]*model.Lead, error) {
	leads := make(map[int]*model.Lead, len(ids))
	if len(ids) == 0 {
		return leads, nil
	}
	ids64 := make([]int64, len(ids))
	for i, id := range ids {
		ids64[i] = int64(id)
	}
	query := `SELECT ` + leadColumns + ` FROM leads WHERE tenant_id = $1 AND id = ANY($2)`
	rows, err := r.DB.QueryContext(ctx, query, tenantID, pq.Array(ids64))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads[l.ID] = l
	}
	return leads, rows.Err()
}

func scanLead(row rowScanner) (*model.Lead, error) {
	var l model.Lead
	err := row.Scan(&l.ID, &l.TenantID, &l.Name, &l.Industry, &l.Location, &l.Website, &l.Phone, &l.Email, &l.Insight)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

var _ LeadRepositoryInterface = (*LeadRepository)(nil)
