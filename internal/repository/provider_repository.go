package repository

import (
	"context"
	"database/sql"
	"errors"

	appErrors "github.com/unclebandit/leopard-outreach/internal/errors"
	"github.com/unclebandit/leopard-outreach/internal/model"
)

type ProviderRepositoryInterface interface {
	// GetActive returns the tenant's active provider for ch, or a
	// *appErrors.ConfigurationError when there is none.
	GetActive(ctx context.Context, tenantID int, ch model.Channel) (*model.ProviderConfig, error)
}

type ProviderRepository struct {
	DB *sql.DB
}

func (r *ProviderRepository) GetActive(ctx context.Context, tenantID int, ch model.Channel) (*model.ProviderConfig, error) {
	query := `
        SELECT id, tenant_id, channel, kind, COALESCE(base_url, ''), COALESCE(instance_name, ''),
            COALESCE(api_key, ''), COALESCE(bearer_token, ''), COALESCE(from_address, ''), active
        FROM provider_configs
        WHERE tenant_id = $1 AND channel = $2 AND active
        ORDER BY id DESC
        LIMIT 1
    `
	var p model.ProviderConfig
	err := r.DB.QueryRowContext(ctx, query, tenantID, ch).Scan(&p.ID, &p.TenantID, &p.Channel, &p.Kind,
		&p.BaseURL, &p.InstanceName, &p.APIKey, &p.BearerToken, &p.FromAddress, &p.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &appErrors.ConfigurationError{TenantID: tenantID, Channel: string(ch)}
		}
		return nil, err
	}
	return &p, nil
}

var _ ProviderRepositoryInterface = (*ProviderRepository)(nil)
