package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	appErrors "github.com/unclebandit/leopard-outreach/internal/errors"
	"github.com/unclebandit/leopard-outreach/internal/model"
)

// MemoryCampaignRepository keeps campaigns in a map. Reads hand out copies.
type MemoryCampaignRepository struct {
	mu        sync.Mutex
	campaigns map[int]*model.Campaign
	nextID    int

	// Now stamps updated_at and running_since. Defaults to time.Now.
	Now func() time.Time
}

func NewMemoryCampaignRepository(seed ...*model.Campaign) *MemoryCampaignRepository {
	r := &MemoryCampaignRepository{campaigns: make(map[int]*model.Campaign), nextID: 1}
	for _, c := range seed {
		cp := *c
		r.campaigns[c.ID] = &cp
		if c.ID >= r.nextID {
			r.nextID = c.ID + 1
		}
	}
	return r
}

func (r *MemoryCampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = r.nextID
	r.nextID++
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	cp := *c
	r.campaigns[c.ID] = &cp
	return nil
}

func (r *MemoryCampaignRepository) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryCampaignRepository) ListCampaigns(ctx context.Context, offset, limit int, f CampaignFilter) ([]*model.Campaign, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := []*model.Campaign{}
	for _, c := range r.campaigns {
		if f.TenantID != 0 && c.TenantID != f.TenantID {
			continue
		}
		if f.Channel != "" && string(c.Channel) != f.Channel {
			continue
		}
		if f.Status != "" && string(c.Status) != f.Status {
			continue
		}
		cp := *c
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	if offset >= len(all) {
		return []*model.Campaign{}, len(all), nil
	}
	return all[offset:min(offset+limit, len(all))], len(all), nil
}

func (r *MemoryCampaignRepository) UpdateStatus(ctx context.Context, id int, status model.CampaignStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	r.setStatusLocked(c, status)
	return nil
}

func (r *MemoryCampaignRepository) TransitionStatus(ctx context.Context, id int, from, to model.CampaignStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.Status != from {
		return false, nil
	}
	r.setStatusLocked(c, to)
	return true, nil
}

func (r *MemoryCampaignRepository) StartRun(ctx context.Context, id, totalLeads int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.Status != model.CampaignDraft {
		return false, nil
	}
	c.TotalLeads = totalLeads
	c.ProcessedLeads = 0
	r.setStatusLocked(c, model.CampaignRunning)
	return true, nil
}

// IsRunning reports whether the campaign exists and is running.
func (r *MemoryCampaignRepository) IsRunning(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	return ok && c.Status == model.CampaignRunning
}

func (r *MemoryCampaignRepository) setStatusLocked(c *model.Campaign, status model.CampaignStatus) {
	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}
	c.Status = status
	c.UpdatedAt = &now
	if status == model.CampaignRunning {
		since := now
		c.RunningSince = &since
	}
}

func (r *MemoryCampaignRepository) IncrementProcessed(ctx context.Context, id int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return 0, appErrors.NewCampaignNotFound(id)
	}
	c.ProcessedLeads = min(c.ProcessedLeads+1, c.TotalLeads)
	return c.ProcessedLeads, nil
}

func (r *MemoryCampaignRepository) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.campaigns[id]; !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	delete(r.campaigns, id)
	return nil
}

type MemoryLeadRepository struct {
	mu    sync.RWMutex
	leads map[int]*model.Lead
}

func NewMemoryLeadRepository(seed ...*model.Lead) *MemoryLeadRepository {
	r := &MemoryLeadRepository{leads: make(map[int]*model.Lead)}
	for _, l := range seed {
		r.Add(l)
	}
	return r
}

func (r *MemoryLeadRepository) Add(l *model.Lead) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *l
	r.leads[l.ID] = &cp
}

func (r *MemoryLeadRepository) GetByID(ctx context.Context, id int) (*model.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.leads[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (r *MemoryLeadRepository) GetByIDs(ctx context.Context, tenantID int, ids []int) (map[int]*model.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int]*model.Lead, len(ids))
	for _, id := range ids {
		if l, ok := r.leads[id]; ok && l.TenantID == tenantID {
			cp := *l
			out[id] = &cp
		}
	}
	return out, nil
}

type MemoryProviderRepository struct {
	mu      sync.RWMutex
	configs []*model.ProviderConfig
}

func NewMemoryProviderRepository(seed ...*model.ProviderConfig) *MemoryProviderRepository {
	r := &MemoryProviderRepository{}
	for _, c := range seed {
		r.Add(c)
	}
	return r
}

func (r *MemoryProviderRepository) Add(c *model.ProviderConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.configs = append(r.configs, &cp)
}

// GetActive returns the most recently added active config for the pair.
func (r *MemoryProviderRepository) GetActive(ctx context.Context, tenantID int, ch model.Channel) (*model.ProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.configs) - 1; i >= 0; i-- {
		c := r.configs[i]
		if c.TenantID == tenantID && c.Channel == ch && c.Active {
			cp := *c
			return &cp, nil
		}
	}
	return nil, &appErrors.ConfigurationError{TenantID: tenantID, Channel: string(ch)}
}

var (
	_ CampaignRepositoryInterface = (*MemoryCampaignRepository)(nil)
	_ LeadRepositoryInterface     = (*MemoryLeadRepository)(nil)
	_ ProviderRepositoryInterface = (*MemoryProviderRepository)(nil)
)
