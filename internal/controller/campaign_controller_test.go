package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/leopard-outreach/internal/controller"
	"github.com/unclebandit/leopard-outreach/internal/model"
	"github.com/unclebandit/leopard-outreach/internal/queue"
	"github.com/unclebandit/leopard-outreach/internal/repository"
	"github.com/unclebandit/leopard-outreach/internal/service"
)

func newRouter(t *testing.T) (http.Handler, *repository.MemoryCampaignRepository) {
	t.Helper()
	logger := zerolog.Nop()
	campaigns := repository.NewMemoryCampaignRepository(&model.Campaign{
		ID:              1,
		TenantID:        1,
		Name:            "Lançamento",
		Channel:         model.ChannelChat,
		Status:          model.CampaignDraft,
		TemplateContent: "Olá ${name}, tudo bem em ${location}?",
	})
	leads := repository.NewMemoryLeadRepository(
		&model.Lead{ID: 1, TenantID: 1, Name: "Acme", Location: "Recife", Phone: "5581900000001"},
		&model.Lead{ID: 2, TenantID: 1, Name: "Beta", Phone: "5581900000002"},
	)
	entries := queue.NewInMemoryQueue()

	ctrl := &controller.CampaignController{
		CampaignService: &service.CampaignService{CampaignRepo: campaigns, LeadRepo: leads, EntryRepo: entries, Logger: logger},
		Planner: &service.Planner{
			Campaigns: campaigns,
			Leads:     leads,
			Entries:   entries,
			Settings:  service.PlannerSettings{Location: time.UTC},
			Logger:    logger,
			Now:       func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) },
		},
		Control: &service.ControlPlane{Campaigns: campaigns, Entries: entries, Logger: logger},
		Logger:  logger,
	}
	r := chi.NewRouter()
	ctrl.Routes(r)
	return r, campaigns
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestPersonalizedPreviewHandler(t *testing.T) {
	h, _ := newRouter(t)

	w := do(t, h, http.MethodPost, "/campaigns/1/personalized-preview", map[string]interface{}{"lead_id": 1})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Olá Acme, tudo bem em Recife?", resp["rendered_message"])

	w = do(t, h, http.MethodPost, "/campaigns/1/personalized-preview", map[string]interface{}{"lead_id": 2})
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Olá Beta, tudo bem em sua região?", resp["rendered_message"])
}

func TestSendPauseResumeDeleteFlow(t *testing.T) {
	h, campaigns := newRouter(t)

	w := do(t, h, http.MethodPost, "/campaigns/1/send", map[string]interface{}{"lead_ids": []int{1, 2}})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var result service.SubmitResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Count)

	w = do(t, h, http.MethodPost, "/campaigns/1/send", map[string]interface{}{"lead_ids": []int{1}})
	assert.Equal(t, http.StatusConflict, w.Code, "a running campaign cannot be submitted twice")

	w = do(t, h, http.MethodPost, "/campaigns/1/pause", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/campaigns/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var details struct {
		Status string              `json:"status"`
		Stats  model.CampaignStats `json:"stats"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&details))
	assert.Equal(t, "paused", details.Status)
	assert.Equal(t, 2, details.Stats.Paused)

	w = do(t, h, http.MethodPost, "/campaigns/1/resume", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodDelete, "/campaigns/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, err := campaigns.GetByID(context.Background(), 1)
	assert.Error(t, err)

	w = do(t, h, http.MethodPost, "/campaigns/1/pause", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateAndListCampaigns(t *testing.T) {
	h, _ := newRouter(t)

	w := do(t, h, http.MethodPost, "/campaigns", map[string]interface{}{
		"tenant_id":        1,
		"name":             "Newsletter",
		"channel":          "email",
		"template_content": "Oi ${name}",
		"template_subject": "Novidades",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, h, http.MethodPost, "/campaigns", map[string]interface{}{"tenant_id": 1, "channel": "email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/campaigns?page=1&page_size=1&channel=email", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data       []model.Campaign `json:"data"`
		Pagination map[string]int   `json:"pagination"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Newsletter", resp.Data[0].Name)
	assert.Equal(t, 1, resp.Pagination["total_count"])
}

func TestInvalidCampaignID(t *testing.T) {
	h, _ := newRouter(t)
	w := do(t, h, http.MethodGet, "/campaigns/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/campaigns/42", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
