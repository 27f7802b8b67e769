// internal/controller/campaign_controller.go
package controller

import (
    "encoding/json"
    "net/http"
    "strconv"

    "github.com/go-chi/chi/v5"
    "github.com/rs/zerolog"

    "github.com/unclebandit/leopard-outreach/internal/repository"
    "github.com/unclebandit/leopard-outreach/internal/service"
)

type CampaignController struct {
    CampaignService *service.CampaignService
    Planner         *service.Planner
    Control         *service.ControlPlane
    Logger          zerolog.Logger
}

// Routes mounts the campaign endpoints on r.
func (c *CampaignController) Routes(r chi.Router) {
    r.Post("/campaigns", c.CreateCampaign)
    r.Get("/campaigns", c.ListCampaigns)
    r.Route("/campaigns/{id}", func(r chi.Router) {
        r.Get("/", c.GetCampaignDetails)
        r.Delete("/", c.DeleteCampaign)
        r.Post("/send", c.SendCampaign)
        r.Post("/pause", c.PauseCampaign)
        r.Post("/resume", c.ResumeCampaign)
        r.Post("/personalized-preview", c.PersonalizedPreview)
        r.Post("/replies", c.RecordReply)
    })
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
    var body service.CreateCampaignInput
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        WriteMessage(w, http.StatusBadRequest, "invalid body")
        return
    }

    campaign, err := c.CampaignService.CreateCampaign(r.Context(), body)
    if err != nil {
        WriteError(w, c.Logger, err)
        return
    }

    WriteJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
    q := r.URL.Query()
    page, _ := strconv.Atoi(q.Get("page"))
    pageSize, _ := strconv.Atoi(q.Get("page_size"))
    tenantID, _ := strconv.Atoi(q.Get("tenant_id"))

    filter := repository.CampaignFilter{
        TenantID: tenantID,
        Channel:  q.Get("channel"),
        Status:   q.Get("status"),
    }

    campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), page, pageSize, filter)
    if err != nil {
        WriteError(w, c.Logger, err)
        return
    }

    WriteJSON(w, http.StatusOK, map[string]interface{}{
        "data":       campaigns,
        "pagination": pagination,
    })
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
    id, ok := campaignID(w, r)
    if !ok {
        return
    }

    details, err := c.CampaignService.GetCampaignDetailsWithStats(r.Context(), id)
    if err != nil {
        WriteError(w, c.Logger, err)
        return
    }

    WriteJSON(w, http.StatusOK, details)
}

func (c *CampaignController) SendCampaign(w http.ResponseWriter, r *http.Request) {
    id, ok := campaignID(w, r)
    if !ok {
        return
    }

    var body struct {
        LeadIDs []int `json:"lead_ids"`
        UseAI   bool  `json:"use_ai"`
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        WriteMessage(w, http.StatusBadRequest, "invalid body")
        return
    }

    result, err := c.Planner.Submit(r.Context(), id, body.LeadIDs, service.SubmitOptions{UseAI: body.UseAI})
    if err != nil {
        WriteError(w, c.Logger, err)
        return
    }

    WriteJSON(w, http.StatusAccepted, result)
}

func (c *CampaignController) PauseCampaign(w http.ResponseWriter, r *http.Request) {
    id, ok := campaignID(w, r)
    if !ok {
        return
    }
    if err := c.Control.Pause(r.Context(), id); err != nil {
        WriteError(w, c.Logger, err)
        return
    }
    WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (c *CampaignController) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
    id, ok := campaignID(w, r)
    if !ok {
        return
    }
    if err := c.Control.Resume(r.Context(), id); err != nil {
        WriteError(w, c.Logger, err)
        return
    }
    WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (c *CampaignController) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
    id, ok := campaignID(w, r)
    if !ok {
        return
    }
    if err := c.Control.Delete(r.Context(), id); err != nil {
        WriteError(w, c.Logger, err)
        return
    }
    WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (c *CampaignController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
    id, ok := campaignID(w, r)
    if !ok {
        return
    }

    var body struct {
        LeadID           int     `json:"lead_id"`
        OverrideTemplate *string `json:"override_template"`
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        WriteMessage(w, http.StatusBadRequest, "invalid body")
        return
    }

    rendered, err := c.CampaignService.RenderPreview(r.Context(), id, body.LeadID, body.OverrideTemplate)
    if err != nil {
        WriteError(w, c.Logger, err)
        return
    }

    WriteJSON(w, http.StatusOK, map[string]interface{}{
        "rendered_message": rendered,
        "used_template":    body.OverrideTemplate,
        "lead_id":          body.LeadID,
    })
}

func (c *CampaignController) RecordReply(w http.ResponseWriter, r *http.Request) {
    id, ok := campaignID(w, r)
    if !ok {
        return
    }

    var body struct {
        LeadID int `json:"lead_id"`
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        WriteMessage(w, http.StatusBadRequest, "invalid body")
        return
    }

    recorded, err := c.CampaignService.RecordReply(r.Context(), id, body.LeadID)
    if err != nil {
        WriteError(w, c.Logger, err)
        return
    }

    WriteJSON(w, http.StatusOK, map[string]interface{}{"recorded": recorded})
}

func campaignID(w http.ResponseWriter, r *http.Request) (int, bool) {
    id, err := strconv.Atoi(chi.URLParam(r, "id"))
    if err != nil || id <= 0 {
        WriteMessage(w, http.StatusBadRequest, "invalid campaign id")
        return 0, false
    }
    return id, true
}
