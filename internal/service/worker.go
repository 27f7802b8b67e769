package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/leopard-outreach/internal/ai"
	"github.com/unclebandit/leopard-outreach/internal/alert"
	"github.com/unclebandit/leopard-outreach/internal/channel"
	appErrors "github.com/unclebandit/leopard-outreach/internal/errors"
	"github.com/unclebandit/leopard-outreach/internal/model"
	"github.com/unclebandit/leopard-outreach/internal/pacing"
	"github.com/unclebandit/leopard-outreach/internal/repository"
)

// ContentGenerator writes a personalized message for an ai_generate entry.
type ContentGenerator interface {
	Generate(ctx context.Context, req ai.Request) (string, error)
}

type WorkerSettings struct {
	BatchSize        int
	ClaimTimeout     time.Duration
	BanWindow        time.Duration
	ConfigRetryDelay time.Duration
	Location         *time.Location
}

// Worker delivers due dispatch entries, one bounded batch per tick.
type Worker struct {
	Entries   repository.DispatchEntryRepositoryInterface
	Campaigns repository.CampaignRepositoryInterface
	Leads     repository.LeadRepositoryInterface
	Providers repository.ProviderRepositoryInterface
	Adapters  *channel.Registry
	Generator ContentGenerator
	Control   *ControlPlane
	Alerts    alert.Publisher
	Settings  WorkerSettings
	Logger    zerolog.Logger

	Now func() time.Time
}

type TickResult struct {
	Requeued  int   `json:"requeued"`
	Claimed   int   `json:"claimed"`
	Sent      int   `json:"sent"`
	Retried   int   `json:"retried"`
	Failed    int   `json:"failed"`
	Deferred  int   `json:"deferred"`
	Released  int   `json:"released"`
	Paused    []int `json:"paused_campaigns,omitempty"`
	Completed []int `json:"completed_campaigns,omitempty"`
}

type tenantChannel struct {
	tenantID int
	channel  model.Channel
}

type providerLookup struct {
	cfg     *model.ProviderConfig
	adapter channel.Adapter
	err     error
}

type tenantCounters struct {
	sentToday int
	attempts  int
	failures  int
	exhausted bool
	campaigns map[int]struct{}
}

// tickState is scoped to a single tick. Provider credentials and campaign
// rows are read at most once per tick and dropped with it.
type tickState struct {
	w         *Worker
	now       time.Time
	result    *TickResult
	campaigns map[int]*model.Campaign
	providers map[tenantChannel]providerLookup
	counters  map[tenantChannel]*tenantCounters
}

// Tick requeues stale claims, claims up to BatchSize due entries, sends them
// one after the other, then applies tenant limits and campaign completion.
func (w *Worker) Tick(ctx context.Context) (*TickResult, error) {
	t := &tickState{
		w:         w,
		now:       w.now(),
		result:    &TickResult{},
		campaigns: make(map[int]*model.Campaign),
		providers: make(map[tenantChannel]providerLookup),
		counters:  make(map[tenantChannel]*tenantCounters),
	}

	requeued, err := w.Entries.RequeueStale(ctx, t.now.Add(-w.claimTimeout()))
	if err != nil {
		w.Logger.Error().Err(err).Msg("failed to requeue stale claims")
	} else if requeued > 0 {
		t.result.Requeued = requeued
		w.Logger.Warn().Int("entries", requeued).Msg("requeued entries with expired claims")
	}

	entries, err := w.Entries.ClaimDue(ctx, t.now, w.batchSize())
	if err != nil {
		return t.result, fmt.Errorf("claim due entries: %w", err)
	}
	t.result.Claimed = len(entries)

	for _, e := range entries {
		if ctx.Err() != nil {
			// Hand the rest back so they do not wait for the reaper.
			t.release(context.WithoutCancel(ctx), e, e.ScheduledFor, "tick cancelled")
			continue
		}
		t.deliver(ctx, e)
	}

	bg := context.WithoutCancel(ctx)
	t.enforceTenantLimits(bg)
	t.settleCampaigns(bg)

	if t.result.Claimed > 0 {
		w.Logger.Info().
			Int("claimed", t.result.Claimed).
			Int("sent", t.result.Sent).
			Int("retried", t.result.Retried).
			Int("failed", t.result.Failed).
			Int("deferred", t.result.Deferred).
			Int("released", t.result.Released).
			Msg("tick finished")
	}
	return t.result, nil
}

func (t *tickState) deliver(ctx context.Context, e *model.DispatchEntry) {
	w := t.w
	log := w.Logger.With().
		Str("entry_id", e.ID).
		Int("campaign_id", e.CampaignID).
		Int("tenant_id", e.TenantID).
		Str("channel", string(e.Channel)).
		Logger()

	campaign := t.campaign(ctx, e.CampaignID)
	if campaign == nil {
		t.release(ctx, e, t.now.Add(w.configRetryDelay()), "campaign unavailable")
		return
	}
	switch campaign.Status {
	case model.CampaignRunning:
	case model.CampaignPaused:
		// Parked again when the tick settles.
		t.release(ctx, e, e.ScheduledFor, "campaign paused")
		return
	default:
		t.release(ctx, e, t.now.Add(w.configRetryDelay()), "campaign not running")
		return
	}

	key := tenantChannel{tenantID: e.TenantID, channel: e.Channel}
	counters := t.countersFor(ctx, key)
	counters.campaigns[e.CampaignID] = struct{}{}
	if counters.exhausted || !pacing.IsDailyLimitSafe(counters.sentToday, e.Channel) {
		counters.exhausted = true
		// Keeps its slot; enforceTenantLimits moves it with the rest of the tenant's work.
		t.releaseCounted(ctx, e, e.ScheduledFor, "daily limit reached", nil)
		return
	}

	provider := t.provider(ctx, key)
	if provider.err != nil {
		var cfgErr *appErrors.ConfigurationError
		if errors.As(provider.err, &cfgErr) {
			log.Warn().Err(provider.err).Msg("no active provider, entry stays pending")
		} else {
			log.Error().Err(provider.err).Msg("failed to resolve provider")
		}
		t.release(ctx, e, t.now.Add(w.configRetryDelay()), "provider unavailable")
		return
	}

	lead, err := w.Leads.GetByID(ctx, e.LeadID)
	if err != nil {
		log.Error().Err(err).Int("lead_id", e.LeadID).Msg("failed to load lead")
		t.release(ctx, e, t.now.Add(w.configRetryDelay()), "lead lookup failed")
		return
	}
	contact := ""
	if lead != nil {
		contact = lead.ContactFor(e.Channel)
	}
	if contact == "" {
		missing := &appErrors.ContactMissingError{LeadID: e.LeadID, Channel: string(e.Channel)}
		log.Warn().Err(missing).Msg("failing entry without contact")
		t.fail(ctx, e, model.Failure{RetryCount: e.RetryCount, Message: missing.Error()})
		return
	}

	msg := channel.Message{To: contact, Subject: e.Subject, Content: t.content(ctx, e, lead, log)}
	res, sendErr := provider.adapter.Send(ctx, provider.cfg, msg)
	if sendErr == nil && (res == nil || !res.Success) {
		sendErr = &appErrors.ProviderError{Provider: string(provider.cfg.Kind), Err: errors.New(resultMessage(res))}
	}

	attempt := &model.DeliveryAttempt{
		EntryID:     e.ID,
		TenantID:    e.TenantID,
		CampaignID:  e.CampaignID,
		Channel:     e.Channel,
		Success:     sendErr == nil,
		AttemptedAt: w.now(),
	}
	if res != nil {
		attempt.StatusCode = res.StatusCode
	}
	if sendErr != nil {
		attempt.Error = sendErr.Error()
	}
	if err := w.Entries.RecordAttempt(ctx, attempt); err != nil {
		log.Error().Err(err).Msg("failed to record delivery attempt")
	}
	counters.attempts++

	if sendErr != nil {
		counters.failures++
		t.retryOrFail(ctx, e, sendErr, log)
		return
	}
	counters.sentToday++
	t.succeed(ctx, e, log)
}

func (t *tickState) succeed(ctx context.Context, e *model.DispatchEntry, log zerolog.Logger) {
	w := t.w
	if err := w.Entries.Ack(ctx, e.ID, w.now()); err != nil {
		if errors.Is(err, appErrors.ErrClaimLost) {
			log.Warn().Err(err).Msg("sent entry was no longer claimed")
		} else {
			log.Error().Err(err).Msg("failed to mark entry sent")
		}
		return
	}
	t.result.Sent++

	processed, err := w.Campaigns.IncrementProcessed(ctx, e.CampaignID)
	if err != nil {
		log.Error().Err(err).Msg("failed to update processed leads")
		return
	}
	log.Info().Int("processed", processed).Msg("entry sent")

	if pacing.ShouldPauseBatch(processed) {
		pause := pacing.GetBatchPause()
		n, err := w.Entries.ShiftPending(ctx, e.CampaignID, pause)
		if err != nil {
			log.Error().Err(err).Msg("failed to apply batch pause")
			return
		}
		log.Info().Dur("pause", pause).Int("entries", n).Msg("batch pause")
	}
}

func (t *tickState) retryOrFail(ctx context.Context, e *model.DispatchEntry, sendErr error, log zerolog.Logger) {
	w := t.w
	retryCount := min(e.RetryCount+1, max(e.MaxRetries, 0))
	f := model.Failure{RetryCount: retryCount, Message: sendErr.Error()}
	if retryCount < e.MaxRetries {
		next := pacing.ClampToWindow(t.now.In(w.location()).Add(pacing.RetryBackoff(retryCount)))
		f.NextRetryAt = &next
	}

	if err := w.Entries.Fail(ctx, e.ID, f); err != nil {
		log.Error().Err(err).Msg("failed to record send failure")
		return
	}
	if f.Permanent() {
		t.result.Failed++
		log.Warn().Err(sendErr).Int("retry_count", retryCount).Msg("entry failed permanently")
		return
	}
	t.result.Retried++
	log.Warn().Err(sendErr).Int("retry_count", retryCount).Time("next_retry_at", *f.NextRetryAt).Msg("send failed, retry scheduled")
}

func (t *tickState) fail(ctx context.Context, e *model.DispatchEntry, f model.Failure) {
	if err := t.w.Entries.Fail(ctx, e.ID, f); err != nil {
		t.w.Logger.Error().Err(err).Str("entry_id", e.ID).Msg("failed to record failure")
		return
	}
	t.result.Failed++
}

// release hands a claimed entry back without counting an attempt.
func (t *tickState) release(ctx context.Context, e *model.DispatchEntry, at time.Time, reason string) {
	t.releaseCounted(ctx, e, at, reason, &t.result.Released)
}

func (t *tickState) releaseCounted(ctx context.Context, e *model.DispatchEntry, at time.Time, reason string, counter *int) {
	if err := t.w.Entries.Release(ctx, e.ID, at); err != nil {
		t.w.Logger.Error().Err(err).Str("entry_id", e.ID).Str("reason", reason).Msg("failed to release entry")
		return
	}
	if counter != nil {
		*counter++
	}
	t.w.Logger.Debug().Str("entry_id", e.ID).Str("reason", reason).Time("scheduled_for", at).Msg("entry released")
}

// content returns the text to send. Generated content falls back to the
// rendered template on any error.
func (t *tickState) content(ctx context.Context, e *model.DispatchEntry, lead *model.Lead, log zerolog.Logger) string {
	if e.ContentKind != model.ContentAIGenerate || t.w.Generator == nil {
		return e.Content
	}
	out, err := t.w.Generator.Generate(ctx, ai.Request{
		TenantID: e.TenantID,
		LeadID:   e.LeadID,
		Channel:  e.Channel,
		Insight:  lead.Insight,
		Fallback: e.Content,
	})
	if err != nil {
		log.Warn().Err(err).Msg("ai generation failed, sending template")
		return e.Content
	}
	return out
}

func (t *tickState) campaign(ctx context.Context, id int) *model.Campaign {
	if c, ok := t.campaigns[id]; ok {
		return c
	}
	c, err := t.w.Campaigns.GetByID(ctx, id)
	if err != nil {
		t.w.Logger.Warn().Err(err).Int("campaign_id", id).Msg("failed to load campaign")
		c = nil
	}
	t.campaigns[id] = c
	return c
}

func (t *tickState) provider(ctx context.Context, key tenantChannel) providerLookup {
	if p, ok := t.providers[key]; ok {
		return p
	}
	var p providerLookup
	p.cfg, p.err = t.w.Providers.GetActive(ctx, key.tenantID, key.channel)
	if p.err == nil {
		p.adapter, p.err = t.w.Adapters.For(p.cfg.Kind)
	}
	t.providers[key] = p
	return p
}

func (t *tickState) countersFor(ctx context.Context, key tenantChannel) *tenantCounters {
	if c, ok := t.counters[key]; ok {
		return c
	}
	w := t.w
	c := &tenantCounters{campaigns: make(map[int]struct{})}
	log := w.Logger.With().Int("tenant_id", key.tenantID).Str("channel", string(key.channel)).Logger()

	sent, err := w.Entries.SentSince(ctx, key.tenantID, key.channel, pacing.StartOfDay(t.now.In(w.location())))
	if err != nil {
		log.Error().Err(err).Msg("failed to count today's sends")
	}
	c.sentToday = sent

	attempts, failures, err := w.Entries.AttemptStats(ctx, key.tenantID, key.channel, t.now.Add(-w.banWindow()))
	if err != nil {
		log.Error().Err(err).Msg("failed to load recent attempt stats")
	}
	c.attempts, c.failures = attempts, failures

	t.counters[key] = c
	return c
}

// enforceTenantLimits defers the remaining work of tenants that hit their
// daily cap and halts campaigns of tenants that look banned.
func (t *tickState) enforceTenantLimits(ctx context.Context) {
	w := t.w
	for key, c := range t.counters {
		log := w.Logger.With().Int("tenant_id", key.tenantID).Str("channel", string(key.channel)).Logger()

		if c.exhausted || !pacing.IsDailyLimitSafe(c.sentToday, key.channel) {
			until := pacing.NextDayWindowStart(t.now.In(w.location()))
			n, err := w.Entries.DeferDue(ctx, key.tenantID, key.channel, t.now, until)
			if err != nil {
				log.Error().Err(err).Msg("failed to defer entries past daily limit")
			} else {
				t.result.Deferred += n
				log.Info().Int("sent_today", c.sentToday).Int("deferred", n).Time("until", until).Msg("daily limit reached")
			}
		}

		for id := range c.campaigns {
			campaign := t.campaigns[id]
			if campaign == nil || campaign.Status != model.CampaignRunning {
				continue
			}
			attempts, failures := t.banCounts(ctx, key, c, campaign)
			if !pacing.ShouldSuspectBan(failures, attempts) {
				continue
			}
			suspicion := &appErrors.BanSuspicionError{
				TenantID: key.tenantID,
				Channel:  string(key.channel),
				Failures: failures,
				Attempts: attempts,
			}
			if err := w.control().Pause(ctx, id); err != nil {
				log.Error().Err(err).Int("campaign_id", id).Msg("failed to pause campaign on ban suspicion")
				continue
			}
			campaign.Status = model.CampaignPaused
			t.result.Paused = append(t.result.Paused, id)
			log.Error().Err(suspicion).Int("campaign_id", id).Msg("campaign paused")

			if w.Alerts == nil {
				continue
			}
			a := alert.Alert{
				Type:       alert.TypeBanSuspected,
				TenantID:   key.tenantID,
				CampaignID: id,
				Channel:    key.channel,
				Failures:   failures,
				Attempts:   attempts,
				Message:    suspicion.Error(),
				At:         t.now,
			}
			if err := w.Alerts.Publish(ctx, a); err != nil {
				log.Error().Err(err).Int("campaign_id", id).Msg("failed to publish ban alert")
			}
		}
	}
}

// banCounts returns the tenant's attempts and failures on key within the ban
// window, starting no earlier than the campaign's last entry into running.
// Failures that led to an earlier pause do not count against a resumed campaign.
func (t *tickState) banCounts(ctx context.Context, key tenantChannel, c *tenantCounters, campaign *model.Campaign) (int, int) {
	since := t.now.Add(-t.w.banWindow())
	if campaign.RunningSince == nil || !campaign.RunningSince.After(since) {
		return c.attempts, c.failures
	}
	attempts, failures, err := t.w.Entries.AttemptStats(ctx, key.tenantID, key.channel, *campaign.RunningSince)
	if err != nil {
		t.w.Logger.Error().Err(err).Int("campaign_id", campaign.ID).Msg("failed to load attempt stats since resume")
		return c.attempts, c.failures
	}
	return attempts, failures
}

// settleCampaigns re-parks entries of campaigns paused during the tick and
// completes running campaigns with no open entries left.
func (t *tickState) settleCampaigns(ctx context.Context) {
	w := t.w
	for id, cached := range t.campaigns {
		if cached == nil {
			continue
		}
		campaign, err := w.Campaigns.GetByID(ctx, id)
		if err != nil {
			w.Logger.Warn().Err(err).Int("campaign_id", id).Msg("failed to reload campaign")
			continue
		}
		switch campaign.Status {
		case model.CampaignPaused:
			if err := w.control().Pause(ctx, id); err != nil {
				w.Logger.Error().Err(err).Int("campaign_id", id).Msg("failed to re-park paused campaign")
			}
		case model.CampaignRunning:
			open, err := w.Entries.CountOpen(ctx, id)
			if err != nil {
				w.Logger.Error().Err(err).Int("campaign_id", id).Msg("failed to count open entries")
				continue
			}
			if open > 0 {
				continue
			}
			ok, err := w.Campaigns.TransitionStatus(ctx, id, model.CampaignRunning, model.CampaignCompleted)
			if err != nil {
				w.Logger.Error().Err(err).Int("campaign_id", id).Msg("failed to complete campaign")
				continue
			}
			if ok {
				t.result.Completed = append(t.result.Completed, id)
				w.Logger.Info().Int("campaign_id", id).Msg("campaign completed")
			}
		}
	}
}

func resultMessage(res *channel.Result) string {
	if res == nil || res.ErrorMessage == "" {
		return "provider reported failure"
	}
	return res.ErrorMessage
}

func (w *Worker) control() *ControlPlane {
	if w.Control != nil {
		return w.Control
	}
	return &ControlPlane{Campaigns: w.Campaigns, Entries: w.Entries, Logger: w.Logger}
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *Worker) location() *time.Location {
	if w.Settings.Location != nil {
		return w.Settings.Location
	}
	return time.Local
}

func (w *Worker) batchSize() int {
	if w.Settings.BatchSize > 0 {
		return w.Settings.BatchSize
	}
	return 5
}

func (w *Worker) claimTimeout() time.Duration {
	if w.Settings.ClaimTimeout > 0 {
		return w.Settings.ClaimTimeout
	}
	return 10 * time.Minute
}

func (w *Worker) banWindow() time.Duration {
	if w.Settings.BanWindow > 0 {
		return w.Settings.BanWindow
	}
	return time.Hour
}

func (w *Worker) configRetryDelay() time.Duration {
	if w.Settings.ConfigRetryDelay > 0 {
		return w.Settings.ConfigRetryDelay
	}
	return 15 * time.Minute
}
