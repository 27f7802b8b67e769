// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ErrClaimLost is returned when an entry is acked or failed after it left the
// processing state, for example because the reaper requeued it.
var ErrClaimLost = errors.New("dispatch entry is no longer claimed")

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ValidationError reports bad caller input. Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidation(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// ContactMissingError means the lead cannot be reached on the entry's channel.
type ContactMissingError struct {
	LeadID  int
	Channel string
}

func (e *ContactMissingError) Error() string {
	return fmt.Sprintf("lead %d has no contact for channel %s", e.LeadID, e.Channel)
}

// ProviderError wraps a failed channel adapter call. Retryable.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s returned %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ConfigurationError means the tenant has no active provider for a channel.
type ConfigurationError struct {
	TenantID int
	Channel  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("no active provider configured for tenant %d on channel %s", e.TenantID, e.Channel)
}

// BanSuspicionError is raised when the recent failure ratio of a tenant's
// channel suggests the provider account is being blocked.
type BanSuspicionError struct {
	TenantID int
	Channel  string
	Failures int
	Attempts int
}

func (e *BanSuspicionError) Error() string {
	return fmt.Sprintf("ban suspected for tenant %d on %s: %d of %d recent attempts failed",
		e.TenantID, e.Channel, e.Failures, e.Attempts)
}

// InvalidTransitionError rejects a campaign status change.
type InvalidTransitionError struct {
	CampaignID int
	From       string
	To         string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("campaign %d cannot move from %s to %s", e.CampaignID, e.From, e.To)
}
