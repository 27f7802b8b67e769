// internal/model/provider.go
package model

type ProviderKind string

const (
    ProviderChatAPI  ProviderKind = "chat_api"
    ProviderEmailAPI ProviderKind = "email_api"
    ProviderSES      ProviderKind = "ses"
)

// ProviderConfig holds one tenant's credentials for a channel. It is loaded per
// tick and handed to the adapter; nothing caches it beyond that.
type ProviderConfig struct {
    ID           int          `db:"id" json:"id"`
    TenantID     int          `db:"tenant_id" json:"tenant_id"`
    Channel      Channel      `db:"channel" json:"channel"`
    Kind         ProviderKind `db:"kind" json:"kind"`
    BaseURL      string       `db:"base_url" json:"base_url"`
    InstanceName string       `db:"instance_name" json:"instance_name,omitempty"`
    APIKey       string       `db:"api_key" json:"-"`
    BearerToken  string       `db:"bearer_token" json:"-"`
    FromAddress  string       `db:"from_address" json:"from_address,omitempty"`
    Active       bool         `db:"active" json:"active"`
}
