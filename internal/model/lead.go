// internal/model/lead.go
package model

type Lead struct {
    ID       int    `db:"id" json:"id"`
    TenantID int    `db:"tenant_id" json:"tenant_id"`
    Name     string `db:"name" json:"name"`
    Industry string `db:"industry" json:"industry"`
    Location string `db:"location" json:"location"`
    Website  string `db:"website" json:"website"`
    Phone    string `db:"phone" json:"phone"`
    Email    string `db:"email" json:"email"`
    Insight  string `db:"insight" json:"insight,omitempty"` // precomputed by the enrichment pipeline
}

// ContactFor returns the address used to reach the lead on ch, or "" if the
// lead has none.
func (l *Lead) ContactFor(ch Channel) string {
    switch ch {
    case ChannelChat:
        return l.Phone
    case ChannelEmail:
        return l.Email
    }
    return ""
}
