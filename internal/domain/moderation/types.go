package moderation

import "time"

// Entry is one immutable line in the moderation log. Sequence is a strictly
// increasing database-assigned number used for cursoring.
type Entry struct {
	Sequence     int64
	ActorULID    string
	Action       string
	ResourceType string
	ResourceID   string
	Reason       string
	IP           string
	CreatedAt    time.Time
}

// Actions recorded by admin handlers.
const (
	ActionSuspendUser      = "user.suspend"
	ActionUnsuspendUser    = "user.unsuspend"
	ActionInviteAdmin      = "admin.invite"
	ActionCancelEvent      = "event.cancel"
	ActionDisableWebhook   = "webhook.disable"
	ActionDecideVendor     = "vendor.decide"
	ActionDecideSponsor    = "sponsor.decide"
	ActionAdjustAIQuota    = "ai_quota.adjust"
	ActionPurgeRateWindows = "rate_windows.purge"
)

type ListResult struct {
	Entries    []Entry
	NextCursor string
}
