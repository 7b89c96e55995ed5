package notify

import "time"

// InviteCreatedEvent is sent when an admin or manager invites someone.
type InviteCreatedEvent struct {
	InviteID    uint      `json:"invite_id"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	Token       string    `json:"token"`
	InviterName string    `json:"inviter_name"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// RequirementStatusChangedEvent is sent when a requirement moves between workflow states.
type RequirementStatusChangedEvent struct {
	RequirementID uint   `json:"requirement_id"`
	Code          string `json:"code"`
	Title         string `json:"title"`
	ProjectID     uint   `json:"project_id"`
	ProjectName   string `json:"project_name"`
	OldStatus     string `json:"old_status"`
	NewStatus     string `json:"new_status"`
	ChangedBy     string `json:"changed_by"`
}

// BatchGenerationCompletedEvent is sent when a queued acceptance criteria batch finishes.
type BatchGenerationCompletedEvent struct {
	ProjectID   uint   `json:"project_id"`
	ProjectName string `json:"project_name"`
	Succeeded   int    `json:"succeeded"`
	Failed      int    `json:"failed"`
	RequestedBy string `json:"requested_by"`
}
