package http

// deliveryReportPayload mirrors the push notification body the provider POSTs
// to the per-message callback URL. It carries at least one status record;
// only the first is applied, matching the provider's per-message callbacks.
type deliveryReportPayload struct {
	Results []deliveryReportResult `json:"results" validate:"required,min=1"`
}

type deliveryReportResult struct {
	MessageID string             `json:"messageId"`
	To        string             `json:"to,omitempty"`
	Status    deliveryStatusInfo `json:"status"`
}

type deliveryStatusInfo struct {
	GroupID     int    `json:"groupId"`
	GroupName   string `json:"groupName,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}
