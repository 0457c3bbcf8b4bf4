package dto

// ConnectRequest links a mailbox to the authenticated user. The refresh
// token comes out of the frontend's OAuth consent flow.
type ConnectRequest struct {
	MailboxAddress    string `json:"mailbox_address" binding:"required,email"`
	RefreshToken      string `json:"refresh_token" binding:"required"`
	ProviderAccountID string `json:"provider_account_id"`
	TenantID          string `json:"tenant_id"`
	EnvironmentTag    string `json:"environment_tag"`
}

type DisconnectRequest struct {
	// Purge also deletes the mirrored messages instead of keeping them as
	// CRM history.
	Purge bool `json:"purge"`
}

// NotificationEnvelope is the change-notification batch the provider POSTs
// to the webhook endpoint.
type NotificationEnvelope struct {
	Value []Notification `json:"value"`
}

// Notification carries no message content, only whose mailbox changed.
// ClientState echoes what we set at subscription time.
type Notification struct {
	SubscriptionID string `json:"subscriptionId"`
	ChangeType     string `json:"changeType"`
	Resource       string `json:"resource"`
	ClientState    string `json:"clientState"`
}
