package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"leadwire-backend/internal/mailsync/domain"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// Field projection for listings. Bodies are fetched one message at a time
// during hydration, never here, to keep page payloads small.
const listSelect = "id,subject,from,toRecipients,bodyPreview,receivedDateTime"

const deltaPageSize = 50

// Client talks to Microsoft Graph. It implements domain.MailProvider.
// Delta and pagination links returned by Graph are replayed verbatim and
// never inspected.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	clientID      string
	clientSecret  string
	defaultTenant string

	// tokenURL overrides the Azure AD endpoint; used by tests.
	tokenURL string
}

func NewClient(clientID, clientSecret, defaultTenant, baseURL string) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		baseURL:       baseURL,
		clientID:      clientID,
		clientSecret:  clientSecret,
		defaultTenant: defaultTenant,
	}
}

// Exchange trades a refresh token for an access token via the Azure AD
// token endpoint. invalid_grant and friends mean the authorization is dead
// and the user must reconnect; everything else is transient.
func (c *Client) Exchange(ctx context.Context, refreshToken, accountHint string) (*domain.Token, error) {
	conf := &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint:     c.endpointFor(accountHint),
		Scopes:       []string{"https://graph.microsoft.com/.default", "offline_access"},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	src := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	tok, err := src.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && isTerminalGrantError(retrieveErr.ErrorCode) {
			return nil, fmt.Errorf("%w: %v", domain.ErrExpiredCredential, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTransientExchange, err)
	}

	result := &domain.Token{
		AccessToken: tok.AccessToken,
		ExpiresOn:   tok.Expiry,
	}
	// Only report a rotation, not an echo of the same token.
	if tok.RefreshToken != "" && tok.RefreshToken != refreshToken {
		result.RefreshToken = tok.RefreshToken
	}
	return result, nil
}

func isTerminalGrantError(code string) bool {
	switch code {
	case "invalid_grant", "interaction_required", "consent_required":
		return true
	}
	return false
}

func (c *Client) endpointFor(accountHint string) oauth2.Endpoint {
	if c.tokenURL != "" {
		return oauth2.Endpoint{TokenURL: c.tokenURL}
	}
	tenant := c.defaultTenant
	if accountHint != "" {
		tenant = accountHint
	}
	return microsoft.AzureADEndpoint(tenant)
}

type graphRecipient struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

type graphMessage struct {
	ID               string           `json:"id"`
	Subject          string           `json:"subject"`
	BodyPreview      string           `json:"bodyPreview"`
	ReceivedDateTime time.Time        `json:"receivedDateTime"`
	From             *graphRecipient  `json:"from"`
	ToRecipients     []graphRecipient `json:"toRecipients"`
	Body             *struct {
		Content string `json:"content"`
	} `json:"body"`
}

func (m *graphMessage) toRaw() domain.RawMessage {
	raw := domain.RawMessage{
		ID:          m.ID,
		Subject:     m.Subject,
		BodyPreview: m.BodyPreview,
		ReceivedAt:  m.ReceivedDateTime,
	}
	if m.From != nil {
		raw.From = m.From.EmailAddress.Address
	}
	for _, rcpt := range m.ToRecipients {
		raw.To = append(raw.To, rcpt.EmailAddress.Address)
	}
	return raw
}

type listResponse struct {
	Value     []graphMessage `json:"value"`
	NextLink  string         `json:"@odata.nextLink"`
	DeltaLink string         `json:"@odata.deltaLink"`
}

// DeltaPage fetches one page of the inbox delta listing. An empty link
// starts a new delta round from the well-known delta resource.
func (c *Client) DeltaPage(ctx context.Context, accessToken, mailbox, link string) (*domain.DeltaPage, error) {
	target := link
	if target == "" {
		target = fmt.Sprintf("%s/users/%s/mailFolders/inbox/messages/delta?$select=%s&$top=%d",
			c.baseURL, url.PathEscape(mailbox), listSelect, deltaPageSize)
	}

	var resp listResponse
	if err := c.getJSON(ctx, accessToken, target, &resp); err != nil {
		return nil, err
	}

	page := &domain.DeltaPage{
		NextLink:  resp.NextLink,
		DeltaLink: resp.DeltaLink,
	}
	for i := range resp.Value {
		page.Messages = append(page.Messages, resp.Value[i].toRaw())
	}
	return page, nil
}

// Recent fetches the newest limit messages, newest first.
func (c *Client) Recent(ctx context.Context, accessToken, mailbox string, limit int) ([]domain.RawMessage, error) {
	target := fmt.Sprintf("%s/users/%s/messages?$select=%s&$top=%d&$orderby=receivedDateTime%%20desc",
		c.baseURL, url.PathEscape(mailbox), listSelect, limit)

	var resp listResponse
	if err := c.getJSON(ctx, accessToken, target, &resp); err != nil {
		return nil, err
	}

	messages := make([]domain.RawMessage, 0, len(resp.Value))
	for i := range resp.Value {
		messages = append(messages, resp.Value[i].toRaw())
	}
	return messages, nil
}

// MessageBody fetches the full body of one message.
func (c *Client) MessageBody(ctx context.Context, accessToken, mailbox, messageID string) (string, error) {
	target := fmt.Sprintf("%s/users/%s/messages/%s?$select=body",
		c.baseURL, url.PathEscape(mailbox), url.PathEscape(messageID))

	var msg graphMessage
	if err := c.getJSON(ctx, accessToken, target, &msg); err != nil {
		return "", err
	}
	if msg.Body == nil {
		return "", nil
	}
	return msg.Body.Content, nil
}

func (c *Client) CreateSubscription(ctx context.Context, accessToken, mailbox, notificationURL, clientState string, expires time.Time) (*domain.Subscription, error) {
	payload := map[string]string{
		"changeType":         "created,updated",
		"notificationUrl":    notificationURL,
		"resource":           fmt.Sprintf("/users/%s/mailFolders('inbox')/messages", url.PathEscape(mailbox)),
		"expirationDateTime": expires.UTC().Format(time.RFC3339),
		"clientState":        clientState,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/subscriptions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("create subscription: status %d: %s", resp.StatusCode, string(detail))
	}

	var created struct {
		ID                 string    `json:"id"`
		ExpirationDateTime time.Time `json:"expirationDateTime"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("create subscription: decode: %w", err)
	}

	return &domain.Subscription{
		ID:        created.ID,
		ExpiresAt: created.ExpirationDateTime,
	}, nil
}

func (c *Client) DeleteSubscription(ctx context.Context, accessToken, subscriptionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/subscriptions/"+url.PathEscape(subscriptionID), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		detail, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete subscription: status %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, accessToken, target string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("bad status %d: %s", resp.StatusCode, string(detail))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ domain.MailProvider = (*Client)(nil)
