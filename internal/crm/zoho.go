// Package crm creates sales leads in Zoho CRM.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	agenterrors "bikeshop-agent/internal/common/errors"
)

// Client is the surface the lead pipeline needs; tests substitute a fake.
type Client interface {
	CreateLead(ctx context.Context, lead *Lead) (string, error)
}

// Lead is the Zoho Leads payload. ConversationID travels in the description
// so a lead can always be traced back to its conversation.
type Lead struct {
	ID             string `json:"id,omitempty"`
	FirstName      string `json:"First_Name,omitempty"`
	LastName       string `json:"Last_Name"`
	Email          string `json:"Email,omitempty"`
	Phone          string `json:"Phone,omitempty"`
	Company        string `json:"Company"`
	Source         string `json:"Lead_Source,omitempty"`
	Description    string `json:"Description,omitempty"`
	ConversationID string `json:"-"`
}

type createLeadResponse struct {
	Data []struct {
		Code    string `json:"code"`
		Details struct {
			ID string `json:"id"`
		} `json:"details"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"data"`
}

type ZohoClient struct {
	oauthToken string
	baseURL    string
	httpClient *http.Client
}

func NewZohoClient(baseURL, oauthToken string, timeout time.Duration) *ZohoClient {
	if baseURL == "" {
		baseURL = "https://www.zohoapis.com/crm/v3"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ZohoClient{
		oauthToken: oauthToken,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateLead creates one lead record. Any transport or API failure comes
// back as CRM_UNAVAILABLE so the caller keeps the conversation retryable.
func (c *ZohoClient) CreateLead(ctx context.Context, lead *Lead) (string, error) {
	url := fmt.Sprintf("%s/Leads", c.baseURL)

	body := *lead
	if body.LastName == "" {
		body.LastName = "Unknown"
	}
	if body.Description == "" {
		body.Description = "conversation: " + lead.ConversationID
	}

	payload := map[string]interface{}{
		"data": []Lead{body},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", agenterrors.NewCRMUnavailableError(fmt.Errorf("failed to marshal lead: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", agenterrors.NewCRMUnavailableError(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Zoho-oauthtoken "+c.oauthToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", agenterrors.NewCRMUnavailableError(fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", agenterrors.NewCRMUnavailableError(fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", agenterrors.NewCRMUnavailableError(
			fmt.Errorf("lead creation failed (status %d): %s", resp.StatusCode, string(respBody)))
	}

	var createResp createLeadResponse
	if err := json.Unmarshal(respBody, &createResp); err != nil {
		return "", agenterrors.NewCRMUnavailableError(fmt.Errorf("failed to unmarshal response: %w", err))
	}

	if len(createResp.Data) == 0 {
		return "", agenterrors.NewCRMUnavailableError(fmt.Errorf("no data in response"))
	}

	if createResp.Data[0].Status != "success" {
		return "", agenterrors.NewCRMUnavailableError(
			fmt.Errorf("lead creation failed: %s", createResp.Data[0].Message))
	}

	return createResp.Data[0].Details.ID, nil
}

// SearchLeads looks up existing leads by email, used by the ops endpoints.
func (c *ZohoClient) SearchLeads(ctx context.Context, email string) ([]Lead, error) {
	url := fmt.Sprintf("%s/Leads/search?email=%s", c.baseURL, email)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, agenterrors.NewCRMUnavailableError(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Authorization", "Zoho-oauthtoken "+c.oauthToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, agenterrors.NewCRMUnavailableError(fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, agenterrors.NewCRMUnavailableError(
			fmt.Errorf("lead search failed (status %d): %s", resp.StatusCode, string(respBody)))
	}

	var result struct {
		Data []Lead `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, agenterrors.NewCRMUnavailableError(fmt.Errorf("failed to decode response: %w", err))
	}

	return result.Data, nil
}
