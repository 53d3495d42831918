// Package crmsync pushes single leads to the external CRM synchronization
// collaborator. Calls are fire-and-forget per lead; on success the lead's
// synced flag is persisted locally.
package crmsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/leadboard/leadboard/pkg/domain"
	"github.com/leadboard/leadboard/pkg/leads"
	"github.com/leadboard/leadboard/pkg/logger"
	"github.com/leadboard/leadboard/pkg/metrics"
	"github.com/leadboard/leadboard/pkg/schema"
)

// ErrSyncFailed is returned when the CRM collaborator rejects a lead
var ErrSyncFailed = errors.New("failed to sync lead to CRM")

// Client calls the CRM sync collaborator over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new CRM sync client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type syncRequest struct {
	Lead schema.Lead `json:"lead"`
}

// Sync pushes one lead to the CRM
func (c *Client) Sync(ctx context.Context, lead schema.Lead) error {
	if c.baseURL == "" {
		return fmt.Errorf("CRM sync URL not configured")
	}

	payload, err := json.Marshal(syncRequest{Lead: lead})
	if err != nil {
		return fmt.Errorf("failed to marshal lead: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ErrSyncFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ErrSyncFailed
	}
	return nil
}

// Service combines the sync client with the local synced-flag bookkeeping
type Service struct {
	client      domain.SyncClient
	leadService *leads.Service
	logger      logger.Logger
}

// NewService creates a new CRM sync service
func NewService(client domain.SyncClient, leadService *leads.Service, log logger.Logger) *Service {
	return &Service{client: client, leadService: leadService, logger: log}
}

// SyncLead pushes the lead and, on success, marks it synced
func (s *Service) SyncLead(ctx context.Context, lead schema.Lead) error {
	if err := s.client.Sync(ctx, lead); err != nil {
		metrics.RecordSync("error")
		return err
	}
	metrics.RecordSync("ok")
	if err := s.leadService.MarkSynced(ctx, lead.UserID, lead.ID); err != nil {
		s.logger.Error("lead synced but flag not persisted", "lead_id", lead.ID, "error", err)
		return err
	}
	return nil
}
