package provision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/blablabl4/StreamAssist/internal/config"
	"github.com/blablabl4/StreamAssist/internal/domain/model"
	"github.com/blablabl4/StreamAssist/internal/domain/ports/adapter"
)

var _ adapter.ProvisioningGateway = (*PanelGateway)(nil)

// PanelGateway creates accounts through the operator panel's HTTP API.
// One call per account; the panel generates the username/password pair and
// the playlist links.
type PanelGateway struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

func NewPanelGateway(cfg config.ProvisionConfig) (*PanelGateway, error) {
	if cfg.PanelURL == "" {
		return nil, errors.New("panel url empty")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("panel credentials empty")
	}
	return &PanelGateway{
		baseURL:  strings.TrimRight(cfg.PanelURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		client:   &http.Client{Timeout: 90 * time.Second}, // account creation is slow upstream
	}, nil
}

func (g *PanelGateway) Provision(ctx context.Context, req adapter.ProvisionRequest) (*model.Credentials, error) {
	kind := "trial"
	if req.Class == model.AccountOfficial {
		kind = "official"
	}
	payload := map[string]any{
		"username": g.username,
		"password": g.password,
		"type":     kind,
		"package":  req.PackageID,
		"phone":    req.Phone,
		"note":     req.Note,
	}
	b, _ := json.Marshal(payload)
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/accounts", bytes.NewReader(b))
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("panel request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("panel http %d", resp.StatusCode)
	}

	var out struct {
		Success   bool     `json:"success"`
		Error     string   `json:"error"`
		Username  string   `json:"username"`
		Password  string   `json:"password"`
		ExpiresAt string   `json:"expires_at"`
		Links     []string `json:"links"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("panel response: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("panel error: %s", out.Error)
	}

	creds := &model.Credentials{
		Username:    out.Username,
		Password:    out.Password,
		AccessLinks: out.Links,
	}
	if out.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, out.ExpiresAt); err == nil {
			creds.ExpiresAt = t
		}
	}
	return creds, nil
}
