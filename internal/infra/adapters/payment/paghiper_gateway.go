package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blablabl4/StreamAssist/internal/config"
	"github.com/blablabl4/StreamAssist/internal/domain/model"
	"github.com/blablabl4/StreamAssist/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*PagHiperGateway)(nil)

// PagHiperGateway implements adapter.PaymentGateway against the PagHiper
// PIX API. Charge creation goes through the PIX host; status queries try
// the PIX endpoint first and fall back to the generic transaction endpoint,
// because settled PIX invoices occasionally only resolve on the latter.
type PagHiperGateway struct {
	apiKey     string
	token      string
	baseURL    string
	pixBaseURL string
	client     *http.Client
}

func NewPagHiperGateway(cfg config.PagHiperConfig) (*PagHiperGateway, error) {
	if cfg.APIKey == "" || cfg.Token == "" {
		return nil, errors.New("paghiper api key/token empty")
	}
	for _, u := range []string{cfg.BaseURL, cfg.PixBaseURL} {
		if _, err := url.Parse(u); err != nil {
			return nil, fmt.Errorf("invalid paghiper url %q: %w", u, err)
		}
	}
	return &PagHiperGateway{
		apiKey:     cfg.APIKey,
		token:      cfg.Token,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		pixBaseURL: strings.TrimRight(cfg.PixBaseURL, "/"),
		client:     &http.Client{Timeout: 20 * time.Second},
	}, nil
}

func (g *PagHiperGateway) Name() string { return "paghiper" }

// CreateCharge posts /invoice/create/ and normalizes the response fields,
// which vary in shape between PagHiper API revisions.
func (g *PagHiperGateway) CreateCharge(ctx context.Context, phone string, plan model.Plan) (*model.Charge, error) {
	orderID := fmt.Sprintf("STREAM-%d", time.Now().UnixMilli())
	payload := map[string]any{
		"apiKey":         g.apiKey,
		"token":          g.token,
		"order_id":       orderID,
		"payer_email":    phone + "@whatsapp.local",
		"payer_name":     "Cliente StreamAssist",
		"payer_phone":    phone,
		"days_due_date":  "1",
		"items": []map[string]string{{
			"item_id":     "1",
			"description": fmt.Sprintf("Assinatura StreamAssist - Plano %s", plan.Name),
			"quantity":    "1",
			"price_cents": fmt.Sprintf("%d", plan.PriceCents),
		}},
	}
	b, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, g.pixBaseURL+"/invoice/create/", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out struct {
		CreateRequest struct {
			Result          string `json:"result"`
			ResponseMessage string `json:"response_message"`
			TransactionID   string `json:"transaction_id"`
			OrderID         string `json:"order_id"`
		} `json:"create_request"`
		PixCreateRequest struct {
			QRCodeImageURL string          `json:"qrcode_image_url"`
			PixCode        json.RawMessage `json:"pix_code"`
			TransactionID  string          `json:"transaction_id"`
		} `json:"pix_create_request"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.CreateRequest.Result == "reject" {
		return nil, fmt.Errorf("paghiper reject: %s", out.CreateRequest.ResponseMessage)
	}

	txID := out.CreateRequest.TransactionID
	if txID == "" {
		txID = out.PixCreateRequest.TransactionID
	}
	if txID == "" {
		return nil, errors.New("paghiper response missing transaction id")
	}
	oid := out.CreateRequest.OrderID
	if oid == "" {
		oid = orderID
	}

	qrLink := out.PixCreateRequest.QRCodeImageURL
	qrText := decodePixCode(out.PixCreateRequest.PixCode)
	if qrLink == "" && qrText != "" {
		if strings.HasPrefix(strings.ToLower(qrText), "http") {
			qrLink = qrText
		} else {
			qrLink = "https://api.qrserver.com/v1/create-qr-code/?size=300x300&data=" + url.QueryEscape(qrText)
		}
	}

	return &model.Charge{
		TransactionID: txID,
		OrderID:       oid,
		Plan:          plan.ID,
		AmountCents:   plan.PriceCents,
		DueAt:         time.Now().Add(24 * time.Hour),
		QRCodeLink:    qrLink,
		QRCodeText:    qrText,
	}, nil
}

// decodePixCode tolerates both a bare string and the structured object some
// gateway revisions return for pix_code.
func decodePixCode(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		EMV       string `json:"emv"`
		CopyPaste string `json:"copy_paste"`
		Text      string `json:"text"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, v := range []string{obj.EMV, obj.CopyPaste, obj.Text} {
			if v != "" {
				return v
			}
		}
	}
	return ""
}

// QueryStatus performs one settlement check. Transport failures are folded
// into the result so polling loops treat them as "not yet confirmed".
func (g *PagHiperGateway) QueryStatus(ctx context.Context, txID string) model.PaymentQueryResult {
	if txID == "" {
		return model.PaymentQueryResult{Err: "empty transaction id"}
	}
	payload := map[string]string{
		"apiKey":         g.apiKey,
		"token":          g.token,
		"transaction_id": txID,
	}

	if res, err := g.statusRequest(ctx, g.pixBaseURL+"/invoice/status/", payload); err == nil {
		return res
	}
	res, err := g.statusRequest(ctx, g.baseURL+"/transaction/status/", payload)
	if err != nil {
		return model.PaymentQueryResult{Err: err.Error()}
	}
	return res
}

func (g *PagHiperGateway) statusRequest(ctx context.Context, endpoint string, payload map[string]string) (model.PaymentQueryResult, error) {
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return model.PaymentQueryResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return model.PaymentQueryResult{}, err
	}
	defer resp.Body.Close()

	var out struct {
		StatusRequest struct {
			Result string `json:"result"`
			Status string `json:"status"`
		} `json:"status_request"`
		Result string `json:"result"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.PaymentQueryResult{}, err
	}

	status := out.StatusRequest.Status
	if status == "" {
		status = out.Status
	}
	result := out.StatusRequest.Result
	if result == "" {
		result = out.Result
	}
	return model.PaymentQueryResult{
		Confirmed:     result == "success" && settled(status),
		SettledStatus: status,
	}, nil
}

func settled(status string) bool {
	return status == "paid" || status == "completed"
}
