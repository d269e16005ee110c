package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/blablabl4/StreamAssist/internal/config"
	"github.com/blablabl4/StreamAssist/internal/domain/model"
)

func newGateway(t *testing.T, pixHandler, apiHandler http.HandlerFunc) *PagHiperGateway {
	t.Helper()
	if apiHandler == nil {
		apiHandler = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unexpected call", http.StatusTeapot)
		}
	}
	pix := httptest.NewServer(pixHandler)
	t.Cleanup(pix.Close)
	api := httptest.NewServer(apiHandler)
	t.Cleanup(api.Close)

	g, err := NewPagHiperGateway(config.PagHiperConfig{
		APIKey:     "apk_test",
		Token:      "tok_test",
		BaseURL:    api.URL,
		PixBaseURL: pix.URL,
	})
	if err != nil {
		t.Fatalf("NewPagHiperGateway failed: %v", err)
	}
	return g
}

func TestPagHiperGateway_CreateCharge(t *testing.T) {
	ctx := context.Background()
	plan := model.DefaultPlans["2"]

	t.Run("normalizes a string pix_code response", func(t *testing.T) {
		// --- Arrange ---
		g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["apiKey"] != "apk_test" {
				t.Errorf("apiKey not sent in body")
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"create_request": map[string]any{
					"result":         "success",
					"transaction_id": "TX-abc",
					"order_id":       "ORDER-1",
				},
				"pix_create_request": map[string]any{
					"qrcode_image_url": "https://pix.example/qr.png",
					"pix_code":         "00020126360014br.gov.bcb.pix",
				},
			})
		}, nil)

		// --- Act ---
		charge, err := g.CreateCharge(ctx, "5511999990000", plan)

		// --- Assert ---
		if err != nil {
			t.Fatalf("CreateCharge failed: %v", err)
		}
		if charge.TransactionID != "TX-abc" {
			t.Errorf("tx id = %q, want TX-abc", charge.TransactionID)
		}
		if charge.QRCodeText != "00020126360014br.gov.bcb.pix" {
			t.Errorf("qr text = %q", charge.QRCodeText)
		}
		if charge.QRCodeLink != "https://pix.example/qr.png" {
			t.Errorf("qr link = %q", charge.QRCodeLink)
		}
		if charge.AmountCents != plan.PriceCents {
			t.Errorf("amount = %d, want %d", charge.AmountCents, plan.PriceCents)
		}
	})

	t.Run("normalizes an object pix_code and derives a qr link", func(t *testing.T) {
		// --- Arrange ---
		g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"pix_create_request": map[string]any{
					"transaction_id": "TX-def",
					"pix_code":       map[string]string{"emv": "00020126emv-payload"},
				},
			})
		}, nil)

		// --- Act ---
		charge, err := g.CreateCharge(ctx, "5511999990000", plan)

		// --- Assert ---
		if err != nil {
			t.Fatalf("CreateCharge failed: %v", err)
		}
		if charge.TransactionID != "TX-def" {
			t.Errorf("tx id = %q, want from pix_create_request", charge.TransactionID)
		}
		if charge.QRCodeText != "00020126emv-payload" {
			t.Errorf("qr text = %q", charge.QRCodeText)
		}
		if !strings.Contains(charge.QRCodeLink, "qrserver.com") {
			t.Errorf("qr link = %q, want a derived qrserver link", charge.QRCodeLink)
		}
	})

	t.Run("surfaces gateway rejection", func(t *testing.T) {
		// --- Arrange ---
		g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"create_request": map[string]any{
					"result":           "reject",
					"response_message": "invalid credentials",
				},
			})
		}, nil)

		// --- Act ---
		_, err := g.CreateCharge(ctx, "5511999990000", plan)

		// --- Assert ---
		if err == nil || !strings.Contains(err.Error(), "invalid credentials") {
			t.Errorf("err = %v, want the gateway message", err)
		}
	})
}

func TestPagHiperGateway_QueryStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("paid status on the pix endpoint confirms", func(t *testing.T) {
		// --- Arrange ---
		g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status_request": map[string]any{"result": "success", "status": "paid"},
			})
		}, nil)

		// --- Act ---
		res := g.QueryStatus(ctx, "TX-1")

		// --- Assert ---
		if !res.Confirmed || res.SettledStatus != "paid" {
			t.Errorf("res = %+v, want confirmed paid", res)
		}
	})

	t.Run("falls back to the transaction endpoint", func(t *testing.T) {
		// --- Arrange ---
		pixDown := func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("not json"))
		}
		api := func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"result": "success", "status": "completed"})
		}
		g := newGateway(t, pixDown, api)

		// --- Act ---
		res := g.QueryStatus(ctx, "TX-2")

		// --- Assert ---
		if !res.Confirmed || res.SettledStatus != "completed" {
			t.Errorf("res = %+v, want confirmed via fallback", res)
		}
	})

	t.Run("pending settles as unconfirmed without error", func(t *testing.T) {
		// --- Arrange ---
		g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status_request": map[string]any{"result": "success", "status": "pending"},
			})
		}, nil)

		// --- Act ---
		res := g.QueryStatus(ctx, "TX-3")

		// --- Assert ---
		if res.Confirmed {
			t.Error("pending must not confirm")
		}
		if res.Err != "" {
			t.Errorf("err = %q, want none", res.Err)
		}
	})

	t.Run("transport failure folds into the result", func(t *testing.T) {
		// --- Arrange ---
		g, err := NewPagHiperGateway(config.PagHiperConfig{
			APIKey:     "apk_test",
			Token:      "tok_test",
			BaseURL:    "http://127.0.0.1:1",
			PixBaseURL: "http://127.0.0.1:1",
		})
		if err != nil {
			t.Fatalf("NewPagHiperGateway failed: %v", err)
		}

		// --- Act ---
		res := g.QueryStatus(ctx, "TX-4")

		// --- Assert ---
		if res.Confirmed {
			t.Error("transport failure must not confirm")
		}
		if res.Err == "" {
			t.Error("expected the transport error in the result")
		}
	})
}
