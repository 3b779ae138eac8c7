package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/icheer/qwenchat2api/pkg/credential"
)

func TestAdminImport(t *testing.T) {
	m := newManager(t)
	h := NewAdminHandler(m)

	body := `{"lines": [
		"token=sk-first-token-value; ssxmod_itna=cookie-one",
		"token=sk-second-token-value; ssxmod_itna=cookie-two",
		"token=sk-first-token-value; ssxmod_itna=cookie-one"
	]}`

	rec := httptest.NewRecorder()
	h.Import(rec, httptest.NewRequest(http.MethodPost, "/admin/credentials/import", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp ImportResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	// The third line duplicates the first; duplicates do not count.
	if resp.TokensAdded != 2 {
		t.Errorf("TokensAdded = %d, want 2", resp.TokensAdded)
	}
	if resp.CookiesAdded != 2 {
		t.Errorf("CookiesAdded = %d, want 2", resp.CookiesAdded)
	}
}

func TestAdminImportRejectsEmptyLines(t *testing.T) {
	h := NewAdminHandler(newManager(t))

	rec := httptest.NewRecorder()
	h.Import(rec, httptest.NewRequest(http.MethodPost, "/admin/credentials/import", strings.NewReader(`{"lines": []}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAdminStatusMasksSecrets(t *testing.T) {
	m := newManager(t)
	mustInsert(t, m, credential.KindToken, "sk-verysecret-token-value-123456")
	if err := m.Invalidate(context.Background(), credential.KindToken, "sk-verysecret-token-value-123456"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	mustInsert(t, m, credential.KindToken, "sk-another-valid-token-7890")

	h := NewAdminHandler(m)
	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/admin/credentials", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "verysecret") {
		t.Fatal("status response leaks a raw secret")
	}

	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp.Tokens.Valid != 1 || resp.Tokens.Invalid != 1 {
		t.Errorf("tokens: valid=%d invalid=%d, want 1/1", resp.Tokens.Valid, resp.Tokens.Invalid)
	}
	if len(resp.Tokens.Credentials) != 2 {
		t.Errorf("got %d token entries, want 2", len(resp.Tokens.Credentials))
	}
	if resp.Cookies.Valid != 0 || len(resp.Cookies.Credentials) != 0 {
		t.Errorf("cookie pool should be empty: %+v", resp.Cookies)
	}
}

func TestAdminPurge(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	mustInsert(t, m, credential.KindToken, "sk-token-to-purge-000001")
	mustInsert(t, m, credential.KindToken, "sk-token-to-keep-000002")
	if err := m.Invalidate(ctx, credential.KindToken, "sk-token-to-purge-000001"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	h := NewAdminHandler(m)
	rec := httptest.NewRecorder()
	h.Purge(rec, httptest.NewRequest(http.MethodPost, "/admin/credentials/purge", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp PurgeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp.TokensRemoved != 1 {
		t.Errorf("TokensRemoved = %d, want 1", resp.TokensRemoved)
	}
	if resp.CookiesRemoved != 0 {
		t.Errorf("CookiesRemoved = %d, want 0", resp.CookiesRemoved)
	}

	valid, invalid, err := m.Counts(ctx, credential.KindToken)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if valid != 1 || invalid != 0 {
		t.Errorf("token pool after purge: valid=%d invalid=%d, want 1/0", valid, invalid)
	}
}
