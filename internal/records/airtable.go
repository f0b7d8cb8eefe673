package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Field names in the enrollment table. The table is owned by the enrollment
// process; we never create rows, only read them and fill in the token address.
const (
	fieldWalletAddress = "Uniswap Wallet Address"
	fieldDisplayName   = "Preferred Name?"
	fieldImageLink     = "Personalized Acceptance Image Link"
	fieldTokenAddress  = "Acceptance token address"
)

// AirtableStore talks to an Airtable-compatible REST API.
type AirtableStore struct {
	baseURL string
	apiKey  string
	baseID  string
	table   string
	client  *http.Client
}

type AirtableConfig struct {
	BaseURL string // defaults to the public Airtable API
	APIKey  string
	BaseID  string
	Table   string
	Timeout time.Duration
}

func NewAirtableStore(cfg AirtableConfig) (*AirtableStore, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("airtable api key is required")
	}
	if cfg.BaseID == "" {
		return nil, fmt.Errorf("airtable base id is required")
	}
	if cfg.Table == "" {
		return nil, fmt.Errorf("airtable table name is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.airtable.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &AirtableStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.APIKey,
		baseID:  cfg.BaseID,
		table:   cfg.Table,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type airtableRecord struct {
	ID     string                 `json:"id"`
	Fields map[string]interface{} `json:"fields"`
}

type airtableList struct {
	Records []airtableRecord `json:"records"`
}

func (a *AirtableStore) Lookup(ctx context.Context, identity string) (*Record, error) {
	row, err := a.findRow(ctx, identity)
	if err != nil {
		return nil, err
	}

	rec := Record{
		Identity:           NormalizeIdentity(identity),
		DisplayName:        stringField(row.Fields, fieldDisplayName),
		ImageURI:           stringField(row.Fields, fieldImageLink),
		MintedAssetAddress: stringField(row.Fields, fieldTokenAddress),
	}
	return &rec, nil
}

func (a *AirtableStore) SetAssetAddress(ctx context.Context, identity, assetAddress string) error {
	row, err := a.findRow(ctx, identity)
	if err != nil {
		return err
	}

	if existing := stringField(row.Fields, fieldTokenAddress); existing != "" && existing != assetAddress {
		return ErrAddressConflict
	}

	body, err := json.Marshal(map[string]interface{}{
		"fields": map[string]string{fieldTokenAddress: assetAddress},
	})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/v0/%s/%s/%s", a.baseURL, a.baseID, url.PathEscape(a.table), row.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}
	return nil
}

// Ping verifies the table is reachable with the configured credentials.
func (a *AirtableStore) Ping(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/v0/%s/%s?maxRecords=1", a.baseURL, a.baseID, url.PathEscape(a.table))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkResponse(resp)
}

// findRow performs the exact-match lookup on the wallet address column.
func (a *AirtableStore) findRow(ctx context.Context, identity string) (*airtableRecord, error) {
	normalized := NormalizeIdentity(identity)
	formula := fmt.Sprintf("LOWER({%s}) = '%s'", fieldWalletAddress, normalized)

	endpoint := fmt.Sprintf("%s/v0/%s/%s?filterByFormula=%s",
		a.baseURL, a.baseID, url.PathEscape(a.table), url.QueryEscape(formula))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup record: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	blob, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read lookup response: %w", err)
	}
	if looksLikeHTML(blob) {
		return nil, fmt.Errorf("%w: store returned an HTML page", ErrMalformedResponse)
	}

	var list airtableList
	if err := json.Unmarshal(blob, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(list.Records) == 0 {
		return nil, ErrNotFound
	}
	return &list.Records[0], nil
}

// checkResponse maps HTTP-level failures onto the store error taxonomy. The
// body of a failed response is inspected so an HTML error page is reported as
// such rather than passed through raw. An HTTP 404 here means the base or
// table id is wrong, not that a row is missing; a missing row arrives as an
// empty records list, so ErrNotFound is never produced at this level.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrPermissionDenied, resp.StatusCode)
	case looksLikeHTML(snippet):
		return fmt.Errorf("%w: status %d, HTML error page", ErrMalformedResponse, resp.StatusCode)
	default:
		return fmt.Errorf("store request failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
}

func looksLikeHTML(body []byte) bool {
	trimmed := strings.TrimSpace(string(body))
	return strings.HasPrefix(trimmed, "<!DOCTYPE") || strings.HasPrefix(trimmed, "<html")
}

func stringField(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}
