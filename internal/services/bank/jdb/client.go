package jdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"gatepass/internal/status"
	"gatepass/utils"
)

// client talks to the JDB dynamic-QR API. Every request body is signed
// with the partner HMAC key; authenticated calls additionally carry the
// short-lived access token, which refreshTokenLoop keeps fresh.
type client struct {
	baseURL   string
	partnerID string
	clientID  string
	clientKey string
	hmacKey   string

	mu          sync.Mutex
	accessToken string

	// tokenExpired wakes the refresh loop early after a 401.
	tokenExpired chan struct{}

	hc *http.Client
}

func newClient(baseURL, partnerID, clientID, clientKey, hmacKey string) *client {
	return &client{
		baseURL:   baseURL,
		partnerID: partnerID,
		clientID:  clientID,
		clientKey: clientKey,
		hmacKey:   hmacKey,

		tokenExpired: make(chan struct{}, 1),

		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// refreshTokenLoop renews the access token on a fixed period and
// whenever a request comes back 401, retrying with exponential backoff
// until the context ends.
func (c *client) refreshTokenLoop(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:

		case <-c.tokenExpired:
			log.Println("jdb: access token rejected, refreshing")
		}

		backOff := time.Second

	Retry:
		for {
			token, err := c.authenticate(ctx)
			switch err {
			case nil:
				c.setAccessToken(token)
				break Retry

			default:
				log.Printf("jdb: token refresh: %v", err)
				select {
				case <-ctx.Done():
					return

				case <-time.After(backOff):
					backOff *= 2
				}
			}
		}
	}
}

func (c *client) setAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

func (c *client) getAccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

func (c *client) signalTokenExpired() {
	select {
	case c.tokenExpired <- struct{}{}:
	default:
	}
}

// authenticate exchanges the partner credentials for an access token.
func (c *client) authenticate(ctx context.Context) (string, error) {
	requestID, err := utils.GenerateOTP(10)
	if err != nil {
		return "", fmt.Errorf("jdb authenticate: request id: %v", err)
	}

	body := fmt.Sprintf(`{"requestId":%q,"partnerId":%q,"clientId":%q,"clientScret":"%s"}`, requestID, c.partnerID, c.clientID, c.clientKey)

	resp, err := c.post(ctx, "/api/pro/dynamic/autenticate", body, false)
	if err != nil {
		return "", fmt.Errorf("jdb authenticate: %w", err)
	}
	defer resp.Body.Close()

	var reply struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			AccessToken string `json:"accessToken"`
			TokenType   string `json:"tokenType"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("jdb authenticate: decode: %v", err)
	}
	if reply.Status != "OK" {
		return "", fmt.Errorf("jdb authenticate: status %v: %v", reply.Status, reply.Message)
	}

	return fmt.Sprintf("%s %s", reply.Data.TokenType, reply.Data.AccessToken), nil
}

// generateQR opens a dynamic QR order and returns its EMV payload.
func (c *client) generateQR(ctx context.Context, f *status.OrderForm) (string, error) {
	requestID, err := utils.GenerateOTP(10)
	if err != nil {
		return "", fmt.Errorf("jdb generateQR: request id: %v", err)
	}

	body := fmt.Sprintf(`{"requestId":%q,"partnerId":%q,"txnAmount":%s,"mechantId":%q,"billNumber":%q,"terminalId":%q,"terminalLabel":%q,"mobileNo":%q}`,
		requestID, c.partnerID, f.Amount, f.MerchantID, f.UUID, f.TerminalLabel, f.ReferenceLabel, f.Phone)

	resp, err := c.post(ctx, "/api/pro/dynamic/generateQr", body, true)
	if err != nil {
		return "", fmt.Errorf("jdb generateQR: %w", err)
	}
	defer resp.Body.Close()

	var reply struct {
		Message string `json:"message"`
		Status  string `json:"status"`
		Data    struct {
			MerchantID string `json:"mcid"`
			EmvCode    string `json:"emv"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("jdb generateQR: decode: %w", err)
	}
	if reply.Status != "OK" {
		return "", fmt.Errorf("jdb generateQR: status %v: %v", reply.Status, reply.Message)
	}

	return reply.Data.EmvCode, nil
}

// lookupTransaction asks JDB whether the order settled. NOT_FOUND means
// no payment exists for the bill number.
func (c *client) lookupTransaction(ctx context.Context, uuid string) (*status.Transaction, error) {
	requestID, err := utils.GenerateOTP(10)
	if err != nil {
		return nil, fmt.Errorf("jdb lookupTransaction: request id: %v", err)
	}

	body := fmt.Sprintf(`{"requestId":%q,"billNumber":%q}`, requestID, uuid)

	resp, err := c.post(ctx, "/api/pro/dynamic/checkTransaction", body, true)
	if err != nil {
		return nil, fmt.Errorf("jdb lookupTransaction: %w", err)
	}
	defer resp.Body.Close()

	var reply struct {
		Message string `json:"message"`
		Status  string `json:"status"`
		Data    struct {
			payload
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("jdb lookupTransaction: decode: %v", err)
	}
	if reply.Status != "OK" {
		if reply.Status == "NOT_FOUND" {
			return nil, errors.New("payment not found")
		}
		return nil, fmt.Errorf("jdb lookupTransaction: status %v: %v", reply.Status, reply.Message)
	}

	tran, err := reply.Data.payload.toDomain()
	if err != nil {
		return nil, fmt.Errorf("jdb lookupTransaction: payload: %v", err)
	}

	return tran, nil
}

func (c *client) post(ctx context.Context, path, body string, authed bool) (*http.Response, error) {
	base, _ := url.Parse(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", base.String(), path), bytes.NewReader([]byte(body)))
	if err != nil {
		return nil, fmt.Errorf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("SignedHash", utils.Hmac256([]byte(body), []byte(c.hmacKey)))
	if authed {
		req.Header.Set("Authorization", c.getAccessToken())
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do: %v", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		c.signalTokenExpired()
		return nil, errors.New("unauthorized")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return resp, nil
}
