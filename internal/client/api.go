package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"safe-pickup-api-server/internal/models"
)

// API là REST client dùng để tải lại trạng thái sau mỗi lần kết nối.
type API struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewAPI(baseURL, token string) *API {
	return &API{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api: status %d: %s", e.Code, e.Message)
}

func (a *API) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &StatusError{Code: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (a *API) PendingPickups(ctx context.Context) ([]models.PickupSummary, error) {
	var out []models.PickupSummary
	err := a.do(ctx, http.MethodGet, "/api/v1/pickups?status="+url.QueryEscape(string(models.StatusPending)), nil, &out)
	return out, err
}

func (a *API) ActiveCodes(ctx context.Context) ([]models.QRCodeDisplay, error) {
	var out []models.QRCodeDisplay
	err := a.do(ctx, http.MethodGet, "/api/v1/codes", nil, &out)
	return out, err
}

func (a *API) Notifications(ctx context.Context) ([]models.Notification, error) {
	var out []models.Notification
	err := a.do(ctx, http.MethodGet, "/api/v1/notifications", nil, &out)
	return out, err
}

// MarkNotificationRead báo server là thiết bị đã đọc. Best-effort: lỗi không ảnh hưởng
// tập đã đọc cục bộ.
func (a *API) MarkNotificationRead(ctx context.Context, id, deviceID string) error {
	return a.do(ctx, http.MethodPost, "/api/v1/notifications/"+url.PathEscape(id)+"/read",
		map[string]string{"deviceId": deviceID}, nil)
}
