// Пакет client — HTTP-клиент API RFP Desk.
// Используется утилитой rfpwatch для опроса статуса записи.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bigkaa/rfpdesk/internal/api/generated"
	"github.com/bigkaa/rfpdesk/internal/domain/model"
	"github.com/bigkaa/rfpdesk/internal/domain/status"
)

// maxErrorBody — сколько байт тела ошибки читается для сообщения.
const maxErrorBody = 64 << 10

// APIError — ответ API с кодом ошибки.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap сопоставляет 404 с model.ErrNotFound, 400 — с model.ErrValidation.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return model.ErrNotFound
	case http.StatusBadRequest:
		return model.ErrValidation
	}
	return nil
}

// Client — клиент API RFP Desk.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New создаёт клиент. baseURL — адрес сервиса (например, http://localhost:8080).
func New(baseURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: некорректный адрес сервиса %q", model.ErrValidation, baseURL)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "rfpdesk_client")),
	}, nil
}

// GetRFP возвращает запись по id.
func (c *Client) GetRFP(ctx context.Context, id string) (*model.RFP, error) {
	var rec model.RFP
	if err := c.do(ctx, http.MethodGet, "/rfps/"+url.PathEscape(id), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Status возвращает текущий статус записи.
func (c *Client) Status(ctx context.Context, id string) (status.Status, error) {
	rec, err := c.GetRFP(ctx, id)
	if err != nil {
		return "", err
	}
	return rec.Status, nil
}

// Analyze ставит повторный анализ записи.
func (c *Client) Analyze(ctx context.Context, id string) (*generated.AnalyzeResponse, error) {
	var resp generated.AnalyzeResponse
	if err := c.do(ctx, http.MethodPost, "/rfps/"+url.PathEscape(id)+"/analyze", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do выполняет запрос без тела и разбирает JSON-ответ в out.
func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("создание запроса %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("запрос %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("разбор ответа %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var parsed struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Code != "" {
		apiErr.Code = parsed.Error.Code
		apiErr.Message = parsed.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
