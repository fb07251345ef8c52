// Пакет analysis — HTTP-клиент внешнего сервиса анализа документов.
// Отправляет пару PDF (RFP и данные компании) одним multipart-запросом
// и нормализует ответ в model.AnalysisResult (см. Parse).
package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/bigkaa/rfpdesk/internal/domain/model"
)

// maxResponseSize — ограничение размера тела ответа сервиса анализа.
const maxResponseSize = 8 << 20

// Имена частей multipart-запроса, ожидаемые сервисом анализа.
const (
	partCompany     = "company_pdf"
	partRFP         = "rfp_pdf"
	fileNameCompany = "company_data.pdf"
	fileNameRFP     = "rfp.pdf"
)

// Analyzer — отправка документов на анализ. Реализация: Client.
type Analyzer interface {
	Submit(ctx context.Context, rfpPDF, companyPDF []byte) (*model.AnalysisResult, error)
}

// ResponseError — сервис анализа ответил статусом вне 2xx.
type ResponseError struct {
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("сервис анализа вернул HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("сервис анализа вернул HTTP %d: %s", e.StatusCode, e.Body)
}

// Unwrap позволяет сопоставлять ошибку с model.ErrAnalysisFailed.
func (e *ResponseError) Unwrap() error { return model.ErrAnalysisFailed }

// Retryable — true для ошибок, которые имеет смысл повторить:
// сетевые ошибки, таймауты, 5xx и 429. Ошибки разбора ответа
// и 4xx повторять бесполезно.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var re *ResponseError
	if errors.As(err, &re) {
		return re.StatusCode >= 500 || re.StatusCode == http.StatusTooManyRequests
	}
	var te *transportError
	return errors.As(err, &te)
}

// transportError — запрос не дошёл до сервиса или ответ не прочитан.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() []error {
	return []error{model.ErrAnalysisFailed, e.err}
}

// Client — HTTP-клиент сервиса анализа.
type Client struct {
	httpClient *http.Client
	endpoint   string
	logger     *slog.Logger
}

var _ Analyzer = (*Client)(nil)

// New создаёт клиент сервиса анализа.
// endpoint — URL, принимающий multipart POST (RFP_ANALYSIS_URL).
// timeout — общий таймаут запроса (RFP_ANALYSIS_TIMEOUT).
func New(endpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		endpoint: endpoint,
		logger:   logger.With(slog.String("component", "analysis_client")),
	}
}

// Submit отправляет документы на анализ и возвращает нормализованный результат.
// Любая ошибка (сеть, статус вне 2xx, пустой или некорректный ответ)
// оборачивает model.ErrAnalysisFailed.
func (c *Client) Submit(ctx context.Context, rfpPDF, companyPDF []byte) (*model.AnalysisResult, error) {
	body, contentType, err := buildMultipart(rfpPDF, companyPDF)
	if err != nil {
		return nil, fmt.Errorf("%w: формирование запроса: %v", model.ErrAnalysisFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: создание запроса: %v", model.ErrAnalysisFailed, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json, text/plain")

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:gosec // URL из конфигурации
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("запрос к сервису анализа %s: %w", c.endpoint, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("чтение ответа сервиса анализа: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Сервис анализа вернул ошибку",
			slog.Int("status", resp.StatusCode),
			slog.Duration("duration", time.Since(start)),
		)
		return nil, &ResponseError{StatusCode: resp.StatusCode, Body: errorSnippet(data)}
	}

	result, err := Parse(resp.Header.Get("Content-Type"), data)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Анализ выполнен",
		slog.String("status", result.Status.String()),
		slog.Int("matches", len(result.Eligibility.Matches)),
		slog.Int("mismatches", len(result.Eligibility.Mismatches)),
		slog.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func buildMultipart(rfpPDF, companyPDF []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	parts := []struct {
		field, file string
		data        []byte
	}{
		{partCompany, fileNameCompany, companyPDF},
		{partRFP, fileNameRFP, rfpPDF},
	}
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.file))
		h.Set("Content-Type", "application/pdf")
		pw, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := pw.Write(p.data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// errorSnippet извлекает текст ошибки из тела ответа: поле "error"
// JSON-объекта или первые 200 байт тела.
func errorSnippet(data []byte) string {
	if msg := jsonErrorField(data); msg != "" {
		return msg
	}
	s := string(bytes.TrimSpace(data))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
