// compliance.go — синхронная проверка соответствия по id записи.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bigkaa/rfpdesk/internal/analysis"
	"github.com/bigkaa/rfpdesk/internal/domain/model"
	"github.com/bigkaa/rfpdesk/internal/poller"
	"github.com/bigkaa/rfpdesk/internal/storage/filestore"
)

// errAssetsNotLinked — запись ещё не ссылается на оба документа.
var errAssetsNotLinked = errors.New("запись ещё не ссылается на оба документа")

// ComplianceService — проверка соответствия: загружает документы записи
// и синхронно вызывает сервис анализа. Запись не меняется.
type ComplianceService struct {
	records  *RecordService
	assets   filestore.AssetStore
	analyzer analysis.Analyzer
	retry    poller.RetryPolicy
	logger   *slog.Logger
}

// NewComplianceService создаёт сервис проверки.
// attempts и delay — ожидание имён документов у только что созданной записи.
func NewComplianceService(
	records *RecordService,
	assets filestore.AssetStore,
	analyzer analysis.Analyzer,
	attempts int,
	delay time.Duration,
	logger *slog.Logger,
) *ComplianceService {
	return &ComplianceService{
		records:  records,
		assets:   assets,
		analyzer: analyzer,
		retry: poller.RetryPolicy{
			Attempts:  attempts,
			Delay:     delay,
			Retryable: func(err error) bool { return errors.Is(err, errAssetsNotLinked) },
		},
		logger: logger.With(slog.String("component", "compliance_service")),
	}
}

// Check выполняет проверку соответствия для записи rfpID.
//
// Ошибки:
//   - model.ErrValidation — пустой или некорректный id
//   - model.ErrNotFound — нет записи, имён документов или самих документов
//   - model.ErrAnalysisFailed — ошибка сервиса анализа
func (s *ComplianceService) Check(ctx context.Context, rfpID string) (*model.AnalysisResult, error) {
	rfpID = strings.TrimSpace(rfpID)
	if rfpID == "" {
		return nil, fmt.Errorf("%w: rfpId обязателен", model.ErrValidation)
	}
	if err := model.ValidateID(rfpID); err != nil {
		return nil, err
	}

	var rec *model.RFP
	_, err := s.retry.Do(ctx, func(ctx context.Context, _ int) error {
		r, err := s.records.Get(ctx, rfpID)
		if err != nil {
			return err
		}
		if !r.HasAssets() {
			return errAssetsNotLinked
		}
		rec = r
		return nil
	})
	if errors.Is(err, errAssetsNotLinked) {
		return nil, fmt.Errorf("%w: документы записи %s не найдены", model.ErrNotFound, rfpID)
	}
	if err != nil {
		return nil, err
	}

	rfpPDF, err := readAsset(ctx, s.assets, rec.PDFFileName)
	if err != nil {
		return nil, err
	}
	companyPDF, err := readAsset(ctx, s.assets, rec.CompanyFileName)
	if err != nil {
		return nil, err
	}

	result, err := s.analyzer.Submit(ctx, rfpPDF, companyPDF)
	if err != nil {
		s.logger.Warn("Проверка соответствия завершилась ошибкой",
			slog.String("rfp_id", rfpID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("Проверка соответствия выполнена",
		slog.String("rfp_id", rfpID),
		slog.String("status", result.Status.String()),
	)
	return result, nil
}
