// upload.go — загрузка пары документов и постановка анализа.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/bigkaa/rfpdesk/internal/domain/model"
	"github.com/bigkaa/rfpdesk/internal/domain/status"
	"github.com/bigkaa/rfpdesk/internal/storage/filestore"
	"github.com/bigkaa/rfpdesk/internal/storage/jobs"
)

// Enqueuer ставит задачу анализа записи. Реализация: AnalysisRunner.
type Enqueuer interface {
	Enqueue(ctx context.Context, rfpID string) (*jobs.Job, error)
}

// UploadParams — параметры загрузки.
type UploadParams struct {
	// RFPID — идентификатор записи. Пустой — генерируется UUID.
	RFPID string
	// RFP — содержимое документа RFP
	RFP io.Reader
	// RFPFileName — исходное имя документа RFP (для имени записи по умолчанию)
	RFPFileName string
	// Company — содержимое документа компании
	Company io.Reader
	// CompanyFileName — исходное имя документа компании
	CompanyFileName string
	// Name — имя записи (опционально)
	Name string
	// CompanyName — название компании (опционально)
	CompanyName string
	// Analyze — поставить анализ после сохранения документов
	Analyze bool
}

// UploadResult — результат загрузки.
type UploadResult struct {
	RFPID           string        `json:"rfpId"`
	PDFFileName     string        `json:"pdfFileName"`
	CompanyFileName string        `json:"companyFileName"`
	Status          status.Status `json:"status"`
	JobID           string        `json:"jobId,omitempty"`
}

// UploadService — загрузка документов.
type UploadService struct {
	assets   filestore.AssetStore
	records  *RecordService
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewUploadService создаёт сервис загрузки. enqueuer может быть nil —
// тогда анализ не ставится, запись остаётся в Pending.
func NewUploadService(
	assets filestore.AssetStore,
	records *RecordService,
	enqueuer Enqueuer,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		assets:   assets,
		records:  records,
		enqueuer: enqueuer,
		logger:   logger.With(slog.String("component", "upload_service")),
	}
}

// Upload сохраняет оба документа, создаёт или обновляет запись и ставит анализ.
//
// Поток:
//  1. Генерация id (если не задан) и валидация
//  2. Сохранение документов {rfp,company}_{id}.pdf
//  3. CreateOrMerge: имена файлов, статус Analyzing (или Pending без анализа)
//  4. Постановка задачи анализа
//
// Если задачу поставить не удалось, запись переводится в Analysis Failed.
func (s *UploadService) Upload(ctx context.Context, params UploadParams) (*UploadResult, error) {
	if params.RFP == nil || params.Company == nil {
		return nil, fmt.Errorf("%w: требуются оба документа: rfp и company", model.ErrValidation)
	}

	id := strings.TrimSpace(params.RFPID)
	if id == "" {
		id = uuid.New().String()
	}
	if err := model.ValidateID(id); err != nil {
		return nil, err
	}

	rfpSaved, err := s.assets.Put(ctx, id, model.RoleRFP, params.RFP)
	if err != nil {
		return nil, err
	}
	companySaved, err := s.assets.Put(ctx, id, model.RoleCompany, params.Company)
	if err != nil {
		return nil, err
	}

	analyze := params.Analyze && s.enqueuer != nil
	patch := model.Patch{
		ID:              id,
		PDFFileName:     model.Ptr(rfpSaved.FileName),
		CompanyFileName: model.Ptr(companySaved.FileName),
	}
	if analyze {
		patch.Status = model.Ptr(status.Analyzing)
		patch.Error = model.Ptr("")
	}
	if params.Name != "" {
		patch.Name = model.Ptr(params.Name)
	}
	if params.CompanyName != "" {
		patch.Company = model.Ptr(params.CompanyName)
	}

	// Для новой записи имя и компания берутся из имён файлов
	if _, err := s.records.Get(ctx, id); err != nil {
		if patch.Name == nil {
			patch.Name = model.Ptr(displayName(params.RFPFileName, "RFP "+id))
		}
		if patch.Company == nil {
			patch.Company = model.Ptr(displayName(params.CompanyFileName, "Unknown"))
		}
	}

	rec, created, err := s.records.CreateOrMerge(ctx, patch)
	if err != nil {
		return nil, err
	}

	result := &UploadResult{
		RFPID:           id,
		PDFFileName:     rfpSaved.FileName,
		CompanyFileName: companySaved.FileName,
		Status:          rec.Status,
	}

	s.logger.Info("Документы загружены",
		slog.String("rfp_id", id),
		slog.Bool("created", created),
		slog.Int64("rfp_size", rfpSaved.Size),
		slog.Int64("company_size", companySaved.Size),
		slog.String("rfp_checksum", rfpSaved.Checksum),
	)

	if !analyze {
		return result, nil
	}

	job, err := s.enqueuer.Enqueue(ctx, id)
	if err != nil {
		s.logger.Error("Не удалось поставить анализ",
			slog.String("rfp_id", id),
			slog.String("error", err.Error()),
		)
		if failed, _, mergeErr := s.records.CreateOrMerge(ctx, model.FailurePatch(id, err)); mergeErr == nil {
			result.Status = failed.Status
		}
		return result, nil
	}

	result.JobID = job.JobID
	return result, nil
}

// displayName — имя файла без расширения или fallback.
func displayName(fileName, fallback string) string {
	base := strings.TrimSpace(filepath.Base(fileName))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == "/" {
		return fallback
	}
	return base
}
