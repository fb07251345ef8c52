// files.go — выдача документов и загрузка пары PDF.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	apierrors "github.com/bigkaa/rfpdesk/internal/api/errors"
	"github.com/bigkaa/rfpdesk/internal/service"
	"github.com/bigkaa/rfpdesk/internal/storage/filestore"
)

// multipartMemory — часть формы, которая держится в памяти; остальное во временных файлах.
const multipartMemory = 32 << 20

// Uploader сохраняет загруженные документы.
type Uploader interface {
	Upload(ctx context.Context, params service.UploadParams) (*service.UploadResult, error)
}

// FilesHandler — обработчик endpoints документов.
type FilesHandler struct {
	assets        filestore.AssetStore
	uploader      Uploader
	maxUploadSize int64
	logger        *slog.Logger
}

// NewFilesHandler создаёт обработчик документов.
// maxUploadSize — предел тела POST /upload-pdf в байтах.
func NewFilesHandler(
	assets filestore.AssetStore,
	uploader Uploader,
	maxUploadSize int64,
	logger *slog.Logger,
) *FilesHandler {
	return &FilesHandler{
		assets:        assets,
		uploader:      uploader,
		maxUploadSize: maxUploadSize,
		logger:        logger.With(slog.String("component", "files_handler")),
	}
}

// GetPdf обрабатывает GET /pdf/{filename}.
// Имя сводится к базовому имени внутри хранилища документов.
func (h *FilesHandler) GetPdf(w http.ResponseWriter, r *http.Request, filename string) {
	rc, info, err := h.assets.Open(r.Context(), filename)
	if err != nil {
		apierrors.WriteServiceError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", info.FileName))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("Ошибка передачи документа",
			slog.String("file_name", info.FileName),
			slog.String("error", err.Error()),
		)
	}
}

// UploadPdf обрабатывает POST /upload-pdf.
// Multipart form: rfp, company (обязательно); rfpId, name, company_name,
// analyze (опционально, по умолчанию true).
func (h *FilesHandler) UploadPdf(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxUploadSize {
		apierrors.FileTooLarge(w, fmt.Sprintf("Размер загрузки превышает %d байт", h.maxUploadSize))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierrors.FileTooLarge(w, fmt.Sprintf("Размер загрузки превышает %d байт", h.maxUploadSize))
			return
		}
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	analyze := true
	if v := strings.TrimSpace(r.FormValue("analyze")); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			apierrors.ValidationError(w, fmt.Sprintf("Некорректное значение analyze: %q", v))
			return
		}
		analyze = parsed
	}

	rfpFile, rfpHeader, ok := formFile(w, r, "rfp")
	if !ok {
		return
	}
	defer rfpFile.Close()

	companyFile, companyHeader, ok := formFile(w, r, "company")
	if !ok {
		return
	}
	defer companyFile.Close()

	result, err := h.uploader.Upload(r.Context(), service.UploadParams{
		RFPID:           r.FormValue("rfpId"),
		RFP:             rfpFile,
		RFPFileName:     rfpHeader.Filename,
		Company:         companyFile,
		CompanyFileName: companyHeader.Filename,
		Name:            r.FormValue("name"),
		CompanyName:     r.FormValue("company_name"),
		Analyze:         analyze,
	})
	if err != nil {
		h.logger.Error("Ошибка загрузки документов", slog.String("error", err.Error()))
		apierrors.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// formFile извлекает обязательный файл формы. При отсутствии пишет 400.
func formFile(w http.ResponseWriter, r *http.Request, field string) (multipart.File, *multipart.FileHeader, bool) {
	file, header, err := r.FormFile(field)
	if err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Поле '%s' обязательно", field))
		return nil, nil, false
	}
	return file, header, true
}
