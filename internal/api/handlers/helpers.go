package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apierrors "github.com/bigkaa/rfpdesk/internal/api/errors"
)

// maxJSONBody — предел тела JSON-запроса.
const maxJSONBody = 4 << 20

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON разбирает тело запроса в v. При ошибке ответ уже записан
// и возвращается false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	err := json.NewDecoder(body).Decode(v)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		apierrors.FileTooLarge(w, "Тело запроса превышает допустимый размер")
	case errors.Is(err, io.EOF):
		apierrors.ValidationError(w, "Пустое тело запроса")
	default:
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
	}
	return false
}
