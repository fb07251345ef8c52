// errors.go — ошибки доменного уровня. Нижние слои оборачивают их через %w,
// HTTP-слой сопоставляет через errors.Is.
package model

import "errors"

var (
	// ErrNotFound — запись или файл не найдены.
	ErrNotFound = errors.New("не найдено")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrInvalidTransition — переход статуса запрещён матрицей переходов.
	ErrInvalidTransition = errors.New("недопустимый переход статуса")
	// ErrAnalysisFailed — сервис анализа вернул ошибку или некорректный ответ.
	ErrAnalysisFailed = errors.New("ошибка анализа")
	// ErrIO — ошибка чтения или записи хранилища.
	ErrIO = errors.New("ошибка ввода-вывода")
)
