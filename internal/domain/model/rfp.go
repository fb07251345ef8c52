// Пакет model — доменные модели RFP Desk.
// RFP — единая структура записи, используется как in-memory представление,
// как формат {id}.json на диске и как тело ответа API.
package model

import (
	"fmt"
	"regexp"
	"time"

	"github.com/bigkaa/rfpdesk/internal/domain/status"
)

// Role — роль PDF-документа в паре документов записи.
type Role string

const (
	// RoleRFP — документ запроса предложений
	RoleRFP Role = "rfp"
	// RoleCompany — документ с данными компании
	RoleCompany Role = "company"
)

// ParseRole преобразует строку в Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleRFP, RoleCompany:
		return Role(s), nil
	default:
		return "", fmt.Errorf("%w: недопустимая роль документа %q, допустимые: rfp, company", ErrValidation, s)
	}
}

// AssetFileName возвращает имя файла документа по соглашению {role}_{id}.pdf.
func AssetFileName(id string, role Role) string {
	return string(role) + "_" + id + ".pdf"
}

// idPattern — допустимый идентификатор записи. Идентификатор является
// именем файла, поэтому разделители путей и ведущая точка запрещены.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateID проверяет идентификатор записи.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: идентификатор записи обязателен", ErrValidation)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: недопустимый идентификатор %q", ErrValidation, id)
	}
	return nil
}

// Requirement — требование RFP и результат его проверки.
type Requirement struct {
	Requirement string `json:"requirement"`
	Status      string `json:"status,omitempty"`
	Details     string `json:"details,omitempty"`
}

// Eligibility — результат проверки соответствия.
type Eligibility struct {
	Matches    []Requirement `json:"matches"`
	Mismatches []Requirement `json:"mismatches"`
}

// ChecklistItem — пункт чек-листа подачи заявки.
type ChecklistItem struct {
	Item     string `json:"item"`
	Status   string `json:"status"`
	Required *bool  `json:"required,omitempty"`
}

// Risk — рискованное положение контракта.
type Risk struct {
	Clause     string `json:"clause"`
	Risk       string `json:"risk"`
	Suggestion string `json:"suggestion"`
}

// RFP — запись о запросе предложений. Соответствует содержимому {id}.json.
type RFP struct {
	// ID — уникальный идентификатор, неизменяемый, совпадает с именем файла
	ID string `json:"id"`

	Name    string `json:"name"`
	Company string `json:"company"`

	// Status — текущий статус жизненного цикла
	Status status.Status `json:"status"`

	// Date — время создания записи, после создания не меняется
	Date time.Time `json:"date"`

	// PDFFileName — имя файла документа RFP (rfp_{id}.pdf)
	PDFFileName string `json:"pdfFileName,omitempty"`
	// CompanyFileName — имя файла документа компании (company_{id}.pdf)
	CompanyFileName string `json:"companyFileName,omitempty"`

	Eligibility Eligibility     `json:"eligibility"`
	Checklist   []ChecklistItem `json:"checklist"`
	Risks       []Risk          `json:"risks"`

	// UpdatedAt — время последней записи
	UpdatedAt time.Time `json:"updatedAt"`

	// Error — причина последней ошибки анализа
	Error string `json:"error,omitempty"`
}

// Normalize заменяет nil-коллекции пустыми массивами: в JSON
// коллекции всегда сериализуются как [], а не null.
func (r *RFP) Normalize() {
	if r.Eligibility.Matches == nil {
		r.Eligibility.Matches = []Requirement{}
	}
	if r.Eligibility.Mismatches == nil {
		r.Eligibility.Mismatches = []Requirement{}
	}
	if r.Checklist == nil {
		r.Checklist = []ChecklistItem{}
	}
	if r.Risks == nil {
		r.Risks = []Risk{}
	}
}

// Clone возвращает глубокую копию записи.
func (r *RFP) Clone() *RFP {
	c := *r
	c.Eligibility.Matches = append([]Requirement(nil), r.Eligibility.Matches...)
	c.Eligibility.Mismatches = append([]Requirement(nil), r.Eligibility.Mismatches...)
	c.Checklist = make([]ChecklistItem, len(r.Checklist))
	for i, item := range r.Checklist {
		c.Checklist[i] = item
		if item.Required != nil {
			v := *item.Required
			c.Checklist[i].Required = &v
		}
	}
	c.Risks = append([]Risk(nil), r.Risks...)
	c.Normalize()
	return &c
}

// HasAssets — true если запись ссылается на оба документа.
func (r *RFP) HasAssets() bool {
	return r.PDFFileName != "" && r.CompanyFileName != ""
}
