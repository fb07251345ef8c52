// Пакет generated — HTTP-контракт RFP Desk: OpenAPI документ,
// ServerInterface и маршрутизация chi в стиле oapi-codegen.
package generated

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var specYAML []byte

var (
	swaggerOnce sync.Once
	swaggerDoc  *openapi3.T
	swaggerErr  error
)

// GetSwagger возвращает разобранный OpenAPI документ.
// Документ разбирается один раз; вызывающий код не должен его изменять.
func GetSwagger() (*openapi3.T, error) {
	swaggerOnce.Do(func() {
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromData(specYAML)
		if err != nil {
			swaggerErr = fmt.Errorf("разбор OpenAPI документа: %w", err)
			return
		}
		swaggerDoc = doc
	})
	return swaggerDoc, swaggerErr
}
