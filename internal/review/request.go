package review

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/PhelGc/furina-review/internal/evaluation"
)

// requestValidate instancia compartida; validator.Validate es seguro para uso concurrente
var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
	_ = requestValidate.RegisterValidation("notblank", validateNotBlank)
}

// validateNotBlank rechaza cadenas compuestas solo por espacios
func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// DispatchRequest cuerpo de POST /feedback. dr_number se acepta como alias de identifier.
type DispatchRequest struct {
	Identifier string `json:"identifier" validate:"required,max=64"`
	DRNumber   string `json:"dr_number,omitempty" validate:"-"`
	Message    string `json:"message" validate:"required,notblank,max=16384"`
}

func (r *DispatchRequest) normalize() {
	if r.Identifier == "" {
		r.Identifier = r.DRNumber
	}
	r.Identifier = strings.TrimSpace(r.Identifier)
}

// Validate comprueba el cuerpo antes de cualquier acceso al almacén
func (r *DispatchRequest) Validate() error {
	if err := requestValidate.Struct(r); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields = append(fields, strings.ToLower(fe.Field())+" ("+fe.Tag()+")")
			}
		}
		return evaluation.NewError(evaluation.ErrInvalidRequest, "invalid_request",
			"solicitud inválida: "+strings.Join(fields, ", "), err)
	}
	return nil
}
