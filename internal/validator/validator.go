// Package validator wires go-playground/validator into Gin's binding engine
// and translates its errors into field maps for API responses.
package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/invigo/invigo-backend/internal/model"
)

var trans ut.Translator

// Setup configures the shared binding validator: JSON tag names in error
// messages, the custom violationtype rule and English translations. Call once
// at startup.
func Setup() {
	v, ok := binding.Validator.Engine().(*govalidator.Validate)
	if !ok {
		return
	}

	v.RegisterTagNameFunc(jsonFieldName)

	// Violation types are a closed set; reject anything else at binding time.
	v.RegisterValidation("violationtype", func(fl govalidator.FieldLevel) bool {
		return model.ViolationType(fl.Field().String()).Valid()
	})

	enLocale := en.New()
	trans, _ = ut.New(enLocale, enLocale).GetTranslator("en")
	en_translations.RegisterDefaultTranslations(v, trans)
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// TranslateErrors converts a binding error into a field → message map. A
// non-validation error (malformed JSON) comes back under the "detail" key.
func TranslateErrors(err error) map[string]string {
	var ve govalidator.ValidationErrors
	if !errors.As(err, &ve) {
		return map[string]string{"detail": err.Error()}
	}

	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Translate(trans)
	}
	return fields
}

// Bind binds and validates the JSON body into dst. Returns nil on success or
// the translated field errors on failure.
func Bind(c *gin.Context, dst any) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}
