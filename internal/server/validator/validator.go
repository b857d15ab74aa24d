package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/nulzo/generation-router/internal/router"
)

var (
	trans ut.Translator
	once  sync.Once
)

// InitValidator configures gin's validator: json field names in messages,
// English translations and the "strategy" tag. Safe to call more than once.
func InitValidator() {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = v.RegisterValidation("strategy", func(fl validator.FieldLevel) bool {
			_, err := router.ParseStrategy(fl.Field().String())
			return err == nil
		})

		locale := en.New()
		trans, _ = ut.New(locale, locale).GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, trans)
	})
}

// ParseValidationError flattens validator errors into field -> message. Nested
// fields keep their path, e.g. "messages[0].role".
func ParseValidationError(err error) map[string]string {
	out := make(map[string]string)

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["body"] = "Invalid request body format. Please fix your payload."
		return out
	}

	for _, e := range verrs {
		ns := e.Namespace()
		if i := strings.Index(ns, "."); i != -1 {
			ns = ns[i+1:]
		}

		var msg string
		switch e.Tag() {
		case "oneof":
			msg = fmt.Sprintf("must be one of [%s]", strings.ReplaceAll(e.Param(), " ", ", "))
		case "strategy":
			msg = fmt.Sprintf("must be one of [%s]", strategyNames())
		default:
			msg = e.Translate(trans)
		}
		out[ns] = msg
	}
	return out
}

func strategyNames() string {
	names := make([]string, 0, len(router.Strategies()))
	for _, s := range router.Strategies() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}
