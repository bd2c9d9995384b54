package http

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"

	"github.com/couchcryptid/energy-weather-insights/internal/domain"
)

// newValidator names fields after their query parameter in error messages.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("query"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// bind decodes the query string into dst and validates it. Every failure wraps
// domain.ErrInvalidParams.
func (s *Server) bind(q url.Values, dst any) error {
	if err := decodeQuery(q, dst); err != nil {
		return err
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = describe(fe)
			}
			return fmt.Errorf("%w: %s", domain.ErrInvalidParams, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", domain.ErrInvalidParams, err)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gtefield":
		return fmt.Sprintf("%s must not be before %s", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}

// newDecoder binds `query` tags. A []string field takes comma separated and
// repeated values alike.
func newDecoder() *form.Decoder {
	d := form.NewDecoder()
	d.SetTagName("query")
	d.RegisterCustomTypeFunc(func(vals []string) (any, error) {
		var items []string
		for _, v := range vals {
			for item := range strings.SplitSeq(v, ",") {
				if item = strings.TrimSpace(item); item != "" {
					items = append(items, item)
				}
			}
		}
		return items, nil
	}, []string{})
	return d
}

var queryDecoder = newDecoder()

// decodeQuery fills the `query`-tagged fields of the struct pointed to by dst.
// Values are trimmed and blank parameters are treated as absent, which leaves
// the field untouched.
func decodeQuery(q url.Values, dst any) error {
	clean := make(url.Values, len(q))
	for name, vals := range q {
		for _, v := range vals {
			if v = strings.TrimSpace(v); v != "" {
				clean[name] = append(clean[name], v)
			}
		}
	}

	err := queryDecoder.Decode(dst, clean)
	if err == nil {
		return nil
	}
	var derrs form.DecodeErrors
	if errors.As(err, &derrs) {
		names := slices.Sorted(maps.Keys(derrs))
		return fmt.Errorf("%w: %s is malformed", domain.ErrInvalidParams, strings.Join(names, ", "))
	}
	return fmt.Errorf("%w: %w", domain.ErrInvalidParams, err)
}
