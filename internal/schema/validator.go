package schema

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"sync"
)

// Validator checks a value against a schema.
type Validator interface {
	Validate(s *Schema, value any) error
}

// NewValidator returns the default Validator. It collects every failure and
// caches compiled patterns.
func NewValidator() Validator {
	return &validator{}
}

type validator struct {
	patterns sync.Map // map[string]*regexp.Regexp
}

// Validate returns a *ValidationErrors describing every failure, or nil. A nil
// schema accepts everything.
func (v *validator) Validate(s *Schema, value any) error {
	if s == nil {
		return nil
	}
	errs := &ValidationErrors{}
	v.validate("", normalize(value), s, errs)
	return errs.asError()
}

func (v *validator) validate(path string, value any, s *Schema, errs *ValidationErrors) {
	if s == nil {
		return
	}

	if len(s.AnyOf) > 0 {
		matched := false
		for _, alt := range s.AnyOf {
			trial := &ValidationErrors{}
			v.validate(path, value, alt, trial)
			if len(trial.Errors) == 0 {
				matched = true
				break
			}
		}
		if !matched {
			errs.add(path, "value does not match any of the allowed schemas")
		}
	}

	if len(s.Enum) > 0 && !inEnum(value, s.Enum) {
		errs.add(path, "value %v is not one of %v", value, s.Enum)
	}

	if s.Type == "" {
		return
	}
	if !matchesType(value, s.Type) {
		errs.add(path, "expected %s, got %s", s.Type, describe(value))
		return
	}

	switch s.Type {
	case TypeString:
		v.validateString(path, value.(string), s, errs)
	case TypeNumber, TypeInteger:
		validateNumber(path, toFloat(value), s, errs)
	case TypeArray:
		v.validateArray(path, value.([]any), s, errs)
	case TypeObject:
		v.validateObject(path, value.(map[string]any), s, errs)
	}
}

func (v *validator) validateString(path, value string, s *Schema, errs *ValidationErrors) {
	if s.MinLength != nil && len(value) < *s.MinLength {
		errs.add(path, "string length %d is less than minimum %d", len(value), *s.MinLength)
	}
	if s.MaxLength != nil && len(value) > *s.MaxLength {
		errs.add(path, "string length %d is greater than maximum %d", len(value), *s.MaxLength)
	}
	if s.Pattern != "" {
		re, err := v.compile(s.Pattern)
		if err != nil {
			errs.add(path, "invalid pattern %q: %v", s.Pattern, err)
			return
		}
		if !re.MatchString(value) {
			errs.add(path, "value %q does not match pattern %q", value, s.Pattern)
		}
	}
}

func validateNumber(path string, f float64, s *Schema, errs *ValidationErrors) {
	if s.Minimum != nil && f < *s.Minimum {
		errs.add(path, "value %v is less than minimum %v", f, *s.Minimum)
	}
	if s.Maximum != nil && f > *s.Maximum {
		errs.add(path, "value %v is greater than maximum %v", f, *s.Maximum)
	}
}

func (v *validator) validateArray(path string, arr []any, s *Schema, errs *ValidationErrors) {
	if s.MinItems != nil && len(arr) < *s.MinItems {
		errs.add(path, "array has %d items, minimum is %d", len(arr), *s.MinItems)
	}
	if s.Items == nil {
		return
	}
	for i, item := range arr {
		v.validate(fmt.Sprintf("%s[%d]", path, i), item, s.Items, errs)
	}
}

func (v *validator) validateObject(path string, obj map[string]any, s *Schema, errs *ValidationErrors) {
	for _, key := range s.Required {
		if _, ok := obj[key]; !ok {
			errs.add(joinPath(path, key), "required property is missing")
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		propPath := joinPath(path, key)
		if prop, ok := s.Properties[key]; ok {
			v.validate(propPath, obj[key], prop, errs)
		} else if !s.AllowsAdditional() {
			errs.add(propPath, "unknown property")
		}
	}
}

func (v *validator) compile(pattern string) (*regexp.Regexp, error) {
	if cached, ok := v.patterns.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	v.patterns.Store(pattern, re)
	return re, nil
}

func matchesType(value any, typ string) bool {
	switch typ {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeNumber:
		return isNumber(value)
	case TypeInteger:
		return isNumber(value) && toFloat(value) == math.Trunc(toFloat(value))
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeArray:
		_, ok := value.([]any)
		return ok
	case TypeObject:
		_, ok := value.(map[string]any)
		return ok
	case TypeNull:
		return value == nil
	default:
		return false
	}
}

// normalize converts typed Go containers (map[string]string, []string,
// map[any]any from YAML and so on) into map[string]any and []any.
func normalize(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalize(item)
		}
		return out
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = normalize(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return value
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	}
	return value
}

func isNumber(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

func toFloat(value any) float64 {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return 0
}

func inEnum(value any, allowed []any) bool {
	for _, a := range allowed {
		if isNumber(value) && isNumber(a) {
			if toFloat(value) == toFloat(a) {
				return true
			}
			continue
		}
		if reflect.DeepEqual(value, a) {
			return true
		}
	}
	return false
}

func describe(value any) string {
	switch {
	case value == nil:
		return "null"
	case isNumber(value):
		return "number"
	}
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", value)
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}
