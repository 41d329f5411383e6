package cf

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/pkg/errors"
)

// Load binds the values in data onto the exported fields of the struct pointed to by cf. Keys are taken from the
// `cf` struct tag, falling back to the field name.
//
func Load(data map[string]interface{}, cf interface{}) error {
	cfV := reflect.ValueOf(cf)
	if cfV.Kind() == reflect.Ptr {
		cfV = cfV.Elem()
	}
	if cfV.Kind() != reflect.Struct {
		return errors.Errorf("cf type [%s] not struct", cfV.Type())
	}
	for i := 0; i < cfV.NumField(); i++ {
		field := cfV.Field(i)
		if !field.CanInterface() || !field.CanSet() {
			continue
		}
		key := keyName(cfV.Type().Field(i))
		v, found := data[key]
		if !found {
			continue
		}
		switch field.Interface().(type) {
		case int:
			switch j := v.(type) {
			case int:
				field.SetInt(int64(j))
			case int64:
				field.SetInt(j)
			default:
				return mismatch(key, v, field)
			}

		case float64:
			switch f := v.(type) {
			case float64:
				field.SetFloat(f)
			case int:
				field.SetFloat(float64(f))
			default:
				return mismatch(key, v, field)
			}

		case bool:
			if b, ok := v.(bool); ok {
				field.SetBool(b)
			} else {
				return mismatch(key, v, field)
			}

		case string:
			if s, ok := v.(string); ok {
				field.SetString(s)
			} else {
				return mismatch(key, v, field)
			}

		case map[string]interface{}:
			switch m := CleanUpMapValue(v).(type) {
			case map[string]interface{}:
				field.Set(reflect.ValueOf(m))
			default:
				return mismatch(key, v, field)
			}

		default:
			return errors.Errorf("unsupported field type [%s]", field.Type())
		}
	}
	return nil
}

func mismatch(key string, v interface{}, field reflect.Value) error {
	return errors.Errorf("field '%s' type mismatch, got [%s], expected [%s]", key, reflect.TypeOf(v), field.Type())
}

func Dump(label string, cf interface{}) string {
	cfV := reflect.ValueOf(cf)
	if cfV.Kind() == reflect.Ptr {
		cfV = cfV.Elem()
	}
	if cfV.Kind() != reflect.Struct {
		return ""
	}
	out := label + " {\n"
	format := fmt.Sprintf("\t%%-%ds %%v\n", maxKeyLength(cfV))
	for i := 0; i < cfV.NumField(); i++ {
		if cfV.Field(i).CanInterface() {
			key := keyName(cfV.Type().Field(i))
			out += fmt.Sprintf(format, key, dumpValue(cfV.Field(i).Interface()))
		}
	}
	out += "}\n"
	return out
}

func dumpValue(v interface{}) interface{} {
	m, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := "{"
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s: %v", k, m[k])
	}
	return out + "}"
}

func keyName(v reflect.StructField) string {
	key := v.Name
	tag := v.Tag.Get("cf")
	if tag != "" {
		key = tag
	}
	return key
}

func maxKeyLength(cfV reflect.Value) int {
	maxKeyLength := 0
	for i := 0; i < cfV.NumField(); i++ {
		key := keyName(cfV.Type().Field(i))
		keyLength := len(key)
		if keyLength > maxKeyLength {
			maxKeyLength = keyLength
		}
	}
	return maxKeyLength
}
