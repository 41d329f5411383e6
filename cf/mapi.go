package cf

import (
	"fmt"
)

// MapIToMapS converts the map[interface{}]interface{} shape produced by some YAML decoders into the
// map[string]interface{} shape expected by Load, recursively.
//
func MapIToMapS(in map[interface{}]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for k, v := range in {
		result[fmt.Sprintf("%v", k)] = CleanUpMapValue(v)
	}
	return result
}

func CleanUpMapValue(v interface{}) interface{} {
	switch v := v.(type) {
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, e := range v {
			result[i] = CleanUpMapValue(e)
		}
		return result

	case map[interface{}]interface{}:
		return MapIToMapS(v)

	case map[string]interface{}:
		result := make(map[string]interface{})
		for k, e := range v {
			result[k] = CleanUpMapValue(e)
		}
		return result

	default:
		return v
	}
}
