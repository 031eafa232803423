package config

import (
	"encoding/json"
	"reflect"
	"strings"
)

const redacted = "[redacted]"

// Redact returns cfg as a generic JSON document with every field tagged
// `sensitive:"true"` replaced by a placeholder. Use it before logging a config.
func Redact(cfg interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	redactValue(reflect.TypeOf(cfg), doc)

	return doc, nil
}

func redactValue(t reflect.Type, doc interface{}) {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t == nil {
		return
	}

	switch t.Kind() {
	case reflect.Struct:
		obj, ok := doc.(map[string]interface{})
		if !ok {
			return
		}

		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)

			name := strings.Split(f.Tag.Get("json"), ",")[0]
			if name == "" || name == "-" {
				continue
			}

			child, present := obj[name]
			if !present {
				continue
			}

			if f.Tag.Get("sensitive") == "true" {
				if s, isString := child.(string); !isString || s != "" {
					obj[name] = redacted
				}

				continue
			}

			redactValue(f.Type, child)
		}
	case reflect.Map:
		if obj, ok := doc.(map[string]interface{}); ok {
			for _, child := range obj {
				redactValue(t.Elem(), child)
			}
		}
	case reflect.Slice, reflect.Array:
		if items, ok := doc.([]interface{}); ok {
			for _, child := range items {
				redactValue(t.Elem(), child)
			}
		}
	default:
	}
}
