package confloader

import (
	"reflect"
	"strings"
)

// fieldKeys returns the dotted koanf key of every leaf field of target
// together with its kind.
func fieldKeys(target any) map[string]reflect.Kind {
	out := make(map[string]reflect.Kind)
	t := reflect.TypeOf(target)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return out
	}
	collectKeys(t, "", out)
	return out
}

func collectKeys(t reflect.Type, prefix string, out map[string]reflect.Kind) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("koanf")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && ft.PkgPath() != "time" {
			collectKeys(ft, key, out)
			continue
		}
		out[key] = ft.Kind()
	}
}

// envKey maps a lowercased environment name without prefix to a known
// key. Unknown names fall back to replacing every underscore with a dot.
func envKey(name string, known map[string]reflect.Kind) string {
	for k := range known {
		if strings.ReplaceAll(k, ".", "_") == name {
			return k
		}
	}
	return strings.ReplaceAll(name, "_", ".")
}
