package webhook

import (
	"fmt"
	"reflect"
	"strings"
)

// sanitizeMaxDepth bounds how deep sanitize walks a value.
const sanitizeMaxDepth = 32

// Sanitize deep-clones a value into JSON-encodable data, breaking reference
// cycles and flattening errors. Values produced by outbound HTTP clients and
// downstream workflows can carry self-referencing structures; encoding them
// as-is would hang the JSON encoder or panic the logger.
func Sanitize(v any) any {
	return sanitizeValue(reflect.ValueOf(v), map[uintptr]bool{}, 0)
}

func sanitizeValue(v reflect.Value, visited map[uintptr]bool, depth int) any {
	if !v.IsValid() {
		return nil
	}
	if depth > sanitizeMaxDepth {
		return "[max depth exceeded]"
	}

	if v.CanInterface() {
		if err, ok := v.Interface().(error); ok && err != nil {
			return err.Error()
		}
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return sanitizeValue(v.Elem(), visited, depth)

	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if visited[ptr] {
			return "[circular reference]"
		}
		visited[ptr] = true
		out := sanitizeValue(v.Elem(), visited, depth+1)
		delete(visited, ptr)
		return out

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if visited[ptr] {
			return "[circular reference]"
		}
		visited[ptr] = true
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = sanitizeValue(iter.Value(), visited, depth+1)
		}
		delete(visited, ptr)
		return out

	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Bytes()
		}
		ptr := v.Pointer()
		if visited[ptr] {
			return "[circular reference]"
		}
		visited[ptr] = true
		out := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = sanitizeValue(v.Index(i), visited, depth+1)
		}
		delete(visited, ptr)
		return out

	case reflect.Array:
		out := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = sanitizeValue(v.Index(i), visited, depth+1)
		}
		return out

	case reflect.Struct:
		out := make(map[string]any, v.NumField())
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name := field.Name
			if tag, ok := field.Tag.Lookup("json"); ok {
				tagName, _, _ := strings.Cut(tag, ",")
				if tagName == "-" {
					continue
				}
				if tagName != "" {
					name = tagName
				}
			}
			out[name] = sanitizeValue(v.Field(i), visited, depth+1)
		}
		return out

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return fmt.Sprintf("[%s]", v.Kind())

	default:
		if v.CanInterface() {
			return v.Interface()
		}
		return nil
	}
}
