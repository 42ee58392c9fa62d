package contracts

import (
	"strconv"
	"strings"
)

// ValidationError is one rejected field. Path is empty for the payload root.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationErrors is an ordered list of field failures. A nil value means valid.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, v := range e {
		if v.Path == "" {
			parts = append(parts, v.Message)
			continue
		}
		parts = append(parts, v.Path+": "+v.Message)
	}
	return strings.Join(parts, "; ")
}

// AtIndex re-roots every path under element i of an enclosing array.
func (e ValidationErrors) AtIndex(i int) ValidationErrors {
	out := make(ValidationErrors, len(e))
	for j, v := range e {
		out[j] = ValidationError{Path: joinIndex(indexPath("", i), v.Path), Message: v.Message}
	}
	return out
}

func (e *ValidationErrors) add(path, msg string) {
	*e = append(*e, ValidationError{Path: path, Message: msg})
}

func joinKey(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

func indexPath(base string, i int) string {
	return base + "[" + strconv.Itoa(i) + "]"
}

func joinIndex(prefix, rest string) string {
	if rest == "" {
		return prefix
	}
	if strings.HasPrefix(rest, "[") {
		return prefix + rest
	}
	return prefix + "." + rest
}
