package contracts

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"VendorLink/internal/domain/models"
	xutil "VendorLink/pkg/util"
)

const (
	msgRequired    = "Required"
	msgEmptyString = "String must contain at least 1 character(s)"
	msgDatetime    = "Invalid datetime"
	msgIntRange    = "Number must be a safe integer"

	// maxSafeInteger is the largest integer a float64 holds exactly (2^53-1).
	maxSafeInteger = 1<<53 - 1
)

// numberRule describes the accepted range of a numeric field.
type numberRule struct {
	min, max       float64
	hasMin, hasMax bool
	integer        bool
}

var (
	anyNumber   = numberRule{}
	unitRange   = numberRule{min: 0, max: 1, hasMin: true, hasMax: true}
	nonNegative = numberRule{min: 0, hasMin: true}
	nonNegInt   = numberRule{min: 0, hasMin: true, integer: true}
	positiveInt = numberRule{min: 1, hasMin: true, integer: true}
)

// object walks one closed JSON object, collecting failures into errs.
// Keys never read are reported by done as unrecognized.
type object struct {
	path   string
	fields map[string]any
	seen   map[string]bool
	errs   *ValidationErrors
}

func asObject(path string, v any, errs *ValidationErrors) (*object, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		errs.add(path, expected("object", v))
		return nil, false
	}
	return &object{path: path, fields: m, seen: make(map[string]bool, len(m)), errs: errs}, true
}

func (o *object) at(key string) string { return joinKey(o.path, key) }

// lookup marks key as known and returns its value. JSON null counts as absent.
func (o *object) lookup(key string) (any, bool) {
	o.seen[key] = true
	v, ok := o.fields[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (o *object) skip(keys ...string) {
	for _, k := range keys {
		o.seen[k] = true
	}
}

func (o *object) done() {
	var unknown []string
	for k := range o.fields {
		if !o.seen[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		o.errs.add(o.at(k), fmt.Sprintf("Unrecognized key: %q", k))
	}
}

func (o *object) str(key string, required, nonEmpty bool) string {
	v, ok := o.lookup(key)
	if !ok {
		if required {
			o.errs.add(o.at(key), msgRequired)
		}
		return ""
	}
	s, isStr := v.(string)
	if !isStr {
		o.errs.add(o.at(key), expected("string", v))
		return ""
	}
	if nonEmpty && s == "" {
		o.errs.add(o.at(key), msgEmptyString)
	}
	return s
}

func (o *object) requiredString(key string) string { return o.str(key, true, true) }
func (o *object) optionalString(key string) string { return o.str(key, false, false) }

func (o *object) nullableString(key string) *string {
	if _, ok := o.lookup(key); !ok {
		if _, present := o.fields[key]; !present {
			o.errs.add(o.at(key), msgRequired)
		}
		return nil
	}
	s := o.str(key, false, false)
	return &s
}

func (o *object) optionalStringPtr(key string) *string {
	if _, ok := o.lookup(key); !ok {
		return nil
	}
	s := o.str(key, false, false)
	return &s
}

func (o *object) timestamp(key string, required bool) string {
	v, present := o.fields[key]
	s := o.str(key, required, false)
	if _, isStr := v.(string); present && isStr {
		if _, ok := xutil.ParseISO(s); !ok {
			o.errs.add(o.at(key), msgDatetime)
		}
	}
	return s
}

func (o *object) nullableTimestamp(key string) *string {
	if _, ok := o.lookup(key); !ok {
		if _, present := o.fields[key]; !present {
			o.errs.add(o.at(key), msgRequired)
		}
		return nil
	}
	s := o.timestamp(key, true)
	return &s
}

func (o *object) number(key string, rule numberRule) (float64, bool) {
	v, ok := o.lookup(key)
	if !ok {
		return 0, false
	}
	return checkNumber(o.at(key), v, rule, o.errs)
}

func (o *object) requiredNumber(key string, rule numberRule) float64 {
	if _, ok := o.fields[key]; !ok || o.fields[key] == nil {
		o.seen[key] = true
		o.errs.add(o.at(key), msgRequired)
		return 0
	}
	n, _ := o.number(key, rule)
	return n
}

func (o *object) optionalNumber(key string, rule numberRule) *float64 {
	n, ok := o.number(key, rule)
	if !ok {
		return nil
	}
	return &n
}

func (o *object) nullableNumber(key string, rule numberRule) *float64 {
	if _, present := o.fields[key]; !present {
		o.seen[key] = true
		o.errs.add(o.at(key), msgRequired)
		return nil
	}
	return o.optionalNumber(key, rule)
}

func (o *object) optionalInt(key string, rule numberRule) *int64 {
	rule.integer = true
	n := o.optionalNumber(key, rule)
	if n == nil {
		return nil
	}
	if math.Abs(*n) > maxSafeInteger {
		o.errs.add(o.at(key), msgIntRange)
		return nil
	}
	i := int64(*n)
	return &i
}

// enum reads a required string restricted to options.
func (o *object) enum(key string, options []string) string {
	v, present := o.fields[key]
	s := o.str(key, true, false)
	if _, isStr := v.(string); !present || !isStr {
		return ""
	}
	for _, opt := range options {
		if s == opt {
			return s
		}
	}
	o.errs.add(o.at(key), enumMessage(s, options))
	return s
}

func (o *object) timeframe(key string) models.Timeframe {
	return models.Timeframe(o.enum(key, timeframeNames()))
}

func (o *object) decision(key string) models.Decision {
	return models.Decision(o.enum(key, decisionNames))
}

func (o *object) status(key string) models.DeploymentStatus {
	return models.DeploymentStatus(o.enum(key, statusNames))
}

func (o *object) stringList(key string, nonEmptyItems bool) []string {
	v, ok := o.lookup(key)
	if !ok {
		return nil
	}
	arr, isArr := v.([]any)
	if !isArr {
		o.errs.add(o.at(key), expected("array", v))
		return nil
	}
	out := make([]string, 0, len(arr))
	for i, item := range arr {
		p := indexPath(o.at(key), i)
		s, isStr := item.(string)
		if !isStr {
			o.errs.add(p, expected("string", item))
			continue
		}
		if nonEmptyItems && s == "" {
			o.errs.add(p, msgEmptyString)
		}
		out = append(out, s)
	}
	return out
}

func (o *object) rationale() []string { return o.stringList("rationale", false) }

// openMap returns an open key/value map verbatim. Numbers stay json.Number so they
// re-encode byte-for-byte.
func (o *object) openMap(key string) map[string]any {
	v, ok := o.lookup(key)
	if !ok {
		return nil
	}
	m, isMap := v.(map[string]any)
	if !isMap {
		o.errs.add(o.at(key), expected("object", v))
		return nil
	}
	return m
}

func (o *object) numberMap(key string, rule numberRule) map[string]float64 {
	v, ok := o.lookup(key)
	if !ok {
		return nil
	}
	m, isMap := v.(map[string]any)
	if !isMap {
		o.errs.add(o.at(key), expected("object", v))
		return nil
	}
	out := make(map[string]float64, len(m))
	for _, k := range sortedKeys(m) {
		if n, ok := checkNumber(joinKey(o.at(key), k), m[k], rule, o.errs); ok {
			out[k] = n
		}
	}
	return out
}

// child returns a nested closed object, or nil when absent.
func (o *object) child(key string, required bool) *object {
	v, ok := o.lookup(key)
	if !ok {
		if required {
			o.errs.add(o.at(key), msgRequired)
		}
		return nil
	}
	c, _ := asObject(o.at(key), v, o.errs)
	return c
}

// array returns the raw items of a list field, or nil when absent.
func (o *object) array(key string, required bool) ([]any, bool) {
	v, ok := o.lookup(key)
	if !ok {
		if required {
			o.errs.add(o.at(key), msgRequired)
		}
		return nil, false
	}
	arr, isArr := v.([]any)
	if !isArr {
		o.errs.add(o.at(key), expected("array", v))
		return nil, false
	}
	return arr, true
}

func checkNumber(path string, v any, rule numberRule, errs *ValidationErrors) (float64, bool) {
	n, ok := toFloat(v)
	if !ok {
		errs.add(path, expected("number", v))
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		errs.add(path, "Number must be finite")
		return 0, false
	}
	valid := true
	if rule.integer && n != math.Trunc(n) {
		errs.add(path, "Expected integer, received float")
		valid = false
	}
	if rule.hasMin && n < rule.min {
		errs.add(path, fmt.Sprintf("Number must be greater than or equal to %s", formatBound(rule.min)))
		valid = false
	}
	if rule.hasMax && n > rule.max {
		errs.add(path, fmt.Sprintf("Number must be less than or equal to %s", formatBound(rule.max)))
		valid = false
	}
	return n, valid
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func formatBound(f float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%f", f), "0"), ".")
}

func expected(want string, got any) string {
	return fmt.Sprintf("Expected %s, received %s", want, typeName(got))
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64, float32, int, int64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func enumMessage(got string, options []string) string {
	quoted := make([]string, len(options))
	for i, opt := range options {
		quoted[i] = "'" + opt + "'"
	}
	return fmt.Sprintf("Invalid enum value. Expected %s, received '%s'", strings.Join(quoted, " | "), got)
}

var (
	decisionNames = []string{"BUY", "SELL", "HOLD"}
	statusNames   = []string{"pending", "ready", "error", "maintenance", "offline"}
	taskNames     = []string{"signal", "consensus", "optimizer"}
	stageNames    = []string{"shadow", "pilot", "prod", "retired"}
)

func timeframeNames() []string {
	out := make([]string, len(models.Timeframes))
	for i, tf := range models.Timeframes {
		out[i] = string(tf)
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
