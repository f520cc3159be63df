package filter

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Shorthand keys accepted by FromMap.
const (
	KeyMinRating = "min_rating"
	KeyMaxRating = "max_rating"
	KeyDateFrom  = "date_from"
	KeyDateTo    = "date_to"

	FieldRating = "rating"
	FieldDate   = "date"
)

// FromMap builds an Expression from a loosely typed filter mapping (JSON body, CLI flags).
//
//	"brand": "acme"                  → brand = acme
//	"min_rating": 4                  → rating >= 4
//	"date_from": "2024-01-01"        → date >= unix(2024-01-01)
//	"date_to": "2024-01-31"          → date < unix(2024-02-01), the whole day included
//	"rating": {"gte": 3, "lt": 5}    → 3 <= rating < 5
//	"rating": 5                      → rating = 5
//
// Keys are processed in sorted order so the resulting expression is deterministic.
func FromMap(m map[string]any) (Expression, error) {
	if len(m) == 0 {
		return Expression{}, nil
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		conds                []Condition
		ratingMin, ratingMax *float64
		dateFrom, dateTo     *float64
		dateBefore           *float64
	)
	for _, key := range keys {
		raw := m[key]
		if raw == nil {
			continue
		}
		switch key {
		case KeyMinRating, KeyMaxRating:
			v, err := toFloat(raw)
			if err != nil {
				return Expression{}, fmt.Errorf("filter %q: %w", key, err)
			}
			if key == KeyMinRating {
				ratingMin = &v
			} else {
				ratingMax = &v
			}
			continue
		case KeyDateFrom, KeyDateTo:
			v, dayOnly, err := toUnix(raw)
			if err != nil {
				return Expression{}, fmt.Errorf("filter %q: %w", key, err)
			}
			switch {
			case key == KeyDateFrom:
				dateFrom = &v
			case dayOnly:
				next := v + secondsPerDay
				dateBefore = &next
			default:
				dateTo = &v
			}
			continue
		}

		c, err := conditionFor(key, raw)
		if err != nil {
			return Expression{}, err
		}
		conds = append(conds, c)
	}

	if ratingMin != nil || ratingMax != nil {
		r, err := NewRangeFilter(nil, ratingMin, nil, ratingMax)
		if err != nil {
			return Expression{}, fmt.Errorf("rating range: %w", err)
		}
		c, _ := NewRange(FieldRating, r)
		conds = append(conds, c)
	}
	if dateFrom != nil || dateTo != nil || dateBefore != nil {
		r, err := NewRangeFilter(nil, dateFrom, dateBefore, dateTo)
		if err != nil {
			return Expression{}, fmt.Errorf("date range: %w", err)
		}
		c, _ := NewRange(FieldDate, r)
		conds = append(conds, c)
	}

	return NewExpression(conds...)
}

func conditionFor(key string, raw any) (Condition, error) {
	switch v := raw.(type) {
	case string:
		return NewMatch(key, v)
	case bool:
		if v {
			return NewMatch(key, "true")
		}
		return NewMatch(key, "false")
	case map[string]any:
		return rangeFromMap(key, v)
	case []any:
		return Condition{}, fmt.Errorf("filter %q: list values are not supported", key)
	}

	f, err := toFloat(raw)
	if err != nil {
		return Condition{}, fmt.Errorf("filter %q: %w", key, err)
	}
	r, _ := NewRangeFilter(nil, &f, nil, &f)
	return NewRange(key, r)
}

func rangeFromMap(key string, m map[string]any) (Condition, error) {
	bounds := make(map[string]*float64, 4)
	for bk, bv := range m {
		switch bk {
		case "gt", "gte", "lt", "lte":
		default:
			return Condition{}, fmt.Errorf("filter %q: unknown range operator %q", key, bk)
		}
		f, err := toFloat(bv)
		if err != nil {
			return Condition{}, fmt.Errorf("filter %q.%s: %w", key, bk, err)
		}
		bounds[bk] = &f
	}
	r, err := NewRangeFilter(bounds["gt"], bounds["gte"], bounds["lt"], bounds["lte"])
	if err != nil {
		return Condition{}, fmt.Errorf("filter %q: %w", key, err)
	}
	return NewRange(key, r)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}

const secondsPerDay = 24 * 60 * 60

// toUnix accepts Unix seconds, RFC3339 or a bare 2006-01-02 date (UTC midnight).
// dayOnly reports the bare date form.
func toUnix(v any) (secs float64, dayOnly bool, err error) {
	s, ok := v.(string)
	if !ok {
		secs, err = toFloat(v)
		return secs, false, err
	}
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return float64(t.Unix()), false, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return 0, false, fmt.Errorf("invalid date %q (want RFC3339 or YYYY-MM-DD)", s)
	}
	return float64(t.Unix()), true, nil
}
