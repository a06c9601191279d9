package leads

import (
	"strconv"
	"strings"

	"leadify-meeting-orchestrator/internal/types"
)

// legacyCurrencies maps legacy numeric currency IDs to ISO codes
var legacyCurrencies = map[int]string{
	1: "ILS",
	2: "EUR",
	3: "USD",
	4: "GBP",
}

var currencySymbols = map[string]string{
	"₪": "ILS",
	"€": "EUR",
	"$": "USD",
	"£": "GBP",
	"NIS": "ILS",
}

// CurrencyCode normalizes a stored currency value to an ISO code. Legacy
// rows hold a numeric ID, modern rows a code or symbol. Unknown values are
// returned upper-cased.
func CurrencyCode(schema types.Schema, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if schema.Currency == types.CurrencyByID {
		if n, err := strconv.Atoi(raw); err == nil {
			if code, ok := legacyCurrencies[n]; ok {
				return code
			}
		}
	}
	if code, ok := currencySymbols[strings.ToUpper(raw)]; ok {
		return code
	}
	return strings.ToUpper(raw)
}

// StoredCurrency converts an ISO code (or symbol) into the schema's
// storage convention
func StoredCurrency(schema types.Schema, code string) string {
	code = CurrencyCode(types.Schema{Currency: types.CurrencyByCode}, code)
	if schema.Currency != types.CurrencyByID {
		return code
	}
	for id, c := range legacyCurrencies {
		if c == code {
			return strconv.Itoa(id)
		}
	}
	return code
}

// EncodeEmployee renders an employee reference in the schema's encoding.
// ok is false when the reference cannot be expressed in that schema, e.g.
// a name-only employee on a legacy lead.
func EncodeEmployee(schema types.Schema, ref types.EmployeeRef) (string, bool) {
	switch schema.EmployeeEncoding {
	case types.EmployeeByID:
		if ref.ID > 0 {
			return strconv.FormatInt(ref.ID, 10), true
		}
		return "", false
	default:
		name := strings.TrimSpace(ref.Name)
		return name, name != ""
	}
}

// DecodeEmployee parses a stored employee value back into a reference
func DecodeEmployee(schema types.Schema, stored string) types.EmployeeRef {
	stored = strings.TrimSpace(stored)
	if stored == "" {
		return types.EmployeeRef{}
	}
	if schema.EmployeeEncoding == types.EmployeeByID {
		if n, err := strconv.ParseInt(stored, 10, 64); err == nil {
			return types.EmployeeRef{ID: n}
		}
	}
	return types.EmployeeRef{Name: stored}
}
