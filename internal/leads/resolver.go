// Package leads resolves opaque lead references into canonical,
// schema-tagged identifiers and carries the per-schema conventions
// (employee encoding, currency) every downstream lookup depends on.
package leads

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"leadify-meeting-orchestrator/internal/types"
)

var (
	legacyPrefixed = regexp.MustCompile(`^legacy_(\d+)$`)
	bareDigits     = regexp.MustCompile(`^\d+$`)
	leadNumber     = regexp.MustCompile(`^[Ll]\d+$`)
)

// LegacySchema describes the legacy lead tables
var LegacySchema = types.Schema{
	LeadsTable:        "leads_lead",
	KeyColumn:         "id",
	MeetingLeadColumn: "legacy_lead_id",
	EmployeeEncoding:  types.EmployeeByID,
	Currency:          types.CurrencyByID,
}

// ModernSchema describes the modern lead tables
var ModernSchema = types.Schema{
	LeadsTable:        "leads",
	KeyColumn:         "id",
	MeetingLeadColumn: "client_id",
	EmployeeEncoding:  types.EmployeeByName,
	Currency:          types.CurrencyByCode,
}

// SchemaFor returns the schema descriptor for a kind
func SchemaFor(kind types.SchemaKind) types.Schema {
	if kind == types.SchemaLegacy {
		return LegacySchema
	}
	return ModernSchema
}

// Resolve turns a LeadReference into a CanonicalLead. An explicit Kind
// wins but the ID must still have that schema's shape. Without a Kind:
// "legacy_<n>" or digits are legacy, a UUID is a modern primary key and
// "L<n>" is a modern lead number. Resolve performs no I/O.
func Resolve(ref types.LeadReference) (types.CanonicalLead, error) {
	id := strings.TrimSpace(ref.ID)
	if id == "" {
		return types.CanonicalLead{}, types.Errorf(types.ErrorTypeUnresolvableReference, "empty lead reference")
	}

	switch ref.Kind {
	case types.SchemaLegacy:
		if lead, ok := resolveLegacy(id); ok {
			return lead, nil
		}
		return types.CanonicalLead{}, types.Errorf(types.ErrorTypeUnresolvableReference,
			"lead reference %q is not a legacy identifier", ref.ID)
	case types.SchemaModern:
		if lead, ok := resolveModern(id); ok {
			return lead, nil
		}
		return types.CanonicalLead{}, types.Errorf(types.ErrorTypeUnresolvableReference,
			"lead reference %q is not a modern identifier", ref.ID)
	case "":
	default:
		return types.CanonicalLead{}, types.Errorf(types.ErrorTypeUnresolvableReference,
			"unknown schema kind %q", ref.Kind)
	}

	if lead, ok := resolveLegacy(id); ok {
		return lead, nil
	}
	if lead, ok := resolveModern(id); ok {
		return lead, nil
	}
	return types.CanonicalLead{}, types.Errorf(types.ErrorTypeUnresolvableReference,
		"lead reference %q matches no known identifier shape", ref.ID)
}

func resolveLegacy(id string) (types.CanonicalLead, bool) {
	digits := id
	if m := legacyPrefixed.FindStringSubmatch(id); m != nil {
		digits = m[1]
	} else if !bareDigits.MatchString(id) {
		return types.CanonicalLead{}, false
	}

	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n <= 0 {
		return types.CanonicalLead{}, false
	}
	return types.CanonicalLead{Kind: types.SchemaLegacy, LegacyID: n, Schema: LegacySchema}, true
}

func resolveModern(id string) (types.CanonicalLead, bool) {
	if parsed, err := uuid.Parse(id); err == nil {
		return types.CanonicalLead{Kind: types.SchemaModern, ModernID: parsed.String(), Schema: ModernSchema}, true
	}
	if leadNumber.MatchString(id) {
		return types.CanonicalLead{Kind: types.SchemaModern, LeadNumber: strings.ToUpper(id), Schema: ModernSchema}, true
	}
	return types.CanonicalLead{}, false
}

// Reattach restores the schema descriptor on a CanonicalLead that was
// decoded from storage or JSON
func Reattach(lead types.CanonicalLead) types.CanonicalLead {
	lead.Schema = SchemaFor(lead.Kind)
	return lead
}
