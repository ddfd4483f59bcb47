package pricing

import (
	"github.com/okstore/commerce-client/pkg/contracts/domain"
)

// LicenseType is one activation-count tier of a purchased license. The
// catalog is compiled in; the backend renders the same tiers but the client
// never fetches them per request.
type LicenseType struct {
	ID             string
	Label          string
	MaxActivations *int // nil = unlimited
	JournalScoped  bool // tier counts journals rather than installations
	AnyScope       bool // tier is valid for both scopes
}

// LicenseDuration is one time-validity tier with its price multiplier.
type LicenseDuration struct {
	ID         string
	Label      string
	Multiplier float64
	Savings    string // optional marketing annotation, e.g. "save 25%"
}

func intPtr(v int) *int { return &v }

// License type catalog. IDs are the wire values exchanged with the backend.
var licenseTypes = map[string]LicenseType{
	"single-site": {
		ID:             "single-site",
		Label:          "Single Site",
		MaxActivations: intPtr(1),
	},
	"single-journal": {
		ID:             "single-journal",
		Label:          "Single Journal",
		MaxActivations: intPtr(1),
		JournalScoped:  true,
	},
	"multi-site": {
		ID:             "multi-site",
		Label:          "Multi Site (up to 5)",
		MaxActivations: intPtr(5),
	},
	"multi-journal": {
		ID:             "multi-journal",
		Label:          "Multi Journal (up to 5)",
		MaxActivations: intPtr(5),
		JournalScoped:  true,
	},
	"unlimited": {
		ID:       "unlimited",
		Label:    "Unlimited",
		AnyScope: true,
	},
}

// License duration catalog. The 1-year multiplier is 1.0 by convention;
// lifetime is the ceiling.
var licenseDurations = map[string]LicenseDuration{
	"1-year": {
		ID:         "1-year",
		Label:      "1 Year",
		Multiplier: 1.0,
	},
	"2-years": {
		ID:         "2-years",
		Label:      "2 Years",
		Multiplier: 2.0,
		Savings:    "Free priority support",
	},
	"lifetime": {
		ID:         "lifetime",
		Label:      "Lifetime",
		Multiplier: 3.5,
		Savings:    "Best value",
	},
}

// LookupLicenseType returns the catalog entry for id.
func LookupLicenseType(id string) (LicenseType, bool) {
	lt, ok := licenseTypes[id]
	return lt, ok
}

// LookupDuration returns the catalog entry for id.
func LookupDuration(id string) (LicenseDuration, bool) {
	d, ok := licenseDurations[id]
	return d, ok
}

// LicenseTypes returns all license type tiers, for UI selection lists.
func LicenseTypes() []LicenseType {
	out := make([]LicenseType, 0, len(licenseTypes))
	for _, id := range []string{"single-site", "single-journal", "multi-site", "multi-journal", "unlimited"} {
		out = append(out, licenseTypes[id])
	}
	return out
}

// Durations returns all duration tiers ordered by multiplier.
func Durations() []LicenseDuration {
	out := make([]LicenseDuration, 0, len(licenseDurations))
	for _, id := range []string{"1-year", "2-years", "lifetime"} {
		out = append(out, licenseDurations[id])
	}
	return out
}

// CompatibleWithScope reports whether the license type may be sold for a
// product with the given scope. Installation-scoped products take site tiers,
// journal-scoped products take journal tiers; unlimited is valid for both.
func (lt LicenseType) CompatibleWithScope(scope domain.LicenseScope) bool {
	if lt.AnyScope {
		return true
	}
	if scope == domain.LicenseScopeJournal {
		return lt.JournalScoped
	}
	return !lt.JournalScoped
}
