package extractor

import "github.com/PhiFever/idbadge-scanner/internal/models"

// Sentinels stored in place of unresolved values
const (
	NotFound         = "Not Found"
	NotAvailable     = "N/A"
	DefaultAuthority = "KANTOR OTORITAS"
	DefaultLocation  = "BANDAR UDARA"
)

// Field is an extracted value tagged with whether it was actually read
type Field struct {
	Value    string
	Resolved bool
}

func resolved(v string) Field {
	if v == "" {
		return Field{}
	}
	return Field{Value: v, Resolved: true}
}

// Or returns the value when resolved and fallback otherwise
func (f Field) Or(fallback string) string {
	if f.Resolved {
		return f.Value
	}
	return fallback
}

// Result is the best-effort parse of one recognized text
type Result struct {
	IssuingAuthority Field
	Location         Field
	ExpiryDate       Field
	AccessAreas      []string
	Name             Field
	Position         Field
	Company          Field
	IDNumber         Field
}

// Complete reports whether the fields a scan cannot do without were read
func (r Result) Complete() bool {
	return r.Name.Resolved && r.IDNumber.Resolved
}

// Missing lists the required fields that were not resolved
func (r Result) Missing() []string {
	var missing []string
	if !r.Name.Resolved {
		missing = append(missing, "name")
	}
	if !r.IDNumber.Resolved {
		missing = append(missing, "idNumber")
	}
	return missing
}

// Fields fills every unresolved value with its sentinel
func (r Result) Fields() models.BadgeFields {
	areas := append([]string{}, r.AccessAreas...)
	return models.BadgeFields{
		IssuingAuthority: r.IssuingAuthority.Or(DefaultAuthority),
		Location:         r.Location.Or(DefaultLocation),
		ExpiryDate:       r.ExpiryDate.Or(NotAvailable),
		AccessAreas:      areas,
		Name:             r.Name.Or(NotFound),
		Position:         r.Position.Or(NotFound),
		Company:          r.Company.Or(NotFound),
		IDNumber:         r.IDNumber.Or(NotFound),
	}
}
