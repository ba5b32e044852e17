// Package crm maps leads into CRM contacts and submits them to HubSpot.
package crm

import (
	"strings"

	"github.com/forgehomes/lead-intake/internal/constants"
	"github.com/forgehomes/lead-intake/internal/lead"
)

// Contact is a set of CRM contact properties, keyed by CRM property name.
type Contact map[string]any

// Property names shared by every mapping.
const (
	PropEmail         = "email"
	PropFirstname     = "firstname"
	PropLastname      = "lastname"
	PropPhone         = "phone"
	PropAddress       = "address"
	PropCity          = "city"
	PropState         = "state"
	PropZip           = "zip"
	PropBedrooms      = "num_bedrooms"
	PropBathrooms     = "num_bathrooms"
	PropSquareFootage = "square_footage"
	PropCondition     = "property_condition"
	PropPriceEstimate = "automated_price_estimate"
	DefaultStatusProp = "forge_lead_status"
	LegacyStatusProp  = "lead_status"
)

// Mapping selects how a lead is laid out as contact properties.
type Mapping struct {
	// StatusProperty is the property receiving the NEW status marker.
	StatusProperty string `json:"statusProperty"`
	// ComposeAddress sends "<address>, <city>, <state>" as a single address property instead of three.
	ComposeAddress bool `json:"composeAddress"`
	// IncludeDetails sends bedrooms, bathrooms, square footage and condition.
	IncludeDetails bool `json:"includeDetails"`
}

// DefaultMapping is the mapping used when no mapping configuration overrides it.
func DefaultMapping() Mapping {
	return Mapping{
		StatusProperty: DefaultStatusProp,
		ComposeAddress: true,
		IncludeDetails: true,
	}
}

// BuildContact maps a lead and its optional estimate into contact properties.
//
// The price property comes from the estimate when there is one, from the caller supplied price otherwise.
// Fields absent from the lead are left out of the contact.
func BuildContact(sub lead.Submission, est *lead.Estimate, m Mapping) Contact {
	if m.StatusProperty == "" {
		m.StatusProperty = DefaultStatusProp
	}

	c := Contact{}
	given, family := sub.Names()
	c.setString(PropEmail, sub.Email)
	c.setString(PropFirstname, given)
	c.setString(PropLastname, family)
	c.setString(PropPhone, sub.Phone)

	if m.ComposeAddress {
		c.setString(PropAddress, composeAddress(sub.Address, sub.City, sub.State))
	} else {
		c.setString(PropAddress, sub.Address)
		c.setString(PropCity, sub.City)
		c.setString(PropState, sub.State)
	}
	c.setString(PropZip, sub.Zip)

	if m.IncludeDetails {
		c.setNumber(PropBedrooms, sub.Bedrooms)
		c.setNumber(PropBathrooms, sub.Bathrooms)
		c.setNumber(PropSquareFootage, sub.Sqft)
		c.setString(PropCondition, sub.Condition)
	}

	if est != nil {
		c[PropPriceEstimate] = est.EstimatedValue
	} else {
		c.setNumber(PropPriceEstimate, sub.EstimatedPrice)
	}

	c[m.StatusProperty] = constants.LeadStatusNew
	return c
}

func composeAddress(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

func (c Contact) setString(key, v string) {
	if v == "" {
		return
	}
	c[key] = v
}

func (c Contact) setNumber(key string, v *float64) {
	if v == nil {
		return
	}
	c[key] = *v
}
