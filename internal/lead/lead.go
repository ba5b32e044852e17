// Package lead defines the lead submission received from the website form, the AI price estimate derived
// from it and the record archived in the lead store.
package lead

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// ErrInvalid is returned when a submission misses a field it cannot be processed without.
var ErrInvalid = errors.New("invalid lead")

// Submission is a lead as posted by the website form.
//
// Every field is optional at decode time. Required fields are enforced by Validate:
// email, and either name or firstname. Numbers are decoded weakly, so "3" and 3 are both accepted.
type Submission struct {
	Email     string `mapstructure:"email" json:"email,omitempty"`
	Name      string `mapstructure:"name" json:"name,omitempty"`
	Firstname string `mapstructure:"firstname" json:"firstname,omitempty"`
	Lastname  string `mapstructure:"lastname" json:"lastname,omitempty"`
	Phone     string `mapstructure:"phone" json:"phone,omitempty"`

	Address string `mapstructure:"address" json:"address,omitempty"`
	City    string `mapstructure:"city" json:"city,omitempty"`
	State   string `mapstructure:"state" json:"state,omitempty"`
	Zip     string `mapstructure:"zip" json:"zip,omitempty"`

	Bedrooms  *float64 `mapstructure:"bedrooms" json:"bedrooms,omitempty"`
	Bathrooms *float64 `mapstructure:"bathrooms" json:"bathrooms,omitempty"`
	Sqft      *float64 `mapstructure:"sqft" json:"sqft,omitempty"`
	Condition string   `mapstructure:"condition" json:"condition,omitempty"`

	// EstimatedPrice is a caller supplied price, used when no estimate is computed.
	EstimatedPrice *float64 `mapstructure:"estimatedPrice" json:"estimatedPrice,omitempty"`

	// Extra holds the fields the form sent that are not known here. They are archived, never sent to the CRM.
	Extra map[string]any `mapstructure:",remain" json:"-"`
}

// Estimate is the price range returned by the estimate provider.
type Estimate struct {
	EstimatedValue float64 `json:"estimatedValue"`
	LowValue       float64 `json:"lowValue"`
	HighValue      float64 `json:"highValue"`
}

// Decode parses a JSON object into a Submission.
func Decode(data []byte) (Submission, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Submission{}, fmt.Errorf("lead is not a valid JSON object: %w", err)
	}

	var sub Submission
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &sub,
	})
	if err != nil {
		return Submission{}, fmt.Errorf("failed to create decoder: %v", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return Submission{}, fmt.Errorf("lead data does not match expected structure: %w", err)
	}

	return sub, nil
}

// Validate checks that the fields needed to create a contact are present.
func (s Submission) Validate() error {
	var missing []string
	if strings.TrimSpace(s.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(s.Name) == "" && strings.TrimSpace(s.Firstname) == "" {
		missing = append(missing, "name")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalid, strings.Join(missing, ", "))
	}
	return nil
}

// Names returns the given and family names of the lead.
//
// A combined name wins over separate firstname and lastname fields.
func (s Submission) Names() (given, family string) {
	if strings.TrimSpace(s.Name) != "" {
		return SplitName(s.Name)
	}
	return s.Firstname, s.Lastname
}

// SplitName splits a full name on whitespace. The first token is the given name, the remaining tokens
// joined by single spaces are the family name.
func SplitName(full string) (given, family string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
