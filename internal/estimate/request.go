package estimate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/forgehomes/lead-intake/internal/lead"
)

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type schema struct {
	Type       string            `json:"type"`
	Properties map[string]schema `json:"properties,omitempty"`
	Required   []string          `json:"required,omitempty"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
	ResponseSchema   schema `json:"responseSchema"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content *content `json:"content"`
	} `json:"candidates"`
}

// text returns the first part text of the first candidate.
func (r generateResponse) text() (string, bool) {
	if len(r.Candidates) == 0 {
		return "", false
	}
	c := r.Candidates[0].Content
	if c == nil || len(c.Parts) == 0 || c.Parts[0].Text == "" {
		return "", false
	}
	return c.Parts[0].Text, true
}

// estimateSchema constrains the model answer to the three estimate values.
var estimateSchema = schema{
	Type: "OBJECT",
	Properties: map[string]schema{
		"estimatedValue": {Type: "NUMBER"},
		"lowValue":       {Type: "NUMBER"},
		"highValue":      {Type: "NUMBER"},
	},
	Required: []string{"estimatedValue", "lowValue", "highValue"},
}

func newGenerateRequest(prompt string) generateRequest {
	return generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   estimateSchema,
		},
	}
}

// Prompt describes the lead property to the model.
func Prompt(sub lead.Submission) string {
	var b strings.Builder
	b.WriteString("You are a residential real estate appraiser. ")
	b.WriteString("Estimate the current market value in US dollars of the following property.\n")
	fmt.Fprintf(&b, "Address: %s\n", orUnknown(strings.Join(nonEmpty(sub.Address, sub.City, sub.State), ", ")))
	fmt.Fprintf(&b, "Bedrooms: %s\n", number(sub.Bedrooms))
	fmt.Fprintf(&b, "Bathrooms: %s\n", number(sub.Bathrooms))
	fmt.Fprintf(&b, "Square footage: %s\n", number(sub.Sqft))
	fmt.Fprintf(&b, "Condition: %s\n", orUnknown(sub.Condition))
	b.WriteString("Answer with estimatedValue, your best estimate, and lowValue and highValue, ")
	b.WriteString("the bounds of a realistic price range.")
	return b.String()
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}

func number(f *float64) string {
	if f == nil {
		return "unknown"
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
