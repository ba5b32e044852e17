package lead

import "time"

// Record is an archived lead: the submission merged with its estimate, stamped with a creation time.
type Record struct {
	Submission Submission
	Estimate   *Estimate
	CreatedAt  time.Time
}

// NewRecord merges a submission and its optional estimate into a record created at now.
func NewRecord(sub Submission, est *Estimate, now time.Time) Record {
	return Record{Submission: sub, Estimate: est, CreatedAt: now}
}

// Fields flattens the record into a single document.
//
// Unknown form fields come first so that known fields and estimate values always win on conflicts.
// Empty optional fields are left out.
func (r Record) Fields() map[string]any {
	f := make(map[string]any, len(r.Submission.Extra)+16)
	for k, v := range r.Submission.Extra {
		f[k] = v
	}

	s := r.Submission
	setString(f, "email", s.Email)
	setString(f, "name", s.Name)
	setString(f, "firstname", s.Firstname)
	setString(f, "lastname", s.Lastname)
	setString(f, "phone", s.Phone)
	setString(f, "address", s.Address)
	setString(f, "city", s.City)
	setString(f, "state", s.State)
	setString(f, "zip", s.Zip)
	setNumber(f, "bedrooms", s.Bedrooms)
	setNumber(f, "bathrooms", s.Bathrooms)
	setNumber(f, "sqft", s.Sqft)
	setString(f, "condition", s.Condition)
	setNumber(f, "estimatedPrice", s.EstimatedPrice)

	if r.Estimate != nil {
		f["estimatedValue"] = r.Estimate.EstimatedValue
		f["lowValue"] = r.Estimate.LowValue
		f["highValue"] = r.Estimate.HighValue
	}
	f["createdAt"] = r.CreatedAt

	return f
}

func setString(m map[string]any, key, v string) {
	if v == "" {
		return
	}
	m[key] = v
}

func setNumber(m map[string]any, key string, v *float64) {
	if v == nil {
		return
	}
	m[key] = *v
}
