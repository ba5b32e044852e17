package lead_test

import (
	"testing"

	"github.com/forgehomes/lead-intake/internal/lead"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		data string

		want    lead.Submission
		wantErr bool
	}{
		"Full combined name lead": {
			data: `{"name":"John Smith","email":"j@example.com","address":"1 Main St","city":"Springfield","state":"IL",
				"bedrooms":3,"bathrooms":2,"sqft":1500,"condition":"good"}`,
			want: lead.Submission{
				Name: "John Smith", Email: "j@example.com",
				Address: "1 Main St", City: "Springfield", State: "IL",
				Bedrooms: ptr(3), Bathrooms: ptr(2), Sqft: ptr(1500), Condition: "good",
			},
		},
		"Separate names and caller price": {
			data: `{"firstname":"Jane","lastname":"Doe","email":"jane@example.com","estimatedPrice":320000}`,
			want: lead.Submission{Firstname: "Jane", Lastname: "Doe", Email: "jane@example.com", EstimatedPrice: ptr(320000)},
		},
		"Numbers sent as strings are accepted": {
			data: `{"bedrooms":"4","bathrooms":"2.5","sqft":"2100","zip":62704}`,
			want: lead.Submission{Bedrooms: ptr(4), Bathrooms: ptr(2.5), Sqft: ptr(2100), Zip: "62704"},
		},
		"Unknown fields are kept aside": {
			data: `{"email":"a@b.c","utm_source":"ads"}`,
			want: lead.Submission{Email: "a@b.c", Extra: map[string]any{"utm_source": "ads"}},
		},
		"Empty object": {
			data: `{}`,
			want: lead.Submission{},
		},

		"Error on malformed JSON": {data: `{"email":`, wantErr: true},
		"Error on JSON array":     {data: `[1,2]`, wantErr: true},
		"Error on non numeric bedrooms": {
			data:    `{"bedrooms":"three"}`,
			wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := lead.Decode([]byte(tc.data))
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			if len(tc.want.Extra) == 0 && len(got.Extra) == 0 {
				got.Extra = nil
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		sub lead.Submission

		wantErr bool
	}{
		"Combined name":             {sub: lead.Submission{Email: "a@b.c", Name: "Ann Lee"}},
		"Firstname only":            {sub: lead.Submission{Email: "a@b.c", Firstname: "Ann"}},
		"Firstname and lastname":    {sub: lead.Submission{Email: "a@b.c", Firstname: "Ann", Lastname: "Lee"}},
		"Error on missing email":    {sub: lead.Submission{Name: "Ann Lee"}, wantErr: true},
		"Error on missing name":     {sub: lead.Submission{Email: "a@b.c", Lastname: "Lee"}, wantErr: true},
		"Error on blank name":       {sub: lead.Submission{Email: "a@b.c", Name: "   "}, wantErr: true},
		"Error on empty submission": {wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := tc.sub.Validate()
			if tc.wantErr {
				require.ErrorIs(t, err, lead.ErrInvalid)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSplitName(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		full string

		wantGiven  string
		wantFamily string
	}{
		"Two words":                {full: "John Smith", wantGiven: "John", wantFamily: "Smith"},
		"Multiple family words":    {full: "Jane Mary Doe", wantGiven: "Jane", wantFamily: "Mary Doe"},
		"Extra whitespace":         {full: "  Jane \t Mary   Doe ", wantGiven: "Jane", wantFamily: "Mary Doe"},
		"Single word":              {full: "Cher", wantGiven: "Cher"},
		"Empty":                    {},
		"Only whitespace is empty": {full: "   "},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			given, family := lead.SplitName(tc.full)
			assert.Equal(t, tc.wantGiven, given, "Unexpected given name")
			assert.Equal(t, tc.wantFamily, family, "Unexpected family name")
		})
	}
}

func TestNames(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		sub lead.Submission

		wantGiven  string
		wantFamily string
	}{
		"Combined name is split": {
			sub:       lead.Submission{Name: "Jane Mary Doe"},
			wantGiven: "Jane", wantFamily: "Mary Doe",
		},
		"Separate fields pass through": {
			sub:       lead.Submission{Firstname: "Jane", Lastname: "van der Berg"},
			wantGiven: "Jane", wantFamily: "van der Berg",
		},
		"Combined name wins": {
			sub:       lead.Submission{Name: "John Smith", Firstname: "Jane", Lastname: "Doe"},
			wantGiven: "John", wantFamily: "Smith",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			given, family := tc.sub.Names()
			assert.Equal(t, tc.wantGiven, given, "Unexpected given name")
			assert.Equal(t, tc.wantFamily, family, "Unexpected family name")
		})
	}
}
