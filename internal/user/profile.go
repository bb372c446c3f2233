package user

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/onnwee/socialgraph/internal/validate"
)

// Profile field limits, in characters.
const (
	MaxShortFieldLength  = 60
	MaxDescriptionLength = 255
)

// ProfileUpdate carries the editable profile fields. Empty fields are left
// unchanged.
type ProfileUpdate struct {
	Name        string `json:"name"`
	Surname     string `json:"surname"`
	Description string `json:"description"`
	City        string `json:"city"`
	School      string `json:"school"`
	Work        string `json:"work"`
	Website     string `json:"website"`
	Cover       string `json:"cover"`
}

// ValidationError reports every invalid field of a profile update.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("invalid profile fields: %s", strings.Join(names, ", "))
}

// IsValidationError reports whether err carries field-level validation errors.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validate checks the update against the field limits and returns the
// trimmed update. No field is written when any field is invalid.
func (p ProfileUpdate) Validate() (ProfileUpdate, error) {
	fields := make(map[string]string)
	out := ProfileUpdate{}

	check := func(name, value string, max int, dst *string) {
		v, err := validate.String(value, validate.StringConstraints{
			MaxLength:  max,
			AllowEmpty: true,
			TrimSpace:  true,
		})
		if err != nil {
			fields[name] = fmt.Sprintf("must be at most %d characters", max)
			return
		}
		*dst = v
	}

	check("name", p.Name, MaxShortFieldLength, &out.Name)
	check("surname", p.Surname, MaxShortFieldLength, &out.Surname)
	check("city", p.City, MaxShortFieldLength, &out.City)
	check("school", p.School, MaxShortFieldLength, &out.School)
	check("work", p.Work, MaxShortFieldLength, &out.Work)
	check("website", p.Website, MaxShortFieldLength, &out.Website)
	check("description", p.Description, MaxDescriptionLength, &out.Description)
	if cover := strings.TrimSpace(p.Cover); cover != "" {
		v, err := validate.MediaURL(cover)
		if err != nil {
			fields["cover"] = "must be a public http or https URL"
		} else {
			out.Cover = v
		}
	}

	if len(fields) > 0 {
		return ProfileUpdate{}, &ValidationError{Fields: fields}
	}
	return out, nil
}

// IsEmpty reports whether the update would change nothing.
func (p ProfileUpdate) IsEmpty() bool {
	return p == ProfileUpdate{}
}

// apply writes the non-empty fields of p onto u.
func (p ProfileUpdate) apply(u *User) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&u.Name, p.Name)
	set(&u.Surname, p.Surname)
	set(&u.Description, p.Description)
	set(&u.City, p.City)
	set(&u.School, p.School)
	set(&u.Work, p.Work)
	set(&u.Website, p.Website)
	set(&u.Cover, p.Cover)
}
