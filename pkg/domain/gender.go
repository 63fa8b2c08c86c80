package domain

import dErrors "workpermit/pkg/domain-errors"

// Gender is the worker attribute gender sub-quotas are checked against.
// Invariant: the value must be one of the supported genders.
//
// Usage: construct via ParseGender at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

var validGenders = map[Gender]bool{
	GenderMale:   true,
	GenderFemale: true,
}

// ParseGender constructs a Gender from external input.
func ParseGender(s string) (Gender, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "gender cannot be empty")
	}
	g := Gender(s)
	if !g.IsValid() {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid gender")
	}
	return g, nil
}

// IsValid checks if the gender is one of the supported enum values.
func (g Gender) IsValid() bool {
	return validGenders[g]
}

// String returns the string representation of the gender.
func (g Gender) String() string {
	return string(g)
}
