package account

import (
	"fmt"
	"sort"
	"strings"
)

const (
	maxPhoneLength    = 15
	minPasswordLength = 3
	maxPasswordBytes  = 72 // bcrypt input limit
)

// ValidationError collects field-level problems with an account payload.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// IsNumeric reports whether s is a non-empty string of ASCII digits.
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ValidPhone reports whether phone is usable as a login identifier.
func ValidPhone(phone string) bool {
	return IsNumeric(phone) && len(phone) <= maxPhoneLength
}

// ValidPIN reports whether pin is a 4 or 6 digit number.
func ValidPIN(pin string) bool {
	return IsNumeric(pin) && (len(pin) == 4 || len(pin) == 6)
}

// ValidPassword reports whether password meets the minimum length.
func ValidPassword(password string) bool {
	return len(password) >= minPasswordLength
}

func validateNew(in NewAccount) error {
	fields := make(map[string]string)

	switch {
	case strings.TrimSpace(in.Phone) == "":
		fields["phone"] = "phone_required"
	case !ValidPhone(in.Phone):
		fields["phone"] = "phone_must_be_numeric"
	}

	switch {
	case in.Password == "":
		fields["password"] = "password_required"
	case !ValidPassword(in.Password):
		fields["password"] = "password_too_short"
	case len(in.Password) > maxPasswordBytes:
		fields["password"] = "password_too_long"
	}

	if in.PIN != "" && !ValidPIN(in.PIN) {
		fields["pin"] = "pin_must_be_4_or_6_digits"
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func validatePatch(p Patch) error {
	fields := make(map[string]string)

	if p.Phone != nil && !ValidPhone(*p.Phone) {
		fields["phone"] = "phone_must_be_numeric"
	}
	if p.Password != nil {
		switch {
		case !ValidPassword(*p.Password):
			fields["password"] = "password_too_short"
		case len(*p.Password) > maxPasswordBytes:
			fields["password"] = "password_too_long"
		}
	}
	if p.PIN != nil && !ValidPIN(*p.PIN) {
		fields["pin"] = "pin_must_be_4_or_6_digits"
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
