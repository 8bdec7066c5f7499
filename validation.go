package auth

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const maxPasswordLength = 100

// LoginRequest payload
type LoginRequest struct {
	Email      string `form:"email" json:"email"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

// Credentials converts the payload to the backend request
func (r LoginRequest) Credentials() Credentials {
	return Credentials{
		Email:      strings.TrimSpace(r.Email),
		Password:   r.Password,
		RememberMe: r.RememberMe,
	}
}

// Validate checks the payload is well formed. It never decides whether
// the credentials are valid.
func (r LoginRequest) Validate() error {
	return r.validate(DefaultOptions().GetPasswordMinLength())
}

func (r LoginRequest) validate(minPassword int) error {
	r.Email = strings.TrimSpace(r.Email)
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(minPassword, maxPasswordLength),
		),
	)
}

// RegisterRequest is the registration form payload
type RegisterRequest struct {
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
	FirstName       string `form:"first_name" json:"first_name"`
	LastName        string `form:"last_name" json:"last_name"`
	JobTitle        string `form:"job_title" json:"job_title"`
	Department      string `form:"department" json:"department"`
}

// Registration converts the payload to the backend request
func (r RegisterRequest) Registration() Registration {
	return Registration{
		Email:      strings.TrimSpace(r.Email),
		Password:   r.Password,
		FirstName:  strings.TrimSpace(r.FirstName),
		LastName:   strings.TrimSpace(r.LastName),
		JobTitle:   strings.TrimSpace(r.JobTitle),
		Department: strings.TrimSpace(r.Department),
	}
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return r.validate(DefaultOptions().GetPasswordMinLength())
}

func (r RegisterRequest) validate(minPassword int) error {
	r.Email = strings.TrimSpace(r.Email)
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(minPassword, maxPasswordLength)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.JobTitle, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Department, validation.Length(0, 200)),
	)
}

// ValidateStringEquals checks the value matches str
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens validation errors into field → message
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["form"] = err.Error()
	return out
}

func validationError(operation string, err error) error {
	fields := FormatValidationErrorToMap(err)
	clone := ErrValidation.Clone()
	if clone == nil {
		return ErrValidation
	}
	clone.Source = err
	return clone.WithMetadata(map[string]any{
		"operation": operation,
		"fields":    fields,
	})
}

// ValidationFields returns the per field messages carried by a validation
// error returned from Login or Register.
func ValidationFields(err error) map[string]string {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return FormatValidationErrorToMap(verrs)
	}

	if Classify(err) != KindValidation {
		return nil
	}

	fields, _ := richMetadata(err)["fields"].(map[string]string)
	return fields
}
