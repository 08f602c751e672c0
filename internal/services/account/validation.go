// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package account

import (
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// MinLoginLength is the shortest accepted login.
const MinLoginLength = 4

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

var errEmailSyntax = errors.New("must be a valid email address")
var errBlank = errors.New("cannot be blank")
var errPasswordLength = fmt.Errorf("must be at most %d bytes", MaxPasswordBytes)

func notBlank(value interface{}) error {
	s, _ := value.(string)
	if s != "" && strings.TrimSpace(s) == "" {
		return errBlank
	}
	return nil
}

// maxBytes limits the UTF-8 length of a string to MaxPasswordBytes.
func maxBytes(value interface{}) error {
	s, _ := value.(string)
	if len(s) > MaxPasswordBytes {
		return errPasswordLength
	}
	return nil
}

// emailAddress accepts a bare RFC 5322 address without display name.
func emailAddress(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return errEmailSyntax
	}
	return nil
}

func loginRules(login *string) *validation.FieldRules {
	return validation.Field(login,
		validation.Required,
		validation.By(notBlank),
		validation.Length(MinLoginLength, 0),
	)
}

func emailRules(email *string) *validation.FieldRules {
	return validation.Field(email,
		validation.Required,
		validation.By(emailAddress),
	)
}

func passwordRules(password *string) *validation.FieldRules {
	return validation.Field(password,
		validation.Required,
		validation.By(notBlank),
		validation.By(maxBytes),
	)
}

// invalidInput converts ozzo validation errors into an InvalidInputError
// with the failing field names sorted.
func invalidInput(err error) error {
	if err == nil {
		return nil
	}

	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]string, 0, len(verrs))
	for field := range verrs {
		fields = append(fields, field)
	}
	slices.Sort(fields)

	return &InvalidInputError{Fields: fields, Err: err}
}

// RegisterRequest is the input of Register.
type RegisterRequest struct {
	Login    string `json:"login"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the registration fields.
func (r RegisterRequest) Validate() error {
	return invalidInput(validation.ValidateStruct(&r,
		loginRules(&r.Login),
		emailRules(&r.Email),
		passwordRules(&r.Password),
	))
}

// CreateRequest is the input of the administrative CreateUser.
type CreateRequest struct {
	Email       string   `json:"email"`
	Login       string   `json:"login"`
	Authorities []string `json:"authorities"`
}

// Validate checks the login and email.
func (r CreateRequest) Validate() error {
	return invalidInput(validation.ValidateStruct(&r,
		loginRules(&r.Login),
		emailRules(&r.Email),
	))
}

// UpdateRequest is the input of UpdateUser.
type UpdateRequest struct {
	Login       string   `json:"login"`
	Email       string   `json:"email"`
	Authorities []string `json:"authorities"`
}

// Validate checks the login and email.
func (r UpdateRequest) Validate() error {
	return invalidInput(validation.ValidateStruct(&r,
		loginRules(&r.Login),
		emailRules(&r.Email),
	))
}

type passwordInput struct {
	Password string `json:"password"`
}

func validatePassword(password string) error {
	in := passwordInput{Password: password}
	return invalidInput(validation.ValidateStruct(&in, passwordRules(&in.Password)))
}
