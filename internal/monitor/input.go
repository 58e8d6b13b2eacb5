package monitor

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aleister1102/postwatch/internal/models"
	"github.com/go-playground/validator/v10"
)

// RegisterInput is the request to start monitoring a page.
type RegisterInput struct {
	TenantID       string `validate:"required,max=64"`
	Name           string `validate:"required,max=100"`
	URL            string `validate:"required,url"`
	Destination    string `validate:"required"`
	IntervalMillis int64  `validate:"min=0"`
}

// UpdateInput edits an existing monitor. Nil fields are left unchanged.
type UpdateInput struct {
	TenantID       string  `validate:"required,max=64"`
	Name           string  `validate:"required,max=100"`
	URL            *string `validate:"omitempty,url"`
	Destination    *string `validate:"omitempty,min=1"`
	IntervalMillis *int64  `validate:"omitempty,min=0"`
}

var validate = validator.New()

func (in RegisterInput) normalized() RegisterInput {
	in.TenantID = strings.TrimSpace(in.TenantID)
	in.Name = strings.TrimSpace(in.Name)
	in.URL = strings.TrimSpace(in.URL)
	in.Destination = strings.TrimSpace(in.Destination)
	return in
}

func (in RegisterInput) key() models.MonitorKey {
	return models.MonitorKey{TenantID: in.TenantID, Name: in.Name}
}

// validate returns a human readable reason, or "" when the input is acceptable.
func (in RegisterInput) validate() string {
	if err := validate.Struct(in); err != nil {
		return describe(err)
	}
	return checkPageURL(in.URL)
}

func (in UpdateInput) normalized() UpdateInput {
	in.TenantID = strings.TrimSpace(in.TenantID)
	in.Name = strings.TrimSpace(in.Name)
	if in.URL != nil {
		v := strings.TrimSpace(*in.URL)
		in.URL = &v
	}
	if in.Destination != nil {
		v := strings.TrimSpace(*in.Destination)
		in.Destination = &v
	}
	return in
}

func (in UpdateInput) key() models.MonitorKey {
	return models.MonitorKey{TenantID: in.TenantID, Name: in.Name}
}

func (in UpdateInput) validate() string {
	if err := validate.Struct(in); err != nil {
		return describe(err)
	}
	if in.URL == nil && in.Destination == nil && in.IntervalMillis == nil {
		return "nothing to update"
	}
	if in.URL != nil {
		return checkPageURL(*in.URL)
	}
	return ""
}

func checkPageURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "url is not valid"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "url must use http or https"
	}
	if u.Host == "" {
		return "url must include a host"
	}
	return ""
}

func describe(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}
	reasons := make([]string, 0, len(errs))
	for _, e := range errs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			reasons = append(reasons, field+" is required")
		case "max":
			reasons = append(reasons, fmt.Sprintf("%s must be at most %s characters", field, e.Param()))
		case "url":
			reasons = append(reasons, field+" is not a valid URL")
		default:
			reasons = append(reasons, fmt.Sprintf("%s failed rule '%s'", field, e.Tag()))
		}
	}
	return strings.Join(reasons, "; ")
}
