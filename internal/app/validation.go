package app

import (
	"encoding/json"
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var rgbHex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("rgbhex", func(fl validator.FieldLevel) bool {
		return rgbHex.MatchString(fl.Field().String())
	})
	return v
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type CreateBoardInput struct {
	Title           string `json:"title" validate:"required,max=255"`
	Description     string `json:"description" validate:"max=1000"`
	BackgroundColor string `json:"backgroundColor" validate:"omitempty,rgbhex"`
	IsPrivate       bool   `json:"isPrivate"`
}

type UpdateBoardInput struct {
	Title           *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description     *string `json:"description" validate:"omitempty,max=1000"`
	BackgroundColor *string `json:"backgroundColor" validate:"omitempty,rgbhex"`
	IsPrivate       *bool   `json:"isPrivate"`
}

// CreateListInput places the new list at Position when given, otherwise last.
type CreateListInput struct {
	BoardID     string `json:"boardId" validate:"required"`
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"max=1000"`
	Position    *int   `json:"position" validate:"omitempty,min=1"`
}

type UpdateListInput struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	IsArchived  *bool   `json:"isArchived"`
}

type MoveListInput struct {
	Position int `json:"position" validate:"min=1"`
}

type CreateCardInput struct {
	ListID      string     `json:"listId" validate:"required"`
	Title       string     `json:"title" validate:"required,max=255"`
	Description string     `json:"description" validate:"max=2000"`
	Position    *int       `json:"position" validate:"omitempty,min=1"`
	DueDate     *time.Time `json:"dueDate"`
}

type UpdateCardInput struct {
	Title       *string      `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string      `json:"description" validate:"omitempty,max=2000"`
	DueDate     OptionalTime `json:"dueDate"`
}

type MoveCardInput struct {
	ListID   string `json:"listId" validate:"required"`
	Position int    `json:"position" validate:"min=1"`
}

// OptionalTime tells an absent JSON field apart from an explicit null.
type OptionalTime struct {
	Set   bool
	Value *time.Time
}

func (o *OptionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	o.Value = &t
	return nil
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (s *Service) validate(input any) error {
	err := s.validator.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domainError(KindValidationFailed, "VALIDATION_ERROR", "Validation failed", nil)
	}
	details := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fieldError{Field: fe.Field(), Message: describe(fe)})
	}
	return domainError(KindValidationFailed, "VALIDATION_ERROR", "Validation failed", details)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		if fe.Kind().String() == "string" {
			return fe.Field() + " must be at least " + fe.Param() + " characters"
		}
		return fe.Field() + " must be at least " + fe.Param()
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "email":
		return fe.Field() + " must be a valid email"
	case "rgbhex":
		return fe.Field() + " must be a #RRGGBB color"
	default:
		return fe.Field() + " is invalid"
	}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
