package services

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/huangang/soundvault/pkg/response"
)

const (
	msgBlank       = "can't be blank"
	msgTaken       = "has already been taken"
	msgNotIncluded = "is not included in the list"
	msgInvalidURL  = "must be a valid URL"
)

var validate = validator.New()

// fieldErrors accumulates invalid fields in the order they were checked.
type fieldErrors []response.FieldError

func (f *fieldErrors) add(field, message string) {
	*f = append(*f, response.FieldError{Field: field, Message: message})
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return response.NewValidationErrors(f...)
}

func (f *fieldErrors) length(field, value string, min, max int) {
	n := utf8.RuneCountInString(value)
	switch {
	case n == 0 && min > 0:
		f.add(field, msgBlank)
	case n < min:
		f.add(field, fmt.Sprintf("is too short (minimum is %d characters)", min))
	case max > 0 && n > max:
		f.add(field, fmt.Sprintf("is too long (maximum is %d characters)", max))
	}
}

func validEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

// validWebURL accepts absolute http and https URLs.
func validWebURL(raw string) bool {
	if validate.Var(raw, "required,url") != nil {
		return false
	}
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// findOr404 converts a missing row into the not_found error of entity.
func findOr404(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return response.NewNotFound(entity)
	}
	return err
}

// existingIDs keeps the ids of model that exist, preserving order and dropping duplicates.
func existingIDs(db *gorm.DB, model interface{}, ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var found []uint
	if err := db.Model(model).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	present := make(map[uint]bool, len(found))
	for _, id := range found {
		present[id] = true
	}

	out := make([]uint, 0, len(found))
	for _, id := range ids {
		if present[id] {
			out = append(out, id)
			delete(present, id)
		}
	}
	return out, nil
}
