package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	DocketNo  string `json:"docketNo" validate:"required,max=10"`
	Email     string `json:"email" validate:"omitempty,email"`
	DateFiled string `json:"dateFiled" validate:"required,isodate"`
	Time      string `json:"time" validate:"omitempty,clock"`
	Decision  string `json:"remarksDecision" validate:"omitempty,oneof=Pending Dismissed Convicted"`
}

func TestFieldErrorsUsesJSONNames(t *testing.T) {
	v := New()
	err := v.Struct(sample{Email: "bad", DateFiled: "03/05/2024", Time: "25:00", Decision: "Maybe"})
	require.Error(t, err)

	fields := FieldErrors(err)
	assert.Equal(t, "is required", fields["docketNo"])
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Equal(t, "must be a date in YYYY-MM-DD format", fields["dateFiled"])
	assert.Equal(t, "must be a time in HH:MM format", fields["time"])
	assert.Equal(t, "must be one of: Pending, Dismissed, Convicted", fields["remarksDecision"])
}

func TestFieldErrorsAcceptsValid(t *testing.T) {
	v := New()
	require.NoError(t, v.Struct(sample{DocketNo: "NPS-1", DateFiled: "2024-03-05", Time: "02:30"}))
}

func TestFieldErrorsIgnoresOtherErrors(t *testing.T) {
	assert.Nil(t, FieldErrors(errors.New("boom")))
}

func TestFieldErrorsMaxLength(t *testing.T) {
	err := New().Struct(sample{DocketNo: "0123456789ABC", DateFiled: "2024-01-01"})
	assert.Equal(t, "must be at most 10 characters", FieldErrors(err)["docketNo"])
}
