package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUnavailable(t *testing.T) {
	assert.True(t, IsUnavailable(fmt.Errorf("list cases: %w", driver.ErrBadConn)))
	assert.True(t, IsUnavailable(context.DeadlineExceeded))
	assert.True(t, IsUnavailable(&pq.Error{Code: "08006"}))
	assert.True(t, IsUnavailable(&pq.Error{Code: "57P01"}))
	assert.True(t, IsUnavailable(errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")))

	assert.False(t, IsUnavailable(nil))
	assert.False(t, IsUnavailable(&pq.Error{Code: "23505"}))
	assert.False(t, IsUnavailable(errors.New("syntax error")))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("create case: %w", &pq.Error{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
}
