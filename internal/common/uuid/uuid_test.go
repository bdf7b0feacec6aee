package uuid

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	id := New()
	assert.NotEqual(t, uuid.Nil, id)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestNewRandom(t *testing.T) {
	id, err := NewRandom()
	assert.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestParse(t *testing.T) {
	validUUID := "123e4567-e89b-12d3-a456-426614174000"
	id, err := Parse(validUUID)
	assert.NoError(t, err)
	assert.Equal(t, validUUID, id.String())

	_, err = Parse("invalid-uuid")
	assert.Error(t, err)
}

func TestMustParse(t *testing.T) {
	validUUID := "123e4567-e89b-12d3-a456-426614174000"
	id := MustParse(validUUID)
	assert.Equal(t, validUUID, id.String())

	assert.Panics(t, func() {
		MustParse("invalid-uuid")
	})
}

func TestGetTimestampFromUUID(t *testing.T) {
	id := New()
	timestamp := GetTimestampFromUUID(id)

	now := time.Now()
	diff := now.Sub(timestamp)
	assert.True(t, diff >= -time.Second && diff <= time.Second)
}
