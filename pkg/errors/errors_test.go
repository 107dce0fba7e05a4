package errors

import (
	"database/sql"
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneMatchesSentinel(t *testing.T) {
	err := Clone(ErrRoomFull, "room 101 is full")
	assert.True(t, stdErrors.Is(err, ErrRoomFull))
	assert.False(t, stdErrors.Is(err, ErrBedOccupied))
	assert.Equal(t, "room 101 is full", err.Message)
	assert.Equal(t, "room is full", ErrRoomFull.Message)
}

func TestWrappedCloneStillMatches(t *testing.T) {
	wrapped := fmt.Errorf("allocate: %w", Clone(ErrBedOccupied, ""))
	assert.True(t, stdErrors.Is(wrapped, ErrBedOccupied))
	assert.True(t, HasCode(wrapped, ErrBedOccupied.Code))
}

func TestFromErrorNormalisesPlainErrors(t *testing.T) {
	appErr := FromError(sql.ErrConnDone)
	require.NotNil(t, appErr)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.True(t, stdErrors.Is(appErr, sql.ErrConnDone))
	assert.Nil(t, FromError(nil))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Wrap(stdErrors.New("boom"), ErrInternal.Code, ErrInternal.Status, "failed to lock room")
	assert.Equal(t, "failed to lock room: boom", err.Error())
}
