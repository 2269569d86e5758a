package models

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestStatusRank(t *testing.T) {
	for i, st := range StatusOrder {
		require.Equal(t, i, st.Rank())
		require.True(t, st.Valid())
	}
	require.Less(t, StatusAccepted.Rank(), StatusAwaitingParts.Rank())
	require.Less(t, StatusAwaitingParts.Rank(), StatusInProgress.Rank())
	require.Equal(t, -1, Status("SCRAPPED").Rank())

	require.True(t, StatusDelivered.Terminal())
	require.False(t, StatusReady.Terminal())
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("  quality_check ")
	require.NoError(t, err)
	require.Equal(t, StatusQualityCheck, st)

	_, err = ParseStatus("WAITING")
	require.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "status", verr.Field)
}

func TestParseRepairKind(t *testing.T) {
	k, err := ParseRepairKind("cosmetic")
	require.NoError(t, err)
	require.Equal(t, RepairKindCosmetic, k)

	_, err = ParseRepairKind("")
	require.ErrorIs(t, err, ErrValidation)
}

func TestTransitionErrorMatching(t *testing.T) {
	rec := &Repair{ID: "r", Status: StatusDelivered}
	err := error(&TransitionError{Code: ErrRegressionNotAllowed, Repair: rec, From: StatusDelivered, To: StatusReady})

	require.ErrorIs(t, err, ErrRegressionNotAllowed)
	require.ErrorIs(t, err, ErrTerminalState)
	require.NotErrorIs(t, err, ErrConcurrentModification)

	wrapped := errors.Wrap(err, "transition")
	var terr *TransitionError
	require.True(t, errors.As(wrapped, &terr))
	require.Same(t, rec, terr.Repair)

	err = &TransitionError{Code: ErrRegressionNotAllowed, From: StatusReady, To: StatusAccepted}
	require.ErrorIs(t, err, ErrRegressionNotAllowed)
	require.NotErrorIs(t, err, ErrTerminalState)
	require.Equal(t, "regression not allowed: READY -> ACCEPTED", err.Error())
}

func TestValidationError(t *testing.T) {
	require.Equal(t, "vehicle.plate: is required", NewValidationError("vehicle.plate", "is required").Error())
	require.Equal(t, "bad", NewValidationError("", "bad").Error())
}
