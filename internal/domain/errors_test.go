package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailureKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want FailureKind
	}{
		{nil, ""},
		{&InsufficientDataError{Events: 2, MinEvents: 7}, FailureInsufficientData},
		{fmt.Errorf("train: %w", &FitFailureError{Err: errors.New("singular")}), FailureFit},
		{fmt.Errorf("item 3: %w", ErrModelNotTrained), FailureModelNotTrained},
		{fmt.Errorf("item 99: %w", ErrEntityNotFound), FailureNotFound},
		{errors.New("connection reset"), FailureUnexpected},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, FailureKindOf(tc.err), "%v", tc.err)
	}
}
