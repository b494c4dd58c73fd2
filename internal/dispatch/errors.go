package dispatch

import (
	"context"
	"errors"

	"github.com/flemzord/idrsched/internal/controlplane"
	"github.com/flemzord/idrsched/internal/seal"
	"github.com/flemzord/idrsched/internal/strategy"
)

// Failure kinds reported in logs.
const (
	KindCredential = "credential"
	KindStrategy   = "strategy"
	KindValidation = "validation"
	KindConnect    = "connect"
	KindOperation  = "operation"
	KindCancelled  = "cancelled"
	KindUnknown    = "unknown"
)

// Kind classifies a firing error.
func Kind(err error) string {
	switch {
	case errors.Is(err, seal.ErrUnseal), errors.Is(err, seal.ErrKeyFile):
		return KindCredential
	case errors.Is(err, strategy.ErrUnknownStrategy):
		return KindStrategy
	case errors.Is(err, strategy.ErrNoDataStore):
		return KindValidation
	case errors.Is(err, controlplane.ErrConnect):
		return KindConnect
	case errors.Is(err, controlplane.ErrOperation):
		return KindOperation
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	default:
		return KindUnknown
	}
}
