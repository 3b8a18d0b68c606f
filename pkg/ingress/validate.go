package ingress

import (
	"github.com/go-playground/validator/v10"

	"github.com/fleetward/remediator/internal/cerrors"
	"github.com/fleetward/remediator/pkg/types"
)

var validate = validator.New()

// labelRequirements expresses spec.md's required-if-present label rule as
// a validator-checkable struct: a container label implies a pod label must
// also be present, and a pod label implies a namespace label must also be
// present.
type labelRequirements struct {
	HasContainer bool
	HasPod       bool
	Namespace    string `validate:"required_if=HasPod true"`
	Pod          string `validate:"required_if=HasContainer true"`
}

// validateAlert returns a KindInvalidAlert error naming the missing label
// when alert's labels violate the required-if-present rule.
func validateAlert(alert types.Alert) error {
	req := labelRequirements{
		HasContainer: alert.Container() != "",
		HasPod:       alert.Pod() != "",
		Namespace:    alert.Namespace(),
		Pod:          alert.Pod(),
	}
	if err := validate.Struct(req); err != nil {
		return cerrors.New(cerrors.KindInvalidAlert, "validate alert labels", err).WithResource(alert.AlertName)
	}
	return nil
}
