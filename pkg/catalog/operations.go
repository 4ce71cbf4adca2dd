package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ycslms/lmsflow/pkg/condition"
	"github.com/ycslms/lmsflow/pkg/models"
	"github.com/ycslms/lmsflow/pkg/protocol"
	"github.com/ycslms/lmsflow/pkg/registry"
	"github.com/ycslms/lmsflow/pkg/rules"
	"github.com/ycslms/lmsflow/pkg/tenancy"
)

// Components and operations of the stand-in services.
const (
	ComponentOrderValidation = "OrderValidationService"
	ComponentPayment         = "PaymentService"
	ComponentShipment        = "ShipmentService"
	ComponentUserValidation  = "UserValidationService"
	ComponentUser            = "UserService"
	ComponentLabel           = "LabelService"
	ComponentNotification    = "NotificationService"

	OpValidateOrder         = "validateOrder"
	OpProcessPayment        = "processPayment"
	OpPrepareShipment       = "prepareShipment"
	OpPerformAutoCheck      = "performAutoCheck"
	OpApproveUser           = "approveUser"
	OpGenerateShippingLabel = "generateShippingLabel"
	OpDispatch              = "dispatch"
	OpSendUrgentOrderAlert  = "sendUrgentOrderAlert"
)

const urgentOrderRecipient = "operations"

type services struct {
	engine   *rules.Engine
	notifier protocol.Notifier
	now      func() time.Time
}

func (s *services) register(ops *registry.Registry) {
	ops.Register(ComponentOrderValidation, OpValidateOrder, s.validateOrder)
	ops.Register(ComponentPayment, OpProcessPayment, s.processPayment)
	ops.Register(ComponentShipment, OpPrepareShipment, s.prepareShipment)
	ops.Register(ComponentUserValidation, OpPerformAutoCheck, s.performAutoCheck)
	ops.Register(ComponentUser, OpApproveUser, s.approveUser)
	ops.Register(ComponentLabel, OpGenerateShippingLabel, s.generateShippingLabel)
	ops.Register(ComponentShipment, OpDispatch, s.dispatch)
	ops.Register(ComponentNotification, OpSendUrgentOrderAlert, s.sendUrgentOrderAlert)
}

func stringValue(input map[string]any, key string) string {
	v, ok := input[key]
	if !ok || v == nil {
		return ""
	}

	return strings.TrimSpace(fmt.Sprint(v))
}

// validateOrder accepts orders that carry an id and a positive amount or total value.
func (s *services) validateOrder(_ context.Context, input map[string]any) (map[string]any, error) {
	var problems []string

	if stringValue(input, "orderId") == "" {
		problems = append(problems, "orderId is required")
	}

	amount, ok := condition.ToFloat(input["amount"])
	if !ok {
		amount, ok = condition.ToFloat(input["totalValue"])
	}

	if !ok || amount <= 0 {
		problems = append(problems, "amount must be positive")
	}

	return map[string]any{
		"validationSuccess": len(problems) == 0,
		"validationErrors":  problems,
	}, nil
}

func (s *services) processPayment(_ context.Context, _ map[string]any) (map[string]any, error) {
	return map[string]any{
		"paymentId":     uuid.NewString(),
		"paymentStatus": "PAID",
		"paidAt":        s.now().UTC().Format(time.RFC3339),
	}, nil
}

func (s *services) prepareShipment(_ context.Context, _ map[string]any) (map[string]any, error) {
	return map[string]any{"shipmentStatus": "PREPARED"}, nil
}

// performAutoCheck approves a registration when every user registration rule passes.
func (s *services) performAutoCheck(ctx context.Context, input map[string]any) (map[string]any, error) {
	rc := &models.RuleContext{
		EntityType: models.EntityUser,
		EntityID:   stringValue(input, "userId"),
		TenantID:   tenancy.FromContext(ctx),
		Data:       models.CopyMap(input),
		ExecutedAt: s.now(),
	}

	result, err := s.engine.ExecuteRuleSet(ctx, RuleSetUserRegistration, rc)
	if err != nil {
		return nil, err
	}

	failed := make([]string, 0)

	for _, r := range result.Results {
		if !r.Passed {
			failed = append(failed, r.RuleID)
		}
	}

	return map[string]any{
		"autoCheckApproved": result.Passed,
		"autoCheckFailures": failed,
	}, nil
}

func (s *services) approveUser(_ context.Context, _ map[string]any) (map[string]any, error) {
	return map[string]any{
		"userStatus": "APPROVED",
		"approvedAt": s.now().UTC().Format(time.RFC3339),
	}, nil
}

func (s *services) generateShippingLabel(_ context.Context, input map[string]any) (map[string]any, error) {
	label := "LBL-" + strings.ToUpper(uuid.NewString()[:8])
	if id := stringValue(input, "shipmentId"); id != "" {
		label = "LBL-" + id
	}

	return map[string]any{"labelId": label}, nil
}

func (s *services) dispatch(_ context.Context, _ map[string]any) (map[string]any, error) {
	return map[string]any{
		"shipmentStatus": "DISPATCHED",
		"dispatchedAt":   s.now().UTC().Format(time.RFC3339),
	}, nil
}

func (s *services) sendUrgentOrderAlert(ctx context.Context, input map[string]any) (map[string]any, error) {
	if s.notifier == nil {
		return map[string]any{"urgentAlertSent": false}, nil
	}

	message := "Urgent order received"
	if id := stringValue(input, "orderId"); id != "" {
		message = "Urgent order " + id + " received"
	}

	if err := s.notifier.Notify(ctx, urgentOrderRecipient, message); err != nil {
		return nil, err
	}

	return map[string]any{"urgentAlertSent": true}, nil
}
