package catalog

import "github.com/ycslms/lmsflow/pkg/models"

const (
	WorkflowOrderProcessing    = "ORDER_PROCESSING"
	WorkflowUserApproval       = "USER_APPROVAL"
	WorkflowShipmentProcessing = "SHIPMENT_PROCESSING"
)

func service(id, name, component, operation string, next ...string) *models.WorkflowNode {
	return &models.WorkflowNode{
		ID: id, Name: name, Type: models.NodeTypeServiceTask,
		Component: component, Operation: operation, Outgoing: models.To(next...),
	}
}

// userTask keeps the comma separated pool and due days as properties, the
// shape imported definitions use.
func userTask(id, name, description, candidates, dueDays string, next ...string) *models.WorkflowNode {
	return &models.WorkflowNode{
		ID: id, Name: name, Description: description, Type: models.NodeTypeUserTask,
		Properties: map[string]any{"candidateUsers": candidates, "dueDays": dueDays},
		Outgoing:   models.To(next...),
	}
}

func decision(id, name string, predicate models.Predicate, onTrue, onFalse string) *models.WorkflowNode {
	cond := models.Pattern(predicate)

	return &models.WorkflowNode{
		ID: id, Name: name, Type: models.NodeTypeDecision, Condition: &cond, Outgoing: models.To(onTrue, onFalse),
	}
}

func definition(id, name, start string, nodes ...*models.WorkflowNode) *models.WorkflowDefinition {
	def := &models.WorkflowDefinition{
		ID:        id,
		Name:      name,
		Version:   "1.0",
		TenantID:  models.DefaultTenant,
		StartNode: start,
		Nodes:     make(map[string]*models.WorkflowNode, len(nodes)),
	}

	for _, n := range nodes {
		def.Nodes[n.ID] = n
	}

	return def
}

// Workflows returns fresh copies of the built-in definitions, all owned by the default tenant.
func Workflows() []*models.WorkflowDefinition {
	return []*models.WorkflowDefinition{
		definition(WorkflowOrderProcessing, "Order processing", "ORDER_CREATED",
			&models.WorkflowNode{ID: "ORDER_CREATED", Name: "Order created", Type: models.NodeTypeStart, Outgoing: models.To("VALIDATE_ORDER")},
			service("VALIDATE_ORDER", "Validate order", ComponentOrderValidation, OpValidateOrder, "VALIDATION_DECISION"),
			decision("VALIDATION_DECISION", "Validation result", models.PredicateValidationSucceeded, "PROCESS_PAYMENT", "MANUAL_REVIEW"),
			service("PROCESS_PAYMENT", "Process payment", ComponentPayment, OpProcessPayment, "PREPARE_SHIPMENT"),
			userTask("MANUAL_REVIEW", "Manual review", "Review the order manually", "admin,manager", "1", "PREPARE_SHIPMENT"),
			service("PREPARE_SHIPMENT", "Prepare shipment", ComponentShipment, OpPrepareShipment, "ORDER_COMPLETED"),
			&models.WorkflowNode{ID: "ORDER_COMPLETED", Name: "Order completed", Type: models.NodeTypeEnd},
		),
		definition(WorkflowUserApproval, "User approval", "REGISTRATION_SUBMITTED",
			&models.WorkflowNode{ID: "REGISTRATION_SUBMITTED", Name: "Registration submitted", Type: models.NodeTypeStart, Outgoing: models.To("AUTO_CHECK")},
			service("AUTO_CHECK", "Automatic check", ComponentUserValidation, OpPerformAutoCheck, "CHECK_DECISION"),
			decision("CHECK_DECISION", "Check result", models.PredicateAutoCheckApproved, "AUTO_APPROVE", "MANUAL_APPROVAL"),
			service("AUTO_APPROVE", "Automatic approval", ComponentUser, OpApproveUser, "APPROVAL_COMPLETED"),
			userTask("MANUAL_APPROVAL", "Manual approval", "Review and approve the registration", "admin,hr_manager", "2", "APPROVAL_COMPLETED"),
			&models.WorkflowNode{ID: "APPROVAL_COMPLETED", Name: "Approval completed", Type: models.NodeTypeEnd},
		),
		definition(WorkflowShipmentProcessing, "Shipment processing", "SHIPMENT_CREATED",
			&models.WorkflowNode{ID: "SHIPMENT_CREATED", Name: "Shipment created", Type: models.NodeTypeStart, Outgoing: models.To("PICK_ITEMS")},
			userTask("PICK_ITEMS", "Pick items", "Pick the ordered items", "warehouse_staff", "1", "PACK_ITEMS"),
			userTask("PACK_ITEMS", "Pack items", "Pack the picked items", "warehouse_staff", "1", "GENERATE_LABEL"),
			service("GENERATE_LABEL", "Generate label", ComponentLabel, OpGenerateShippingLabel, "DISPATCH"),
			service("DISPATCH", "Dispatch", ComponentShipment, OpDispatch, "SHIPMENT_COMPLETED"),
			&models.WorkflowNode{ID: "SHIPMENT_COMPLETED", Name: "Shipment completed", Type: models.NodeTypeEnd},
		),
	}
}
