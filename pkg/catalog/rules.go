package catalog

import (
	"github.com/ycslms/lmsflow/pkg/actions"
	"github.com/ycslms/lmsflow/pkg/models"
)

// Built-in rule ids.
const (
	RuleCBMAutoSwitch            = "CBM_AUTO_SWITCH"
	RuleTHBValueCheck            = "THB_VALUE_CHECK"
	RuleMemberCodeCheck          = "MEMBER_CODE_CHECK"
	RuleEmailDomainValidation    = "EMAIL_DOMAIN_VALIDATION"
	RuleCompanyRegistrationCheck = "COMPANY_REGISTRATION_CHECK"
	RuleVolumeDiscount           = "VOLUME_DISCOUNT"
	RuleExpressShipping          = "EXPRESS_SHIPPING"
	RuleLowStockAlert            = "LOW_STOCK_ALERT"
	RuleSetOrderProcessing       = "ORDER_PROCESSING_RULES"
	RuleSetUserRegistration      = "USER_REGISTRATION_RULES"
)

const (
	recipientCustomer         = "customer"
	recipientWarehouseManager = "warehouse_manager"
	eventMemberCodeMissing    = "MEMBER_CODE_MISSING"
	eventLowStock             = "LOW_STOCK"
	fieldOrderType            = "orderType"
	fieldShippingMethod       = "shippingMethod"
	shippingExpress           = "EXPRESS"
	orderTypeAir              = "air"
	orderStatusDelayed        = "DELAYED"
	userTypeEnterprise        = "ENTERPRISE"
)

func updateField(field string, value any) models.Action {
	return models.Action{Type: models.ActionUpdateField, Parameters: map[string]any{actions.ParamField: field, actions.ParamValue: value}}
}

func setFlag(name string) models.Action {
	return models.Action{Type: models.ActionSetFlag, Parameters: map[string]any{actions.ParamFlagName: name, actions.ParamFlagValue: "true"}}
}

func notify(recipient, message string) models.Action {
	return models.Action{Type: models.ActionSendNotification, Parameters: map[string]any{actions.ParamRecipient: recipient, actions.ParamMessage: message}}
}

func logEvent(eventType, message string) models.Action {
	return models.Action{Type: models.ActionLogEvent, Parameters: map[string]any{actions.ParamEventType: eventType, actions.ParamMessage: message}}
}

func executeService(component, operation string) models.Action {
	return models.Action{Type: models.ActionExecuteService, Parameters: map[string]any{actions.ParamServiceName: component, actions.ParamMethodName: operation}}
}

// Rules returns fresh copies of the built-in rules.
func Rules() []*models.Rule {
	return []*models.Rule{
		{
			ID:                 RuleCBMAutoSwitch,
			Name:               "CBM auto switch",
			Description:        "Switch orders above 29 CBM to air freight",
			ApplicableEntities: []string{models.EntityOrder},
			Priority:           100,
			Active:             true,
			Condition:          models.Pattern(models.PredicateVolumeExceedsThreshold),
			Actions: []models.Action{
				updateField(fieldOrderType, orderTypeAir),
				setFlag("cbmAutoSwitched"),
				notify(recipientCustomer, "Order switched to air freight because it exceeds 29 CBM"),
			},
			Severity:       models.SeverityWarning,
			SuccessMessage: "CBM auto switch applied",
			FailureMessage: "CBM within the sea freight range",
		},
		{
			ID:                 RuleTHBValueCheck,
			Name:               "THB value check",
			Description:        "Orders above THB 1,500 need extra recipient details",
			ApplicableEntities: []string{models.EntityOrder},
			Priority:           200,
			Active:             true,
			Condition:          models.Pattern(models.PredicateValueExceedsThreshold),
			Actions: []models.Action{
				setFlag("requiresExtraRecipient"),
				notify(recipientCustomer, "High value order: extra recipient details are required"),
			},
			Severity:       models.SeverityInfo,
			SuccessMessage: "High value rule applied",
			FailureMessage: "Regular value order",
		},
		{
			ID:                 RuleMemberCodeCheck,
			Name:               "Member code check",
			Description:        "Delay orders without a member code",
			ApplicableEntities: []string{models.EntityOrder},
			Priority:           50,
			Active:             true,
			Condition:          models.Pattern(models.PredicateMemberCodeMissing),
			Actions: []models.Action{
				updateField("status", orderStatusDelayed),
				setFlag("noMemberCode"),
				logEvent(eventMemberCodeMissing, "Order has no member code and is delayed"),
			},
			Severity:       models.SeverityWarning,
			SuccessMessage: "Member code missing, order delayed",
			FailureMessage: "Member code present",
		},
		{
			ID:                 RuleEmailDomainValidation,
			Name:               "Email domain validation",
			Description:        "Require a .com email domain",
			ApplicableEntities: []string{models.EntityUser},
			Priority:           100,
			Active:             true,
			Condition:          models.Simple("data.email", models.OpEndsWith, ".com"),
			Severity:           models.SeverityInfo,
			SuccessMessage:     "Valid email domain",
			FailureMessage:     "Invalid email domain",
		},
		{
			ID:                 RuleCompanyRegistrationCheck,
			Name:               "Company registration check",
			Description:        "Enterprise users need a company registration number",
			ApplicableEntities: []string{models.EntityUser},
			Priority:           200,
			Active:             true,
			Condition: models.All(
				models.Simple("data.userType", models.OpEquals, userTypeEnterprise),
				models.Simple("data.companyRegistrationNumber", models.OpNotEquals, nil),
			),
			Severity:       models.SeverityError,
			SuccessMessage: "Company registration number present",
			FailureMessage: "Enterprise users must provide a company registration number",
		},
		{
			ID:                 RuleVolumeDiscount,
			Name:               "Volume discount",
			Description:        "Discount orders above 10 CBM",
			ApplicableEntities: []string{models.EntityOrder},
			Priority:           300,
			Active:             true,
			Condition:          models.Simple("data.totalCbm", models.OpGreaterThan, 10.0),
			Actions: []models.Action{
				setFlag("volumeDiscount"),
				updateField("discountRate", "0.1"),
			},
			Severity:       models.SeverityInfo,
			SuccessMessage: "Volume discount applied",
			FailureMessage: "Regular order",
		},
		{
			ID:                 RuleExpressShipping,
			Name:               "Express shipping",
			Description:        "Ship urgent orders express",
			ApplicableEntities: []string{models.EntityOrder},
			Priority:           50,
			Active:             true,
			Condition:          models.Simple("data.urgent", models.OpEquals, true),
			Actions: []models.Action{
				updateField(fieldShippingMethod, shippingExpress),
				executeService(ComponentNotification, OpSendUrgentOrderAlert),
			},
			Severity:       models.SeverityHigh,
			SuccessMessage: "Express shipping applied",
			FailureMessage: "Standard shipping",
		},
		{
			ID:                 RuleLowStockAlert,
			Name:               "Low stock alert",
			Description:        "Alert the warehouse when stock drops below 10",
			ApplicableEntities: []string{models.EntityInventory},
			Priority:           100,
			Active:             true,
			Condition:          models.Simple("data.currentStock", models.OpLessThan, 10),
			Actions: []models.Action{
				notify(recipientWarehouseManager, "Stock is running low"),
				logEvent(eventLowStock, "Low stock alert"),
			},
			Severity:       models.SeverityWarning,
			SuccessMessage: "Low stock alert sent",
			FailureMessage: "Stock sufficient",
		},
	}
}

func RuleSets() []*models.RuleSet {
	return []*models.RuleSet{
		{
			ID:          RuleSetOrderProcessing,
			Name:        "Order processing rules",
			Description: "Rules applied when an order is created",
			RuleIDs: []string{
				RuleMemberCodeCheck, RuleCBMAutoSwitch, RuleTHBValueCheck, RuleVolumeDiscount, RuleExpressShipping,
			},
			Mode:   models.ModeRunAll,
			Active: true,
		},
		{
			ID:          RuleSetUserRegistration,
			Name:        "User registration rules",
			Description: "Rules applied when a user registers",
			RuleIDs:     []string{RuleEmailDomainValidation, RuleCompanyRegistrationCheck},
			Mode:        models.ModeStopOnFirstFailure,
			Active:      true,
		},
	}
}
