// Package catalog holds the built-in rules, rule sets, workflow definitions
// and the stand-in operations the workflows call.
package catalog

import (
	"fmt"
	"time"

	"github.com/ycslms/lmsflow/pkg/protocol"
	"github.com/ycslms/lmsflow/pkg/registry"
	"github.com/ycslms/lmsflow/pkg/rules"
	"github.com/ycslms/lmsflow/pkg/workflow"
)

// Install loads the catalog. Operations are registered first so that
// workflows can run as soon as they are installed. The engine backs the
// automatic user check; notifier receives urgent order alerts and may be nil.
func Install(engine *rules.Engine, workflows *workflow.Registry, ops *registry.Registry, notifier protocol.Notifier) error {
	svc := &services{engine: engine, notifier: notifier, now: time.Now}
	svc.register(ops)

	for _, rule := range Rules() {
		if err := engine.Register(rule); err != nil {
			return fmt.Errorf("failed to install rule %s: %w", rule.ID, err)
		}
	}

	for _, set := range RuleSets() {
		if err := engine.RegisterSet(set); err != nil {
			return fmt.Errorf("failed to install rule set %s: %w", set.ID, err)
		}
	}

	for _, def := range Workflows() {
		if err := workflows.Register(def); err != nil {
			return fmt.Errorf("failed to install workflow %s: %w", def.ID, err)
		}
	}

	return nil
}
