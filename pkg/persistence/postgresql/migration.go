package postgresql

import "github.com/ycslms/lmsflow/pkg/persistence/sqlbase"

func schemaSteps() []sqlbase.Step {
	return []sqlbase.Step{
		{Version: 1, Name: "workflow instances", SQL: `
			CREATE TABLE workflow_instances (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				tenant_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('running', 'waiting', 'completed', 'failed')),
				data JSONB NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_instances_tenant ON workflow_instances(tenant_id);
			CREATE INDEX idx_workflow_instances_workflow ON workflow_instances(workflow_id);
			CREATE INDEX idx_workflow_instances_status ON workflow_instances(status);
			CREATE INDEX idx_workflow_instances_started_at ON workflow_instances(started_at);
		`},
		{Version: 2, Name: "workflow tasks", SQL: `
			CREATE TABLE workflow_tasks (
				id VARCHAR(255) PRIMARY KEY,
				instance_id VARCHAR(255) NOT NULL,
				tenant_id VARCHAR(255) NOT NULL,
				assignee VARCHAR(255),
				candidate_users JSONB NOT NULL DEFAULT '[]',
				status VARCHAR(50) NOT NULL CHECK (status IN ('created', 'assigned', 'completed', 'cancelled')),
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_tasks_instance ON workflow_tasks(instance_id);
			CREATE INDEX idx_workflow_tasks_tenant ON workflow_tasks(tenant_id);
			CREATE INDEX idx_workflow_tasks_assignee ON workflow_tasks(assignee);
			CREATE INDEX idx_workflow_tasks_candidates ON workflow_tasks USING GIN (candidate_users);
		`},
	}
}
