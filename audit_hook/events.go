package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle
// hook and becomes the Action field of the audit event.
const (
	ActionDefinitionSaved   = "definition.saved"
	ActionDefinitionDeleted = "definition.deleted"
	ActionInstanceStarted   = "instance.started"
	ActionInstanceAdvanced  = "instance.advanced"
	ActionInstanceCompleted = "instance.completed"
)

// Audit event categories group related actions.
const (
	CategoryDefinition = "stageflow.definition"
	CategoryInstance   = "stageflow.instance"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceDefinition = "workflow_definition"
	ResourceInstance   = "workflow_instance"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionDefinitionSaved,
		ActionDefinitionDeleted,
		ActionInstanceStarted,
		ActionInstanceAdvanced,
		ActionInstanceCompleted,
	}
}
