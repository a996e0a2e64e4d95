package domain

// Persisted field names. These are part of the state file schema and must not
// change between schema versions.
const (
	KeyKind       = "kind"
	KeyIdentifier = "identifier"
	KeyPresent    = "present"
	KeyFields     = "fields"

	// Endpoint
	EndpointConfigNameKey = "endpoint_config_name"
	EndpointInstanceClass = "instance_class"
	EndpointInstanceCount = "instance_count"

	// Stream
	StreamShardCountKey     = "shard_count"
	StreamModeKey           = "stream_mode"
	StreamRetentionHoursKey = "retention_hours"

	// FunctionGroup
	FunctionGroupFunctionsKey = "functions"
	FunctionNameKey           = "function"
	FunctionConcurrencyKey    = "concurrency_limit"

	// AlarmGroup
	AlarmGroupEnabledKey = "alarms_enabled"
	AlarmGroupAlarmsKey  = "alarms"
	AlarmNameKey         = "name"
	AlarmActionsKey      = "actions_enabled"
)
