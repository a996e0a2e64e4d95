package domain

type ResourceKind string

const (
	KindEndpoint      ResourceKind = "Endpoint"
	KindStream        ResourceKind = "Stream"
	KindFunctionGroup ResourceKind = "FunctionGroup"
	KindAlarmGroup    ResourceKind = "AlarmGroup"
)

func (rk ResourceKind) String() string {
	return string(rk)
}

// Known reports whether this build has a driver implementation for the kind.
func (rk ResourceKind) Known() bool {
	switch rk {
	case KindEndpoint, KindStream, KindFunctionGroup, KindAlarmGroup:
		return true
	default:
		return false
	}
}

func AllKinds() []ResourceKind {
	return []ResourceKind{KindEndpoint, KindStream, KindFunctionGroup, KindAlarmGroup}
}
