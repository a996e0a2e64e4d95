package domain

// PlanAction predicts the action a driver takes to move current to target.
// It only looks at attributes a driver is allowed to mutate, so data-bearing
// fields such as stream retention never produce an action.
func PlanAction(current, target ResourceSnapshot) Action {
	switch {
	case current.Present && !target.Present:
		return ActionDeleted
	case !current.Present && target.Present:
		// Only endpoints are ever recreated; other kinds are not created
		// by this tool.
		if target.Kind == KindEndpoint {
			return ActionRecreated
		}
		return ActionNoOp
	case !current.Present && !target.Present:
		return ActionNoOp
	}

	switch cur := current.Fields.(type) {
	case StreamFields:
		tgt, ok := target.Fields.(StreamFields)
		if !ok || cur.StreamMode == StreamModeOnDemand || tgt.ShardCount < 1 {
			return ActionNoOp
		}
		if cur.ShardCount != tgt.ShardCount {
			return ActionScaled
		}
	case FunctionGroupFields:
		tgt, ok := target.Fields.(FunctionGroupFields)
		if !ok {
			return ActionNoOp
		}
		return planFunctionGroup(cur, tgt)
	case AlarmGroupFields:
		tgt, ok := target.Fields.(AlarmGroupFields)
		if !ok {
			return ActionNoOp
		}
		return planAlarmGroup(cur, tgt)
	}
	return ActionNoOp
}

func planFunctionGroup(cur, tgt FunctionGroupFields) Action {
	changed, tightened := false, false
	for _, want := range tgt.Functions {
		have, ok := cur.Limit(want.Function)
		if !ok || limitsEqual(have.ConcurrencyLimit, want.ConcurrencyLimit) {
			continue
		}
		changed = true
		if want.ConcurrencyLimit != nil && (have.ConcurrencyLimit == nil || *want.ConcurrencyLimit < *have.ConcurrencyLimit) {
			tightened = true
		}
	}
	switch {
	case !changed:
		return ActionNoOp
	case tightened:
		return ActionLimitApplied
	default:
		return ActionLimitCleared
	}
}

func planAlarmGroup(cur, tgt AlarmGroupFields) Action {
	changed, disabling := false, false
	for _, a := range cur.Alarms {
		want := tgt.Desired(a.Name)
		if want == a.ActionsEnabled {
			continue
		}
		changed = true
		if !want {
			disabling = true
		}
	}
	switch {
	case !changed:
		return ActionNoOp
	case disabling:
		return ActionLimitApplied
	default:
		return ActionLimitCleared
	}
}

func limitsEqual(a, b *int32) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
