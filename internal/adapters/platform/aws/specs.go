package aws

import (
	"github.com/olusolaa/cost-parker/internal/adapters/platform/aws/alarm"
	"github.com/olusolaa/cost-parker/internal/adapters/platform/aws/endpoint"
	"github.com/olusolaa/cost-parker/internal/adapters/platform/aws/function"
	"github.com/olusolaa/cost-parker/internal/adapters/platform/aws/stream"
	"github.com/olusolaa/cost-parker/internal/config"
	"github.com/olusolaa/cost-parker/internal/core/domain"
)

// driverSpecs is the resolved set of resources to build drivers for, in
// declaration order per kind.
type driverSpecs struct {
	endpoints []endpoint.Spec
	streams   []stream.Spec
	functions []function.Spec
	alarms    []alarm.Spec
}

func specsFromConfig(res config.ResourcesConfig) driverSpecs {
	var s driverSpecs
	for _, e := range res.Endpoints {
		s.endpoints = append(s.endpoints, endpoint.Spec{Name: e.Name, ConfigName: e.ConfigName})
	}
	for _, st := range res.Streams {
		s.streams = append(s.streams, stream.Spec{Name: st.Name, PollInterval: st.PollInterval, StepTimeout: st.StepTimeout})
	}
	for _, fg := range res.FunctionGroups {
		s.functions = append(s.functions, function.Spec{Name: fg.Name, Functions: append([]string(nil), fg.Functions...)})
	}
	for _, ag := range res.AlarmGroups {
		s.alarms = append(s.alarms, alarm.Spec{Name: ag.Name, Prefix: ag.Prefix, Names: append([]string(nil), ag.Names...)})
	}
	return s
}

func (s driverSpecs) count() int {
	return len(s.endpoints) + len(s.streams) + len(s.functions) + len(s.alarms)
}

// merge adds discovered resources. Declared resources win: a discovered entry
// only fills gaps, such as a missing endpoint config name or extra group
// members. Alarm groups selected by prefix are left as declared. It returns
// the number of resources added or extended.
func (s *driverSpecs) merge(inv domain.Inventory) int {
	changed := 0
	for _, e := range inv.Entries {
		switch e.Kind {
		case domain.KindEndpoint:
			if s.mergeEndpoint(e) {
				changed++
			}
		case domain.KindStream:
			if !s.hasStream(e.Identifier) {
				s.streams = append(s.streams, stream.Spec{Name: e.Identifier})
				changed++
			}
		case domain.KindFunctionGroup:
			if s.mergeFunctions(e) {
				changed++
			}
		case domain.KindAlarmGroup:
			if s.mergeAlarms(e) {
				changed++
			}
		}
	}
	return changed
}

func (s *driverSpecs) mergeEndpoint(e domain.InventoryEntry) bool {
	configName := e.Attributes[domain.EndpointConfigNameKey]
	for i := range s.endpoints {
		if s.endpoints[i].Name != e.Identifier {
			continue
		}
		if s.endpoints[i].ConfigName == "" && configName != "" {
			s.endpoints[i].ConfigName = configName
			return true
		}
		return false
	}
	s.endpoints = append(s.endpoints, endpoint.Spec{Name: e.Identifier, ConfigName: configName})
	return true
}

func (s *driverSpecs) hasStream(name string) bool {
	for _, st := range s.streams {
		if st.Name == name {
			return true
		}
	}
	return false
}

func (s *driverSpecs) mergeFunctions(e domain.InventoryEntry) bool {
	for i := range s.functions {
		if s.functions[i].Name != e.Identifier {
			continue
		}
		merged, added := union(s.functions[i].Functions, e.Members)
		s.functions[i].Functions = merged
		return added
	}
	if len(e.Members) == 0 {
		return false
	}
	s.functions = append(s.functions, function.Spec{Name: e.Identifier, Functions: append([]string(nil), e.Members...)})
	return true
}

func (s *driverSpecs) mergeAlarms(e domain.InventoryEntry) bool {
	for i := range s.alarms {
		if s.alarms[i].Name != e.Identifier {
			continue
		}
		if len(s.alarms[i].Names) == 0 && s.alarms[i].Prefix != "" {
			return false
		}
		merged, added := union(s.alarms[i].Names, e.Members)
		s.alarms[i].Names = merged
		return added
	}
	if len(e.Members) == 0 {
		return false
	}
	s.alarms = append(s.alarms, alarm.Spec{Name: e.Identifier, Names: append([]string(nil), e.Members...)})
	return true
}

func union(have, more []string) ([]string, bool) {
	seen := make(map[string]struct{}, len(have))
	for _, h := range have {
		seen[h] = struct{}{}
	}
	added := false
	for _, m := range more {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		have = append(have, m)
		added = true
	}
	return have, added
}
