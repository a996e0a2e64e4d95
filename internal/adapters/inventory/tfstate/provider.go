package tfstate

import (
	"context"

	"github.com/olusolaa/cost-parker/internal/core/domain"
	"github.com/olusolaa/cost-parker/internal/core/ports"
	"github.com/olusolaa/cost-parker/internal/errors"
)

const SourceTypeTFState = "tfstate"

type Config struct {
	FilePath      string `yaml:"path" mapstructure:"path" validate:"required"`
	FunctionGroup string `yaml:"function_group" mapstructure:"function_group"`
	AlarmGroup    string `yaml:"alarm_group" mapstructure:"alarm_group"`
}

// Source discovers parkable resources from `terraform show -json` output.
// Lambda functions and alarms are collected into one group each.
type Source struct {
	parser *stateParser
	groups groups
	logger ports.Logger
}

// NewSource builds a Source. Group names default to project.
func NewSource(cfg Config, project string, logger ports.Logger) (*Source, error) {
	filePath := cfg.FilePath
	if filePath == "" {
		return nil, errors.New(errors.CodeConfigValidation, "discovery.tfstate.path is required")
	}

	g := groups{functions: cfg.FunctionGroup, alarms: cfg.AlarmGroup}
	if g.functions == "" {
		g.functions = project
	}
	if g.alarms == "" {
		g.alarms = project
	}

	plog := logger.WithFields(map[string]any{
		"inventory":  SourceTypeTFState,
		"state_file": filePath,
	})
	return &Source{
		parser: newStateParser(filePath, plog),
		groups: g,
		logger: plog,
	}, nil
}

func (s *Source) Type() string { return SourceTypeTFState }

func (s *Source) Discover(ctx context.Context) (domain.Inventory, error) {
	if ctx.Err() != nil {
		return domain.Inventory{}, ctx.Err()
	}

	state, err := s.parser.parseAndCache(ctx)
	if err != nil {
		return domain.Inventory{}, err
	}

	var inv domain.Inventory
	for _, res := range managedResources(state) {
		entry, ok, err := mapResource(res, s.groups)
		if err != nil {
			s.logger.Warnf(ctx, "Skipping %s: %v", res.Address, err)
			continue
		}
		if !ok {
			continue
		}
		inv.Merge(domain.Inventory{Entries: []domain.InventoryEntry{entry}})
	}

	s.logger.Debugf(ctx, "Discovered %d parkable resource(s)", len(inv.Entries))
	return inv, nil
}
