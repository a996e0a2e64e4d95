package tfhcl

import (
	"context"
	"sync"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/olusolaa/cost-parker/internal/core/domain"
	"github.com/olusolaa/cost-parker/internal/core/ports"
	"github.com/olusolaa/cost-parker/internal/errors"
)

const SourceTypeTFHCL = "tfhcl"

type Config struct {
	Directory     string   `yaml:"directory" mapstructure:"directory" validate:"required"`
	VarFiles      []string `yaml:"var_files" mapstructure:"var_files"`
	FunctionGroup string   `yaml:"function_group" mapstructure:"function_group"`
	AlarmGroup    string   `yaml:"alarm_group" mapstructure:"alarm_group"`
}

// Source discovers parkable resources from a Terraform configuration
// directory without running Terraform. Only names that can be evaluated from
// literals, variables and locals are discovered.
type Source struct {
	cfg    Config
	groups groups
	logger ports.Logger

	once sync.Once
	inv  domain.Inventory
	err  error
}

// NewSource builds a Source. Group names default to project.
func NewSource(cfg Config, project string, logger ports.Logger) (*Source, error) {
	if cfg.Directory == "" {
		return nil, errors.New(errors.CodeConfigValidation, "discovery.tfhcl.directory is required")
	}

	g := groups{functions: cfg.FunctionGroup, alarms: cfg.AlarmGroup}
	if g.functions == "" {
		g.functions = project
	}
	if g.alarms == "" {
		g.alarms = project
	}

	return &Source{
		cfg:    cfg,
		groups: g,
		logger: logger.WithFields(map[string]any{
			"inventory": SourceTypeTFHCL,
			"hcl_dir":   cfg.Directory,
		}),
	}, nil
}

func (s *Source) Type() string { return SourceTypeTFHCL }

// Discover parses the directory once; later calls return the cached result.
func (s *Source) Discover(ctx context.Context) (domain.Inventory, error) {
	if ctx.Err() != nil {
		return domain.Inventory{}, ctx.Err()
	}
	s.once.Do(func() {
		s.inv, s.err = s.discover(ctx)
	})
	return s.inv, s.err
}

func (s *Source) discover(ctx context.Context) (domain.Inventory, error) {
	parser := hclparse.NewParser()

	mod, diags, err := parseDirectory(ctx, parser, s.cfg.Directory, s.logger)
	if err != nil {
		return domain.Inventory{}, err
	}

	evalCtx, ctxDiags := buildEvalContext(ctx, parser, mod, s.cfg.VarFiles, s.logger)
	diags = append(diags, ctxDiags...)
	if ctxDiags.HasErrors() {
		return domain.Inventory{}, errors.WrapUserFacing(ctxDiags, errors.CodeInventoryParseError,
			"failed to evaluate Terraform variables",
			"Check discovery.tfhcl.var_files and the variable blocks they assign.")
	}
	s.logWarnings(ctx, diags)

	var inv domain.Inventory
	for _, block := range mod.resources {
		entry, ok, err := mapBlock(block, evalCtx, s.groups)
		if err != nil {
			s.logger.Warnf(ctx, "Skipping %v", err)
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

func (s *Source) logWarnings(ctx context.Context, diags hcl.Diagnostics) {
	for _, d := range diags {
		if d.Severity != hcl.DiagWarning {
			continue
		}
		if d.Subject != nil {
			s.logger.Warnf(ctx, "%s: %s (%s)", d.Summary, d.Detail, d.Subject)
			continue
		}
		s.logger.Warnf(ctx, "%s: %s", d.Summary, d.Detail)
	}
}
