package tfstate

import (
	"context"
	"os"
	"sync"

	tfjson "github.com/hashicorp/terraform-json"
	jsoniter "github.com/json-iterator/go"

	"github.com/olusolaa/cost-parker/internal/core/ports"
	"github.com/olusolaa/cost-parker/internal/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// stateParser reads the output of `terraform show -json` once and caches the
// result, including a parse failure.
type stateParser struct {
	filePath   string
	stateCache *tfjson.State
	parseErr   error
	mutex      sync.RWMutex
	logger     ports.Logger
}

func newStateParser(path string, logger ports.Logger) *stateParser {
	return &stateParser{
		filePath: path,
		logger:   logger.WithFields(map[string]any{"component": "tfstate_parser", "file_path": path}),
	}
}

func (sp *stateParser) parseAndCache(ctx context.Context) (*tfjson.State, error) {
	sp.mutex.RLock()
	if sp.stateCache != nil || sp.parseErr != nil {
		defer sp.mutex.RUnlock()
		return sp.stateCache, sp.parseErr
	}
	sp.mutex.RUnlock()

	sp.mutex.Lock()
	defer sp.mutex.Unlock()

	if sp.stateCache != nil || sp.parseErr != nil {
		return sp.stateCache, sp.parseErr
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	raw, err := os.ReadFile(sp.filePath)
	if err != nil {
		sp.parseErr = errors.WrapUserFacing(err, errors.CodeInventoryReadError,
			"failed to read terraform state file",
			"Export the state with 'terraform show -json > state.json' and point discovery.tfstate.path at it.")
		return nil, sp.parseErr
	}

	var state tfjson.State
	if err := json.Unmarshal(raw, &state); err != nil {
		sp.parseErr = errors.Wrap(err, errors.CodeInventoryParseError,
			"terraform state is not valid 'terraform show -json' output")
		return nil, sp.parseErr
	}

	sp.logger.Debugf(ctx, "parsed terraform state (format %s, terraform %s)", state.FormatVersion, state.TerraformVersion)
	sp.stateCache = &state
	return sp.stateCache, nil
}

// managedResources flattens every managed resource of the root module and
// its children.
func managedResources(state *tfjson.State) []*tfjson.StateResource {
	if state == nil || state.Values == nil || state.Values.RootModule == nil {
		return nil
	}
	var out []*tfjson.StateResource
	var walk func(m *tfjson.StateModule)
	walk = func(m *tfjson.StateModule) {
		for _, r := range m.Resources {
			if r != nil && r.Mode == tfjson.ManagedResourceMode {
				out = append(out, r)
			}
		}
		for _, child := range m.ChildModules {
			if child != nil {
				walk(child)
			}
		}
	}
	walk(state.Values.RootModule)
	return out
}
