package tfhcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/olusolaa/cost-parker/internal/core/ports"
	"github.com/olusolaa/cost-parker/internal/errors"
)

var configSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "resource", LabelNames: []string{"type", "name"}},
		{Type: "variable", LabelNames: []string{"name"}},
		{Type: "locals"},
	},
}

// module holds the blocks of one Terraform configuration directory that
// discovery needs.
type module struct {
	dir       string
	resources []*hcl.Block
	variables []*hcl.Block
	locals    []*hcl.Block
}

// parseDirectory parses every .tf and .tf.json file directly in dir. Files
// are read in name order so duplicate detection is deterministic.
func parseDirectory(ctx context.Context, parser *hclparse.Parser, dir string, logger ports.Logger) (*module, hcl.Diagnostics, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, errors.WrapUserFacing(err, errors.CodeInventoryReadError,
			fmt.Sprintf("failed to read Terraform directory: %s", dir),
			"Point discovery.tfhcl.directory at the root module of the project.")
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".tf") || strings.HasSuffix(entry.Name(), ".tf.json") {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil, nil, errors.NewUserFacing(errors.CodeInventoryParseError,
			fmt.Sprintf("no Terraform files (.tf, .tf.json) found in %s", dir),
			"Point discovery.tfhcl.directory at the root module of the project.")
	}
	sort.Strings(names)

	mod := &module{dir: dir}
	var diags hcl.Diagnostics
	for _, name := range names {
		if ctx.Err() != nil {
			return nil, diags, ctx.Err()
		}
		path := filepath.Join(dir, name)
		logger.Debugf(ctx, "Parsing %s", name)

		var file *hcl.File
		var fileDiags hcl.Diagnostics
		if strings.HasSuffix(name, ".tf.json") {
			file, fileDiags = parser.ParseJSONFile(path)
		} else {
			file, fileDiags = parser.ParseHCLFile(path)
		}
		diags = append(diags, fileDiags...)
		if file == nil || fileDiags.HasErrors() {
			continue
		}

		content, _, contentDiags := file.Body.PartialContent(configSchema)
		diags = append(diags, contentDiags...)
		for _, block := range content.Blocks {
			switch block.Type {
			case "resource":
				mod.resources = append(mod.resources, block)
			case "variable":
				mod.variables = append(mod.variables, block)
			case "locals":
				mod.locals = append(mod.locals, block)
			}
		}
	}

	if diags.HasErrors() {
		return nil, diags, errors.WrapUserFacing(diags, errors.CodeInventoryParseError,
			fmt.Sprintf("failed to parse Terraform configuration in %s", dir),
			"Run 'terraform validate' in the directory and fix the reported errors.")
	}
	return mod, diags, nil
}

// parseVarFile reads a .tfvars or .tfvars.json file. Values are literals; no
// variables or functions are available.
func parseVarFile(parser *hclparse.Parser, path string) (map[string]hclValue, hcl.Diagnostics) {
	var file *hcl.File
	var diags hcl.Diagnostics
	if strings.HasSuffix(path, ".json") {
		file, diags = parser.ParseJSONFile(path)
	} else {
		file, diags = parser.ParseHCLFile(path)
	}
	if file == nil || diags.HasErrors() {
		return nil, diags
	}

	attrs, attrDiags := file.Body.JustAttributes()
	diags = append(diags, attrDiags...)
	if attrDiags.HasErrors() {
		return nil, diags
	}

	values := make(map[string]hclValue, len(attrs))
	for name, attr := range attrs {
		val, valDiags := attr.Expr.Value(nil)
		diags = append(diags, valDiags...)
		if !valDiags.HasErrors() {
			values[name] = hclValue{val: val, rng: attr.Range}
		}
	}
	return values, diags
}
