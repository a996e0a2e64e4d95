package tfhcl

import (
	"context"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/olusolaa/cost-parker/internal/core/ports"
)

type hclValue struct {
	val cty.Value
	rng hcl.Range
}

var variableSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "default"},
		{Name: "description"},
		{Name: "type"},
		{Name: "sensitive"},
		{Name: "nullable"},
	},
	Blocks: []hcl.BlockHeaderSchema{{Type: "validation"}},
}

// buildEvalContext resolves var.* from variable defaults overridden by the
// var files in order, then local.* from every locals block. Variables with
// no value and locals that cannot be resolved are unknown, so names that
// depend on them evaluate to unknown rather than failing.
func buildEvalContext(ctx context.Context, parser *hclparse.Parser, mod *module, varFiles []string, logger ports.Logger) (*hcl.EvalContext, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	vars := make(map[string]cty.Value, len(mod.variables))
	for _, block := range mod.variables {
		name := block.Labels[0]
		vars[name] = cty.DynamicVal
		content, _, contentDiags := block.Body.PartialContent(variableSchema)
		diags = append(diags, contentDiags...)
		if content == nil {
			continue
		}
		if attr, ok := content.Attributes["default"]; ok {
			val, valDiags := attr.Expr.Value(nil)
			diags = append(diags, valDiags...)
			if !valDiags.HasErrors() {
				vars[name] = val
			}
		}
	}

	for _, path := range varFiles {
		if !filepath.IsAbs(path) {
			path = filepath.Join(mod.dir, path)
		}
		values, fileDiags := parseVarFile(parser, path)
		diags = append(diags, fileDiags...)
		for name, v := range values {
			if _, declared := vars[name]; !declared {
				diags = diags.Append(&hcl.Diagnostic{
					Severity: hcl.DiagWarning,
					Summary:  "Value for undeclared variable",
					Detail:   "The variable " + name + " is assigned but never declared.",
					Subject:  v.rng.Ptr(),
				})
				continue
			}
			vars[name] = v.val
		}
		logger.Debugf(ctx, "Loaded %d value(s) from %s", len(values), path)
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"var":   cty.ObjectVal(vars),
			"local": cty.EmptyObjectVal,
			"terraform": cty.ObjectVal(map[string]cty.Value{
				"workspace": cty.StringVal("default"),
			}),
		},
		Functions: standardFunctions(),
	}

	locals, localDiags := evaluateLocals(mod.locals, evalCtx)
	diags = append(diags, localDiags...)
	evalCtx.Variables["local"] = cty.ObjectVal(locals)
	return evalCtx, diags
}

// evaluateLocals resolves locals in dependency order by repeated passes. A
// local that still fails after no pass makes progress is left unknown.
func evaluateLocals(blocks []*hcl.Block, evalCtx *hcl.EvalContext) (map[string]cty.Value, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	pending := make(map[string]*hcl.Attribute)
	for _, block := range blocks {
		attrs, attrDiags := block.Body.JustAttributes()
		diags = append(diags, attrDiags...)
		for name, attr := range attrs {
			pending[name] = attr
		}
	}

	resolved := make(map[string]cty.Value, len(pending))
	for len(pending) > 0 {
		evalCtx.Variables["local"] = cty.ObjectVal(resolved)
		progress := false
		for name, attr := range pending {
			if !referencesResolved(attr.Expr, resolved) {
				continue
			}
			val, valDiags := attr.Expr.Value(evalCtx)
			if valDiags.HasErrors() {
				val = cty.DynamicVal
				diags = append(diags, asWarnings(valDiags)...)
			}
			resolved[name] = val
			delete(pending, name)
			progress = true
		}
		if !progress {
			for name, attr := range pending {
				resolved[name] = cty.DynamicVal
				diags = diags.Append(&hcl.Diagnostic{
					Severity: hcl.DiagWarning,
					Summary:  "Unresolved local value",
					Detail:   "local." + name + " refers to a local that cannot be resolved.",
					Subject:  attr.Range.Ptr(),
				})
			}
			break
		}
	}
	return resolved, diags
}

func referencesResolved(expr hcl.Expression, resolved map[string]cty.Value) bool {
	for _, traversal := range expr.Variables() {
		if traversal.RootName() != "local" || len(traversal) < 2 {
			continue
		}
		attr, ok := traversal[1].(hcl.TraverseAttr)
		if !ok {
			continue
		}
		if _, done := resolved[attr.Name]; !done {
			return false
		}
	}
	return true
}

func asWarnings(diags hcl.Diagnostics) hcl.Diagnostics {
	out := make(hcl.Diagnostics, 0, len(diags))
	for _, d := range diags {
		w := *d
		w.Severity = hcl.DiagWarning
		out = append(out, &w)
	}
	return out
}
