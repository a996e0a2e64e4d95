package tfhcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/olusolaa/cost-parker/internal/core/domain"
)

const (
	tfTypeSageMakerEndpoint = "aws_sagemaker_endpoint"
	tfTypeKinesisStream     = "aws_kinesis_stream"
	tfTypeLambdaFunction    = "aws_lambda_function"
	tfTypeMetricAlarm       = "aws_cloudwatch_metric_alarm"
	tfTypeCompositeAlarm    = "aws_cloudwatch_composite_alarm"
)

var resourceSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "name"},
		{Name: "endpoint_config_name"},
		{Name: "function_name"},
		{Name: "alarm_name"},
		{Name: "count"},
		{Name: "for_each"},
	},
}

type groups struct {
	functions string
	alarms    string
}

// mapBlock turns one resource block into an inventory entry. ok is false for
// resource types that are not parked.
func mapBlock(block *hcl.Block, evalCtx *hcl.EvalContext, g groups) (entry domain.InventoryEntry, ok bool, err error) {
	tfType, tfName := block.Labels[0], block.Labels[1]
	address := tfType + "." + tfName

	switch tfType {
	case tfTypeSageMakerEndpoint, tfTypeKinesisStream, tfTypeLambdaFunction, tfTypeMetricAlarm, tfTypeCompositeAlarm:
	default:
		return entry, false, nil
	}

	content, _, diags := block.Body.PartialContent(resourceSchema)
	if diags.HasErrors() {
		return entry, false, fmt.Errorf("%s: %s", address, diags.Error())
	}
	if _, counted := content.Attributes["count"]; counted {
		return entry, false, fmt.Errorf("%s uses count; declare its instances under resources", address)
	}
	if _, each := content.Attributes["for_each"]; each {
		return entry, false, fmt.Errorf("%s uses for_each; declare its instances under resources", address)
	}

	str := func(attr string) (string, error) {
		a, ok := content.Attributes[attr]
		if !ok {
			return "", fmt.Errorf("%s has no %s", address, attr)
		}
		return evalString(a, evalCtx)
	}

	switch tfType {
	case tfTypeSageMakerEndpoint:
		name, err := str("name")
		if err != nil {
			return entry, false, err
		}
		entry = domain.InventoryEntry{Kind: domain.KindEndpoint, Identifier: name}
		if cfg, err := str("endpoint_config_name"); err == nil {
			entry.Attributes = map[string]string{domain.EndpointConfigNameKey: cfg}
		}
	case tfTypeKinesisStream:
		name, err := str("name")
		if err != nil {
			return entry, false, err
		}
		entry = domain.InventoryEntry{Kind: domain.KindStream, Identifier: name}
	case tfTypeLambdaFunction:
		name, err := str("function_name")
		if err != nil {
			return entry, false, err
		}
		entry = domain.InventoryEntry{Kind: domain.KindFunctionGroup, Identifier: g.functions, Members: []string{name}}
	default:
		name, err := str("alarm_name")
		if err != nil {
			return entry, false, err
		}
		entry = domain.InventoryEntry{Kind: domain.KindAlarmGroup, Identifier: g.alarms, Members: []string{name}}
	}

	entry.Address = address
	return entry, true, nil
}

func evalString(attr *hcl.Attribute, evalCtx *hcl.EvalContext) (string, error) {
	val, diags := attr.Expr.Value(evalCtx)
	if diags.HasErrors() {
		return "", fmt.Errorf("cannot evaluate %s: %s", attr.Name, diags.Error())
	}
	if !val.IsWhollyKnown() {
		return "", fmt.Errorf("%s depends on values only known after apply", attr.Name)
	}
	if val.IsNull() {
		return "", fmt.Errorf("%s is null", attr.Name)
	}
	str, err := convert.Convert(val, cty.String)
	if err != nil {
		return "", fmt.Errorf("%s is not a string: %w", attr.Name, err)
	}
	if str.AsString() == "" {
		return "", fmt.Errorf("%s is empty", attr.Name)
	}
	return str.AsString(), nil
}
