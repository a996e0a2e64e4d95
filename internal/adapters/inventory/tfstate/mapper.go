package tfstate

import (
	"fmt"

	tfjson "github.com/hashicorp/terraform-json"

	"github.com/olusolaa/cost-parker/internal/core/domain"
)

const (
	tfTypeSageMakerEndpoint = "aws_sagemaker_endpoint"
	tfTypeKinesisStream     = "aws_kinesis_stream"
	tfTypeLambdaFunction    = "aws_lambda_function"
	tfTypeMetricAlarm       = "aws_cloudwatch_metric_alarm"
	tfTypeCompositeAlarm    = "aws_cloudwatch_composite_alarm"
)

// groups names the FunctionGroup and AlarmGroup that discovered functions
// and alarms are added to.
type groups struct {
	functions string
	alarms    string
}

// mapResource turns one managed resource into an inventory entry. ok is false
// for resource types that are not parked.
func mapResource(res *tfjson.StateResource, g groups) (entry domain.InventoryEntry, ok bool, err error) {
	attr := func(key string) string {
		v, _ := res.AttributeValues[key].(string)
		return v
	}

	switch res.Type {
	case tfTypeSageMakerEndpoint:
		entry = domain.InventoryEntry{Kind: domain.KindEndpoint, Identifier: attr("name")}
		if cfg := attr("endpoint_config_name"); cfg != "" {
			entry.Attributes = map[string]string{domain.EndpointConfigNameKey: cfg}
		}
	case tfTypeKinesisStream:
		entry = domain.InventoryEntry{Kind: domain.KindStream, Identifier: attr("name")}
	case tfTypeLambdaFunction:
		name := attr("function_name")
		if name == "" {
			return entry, false, fmt.Errorf("%s has no function_name", res.Address)
		}
		entry = domain.InventoryEntry{Kind: domain.KindFunctionGroup, Identifier: g.functions, Members: []string{name}}
	case tfTypeMetricAlarm, tfTypeCompositeAlarm:
		name := attr("alarm_name")
		if name == "" {
			return entry, false, fmt.Errorf("%s has no alarm_name", res.Address)
		}
		entry = domain.InventoryEntry{Kind: domain.KindAlarmGroup, Identifier: g.alarms, Members: []string{name}}
	default:
		return entry, false, nil
	}

	if entry.Identifier == "" {
		return entry, false, fmt.Errorf("%s has no name attribute", res.Address)
	}
	entry.Address = res.Address
	return entry, true, nil
}
