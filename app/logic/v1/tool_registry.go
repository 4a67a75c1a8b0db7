package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/samber/lo"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/atelier-studio/atelier/pkg/ai"
	"github.com/atelier-studio/atelier/pkg/types"
)

type ToolFamily string

const (
	FAMILY_GENERATION ToolFamily = "generation"
	FAMILY_EDITING    ToolFamily = "editing"
	FAMILY_ANALYSIS   ToolFamily = "analysis"
	FAMILY_ENTITIES   ToolFamily = "entities"
	FAMILY_MEMORY     ToolFamily = "memory"
	FAMILY_SEARCH     ToolFamily = "search"
	FAMILY_ASSETS     ToolFamily = "assets"
	FAMILY_ADMIN      ToolFamily = "admin"
	FAMILY_PLANNING   ToolFamily = "planning"
)

// Families that manage_plugin may switch off for a user. The rest are always offered.
var OptionalFamilies = []ToolFamily{FAMILY_ANALYSIS, FAMILY_SEARCH, FAMILY_PLANNING}

type ToolCapability string

const (
	// TOOL_CAP_GENERATION tools announce a generation_start card before they run.
	TOOL_CAP_GENERATION ToolCapability = "generation"
	// TOOL_CAP_IMAGE_INPUT tools get the current reference url injected as image_url.
	TOOL_CAP_IMAGE_INPUT ToolCapability = "image_input"
	TOOL_CAP_BACKGROUND  ToolCapability = "background"
	// TOOL_CAP_READ_ONLY tools never mutate state and are exported over MCP.
	TOOL_CAP_READ_ONLY ToolCapability = "read_only"
)

type ToolHandler func(tc *TurnContext, args Args) *types.ToolResult

// Tool is one entry of the closed tool catalog offered to the chat model.
type Tool struct {
	Name         string
	Description  string
	Family       ToolFamily
	Params       map[string]*schema.ParameterInfo
	Capabilities []ToolCapability
	// Produces is the asset type announced in generation_start, if any.
	Produces types.AssetType
	Handler  ToolHandler
}

func (t *Tool) Is(c ToolCapability) bool {
	return lo.Contains(t.Capabilities, c)
}

func (t *Tool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name:        t.Name,
		Desc:        t.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(t.Params),
	}, nil
}

// Spec converts the declaration into the function definition sent to the model.
func (t *Tool) Spec() ai.ToolSpec {
	props, required := toProperties(t.Params)
	return ai.ToolSpec{
		Name:        t.Name,
		Description: t.Description,
		Parameters: jsonschema.Definition{
			Type:       jsonschema.Object,
			Properties: props,
			Required:   required,
		},
	}
}

func toProperties(params map[string]*schema.ParameterInfo) (map[string]jsonschema.Definition, []string) {
	props := make(map[string]jsonschema.Definition, len(params))
	var required []string
	for name, p := range params {
		props[name] = toDefinition(p)
		if p.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)
	return props, required
}

func toDefinition(p *schema.ParameterInfo) jsonschema.Definition {
	d := jsonschema.Definition{
		Type:        jsonschema.DataType(p.Type),
		Description: p.Desc,
		Enum:        p.Enum,
	}
	switch p.Type {
	case schema.Array:
		if p.ElemInfo != nil {
			item := toDefinition(p.ElemInfo)
			d.Items = &item
		}
	case schema.Object:
		d.Properties, d.Required = toProperties(p.SubParams)
	}
	return d
}

// Validate coerces loosely typed scalars (numbers sent as strings and the
// like) in place and then checks args against the declaration.
func (t *Tool) Validate(args Args) error {
	return validateObject("", t.Params, args)
}

func validateObject(path string, params map[string]*schema.ParameterInfo, args map[string]any) error {
	names := lo.Keys(params)
	sort.Strings(names)
	for _, name := range names {
		p := params[name]
		field := joinPath(path, name)
		v, ok := args[name]
		if !ok || v == nil {
			if p.Required {
				return fmt.Errorf("%s is required", field)
			}
			continue
		}
		v = coerce(p, v)
		args[name] = v
		if err := validateValue(field, p, v); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(path string, p *schema.ParameterInfo, v any) error {
	switch p.Type {
	case schema.String:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%s must be a string", path)
		}
		if p.Required && strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s must not be empty", path)
		}
		if len(p.Enum) > 0 && !lo.Contains(p.Enum, s) {
			return fmt.Errorf("%s must be one of [%s]", path, strings.Join(p.Enum, ", "))
		}
	case schema.Integer:
		f, ok := v.(float64)
		if !ok || f != math.Trunc(f) {
			return fmt.Errorf("%s must be an integer", path)
		}
	case schema.Number:
		if _, ok := v.(float64); !ok {
			return fmt.Errorf("%s must be a number", path)
		}
	case schema.Boolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("%s must be a boolean", path)
		}
	case schema.Array:
		list, ok := v.([]any)
		if !ok {
			return fmt.Errorf("%s must be an array", path)
		}
		if p.ElemInfo == nil {
			return nil
		}
		for i, item := range list {
			item = coerce(p.ElemInfo, item)
			list[i] = item
			if err := validateValue(fmt.Sprintf("%s[%d]", path, i), p.ElemInfo, item); err != nil {
				return err
			}
		}
	case schema.Object:
		m, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("%s must be an object", path)
		}
		return validateObject(path, p.SubParams, m)
	}
	return nil
}

func coerce(p *schema.ParameterInfo, v any) any {
	switch p.Type {
	case schema.Integer, schema.Number:
		if s, ok := v.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "s")), 64); err == nil {
				return f
			}
		}
	case schema.Boolean:
		if s, ok := v.(string); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
				return b
			}
		}
	case schema.String:
		if f, ok := v.(float64); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	case schema.Array:
		// a single value where a list is expected
		if _, ok := v.([]any); !ok && p.ElemInfo != nil && p.ElemInfo.Type == schema.String {
			if s, ok := v.(string); ok {
				return []any{s}
			}
		}
	}
	return v
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

// Bind exposes the tool as an eino InvokableTool running inside tc, so
// surfaces other than the turn driver go through the same dispatcher.
func (t *Tool) Bind(d *Dispatcher, tc *TurnContext) tool.InvokableTool {
	return &boundTool{tool: t, dispatcher: d, tc: tc}
}

type boundTool struct {
	tool       *Tool
	dispatcher *Dispatcher
	tc         *TurnContext
}

var _ tool.InvokableTool = (*boundTool)(nil)

func (b *boundTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return b.tool.Info(ctx)
}

func (b *boundTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	res, err := b.dispatcher.Dispatch(b.tc.WithContext(ctx), b.tool.Name, argumentsInJSON)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ToolRegistry is the closed catalog built once at startup.
type ToolRegistry struct {
	tools  []*Tool
	byName map[string]*Tool
}

func NewToolRegistry(tools ...*Tool) *ToolRegistry {
	r := &ToolRegistry{byName: make(map[string]*Tool, len(tools))}
	for _, t := range tools {
		if t.Handler == nil {
			panic("tool " + t.Name + " has no handler")
		}
		if _, exist := r.byName[t.Name]; exist {
			panic("tool " + t.Name + " registered twice")
		}
		if t.Params == nil {
			t.Params = map[string]*schema.ParameterInfo{}
		}
		r.tools = append(r.tools, t)
		r.byName[t.Name] = t
	}
	return r
}

func (r *ToolRegistry) Get(name string) (*Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

func (r *ToolRegistry) Tools() []*Tool {
	return r.tools
}

func (r *ToolRegistry) Names() []string {
	return lo.Map(r.tools, func(t *Tool, _ int) string { return t.Name })
}

// Specs lists the definitions of every tool accepted by keep, in catalog order.
func (r *ToolRegistry) Specs(keep func(t *Tool) bool) []ai.ToolSpec {
	var res []ai.ToolSpec
	for _, t := range r.tools {
		if keep != nil && !keep(t) {
			continue
		}
		res = append(res, t.Spec())
	}
	return res
}

func (r *ToolRegistry) ByFamily(f ToolFamily) []*Tool {
	return lo.Filter(r.tools, func(t *Tool, _ int) bool { return t.Family == f })
}

func strParam(desc string, required bool, enum ...string) *schema.ParameterInfo {
	return &schema.ParameterInfo{Type: schema.String, Desc: desc, Required: required, Enum: enum}
}

func intParam(desc string, required bool) *schema.ParameterInfo {
	return &schema.ParameterInfo{Type: schema.Integer, Desc: desc, Required: required}
}

func boolParam(desc string) *schema.ParameterInfo {
	return &schema.ParameterInfo{Type: schema.Boolean, Desc: desc}
}

func strListParam(desc string, required bool) *schema.ParameterInfo {
	return &schema.ParameterInfo{
		Type:     schema.Array,
		Desc:     desc,
		Required: required,
		ElemInfo: &schema.ParameterInfo{Type: schema.String},
	}
}

func objParam(desc string, sub map[string]*schema.ParameterInfo) *schema.ParameterInfo {
	return &schema.ParameterInfo{Type: schema.Object, Desc: desc, SubParams: sub}
}

func objListParam(desc string, required bool, sub map[string]*schema.ParameterInfo) *schema.ParameterInfo {
	return &schema.ParameterInfo{
		Type:     schema.Array,
		Desc:     desc,
		Required: required,
		ElemInfo: &schema.ParameterInfo{Type: schema.Object, SubParams: sub},
	}
}
