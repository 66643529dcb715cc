package infra

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl"
	"github.com/hashicorp/hcl/hcl/ast"
	"github.com/hashicorp/hcl/hcl/printer"
	"github.com/hashicorp/hcl/hcl/token"
	"github.com/pkg/errors"
	"github.com/psantana5/opsim/pkg/models"
)

const (
	resourceType = "cluster_node"
	defaultName  = "default"
)

// MaxCount bounds the node count a config may ask for
const MaxCount = 64

// DefaultConfig is the infrastructure config a fresh simulator starts with
const DefaultConfig = `resource "cluster_node" "default" {
  count           = 1
  cpu             = 8
  gpu             = 2
  ram             = 64
  pytorch_version = "2.0"
}
`

// Spec is the desired state extracted from an infrastructure config
type Spec struct {
	Name    string
	Count   int
	Shape   models.Resources
	Version string
}

// DefaultSpec returns the desired state described by DefaultConfig
func DefaultSpec() *Spec {
	return &Spec{
		Name:    defaultName,
		Count:   1,
		Shape:   models.NewResources(8, 2, 64),
		Version: "2.0",
	}
}

// Parse extracts count, shape and version from an HCL config. Attributes are
// picked up wherever they appear so that minor layout differences still parse;
// any missing field is an error.
func Parse(src string) (*Spec, error) {
	file, err := hcl.Parse(src)
	if err != nil {
		return nil, errors.Wrapf(models.ErrConfigParse, "%v", err)
	}
	root, ok := file.Node.(*ast.ObjectList)
	if !ok {
		return nil, errors.Wrap(models.ErrConfigParse, "unexpected document structure")
	}

	attrs := make(map[string]token.Token)
	collect(root, attrs)

	spec := &Spec{Name: blockName(root), Shape: models.NewResources(0, 0, 0)}
	var missing []string

	if tok, ok := attrs["count"]; ok {
		if spec.Count, err = intValue("count", tok); err != nil {
			return nil, err
		}
		if spec.Count > MaxCount {
			return nil, errors.Wrapf(models.ErrConfigParse, "count must be at most %d, got %d", MaxCount, spec.Count)
		}
	} else {
		missing = append(missing, "count")
	}

	for _, kind := range models.ResourceKinds {
		tok, ok := attrs[string(kind)]
		if !ok {
			missing = append(missing, string(kind))
			continue
		}
		v, err := intValue(string(kind), tok)
		if err != nil {
			return nil, err
		}
		spec.Shape[kind] = v
	}

	tok, ok := attrs["pytorch_version"]
	if !ok {
		tok, ok = attrs["version"]
	}
	if ok {
		spec.Version = stringValue(tok)
	} else {
		missing = append(missing, "pytorch_version")
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, errors.Wrapf(models.ErrConfigParse, "missing field(s): %s", strings.Join(missing, ", "))
	}
	return spec, nil
}

func collect(list *ast.ObjectList, attrs map[string]token.Token) {
	for _, item := range list.Items {
		switch val := item.Val.(type) {
		case *ast.ObjectType:
			collect(val.List, attrs)
		case *ast.LiteralType:
			if len(item.Keys) == 0 {
				continue
			}
			key := strings.Trim(item.Keys[0].Token.Text, `"`)
			if _, seen := attrs[key]; !seen {
				attrs[key] = val.Token
			}
		}
	}
}

// blockName returns the label of the first resource "cluster_node" block
func blockName(root *ast.ObjectList) string {
	for _, item := range root.Filter("resource", resourceType).Items {
		if len(item.Keys) > 0 {
			return strings.Trim(item.Keys[0].Token.Text, `"`)
		}
	}
	return defaultName
}

func intValue(field string, tok token.Token) (int, error) {
	if tok.Type != token.NUMBER {
		return 0, errors.Wrapf(models.ErrConfigParse, "%s must be an integer, got %s", field, tok.Text)
	}
	// token.Value panics on out-of-range numbers
	v, err := strconv.ParseInt(tok.Text, 0, 32)
	if err != nil {
		return 0, errors.Wrapf(models.ErrConfigParse, "%s must be an integer in range, got %s", field, tok.Text)
	}
	if v < 0 {
		return 0, errors.Wrapf(models.ErrConfigParse, "%s must be a non-negative integer, got %s", field, tok.Text)
	}
	return int(v), nil
}

func stringValue(tok token.Token) string {
	if s, ok := tok.Value().(string); ok {
		return s
	}
	return tok.Text
}

// Render writes the spec back out as a single resource block
func (s *Spec) Render() string {
	return fmt.Sprintf(`resource "cluster_node" %q {
  count           = %d
  cpu             = %d
  gpu             = %d
  ram             = %d
  pytorch_version = %q
}
`, s.Name, s.Count, s.Shape.Get(models.ResourceCPU), s.Shape.Get(models.ResourceGPU), s.Shape.Get(models.ResourceRAM), s.Version)
}

// Override is a partial change to a spec; zero-valued fields are left alone
type Override struct {
	Count   *int   `yaml:"count,omitempty"`
	CPU     *int   `yaml:"cpu,omitempty"`
	GPU     *int   `yaml:"gpu,omitempty"`
	RAM     *int   `yaml:"ram,omitempty"`
	Version string `yaml:"version,omitempty"`
}

// Apply returns a copy of the spec with the override's fields replaced
func (o Override) Apply(spec *Spec) *Spec {
	out := *spec
	out.Shape = spec.Shape.Clone()
	if o.Count != nil {
		out.Count = *o.Count
	}
	if o.CPU != nil {
		out.Shape[models.ResourceCPU] = *o.CPU
	}
	if o.GPU != nil {
		out.Shape[models.ResourceGPU] = *o.GPU
	}
	if o.RAM != nil {
		out.Shape[models.ResourceRAM] = *o.RAM
	}
	if o.Version != "" {
		out.Version = o.Version
	}
	return &out
}

// Format returns the config in canonical HCL layout
func Format(src string) (string, error) {
	out, err := printer.Format([]byte(src))
	if err != nil {
		return "", errors.Wrapf(models.ErrConfigParse, "%v", err)
	}
	return string(out), nil
}
