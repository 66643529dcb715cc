package infra

import (
	"fmt"
	"strings"

	"github.com/psantana5/opsim/pkg/models"
)

// Plan is the read-only difference between desired and managed state
type Plan struct {
	Desired int
	Managed int
	Create  int
	Excess  int      // managed nodes beyond the desired count; apply never removes them
	Drifted []string // managed nodes whose shape or version differs from the config
	Shape   models.Resources
	Version string
}

// NoChanges reports whether applying would do nothing
func (p *Plan) NoChanges() bool {
	return p.Create == 0 && p.Excess == 0 && len(p.Drifted) == 0
}

func (p *Plan) String() string {
	if p.NoChanges() {
		return "No changes. Your infrastructure matches the configuration."
	}

	var b strings.Builder
	if p.Create > 0 {
		fmt.Fprintf(&b, "Terraform will create %d new nodes (%s, pytorch_version %s).\n", p.Create, p.Shape, p.Version)
	}
	if p.Excess > 0 {
		fmt.Fprintf(&b, "%d managed node(s) exceed the desired count of %d; use `terraform destroy <node>` to remove them.\n", p.Excess, p.Desired)
	}
	for _, id := range p.Drifted {
		fmt.Fprintf(&b, "Node '%s' differs from the configuration; use `terraform apply -target=%s` to update it.\n", id, id)
	}
	fmt.Fprintf(&b, "Plan: %d to add, %d to change, 0 to destroy.", p.Create, len(p.Drifted))
	return b.String()
}
