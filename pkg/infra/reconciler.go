// Package infra is a mock infrastructure-as-code reconciler: it owns the
// cluster_node config and converges the cluster towards it.
package infra

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl"
	"github.com/pkg/errors"
	"github.com/psantana5/opsim/pkg/events"
	"github.com/psantana5/opsim/pkg/logging"
	"github.com/psantana5/opsim/pkg/models"
	"github.com/sirupsen/logrus"
)

// Reconciler converges the cluster towards the desired state in its config
type Reconciler struct {
	cluster *models.Cluster
	events  *events.Log
	config  string
	logger  *logrus.Entry
}

// NewReconciler creates a reconciler holding DefaultConfig
func NewReconciler(cluster *models.Cluster, log *events.Log, logger *logrus.Entry) *Reconciler {
	if logger == nil {
		logger = logging.Component(nil, "infra")
	}
	return &Reconciler{
		cluster: cluster,
		events:  log,
		config:  DefaultConfig,
		logger:  logger,
	}
}

// Config returns the raw config text
func (r *Reconciler) Config() string {
	return r.config
}

// SetConfig replaces the config. The text is stored as-is; parse errors
// surface from the operations that read it.
func (r *Reconciler) SetConfig(text string) {
	r.config = text
	r.logger.Debug("config replaced")
}

// ResetConfig restores DefaultConfig
func (r *Reconciler) ResetConfig() {
	r.config = DefaultConfig
}

// Spec parses the current config
func (r *Reconciler) Spec() (*Spec, error) {
	return Parse(r.config)
}

// Init checks that the config is well-formed HCL
func (r *Reconciler) Init() error {
	if _, err := hcl.Parse(r.config); err != nil {
		return errors.Wrapf(models.ErrConfigParse, "%v", err)
	}
	r.events.Record("Terraform initialized.")
	return nil
}

// Validate parses the config and checks every required field is present
func (r *Reconciler) Validate() (*Spec, error) {
	return r.Spec()
}

// Format rewrites the config in canonical layout and reports whether it changed
func (r *Reconciler) Format() (bool, error) {
	out, err := Format(r.config)
	if err != nil {
		return false, err
	}
	changed := out != r.config
	r.config = out
	return changed, nil
}

// Plan compares the desired state with the managed nodes. It never mutates anything.
func (r *Reconciler) Plan() (*Plan, error) {
	spec, err := r.Spec()
	if err != nil {
		return nil, err
	}

	managed := r.cluster.ManagedNodes()
	plan := &Plan{
		Desired: spec.Count,
		Managed: len(managed),
		Shape:   spec.Shape.Clone(),
		Version: spec.Version,
	}
	if delta := spec.Count - len(managed); delta > 0 {
		plan.Create = delta
	} else {
		plan.Excess = -delta
	}
	for _, node := range managed {
		if !node.Resources.Equal(spec.Shape) || node.Version != spec.Version {
			plan.Drifted = append(plan.Drifted, node.ID)
		}
	}
	return plan, nil
}

// Apply converges the cluster. With a target, that node is resized to the
// desired shape and 0 is returned. Without one, the missing managed nodes are
// created and the number created is returned; applying twice creates nothing the second time.
func (r *Reconciler) Apply(target string) (int, error) {
	spec, err := r.Spec()
	if err != nil {
		return 0, err
	}

	if target != "" {
		node, ok := r.cluster.Get(target)
		if !ok {
			return 0, errors.Wrapf(models.ErrNotFound, "target node '%s'", target)
		}
		if err := node.Resize(spec.Shape); err != nil {
			return 0, err
		}
		r.events.Record("Terraform applied: Targeted update for node '%s'.", target)
		r.logger.WithFields(logrus.Fields{"node": target, "shape": spec.Shape.String()}).Debug("node resized")
		return 0, nil
	}

	created, next := 0, 0
	for missing := spec.Count - len(r.cluster.ManagedNodes()); missing > 0; missing-- {
		var id string
		id, next = r.cluster.NextNodeIDFrom(next)
		r.cluster.Add(models.NewNode(id, spec.Shape, spec.Version))
		next++
		created++
	}
	r.events.Record("Terraform applied: %d nodes provisioned.", created)
	r.logger.WithField("created", created).Debug("apply finished")
	return created, nil
}

// Destroy removes an idle node
func (r *Reconciler) Destroy(nodeID string) error {
	node, ok := r.cluster.Get(nodeID)
	if !ok {
		return errors.Wrapf(models.ErrNotFound, "node '%s'", nodeID)
	}
	if !node.Idle() {
		return errors.Wrapf(models.ErrResourceBusy, "cannot destroy node '%s': it has %d running job(s)", nodeID, len(node.RunningJobs))
	}
	r.cluster.Remove(nodeID)
	r.events.Record("Terraform destroyed node '%s'.", nodeID)
	return nil
}

// Show renders every managed node as a resource block
func (r *Reconciler) Show() string {
	var b strings.Builder
	b.WriteString("# Terraform State:\n")
	for _, node := range r.cluster.ManagedNodes() {
		fmt.Fprintf(&b, `resource "cluster_node" %q {
  cpu             = %d
  gpu             = %d
  ram             = %d
  pytorch_version = %q
}
`, node.ID, node.Resources.Get(models.ResourceCPU), node.Resources.Get(models.ResourceGPU), node.Resources.Get(models.ResourceRAM), node.Version)
	}
	return b.String()
}

// StateList returns the ids of the managed nodes
func (r *Reconciler) StateList() []string {
	managed := r.cluster.ManagedNodes()
	ids := make([]string, 0, len(managed))
	for _, node := range managed {
		ids = append(ids, node.ID)
	}
	return ids
}

// Import brings an unmanaged node under management
func (r *Reconciler) Import(nodeID string) error {
	node, ok := r.cluster.Get(nodeID)
	if !ok {
		return errors.Wrapf(models.ErrNotFound, "node '%s'", nodeID)
	}
	if node.Managed {
		return errors.Wrapf(models.ErrAlreadyManaged, "node '%s'", nodeID)
	}
	node.Managed = true
	r.events.Record("Terraform imported node '%s' into state.", nodeID)
	return nil
}

// Grow raises the desired count by n and applies it. It is the autoscaler's way in.
func (r *Reconciler) Grow(n int) (int, error) {
	spec, err := r.Spec()
	if err != nil {
		return 0, err
	}
	spec.Count = len(r.cluster.ManagedNodes()) + n
	r.config = spec.Render()
	return r.Apply("")
}

// Shrink destroys an idle managed node and lowers the desired count to match
func (r *Reconciler) Shrink(nodeID string) error {
	spec, err := r.Spec()
	if err != nil {
		return err
	}
	node, ok := r.cluster.Get(nodeID)
	if !ok {
		return errors.Wrapf(models.ErrNotFound, "node '%s'", nodeID)
	}
	if !node.Managed {
		return errors.Wrapf(models.ErrNotManaged, "node '%s'", nodeID)
	}
	if err := r.Destroy(nodeID); err != nil {
		return err
	}
	spec.Count = len(r.cluster.ManagedNodes())
	r.config = spec.Render()
	return nil
}
