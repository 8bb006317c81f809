package cluster

import (
	"context"
	"encoding/json"
	"math"
	"strconv"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"

	apperrors "github.com/ecotune/ecotune/internal/errors"
	"github.com/ecotune/ecotune/internal/logging"
)

// DeploymentPatcher maps a candidate value vector onto a deployment's
// replica count and container CPU request via a strategic merge patch. It
// implements objective.Applier.
type DeploymentPatcher struct {
	client    kubernetes.Interface
	namespace string
	name      string
	container string
	logger    *logging.Logger

	// Indices into the candidate value vector.
	replicasIndex int
	cpuIndex      int
}

// NewDeploymentPatcher wires a patcher for the named deployment. container
// is the container whose CPU request is tuned; replicasIndex and cpuIndex
// locate the two values in the candidate vector.
func NewDeploymentPatcher(client kubernetes.Interface, namespace, name, container string, replicasIndex, cpuIndex int, logger *logging.Logger) *DeploymentPatcher {
	return &DeploymentPatcher{
		client:        client,
		namespace:     namespace,
		name:          name,
		container:     container,
		logger:        logger,
		replicasIndex: replicasIndex,
		cpuIndex:      cpuIndex,
	}
}

// MinVectorLen returns the shortest candidate vector Apply accepts.
func (p *DeploymentPatcher) MinVectorLen() int {
	if p.cpuIndex > p.replicasIndex {
		return p.cpuIndex + 1
	}
	return p.replicasIndex + 1
}

// Apply patches the deployment with the candidate's replica count and CPU
// request and returns once the API server accepts the patch.
func (p *DeploymentPatcher) Apply(ctx context.Context, values []float64) error {
	if len(values) < p.MinVectorLen() {
		return apperrors.Errorf("candidate vector has %d values, need at least %d", len(values), p.MinVectorLen()).
			WithComponent("cluster").WithOperation("apply")
	}
	replicas := int32(math.Round(values[p.replicasIndex]))
	cpu := strconv.FormatFloat(values[p.cpuIndex], 'f', 3, 64)

	patch := map[string]interface{}{
		"spec": map[string]interface{}{
			"replicas": replicas,
			"template": map[string]interface{}{
				"spec": map[string]interface{}{
					"containers": []map[string]interface{}{
						{
							"name": p.container,
							"resources": map[string]interface{}{
								"requests": map[string]string{"cpu": cpu},
							},
						},
					},
				},
			},
		},
	}

	body, err := json.Marshal(patch)
	if err != nil {
		return apperrors.Wrap(err, "marshal patch").WithComponent("cluster")
	}

	_, err = p.client.AppsV1().Deployments(p.namespace).
		Patch(ctx, p.name, types.StrategicMergePatchType, body, metav1.PatchOptions{})
	if err != nil {
		return apperrors.Wrapf(err, "patch deployment %s/%s", p.namespace, p.name).
			WithComponent("cluster").WithOperation("apply")
	}

	p.logger.Info("patched deployment", map[string]interface{}{
		"deployment": p.name,
		"namespace":  p.namespace,
		"replicas":   replicas,
		"cpu":        cpu,
	})
	return nil
}
