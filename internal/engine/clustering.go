package engine

import (
	"go.uber.org/zap"

	"github.com/copyleftdev/verdant/internal/metrics"
	"github.com/copyleftdev/verdant/internal/optimization/segmentation"
	"github.com/copyleftdev/verdant/internal/payload"
)

// PerformClustering segments the customers given as parallel arrays of eco
// scores and wallet balances with the centroids of tenant, and writes the
// segmentation document into dst.
//
// Empty or unequal arrays, or a dst shorter than payload.MinBufferSize,
// write [] instead (cut to fit dst). It returns the payload length.
func (e *Engine) PerformClustering(tenant string, ecoScores, wallets []int, dst []byte) (n int) {
	defer e.recoverTo(opClustering, dst, payload.EmptySegmentation(), &n, nil)

	if len(ecoScores) == 0 || len(ecoScores) != len(wallets) || len(dst) < payload.MinBufferSize {
		e.metrics.ObserveSegmentation(metrics.OutcomeDegenerate, len(ecoScores), 0)
		return e.write(opClustering, dst, payload.EmptySegmentation())
	}

	obs := make([]segmentation.Observation, len(ecoScores))
	for i := range ecoScores {
		obs[i] = segmentation.Observation{EcoScore: ecoScores[i], WalletBalance: wallets[i]}
	}

	res := e.Segment(tenant, obs)
	return e.write(opClustering, dst, payload.Segmentation(res.Records))
}

// Segment runs one segmentation call for tenant. Calls for the same tenant
// are serialized; calls for different tenants run in parallel.
func (e *Engine) Segment(tenant string, obs []segmentation.Observation) segmentation.Result {
	if len(obs) == 0 {
		e.metrics.ObserveSegmentation(metrics.OutcomeDegenerate, 0, 0)
		return segmentation.Result{Records: []segmentation.Record{}}
	}

	t := e.tenant(tenant)
	t.mu.Lock()
	res := t.model.Segment(obs)
	t.mu.Unlock()

	e.metrics.ObserveSegmentation(metrics.OutcomeOK, len(obs), res.Rounds)
	e.logger.Debug("customers segmented",
		zap.String("tenant", tenantName(tenant)),
		zap.Int("observations", len(obs)),
		zap.Int("rounds", res.Rounds),
		zap.Bool("converged", res.Converged),
	)
	return res
}

// Centroids returns the current centroids of tenant.
func (e *Engine) Centroids(tenant string) [segmentation.NumTiers]segmentation.Centroid {
	t := e.tenant(tenant)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.model.Centroids()
}

// ResetTenant restores the seeded centroids of tenant.
func (e *Engine) ResetTenant(tenant string) {
	t := e.tenant(tenant)
	t.mu.Lock()
	t.model.Reset()
	t.mu.Unlock()

	e.logger.Info("tenant centroids reset", zap.String("tenant", tenantName(tenant)))
}

func tenantName(tenant string) string {
	if tenant == "" {
		return DefaultTenant
	}
	return tenant
}
