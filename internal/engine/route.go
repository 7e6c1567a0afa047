package engine

import (
	"go.uber.org/zap"

	"github.com/copyleftdev/verdant/internal/optimization/routing"
	"github.com/copyleftdev/verdant/internal/payload"
)

// OptimizeRoute plans a tour over numStops seeded locations, the hub
// included, and writes the route document into dst. Stop counts outside
// [routing.MinStops, routing.MaxStops] are clamped. When no workspace is
// available the error document is written instead.
//
// A dst shorter than payload.MinBufferSize is left untouched and 0 is
// returned.
func (e *Engine) OptimizeRoute(numStops int, dst []byte) int {
	n, _ := e.WriteRoute(numStops, dst)
	return n
}

// WriteRoute is OptimizeRoute that also returns the failure behind an error
// document.
func (e *Engine) WriteRoute(numStops int, dst []byte) (n int, err error) {
	if len(dst) < payload.MinBufferSize {
		return 0, nil
	}
	defer e.recoverTo(opRoute, dst, payload.Error(panicError(opRoute)), &n, &err)

	res, err := e.Route(numStops)
	if err != nil {
		return e.write(opRoute, dst, payload.Error(err)), err
	}
	return e.write(opRoute, dst, payload.Route(res)), nil
}

// Route plans a tour over numStops locations drawn from the seed source.
func (e *Engine) Route(numStops int) (*routing.Result, error) {
	seed := e.seed()
	res, err := e.optimizer.Plan(numStops, seed)
	if err != nil {
		e.metrics.ObserveRouteError()
		e.logger.Warn("route optimization failed",
			zap.Int("stops", numStops),
			zap.Int64("seed", seed),
			zap.Error(err),
		)
		return nil, err
	}

	e.metrics.ObserveRoute(res.Passes, res.InitialDistance, res.TotalDistance)
	return res, nil
}
