package mapper

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
	"github.com/JerrettDavis/QuickApiMapper-sub001/transform"
)

var (
	tracer = otel.Tracer("Mapping engine")
)

// Engine applies an ordered list of field mappings to one source/destination
// pair. Resolvers are consulted in registration order with the static
// resolver first, writers likewise in registration order. The engine itself
// is a stateless shared singleton; everything mutable per call lives in the
// model.Context.
type Engine[S, D any] struct {
	resolvers []Resolver[S]
	writers   []Writer[D]
	registry  *transform.Registry
}

// NewEngine builds an engine over the given resolvers and writers. Callers
// are expected to register the static resolver ahead of the source resolver;
// the typed constructors in mapper.go do this.
func NewEngine[S, D any](registry *transform.Registry, resolvers []Resolver[S], writers []Writer[D]) *Engine[S, D] {
	return &Engine[S, D]{
		registry:  registry,
		resolvers: resolvers,
		writers:   writers,
	}
}

// Apply runs the resolve, transform, write sequence for every field mapping
// in order. Fields with an empty destination are skipped without consulting
// any resolver. An unclaimed path, a missing value or a refused write degrade
// the field to a skip; a resolver error, a cancelled context or a panic fail
// the whole call and leave the remaining fields unprocessed. Writes already
// performed stay in the destination either way.
func (e *Engine[S, D]) Apply(ctx context.Context, mctx *model.Context[S, D]) (result model.Result) {
	ctx, span := tracer.Start(ctx, "Applying field mappings")
	defer span.End()

	var processed, written, skipped int
	fail := func(err error) model.Result {
		span.RecordError(err)
		res := model.Failure(err)
		res.FieldsProcessed = processed
		res.FieldsWritten = written
		res.FieldsSkipped = skipped
		return res
	}
	defer func() {
		if rec := recover(); rec != nil {
			logrus.Errorf("mapping panic recovered: %v", rec)
			result = fail(fmt.Errorf("mapping panic: %v", rec))
		}
	}()

	statics := mctx.MergedStatics()

	for _, fm := range mctx.Mappings {
		if err := ctx.Err(); err != nil {
			span.AddEvent("mapping cancelled")
			return fail(err)
		}
		processed++

		if fm.Destination == "" {
			skipped++
			continue
		}

		value, found, err := e.resolve(mctx, statics, fm.Source)
		if err != nil {
			return fail(fmt.Errorf("resolving %q: %w", fm.Source, err))
		}
		if !found {
			logrus.WithFields(logrus.Fields{
				"mapping": mctx.MappingName,
				"source":  fm.Source,
			}).Debug("no value resolved, field skipped")
			skipped++
			continue
		}

		value = e.registry.Apply(value, fm.Transformers)

		if !e.write(mctx, fm.Destination, value) {
			skipped++
			continue
		}
		written++
	}

	return model.Success(processed, written, skipped)
}

// resolve dispatches first-match over the registered resolvers. A claiming
// resolver that finds no value falls through to the next one.
func (e *Engine[S, D]) resolve(mctx *model.Context[S, D], statics map[string]string, path string) (string, bool, error) {
	claimed := false
	for _, r := range e.resolvers {
		if !r.CanResolve(path) {
			continue
		}
		claimed = true
		value, found, err := r.Resolve(mctx.Source, statics, path)
		if err != nil {
			return "", false, err
		}
		if found {
			return value, true, nil
		}
	}
	if !claimed {
		logrus.WithField("source", path).Debug("no resolver claims path")
	}
	return "", false, nil
}

// write dispatches to the first writer claiming the path and reports whether
// the value landed. A writer error is logged and treated the same as no
// writer claiming the path.
func (e *Engine[S, D]) write(mctx *model.Context[S, D], path, value string) bool {
	for _, w := range e.writers {
		if !w.CanWrite(path) {
			continue
		}
		if err := w.Write(mctx.Destination, path, value); err != nil {
			logrus.WithFields(logrus.Fields{
				"mapping":     mctx.MappingName,
				"destination": path,
				"error":       err,
			}).Warn("write failed, field skipped")
			return false
		}
		return true
	}
	logrus.WithFields(logrus.Fields{
		"mapping":     mctx.MappingName,
		"destination": path,
	}).Warn("no writer claims path, field skipped")
	return false
}
