package audit

import "context"

// Fanout writes every event to the durable primary store and then to any
// number of best-effort sinks (e.g. the Kafka publisher). Only a primary
// failure propagates; sink failures are the sink's problem to log.
type Fanout struct {
	primary Store
	sinks   []Store
}

func NewFanout(primary Store, sinks ...Store) *Fanout {
	return &Fanout{primary: primary, sinks: sinks}
}

func (f *Fanout) Append(ctx context.Context, event Event) error {
	if err := f.primary.Append(ctx, event); err != nil {
		return err
	}
	for _, sink := range f.sinks {
		_ = sink.Append(ctx, event)
	}
	return nil
}

func (f *Fanout) ListByEntity(ctx context.Context, entity, entityID string) ([]Event, error) {
	return f.primary.ListByEntity(ctx, entity, entityID)
}
