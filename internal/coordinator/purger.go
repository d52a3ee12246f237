package coordinator

import (
	"context"
	"errors"

	"github.com/giantswarm/oauth-session/internal/storage"
	"github.com/giantswarm/oauth-session/pkg/logging"
)

// Purger removes leftover authorization artifacts from storage.
type Purger interface {
	PurgeFlowArtifacts(ctx context.Context) error
}

// PrefixPurger deletes every storage key containing a marker. Abandoned or
// duplicated flows leave request entries behind; this collects them.
type PrefixPurger struct {
	store  storage.FlowStorage
	marker string
}

// NewPrefixPurger creates a purger for keys of store containing marker.
func NewPrefixPurger(store storage.FlowStorage, marker string) *PrefixPurger {
	return &PrefixPurger{store: store, marker: marker}
}

// PurgeFlowArtifacts implements Purger. It removes as many entries as it
// can and reports every failure.
func (p *PrefixPurger) PurgeFlowArtifacts(ctx context.Context) error {
	if p.marker == "" {
		return errors.New("purge marker is empty")
	}

	keys, err := storage.KeysWithMarker(ctx, p.store, p.marker)
	if err != nil {
		return err
	}

	var errs []error
	for _, key := range keys {
		if err := p.store.Remove(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}

	if removed := len(keys) - len(errs); removed > 0 {
		logging.Debug("Coordinator", "Purged %d leftover authorization entries", removed)
		logging.Audit(logging.AuditEvent{
			Action:  "flow_storage_purged",
			Outcome: "success",
			Target:  p.marker,
		})
	}
	return errors.Join(errs...)
}
