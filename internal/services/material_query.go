package services

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/studymaterials/backend/internal/models"
	"go.uber.org/zap"
)

// Gateway is the remote data gateway the query service reads from and deletes through
type Gateway interface {
	// Method QueryRecords returns every material visible under the key:
	// category and kind equal, and class equal or absent when the key carries a class.
	QueryRecords(ctx context.Context, key models.FilterKey) ([]models.Material, error)

	// Method DeleteRecord deletes the material with the id on behalf of the session.
	// It returns the number of deleted records; zero means nothing matched.
	DeleteRecord(ctx context.Context, session *models.Session, id int64) (int64, error)
}

// QueryStatus is the lifecycle state of the current filter key
type QueryStatus string

const (
	StatusIdle    QueryStatus = "idle"
	StatusLoading QueryStatus = "loading"
	StatusReady   QueryStatus = "ready"
	StatusFailed  QueryStatus = "failed"
)

// QueryState is a snapshot of the query service
type QueryState struct {
	Status    QueryStatus
	Key       models.FilterKey
	Materials []models.Material
	Err       error
	// Generation increases with every accepted fetch
	Generation uint64
}

// DeleteResult reports the outcome of DeleteMaterial
type DeleteResult struct {
	Success bool
	// Removed is false when the gateway matched no record
	Removed bool
	Err     error
}

// MaterialQuery keeps the materials visible under the current filter key.
// Responses of fetches superseded by a newer key are discarded.
type MaterialQuery struct {
	gateway Gateway
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.Mutex
	state QueryState
	// purged holds ids deleted while a fetch was in flight
	purged map[int64]struct{}
}

// NewMaterialQuery creates a query service in the idle state
func NewMaterialQuery(gateway Gateway, logger *zap.Logger) *MaterialQuery {
	return &MaterialQuery{
		gateway: gateway,
		logger:  logger,
		now:     time.Now,
		state: QueryState{
			Status:    StatusIdle,
			Materials: []models.Material{},
		},
		purged: make(map[int64]struct{}),
	}
}

// Fetch loads the materials for key and makes key current.
//
// A malformed key is rejected with a ValidationError before the gateway is called and leaves
// the state untouched. Otherwise the state enters loading right away, keeping the last good
// materials. On failure the last good materials stay and the state becomes failed.
// If another Fetch starts before this one completes, this result is dropped and ErrSuperseded
// is returned.
func (q *MaterialQuery) Fetch(ctx context.Context, key models.FilterKey) error {
	if err := ValidateFilterKey(key); err != nil {
		return err
	}
	key = cloneKey(key)

	q.mu.Lock()
	q.state.Generation++
	generation := q.state.Generation
	q.state.Status = StatusLoading
	q.state.Key = key
	q.state.Err = nil
	clear(q.purged)
	q.mu.Unlock()

	materials, err := q.gateway.QueryRecords(ctx, key)

	q.mu.Lock()
	defer q.mu.Unlock()

	if generation != q.state.Generation {
		q.logger.Debug("discarding stale materials response",
			zap.Uint64("generation", generation),
			zap.Uint64("current_generation", q.state.Generation),
		)
		return ErrSuperseded
	}

	if err != nil {
		err = gatewayError("query", err)
		q.state.Status = StatusFailed
		q.state.Err = err
		q.logger.Warn("failed to fetch materials",
			zap.String("category", string(key.Category)),
			zap.String("type", string(key.Kind)),
			zap.Error(err),
		)
		return err
	}

	visible := make([]models.Material, 0, len(materials))
	for _, m := range materials {
		if _, deleted := q.purged[m.ID]; deleted || !key.Matches(m) {
			continue
		}
		visible = append(visible, m)
	}

	q.state.Status = StatusReady
	q.state.Materials = visible
	return nil
}

// DeleteMaterial deletes a material through the gateway and drops it from the current set.
//
// A nil or expired session fails with ErrAuthRequired before any gateway call.
// A gateway failure leaves the set unchanged. When the gateway matched no record the
// result is still a success with Removed set to false, and the id is purged locally.
func (q *MaterialQuery) DeleteMaterial(ctx context.Context, session *models.Session, id int64) DeleteResult {
	if !session.Valid(q.now()) {
		return DeleteResult{Err: ErrAuthRequired}
	}
	if id <= 0 {
		return DeleteResult{Err: newValidationError("id", "id must be positive")}
	}

	affected, err := q.gateway.DeleteRecord(ctx, session, id)
	if err != nil {
		err = gatewayError("delete", err)
		q.logger.Warn("failed to delete material", zap.Int64("id", id), zap.Error(err))
		return DeleteResult{Err: err}
	}

	q.mu.Lock()
	q.state.Materials = slices.DeleteFunc(slices.Clone(q.state.Materials), func(m models.Material) bool {
		return m.ID == id
	})
	if q.state.Status == StatusLoading {
		q.purged[id] = struct{}{}
	}
	q.mu.Unlock()

	return DeleteResult{Success: true, Removed: affected > 0}
}

// State returns a snapshot of the current state. The caller owns the returned slice.
func (q *MaterialQuery) State() QueryState {
	q.mu.Lock()
	defer q.mu.Unlock()

	snapshot := q.state
	snapshot.Key = cloneKey(q.state.Key)
	snapshot.Materials = slices.Clone(q.state.Materials)
	return snapshot
}

// Materials returns a copy of the current material set
func (q *MaterialQuery) Materials() []models.Material {
	return q.State().Materials
}

// IsAuthRequired reports whether a delete failed for lack of a valid session
func (r DeleteResult) IsAuthRequired() bool {
	return errors.Is(r.Err, ErrAuthRequired)
}

func cloneKey(key models.FilterKey) models.FilterKey {
	if key.Class != nil {
		class := *key.Class
		key.Class = &class
	}
	return key
}
