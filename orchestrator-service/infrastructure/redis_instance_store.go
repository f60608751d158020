package infrastructure

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shipabox/shipment-saga/orchestrator-service/domain"
	"github.com/shipabox/shipment-saga/shared/models"
)

var _ domain.InstanceStore = (*RedisInstanceStore)(nil)

// DefaultRedisKeyPrefix namespaces every key the store writes
const DefaultRedisKeyPrefix = "shipabox:"

// RedisInstanceStore keeps shipments in Redis. Each shipment is a JSON
// value; a natural key index and an id set support lookups and listing.
// Put and Delete run under WATCH so concurrent writers on other replicas
// surface as ErrVersionConflict.
type RedisInstanceStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisInstanceStore creates a store; an empty prefix uses DefaultRedisKeyPrefix
func NewRedisInstanceStore(client redis.UniversalClient, prefix string) *RedisInstanceStore {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisInstanceStore{client: client, prefix: prefix}
}

func (r *RedisInstanceStore) shipmentKey(id models.ID) string {
	return r.prefix + "shipment:" + id.String()
}

func (r *RedisInstanceStore) naturalKey(key string) string {
	return r.prefix + "nk:" + key
}

func (r *RedisInstanceStore) indexKey() string {
	return r.prefix + "shipments"
}

// Get returns the shipment or nil when absent
func (r *RedisInstanceStore) Get(ctx context.Context, id models.ID) (*domain.Shipment, error) {
	return r.get(ctx, r.client, id)
}

// getter is satisfied by both the client and a WATCH transaction
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *RedisInstanceStore) get(ctx context.Context, c getter, id models.ID) (*domain.Shipment, error) {
	data, err := c.Get(ctx, r.shipmentKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get shipment")
	}
	return decodeShipment(data)
}

// FindByNaturalKey returns the live shipment for key or nil
func (r *RedisInstanceStore) FindByNaturalKey(ctx context.Context, key string) (*domain.Shipment, error) {
	id, err := r.client.Get(ctx, r.naturalKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to resolve natural key")
	}
	return r.Get(ctx, models.ID(id))
}

// Put inserts or replaces a shipment with compare-and-swap on its version
func (r *RedisInstanceStore) Put(ctx context.Context, shipment *domain.Shipment) error {
	if shipment == nil || shipment.CorrelationID.IsZero() {
		return errors.New("shipment with a correlation id is required")
	}

	data, err := json.Marshal(shipment)
	if err != nil {
		return errors.Wrap(err, "failed to marshal shipment")
	}

	id := shipment.CorrelationID
	shipmentKey := r.shipmentKey(id)
	nkKey := r.naturalKey(shipment.NaturalKey())

	txf := func(tx *redis.Tx) error {
		current, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}

		var staleKey string
		if shipment.Version.IsNew() {
			if current != nil {
				return errors.Wrapf(domain.ErrVersionConflict, "shipment %s already exists", id)
			}
			owner, err := tx.Get(ctx, nkKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return errors.Wrap(err, "failed to resolve natural key")
			}
			if owner != "" && owner != id.String() {
				exists, err := tx.Exists(ctx, r.shipmentKey(models.ID(owner))).Result()
				if err != nil {
					return errors.Wrap(err, "failed to check natural key owner")
				}
				if exists > 0 {
					return errors.Wrapf(domain.ErrVersionConflict, "natural key %q belongs to shipment %s", shipment.NaturalKey(), owner)
				}
			}
		} else {
			if current == nil {
				return errors.Wrapf(domain.ErrVersionConflict, "shipment %s no longer exists", id)
			}
			if current.Version.Value != shipment.Version.Previous() {
				return errors.Wrapf(domain.ErrVersionConflict, "shipment %s is at version %d, expected %d",
					id, current.Version.Value, shipment.Version.Previous())
			}
			if current.NaturalKey() != shipment.NaturalKey() {
				staleKey = r.naturalKey(current.NaturalKey())
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, shipmentKey, data, 0)
			pipe.Set(ctx, nkKey, id.String(), 0)
			pipe.SAdd(ctx, r.indexKey(), id.String())
			if staleKey != "" {
				pipe.Del(ctx, staleKey)
			}
			return nil
		})
		return err
	}

	err = r.client.Watch(ctx, txf, shipmentKey, nkKey)
	if errors.Is(err, redis.TxFailedErr) {
		return errors.Wrapf(domain.ErrVersionConflict, "shipment %s was modified concurrently", id)
	}
	if err != nil && !errors.Is(err, domain.ErrVersionConflict) {
		return errors.Wrap(err, "failed to put shipment")
	}
	return err
}

// Delete removes a shipment that is still at version, with its index entries
func (r *RedisInstanceStore) Delete(ctx context.Context, id models.ID, version int) error {
	shipmentKey := r.shipmentKey(id)

	txf := func(tx *redis.Tx) error {
		current, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return errors.Wrapf(domain.ErrVersionConflict, "shipment %s no longer exists", id)
		}
		if current.Version.Value != version {
			return errors.Wrapf(domain.ErrVersionConflict, "shipment %s is at version %d, expected %d",
				id, current.Version.Value, version)
		}

		nkKey := r.naturalKey(current.NaturalKey())
		owner, err := tx.Get(ctx, nkKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return errors.Wrap(err, "failed to resolve natural key")
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, shipmentKey)
			pipe.SRem(ctx, r.indexKey(), id.String())
			if owner == id.String() {
				pipe.Del(ctx, nkKey)
			}
			return nil
		})
		return err
	}

	err := r.client.Watch(ctx, txf, shipmentKey)
	if errors.Is(err, redis.TxFailedErr) {
		return errors.Wrapf(domain.ErrVersionConflict, "shipment %s was modified concurrently", id)
	}
	if err != nil && !errors.Is(err, domain.ErrVersionConflict) {
		return errors.Wrap(err, "failed to delete shipment")
	}
	return err
}

// List returns every live shipment, oldest first
func (r *RedisInstanceStore) List(ctx context.Context) ([]*domain.Shipment, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list shipment ids")
	}
	if len(ids) == 0 {
		return []*domain.Shipment{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.shipmentKey(models.ID(id))
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load shipments")
	}

	shipments := make([]*domain.Shipment, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		shipment, err := decodeShipment([]byte(raw))
		if err != nil {
			return nil, err
		}
		shipments = append(shipments, shipment)
	}

	sortShipments(shipments)
	return shipments, nil
}

func decodeShipment(data []byte) (*domain.Shipment, error) {
	var shipment domain.Shipment
	if err := json.Unmarshal(data, &shipment); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal shipment")
	}
	return &shipment, nil
}
