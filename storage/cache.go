package storage

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/yush1006/todo/domain"
)

// Cache wraps a Backend with a Redis-backed snapshot cache. Reads fall back
// to the backend on any cache failure; writes bump the owner's version and
// evict the snapshot. A read only fills the cache when the version it saw
// before reading the backend is still current, so a read that raced a write
// cannot pin the pre-write list.
type Cache struct {
	base  Backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Backend using the provided Redis client and TTL.
// A zero TTL disables cache writes.
func NewCache(base Backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base backend is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) FetchTasks(ctx context.Context, ownerID string) ([]domain.Task, error) {
	if tasks, ok := c.load(ctx, ownerID); ok {
		return tasks, nil
	}
	version, versionOK := c.version(ctx, ownerID)
	tasks, err := c.base.FetchTasks(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if versionOK {
		c.store(ctx, ownerID, version, tasks)
	}
	return tasks, nil
}

func (c *Cache) CreateTask(ctx context.Context, task domain.NewTask) (domain.Task, error) {
	t, err := c.base.CreateTask(ctx, task)
	if err != nil {
		return domain.Task{}, err
	}
	c.Evict(ctx, task.OwnerID)
	return t, nil
}

func (c *Cache) UpdateTask(ctx context.Context, ownerID, id string, patch domain.TaskPatch) (domain.Task, error) {
	t, err := c.base.UpdateTask(ctx, ownerID, id, patch)
	if err != nil {
		return domain.Task{}, err
	}
	c.Evict(ctx, ownerID)
	return t, nil
}

func (c *Cache) DeleteTask(ctx context.Context, ownerID, id string) error {
	if err := c.base.DeleteTask(ctx, ownerID, id); err != nil {
		return err
	}
	c.Evict(ctx, ownerID)
	return nil
}

func (c *Cache) BatchUpdate(ctx context.Context, ownerID string, updates []domain.TaskUpdate) error {
	if err := c.base.BatchUpdate(ctx, ownerID, updates); err != nil {
		return err
	}
	c.Evict(ctx, ownerID)
	return nil
}

// Evict bumps the owner's version and drops the cached snapshot.
func (c *Cache) Evict(ctx context.Context, ownerID string) {
	if c.redis == nil {
		return
	}
	_, err := c.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, tasksVersionKey(ownerID))
		p.Expire(ctx, tasksVersionKey(ownerID), c.versionTTL())
		p.Del(ctx, tasksCacheKey(ownerID))
		return nil
	})
	if err != nil {
		log.WithError(err).WithField("user", ownerID).Warn("failed to evict tasks cache entry")
	}
}

// version reads the owner's write counter; an absent counter is "".
func (c *Cache) version(ctx context.Context, ownerID string) (string, bool) {
	if c.redis == nil || c.ttl == 0 {
		return "", false
	}
	v, err := c.redis.Get(ctx, tasksVersionKey(ownerID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", true
	}
	if err != nil {
		return "", false
	}
	return v, true
}

// versionTTL outlives any snapshot so a counter cannot expire and reappear
// with a value an in-flight read already saw.
func (c *Cache) versionTTL() time.Duration {
	if c.ttl < time.Minute {
		return 2 * time.Minute
	}
	return 2 * c.ttl
}

func (c *Cache) load(ctx context.Context, ownerID string) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, tasksCacheKey(ownerID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, tasksCacheKey(ownerID)).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := sonic.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, tasksCacheKey(ownerID)).Err()
		return nil, false
	}
	return tasks, true
}

var errStaleSnapshot = errors.New("tasks changed during read")

// store caches tasks unless a write bumped the owner's version since it was
// read.
func (c *Cache) store(ctx context.Context, ownerID, version string, tasks []domain.Task) {
	data, err := sonic.Marshal(tasks)
	if err != nil {
		return
	}
	verKey := tasksVersionKey(ownerID)
	err = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, verKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errStaleSnapshot
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, tasksCacheKey(ownerID), data, c.ttl)
			return nil
		})
		return err
	}, verKey)
	switch {
	case err == nil:
	case errors.Is(err, errStaleSnapshot), errors.Is(err, redis.TxFailedErr):
		log.WithField("user", ownerID).Debug("skipped caching tasks read that raced a write")
	default:
		log.WithError(err).WithField("user", ownerID).Debug("failed to store tasks cache entry")
	}
}

func tasksCacheKey(ownerID string) string {
	return "tasks:" + ownerID
}

func tasksVersionKey(ownerID string) string {
	return "taskver:" + ownerID
}
