package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"applypilot/internal/config"
	"applypilot/pkg/models"
)

// Redis key layout. Scalar fields and counters live in one hash so partial
// updates stay single-command atomic; jobs are a URL-keyed hash plus an order
// list, logs are a plain list, and a per-owner sorted set scored by start time
// serves the newest-first listing.
const (
	sessionKeyFmt  = "autoapply:session:%s"
	logsKeyFmt     = "autoapply:session:%s:logs"
	jobsKeyFmt     = "autoapply:session:%s:jobs"
	jobOrderKeyFmt = "autoapply:session:%s:joburls"
	ownerKeyFmt    = "autoapply:owner:%s:sessions"
)

// setStatusScript performs the conditional status transition in one round
// trip: -1 when the session is missing, 0 when the current status is not the
// expected source state, 1 on success.
var setStatusScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'status')
if cur == false then
  return -1
end
if cur ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[2], 'updated_at', ARGV[3])
return 1
`)

// RedisStore implements Store backed by Redis
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed session store and verifies connectivity
func NewRedisStore(cfg *config.Config) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	opts.DB = cfg.Redis.DB
	opts.DialTimeout = cfg.Redis.Timeout
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Create inserts a new session document, including any seed logs and jobs,
// so a freshly created session reads back the same from every Store
// implementation
func (s *RedisStore) Create(ctx context.Context, sess *models.AutomationSession) error {
	criteriaJSON, err := json.Marshal(sess.Criteria)
	if err != nil {
		return fmt.Errorf("failed to marshal criteria: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.sessionKey(sess.ID), map[string]interface{}{
		"id":                     sess.ID,
		"user_id":                sess.UserID,
		"status":                 string(sess.Status),
		"criteria":               string(criteriaJSON),
		"jobs_found":             sess.Counters.JobsFound,
		"applications_submitted": sess.Counters.ApplicationsSubmitted,
		"applications_skipped":   sess.Counters.ApplicationsSkipped,
		"started_at":             sess.StartedAt.Format(time.RFC3339Nano),
		"updated_at":             sess.UpdatedAt.Format(time.RFC3339Nano),
	})
	pipe.ZAdd(ctx, s.ownerKey(sess.UserID), redis.Z{
		Score:  float64(sess.StartedAt.UnixNano()),
		Member: sess.ID,
	})

	for _, entry := range sess.Logs {
		entryJSON, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal log entry: %w", err)
		}
		pipe.RPush(ctx, s.logsKey(sess.ID), entryJSON)
	}

	for _, job := range sess.Jobs {
		if job.URL == "" {
			continue
		}
		jobJSON, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}
		pipe.HSet(ctx, s.jobsKey(sess.ID), job.URL, jobJSON)
		pipe.RPush(ctx, s.jobOrderKey(sess.ID), job.URL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Get reads a full session snapshot scoped to its owner
func (s *RedisStore) Get(ctx context.Context, ownerID, sessionID string) (*models.AutomationSession, error) {
	sess, err := s.getByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != ownerID {
		return nil, ErrNotFound
	}
	return sess, nil
}

// GetStatus reads only the current status
func (s *RedisStore) GetStatus(ctx context.Context, sessionID string) (models.SessionStatus, error) {
	raw, err := s.client.HGet(ctx, s.sessionKey(sessionID), "status").Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read session status: %w", err)
	}
	return models.ParseSessionStatus(raw)
}

// ListByOwner returns all sessions for an owner, newest start time first
func (s *RedisStore) ListByOwner(ctx context.Context, ownerID string) ([]*models.AutomationSession, error) {
	ids, err := s.client.ZRevRange(ctx, s.ownerKey(ownerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]*models.AutomationSession, 0, len(ids))
	for _, id := range ids {
		sess, err := s.getByID(ctx, id)
		if err == ErrNotFound {
			// Index entry outlived the document; skip it.
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// AppendLog appends a single log entry
func (s *RedisStore) AppendLog(ctx context.Context, sessionID string, entry models.SessionLog) error {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.logsKey(sessionID), entryJSON)
	pipe.HSet(ctx, s.sessionKey(sessionID), "updated_at", time.Now().Format(time.RFC3339Nano))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	return nil
}

// AppendJobs appends only listings with URLs not already present
func (s *RedisStore) AppendJobs(ctx context.Context, sessionID string, jobs []models.FoundJob) ([]models.FoundJob, error) {
	appended := make([]models.FoundJob, 0, len(jobs))

	for _, job := range jobs {
		if job.URL == "" {
			continue
		}
		jobJSON, err := json.Marshal(job)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal job: %w", err)
		}

		// HSETNX is the dedup point: only the first writer of a URL wins.
		isNew, err := s.client.HSetNX(ctx, s.jobsKey(sessionID), job.URL, jobJSON).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to append job: %w", err)
		}
		if !isNew {
			continue
		}
		if err := s.client.RPush(ctx, s.jobOrderKey(sessionID), job.URL).Err(); err != nil {
			return nil, fmt.Errorf("failed to record job order: %w", err)
		}
		appended = append(appended, job)
	}

	if len(appended) > 0 {
		if err := s.client.HSet(ctx, s.sessionKey(sessionID), "updated_at", time.Now().Format(time.RFC3339Nano)).Err(); err != nil {
			return nil, fmt.Errorf("failed to touch session: %w", err)
		}
	}

	return appended, nil
}

// UpdateJobStatus transitions a found job identified by its URL. Only the
// session's single orchestration task writes jobs, so the read-modify-write
// here races only with pollers, which read whole entries.
func (s *RedisStore) UpdateJobStatus(ctx context.Context, sessionID, jobURL string, status models.JobStatus) error {
	raw, err := s.client.HGet(ctx, s.jobsKey(sessionID), jobURL).Result()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read job: %w", err)
	}

	var job models.FoundJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return fmt.Errorf("failed to unmarshal job: %w", err)
	}

	now := time.Now()
	job.Status = status
	job.UpdatedAt = now

	jobJSON, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.jobsKey(sessionID), jobURL, jobJSON)
	pipe.HSet(ctx, s.sessionKey(sessionID), "updated_at", now.Format(time.RFC3339Nano))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return nil
}

// IncrementCounters applies the non-zero deltas atomically
func (s *RedisStore) IncrementCounters(ctx context.Context, sessionID string, deltas models.CounterDeltas) error {
	key := s.sessionKey(sessionID)

	pipe := s.client.TxPipeline()
	if deltas.JobsFound != 0 {
		pipe.HIncrBy(ctx, key, "jobs_found", int64(deltas.JobsFound))
	}
	if deltas.ApplicationsSubmitted != 0 {
		pipe.HIncrBy(ctx, key, "applications_submitted", int64(deltas.ApplicationsSubmitted))
	}
	if deltas.ApplicationsSkipped != 0 {
		pipe.HIncrBy(ctx, key, "applications_skipped", int64(deltas.ApplicationsSkipped))
	}
	pipe.HSet(ctx, key, "updated_at", time.Now().Format(time.RFC3339Nano))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to increment counters: %w", err)
	}
	return nil
}

// SetStatus transitions the session status from one state to another
func (s *RedisStore) SetStatus(ctx context.Context, sessionID string, from, to models.SessionStatus) error {
	result, err := setStatusScript.Run(ctx, s.client,
		[]string{s.sessionKey(sessionID)},
		string(from), string(to), time.Now().Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return fmt.Errorf("failed to set session status: %w", err)
	}

	switch result {
	case -1:
		return ErrNotFound
	case 0:
		return ErrConflict
	default:
		return nil
	}
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// getByID assembles the full session document from its keys
func (s *RedisStore) getByID(ctx context.Context, sessionID string) (*models.AutomationSession, error) {
	fields, err := s.client.HGetAll(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	status, err := models.ParseSessionStatus(fields["status"])
	if err != nil {
		return nil, err
	}

	sess := &models.AutomationSession{
		ID:     fields["id"],
		UserID: fields["user_id"],
		Status: status,
	}

	if err := json.Unmarshal([]byte(fields["criteria"]), &sess.Criteria); err != nil {
		return nil, fmt.Errorf("failed to unmarshal criteria: %w", err)
	}

	sess.Counters.JobsFound = parseIntField(fields["jobs_found"])
	sess.Counters.ApplicationsSubmitted = parseIntField(fields["applications_submitted"])
	sess.Counters.ApplicationsSkipped = parseIntField(fields["applications_skipped"])

	if sess.StartedAt, err = time.Parse(time.RFC3339Nano, fields["started_at"]); err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}
	if sess.UpdatedAt, err = time.Parse(time.RFC3339Nano, fields["updated_at"]); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	rawLogs, err := s.client.LRange(ctx, s.logsKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session logs: %w", err)
	}
	sess.Logs = make([]models.SessionLog, 0, len(rawLogs))
	for _, raw := range rawLogs {
		var entry models.SessionLog
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal log entry: %w", err)
		}
		sess.Logs = append(sess.Logs, entry)
	}

	urls, err := s.client.LRange(ctx, s.jobOrderKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read job order: %w", err)
	}
	if len(urls) > 0 {
		rawJobs, err := s.client.HGetAll(ctx, s.jobsKey(sessionID)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read jobs: %w", err)
		}
		sess.Jobs = make([]models.FoundJob, 0, len(urls))
		for _, url := range urls {
			raw, ok := rawJobs[url]
			if !ok {
				continue
			}
			var job models.FoundJob
			if err := json.Unmarshal([]byte(raw), &job); err != nil {
				return nil, fmt.Errorf("failed to unmarshal job: %w", err)
			}
			sess.Jobs = append(sess.Jobs, job)
		}
	} else {
		sess.Jobs = []models.FoundJob{}
	}

	return sess, nil
}

func (s *RedisStore) sessionKey(id string) string  { return fmt.Sprintf(sessionKeyFmt, id) }
func (s *RedisStore) logsKey(id string) string     { return fmt.Sprintf(logsKeyFmt, id) }
func (s *RedisStore) jobsKey(id string) string     { return fmt.Sprintf(jobsKeyFmt, id) }
func (s *RedisStore) jobOrderKey(id string) string { return fmt.Sprintf(jobOrderKeyFmt, id) }
func (s *RedisStore) ownerKey(uid string) string   { return fmt.Sprintf(ownerKeyFmt, uid) }

func parseIntField(raw string) int {
	n, _ := strconv.Atoi(raw)
	return n
}
