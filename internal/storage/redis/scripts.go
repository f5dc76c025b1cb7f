package redis

const (
	// upsertSessionScript atomically writes a session audit row and its indexes
	upsertSessionScript = `
local session_key = KEYS[1]     -- wellcore:session:{id}
local active_set = KEYS[2]      -- wellcore:sessions:active
local active_key = KEYS[3]      -- wellcore:sessions:active:user:{userID}
local user_index = KEYS[4]      -- wellcore:sessions:user:{userID}

local id = ARGV[1]
local active = ARGV[10]

redis.call('HSET', session_key,
  'id', id,
  'user_id', ARGV[2],
  'personality', ARGV[3],
  'provider_url', ARGV[4],
  'started_at', ARGV[5],
  'ended_at', ARGV[6],
  'ceiling_seconds', ARGV[7],
  'duration_seconds', ARGV[8],
  'end_reason', ARGV[9],
  'active', active
)

redis.call('ZADD', user_index, ARGV[11], id)

if active == '1' then
  redis.call('SADD', active_set, id)
  redis.call('SET', active_key, id)
  redis.call('PERSIST', session_key)
else
  redis.call('SREM', active_set, id)
  if redis.call('GET', active_key) == id then
    redis.call('DEL', active_key)
  end
  redis.call('EXPIRE', session_key, ARGV[12])
end

return 'OK'
`

	// insertNotificationScript upserts a notification, keeping delivery flags
	// and creation time of an existing row so retried writes are harmless
	insertNotificationScript = `
local notification_key = KEYS[1]  -- wellcore:notification:{id}
local task_set = KEYS[2]          -- wellcore:notifications:task:{userID}:{taskID}
local user_index = KEYS[3]        -- wellcore:notifications:user:{userID}
local pending = KEYS[4]           -- wellcore:notifications:pending

local id = ARGV[1]
local score = ARGV[9]

local sent = redis.call('HGET', notification_key, 'sent')
if not sent then sent = '0' end
local email_sent = redis.call('HGET', notification_key, 'email_sent')
if not email_sent then email_sent = '0' end
local created_at = redis.call('HGET', notification_key, 'created_at')
if not created_at then created_at = ARGV[8] end

redis.call('HSET', notification_key,
  'id', id,
  'task_id', ARGV[2],
  'user_id', ARGV[3],
  'kind', ARGV[4],
  'title', ARGV[5],
  'body', ARGV[6],
  'scheduled_for', ARGV[7],
  'created_at', created_at,
  'sent', sent,
  'email_sent', email_sent
)

redis.call('SADD', task_set, id)
redis.call('ZADD', user_index, score, id)

if sent == '0' then
  redis.call('ZADD', pending, score, id)
else
  redis.call('ZREM', pending, id)
end

return 'OK'
`

	// deleteUnsentScript removes every unsent notification of a task and
	// returns the removed ids; sent rows stay as history. Ids whose row
	// already expired are pruned from the indexes but not reported.
	deleteUnsentScript = `
local task_set = KEYS[1]     -- wellcore:notifications:task:{userID}:{taskID}
local user_index = KEYS[2]   -- wellcore:notifications:user:{userID}
local pending = KEYS[3]      -- wellcore:notifications:pending

local prefix = ARGV[1]
local deleted = {}

for _, id in ipairs(redis.call('SMEMBERS', task_set)) do
  local key = prefix .. id
  if redis.call('EXISTS', key) == 0 then
    redis.call('SREM', task_set, id)
    redis.call('ZREM', user_index, id)
    redis.call('ZREM', pending, id)
  elseif redis.call('HGET', key, 'sent') ~= '1' then
    redis.call('DEL', key)
    redis.call('SREM', task_set, id)
    redis.call('ZREM', user_index, id)
    redis.call('ZREM', pending, id)
    table.insert(deleted, id)
  end
end

return deleted
`

	// markSentScript flips delivery flags and drops the row from the pending index
	markSentScript = `
local notification_key = KEYS[1]  -- wellcore:notification:{id}
local pending = KEYS[2]           -- wellcore:notifications:pending

if redis.call('EXISTS', notification_key) == 0 then
  return 0
end

redis.call('HSET', notification_key, 'sent', '1')
if ARGV[2] == '1' then
  redis.call('HSET', notification_key, 'email_sent', '1')
end
redis.call('ZREM', pending, ARGV[1])
redis.call('EXPIRE', notification_key, ARGV[3])

return 1
`

	// insertReportScript writes a report only if the session has none yet
	insertReportScript = `
local report_key = KEYS[1]   -- wellcore:report:{sessionID}
local user_index = KEYS[2]   -- wellcore:reports:user:{userID}

if redis.call('EXISTS', report_key) == 1 then
  return 0
end

redis.call('HSET', report_key,
  'session_id', ARGV[1],
  'user_id', ARGV[2],
  'created_at', ARGV[3],
  'data', ARGV[4]
)
redis.call('ZADD', user_index, ARGV[5], ARGV[1])

return 1
`
)
