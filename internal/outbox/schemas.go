package outbox

const activityCreatedSchema = `{
  "type": "object",
  "title": "ActivityCreated",
  "properties": {
    "activity_id": {"type": "string"},
    "name": {"type": "string"},
    "owner_id": {"type": "string"},
    "family_id": {"type": "string"},
    "status": {"type": "string", "enum": ["pending", "in_progress", "done"]},
    "created_at": {"type": "string", "format": "date-time"},
    "expires_at": {"type": "string", "format": "date-time"},
    "recur_on": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "name", "owner_id", "status", "created_at"],
  "additionalProperties": false
}`

const activityStatusChangedSchema = `{
  "type": "object",
  "title": "ActivityStatusChanged",
  "properties": {
    "activity_id": {"type": "string"},
    "name": {"type": "string"},
    "owner_id": {"type": "string"},
    "family_id": {"type": "string"},
    "previous_status": {"type": "string", "enum": ["pending", "in_progress", "done"]},
    "status": {"type": "string", "enum": ["pending", "in_progress", "done"]},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "name", "owner_id", "previous_status", "status", "occurred_at"],
  "additionalProperties": false
}`
