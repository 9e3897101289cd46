package api

const transferSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["source_account_id", "target_account_id", "amount"],
  "properties": {
    "source_account_id": {"type": "integer", "minimum": 1},
    "target_account_id": {"type": "integer", "minimum": 1},
    "amount": {"type": "integer", "exclusiveMinimum": 0}
  }
}`
