package models

// NetworkSchema is the JSON Schema every network definition must satisfy
const NetworkSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "tanks", "valves", "rules"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "name": {"type": "string"},
    "description": {"type": "string"},
    "rate": {"type": "number", "exclusiveMinimum": 0},
    "pumpStep": {"type": "number"},
    "pumpPipe": {"type": "string"},
    "tanks": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "capacity"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string"},
          "capacity": {"type": "number", "exclusiveMinimum": 0},
          "initial": {"type": "number", "minimum": 0}
        },
        "additionalProperties": false
      }
    },
    "valves": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string"},
          "open": {"type": "boolean"}
        },
        "additionalProperties": false
      }
    },
    "rules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "source", "target", "valve", "direction"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "source": {"type": "string", "minLength": 1},
          "target": {"type": "string", "minLength": 1},
          "valve": {"type": "string", "minLength": 1},
          "direction": {"enum": ["FORWARD", "RETURN"]}
        },
        "additionalProperties": false
      }
    },
    "pipes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "rules"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string"},
          "rules": {"type": "array", "items": {"type": "string"}},
          "waypoints": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["x", "y"],
              "properties": {"x": {"type": "number"}, "y": {"type": "number"}}
            }
          }
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`
