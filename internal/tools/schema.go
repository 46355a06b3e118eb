package tools

import "encoding/json"

var createExitSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "origin": {"type": "string", "description": "The platform or system being exited"},
    "exitType": {
      "type": "string",
      "enum": ["voluntary", "forced", "emergency", "keyCompromise"],
      "description": "Type of exit (default: voluntary)"
    },
    "reason": {"type": "string", "description": "Reason for the exit"},
    "emergencyJustification": {"type": "string", "description": "Required when exitType is emergency"}
  },
  "required": ["origin"]
}`)

var arrivalSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "exitMarkerJson": {"type": "string", "description": "JSON string of the EXIT marker to verify and admit"},
    "destination": {"type": "string", "description": "The platform or system where the agent is arriving"}
  },
  "required": ["exitMarkerJson", "destination"]
}`)

var admissionSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "exitMarkerJson": {"type": "string", "description": "JSON string of the EXIT marker to evaluate"},
    "policy": {
      "type": "string",
      "enum": ["OPEN_DOOR", "STRICT", "EMERGENCY_ONLY"],
      "description": "Admission policy preset to evaluate against"
    }
  },
  "required": ["exitMarkerJson", "policy"]
}`)

var transferSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "exitMarkerJson": {"type": "string", "description": "JSON string of the EXIT marker"},
    "arrivalMarkerJson": {"type": "string", "description": "JSON string of the ARRIVAL marker"}
  },
  "required": ["exitMarkerJson", "arrivalMarkerJson"]
}`)
