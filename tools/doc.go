// Package tools defines the ITool interface and the Registry that maps tool
// names to implementations. Arguments are decoded strictly and validated
// before a tool runs, so a call with bad arguments never has side effects.
package tools
