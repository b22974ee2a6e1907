// Package warden enforces the weekly open-hours schedule on the managed
// chat. It polls the schedule, transitions the chat between open and
// closed, warns members before a forced closure and evicts them at
// transition boundaries.
package warden
