// Package realtime pushes change events to WebSocket observers.
//
// A client first obtains a single-use admission token and then opens
// /ws?token=<token>. Each admitted connection subscribes to the event bus for
// its lifetime and receives every event in publish order. A connection whose
// queue fills up or whose write fails is closed without affecting the others.
package realtime
