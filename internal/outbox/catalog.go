package outbox

import (
	"fmt"

	"example.com/shareactivities/internal/events"
)

// Route describes where an event type is published and how its payload is registered.
type Route struct {
	Topic         string
	SchemaSubject string
	Schema        string
}

var catalog = map[string]Route{
	events.TypeActivityCreated: {
		Topic:         "activity_events",
		SchemaSubject: "activity_events-value",
		Schema:        activityCreatedSchema,
	},
	events.TypeActivityStatusChanged: {
		Topic:         "activity_status_changed",
		SchemaSubject: "activity_status_changed-value",
		Schema:        activityStatusChangedSchema,
	},
}

// RouteFor returns the route of eventType.
func RouteFor(eventType string) (Route, error) {
	route, ok := catalog[eventType]
	if !ok {
		return Route{}, fmt.Errorf("no schema metadata for event_type=%s", eventType)
	}
	return route, nil
}

// Topics lists every topic the dispatcher may publish to.
func Topics() []string {
	out := make([]string, 0, len(catalog))
	for _, route := range catalog {
		out = append(out, route.Topic)
	}
	return out
}
