// Package events publishes notifications about calls waiting on a resource
// that is still deploying.
package events

// DeployingEvent is emitted each time a call is rescheduled because its
// target resource is still deploying.
type DeployingEvent struct {
	UserID      string `json:"userId"`
	AppID       string `json:"appId"`
	ResourceID  string `json:"resourceId"`
	Operation   string `json:"operation"`
	Attempt     int    `json:"attempt"`
	DelayMs     int64  `json:"delayMs"`
	ElapsedMs   int64  `json:"elapsedMs"`
	StatusCode  int    `json:"statusCode"`
	Description string `json:"description,omitempty"`
	Timestamp   string `json:"timestamp"`
}
