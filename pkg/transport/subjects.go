package transport

import (
	"github.com/morezero/inference-client/pkg/ref"
)

// DefaultSubjectPrefix roots every inference subject.
const DefaultSubjectPrefix = "inference"

// Subject builds the COMMS subject for op on a resource.
func Subject(prefix string, op Operation, app UserAppID, resourceID string) string {
	r := ref.Ref{UserID: app.UserID, AppID: app.AppID, ResourceID: resourceID}
	return r.Subject(prefix, string(op))
}

// RequestSubject returns the subject a Request is sent on.
func RequestSubject(prefix string, req *Request) string {
	return Subject(prefix, req.Operation, req.UserAppID, req.ResourceID)
}

// DescribeSubject returns the subject a DescribeRequest is sent on.
func DescribeSubject(prefix string, req *DescribeRequest) string {
	return Subject(prefix, OpDescribe, req.UserAppID, req.ResourceID)
}

// OperationWildcard matches op on every resource.
func OperationWildcard(prefix string, op Operation) string {
	return prefix + "." + string(op) + ".>"
}
