package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"
	// CodeInvalidArgument represents malformed caller input.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// Activity errors
	CodeActivityNotFound        Code = "ACTIVITY_NOT_FOUND"
	CodeActivityTitleEmpty      Code = "ACTIVITY_TITLE_EMPTY"
	CodeActivityOwnerEmpty      Code = "ACTIVITY_OWNER_EMPTY"
	CodeActivityCapacityInvalid Code = "ACTIVITY_CAPACITY_INVALID"

	// Admission errors
	CodeAlreadyMember       Code = "ALREADY_MEMBER"
	CodeActivityFull        Code = "ACTIVITY_FULL"
	CodeBelowActiveCount    Code = "BELOW_ACTIVE_COUNT"
	CodePaymentMissing      Code = "PAYMENT_MISSING"
	CodeParticipantNotFound Code = "PARTICIPANT_NOT_FOUND"

	// Authorization errors
	CodeForbidden Code = "FORBIDDEN"

	// Storage errors
	CodeUnavailable Code = "UNAVAILABLE"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeInvalidArgument,
		CodeActivityTitleEmpty,
		CodeActivityOwnerEmpty,
		CodeActivityCapacityInvalid:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeActivityFull,
		CodeBelowActiveCount,
		CodePaymentMissing:
		return codes.FailedPrecondition

	// AlreadyExists - uniqueness violations
	case CodeAlreadyMember:
		return codes.AlreadyExists

	// PermissionDenied - authorization failures
	case CodeForbidden:
		return codes.PermissionDenied

	// NotFound - resource doesn't exist
	case CodeActivityNotFound,
		CodeParticipantNotFound:
		return codes.NotFound

	// Unavailable - transient storage exhaustion
	case CodeUnavailable:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}
