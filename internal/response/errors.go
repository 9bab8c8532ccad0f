package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrLearnerAccessOnly ErrCode = "LEARNER_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"
	ErrNotAttemptOwner   ErrCode = "NOT_ATTEMPT_OWNER"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidPart    ErrCode = "INVALID_PART"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrTestNotFound    ErrCode = "TEST_NOT_FOUND"
	ErrAttemptNotFound ErrCode = "ATTEMPT_NOT_FOUND"
	ErrResultNotFound  ErrCode = "RESULT_NOT_FOUND"

	// ─── Attempt-specific ──────────────────────────────────────────────
	ErrNoQuestions         ErrCode = "NO_QUESTIONS"
	ErrAttemptClosed       ErrCode = "ATTEMPT_CLOSED"
	ErrAttemptSubmitted    ErrCode = "ATTEMPT_SUBMITTED"
	ErrSubmitInProgress    ErrCode = "SUBMIT_IN_PROGRESS"
	ErrListeningLocked     ErrCode = "LISTENING_LOCKED"
	ErrWrongMode           ErrCode = "WRONG_ATTEMPT_MODE"
	ErrTooManyAttempts     ErrCode = "TOO_MANY_LIVE_ATTEMPTS"
	ErrSubmissionFailed    ErrCode = "SUBMISSION_FAILED"
	ErrTestContentNotReady ErrCode = "TEST_CONTENT_NOT_READY"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrLearnerAccessOnly:
		return "This resource is restricted to learners."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."
	case ErrNotAttemptOwner:
		return "This attempt belongs to another learner."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrInvalidPart:
		return "Part number must be between 1 and 7."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrTestNotFound:
		return "Test not found."
	case ErrAttemptNotFound:
		return "Attempt not found or already expired."
	case ErrResultNotFound:
		return "Result not found."

	// ─── Attempt-specific ──────────────────────────────────────────────
	case ErrNoQuestions:
		return "This test has no questions."
	case ErrAttemptClosed:
		return "This attempt has been closed."
	case ErrAttemptSubmitted:
		return "This attempt has already been submitted."
	case ErrSubmitInProgress:
		return "A submission for this attempt is already in progress."
	case ErrListeningLocked:
		return "Navigation is locked during the listening section."
	case ErrWrongMode:
		return "This action is not available in the attempt's mode."
	case ErrTooManyAttempts:
		return "The server is at capacity. Please try again shortly."
	case ErrSubmissionFailed:
		return "Your answers could not be submitted. Please try again."
	case ErrTestContentNotReady:
		return "The test content could not be loaded."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
