package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden           ErrCode = "FORBIDDEN"
	ErrCandidateAccessOnly ErrCode = "CANDIDATE_ACCESS_ONLY"
	ErrRecruiterAccessOnly ErrCode = "RECRUITER_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation ErrCode = "VALIDATION_ERROR"
	ErrInvalidID  ErrCode = "INVALID_ID"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Assessment-specific ───────────────────────────────────────────
	ErrAssessmentNotAvailable ErrCode = "ASSESSMENT_NOT_AVAILABLE"
	ErrInvalidAccessCode      ErrCode = "INVALID_ACCESS_CODE"
	ErrNoQuestions            ErrCode = "NO_QUESTIONS"
	ErrSessionFinished        ErrCode = "SESSION_FINISHED"
	ErrInvalidTurn            ErrCode = "INVALID_TURN"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid or expired."
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrCandidateAccessOnly:
		return "This resource is restricted to candidates."
	case ErrRecruiterAccessOnly:
		return "This resource is restricted to recruiters."
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The ID format is invalid."
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "The resource already exists."
	case ErrAssessmentNotAvailable:
		return "This assessment is not currently available."
	case ErrInvalidAccessCode:
		return "The assessment access code is invalid."
	case ErrNoQuestions:
		return "This assessment has no questions."
	case ErrSessionFinished:
		return "This assessment session has already finished."
	case ErrInvalidTurn:
		return "A response is not expected right now."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
