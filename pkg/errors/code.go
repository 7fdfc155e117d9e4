package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Authentication errors
// 12000-12999: Problem catalog errors
// 13000-13999: Submission & Judge errors
// 16000-16999: Permission errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError       ErrorCode = 10100
	RecordNotFound      ErrorCode = 10101
	RecordAlreadyExists ErrorCode = 10102
	TransactionFailed   ErrorCode = 10103

	// Cache errors (10200-10299)
	CacheError     ErrorCode = 10200
	CacheMiss      ErrorCode = 10201
	CacheSetFailed ErrorCode = 10202

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Authentication Errors (11000-11999) ==========

	InvalidCredentials ErrorCode = 11000
	TokenExpired       ErrorCode = 11001
	TokenInvalid       ErrorCode = 11002

	// ========== Problem Catalog Errors (12000-12999) ==========

	// Problem basic (12000-12099)
	ProblemNotFound           ErrorCode = 12000
	ProblemAccessDenied       ErrorCode = 12001
	ProblemCreateFailed       ErrorCode = 12002
	ProblemUpdateFailed       ErrorCode = 12003
	ProblemDeleteFailed       ErrorCode = 12004
	ProblemNotPublished       ErrorCode = 12005
	InvalidStatusTransition   ErrorCode = 12006
	PublishPreconditionFailed ErrorCode = 12007
	InvalidDifficulty         ErrorCode = 12008
	AuthorImmutable           ErrorCode = 12009

	// Test cases (12100-12199)
	TestCaseNotFound     ErrorCode = 12100
	TestCaseCreateFailed ErrorCode = 12101
	TestCaseUpdateFailed ErrorCode = 12102
	TestCaseDeleteFailed ErrorCode = 12103
	TestCaseInvalid      ErrorCode = 12104

	// Tags (12200-12299)
	InvalidTag  ErrorCode = 12200
	TooManyTags ErrorCode = 12201

	// ========== Submission & Judge Errors (13000-13999) ==========

	// Submission (13000-13099)
	SubmissionRejected   ErrorCode = 13000
	CodeTooLarge         ErrorCode = 13001
	CodeValidationFailed ErrorCode = 13002
	ProblemNotJudgeable  ErrorCode = 13003

	// Judge (13100-13199)
	JudgeQueueFull     ErrorCode = 13100
	JudgeSystemError   ErrorCode = 13101
	SandboxUnavailable ErrorCode = 13102

	// ========== Permission Errors (16000-16999) ==========

	PermissionDenied       ErrorCode = 16000
	InsufficientPermission ErrorCode = 16001
	InvalidRole            ErrorCode = 16002
)

// errorMessages maps error codes to their default messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized",
	Forbidden:           "Forbidden",
	TooManyRequests:     "Too many requests",
	ServiceUnavailable:  "Service unavailable",
	Timeout:             "Request timeout",

	// Database
	DatabaseError:       "Database error",
	RecordNotFound:      "Record not found",
	RecordAlreadyExists: "Record already exists",
	TransactionFailed:   "Transaction failed",

	// Cache
	CacheError:     "Cache error",
	CacheMiss:      "Cache miss",
	CacheSetFailed: "Failed to set cache",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	// Authentication
	InvalidCredentials: "Invalid credentials",
	TokenExpired:       "Token has expired",
	TokenInvalid:       "Token is invalid",

	// Problem
	ProblemNotFound:           "Problem not found",
	ProblemAccessDenied:       "Access to this problem is denied",
	ProblemCreateFailed:       "Failed to create problem",
	ProblemUpdateFailed:       "Failed to update problem",
	ProblemDeleteFailed:       "Failed to delete problem",
	ProblemNotPublished:       "Problem is not published",
	InvalidStatusTransition:   "Invalid problem status transition",
	PublishPreconditionFailed: "Problem does not meet publish requirements",
	InvalidDifficulty:         "Difficulty must be between 0.5 and 5.0 in half-point steps",
	AuthorImmutable:           "Problem author cannot be changed",

	// Test cases
	TestCaseNotFound:     "Test case not found",
	TestCaseCreateFailed: "Failed to create test case",
	TestCaseUpdateFailed: "Failed to update test case",
	TestCaseDeleteFailed: "Failed to delete test case",
	TestCaseInvalid:      "Test case is invalid",

	// Tags
	InvalidTag:  "Invalid tag",
	TooManyTags: "Too many tags",

	// Submission
	SubmissionRejected:   "Submission rejected",
	CodeTooLarge:         "Code is too large",
	CodeValidationFailed: "Code failed validation",
	ProblemNotJudgeable:  "Problem cannot accept submissions",

	// Judge
	JudgeQueueFull:     "Judge queue is full, please try again later",
	JudgeSystemError:   "Judge system error",
	SandboxUnavailable: "Cannot connect to the execution sandbox",

	// Permission
	PermissionDenied:       "Permission denied",
	InsufficientPermission: "Insufficient permission",
	InvalidRole:            "Invalid role",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c >= 11000 && c < 12000: // Authentication errors
		return 401
	case c == Unauthorized:
		return 401
	case c == Forbidden, c == ProblemAccessDenied, c >= 16000 && c < 16100:
		return 403
	case c == NotFound, c == RecordNotFound, c == ProblemNotFound, c == TestCaseNotFound:
		return 404
	case c == TooManyRequests, c == JudgeQueueFull:
		return 429
	case c == ServiceUnavailable, c == SandboxUnavailable:
		return 503
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams, c == InvalidStatusTransition, c == PublishPreconditionFailed,
		c == InvalidDifficulty, c == AuthorImmutable, c == TestCaseInvalid,
		c == InvalidTag, c == TooManyTags, c == CodeTooLarge, c == CodeValidationFailed:
		return 400
	case c == ProblemNotJudgeable, c == ProblemNotPublished:
		return 409
	default:
		return 500
	}
}
