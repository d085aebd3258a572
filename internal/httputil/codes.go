package httputil

// Machine-readable error codes returned alongside error messages so
// clients can branch without parsing human-readable text.
const (
	CodeInvalidRequestBody = "invalid_request_body"
	CodeValidationFailed   = "validation_failed"
	CodeInvalidCredentials = "invalid_credentials"
	CodeEmailAlreadyExists = "email_already_exists"
	CodeUnknownProvider    = "unknown_provider"
	CodeExternalLoginState = "external_login_state_missing"
	CodeEmailClaimMissing  = "email_claim_missing"
	CodeExternalLoginTaken = "external_login_taken"
	CodeInvalidResetToken  = "invalid_reset_token"
	CodeInvalidRequest     = "invalid_request"
	CodeMissingAuth        = "missing_authentication"
	CodeInvalidAuthHeader  = "invalid_authorization_header"
	CodeInvalidToken       = "invalid_token"
	CodeTokenExpired       = "token_expired"
	CodeTokenRevoked       = "token_revoked"
	CodeNotFound           = "not_found"
	CodeConflict           = "conflict"
	CodeTooManyRequests    = "too_many_requests"
	CodeCooldownActive     = "cooldown_active"
	CodeInternalError      = "internal_error"
)
