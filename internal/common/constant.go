package common

// Cookie names used to carry session tokens between the HTTP transport
// and browsers.
const (
	AccessTokenCookieName  = "accessToken"
	RefreshTokenCookieName = "refreshToken"
)

// RequestIDHeaderName is echoed on every response by the request logging
// middleware.
const RequestIDHeaderName = "X-Request-ID"
