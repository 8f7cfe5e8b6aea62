package common

import "time"

// TokenSize is the length in bytes of the opaque bearer token stored in users.token.
const TokenSize = 32

// DefaultTokenValidity is how long an issued token stays valid.
const DefaultTokenValidity = 14 * 24 * time.Hour

// EmailHeaderName carries the account email next to the bearer token on HTTP requests.
const EmailHeaderName = "X-User-Email"
