package params

import "time"

const (
	ServerBodyLimit               = 1048576 // 1 MiB
	ServerIdleTimeout             = 30 * time.Second
	ServerReadTimeout             = 10 * time.Second
	ServerWriteTimeout            = 30 * time.Second
	ChallengeKeyPrefix            = "c:"
	UserStateKeyPrefix            = "u:"
	EnrollmentKeyPrefix           = "e:"
	GrantKeyPrefix                = "g:"
	NotifyQueueKey                = "q:notifications"
	TwoFactorChallengeMaxAttempts = 5                // maximum number of verification attempts allowed per OTP challenge
	TwoFactorMaxFailCount         = 15               // maximum total failed verification attempts per user; resets on successful verification
	TwoFactorMaxOTPRequests       = 20               // maximum number of OTP code requests allowed per user; reset with user state
	TwoFactorOTPExpiration        = 5 * time.Minute  // otp code expiration duration
	TwoFactorOTPRefreshCooldown   = 1 * time.Minute  // otp code refresh cooldown
	TwoFactorStateMaxAge          = 24 * time.Hour   // time to live for user state
	TwoFactorSessionTokenTTL      = 15 * time.Minute // validity of the token issued after a successful 2FA verification
	TwoFactorEnrollmentTTL        = 10 * time.Minute // time to confirm a TOTP setup
	TOTPPeriod                    = 30               // seconds per TOTP step
	TOTPSkew                      = 1                // accepted steps before and after the current one
	TOTPBackupCodeCount           = 10
	PinMaxAttempts                = 5
	PinLockoutDuration            = 15 * time.Minute
	PinMinLength                  = 4
	PinMaxLength                  = 8
	VerifyLinkMaxAge              = 365 * 24 * time.Hour // default lifetime of a public verification link
	VerifyLinkFutureSkew          = 5 * time.Minute      // tolerated clock drift for link timestamps in the future
	NotifyWorkers                 = 2
	NotifyMaxRetries              = 5
	NotifyRetryDelay              = 10 * time.Second
	NotifyDequeueTimeout          = 5 * time.Second
	BatchSignMaxItems             = 200
	HealthCheckServerAddr         = ":3001" // health check server address
)

const (
	ActionSignAttestation = "SIGN_ATTESTATION"
)
