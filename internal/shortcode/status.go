package shortcode

// Per-part status codes reported by the provider. Zero is success; every
// positive value is a distinct failure.
const (
	StatusSuccess                 = 0
	StatusThrottled               = 1
	StatusMissingParams           = 2
	StatusInvalidParams           = 3
	StatusInvalidCredentials      = 4
	StatusInternalError           = 5
	StatusInvalidMessage          = 6
	StatusNumberBarred            = 7
	StatusPartnerAccountBarred    = 8
	StatusPartnerQuotaExceeded    = 9
	StatusAccountNotEnabled       = 11
	StatusMessageTooLong          = 12
	StatusCommunicationFailed     = 13
	StatusInvalidSignature        = 14
	StatusInvalidSenderAddress    = 15
	StatusFacilityNotAllowed      = 19
	StatusNonWhitelistedRecipient = 29
	StatusInvalidMSISDN           = 34
)

var statusText = map[int]string{
	StatusSuccess:                 "success",
	StatusThrottled:               "throttled",
	StatusMissingParams:           "missing parameters",
	StatusInvalidParams:           "invalid parameters",
	StatusInvalidCredentials:      "invalid credentials",
	StatusInternalError:           "internal error",
	StatusInvalidMessage:          "invalid message",
	StatusNumberBarred:            "number barred",
	StatusPartnerAccountBarred:    "partner account barred",
	StatusPartnerQuotaExceeded:    "partner quota exceeded",
	StatusAccountNotEnabled:       "account not enabled for REST",
	StatusMessageTooLong:          "message too long",
	StatusCommunicationFailed:     "communication failed",
	StatusInvalidSignature:        "invalid signature",
	StatusInvalidSenderAddress:    "invalid sender address",
	StatusFacilityNotAllowed:      "facility not allowed",
	StatusNonWhitelistedRecipient: "non-whitelisted destination",
	StatusInvalidMSISDN:           "invalid or missing msisdn",
}

// StatusText returns a short description for a provider status code, or an
// empty string when the code is unknown.
func StatusText(code int) string {
	return statusText[code]
}
