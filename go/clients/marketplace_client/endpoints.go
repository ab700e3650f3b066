package marketplace_client

const (
	// Headers
	AuthHeader      = "Authorization"
	JsonHeader      = "Accept"
	JsonContentType = "application/json"
	RequestIDHeader = "X-Request-ID"

	// Paths
	auctionPath = "/auctions/%s"
	orderPath   = "/orders/%s"
	orderAction = "/orders/%s/%s"
)

// Order action path segments.
const (
	segmentAccept        = "accept"
	segmentCounter       = "counter"
	segmentAcceptCounter = "accept-counter"
	segmentReject        = "reject"
	segmentCancel        = "cancel"
	segmentFulfill       = "fulfill"
	segmentComplete      = "complete"
	segmentArchive       = "archive"
)
