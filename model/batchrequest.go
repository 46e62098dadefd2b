package model

// BatchRequest is one deferred write sent as part of a batch.
type BatchRequest struct {
	URL         string `json:"url"`
	RequestType string `json:"requestType"`
	Body        string `json:"body"`
}

// BatchPayload is the body of a batch request.
type BatchPayload struct {
	Requests []BatchRequest `json:"requests"`
}
