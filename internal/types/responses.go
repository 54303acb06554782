package types

// ------------------------------
// Response Types
// ------------------------------

// PageResponse wraps the notifications page endpoint response.
type PageResponse struct {
	Notifications []NotificationRow `json:"notifications"`
	Count         int               `json:"count"`
}

// ActorProfileResponse wraps the actor lookup endpoint response. Profile is
// nil when the actor no longer exists.
type ActorProfileResponse struct {
	Profile *ActorProfile `json:"profile"`
}

// OpportunityCountResponse wraps the unseen-opportunities count endpoint.
type OpportunityCountResponse struct {
	Count int `json:"count"`
}
