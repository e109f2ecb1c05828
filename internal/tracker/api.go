package tracker

import "transport-dispatch-backend/internal/model"

// VehicleFeedResponse models the location feed's vehicle listing.
type VehicleFeedResponse struct {
	Code int `json:"code"`
	Data struct {
		Items []model.VehicleLocation `json:"items"`
	} `json:"data"`
}

// AlertFeedResponse models the location feed's alert listing.
type AlertFeedResponse struct {
	Code int `json:"code"`
	Data struct {
		Items []model.LocationAlert `json:"items"`
	} `json:"data"`
}
