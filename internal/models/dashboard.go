package models

// UserBreakdown splits user totals by role. Only exposed to admin-scope
// dashboard requests.
type UserBreakdown struct {
	Total   int64 `json:"total"`
	Admins  int64 `json:"admins"`
	Regular int64 `json:"regular"`
}

// Contributor is one entry of the admin dashboard's top owners ranking.
type Contributor struct {
	Username   string `bson:"username" json:"username"`
	Email      string `bson:"email" json:"email"`
	HotelCount int64  `bson:"hotel_count" json:"hotels_count"`
}

// DashboardStats is the aggregator payload. Users and TopContributors are
// nil outside admin scope.
type DashboardStats struct {
	Users           *UserBreakdown `json:"users,omitempty"`
	Hotels          HotelStats     `json:"hotels"`
	MyHotels        int64          `json:"my_hotels"`
	Messages        MessageStats   `json:"messages"`
	TopContributors []Contributor  `json:"top_contributors,omitempty"`
}
