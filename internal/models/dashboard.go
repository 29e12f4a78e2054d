package models

type ProviderDashboard struct {
	TotalServices    int64            `json:"totalServices"`
	ActiveServices   int64            `json:"activeServices"`
	BookingsByStatus map[string]int64 `json:"bookingsByStatus"`
	TotalBookings    int64            `json:"totalBookings"`
	Revenue          float64          `json:"revenue"`
	AverageRating    float64          `json:"averageRating"`
	ReviewCount      int64            `json:"reviewCount"`
}
