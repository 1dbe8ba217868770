package entity

// DashboardOrder is a row of the admin dashboard's recent orders.
type DashboardOrder struct {
	ID         string  `json:"id"`
	User       string  `json:"user"`
	Amount     float64 `json:"amount"`
	ItemsCount int     `json:"items_count"`
	Status     string  `json:"status"`
	Date       string  `json:"date"`
}

// ProductSales is a row of the admin dashboard's top products.
type ProductSales struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Sales    int     `json:"sales"`
	ImageRef string  `json:"image_url,omitempty"`
}

// DashboardStats is the admin overview.
type DashboardStats struct {
	TotalRevenue  float64          `json:"totalRevenue"`
	RevenueChange float64          `json:"revenueChange"`
	Orders        int              `json:"orders"`
	OrdersChange  float64          `json:"ordersChange"`
	Products      int              `json:"products"`
	ActiveUsers   int              `json:"activeUsers"`
	UsersChange   float64          `json:"usersChange"`
	RecentOrders  []DashboardOrder `json:"recentOrders"`
	TopProducts   []ProductSales   `json:"topProducts"`
}
