package dto

// BoardQuery optionally jumps the board focus before the view is read. All
// three parameters are day-precision, YYYY-MM-DD.
type BoardQuery struct {
	Date string `form:"date"`
	From string `form:"from"`
	To   string `form:"to"`
}

// VirtualizationQuery asks which resource rows intersect a viewport.
type VirtualizationQuery struct {
	ScrollTop  float64 `form:"scroll_top"`
	ViewHeight float64 `form:"view_height" binding:"required,gt=0"`
}

// ResourceStripe is one resource row's vertical extent on the board.
type ResourceStripe struct {
	ResourceID string  `json:"resource_id"`
	Top        float64 `json:"top"`
	Bottom     float64 `json:"bottom"`
}

// VirtualizationResponse names the index range worth rendering plus the full
// offset table so the client can translate rows without another round trip.
type VirtualizationResponse struct {
	First       int              `json:"first"`
	Last        int              `json:"last"`
	TotalHeight float64          `json:"total_height"`
	Stripes     []ResourceStripe `json:"stripes"`
}

// PoolReorderRequest moves a pool item to a new position.
type PoolReorderRequest struct {
	ToIndex int `json:"to_index" binding:"gte=0"`
}
