package models

type DescribeServiceRequest struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Location string `json:"location"`
}

type ServiceSuggestion struct {
	ServiceID string `json:"serviceId"`
	Title     string `json:"title"`
	Reason    string `json:"reason"`
}

// PromptServiceInfo is the compact view of a service handed to the LLM.
type PromptServiceInfo struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Category string  `json:"category"`
	Location string  `json:"location"`
	Price    float64 `json:"price"`
	Rating   float64 `json:"rating"`
}
