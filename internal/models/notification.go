package models

// Notification - сообщение оператору
type Notification struct {
	ProductID string `json:"product_id,omitempty"`
	Message   string `json:"message"`
	Urgent    bool   `json:"urgent"`
}
