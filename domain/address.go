package domain

// ShippingAddress is the selected delivery address. Country holds a 2-letter code once normalized.
type ShippingAddress struct {
	Street      string `json:"street"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postal_code"`
	Country     string `json:"country"`
	PhoneNumber string `json:"phone_number"`
}
