package models

// Lawyer is the provider profile a booking is made against. The fee here is
// copied onto the draft at creation time and used verbatim at confirmation.
type Lawyer struct {
	ID              string `json:"id"`
	UserID          string `json:"user_id"`
	Name            string `json:"name"`
	ConsultationFee int64  `json:"consultation_fee"` // whole currency units
	Verified        bool   `json:"verified"`
}
