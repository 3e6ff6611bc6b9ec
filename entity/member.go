package entity

import "time"

// Member is the directory record produced by an approved registration.
// Exactly one member exists per approved registration.
type Member struct {
	Id              string       `json:"id" bson:"id"`
	Name            string       `json:"name" bson:"name"`
	Email           string       `json:"email,omitempty" bson:"email,omitempty"`
	Phone           string       `json:"phone,omitempty" bson:"phone,omitempty"`
	NormalizedEmail string       `json:"-" bson:"normalized_email,omitempty"`
	NormalizedPhone string       `json:"-" bson:"normalized_phone,omitempty"`
	BirthDate       string       `json:"birth_date,omitempty" bson:"birth_date,omitempty"`
	Gender          string       `json:"gender,omitempty" bson:"gender,omitempty"`
	Address         *Address     `json:"address,omitempty" bson:"address,omitempty"`
	MemberStatus    MemberStatus `json:"member_status" bson:"member_status"`
	RegistrationId  string       `json:"registration_id" bson:"registration_id"`
	ApprovedBy      string       `json:"approved_by" bson:"approved_by"`
	JoinedAt        time.Time    `json:"joined_at" bson:"joined_at"`
}
