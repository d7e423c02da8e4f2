package dto

import (
	"time"

	"github.com/aroosi/aroosi-api/internal/model"
)

// ProfileRequest is the body of POST /profile.
type ProfileRequest struct {
	FullName          string                `json:"fullName"`
	Gender            model.Gender          `json:"gender"`
	PreferredGender   model.PreferredGender `json:"preferredGender"`
	DateOfBirth       Date                  `json:"dateOfBirth"`
	City              string                `json:"city"`
	Country           string                `json:"country"`
	Religion          string                `json:"religion"`
	MotherTongue      string                `json:"motherTongue"`
	Languages         []string              `json:"languages"`
	Education         string                `json:"education"`
	Occupation        string                `json:"occupation"`
	HeightCm          *int                  `json:"heightCm"`
	MaritalStatus     model.MaritalStatus   `json:"maritalStatus"`
	AboutMe           string                `json:"aboutMe"`
	PhoneNumber       string                `json:"phoneNumber"`
	Images            []string              `json:"images"`
	PartnerAgeMin     *int                  `json:"partnerAgeMin"`
	PartnerAgeMax     *int                  `json:"partnerAgeMax"`
	HideFromFreeUsers bool                  `json:"hideFromFreeUsers"`
}

// ProfileUpdateRequest is the body of PATCH /profile. Absent fields are unchanged;
// the NullableInt fields also accept null to clear the value.
type ProfileUpdateRequest struct {
	FullName          *string                `json:"fullName"`
	Gender            *model.Gender          `json:"gender"`
	PreferredGender   *model.PreferredGender `json:"preferredGender"`
	DateOfBirth       *Date                  `json:"dateOfBirth"`
	City              *string                `json:"city"`
	Country           *string                `json:"country"`
	Religion          *string                `json:"religion"`
	MotherTongue      *string                `json:"motherTongue"`
	Languages         *[]string              `json:"languages"`
	Education         *string                `json:"education"`
	Occupation        *string                `json:"occupation"`
	HeightCm          NullableInt            `json:"heightCm"`
	MaritalStatus     *model.MaritalStatus   `json:"maritalStatus"`
	AboutMe           *string                `json:"aboutMe"`
	PhoneNumber       *string                `json:"phoneNumber"`
	Images            *[]string              `json:"images"`
	PartnerAgeMin     NullableInt            `json:"partnerAgeMin"`
	PartnerAgeMax     NullableInt            `json:"partnerAgeMax"`
	HideFromFreeUsers *bool                  `json:"hideFromFreeUsers"`
}

// ProfileResponse is a full profile with derived fields.
type ProfileResponse struct {
	*model.Profile
	Age        int  `json:"age"`
	IsComplete bool `json:"isComplete"`
	IsBoosted  bool `json:"isBoosted"`
}

// ToProfileResponse decorates p with values computed at now.
func ToProfileResponse(p *model.Profile, now time.Time) *ProfileResponse {
	return &ProfileResponse{
		Profile:    p,
		Age:        p.Age(now),
		IsComplete: p.IsComplete(),
		IsBoosted:  p.IsBoosted(now),
	}
}

// BoostResponse reports an applied boost.
type BoostResponse struct {
	BoostedUntil    time.Time `json:"boostedUntil"`
	RemainingBoosts int       `json:"remainingBoosts"`
	Unlimited       bool      `json:"unlimited"`
}
