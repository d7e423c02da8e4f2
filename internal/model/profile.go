package model

import "time"

// Gender of a profile owner.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// IsValid checks if the gender is known.
func (g Gender) IsValid() bool {
	return g == GenderMale || g == GenderFemale || g == GenderOther
}

// PreferredGender is the gender a user wants to be matched with.
type PreferredGender string

const (
	PreferMale   PreferredGender = "male"
	PreferFemale PreferredGender = "female"
	PreferAny    PreferredGender = "any"
)

// IsValid checks if the preference is known.
func (p PreferredGender) IsValid() bool {
	return p == PreferMale || p == PreferFemale || p == PreferAny
}

// Accepts reports whether a profile of gender g satisfies the preference.
func (p PreferredGender) Accepts(g Gender) bool {
	if p == PreferAny {
		return true
	}
	return string(p) == string(g)
}

// MaritalStatus of a profile owner.
type MaritalStatus string

const (
	MaritalNeverMarried MaritalStatus = "never_married"
	MaritalDivorced     MaritalStatus = "divorced"
	MaritalWidowed      MaritalStatus = "widowed"
	MaritalAnnulled     MaritalStatus = "annulled"
)

// IsValid checks if the marital status is known.
func (m MaritalStatus) IsValid() bool {
	switch m {
	case MaritalNeverMarried, MaritalDivorced, MaritalWidowed, MaritalAnnulled:
		return true
	}
	return false
}

// Profile limits shared by validation and the search API.
const (
	MinAge           = 18
	MaxAge           = 100
	MaxProfileImages = 6
	BoostDuration    = 24 * time.Hour
)

// Profile is the public matrimony profile of a user.
type Profile struct {
	UserID            string          `json:"userId"`
	FullName          string          `json:"fullName"`
	Gender            Gender          `json:"gender"`
	PreferredGender   PreferredGender `json:"preferredGender"`
	DateOfBirth       time.Time       `json:"dateOfBirth"`
	City              string          `json:"city"`
	Country           string          `json:"country"`
	Religion          string          `json:"religion,omitempty"`
	MotherTongue      string          `json:"motherTongue,omitempty"`
	Languages         []string        `json:"languages"`
	Education         string          `json:"education,omitempty"`
	Occupation        string          `json:"occupation,omitempty"`
	HeightCm          *int            `json:"heightCm,omitempty"`
	MaritalStatus     MaritalStatus   `json:"maritalStatus,omitempty"`
	AboutMe           string          `json:"aboutMe"`
	PhoneNumber       string          `json:"phoneNumber,omitempty"`
	Images            []string        `json:"images"`
	PartnerAgeMin     *int            `json:"partnerAgeMin,omitempty"`
	PartnerAgeMax     *int            `json:"partnerAgeMax,omitempty"`
	HideFromFreeUsers bool            `json:"hideFromFreeUsers"`
	BoostedUntil      *time.Time      `json:"boostedUntil,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// Age returns whole years between DateOfBirth and now.
func (p *Profile) Age(now time.Time) int {
	return AgeAt(p.DateOfBirth, now)
}

// AgeAt computes age in whole years, counting birthdays in UTC.
func AgeAt(dob, now time.Time) int {
	if dob.IsZero() {
		return 0
	}
	dob = dob.UTC()
	now = now.UTC()
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

// IsComplete reports whether the profile can take part in matching.
func (p *Profile) IsComplete() bool {
	return p.FullName != "" &&
		p.Gender.IsValid() &&
		p.PreferredGender.IsValid() &&
		!p.DateOfBirth.IsZero() &&
		p.City != "" &&
		p.Country != "" &&
		p.AboutMe != "" &&
		len(p.Images) > 0
}

// IsBoosted returns true while a boost is active.
func (p *Profile) IsBoosted(now time.Time) bool {
	return p.BoostedUntil != nil && now.Before(*p.BoostedUntil)
}

// AcceptsPartnerAge reports whether age falls in the partner age range.
// Unset bounds are open.
func (p *Profile) AcceptsPartnerAge(age int) bool {
	if p.PartnerAgeMin != nil && age < *p.PartnerAgeMin {
		return false
	}
	if p.PartnerAgeMax != nil && age > *p.PartnerAgeMax {
		return false
	}
	return true
}

// ProfileSummary is the compact card shown in lists.
type ProfileSummary struct {
	UserID       string     `json:"userId"`
	FullName     string     `json:"fullName"`
	Gender       Gender     `json:"gender"`
	Age          int        `json:"age"`
	City         string     `json:"city"`
	Country      string     `json:"country"`
	Occupation   string     `json:"occupation,omitempty"`
	Image        string     `json:"image,omitempty"`
	BoostedUntil *time.Time `json:"boostedUntil,omitempty"`
}

// Summary builds the list card for the profile.
func (p *Profile) Summary(now time.Time) ProfileSummary {
	s := ProfileSummary{
		UserID:       p.UserID,
		FullName:     p.FullName,
		Gender:       p.Gender,
		Age:          p.Age(now),
		City:         p.City,
		Country:      p.Country,
		Occupation:   p.Occupation,
		BoostedUntil: p.BoostedUntil,
	}
	if len(p.Images) > 0 {
		s.Image = p.Images[0]
	}
	return s
}

// ProfileView records one user opening another user's profile.
type ProfileView struct {
	ID       string    `json:"id"`
	ViewerID string    `json:"viewerId"`
	ViewedID string    `json:"viewedId"`
	ViewedAt time.Time `json:"viewedAt"`
}

// ProfileViewer is an entry of the "who viewed me" list.
type ProfileViewer struct {
	Profile  ProfileSummary `json:"profile"`
	ViewedAt time.Time      `json:"viewedAt"`
}
