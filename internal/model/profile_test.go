package model

import (
	"testing"
	"time"
)

func completeProfile() *Profile {
	return &Profile{
		UserID:          "u1",
		FullName:        "Aisha Rahimi",
		Gender:          GenderFemale,
		PreferredGender: PreferMale,
		DateOfBirth:     time.Date(1996, time.April, 12, 0, 0, 0, 0, time.UTC),
		City:            "London",
		Country:         "UK",
		AboutMe:         "Hello",
		Images:          []string{"https://cdn.example.com/a.jpg"},
	}
}

func TestAgeAt(t *testing.T) {
	t.Parallel()

	dob := time.Date(2000, time.February, 29, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"day before birthday", time.Date(2026, time.February, 27, 0, 0, 0, 0, time.UTC), 25},
		{"leap birthday in non-leap year", time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), 26},
		{"same month later day", time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC), 24},
		{"zero dob", time.Now(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := dob
			if tt.name == "zero dob" {
				d = time.Time{}
			}
			if got := AgeAt(d, tt.now); got != tt.want {
				t.Errorf("AgeAt() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProfile_IsComplete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(p *Profile)
		want   bool
	}{
		{"complete", func(p *Profile) {}, true},
		{"missing name", func(p *Profile) { p.FullName = "" }, false},
		{"bad gender", func(p *Profile) { p.Gender = "x" }, false},
		{"no preference", func(p *Profile) { p.PreferredGender = "" }, false},
		{"no dob", func(p *Profile) { p.DateOfBirth = time.Time{} }, false},
		{"no city", func(p *Profile) { p.City = "" }, false},
		{"no country", func(p *Profile) { p.Country = "" }, false},
		{"no about", func(p *Profile) { p.AboutMe = "" }, false},
		{"no images", func(p *Profile) { p.Images = nil }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := completeProfile()
			tt.mutate(p)
			if got := p.IsComplete(); got != tt.want {
				t.Errorf("IsComplete() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProfile_IsBoosted(t *testing.T) {
	t.Parallel()

	now := time.Now()
	p := completeProfile()
	if p.IsBoosted(now) {
		t.Error("profile without boost should not be boosted")
	}

	until := now.Add(time.Hour)
	p.BoostedUntil = &until
	if !p.IsBoosted(now) {
		t.Error("profile should be boosted before BoostedUntil")
	}
	if p.IsBoosted(until) {
		t.Error("boost should end at BoostedUntil")
	}
}

func TestPreferredGender_Accepts(t *testing.T) {
	t.Parallel()

	if !PreferAny.Accepts(GenderOther) {
		t.Error("any should accept every gender")
	}
	if !PreferFemale.Accepts(GenderFemale) {
		t.Error("female should accept female")
	}
	if PreferFemale.Accepts(GenderMale) {
		t.Error("female should reject male")
	}
}

func TestProfile_AcceptsPartnerAge(t *testing.T) {
	t.Parallel()

	lo, hi := 25, 35
	p := &Profile{PartnerAgeMin: &lo, PartnerAgeMax: &hi}
	for age, want := range map[int]bool{24: false, 25: true, 35: true, 36: false} {
		if got := p.AcceptsPartnerAge(age); got != want {
			t.Errorf("AcceptsPartnerAge(%d) = %v, want %v", age, got, want)
		}
	}
	if !(&Profile{}).AcceptsPartnerAge(99) {
		t.Error("open range should accept any age")
	}
}

func TestConversationID_IsOrderIndependent(t *testing.T) {
	t.Parallel()

	if ConversationID("b", "a") != ConversationID("a", "b") {
		t.Error("conversation id must not depend on argument order")
	}
	if got := ConversationID("01B", "01A"); got != "01A_01B" {
		t.Errorf("ConversationID = %q, want 01A_01B", got)
	}
}

func TestMatch_Other(t *testing.T) {
	t.Parallel()

	m := &Match{User1ID: "a", User2ID: "b"}
	if m.Other("a") != "b" || m.Other("b") != "a" {
		t.Error("Other returned the wrong participant")
	}
	if m.Involves("c") {
		t.Error("c is not a participant")
	}
}

func TestNewUsageStatus(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

	s := NewUsageStatus(FeatureMessageSent, FeatureLimit{Limit: 20, Period: PeriodMonthly}, 25, now)
	if s.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", s.Remaining)
	}
	if !s.ResetAt.Equal(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ResetAt = %v", s.ResetAt)
	}

	u := NewUsageStatus(FeatureMessageSent, FeatureLimit{Limit: Unlimited, Period: PeriodMonthly}, 7, now)
	if !u.Unlimited || u.Remaining != Unlimited {
		t.Errorf("unlimited status = %+v", u)
	}
}
