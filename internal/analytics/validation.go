package analytics

import "errors"

const maxIDLength = 64

// ValidateProfileViewPayload checks a decoded stream payload.
func ValidateProfileViewPayload(p ProfileViewPayload) error {
	switch {
	case p.ID == "":
		return errors.New("id is required")
	case p.ViewerID == "":
		return errors.New("viewer id is required")
	case p.ViewedID == "":
		return errors.New("viewed id is required")
	case len(p.ID) > maxIDLength || len(p.ViewerID) > maxIDLength || len(p.ViewedID) > maxIDLength:
		return errors.New("id too long")
	case p.ViewerID == p.ViewedID:
		return errors.New("self views are not recorded")
	case p.ViewedAt <= 0:
		return errors.New("viewed_at must be set")
	}
	return nil
}
