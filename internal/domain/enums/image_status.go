package enums

// ImageStatus is the moderation lifecycle state of an uploaded image.
// PENDING is the only non-terminal state: once an image leaves it, the
// status never changes again.
type ImageStatus string

const (
	ImageStatusPending  ImageStatus = "PENDING"
	ImageStatusApproved ImageStatus = "APPROVED"
	ImageStatusRejected ImageStatus = "REJECTED"
	ImageStatusBlocked  ImageStatus = "BLOCKED"
)

func (s ImageStatus) Valid() bool {
	switch s {
	case ImageStatusPending, ImageStatusApproved, ImageStatusRejected, ImageStatusBlocked:
		return true
	default:
		return false
	}
}

// Terminal reports whether s is a final moderation decision.
func (s ImageStatus) Terminal() bool {
	return s.Valid() && s != ImageStatusPending
}

func (s ImageStatus) String() string {
	return string(s)
}
