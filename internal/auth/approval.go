package auth

// ApprovalStatus is the administrative gate on student and teacher accounts.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalReupload ApprovalStatus = "reupload"
)

// Valid reports whether s is a known approval status.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected, ApprovalReupload:
		return true
	}
	return false
}

// Resubmitted returns the state after a principal re-submits documents.
// The only automatic edge in the approval machine is reupload -> pending;
// every other transition is an administrative action applied externally.
func Resubmitted(current ApprovalStatus) (ApprovalStatus, error) {
	if current != ApprovalReupload {
		return current, ErrResubmitNotAllowed
	}
	return ApprovalPending, nil
}
