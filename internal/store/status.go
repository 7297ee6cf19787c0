package store

// Status is an application workflow state.
type Status string

const (
	StatusSubmitted        Status = "SUBMITTED"
	StatusSupReview        Status = "SUP_REVIEW"
	StatusSupApproved      Status = "SUP_APPROVED"
	StatusSupRejected      Status = "SUP_REJECTED"
	StatusChangesRequested Status = "CHANGES_REQUESTED"
	StatusWithUW           Status = "WITH_UW"
	StatusUWApproved       Status = "UW_APPROVED"
	StatusUWRejected       Status = "UW_REJECTED"
	StatusPolicyIssued     Status = "POLICY_ISSUED"
	StatusClosed           Status = "CLOSED"
)

// AllStatuses lists the workflow states in lifecycle order.
func AllStatuses() []Status {
	return []Status{
		StatusSubmitted, StatusSupReview, StatusChangesRequested, StatusSupApproved, StatusSupRejected,
		StatusWithUW, StatusUWApproved, StatusUWRejected, StatusPolicyIssued, StatusClosed,
	}
}

var transitions = map[Status][]Status{
	StatusSubmitted:        {StatusSupReview},
	StatusSupReview:        {StatusSupApproved, StatusSupRejected, StatusChangesRequested},
	StatusChangesRequested: {StatusSupReview},
	StatusSupApproved:      {StatusWithUW},
	StatusWithUW:           {StatusUWApproved, StatusUWRejected},
	StatusUWApproved:       {StatusPolicyIssued},
	StatusPolicyIssued:     {StatusClosed},
	StatusSupRejected:      {StatusClosed},
	StatusUWRejected:       {StatusClosed},
}

// CanTransition reports whether the workflow allows from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Next lists the states reachable from s.
func Next(s Status) []Status {
	return append([]Status(nil), transitions[s]...)
}
