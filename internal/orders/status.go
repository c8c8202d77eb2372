package orders

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPreparing Status = "PREPARING"
	StatusReady     Status = "READY"
	StatusCompleted Status = "COMPLETED"
	StatusCanceled  Status = "CANCELED"
)

// Forward-only transitions. Skipping ahead is allowed (kitchen staff may mark a
// PENDING order READY directly); moving backward is not. COMPLETED and CANCELED
// are terminal.
var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusPreparing: true, StatusReady: true, StatusCompleted: true, StatusCanceled: true},
	StatusPreparing: {StatusReady: true, StatusCompleted: true, StatusCanceled: true},
	StatusReady:     {StatusCompleted: true, StatusCanceled: true},
	StatusCompleted: {},
	StatusCanceled:  {},
}

func ValidStatus(s Status) bool {
	_, ok := validNext[s]
	return ok
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func Terminal(s Status) bool {
	return s == StatusCompleted || s == StatusCanceled
}
