package orders

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted:  {StatusCancelled: true},
	StatusCancelled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// sourcesOf lists every status allowed to move to `to`, as strings for SQL.
func sourcesOf(to Status) []string {
	var out []string
	for _, from := range []Status{StatusPending, StatusProcessing, StatusCompleted, StatusCancelled} {
		if CanTransition(from, to) {
			out = append(out, string(from))
		}
	}
	return out
}
