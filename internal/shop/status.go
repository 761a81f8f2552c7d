package shop

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusPaid       Status = "PAID"
	StatusExpired    Status = "EXPIRED"
	StatusOutOfStock Status = "OUT_OF_STOCK"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusPaid: true, StatusExpired: true, StatusOutOfStock: true},
	StatusPaid:       {},
	StatusExpired:    {},
	StatusOutOfStock: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusExpired || s == StatusOutOfStock
}
