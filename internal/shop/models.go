package shop

import "time"

type Kind string

const (
	KindFixed Kind = "FIXED"
	KindStars Kind = "VARIABLE_STARS"
	KindSteam Kind = "VARIABLE_STEAM"
)

func (k Kind) Valid() bool {
	switch k {
	case KindFixed, KindStars, KindSteam:
		return true
	}
	return false
}

type Category struct {
	ID          int64
	Name        string
	Description string
}

type Product struct {
	ID          int64
	CategoryID  int64
	Name        string
	Price       float64
	Description string
	Stock       int
	Kind        Kind
	Active      bool
}

// Order is the audit record of a purchase attempt. Rows are never deleted;
// status moves out of PENDING exactly once.
type Order struct {
	ID                string
	CustomerID        int64
	Username          string
	FirstName         string
	ProductID         int64
	ProductName       string
	ProductKind       Kind
	CustomAmount      *float64
	PriceAmount       float64
	PriceWithFee      float64
	ProviderInvoiceID string
	Status            Status
	CreatedAt         time.Time
	PaidAt            *time.Time
}

type CoefficientType string

const (
	CoeffStars        CoefficientType = "stars"
	CoeffSteam        CoefficientType = "steam"
	CoeffExchangeRate CoefficientType = "exchange_rate"
)

// Defaults apply when a coefficient row is absent.
var DefaultCoefficients = map[CoefficientType]float64{
	CoeffStars:        1.35,
	CoeffSteam:        1.03,
	CoeffExchangeRate: 77.5,
}

type Coefficient struct {
	Type      CoefficientType
	Value     float64
	UpdatedAt time.Time
}

type User struct {
	CustomerID   int64
	Username     string
	FirstName    string
	JoinedAt     time.Time
	LastActivity time.Time
}

type Ban struct {
	CustomerID int64
	Username   string
	BannedBy   int64
	BannedAt   time.Time
	Reason     string
}

type Stats struct {
	ActiveProducts int
	TotalStock     int
	PaidOrders     int
	Revenue        float64
	RevenueWithFee float64
	TotalUsers     int
}
