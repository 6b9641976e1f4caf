package domain

type Project struct {
	ID              string `json:"id"`
	Code            string `json:"code"`
	Name            string `json:"name"`
	Investor        string `json:"investor,omitempty"`
	Type            string `json:"type" enum:"infrastructure,technology,energy,healthcare,education"`
	Status          string `json:"status" enum:"planning,active,completed,cancelled"`
	TotalBudget     int64  `json:"total_budget"`
	DisbursedBudget int64  `json:"disbursed_budget"`
	StartDate       string `json:"start_date,omitempty" format:"date"`
	EndDate         string `json:"end_date,omitempty" format:"date"`
	Progress        int    `json:"progress"`
	Description     string `json:"description,omitempty"`
	CreatedAt       string `json:"created_at" format:"date-time"`
	UpdatedAt       string `json:"updated_at" format:"date-time"`
}

type TenderPackage struct {
	ID            string `json:"id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	ProjectID     string `json:"project_id"`
	Contractor    string `json:"contractor,omitempty"`
	BidValue      int64  `json:"bid_value"`
	ContractValue int64  `json:"contract_value"`
	Status        string `json:"status" enum:"planning,bidding,awarded,active,completed,cancelled"`
	StartDate     string `json:"start_date,omitempty" format:"date"`
	EndDate       string `json:"end_date,omitempty" format:"date"`
	Progress      int    `json:"progress"`
	Description   string `json:"description,omitempty"`
	CreatedAt     string `json:"created_at" format:"date-time"`
	UpdatedAt     string `json:"updated_at" format:"date-time"`
}

type User struct {
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	PasswordHash string   `json:"-"`
	Name         string   `json:"name"`
	Email        string   `json:"email,omitempty"`
	Role         string   `json:"role" enum:"admin,manager,editor,viewer"`
	Permissions  []string `json:"permissions"`
	IsActive     bool     `json:"is_active"`
	CreatedAt    string   `json:"created_at" format:"date-time"`
	UpdatedAt    string   `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Terminal statuses shared by projects and tender packages. Items in a
// terminal state are excluded from risk aggregation.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

func IsTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusCancelled
}
