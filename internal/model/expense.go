package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExpenseStatus enum constants. The lifecycle is
// DRAFT/PENDING_SITE -> (site manager) -> PENDING_HQ/REJECTED_SITE
// -> (hq admin) -> APPROVED/REJECTED_HQ. APPROVED is terminal; rejected
// expenses can be edited and resubmitted by the owner.
const (
	StatusDraft        = "DRAFT"
	StatusPendingSite  = "PENDING_SITE"
	StatusRejectedSite = "REJECTED_SITE"
	StatusPendingHQ    = "PENDING_HQ"
	StatusRejectedHQ   = "REJECTED_HQ"
	StatusApproved     = "APPROVED"
)

// ValidStatus reports whether s is a known expense status.
func ValidStatus(s string) bool {
	switch s {
	case StatusDraft, StatusPendingSite, StatusRejectedSite,
		StatusPendingHQ, StatusRejectedHQ, StatusApproved:
		return true
	}
	return false
}

// PaymentMethod enum constants
const (
	PaymentCorporateCard = "CORPORATE_CARD"
	PaymentPersonalCard  = "PERSONAL_CARD"
	PaymentCash          = "CASH"
	PaymentOther         = "OTHER"
)

// ApprovalAction enum constants
const (
	ApprovalActionPending  = "PENDING"
	ApprovalActionApproved = "APPROVED"
	ApprovalActionRejected = "REJECTED"
)

// Approval tier steps
const (
	StepSiteManager = 1
	StepHQAdmin     = 2
)

// Expense is one reimbursement request. total_amount is set by the
// submitter and is authoritative for approval; items are itemized
// detail and the system does not force the two to reconcile.
type Expense struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	User          *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	SiteID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"site_id"`
	Site          *Site           `gorm:"foreignKey:SiteID" json:"site,omitempty"`
	Status        string          `gorm:"type:varchar(20);not null;default:'PENDING_SITE';index" json:"status"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_amount"`
	UsageDate     time.Time       `gorm:"not null" json:"usage_date"`
	Vendor        string          `gorm:"type:varchar(100);not null" json:"vendor"`
	PurposeDetail string          `gorm:"type:varchar(500);not null" json:"purpose_detail"`
	Items         []ExpenseItem   `gorm:"foreignKey:ExpenseID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Approvals     []Approval      `gorm:"foreignKey:ExpenseID;constraint:OnDelete:CASCADE" json:"approvals,omitempty"`
	Attachments   []Attachment    `gorm:"foreignKey:ExpenseID;constraint:OnDelete:CASCADE" json:"attachments,omitempty"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime;index" json:"updated_at"`
}

// ExpenseItem is one itemized expenditure inside an expense. Items are
// replaced wholesale on update, so item IDs do not survive an edit.
type ExpenseItem struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ExpenseID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"expense_id"`
	Category      string          `gorm:"type:varchar(20);not null" json:"category"`
	PaymentMethod string          `gorm:"type:varchar(20);not null" json:"payment_method"`
	Amount        decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	UsageDate     time.Time       `gorm:"not null" json:"usage_date"`
	Vendor        string          `gorm:"type:varchar(100);not null" json:"vendor"`
	Description   *string         `gorm:"type:varchar(255)" json:"description"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// Approval is one audit entry of a tier decision. Rows are append-only;
// the history of a resubmitted expense keeps its earlier cycles.
type Approval struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ExpenseID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"expense_id"`
	Step       int        `gorm:"not null" json:"step"`
	ApproverID uuid.UUID  `gorm:"type:uuid;not null" json:"approver_id"`
	Approver   *User      `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`
	Action     string     `gorm:"type:varchar(20);not null" json:"action"`
	Comment    *string    `gorm:"type:varchar(500)" json:"comment"`
	ActedAt    *time.Time `json:"acted_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// Attachment is a stored file reference tied to an expense. file_path
// is the blob key relative to the attachments root.
type Attachment struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ExpenseID    uuid.UUID `gorm:"type:uuid;not null;index" json:"expense_id"`
	FilePath     string    `gorm:"type:varchar(512);not null" json:"-"`
	OriginalName string    `gorm:"type:varchar(255);not null" json:"original_name"`
	MimeType     string    `gorm:"type:varchar(128);not null" json:"mime_type"`
	Size         int64     `gorm:"not null" json:"size"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}
