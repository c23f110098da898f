package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StatusProcessing is the status every order is created with. Admins may set
// any other non-empty label afterwards.
const StatusProcessing = "Processing"

const DefaultPaymentMethod = "COD"

type Product struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"                        json:"id"`
	Name        string          `gorm:"not null;index"                              json:"name"`
	Description string          `gorm:"not null"                                    json:"description"`
	Category    string          `gorm:"not null;index"                              json:"category"`
	Image       string          `gorm:"not null"                                    json:"image"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null;check:price >= 0" json:"price"`
	Stock       int             `gorm:"not null;check:stock >= 0"                   json:"stock"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// CartItem has no foreign key on ProductID: a deleted product leaves its cart
// lines dangling and readers skip them.
type CartItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"                            json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_user_product;not null" json:"user_id"`
	ProductID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_user_product;not null" json:"product_id"`
	Quantity  int       `gorm:"not null;check:quantity > 0"                     json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *CartItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (CartItem) TableName() string {
	return "cart_items"
}

// Order is one purchased line. Rows placed by the same checkout share
// CheckoutID, DeliveryTime and DeliveryCharge. ProductName and Price are
// copies taken at checkout and never follow later catalog edits.
type Order struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"          json:"id"`
	CheckoutID     uuid.UUID       `gorm:"type:uuid;index;not null"      json:"checkout_id"`
	UserID         uuid.UUID       `gorm:"type:uuid;index;not null"      json:"user_id"`
	ProductID      uuid.UUID       `gorm:"type:uuid;not null"            json:"product_id"`
	ProductName    string          `gorm:"not null"                      json:"product_name"`
	Price          decimal.Decimal `gorm:"type:numeric(12,2);not null"   json:"price"`
	Quantity       int             `gorm:"not null;check:quantity > 0"   json:"quantity"`
	Address        string          `gorm:"not null"                      json:"address"`
	Phone          string          `gorm:"not null"                      json:"phone"`
	PaymentMethod  string          `gorm:"not null"                      json:"payment_method"`
	DeliveryCharge decimal.Decimal `gorm:"type:numeric(12,2);not null"   json:"delivery_charge"`
	DeliveryTime   string          `gorm:"not null"                      json:"delivery_time"`
	Status         string          `gorm:"not null;index"                json:"status"`
	CreatedAt      time.Time       `gorm:"index"                         json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = StatusProcessing
	}
	return nil
}

func (o Order) LineTotal() decimal.Decimal {
	return o.Price.Mul(decimal.NewFromInt(int64(o.Quantity)))
}
