package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Property struct {
	ID            int             `gorm:"primary_key" json:"id"`
	LandlordId    int             `gorm:"index;not null" json:"landlord_id"`
	Name          string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Address       string          `gorm:"size:200" json:"address"`
	UtilityPrices []*UtilityPrice `gorm:"foreignKey:PropertyId" json:"utility_prices"`
	IsActive      *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// UtilityPrice is the property-level price list entry. Billing=Included and
// Billing=NotIncluded are excluded sentinels and never produce bill lines.
type UtilityPrice struct {
	ID           int             `gorm:"primary_key" json:"id"`
	PropertyId   int             `gorm:"index;not null" json:"property_id"`
	UtilityType  string          `gorm:"size:50;not null" json:"utility_type"`
	PricePerUnit decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price_per_unit"`
	Billing      UtilityBilling  `gorm:"type:enum('Billed','Included','NotIncluded');not null;default:'NotIncluded'" json:"billing"`
}

// BillableUtilityTotal is the per-month utility amount at one unit each.
func (p *Property) BillableUtilityTotal() decimal.Decimal {
	total := decimal.Zero
	for _, u := range p.UtilityPrices {
		if u.Billing == UtilityBilled {
			total = total.Add(u.PricePerUnit)
		}
	}
	return total
}
