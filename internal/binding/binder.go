// Package binding maps business records onto the category/field namespace a
// document template expects.
package binding

import (
	"strconv"
	"time"

	templatedomain "github.com/finovo/leaseflow/internal/doctemplate/domain"
	"github.com/shopspring/decimal"
)

// ClientData is the client category with its fixed field set.
type ClientData struct {
	Name          string
	OrgNumber     string
	Email         string
	Phone         string
	Address       string
	ContactPerson string
}

// OfferData is the offer category.
type OfferData struct {
	Number         string
	Date           time.Time
	DurationMonths int
	FinancedAmount decimal.Decimal
	Status         string
}

// EquipmentData is the equipment category.
type EquipmentData struct {
	Description string
	Price       decimal.Decimal
}

// UserData is the acting salesperson.
type UserData struct {
	Name  string
	Email string
	Phone string
}

// GeneralData is tenant-level company information.
type GeneralData struct {
	CompanyName string
	OrgNumber   string
	Address     string
	Date        time.Time
}

// ComputedData carries upstream pipeline results, such as the resolved
// monthly payment, so templates can reference pricing output without the
// binder knowing resolver internals.
type ComputedData struct {
	MonthlyPayment decimal.Decimal
	Coefficient    decimal.Decimal
	FinancedAmount decimal.Decimal
}

// Record is one generation request's view of the business data, one struct
// per category with a fixed field set checked at bind time.
type Record struct {
	Client    ClientData
	Offer     OfferData
	Equipment EquipmentData
	User      UserData
	General   GeneralData
	Computed  ComputedData
}

// BoundField pairs a placed field spec with its raw (unformatted) value.
type BoundField struct {
	Spec  templatedomain.FieldSpec
	Value any
}

// BoundDataset maps field ID to its bound value for one generation request.
// It is ephemeral and never persisted.
type BoundDataset map[string]BoundField

// MissingField identifies a placed field the record had no value for.
type MissingField struct {
	FieldID  string
	Category templatedomain.Category
}

// Bind resolves every placed, visible field of the template against the
// record. A missing value binds to the empty string instead of failing: one
// absent phone number must not block document delivery.
func Bind(fields templatedomain.FieldMap, record Record) (BoundDataset, []MissingField) {
	dataset := make(BoundDataset, len(fields))
	var missing []MissingField

	for id, spec := range fields {
		if spec.Page == nil || !spec.IsVisible {
			continue
		}

		value, ok := lookup(record, spec.Category, id)
		if !ok {
			missing = append(missing, MissingField{FieldID: id, Category: spec.Category})
			value = ""
		}
		dataset[id] = BoundField{Spec: spec, Value: value}
	}

	return dataset, missing
}

func lookup(record Record, category templatedomain.Category, key string) (any, bool) {
	switch category {
	case templatedomain.CategoryClient:
		return lookupClient(record.Client, key)
	case templatedomain.CategoryOffer:
		return lookupOffer(record.Offer, key)
	case templatedomain.CategoryEquipment:
		return lookupEquipment(record.Equipment, key)
	case templatedomain.CategoryUser:
		return lookupUser(record.User, key)
	case templatedomain.CategoryGeneral:
		return lookupGeneral(record.General, key)
	case templatedomain.CategoryComputed:
		return lookupComputed(record.Computed, key)
	default:
		return nil, false
	}
}

func lookupClient(data ClientData, key string) (any, bool) {
	switch key {
	case "name":
		return nonEmpty(data.Name)
	case "org_number":
		return nonEmpty(data.OrgNumber)
	case "email":
		return nonEmpty(data.Email)
	case "phone":
		return nonEmpty(data.Phone)
	case "address":
		return nonEmpty(data.Address)
	case "contact_person":
		return nonEmpty(data.ContactPerson)
	default:
		return nil, false
	}
}

func lookupOffer(data OfferData, key string) (any, bool) {
	switch key {
	case "number":
		return nonEmpty(data.Number)
	case "date":
		if data.Date.IsZero() {
			return nil, false
		}
		return data.Date, true
	case "duration_months":
		if data.DurationMonths == 0 {
			return nil, false
		}
		return strconv.Itoa(data.DurationMonths), true
	case "financed_amount":
		return data.FinancedAmount, true
	case "status":
		return nonEmpty(data.Status)
	default:
		return nil, false
	}
}

func lookupEquipment(data EquipmentData, key string) (any, bool) {
	switch key {
	case "description":
		return nonEmpty(data.Description)
	case "price":
		return data.Price, true
	default:
		return nil, false
	}
}

func lookupUser(data UserData, key string) (any, bool) {
	switch key {
	case "name":
		return nonEmpty(data.Name)
	case "email":
		return nonEmpty(data.Email)
	case "phone":
		return nonEmpty(data.Phone)
	default:
		return nil, false
	}
}

func lookupGeneral(data GeneralData, key string) (any, bool) {
	switch key {
	case "company_name":
		return nonEmpty(data.CompanyName)
	case "org_number":
		return nonEmpty(data.OrgNumber)
	case "address":
		return nonEmpty(data.Address)
	case "date":
		if data.Date.IsZero() {
			return nil, false
		}
		return data.Date, true
	default:
		return nil, false
	}
}

func lookupComputed(data ComputedData, key string) (any, bool) {
	switch key {
	case "monthly_payment":
		return data.MonthlyPayment, true
	case "coefficient":
		return data.Coefficient, true
	case "financed_amount":
		return data.FinancedAmount, true
	default:
		return nil, false
	}
}

func nonEmpty(value string) (any, bool) {
	if value == "" {
		return nil, false
	}
	return value, true
}
